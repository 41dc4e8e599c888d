// Package ingest implements the document ingestion pipeline and the
// background workers that run it. Ingestion executes outside the uploading
// request's lifecycle: the upload returns as soon as the Document row exists
// in PENDING, and completion or failure is observed later via status reads.
//
// Lifecycle driven here: PENDING -> PROCESSING -> {READY | ERROR}. Every
// external-dependency failure is captured as an ERROR status transition,
// never propagated to a caller (there is none left to notify).
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/supportdesk/go-kb-backend/internal/chunk"
	"github.com/supportdesk/go-kb-backend/internal/domain"
	"github.com/supportdesk/go-kb-backend/internal/extract"
	"github.com/supportdesk/go-kb-backend/internal/gateway"
	"github.com/supportdesk/go-kb-backend/internal/repo"
	"github.com/supportdesk/go-kb-backend/internal/retrieval"
	"github.com/supportdesk/go-kb-backend/internal/storage"
)

// Failure kinds recorded when a pipeline run ends in ERROR. They distinguish
// "our bug" from a dependency outage in logs and job states.
var (
	ErrStorageFailure       = errors.New("storage retrieval failed")
	ErrExtractionFailure    = errors.New("text extraction failed")
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
)

// Pipeline orchestrates one ingestion run: fetch the raw file, extract
// per-page text, chunk it, embed every chunk, and persist the results with
// status transitions. All dependencies are injected.
type Pipeline struct {
	DB           *gorm.DB
	Store        storage.ObjectStore
	Extractor    extract.Extractor
	Embedder     gateway.Embedder
	Splitter     *chunk.Splitter
	FetchTimeout time.Duration
	Log          zerolog.Logger
}

// Run executes the pipeline for documentID.
//
// A missing document is skipped silently apart from a warning log: there is
// no entity left to carry a status. Any step failure transitions the
// document to ERROR and returns the failure (for job-state bookkeeping);
// chunks persisted before the failing step remain until a reprocess purges
// them.
func (p *Pipeline) Run(ctx context.Context, documentID string) error {
	log := p.Log.With().Str("document_id", documentID).Logger()

	doc, err := repo.GetDocument(ctx, p.DB, documentID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			log.Warn().Msg("document vanished before ingestion; skipping")
			return nil
		}
		return err
	}

	// Persist PROCESSING immediately so status polls reflect reality.
	if err := repo.UpdateDocumentStatus(ctx, p.DB, doc.ID, domain.StatusProcessing); err != nil {
		return err
	}

	fetchCtx, cancel := context.WithTimeout(ctx, p.FetchTimeout)
	data, err := p.Store.Get(fetchCtx, doc.StorageKey)
	cancel()
	if err != nil {
		return p.fail(ctx, log, doc.ID, fmt.Errorf("%w: %v", ErrStorageFailure, err))
	}

	pages, err := p.Extractor.Extract(ctx, data)
	if err != nil {
		return p.fail(ctx, log, doc.ID, fmt.Errorf("%w: %v", ErrExtractionFailure, err))
	}

	chunks := p.Splitter.Split(toChunkPages(pages))
	log.Info().Int("pages", len(pages)).Int("chunks", len(chunks)).Msg("document chunked")

	// Chunks are persisted in source page order; relevance ordering is
	// computed at retrieval time.
	for i, c := range chunks {
		vector, err := p.Embedder.Embed(ctx, c.Content)
		if err != nil {
			return p.fail(ctx, log, doc.ID,
				fmt.Errorf("%w: chunk %d/%d: %v", ErrEmbeddingUnavailable, i+1, len(chunks), err))
		}
		if _, err := repo.CreateChunk(p.DB.WithContext(ctx), doc.ID, c.Content, c.PageNumber, c.StartOffset, retrieval.EncodeVector(vector)); err != nil {
			return p.fail(ctx, log, doc.ID, err)
		}
	}

	if err := repo.UpdateDocumentStatus(ctx, p.DB, doc.ID, domain.StatusReady); err != nil {
		return err
	}
	log.Info().Int("chunks", len(chunks)).Msg("document ingested")
	return nil
}

// fail records the ERROR transition and returns the original failure. The
// status write uses a context detached from the (possibly cancelled) run
// context so a shutdown mid-run still leaves a recoverable state.
func (p *Pipeline) fail(ctx context.Context, log zerolog.Logger, documentID string, cause error) error {
	log.Error().Err(cause).Msg("ingestion failed")
	statusCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := repo.UpdateDocumentStatus(statusCtx, p.DB, documentID, domain.StatusError); err != nil {
		log.Error().Err(err).Msg("recording ERROR status failed")
	}
	return cause
}

func toChunkPages(pages []extract.PageText) []chunk.Page {
	out := make([]chunk.Page, len(pages))
	for i, p := range pages {
		out[i] = chunk.Page{Number: p.Number, Text: p.Text}
	}
	return out
}
