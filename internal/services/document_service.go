// Package services – DocumentService
//
// This file implements DocumentService, which owns the document side of the
// knowledge base: accepting PDF uploads, scheduling their background
// ingestion, reprocessing failed documents, deletion, listing, and presigned
// download URLs. The ingestion work itself runs in internal/ingest; this
// service only creates the durable PENDING row and hands the job to the
// scheduler, so the upload request returns immediately.
package services

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/supportdesk/go-kb-backend/internal/domain"
	"github.com/supportdesk/go-kb-backend/internal/ingest"
	"github.com/supportdesk/go-kb-backend/internal/repo"
	"github.com/supportdesk/go-kb-backend/internal/storage"
)

// IngestScheduler is the background-job capability consumed by
// DocumentService. Implementations must not block on Enqueue.
type IngestScheduler interface {
	// Enqueue schedules ingestion of documentID; returns ingest.ErrQueueFull
	// when the buffer is exhausted.
	Enqueue(documentID string) error
	// State reports the observable job state for documentID, if known.
	State(documentID string) (ingest.JobState, bool)
}

// DocumentService coordinates uploads, ingestion scheduling, and document
// lifecycle operations.
type DocumentService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Store holds the raw uploaded files.
	Store storage.ObjectStore
	// Scheduler runs ingestion outside the request cycle.
	Scheduler IngestScheduler

	// KeyPrefix prefixes object-store keys for uploads.
	KeyPrefix string
	// PresignTTL bounds the validity of download URLs.
	PresignTTL time.Duration
	// MaxUploadBytes caps accepted file sizes.
	MaxUploadBytes int64

	// TitleMaxLen caps stored titles by rune length.
	TitleMaxLen int
	// TitleLocale drives title casing for fallback titles.
	TitleLocale language.Tag
}

// NewDocumentService constructs a DocumentService with sane defaults for
// title handling.
func NewDocumentService(db *gorm.DB, store storage.ObjectStore, sched IngestScheduler, keyPrefix string, presignTTL time.Duration, maxUploadBytes int64) *DocumentService {
	return &DocumentService{
		DB:             db,
		Store:          store,
		Scheduler:      sched,
		KeyPrefix:      keyPrefix,
		PresignTTL:     presignTTL,
		MaxUploadBytes: maxUploadBytes,
		TitleMaxLen:    255,
		TitleLocale:    language.English,
	}
}

// Upload validates and stores an uploaded PDF, creates the Document row in
// PENDING, and schedules background ingestion. It returns as soon as the job
// is scheduled; ingestion completion is observed via Get.
//
// A content hash identical to an existing document of the same service is
// rejected with ErrDuplicateDocument. When the ingestion queue is full the
// document is left in ERROR (recoverable via Reprocess) and ErrIngestionBusy
// is returned.
func (s *DocumentService) Upload(ctx context.Context, serviceID int, title, filename, contentType string, data []byte) (*domain.Document, error) {
	tr := otel.Tracer("services/DocumentService")
	ctx, span := tr.Start(ctx, "Upload",
		trace.WithAttributes(attribute.Int("service.id", serviceID)),
	)
	defer span.End()

	if !strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return nil, ErrNotPDF
	}
	if s.MaxUploadBytes > 0 && int64(len(data)) > s.MaxUploadBytes {
		return nil, ErrFileTooLarge
	}
	if _, err := repo.GetService(ctx, s.DB, serviceID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrServiceNotFound
		}
		return nil, err
	}

	title = s.normalizeTitle(title, filename)

	sum := md5.Sum(data)
	hash := hex.EncodeToString(sum[:])
	if _, err := repo.FindDocumentByHash(ctx, s.DB, serviceID, hash); err == nil {
		return nil, ErrDuplicateDocument
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}

	key := s.storageKey(filename)
	if err := s.Store.Put(ctx, key, data, contentType); err != nil {
		return nil, err
	}

	doc, err := repo.CreateDocument(ctx, s.DB, serviceID, title, key, hash)
	if err != nil {
		return nil, err
	}

	if err := s.Scheduler.Enqueue(doc.ID); err != nil {
		// Leave the row recoverable rather than stranded in PENDING.
		_ = repo.UpdateDocumentStatus(ctx, s.DB, doc.ID, domain.StatusError)
		if errors.Is(err, ingest.ErrQueueFull) {
			return nil, ErrIngestionBusy
		}
		return nil, err
	}
	return doc, nil
}

// Reprocess purges a document's chunks, resets it to PENDING, and schedules
// a fresh ingestion run. Only documents in ERROR or READY may be
// reprocessed; a queued or running ingestion returns ErrInvalidState.
func (s *DocumentService) Reprocess(ctx context.Context, id string) error {
	doc, err := repo.GetDocument(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrDocumentNotFound
		}
		return err
	}
	if doc.Status != domain.StatusError && doc.Status != domain.StatusReady {
		return fmt.Errorf("%w: status %s", ErrInvalidState, doc.Status)
	}

	// Purge and reset atomically so concurrent retrieval never sees a
	// PENDING document with stale chunks still eligible.
	if err := repo.ResetDocumentForReprocess(ctx, s.DB, id); err != nil {
		return err
	}

	if err := s.Scheduler.Enqueue(id); err != nil {
		_ = repo.UpdateDocumentStatus(ctx, s.DB, id, domain.StatusError)
		if errors.Is(err, ingest.ErrQueueFull) {
			return ErrIngestionBusy
		}
		return err
	}
	return nil
}

// Delete soft-deletes a document and removes its chunks so they can never
// match retrieval again. The stored blob is retained for audit.
func (s *DocumentService) Delete(ctx context.Context, id string) error {
	if err := repo.DeleteDocument(ctx, s.DB, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrDocumentNotFound
		}
		return err
	}
	return nil
}

// Get returns a document (for status polling) together with the scheduler's
// observable job state, when a job for it is known to this process.
func (s *DocumentService) Get(ctx context.Context, id string) (*domain.Document, ingest.JobState, error) {
	doc, err := repo.GetDocument(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, "", ErrDocumentNotFound
		}
		return nil, "", err
	}
	state, _ := s.Scheduler.State(id)
	return doc, state, nil
}

// ListPage returns a page of documents, optionally scoped to a service when
// serviceID > 0, with the total count. It applies defaults for invalid
// page/pageSize.
func (s *DocumentService) ListPage(ctx context.Context, serviceID, page, pageSize int) ([]domain.Document, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := repo.CountDocuments(ctx, s.DB, serviceID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Document{}, 0, nil
	}

	items, err := repo.ListDocumentsPage(ctx, s.DB, serviceID, offset, pageSize)
	return items, total, err
}

// DownloadURL returns a time-limited URL for the document's stored file.
func (s *DocumentService) DownloadURL(ctx context.Context, id string) (string, error) {
	doc, err := repo.GetDocument(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return "", ErrDocumentNotFound
		}
		return "", err
	}
	return s.Store.PresignedURL(ctx, doc.StorageKey, s.PresignTTL)
}

// storageKey builds a collision-free object key for an upload, preserving
// the original extension for content-type sniffing on download.
func (s *DocumentService) storageKey(filename string) string {
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	base = slugRE.ReplaceAllString(strings.ToLower(base), "-")
	return fmt.Sprintf("%s/%s_%s%s", s.KeyPrefix, uuid.NewString(), strings.Trim(base, "-"), strings.ToLower(filepath.Ext(filename)))
}

// normalizeTitle trims and collapses whitespace; when empty it derives a
// title-cased fallback from the filename.
func (s *DocumentService) normalizeTitle(title, filename string) string {
	title = whitespaceRE.ReplaceAllString(strings.TrimSpace(title), " ")
	if title == "" {
		base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
		base = strings.NewReplacer("_", " ", "-", " ").Replace(base)
		title = cases.Title(s.TitleLocale).String(strings.TrimSpace(base))
	}
	if title == "" {
		title = "Untitled document"
	}
	if s.TitleMaxLen > 0 && utf8.RuneCountInString(title) > s.TitleMaxLen {
		title = string([]rune(title)[:s.TitleMaxLen])
	}
	return title
}

var (
	// whitespaceRE collapses consecutive whitespace to a single space.
	whitespaceRE = regexp.MustCompile(`\s+`)
	// slugRE reduces filenames to a safe object-key fragment.
	slugRE = regexp.MustCompile(`[^a-z0-9]+`)
)
