package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/supportdesk/go-kb-backend/internal/chunk"
	"github.com/supportdesk/go-kb-backend/internal/domain"
	"github.com/supportdesk/go-kb-backend/internal/extract"
	"github.com/supportdesk/go-kb-backend/internal/ingest"
	"github.com/supportdesk/go-kb-backend/internal/retrieval"
)

// fakePageExtractor serves canned page text instead of parsing a real PDF.
type fakePageExtractor struct {
	pages []extract.PageText
}

func (f *fakePageExtractor) Extract(context.Context, []byte) ([]extract.PageText, error) {
	return f.pages, nil
}

func waitForStatus(t *testing.T, svc *DocumentService, id string, want domain.DocumentStatus) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		doc, _, err := svc.Get(context.Background(), id)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if doc.Status == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("document %s never reached %s", id, want)
}

// Exercises the full path with the real splitter, queue, pipeline, and
// retrieval engine: upload a one-page manual, wait for ingestion, then answer
// a question grounded in the ingested chunk.
func TestUploadIngestAskFlow(t *testing.T) {
	db := newServiceDB(t)
	ctx := context.Background()

	if err := db.Create(&domain.Service{ID: 7, Name: "Smart Lock S3", Active: true}).Error; err != nil {
		t.Fatal(err)
	}
	if err := db.Create(&domain.Service{ID: 99, Name: "Doorbell D1", Active: true}).Error; err != nil {
		t.Fatal(err)
	}

	store := newFakeObjectStore()
	embedder := &fakeEmbedder{vec: []float32{0.3, 0.5, 0.1}}
	splitter, err := chunk.NewSplitter(1000, 200)
	if err != nil {
		t.Fatal(err)
	}

	pipeline := &ingest.Pipeline{
		DB:    db,
		Store: store,
		Extractor: &fakePageExtractor{pages: []extract.PageText{
			{Number: 1, Text: "To reset your password, open the companion app and choose Forgot PIN."},
		}},
		Embedder:     embedder,
		Splitter:     splitter,
		FetchTimeout: time.Second,
		Log:          zerolog.Nop(),
	}
	queue := ingest.NewQueue(pipeline, 4, zerolog.Nop())
	queue.Start(ctx, 1)
	defer queue.Stop()

	docSvc := NewDocumentService(db, store, queue, "documents", time.Hour, 1<<20)
	doc, err := docSvc.Upload(ctx, 7, "Smart Lock Manual", "smart-lock.pdf", "application/pdf", []byte("%PDF-1.4 lock manual"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	waitForStatus(t, docSvc, doc.ID, domain.StatusReady)

	gen := &fakeGenerator{answer: "Open the companion app and choose Forgot PIN."}
	chatSvc := &ChatService{
		DB:             db,
		Embedder:       embedder,
		Retriever:      &retrieval.Engine{DB: db},
		Generator:      gen,
		Log:            zerolog.Nop(),
		DeclineAnswer:  "Sorry, I could not find anything about that in this service's manuals.",
		RetrievalLimit: 5,
		HistoryWindow:  6,
		MaxQuestionLen: 2000,
	}

	ans, err := chatSvc.Ask(ctx, "alice", 7, "How do I reset my password?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if !ans.Grounded {
		t.Fatal("answer should be grounded in the ingested manual")
	}
	if len(ans.SourcePages) != 1 || ans.SourcePages[0] != 1 {
		t.Fatalf("source pages = %v, want [1]", ans.SourcePages)
	}
	if len(ans.ChunkIDs) == 0 {
		t.Fatal("answer must carry the retrieved chunk ids")
	}
	if !strings.Contains(gen.lastSystem, "[Page 1]: To reset your password") {
		t.Fatalf("system prompt missing ingested excerpt: %q", gen.lastSystem)
	}

	var logs []domain.QueryLog
	if err := db.Find(&logs).Error; err != nil {
		t.Fatal(err)
	}
	if len(logs) != 1 || logs[0].ServiceID != 7 || logs[0].UserID != "alice" {
		t.Fatalf("query logs = %+v", logs)
	}

	// A service with no ingested documents declines and logs nothing.
	ans, err = chatSvc.Ask(ctx, "alice", 99, "How do I reset my password?")
	if err != nil {
		t.Fatalf("Ask empty service: %v", err)
	}
	if ans.Grounded || ans.Text != chatSvc.DeclineAnswer {
		t.Fatalf("expected decline, got %+v", ans)
	}
	var count int64
	if err := db.Model(&domain.QueryLog{}).Count(&count).Error; err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("query logs after decline = %d, want 1", count)
	}
}
