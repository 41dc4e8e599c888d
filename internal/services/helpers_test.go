package services

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/supportdesk/go-kb-backend/internal/domain"
	"github.com/supportdesk/go-kb-backend/internal/gateway"
	"github.com/supportdesk/go-kb-backend/internal/ingest"
	"github.com/supportdesk/go-kb-backend/internal/retrieval"
)

// newServiceDB opens a throwaway SQLite database with the full schema and a
// seeded service row.
func newServiceDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("svc_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	if err := db.AutoMigrate(
		&domain.Service{}, &domain.Document{}, &domain.DocumentChunk{},
		&domain.ConversationTurn{}, &domain.QueryLog{},
	); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	if err := db.Create(&domain.Service{ID: 1, Name: "Thermostat X1", Active: true}).Error; err != nil {
		t.Fatalf("seed service: %v", err)
	}
	return db
}

// fakeObjectStore records puts in memory.
type fakeObjectStore struct {
	objects map[string][]byte
	putErr  error
	urlBase string
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: map[string][]byte{}, urlBase: "https://store.local/"}
}

func (f *fakeObjectStore) Put(_ context.Context, key string, data []byte, _ string) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.objects[key] = data
	return nil
}

func (f *fakeObjectStore) Get(_ context.Context, key string) ([]byte, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, fmt.Errorf("no object %q", key)
	}
	return data, nil
}

func (f *fakeObjectStore) PresignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return f.urlBase + key, nil
}

// fakeScheduler records enqueued ids and serves canned job states.
type fakeScheduler struct {
	enqueued   []string
	enqueueErr error
	states     map[string]ingest.JobState
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{states: map[string]ingest.JobState{}}
}

func (f *fakeScheduler) Enqueue(documentID string) error {
	if f.enqueueErr != nil {
		return f.enqueueErr
	}
	f.enqueued = append(f.enqueued, documentID)
	return nil
}

func (f *fakeScheduler) State(documentID string) (ingest.JobState, bool) {
	s, ok := f.states[documentID]
	return s, ok
}

// fakeEmbedder returns a fixed vector for any text.
type fakeEmbedder struct {
	vec []float32
	err error
}

func (f *fakeEmbedder) Embed(context.Context, string) ([]float32, error) {
	return f.vec, f.err
}

// fakeRetriever returns canned results and records the last query.
type fakeRetriever struct {
	results   []retrieval.Result
	err       error
	lastLimit int
	lastSvc   int
}

func (f *fakeRetriever) Search(_ context.Context, _ []float32, serviceID, limit int) ([]retrieval.Result, error) {
	f.lastSvc = serviceID
	f.lastLimit = limit
	return f.results, f.err
}

// fakeGenerator records the prompt it was given and returns a fixed answer.
type fakeGenerator struct {
	answer      string
	err         error
	lastSystem  string
	lastHistory int
}

func (f *fakeGenerator) Generate(_ context.Context, system string, history []gateway.Turn, _ string) (string, error) {
	f.lastSystem = system
	f.lastHistory = len(history)
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}
