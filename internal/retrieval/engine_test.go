package retrieval

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/supportdesk/go-kb-backend/internal/domain"
)

func newEngineDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("retrieval_test_%d.db", time.Now().UnixNano()))
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
	if err := db.AutoMigrate(&domain.Document{}, &domain.DocumentChunk{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func seedChunk(t *testing.T, db *gorm.DB, id, docID, content string, page int, vec []float32) {
	t.Helper()
	c := &domain.DocumentChunk{
		ID:         id,
		DocumentID: docID,
		Content:    content,
		PageNumber: page,
		Embedding:  EncodeVector(vec),
	}
	if err := db.Create(c).Error; err != nil {
		t.Fatalf("seed chunk %s: %v", id, err)
	}
}

func seedDoc(t *testing.T, db *gorm.DB, id string, serviceID int) {
	t.Helper()
	d := &domain.Document{ID: id, Title: id, ServiceID: serviceID, StorageKey: "k-" + id, Status: domain.StatusReady}
	if err := db.Create(d).Error; err != nil {
		t.Fatalf("seed doc %s: %v", id, err)
	}
}

func TestVectorCodec_RoundTrip(t *testing.T) {
	in := []float32{0.25, -1.5, 3.75, 0}
	out, err := DecodeVector(EncodeVector(in))
	if err != nil {
		t.Fatalf("DecodeVector: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("len = %d, want %d", len(out), len(in))
	}
	for i := range in {
		if in[i] != out[i] {
			t.Fatalf("round-trip mismatch at %d: %v != %v", i, in[i], out[i])
		}
	}
	if _, err := DecodeVector([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for truncated blob")
	}
}

func TestCosineDistance(t *testing.T) {
	if d := CosineDistance([]float32{1, 0}, []float32{1, 0}); math.Abs(d) > 1e-9 {
		t.Fatalf("identical vectors distance = %v, want 0", d)
	}
	if d := CosineDistance([]float32{1, 0}, []float32{0, 1}); math.Abs(d-1) > 1e-9 {
		t.Fatalf("orthogonal vectors distance = %v, want 1", d)
	}
	if d := CosineDistance([]float32{1, 0}, []float32{0, 0}); d != 1 {
		t.Fatalf("zero vector distance = %v, want 1", d)
	}
	if d := CosineDistance([]float32{1}, []float32{1, 0}); d != 1 {
		t.Fatalf("mismatched length distance = %v, want 1", d)
	}
}

func TestSearch_RanksByDistance(t *testing.T) {
	db := newEngineDB(t)
	seedDoc(t, db, "doc-1", 7)
	seedChunk(t, db, "c-far", "doc-1", "unrelated", 3, []float32{0, 1, 0})
	seedChunk(t, db, "c-near", "doc-1", "password reset", 1, []float32{1, 0.1, 0})
	seedChunk(t, db, "c-mid", "doc-1", "vpn setup", 2, []float32{0.7, 0.7, 0})

	got, err := NewEngine(db).Search(context.Background(), []float32{1, 0, 0}, 7, 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0].ChunkID != "c-near" || got[1].ChunkID != "c-mid" || got[2].ChunkID != "c-far" {
		t.Fatalf("ranking wrong: %s, %s, %s", got[0].ChunkID, got[1].ChunkID, got[2].ChunkID)
	}
	if got[0].PageNumber != 1 || got[0].Content != "password reset" {
		t.Fatalf("result fields wrong: %+v", got[0])
	}
	for i := 1; i < len(got); i++ {
		if got[i].Distance < got[i-1].Distance {
			t.Fatal("distances not ascending")
		}
	}
}

func TestSearch_HardFilterByService(t *testing.T) {
	db := newEngineDB(t)
	// Two services with near-identical content.
	seedDoc(t, db, "doc-a", 1)
	seedDoc(t, db, "doc-b", 2)
	seedChunk(t, db, "c-a", "doc-a", "password reset steps", 1, []float32{1, 0})
	seedChunk(t, db, "c-b", "doc-b", "password reset steps", 1, []float32{1, 0})

	got, err := NewEngine(db).Search(context.Background(), []float32{1, 0}, 1, 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 || got[0].ChunkID != "c-a" {
		t.Fatalf("hard filter leaked results: %+v", got)
	}
}

func TestSearch_LimitAppliesAfterFilter(t *testing.T) {
	db := newEngineDB(t)
	seedDoc(t, db, "doc-1", 1)
	seedDoc(t, db, "doc-2", 2)
	// Other-service chunks closer to the query than eligible ones.
	seedChunk(t, db, "x-1", "doc-2", "noise", 1, []float32{1, 0})
	seedChunk(t, db, "x-2", "doc-2", "noise", 1, []float32{1, 0})
	for i := 0; i < 4; i++ {
		id := fmt.Sprintf("e-%d", i)
		seedChunk(t, db, id, "doc-1", "eligible", 1, []float32{0.5, float32(i) * 0.2})
	}

	got, err := NewEngine(db).Search(context.Background(), []float32{1, 0}, 1, 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want top-3 eligible", len(got))
	}
	for _, r := range got {
		if r.Content != "eligible" {
			t.Fatalf("ineligible chunk returned: %+v", r)
		}
	}
}

func TestSearch_EmptyAndSoftDeleted(t *testing.T) {
	db := newEngineDB(t)

	got, err := NewEngine(db).Search(context.Background(), []float32{1, 0}, 99, 5)
	if err != nil {
		t.Fatalf("empty search must not error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("want empty result, got %d", len(got))
	}

	seedDoc(t, db, "doc-del", 3)
	seedChunk(t, db, "c-del", "doc-del", "text", 1, []float32{1, 0})
	if err := db.Delete(&domain.Document{}, "id = ?", "doc-del").Error; err != nil {
		t.Fatal(err)
	}

	got, err = NewEngine(db).Search(context.Background(), []float32{1, 0}, 3, 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("soft-deleted document's chunks must be ineligible, got %d", len(got))
	}
}
