package retrieval

import (
	"context"
	"sort"

	"gorm.io/gorm"

	"github.com/supportdesk/go-kb-backend/internal/domain"
)

// Result is one retrieved fragment, ranked by ascending semantic distance.
type Result struct {
	ChunkID    string
	Content    string
	PageNumber int
	Distance   float64
}

// Engine executes filtered nearest-neighbor searches over document chunks.
type Engine struct {
	// DB is the GORM handle used for eligibility queries.
	DB *gorm.DB
}

// NewEngine constructs an Engine over the given database handle.
func NewEngine(db *gorm.DB) *Engine { return &Engine{DB: db} }

// Search returns the limit chunks closest to queryVector among those whose
// owning document belongs to serviceID and is not soft-deleted. The
// eligibility filter runs in SQL before ranking, so limit always yields the
// top-K eligible results, never fewer due to post-filtering. An empty result
// is a successful "no grounding available" outcome, not an error.
func (e *Engine) Search(ctx context.Context, queryVector []float32, serviceID, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 5
	}

	var rows []domain.DocumentChunk
	err := e.DB.WithContext(ctx).
		Model(&domain.DocumentChunk{}).
		Select("document_chunks.id, document_chunks.content, document_chunks.page_number, document_chunks.embedding").
		Joins("JOIN documents ON documents.id = document_chunks.document_id").
		Where("documents.service_id = ? AND documents.deleted_at IS NULL", serviceID).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []Result{}, nil
	}

	results := make([]Result, 0, len(rows))
	for _, row := range rows {
		v, err := DecodeVector(row.Embedding)
		if err != nil {
			return nil, err
		}
		results = append(results, Result{
			ChunkID:    row.ID,
			Content:    row.Content,
			PageNumber: row.PageNumber,
			Distance:   CosineDistance(queryVector, v),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].ChunkID < results[j].ChunkID
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}
