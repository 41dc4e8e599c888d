// Package repo – DocumentChunk persistence.
//
// Chunks are written in bulk during ingestion (in source page order, for
// debuggability) and removed in bulk when their document is reprocessed or
// deleted. Relevance ordering is computed at retrieval time, not here.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/supportdesk/go-kb-backend/internal/domain"
)

// CreateChunk inserts one DocumentChunk row. The handle may be a transaction;
// ingestion uses one transaction per chunk batch.
func CreateChunk(tx *gorm.DB, documentID, content string, pageNumber, startOffset int, embedding []byte) (*domain.DocumentChunk, error) {
	c := &domain.DocumentChunk{
		ID:          uuid.NewString(),
		DocumentID:  documentID,
		Content:     content,
		PageNumber:  pageNumber,
		StartOffset: startOffset,
		Embedding:   embedding,
		CreatedAt:   time.Now().UTC(),
	}
	if err := tx.Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

// PurgeChunks hard-deletes every chunk belonging to documentID, including
// soft-deleted rows. Used by reprocess (to avoid duplicates on retry) and by
// document deletion.
func PurgeChunks(tx *gorm.DB, documentID string) error {
	return tx.Unscoped().
		Where("document_id = ?", documentID).
		Delete(&domain.DocumentChunk{}).Error
}

// CountChunks returns the number of live chunks for a document.
func CountChunks(ctx context.Context, db *gorm.DB, documentID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.DocumentChunk{}).
		Where("document_id = ?", documentID).
		Count(&total).Error
	return total, err
}
