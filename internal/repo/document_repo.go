// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Document
// model and its ingestion lifecycle.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a document is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/supportdesk/go-kb-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateDocument inserts a new Document row in PENDING state for the given
// service. The document ID is a randomly generated UUID (string), and
// CreatedAt is set to UTC.
func CreateDocument(ctx context.Context, db *gorm.DB, serviceID int, title, storageKey, contentHash string) (*domain.Document, error) {
	d := &domain.Document{
		ID:          uuid.NewString(),
		Title:       title,
		ServiceID:   serviceID,
		StorageKey:  storageKey,
		ContentHash: contentHash,
		Status:      domain.StatusPending,
		CreatedAt:   time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(d).Error; err != nil {
		return nil, err
	}
	return d, nil
}

// GetDocument fetches a document by ID, or ErrNotFound if missing.
func GetDocument(ctx context.Context, db *gorm.DB, id string) (*domain.Document, error) {
	var d domain.Document
	if err := db.WithContext(ctx).First(&d, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

// FindDocumentByHash returns the first non-deleted document within a service
// whose content hash matches, or ErrNotFound.
func FindDocumentByHash(ctx context.Context, db *gorm.DB, serviceID int, contentHash string) (*domain.Document, error) {
	var d domain.Document
	err := db.WithContext(ctx).
		Where("service_id = ? AND content_hash = ?", serviceID, contentHash).
		First(&d).Error
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// UpdateDocumentStatus persists a lifecycle transition for a document.
// Returns ErrNotFound when the document does not exist.
func UpdateDocumentStatus(ctx context.Context, db *gorm.DB, id string, status domain.DocumentStatus) error {
	res := db.WithContext(ctx).
		Model(&domain.Document{}).
		Where("id = ?", id).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountDocuments returns the number of documents, optionally scoped to a
// service when serviceID > 0.
func CountDocuments(ctx context.Context, db *gorm.DB, serviceID int) (int64, error) {
	q := db.WithContext(ctx).Model(&domain.Document{})
	if serviceID > 0 {
		q = q.Where("service_id = ?", serviceID)
	}
	var total int64
	err := q.Count(&total).Error
	return total, err
}

// ListDocumentsPage returns a paginated slice of documents ordered by upload
// time descending, optionally scoped to a service when serviceID > 0.
func ListDocumentsPage(ctx context.Context, db *gorm.DB, serviceID, offset, limit int) ([]domain.Document, error) {
	q := db.WithContext(ctx).Model(&domain.Document{})
	if serviceID > 0 {
		q = q.Where("service_id = ?", serviceID)
	}
	var out []domain.Document
	err := q.Order("created_at desc").Offset(offset).Limit(limit).Find(&out).Error
	return out, err
}

// ResetDocumentForReprocess purges all chunks of a document and resets its
// status to PENDING in a single transaction, so concurrent retrieval never
// observes a PENDING document with stale chunks still eligible.
func ResetDocumentForReprocess(ctx context.Context, db *gorm.DB, id string) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := PurgeChunks(tx, id); err != nil {
			return err
		}
		res := tx.Model(&domain.Document{}).
			Where("id = ?", id).
			Update("status", domain.StatusPending)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// DeleteDocument soft-deletes a document and hard-deletes its chunks in one
// transaction. Chunks are removed outright so they can never match the
// retrieval filter again; the document row is retained for audit.
// Returns ErrNotFound when the document does not exist.
func DeleteDocument(ctx context.Context, db *gorm.DB, id string) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := PurgeChunks(tx, id); err != nil {
			return err
		}
		res := tx.Delete(&domain.Document{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}
