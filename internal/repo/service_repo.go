package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/supportdesk/go-kb-backend/internal/domain"
)

// GetService fetches a service by id. Returns ErrNotFound when it does not
// exist. Rows are seeded externally; there is no create path here.
func GetService(ctx context.Context, db *gorm.DB, id int) (*domain.Service, error) {
	var s domain.Service
	if err := db.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &s, nil
}
