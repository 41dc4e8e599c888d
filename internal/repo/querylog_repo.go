// Package repo – QueryLog persistence.
package repo

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/supportdesk/go-kb-backend/internal/domain"
)

// CreateQueryLog appends one immutable audit row for a successfully answered
// question. The handle may be a transaction; the chat orchestrator writes the
// log together with the history pair. userID may be empty for anonymous
// callers.
func CreateQueryLog(tx *gorm.DB, userID string, serviceID int, question, answer string, chunkIDs []string, responseTime float64) (*domain.QueryLog, error) {
	l := &domain.QueryLog{
		ID:              uuid.NewString(),
		UserID:          userID,
		ServiceID:       serviceID,
		QuestionText:    question,
		AnswerText:      answer,
		ContextChunkIDs: chunkIDs,
		ResponseTime:    responseTime,
		CreatedAt:       time.Now().UTC(),
	}
	if err := tx.Create(l).Error; err != nil {
		return nil, err
	}
	return l, nil
}
