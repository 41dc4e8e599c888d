// Package repo – conversation history persistence.
//
// History rows are immutable appends keyed by a deterministic session id.
// The successful-turn unit is a (user, assistant) pair written atomically;
// a failed generation leaves no trace here.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/supportdesk/go-kb-backend/internal/domain"
)

// AppendTurnPair appends the user question and the assistant answer for a
// session as two ordered rows. The handle may be a transaction; the chat
// orchestrator writes the pair and the query log in one transaction.
func AppendTurnPair(tx *gorm.DB, sessionID, question, answer string) error {
	now := time.Now().UTC()
	turns := []domain.ConversationTurn{
		{
			ID:        uuid.NewString(),
			SessionID: sessionID,
			Role:      domain.RoleUser,
			Content:   question,
			CreatedAt: now,
		},
		{
			ID:        uuid.NewString(),
			SessionID: sessionID,
			Role:      domain.RoleAssistant,
			Content:   answer,
			// Strictly after the user turn so chronological ordering is stable.
			CreatedAt: now.Add(time.Microsecond),
		},
	}
	return tx.Create(&turns).Error
}

// ListRecentTurns returns the most recent limit turns for a session in
// chronological order (oldest first), ready to be replayed into a prompt.
// A limit <= 0 returns an empty slice.
func ListRecentTurns(ctx context.Context, db *gorm.DB, sessionID string, limit int) ([]domain.ConversationTurn, error) {
	if limit <= 0 {
		return []domain.ConversationTurn{}, nil
	}
	var recent []domain.ConversationTurn
	err := db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at desc").
		Limit(limit).
		Find(&recent).Error
	if err != nil {
		return nil, err
	}
	// Reverse into chronological order.
	for i, j := 0, len(recent)-1; i < j; i, j = i+1, j-1 {
		recent[i], recent[j] = recent[j], recent[i]
	}
	return recent, nil
}

// CountTurns returns the total number of turns recorded for a session.
func CountTurns(ctx context.Context, db *gorm.DB, sessionID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.ConversationTurn{}).
		Where("session_id = ?", sessionID).
		Count(&total).Error
	return total, err
}
