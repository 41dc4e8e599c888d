// Package repo – aggregate/statistics queries over the query log, used by
// the analytics dashboard. Each function is context-aware and safe to call
// from services or handlers.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/supportdesk/go-kb-backend/internal/domain"
)

// ServiceUsage is one row of the per-service usage breakdown.
type ServiceUsage struct {
	ServiceName string `json:"service_name"`
	QueryCount  int64  `json:"query_count"`
}

// RecentQuery is one entry of the recent-activity feed.
type RecentQuery struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	ServiceID    int       `json:"service_id"`
	QuestionText string    `json:"question_text"`
	AnswerText   string    `json:"answer_text"`
	ResponseTime float64   `json:"response_time"`
	CreatedAt    time.Time `json:"created_at"`
}

// QueryLogStats returns the total number of logged queries and the average
// response time in seconds. When no queries exist, both are zero.
func QueryLogStats(ctx context.Context, db *gorm.DB) (total int64, avgResponseTime float64, err error) {
	q := db.WithContext(ctx).Model(&domain.QueryLog{})

	if err = q.Count(&total).Error; err != nil {
		return 0, 0, err
	}
	if total == 0 {
		return 0, 0, nil
	}

	var row struct {
		Avg float64
	}
	if err = q.Select("AVG(response_time) AS avg").Scan(&row).Error; err != nil {
		return 0, 0, err
	}
	return total, row.Avg, nil
}

// QueriesByService returns query counts grouped by service name, most used
// first. Services without any logged query are omitted.
func QueriesByService(ctx context.Context, db *gorm.DB) ([]ServiceUsage, error) {
	var out []ServiceUsage
	err := db.WithContext(ctx).
		Model(&domain.QueryLog{}).
		Select("services.name AS service_name, COUNT(queries_log.id) AS query_count").
		Joins("JOIN services ON services.id = queries_log.service_id").
		Group("services.name").
		Order("query_count desc").
		Scan(&out).Error
	return out, err
}

// RecentQueries returns the limit most recent question/answer pairs for
// monitoring, newest first.
func RecentQueries(ctx context.Context, db *gorm.DB, limit int) ([]RecentQuery, error) {
	if limit <= 0 {
		limit = 5
	}
	var out []RecentQuery
	err := db.WithContext(ctx).
		Model(&domain.QueryLog{}).
		Select("id, user_id, service_id, question_text, answer_text, response_time, created_at").
		Order("created_at desc").
		Limit(limit).
		Scan(&out).Error
	return out, err
}
