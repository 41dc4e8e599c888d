package services

import (
	"context"

	"gorm.io/gorm"

	"github.com/supportdesk/go-kb-backend/internal/repo"
)

// recentQueryLimit is how many recent queries the dashboard shows.
const recentQueryLimit = 5

// answerPreviewRunes caps the answer excerpt shown per recent query.
const answerPreviewRunes = 80

// Dashboard aggregates query-log activity for the admin overview.
type Dashboard struct {
	TotalQueries    int64               `json:"total_queries"`
	AvgResponseTime float64             `json:"avg_response_time"`
	ByService       []repo.ServiceUsage `json:"queries_by_service"`
	Recent          []RecentQuery       `json:"recent_queries"`
}

// RecentQuery is one row of the dashboard's recent-activity feed.
type RecentQuery struct {
	ID            string  `json:"id"`
	UserID        string  `json:"user_id"`
	ServiceID     int     `json:"service_id"`
	Question      string  `json:"question"`
	AnswerPreview string  `json:"answer_preview"`
	ResponseTime  float64 `json:"response_time"`
	CreatedAt     string  `json:"created_at"`
}

// AnalyticsService computes the usage dashboard from the query log.
type AnalyticsService struct {
	DB *gorm.DB
}

// Dashboard returns total and average figures, per-service usage, and the
// most recent queries with truncated answers.
func (s *AnalyticsService) Dashboard(ctx context.Context) (*Dashboard, error) {
	total, avg, err := repo.QueryLogStats(ctx, s.DB)
	if err != nil {
		return nil, err
	}

	byService, err := repo.QueriesByService(ctx, s.DB)
	if err != nil {
		return nil, err
	}

	rows, err := repo.RecentQueries(ctx, s.DB, recentQueryLimit)
	if err != nil {
		return nil, err
	}
	recent := make([]RecentQuery, 0, len(rows))
	for _, r := range rows {
		recent = append(recent, RecentQuery{
			ID:            r.ID,
			UserID:        r.UserID,
			ServiceID:     r.ServiceID,
			Question:      r.QuestionText,
			AnswerPreview: truncateRunes(r.AnswerText, answerPreviewRunes),
			ResponseTime:  r.ResponseTime,
			CreatedAt:     r.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		})
	}

	return &Dashboard{
		TotalQueries:    total,
		AvgResponseTime: avg,
		ByService:       byService,
		Recent:          recent,
	}, nil
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
