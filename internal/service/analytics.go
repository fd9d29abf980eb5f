package service

import (
	"context"
	"time"

	"github.com/aman-churiwal/crm-relay/internal/repository"
)

type AnalyticsService struct {
	repository *repository.RequestLogRepository
}

func NewAnalyticsService(repo *repository.RequestLogRepository) *AnalyticsService {
	return &AnalyticsService{repository: repo}
}

// Holds request log summary data
type AnalyticsSummary struct {
	From            time.Time              `json:"from"`
	To              time.Time              `json:"to"`
	TotalRequests   int64                  `json:"total_requests"`
	AvgResponseTime float64                `json:"avg_response_time_ms"`
	ErrorRate       float64                `json:"error_rate"`
	SuccessRate     float64                `json:"success_rate"`
	ClientErrorRate float64                `json:"client_error_rate"`
	ServerErrorRate float64                `json:"server_error_rate"`
	Rejections      map[string]int64       `json:"rejections"`
	TopEndpoints    []repository.PathCount `json:"top_endpoints"`
}

// Retrieves the request log summary for a time range
func (s *AnalyticsService) GetSummary(ctx context.Context, from, to time.Time) (*AnalyticsSummary, error) {
	summary := &AnalyticsSummary{
		From:         from,
		To:           to,
		Rejections:   map[string]int64{},
		TopEndpoints: []repository.PathCount{},
	}

	totalRequests, err := s.repository.CountByTimeRange(ctx, from, to)
	if err != nil {
		return nil, err
	}
	summary.TotalRequests = totalRequests

	if totalRequests == 0 {
		return summary, nil
	}

	avgResponseTime, err := s.repository.GetAverageResponseTime(ctx, from, to)
	if err != nil {
		return nil, err
	}
	summary.AvgResponseTime = avgResponseTime

	clientErrors, err := s.repository.CountByStatusCodeRange(ctx, 400, 499, from, to)
	if err != nil {
		return nil, err
	}

	serverErrors, err := s.repository.CountByStatusCodeRange(ctx, 500, 599, from, to)
	if err != nil {
		return nil, err
	}

	totalErrors := clientErrors + serverErrors
	summary.ErrorRate = (float64(totalErrors) / float64(totalRequests)) * 100
	summary.SuccessRate = 100 - summary.ErrorRate
	summary.ClientErrorRate = (float64(clientErrors) / float64(totalRequests)) * 100
	summary.ServerErrorRate = (float64(serverErrors) / float64(totalRequests)) * 100

	rejections, err := s.repository.CountRejections(ctx, from, to)
	if err != nil {
		return nil, err
	}
	summary.Rejections = rejections

	topEndpoints, err := s.repository.GetTopEndpoints(ctx, from, to, 10)
	if err != nil {
		return nil, err
	}
	summary.TopEndpoints = topEndpoints

	return summary, nil
}

// Deletes logs older than the retention period
func (s *AnalyticsService) CleanupOldLogs(ctx context.Context, retentionDays int) (int64, error) {
	cutOffDate := time.Now().AddDate(0, 0, -retentionDays)
	return s.repository.DeleteOldLogs(ctx, cutOffDate)
}
