package service

import (
	"context"
	"testing"
	"time"

	"github.com/aman-churiwal/crm-relay/internal/models"
	"github.com/aman-churiwal/crm-relay/internal/repository"
	"github.com/aman-churiwal/crm-relay/internal/storage"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newLogRepository(t *testing.T) *repository.RequestLogRepository {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	pg := &storage.Postgres{DB: db}
	require.NoError(t, pg.AutoMigrate())
	return repository.NewRequestLogRepository(pg)
}

func TestAnalyticsService_GetSummary(t *testing.T) {
	repo := newLogRepository(t)
	svc := NewAnalyticsService(repo)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, repo.CreateBatch(ctx, []models.RequestLog{
		{Timestamp: now, Path: "/upsertContact", StatusCode: 201, ResponseTimeMs: 40},
		{Timestamp: now, Path: "/upsertContact", StatusCode: 201, ResponseTimeMs: 60},
		{Timestamp: now, Path: "/upsertContact", StatusCode: 400, ResponseTimeMs: 1, RejectReason: models.RejectHoneypot},
		{Timestamp: now, Path: "/getCalendar", StatusCode: 500, ResponseTimeMs: 99},
	}))

	summary, err := svc.GetSummary(ctx, now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, int64(4), summary.TotalRequests)
	assert.InDelta(t, 50.0, summary.AvgResponseTime, 0.001)
	assert.InDelta(t, 50.0, summary.ErrorRate, 0.001)
	assert.InDelta(t, 25.0, summary.ClientErrorRate, 0.001)
	assert.InDelta(t, 25.0, summary.ServerErrorRate, 0.001)
	assert.Equal(t, map[string]int64{models.RejectHoneypot: 1}, summary.Rejections)
	require.NotEmpty(t, summary.TopEndpoints)
	assert.Equal(t, "/upsertContact", summary.TopEndpoints[0].Path)
}

func TestAnalyticsService_EmptyRange(t *testing.T) {
	svc := NewAnalyticsService(newLogRepository(t))
	now := time.Now()

	summary, err := svc.GetSummary(context.Background(), now.Add(-time.Hour), now)
	require.NoError(t, err)
	assert.Zero(t, summary.TotalRequests)
	assert.NotNil(t, summary.Rejections)
}

func TestAnalyticsService_CleanupOldLogs(t *testing.T) {
	repo := newLogRepository(t)
	svc := NewAnalyticsService(repo)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, repo.CreateBatch(ctx, []models.RequestLog{
		{Timestamp: now.AddDate(0, 0, -40), Path: "/getCalendar", StatusCode: 200},
		{Timestamp: now, Path: "/getCalendar", StatusCode: 200},
	}))

	deleted, err := svc.CleanupOldLogs(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}
