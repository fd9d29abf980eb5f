package handler

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/aman-churiwal/crm-relay/internal/service"
	"github.com/gin-gonic/gin"
)

type AnalyticsHandler struct {
	service *service.AnalyticsService
}

func NewAnalyticsHandler(service *service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{service: service}
}

// Handles GET /admin/summary
func (h *AnalyticsHandler) GetSummary(c *gin.Context) {
	from, to, err := parseTimeRange(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	summary, err := h.service.GetSummary(c.Request.Context(), from, to)
	if err != nil {
		log.Printf("Failed to build request summary: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
		return
	}

	c.JSON(http.StatusOK, summary)
}

// Handles DELETE /admin/logs
func (h *AnalyticsHandler) CleanupLogs(c *gin.Context) {
	retentionDays := 30
	if daysStr := c.Query("older_than_days"); daysStr != "" {
		days, err := strconv.Atoi(daysStr)
		if err != nil || days < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "older_than_days must be a positive integer"})
			return
		}
		retentionDays = days
	}

	deleted, err := h.service.CleanupOldLogs(c.Request.Context(), retentionDays)
	if err != nil {
		log.Printf("Failed to delete old request logs: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"deleted":         deleted,
		"older_than_days": retentionDays,
	})
}

// Parses 'from' and 'to' query parameters
func parseTimeRange(c *gin.Context) (time.Time, time.Time, error) {
	// Default: last 24 hours
	to := time.Now()
	from := to.Add(-24 * time.Hour)

	if fromStr := c.Query("from"); fromStr != "" {
		parsed, err := parseTimeParam(fromStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		from = parsed
	}

	if toStr := c.Query("to"); toStr != "" {
		parsed, err := parseTimeParam(toStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		to = parsed
	}

	return from, to, nil
}

// Accepts RFC3339 or a Unix timestamp
func parseTimeParam(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err == nil {
		return t, nil
	}

	if timestamp, convErr := strconv.ParseInt(s, 10, 64); convErr == nil {
		return time.Unix(timestamp, 0), nil
	}

	return time.Time{}, err
}
