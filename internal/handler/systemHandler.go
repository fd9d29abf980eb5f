package handler

import (
	"net/http"

	"github.com/aman-churiwal/crm-relay/internal/circuitbreaker"
	"github.com/aman-churiwal/crm-relay/internal/refresher"
	"github.com/gin-gonic/gin"
)

// Handles operational endpoints for the CRM breaker and the token refresher
type SystemHandler struct {
	breaker   *circuitbreaker.CircuitBreaker
	refresher *refresher.Refresher
}

// refresher is nil when it runs in a separate process
func NewSystemHandler(breaker *circuitbreaker.CircuitBreaker, r *refresher.Refresher) *SystemHandler {
	return &SystemHandler{
		breaker:   breaker,
		refresher: r,
	}
}

// Returns the state of the CRM circuit breaker
func (h *SystemHandler) CircuitBreakerStatus(c *gin.Context) {
	metrics := h.breaker.Metrics()

	c.JSON(http.StatusOK, gin.H{
		"name":              metrics.Name,
		"state":             metrics.State.String(),
		"failure_count":     metrics.FailureCount,
		"last_failure_time": metrics.LastFailureTime,
		"last_state_change": metrics.LastStateChange,
	})
}

// Manually closes the CRM circuit breaker
func (h *SystemHandler) ResetCircuitBreaker(c *gin.Context) {
	h.breaker.Reset()

	c.JSON(http.StatusOK, gin.H{
		"message": "Circuit breaker reset successfully",
	})
}

// Returns the in-process token refresher status
func (h *SystemHandler) RefresherStatus(c *gin.Context) {
	if h.refresher == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Token refresher is not running in this process",
		})
		return
	}

	c.JSON(http.StatusOK, h.refresher.Status())
}
