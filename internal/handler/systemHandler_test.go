package handler

import (
	"errors"
	"net/http"
	"testing"

	"github.com/aman-churiwal/crm-relay/internal/circuitbreaker"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystemHandler_CircuitBreaker(t *testing.T) {
	breaker := circuitbreaker.New(circuitbreaker.Config{Name: "crm", MaxFailures: 1})
	breaker.Execute(func() error { return errors.New("down") })
	require.Equal(t, circuitbreaker.StateOpen, breaker.State())

	h := NewSystemHandler(breaker, nil)
	r := gin.New()
	r.GET("/admin/circuit-breaker", h.CircuitBreakerStatus)
	r.POST("/admin/circuit-breaker/reset", h.ResetCircuitBreaker)
	r.GET("/admin/refresher", h.RefresherStatus)

	w := serve(r, http.MethodGet, "/admin/circuit-breaker", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"state":"open"`)

	w = serve(r, http.MethodPost, "/admin/circuit-breaker/reset", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, circuitbreaker.StateClosed, breaker.State())

	w = serve(r, http.MethodGet, "/admin/refresher", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
