package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/aman-churiwal/crm-relay/internal/metrics"
	"github.com/aman-churiwal/crm-relay/internal/models"
	"github.com/aman-churiwal/crm-relay/internal/ratelimit"
	"github.com/gin-gonic/gin"
)

const (
	globalLimitMessage = "Too many requests, please try again later."
	ipLimitMessage     = "Too many requests from this IP, please try again after a minute."
)

// GlobalRateLimit caps the whole process, regardless of caller.
func GlobalRateLimit(limiter *ratelimit.Global, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.TryAcquire() {
			m.RecordRejection(models.RejectGlobalRateLimit)
			reject(c, http.StatusTooManyRequests, models.RejectGlobalRateLimit, globalLimitMessage)
			return
		}

		c.Next()
	}
}

// IPRateLimit caps each client address independently.
func IPRateLimit(limiter ratelimit.Limiter, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := clientIP(c)

		allowed := limiter.Allow(key)
		remaining := limiter.Remaining(key)
		resetTime := limiter.Reset(key)

		c.Header("X-RateLimit-Limit", strconv.Itoa(limiter.Limit()))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(resetTime.Unix(), 10))

		if !allowed {
			retryAfter := int(time.Until(resetTime).Seconds() + 0.5)
			if retryAfter < 0 {
				retryAfter = 0
			}

			c.Header("Retry-After", strconv.Itoa(retryAfter))
			m.RecordRejection(models.RejectIPRateLimit)
			reject(c, http.StatusTooManyRequests, models.RejectIPRateLimit, ipLimitMessage)
			return
		}

		c.Next()
	}
}
