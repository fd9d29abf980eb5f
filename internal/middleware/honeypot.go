package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/aman-churiwal/crm-relay/internal/metrics"
	"github.com/aman-churiwal/crm-relay/internal/models"
	"github.com/gin-gonic/gin"
)

const (
	honeypotField = "website"
	maxBodyBytes  = 1 << 20
)

// Honeypot rejects submissions that filled in the hidden website field. The
// body is buffered and restored so the handler can still bind it.
func Honeypot(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body == nil {
			c.Next()
			return
		}

		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes+1))
		c.Request.Body.Close()
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		if len(body) > maxBodyBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Request body too large"})
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		if filledHoneypot(body) {
			log.Printf("[%s] Honeypot triggered from %s", c.GetString(RequestIDKey), clientIP(c))
			m.RecordRejection(models.RejectHoneypot)
			reject(c, http.StatusBadRequest, models.RejectHoneypot, "Bot detected")
			return
		}

		c.Next()
	}
}

func filledHoneypot(body []byte) bool {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return false
	}

	raw, ok := fields[honeypotField]
	if !ok {
		return false
	}

	var value interface{}
	if err := json.Unmarshal(raw, &value); err != nil {
		return false
	}

	switch v := value.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(v) != ""
	case []interface{}:
		return len(v) > 0
	case map[string]interface{}:
		return len(v) > 0
	default:
		return true
	}
}
