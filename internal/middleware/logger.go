package middleware

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"
)

func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()

		requestID := c.GetString(RequestIDKey)

		if reason := c.GetString(RejectReasonKey); reason != "" {
			log.Printf("[%s] %s %s - %d - %v - %s - rejected: %s",
				requestID, method, path, statusCode, latency, clientIP(c), reason)
			return
		}

		log.Printf("[%s] %s %s - %d - %v - %s",
			requestID,
			method,
			path,
			statusCode,
			latency,
			clientIP(c),
		)
	}
}
