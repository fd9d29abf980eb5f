package middleware

import "github.com/gin-gonic/gin"

// Keys set on the gin context by this package.
const (
	RequestIDKey    = "request_id"
	ClientIPKey     = "client_ip"
	RejectReasonKey = "reject_reason"
)

// reject aborts the request with status and a JSON error, and records why.
func reject(c *gin.Context, status int, reason, message string) {
	c.Set(RejectReasonKey, reason)
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}

// clientIP returns the address resolved by ResolveClientIP, falling back to
// the socket peer.
func clientIP(c *gin.Context) string {
	if ip := c.GetString(ClientIPKey); ip != "" {
		return ip
	}
	return remoteIP(c.Request.RemoteAddr)
}
