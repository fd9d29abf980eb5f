package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ClientIP resolves the caller's address when the relay sits behind depth
// trusted proxies. The candidates are the socket peer followed by the
// X-Forwarded-For hops from right to left; the entry at index depth is the
// client, clamped to the leftmost hop.
func ClientIP(r *http.Request, depth int) string {
	addrs := []string{remoteIP(r.RemoteAddr)}

	var hops []string
	for _, header := range r.Header.Values("X-Forwarded-For") {
		for _, hop := range strings.Split(header, ",") {
			if hop = strings.TrimSpace(hop); hop != "" {
				hops = append(hops, hop)
			}
		}
	}
	for i := len(hops) - 1; i >= 0; i-- {
		addrs = append(addrs, hops[i])
	}

	if depth < 0 {
		depth = 0
	}
	if depth > len(addrs)-1 {
		depth = len(addrs) - 1
	}
	return addrs[depth]
}

func remoteIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(strings.TrimSpace(remoteAddr))
	if err != nil {
		return strings.TrimSpace(remoteAddr)
	}
	return host
}

// ResolveClientIP stores the client address for the limiters and loggers.
func ResolveClientIP(depth int) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(ClientIPKey, ClientIP(c.Request, depth))
		c.Next()
	}
}
