package ratelimit

import (
	"time"
)

// Limiter caps requests per key (client IP) within a window. State is
// process-local.
type Limiter interface {
	Allow(key string) bool

	Remaining(key string) int

	Limit() int

	Window() time.Duration

	// Returns the time at which key regains capacity
	Reset(key string) time.Time

	// Stops background cleanup
	Stop()
}
