package ratelimit

import (
	"time"
)

func NewLimiter(algorithm string, limit int, window time.Duration) Limiter {
	switch algorithm {
	case "token_bucket":
		return NewTokenBucket(limit, window)
	case "sliding_window":
		return NewSlidingWindow(limit, window)
	default: // "fixed_window", or unset
		return NewFixedWindow(limit, window)
	}
}
