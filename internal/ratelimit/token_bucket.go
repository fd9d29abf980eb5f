package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// TokenBucket gives every key a bucket of limit tokens refilled evenly over
// the window.
type TokenBucket struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	capacity int
	window   time.Duration
	every    rate.Limit
	now      func() time.Time
	janitor  *janitor
}

func NewTokenBucket(capacity int, window time.Duration) *TokenBucket {
	t := &TokenBucket{
		buckets:  make(map[string]*bucket),
		capacity: capacity,
		window:   window,
		every:    rate.Every(window / time.Duration(capacity)),
		now:      time.Now,
	}
	t.janitor = startJanitor(window, t.sweep)
	return t
}

func (t *TokenBucket) Allow(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	return t.get(key, now).limiter.AllowN(now, 1)
}

func (t *TokenBucket) Remaining(key string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	tokens := t.get(key, now).limiter.TokensAt(now)
	if tokens < 0 {
		return 0
	}
	return int(tokens)
}

func (t *TokenBucket) Limit() int {
	return t.capacity
}

func (t *TokenBucket) Window() time.Duration {
	return t.window
}

// Returns when the bucket is full again
func (t *TokenBucket) Reset(key string) time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	tokens := t.get(key, now).limiter.TokensAt(now)
	missing := float64(t.capacity) - tokens
	if missing <= 0 {
		return now
	}

	perToken := t.window / time.Duration(t.capacity)
	return now.Add(time.Duration(missing * float64(perToken)))
}

func (t *TokenBucket) Stop() {
	t.janitor.Stop()
}

// Caller holds t.mu.
func (t *TokenBucket) get(key string, now time.Time) *bucket {
	b, ok := t.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(t.every, t.capacity)}
		t.buckets[key] = b
	}
	b.lastSeen = now
	return b
}

// A bucket idle for a full window has refilled and can be forgotten.
func (t *TokenBucket) sweep(time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	for key, b := range t.buckets {
		if now.Sub(b.lastSeen) >= t.window {
			delete(t.buckets, key)
		}
	}
}
