package ratelimit

import (
	"sync"
	"time"
)

// SlidingWindowLimiter keeps the timestamps of admitted requests per key and
// admits a request while fewer than limit fall inside the trailing window.
type SlidingWindowLimiter struct {
	mu      sync.Mutex
	hits    map[string][]time.Time
	limit   int
	window  time.Duration
	now     func() time.Time
	janitor *janitor
}

func NewSlidingWindow(limit int, window time.Duration) *SlidingWindowLimiter {
	s := &SlidingWindowLimiter{
		hits:   make(map[string][]time.Time),
		limit:  limit,
		window: window,
		now:    time.Now,
	}
	s.janitor = startJanitor(window, s.sweep)
	return s
}

func (s *SlidingWindowLimiter) Allow(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	hits := s.prune(key, now)

	if len(hits) >= s.limit {
		return false
	}

	s.hits[key] = append(hits, now)
	return true
}

func (s *SlidingWindowLimiter) Remaining(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	remaining := s.limit - len(s.prune(key, s.now()))
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

func (s *SlidingWindowLimiter) Limit() int {
	return s.limit
}

func (s *SlidingWindowLimiter) Window() time.Duration {
	return s.window
}

// Reset time is when the oldest admitted request leaves the window
func (s *SlidingWindowLimiter) Reset(key string) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	hits := s.prune(key, now)
	if len(hits) == 0 {
		return now
	}
	return hits[0].Add(s.window)
}

func (s *SlidingWindowLimiter) Stop() {
	s.janitor.Stop()
}

// prune drops timestamps that left the window. Caller holds s.mu.
func (s *SlidingWindowLimiter) prune(key string, now time.Time) []time.Time {
	hits := s.hits[key]
	windowStart := now.Add(-s.window)

	i := 0
	for i < len(hits) && !hits[i].After(windowStart) {
		i++
	}
	hits = hits[i:]

	if len(hits) == 0 {
		delete(s.hits, key)
		return nil
	}
	s.hits[key] = hits
	return hits
}

func (s *SlidingWindowLimiter) sweep(time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key := range s.hits {
		s.prune(key, now)
	}
}
