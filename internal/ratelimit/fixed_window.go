package ratelimit

import (
	"sync"
	"time"
)

type fixedWindowEntry struct {
	count int
	start time.Time
}

// FixedWindowLimiter counts requests per key in windows that start at the
// key's first request.
type FixedWindowLimiter struct {
	mu      sync.Mutex
	entries map[string]*fixedWindowEntry
	limit   int
	window  time.Duration
	now     func() time.Time
	janitor *janitor
}

func NewFixedWindow(limit int, window time.Duration) *FixedWindowLimiter {
	f := &FixedWindowLimiter{
		entries: make(map[string]*fixedWindowEntry),
		limit:   limit,
		window:  window, // Window of time duration
		now:     time.Now,
	}
	f.janitor = startJanitor(window, f.sweep)
	return f
}

func (f *FixedWindowLimiter) Allow(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	entry := f.current(key, f.now())
	entry.count++

	return entry.count <= f.limit
}

func (f *FixedWindowLimiter) Remaining(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	entry := f.current(key, f.now())
	remaining := f.limit - entry.count
	if remaining < 0 {
		remaining = 0
	}

	return remaining
}

func (f *FixedWindowLimiter) Limit() int {
	return f.limit
}

func (f *FixedWindowLimiter) Window() time.Duration {
	return f.window
}

// Returns the time at which the limit resets
func (f *FixedWindowLimiter) Reset(key string) time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.current(key, f.now()).start.Add(f.window)
}

func (f *FixedWindowLimiter) Stop() {
	f.janitor.Stop()
}

// current returns key's entry, starting a new window when the old one has
// elapsed. Caller holds f.mu.
func (f *FixedWindowLimiter) current(key string, now time.Time) *fixedWindowEntry {
	entry, ok := f.entries[key]
	if !ok || now.Sub(entry.start) >= f.window {
		entry = &fixedWindowEntry{start: now}
		f.entries[key] = entry
	}
	return entry
}

func (f *FixedWindowLimiter) sweep(time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	for key, entry := range f.entries {
		if now.Sub(entry.start) >= f.window {
			delete(f.entries, key)
		}
	}
}
