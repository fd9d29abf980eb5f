package ratelimit

import (
	"sync"
	"sync/atomic"
	"time"
)

// Global is a process-wide request counter zeroed at every window boundary.
// Resetting on an interval instead of sliding means a burst straddling a
// boundary can admit up to twice the limit in a short span.
type Global struct {
	limit    int64
	window   time.Duration
	count    atomic.Int64
	stop     chan struct{}
	stopOnce sync.Once
}

func NewGlobal(limit int, window time.Duration) *Global {
	g := &Global{
		limit:  int64(limit),
		window: window,
		stop:   make(chan struct{}),
	}

	go g.run()

	return g
}

// TryAcquire counts one request and reports whether it fits in the current window.
func (g *Global) TryAcquire() bool {
	return g.count.Add(1) <= g.limit
}

func (g *Global) Limit() int {
	return int(g.limit)
}

func (g *Global) Window() time.Duration {
	return g.window
}

func (g *Global) Stop() {
	g.stopOnce.Do(func() { close(g.stop) })
}

func (g *Global) run() {
	ticker := time.NewTicker(g.window)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			g.reset()
		case <-g.stop:
			return
		}
	}
}

func (g *Global) reset() {
	g.count.Store(0)
}
