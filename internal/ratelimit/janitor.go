package ratelimit

import (
	"sync"
	"time"
)

// janitor periodically drops idle keys so the per-IP maps stay bounded.
type janitor struct {
	stop     chan struct{}
	stopOnce sync.Once
}

func startJanitor(every time.Duration, sweep func(now time.Time)) *janitor {
	j := &janitor{stop: make(chan struct{})}

	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()

		for {
			select {
			case now := <-ticker.C:
				sweep(now)
			case <-j.stop:
				return
			}
		}
	}()

	return j
}

func (j *janitor) Stop() {
	j.stopOnce.Do(func() { close(j.stop) })
}
