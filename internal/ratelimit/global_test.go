package ratelimit

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGlobal_RejectsOverLimitUntilReset(t *testing.T) {
	g := NewGlobal(10, time.Hour)
	defer g.Stop()

	for i := 0; i < 10; i++ {
		require.True(t, g.TryAcquire(), "request %d should pass", i+1)
	}
	assert.False(t, g.TryAcquire())

	g.reset()

	assert.True(t, g.TryAcquire())
}

func TestGlobal_ConcurrentAcquireNeverExceedsLimit(t *testing.T) {
	g := NewGlobal(10, time.Hour)
	defer g.Stop()

	var admitted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.TryAcquire() {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(10), admitted.Load())
}

func TestGlobal_TickerResetsAtWindowBoundary(t *testing.T) {
	g := NewGlobal(1, 20*time.Millisecond)
	defer g.Stop()

	// drain whatever the current window still allows
	for g.TryAcquire() {
	}

	assert.Eventually(t, func() bool {
		return g.count.Load() == 0
	}, time.Second, 5*time.Millisecond)
}

func TestGlobal_StopIsIdempotent(t *testing.T) {
	g := NewGlobal(1, time.Millisecond)
	g.Stop()
	assert.NotPanics(t, g.Stop)
}
