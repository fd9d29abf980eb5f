package refresher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aman-churiwal/crm-relay/internal/storage"
	"github.com/google/uuid"
)

var ErrLockHeld = errors.New("refresh lock is held by another refresher")

// Locker serializes refresh cycles per tenant key.
type Locker interface {
	// Acquire takes the lock for key or fails with ErrLockHeld. The returned
	// release func must be called once the cycle is over.
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// LocalLocker serializes refreshers inside one process.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *LocalLocker) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	if !m.TryLock() {
		return nil, ErrLockHeld
	}
	return m.Unlock, nil
}

// RedisLocker holds a lease in redis so refreshers in different processes
// never rotate the same account concurrently.
type RedisLocker struct {
	redis *storage.RedisClient
}

func NewRedisLocker(redis *storage.RedisClient) *RedisLocker {
	return &RedisLocker{redis: redis}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	redisKey := "relay:lock:" + key
	owner := uuid.NewString()

	ok, err := l.redis.SetNX(ctx, redisKey, owner, ttl)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire refresh lock: %w", err)
	}
	if !ok {
		return nil, ErrLockHeld
	}

	release := func() {
		// the cycle ctx may already be done
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		l.redis.CompareAndDelete(releaseCtx, redisKey, owner)
	}
	return release, nil
}
