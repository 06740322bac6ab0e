package cache

import (
	"context"
	"errors"
	"sync"
	"time"
)

// InMemoryRunLock implements a run lock local to this process.
// It is suitable for single-instance deployments and testing.
type InMemoryRunLock struct {
	mu    sync.Mutex
	held  map[string]time.Time
	clock func() time.Time
}

// NewInMemoryRunLock creates an empty lock table
func NewInMemoryRunLock() *InMemoryRunLock {
	return &InMemoryRunLock{
		held:  make(map[string]time.Time),
		clock: time.Now,
	}
}

// Acquire takes the lock for runKey unless an unexpired holder exists
func (l *InMemoryRunLock) Acquire(ctx context.Context, runKey string, ttl time.Duration) (bool, error) {
	if runKey == "" {
		return false, errors.New("run lock key is empty")
	}
	if ttl <= 0 {
		return false, errors.New("run lock ttl must be positive")
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if expiresAt, ok := l.held[runKey]; ok && now.Before(expiresAt) {
		return false, nil
	}
	l.held[runKey] = now.Add(ttl)
	return true, nil
}

// Release drops the lock for runKey
func (l *InMemoryRunLock) Release(_ context.Context, runKey string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, runKey)
	return nil
}

// Close is a no-op
func (l *InMemoryRunLock) Close() error {
	return nil
}

// Size returns the number of unexpired locks (for testing/monitoring)
func (l *InMemoryRunLock) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	n := 0
	for _, expiresAt := range l.held {
		if now.Before(expiresAt) {
			n++
		}
	}
	return n
}
