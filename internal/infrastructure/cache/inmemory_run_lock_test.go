package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryRunLock_Acquire(t *testing.T) {
	ctx := context.Background()

	t.Run("first caller wins", func(t *testing.T) {
		lock := NewInMemoryRunLock()

		ok, err := lock.Acquire(ctx, "AUTO_COMM_FULLPAID_2026-02_MONTHLY", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = lock.Acquire(ctx, "AUTO_COMM_FULLPAID_2026-02_MONTHLY", time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, 1, lock.Size())
	})

	t.Run("keys are independent", func(t *testing.T) {
		lock := NewInMemoryRunLock()

		ok, err := lock.Acquire(ctx, "AUTO_COMM_FULLPAID_2026-02_MONTHLY", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = lock.Acquire(ctx, "AUTO_COMM_FULLPAID_2026-03_MONTHLY", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("expired lock can be retaken", func(t *testing.T) {
		lock := NewInMemoryRunLock()
		now := time.Date(2026, 3, 1, 2, 0, 0, 0, time.UTC)
		lock.clock = func() time.Time { return now }

		ok, err := lock.Acquire(ctx, "run", time.Minute)
		require.NoError(t, err)
		require.True(t, ok)

		now = now.Add(2 * time.Minute)
		assert.Equal(t, 0, lock.Size())

		ok, err = lock.Acquire(ctx, "run", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("rejects bad arguments", func(t *testing.T) {
		lock := NewInMemoryRunLock()

		_, err := lock.Acquire(ctx, "", time.Minute)
		assert.Error(t, err)

		_, err = lock.Acquire(ctx, "run", 0)
		assert.Error(t, err)
	})

	t.Run("honours cancelled context", func(t *testing.T) {
		lock := NewInMemoryRunLock()
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		ok, err := lock.Acquire(cancelled, "run", time.Minute)
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, ok)
	})
}

func TestInMemoryRunLock_Release(t *testing.T) {
	ctx := context.Background()
	lock := NewInMemoryRunLock()

	ok, err := lock.Acquire(ctx, "run", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, lock.Release(ctx, "run"))
	assert.Equal(t, 0, lock.Size())

	ok, err = lock.Acquire(ctx, "run", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.NoError(t, lock.Release(ctx, "never-held"))
	assert.NoError(t, lock.Close())
}

func TestInMemoryRunLock_Concurrent(t *testing.T) {
	ctx := context.Background()
	lock := NewInMemoryRunLock()

	var (
		wg      sync.WaitGroup
		winners atomic.Int32
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := lock.Acquire(ctx, "run", time.Minute)
			if err == nil && ok {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), winners.Load())
}
