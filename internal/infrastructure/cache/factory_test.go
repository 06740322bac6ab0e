package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erp/commission/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func failingConnect(RedisConfig) (*RedisRunLock, error) {
	return nil, errors.New("dial tcp 127.0.0.1:6379: connect: connection refused")
}

func TestRunLockFactory_CreateLock(t *testing.T) {
	t.Run("redis disabled uses in-memory", func(t *testing.T) {
		f := NewRunLockFactory(config.RedisConfig{Enabled: false})
		f.connect = func(RedisConfig) (*RedisRunLock, error) {
			t.Fatal("connect must not be called when redis is disabled")
			return nil, nil
		}

		lock, err := f.CreateLock()
		require.NoError(t, err)
		assert.IsType(t, &InMemoryRunLock{}, lock)
	})

	t.Run("falls back when redis is unreachable", func(t *testing.T) {
		core, logs := observer.New(zap.WarnLevel)
		f := NewRunLockFactory(config.RedisConfig{Enabled: true, Host: "127.0.0.1", Port: 6379}, WithLogger(zap.New(core)))
		f.connect = failingConnect

		lock, err := f.CreateLock()
		require.NoError(t, err)
		assert.IsType(t, &InMemoryRunLock{}, lock)
		assert.Equal(t, 1, logs.FilterMessageSnippet("falling back to in-memory run lock").Len())
	})

	t.Run("fails without fallback", func(t *testing.T) {
		f := NewRunLockFactory(config.RedisConfig{Enabled: true, Host: "127.0.0.1", Port: 6379}, WithInMemoryFallback(false))
		f.connect = failingConnect

		lock, err := f.CreateLock()
		assert.Error(t, err)
		assert.Nil(t, lock)
	})

	t.Run("uses redis when reachable", func(t *testing.T) {
		var got RedisConfig
		f := NewRunLockFactory(config.RedisConfig{Enabled: true, Host: "redis", Port: 6380, DB: 2})
		f.connect = func(cfg RedisConfig) (*RedisRunLock, error) {
			got = cfg
			return NewRedisRunLockWithClient(redis.NewClient(&redis.Options{Addr: "redis:6380"}), ""), nil
		}

		lock, err := f.CreateLock()
		require.NoError(t, err)
		assert.IsType(t, &RedisRunLock{}, lock)
		assert.Equal(t, RedisConfig{Host: "redis", Port: 6380, DB: 2}, got)
		assert.NoError(t, lock.Close())
	})
}

func TestRedisRunLock_Guards(t *testing.T) {
	ctx := context.Background()

	t.Run("nil lock", func(t *testing.T) {
		var lock *RedisRunLock
		_, err := lock.Acquire(ctx, "run", time.Minute)
		assert.Error(t, err)
		assert.NoError(t, lock.Release(ctx, "run"))
	})

	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	lock := NewRedisRunLockWithClient(client, "")
	t.Cleanup(func() { _ = lock.Close() })

	t.Run("validates arguments before touching redis", func(t *testing.T) {
		_, err := lock.Acquire(ctx, "", time.Minute)
		assert.EqualError(t, err, "run lock key is empty")

		_, err = lock.Acquire(ctx, "run", 0)
		assert.EqualError(t, err, "run lock ttl must be positive")
	})

	t.Run("release of an unheld key is a no-op", func(t *testing.T) {
		assert.NoError(t, lock.Release(ctx, "run"))
	})

	t.Run("connection errors are wrapped", func(t *testing.T) {
		ok, err := lock.Acquire(ctx, "run", time.Minute)
		assert.False(t, ok)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to acquire run lock")
	})

	assert.Equal(t, defaultRunLockPrefix, lock.keyPrefix)
}
