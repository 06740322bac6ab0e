package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/commission/internal/infrastructure/config"
	"go.uber.org/zap"
)

// RunLock guards a commission run key across callers
type RunLock interface {
	Acquire(ctx context.Context, runKey string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, runKey string) error
	Close() error
}

var (
	_ RunLock = (*RedisRunLock)(nil)
	_ RunLock = (*InMemoryRunLock)(nil)
)

// RunLockFactory creates run locks based on configuration
type RunLockFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
	connect               func(RedisConfig) (*RedisRunLock, error)
}

// RunLockFactoryOption is a functional option for configuring the factory
type RunLockFactoryOption func(*RunLockFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) RunLockFactoryOption {
	return func(f *RunLockFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to the in-memory lock
// when Redis is unavailable. Default is true.
func WithInMemoryFallback(allow bool) RunLockFactoryOption {
	return func(f *RunLockFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewRunLockFactory creates a new factory
func NewRunLockFactory(cfg config.RedisConfig, opts ...RunLockFactoryOption) *RunLockFactory {
	f := &RunLockFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
		connect:               NewRedisRunLock,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// CreateRedisLock connects a Redis-backed lock
func (f *RunLockFactory) CreateRedisLock() (*RedisRunLock, error) {
	lock, err := f.connect(RedisConfig{
		Host:     f.redisConfig.Host,
		Port:     f.redisConfig.Port,
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis run lock: %w", err)
	}
	return lock, nil
}

// CreateLock returns a Redis lock when Redis is enabled and reachable, and
// an in-memory lock otherwise (unless fallback is disabled).
// WARNING: in-memory locks do not span process instances.
func (f *RunLockFactory) CreateLock() (RunLock, error) {
	if !f.redisConfig.Enabled {
		f.logger.Info("Redis disabled, using in-memory run lock")
		return NewInMemoryRunLock(), nil
	}

	lock, err := f.CreateRedisLock()
	if err == nil {
		f.logger.Info("Using Redis run lock", zap.String("addr", f.redisConfig.Addr()))
		return lock, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("redis required for run lock but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory run lock. "+
		"Concurrent runs on other instances will not be blocked.",
		zap.Error(err),
	)
	return NewInMemoryRunLock(), nil
}
