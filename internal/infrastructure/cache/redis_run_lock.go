package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultRunLockPrefix = "commission:run-lock:"

// releaseScript deletes the key only while it still holds our token, so a
// lock that expired and was taken by another instance is left alone
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// RedisRunLock implements a run lock shared by every instance pointing at
// the same Redis
type RedisRunLock struct {
	client    *redis.Client
	keyPrefix string
	script    *redis.Script

	mu     sync.Mutex
	tokens map[string]string
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewRedisRunLock connects to Redis and verifies the connection
func NewRedisRunLock(cfg RedisConfig) (*RedisRunLock, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisRunLockWithClient(client, ""), nil
}

// NewRedisRunLockWithClient wraps an existing client
func NewRedisRunLockWithClient(client *redis.Client, keyPrefix string) *RedisRunLock {
	if keyPrefix == "" {
		keyPrefix = defaultRunLockPrefix
	}
	return &RedisRunLock{
		client:    client,
		keyPrefix: keyPrefix,
		script:    redis.NewScript(releaseScript),
		tokens:    make(map[string]string),
	}
}

// Acquire takes the lock for runKey with SET NX. It returns false when
// another holder has it.
func (l *RedisRunLock) Acquire(ctx context.Context, runKey string, ttl time.Duration) (bool, error) {
	if l == nil || l.client == nil {
		return false, errors.New("run lock client not configured")
	}
	if runKey == "" {
		return false, errors.New("run lock key is empty")
	}
	if ttl <= 0 {
		return false, errors.New("run lock ttl must be positive")
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.keyPrefix+runKey, token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire run lock: %w", err)
	}
	if !ok {
		return false, nil
	}

	l.mu.Lock()
	l.tokens[runKey] = token
	l.mu.Unlock()
	return true, nil
}

// Release drops the lock if this instance still holds it
func (l *RedisRunLock) Release(ctx context.Context, runKey string) error {
	if l == nil || l.client == nil {
		return nil
	}

	l.mu.Lock()
	token, ok := l.tokens[runKey]
	delete(l.tokens, runKey)
	l.mu.Unlock()
	if !ok {
		return nil
	}

	if err := l.script.Run(ctx, l.client, []string{l.keyPrefix + runKey}, token).Err(); err != nil {
		return fmt.Errorf("failed to release run lock: %w", err)
	}
	return nil
}

// Close closes the Redis client
func (l *RedisRunLock) Close() error {
	return l.client.Close()
}
