package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/limaJavier/timetabler/internal/config"
)

var ErrCacheMiss = errors.New("cache miss")

// Repository abstracts persistence for cached payloads.
type Repository interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// NewRedis returns a configured Redis client.
func NewRedis(ctx context.Context, cfg config.CacheConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// RedisRepository stores JSON encoded values in Redis. A nil client behaves as an always empty cache
type RedisRepository struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedisRepository(client *redis.Client, logger *zap.Logger) *RedisRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisRepository{client: client, logger: logger}
}

// Get retrieves and unmarshals the cached value into the provided destination.
func (r *RedisRepository) Get(ctx context.Context, key string, dest any) error {
	if r.client == nil {
		return ErrCacheMiss
	}

	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		return fmt.Errorf("redis get %s: %w", key, err)
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("unmarshal cache value for %s: %w", key, err)
	}
	return nil
}

// Set marshals the provided value and stores it with the given TTL.
func (r *RedisRepository) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if r.client == nil {
		return nil
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value for %s: %w", key, err)
	}
	if err := r.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	r.logger.Debug("cached value", zap.String("key", key), zap.Int("bytes", len(payload)))
	return nil
}

// Close releases the underlying Redis connection if present.
func (r *RedisRepository) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}
