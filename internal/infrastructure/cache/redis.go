package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/bimakw/stage-rebalancer/internal/config"
)

// ErrCacheMiss indicates the key was not found in cache
var ErrCacheMiss = errors.New("cache miss")

// SignalsKey is the cache key of the derived market signals
const SignalsKey = "signals:market"

// LatestSnapshotKey is the cache key of a user's newest snapshot
func LatestSnapshotKey(email string) string {
	return "snapshot:latest:" + email
}

// RedisCache stores JSON values in Redis. A nil *RedisCache is valid and
// behaves as an always-empty cache.
type RedisCache struct {
	client     *redis.Client
	logger     *zap.Logger
	defaultTTL time.Duration
}

// NewRedisCache connects to Redis and verifies the connection
func NewRedisCache(cfg config.RedisConfig, defaultTTL time.Duration, logger *zap.Logger) (*RedisCache, error) {
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

	logger.Info("Connected to Redis",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.Duration("default_ttl", defaultTTL),
	)

	return NewRedisCacheFromClient(client, defaultTTL, logger), nil
}

// NewRedisCacheFromClient wraps an existing client without pinging it
func NewRedisCacheFromClient(client *redis.Client, defaultTTL time.Duration, logger *zap.Logger) *RedisCache {
	return &RedisCache{
		client:     client,
		logger:     logger,
		defaultTTL: defaultTTL,
	}
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}

// Get decodes the value at key into dest
func (c *RedisCache) Get(ctx context.Context, key string, dest interface{}) error {
	if c == nil {
		return ErrCacheMiss
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return fmt.Errorf("failed to get %s from cache: %w", key, err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to decode cached %s: %w", key, err)
	}
	return nil
}

// Set stores value at key for ttl; a non-positive ttl uses the default
func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if c == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s for cache: %w", key, err)
	}
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set %s in cache: %w", key, err)
	}
	return nil
}

// Delete removes keys. Keys are exact names, never patterns.
func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if c == nil || len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete from cache: %w", err)
	}
	return nil
}

// HealthCheck checks if Redis is reachable
func (c *RedisCache) HealthCheck(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Fetch implements cache-aside: it returns the cached value at key, or
// calls load and caches a non-nil result for ttl. Cache failures are
// logged and never fail the call.
func Fetch[T any](ctx context.Context, c *RedisCache, key string, ttl time.Duration, load func(context.Context) (*T, error)) (*T, error) {
	var cached T
	switch err := c.Get(ctx, key, &cached); {
	case err == nil:
		c.logger.Debug("Cache hit", zap.String("key", key))
		return &cached, nil
	case !errors.Is(err, ErrCacheMiss):
		c.logger.Warn("Cache read failed", zap.String("key", key), zap.Error(err))
	}

	value, err := load(ctx)
	if err != nil || value == nil {
		return value, err
	}

	if err := c.Set(ctx, key, value, ttl); err != nil {
		c.logger.Warn("Cache write failed", zap.String("key", key), zap.Error(err))
	}
	return value, nil
}
