package redis

import (
	"context"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"portfolio_tracker/internal/port"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var _ port.Cache = (*Cache)(nil)

// Cache is a Redis-backed implementation of the cache port for deployments
// that want cached entries to survive restarts without file snapshots.
// Redis handles TTL expiry and sweeping natively. All faults fail empty:
// a Redis error is a cache miss, never a blocked call.
type Cache struct {
	client  *redis.Client
	logger  *zap.Logger
	timeout time.Duration
}

// New creates a Redis cache adapter around an existing client.
func New(client *redis.Client, logger *zap.Logger) *Cache {
	return &Cache{
		client:  client,
		logger:  logger.Named("RedisCache"),
		timeout: 2 * time.Second,
	}
}

// Ping reports connectivity, for health checks.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Cache) Get(key string, dst any) bool {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("redis get failed, treating as miss", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		c.logger.Warn("failed to decode redis entry", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (c *Cache) Set(key string, value any, ttl time.Duration) {
	raw, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("failed to encode redis value", zap.String("key", key), zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	if err := c.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		c.logger.Warn("redis set failed", zap.String("key", key), zap.Error(err))
	}
}
