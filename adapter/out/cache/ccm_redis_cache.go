package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"ccm_server/core/port/out"
)

const redisKeyPrefix = "ccm:reports:"

// RedisCache is the remote cache variant, shared across instances. Expiration
// is delegated to Redis; the Expirations counter therefore stays zero here.
type RedisCache struct {
	client *redis.Client

	hits          atomic.Int64
	misses        atomic.Int64
	writes        atomic.Int64
	invalidations atomic.Int64
}

var _ out.ReportCache = (*RedisCache)(nil)

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := c.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		c.misses.Add(1)
		return nil, false, nil
	}
	if err != nil {
		c.misses.Add(1)
		return nil, false, err
	}
	c.hits.Add(1)
	return value, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := c.client.Set(ctx, redisKeyPrefix+key, value, ttl).Err(); err != nil {
		return err
	}
	c.writes.Add(1)
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context, key string) error {
	removed, err := c.client.Del(ctx, redisKeyPrefix+key).Result()
	if err != nil {
		return err
	}
	c.invalidations.Add(removed)
	return nil
}

// InvalidatePrefix walks matching keys with SCAN to avoid blocking the
// server the way KEYS would.
func (c *RedisCache) InvalidatePrefix(ctx context.Context, prefix string) error {
	iter := c.client.Scan(ctx, 0, redisKeyPrefix+prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		removed, err := c.client.Del(ctx, iter.Val()).Result()
		if err != nil {
			return err
		}
		c.invalidations.Add(removed)
	}
	return iter.Err()
}

func (c *RedisCache) Metrics() out.CacheMetrics {
	return out.CacheMetrics{
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
		Writes:        c.writes.Load(),
		Invalidations: c.invalidations.Load(),
	}
}
