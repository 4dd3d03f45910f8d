package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisCache(client), server
}

func TestRedisCacheGetSet(t *testing.T) {
	c, _ := newTestRedisCache(t)
	ctx := context.Background()

	if _, hit, err := c.Get(ctx, "k1"); err != nil || hit {
		t.Fatalf("expected miss, got hit=%t err=%v", hit, err)
	}

	if err := c.Set(ctx, "k1", []byte("v1"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	value, hit, err := c.Get(ctx, "k1")
	if err != nil || !hit {
		t.Fatalf("expected hit, got hit=%t err=%v", hit, err)
	}
	if string(value) != "v1" {
		t.Fatalf("value = %q, want v1", value)
	}

	m := c.Metrics()
	if m.Hits != 1 || m.Misses != 1 || m.Writes != 1 {
		t.Fatalf("metrics = %+v, want hits=1 misses=1 writes=1", m)
	}
}

func TestRedisCacheTTL(t *testing.T) {
	c, server := newTestRedisCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "k1", []byte("v1"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	server.FastForward(2 * time.Minute)

	if _, hit, _ := c.Get(ctx, "k1"); hit {
		t.Fatal("entry survived its ttl")
	}
}

func TestRedisCacheNonPositiveTTLDiscards(t *testing.T) {
	c, _ := newTestRedisCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "k1", []byte("v1"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, hit, _ := c.Get(ctx, "k1"); hit {
		t.Fatal("entry with zero ttl should not be stored")
	}
}

func TestRedisCacheInvalidate(t *testing.T) {
	c, _ := newTestRedisCache(t)
	ctx := context.Background()

	c.Set(ctx, "k1", []byte("v1"), time.Minute)
	if err := c.Invalidate(ctx, "k1"); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if err := c.Invalidate(ctx, "absent"); err != nil {
		t.Fatalf("Invalidate absent: %v", err)
	}

	if _, hit, _ := c.Get(ctx, "k1"); hit {
		t.Fatal("invalidated entry returned as hit")
	}
	if m := c.Metrics(); m.Invalidations != 1 {
		t.Fatalf("invalidations = %d, want 1", m.Invalidations)
	}
}

func TestRedisCacheInvalidatePrefix(t *testing.T) {
	c, _ := newTestRedisCache(t)
	ctx := context.Background()

	c.Set(ctx, "branch_summary:14:20250110", []byte("a"), time.Minute)
	c.Set(ctx, "branch_summary:14:current", []byte("b"), time.Minute)
	c.Set(ctx, "district_kpis:14:20250110", []byte("c"), time.Minute)

	if err := c.InvalidatePrefix(ctx, "branch_summary:"); err != nil {
		t.Fatalf("InvalidatePrefix: %v", err)
	}

	if _, hit, _ := c.Get(ctx, "branch_summary:14:current"); hit {
		t.Fatal("prefixed entry survived invalidation")
	}
	if _, hit, _ := c.Get(ctx, "district_kpis:14:20250110"); !hit {
		t.Fatal("unrelated entry was dropped")
	}
	if m := c.Metrics(); m.Invalidations != 2 {
		t.Fatalf("invalidations = %d, want 2", m.Invalidations)
	}
}
