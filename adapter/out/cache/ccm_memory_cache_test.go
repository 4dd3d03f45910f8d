package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemoryCacheGetSet(t *testing.T) {
	c := NewMemoryCache(10)
	defer c.Close()
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

func TestMemoryCacheNonPositiveTTLDiscards(t *testing.T) {
	c := NewMemoryCache(10)
	defer c.Close()
	ctx := context.Background()

	if err := c.Set(ctx, "k1", []byte("v1"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, hit, _ := c.Get(ctx, "k1"); hit {
		t.Fatal("entry with zero ttl should not be stored")
	}
	if m := c.Metrics(); m.Writes != 0 {
		t.Fatalf("writes = %d, want 0", m.Writes)
	}
}

func TestMemoryCacheExpiration(t *testing.T) {
	c := NewMemoryCache(10)
	defer c.Close()
	ctx := context.Background()

	if err := c.Set(ctx, "k1", []byte("v1"), time.Millisecond); err != nil {
		t.Fatalf("Set: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	if _, hit, _ := c.Get(ctx, "k1"); hit {
		t.Fatal("expired entry returned as hit")
	}
	m := c.Metrics()
	if m.Expirations != 1 {
		t.Fatalf("expirations = %d, want 1", m.Expirations)
	}
	if m.Misses != 1 {
		t.Fatalf("misses = %d, want 1", m.Misses)
	}
}

func TestMemoryCacheInvalidate(t *testing.T) {
	c := NewMemoryCache(10)
	defer c.Close()
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

func TestMemoryCacheInvalidatePrefix(t *testing.T) {
	c := NewMemoryCache(10)
	defer c.Close()
	ctx := context.Background()

	c.Set(ctx, "branch_summary:14:20250110", []byte("a"), time.Minute)
	c.Set(ctx, "branch_summary:14:current", []byte("b"), time.Minute)
	c.Set(ctx, "district_kpis:14:20250110", []byte("c"), time.Minute)

	if err := c.InvalidatePrefix(ctx, "branch_summary:"); err != nil {
		t.Fatalf("InvalidatePrefix: %v", err)
	}

	if _, hit, _ := c.Get(ctx, "branch_summary:14:20250110"); hit {
		t.Fatal("prefixed entry survived invalidation")
	}
	if _, hit, _ := c.Get(ctx, "district_kpis:14:20250110"); !hit {
		t.Fatal("unrelated entry was dropped")
	}
	if m := c.Metrics(); m.Invalidations != 2 {
		t.Fatalf("invalidations = %d, want 2", m.Invalidations)
	}
}

func TestMemoryCacheEvictsLRU(t *testing.T) {
	c := NewMemoryCache(2)
	defer c.Close()
	ctx := context.Background()

	c.Set(ctx, "k1", []byte("v1"), time.Minute)
	c.Set(ctx, "k2", []byte("v2"), time.Minute)

	// Touch k1 so k2 becomes least recently used.
	if _, hit, _ := c.Get(ctx, "k1"); !hit {
		t.Fatal("k1 missing before eviction")
	}

	c.Set(ctx, "k3", []byte("v3"), time.Minute)

	if _, hit, _ := c.Get(ctx, "k2"); hit {
		t.Fatal("k2 should have been evicted")
	}
	if _, hit, _ := c.Get(ctx, "k1"); !hit {
		t.Fatal("k1 should have survived")
	}
	if _, hit, _ := c.Get(ctx, "k3"); !hit {
		t.Fatal("k3 should be present")
	}
}
