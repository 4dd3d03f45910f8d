// Package cache provides the dataset cache variants: an in-process LRU map
// and a remote Redis-backed store, selected by configuration.
package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"ccm_server/core/port/out"
)

const defaultMaxItems = 10000

// lruNode is a doubly linked list node for O(1) LRU bookkeeping.
type lruNode struct {
	key  string
	prev *lruNode
	next *lruNode
}

type memEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryCache is the in-process cache variant: TTL per entry, O(1) LRU
// eviction at capacity, cumulative metrics.
type MemoryCache struct {
	mu       sync.Mutex
	data     map[string]*memEntry
	nodes    map[string]*lruNode
	head     *lruNode
	tail     *lruNode
	maxItems int

	metrics out.CacheMetrics

	stop     chan struct{}
	stopOnce sync.Once
}

var _ out.ReportCache = (*MemoryCache)(nil)

func NewMemoryCache(maxItems int) *MemoryCache {
	if maxItems <= 0 {
		maxItems = defaultMaxItems
	}

	head := &lruNode{}
	tail := &lruNode{}
	head.next = tail
	tail.prev = head

	c := &MemoryCache{
		data:     make(map[string]*memEntry),
		nodes:    make(map[string]*lruNode),
		head:     head,
		tail:     tail,
		maxItems: maxItems,
		stop:     make(chan struct{}),
	}
	go c.janitor()
	return c
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.data[key]
	if !ok {
		c.metrics.Misses++
		return nil, false, nil
	}
	if time.Now().After(entry.expiresAt) {
		c.remove(key)
		c.metrics.Expirations++
		c.metrics.Misses++
		return nil, false, nil
	}

	c.moveToFront(c.nodes[key])
	c.metrics.Hits++
	return entry.value, true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.data[key]; !exists && len(c.data) >= c.maxItems {
		c.evictLRU()
	}

	c.data[key] = &memEntry{value: value, expiresAt: time.Now().Add(ttl)}
	if node, ok := c.nodes[key]; ok {
		c.moveToFront(node)
	} else {
		c.addToFront(key)
	}
	c.metrics.Writes++
	return nil
}

func (c *MemoryCache) Invalidate(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.data[key]; ok {
		c.remove(key)
		c.metrics.Invalidations++
	}
	return nil
}

func (c *MemoryCache) InvalidatePrefix(_ context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.data {
		if strings.HasPrefix(key, prefix) {
			c.remove(key)
			c.metrics.Invalidations++
		}
	}
	return nil
}

func (c *MemoryCache) Metrics() out.CacheMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.metrics
}

// Close stops the background expiration sweep.
func (c *MemoryCache) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *MemoryCache) janitor() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.stop:
			return
		}
	}
}

func (c *MemoryCache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, entry := range c.data {
		if now.After(entry.expiresAt) {
			c.remove(key)
			c.metrics.Expirations++
		}
	}
}

func (c *MemoryCache) remove(key string) {
	delete(c.data, key)
	if node, ok := c.nodes[key]; ok {
		node.prev.next = node.next
		node.next.prev = node.prev
		delete(c.nodes, key)
	}
}

func (c *MemoryCache) addToFront(key string) {
	node := &lruNode{key: key}
	node.next = c.head.next
	node.prev = c.head
	c.head.next.prev = node
	c.head.next = node
	c.nodes[key] = node
}

func (c *MemoryCache) moveToFront(node *lruNode) {
	node.prev.next = node.next
	node.next.prev = node.prev
	node.next = c.head.next
	node.prev = c.head
	c.head.next.prev = node
	c.head.next = node
}

func (c *MemoryCache) evictLRU() {
	node := c.tail.prev
	if node == c.head {
		return
	}
	c.remove(node.key)
}
