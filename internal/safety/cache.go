// Package safety gates every candidate URL before the crawler touches
// the network: an SSRF guard over resolved addresses, a robots.txt
// compliance check, and the caches both rely on.
package safety

import (
	"sync"
	"time"

	"github.com/brisketlabs/crawld/internal/crawl"
)

type cacheEntry[V any] struct {
	value   V
	expires time.Time
}

// ttlCache is a size-bounded map with per-entry expiry. On overflow an
// arbitrary victim is evicted; precision is not worth the bookkeeping
// of full LRU for these small, short-lived caches.
type ttlCache[V any] struct {
	mu       sync.Mutex
	clock    crawl.Clock
	ttl      time.Duration
	capacity int
	entries  map[string]cacheEntry[V]
}

func newTTLCache[V any](clock crawl.Clock, ttl time.Duration, capacity int) *ttlCache[V] {
	if capacity <= 0 {
		capacity = 256
	}
	return &ttlCache[V]{
		clock:    clock,
		ttl:      ttl,
		capacity: capacity,
		entries:  make(map[string]cacheEntry[V]),
	}
}

func (c *ttlCache[V]) get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if c.clock.Now().After(entry.expires) {
		delete(c.entries, key)
		var zero V
		return zero, false
	}
	return entry.value, true
}

func (c *ttlCache[V]) put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.capacity {
		for victim := range c.entries {
			delete(c.entries, victim)
			break
		}
	}
	c.entries[key] = cacheEntry[V]{value: value, expires: c.clock.Now().Add(c.ttl)}
}

func (c *ttlCache[V]) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
