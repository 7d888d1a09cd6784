package dns

import (
	"sync"
	"time"
)

// Cache stores resolution results keyed by domain.
type Cache interface {
	Get(domain string) (Result, bool)
	Put(domain string, result Result)
	Invalidate(domain string)
	Len() int
}

type cacheEntry struct {
	result   Result
	storedAt time.Time
}

// MemoryCache is an unbounded in-process cache. A zero TTL keeps entries for
// the lifetime of the cache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *MemoryCache) Get(domain string) (Result, bool) {
	c.mu.RLock()
	entry, ok := c.entries[domain]
	c.mu.RUnlock()

	if !ok {
		return Result{}, false
	}
	if c.ttl > 0 && c.now().Sub(entry.storedAt) > c.ttl {
		c.Invalidate(domain)
		return Result{}, false
	}
	return entry.result, true
}

func (c *MemoryCache) Put(domain string, result Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[domain] = cacheEntry{result: result, storedAt: c.now()}
}

func (c *MemoryCache) Invalidate(domain string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, domain)
}

func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
