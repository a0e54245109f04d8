package geocode

import (
	"fmt"
	"sync"
	"time"
)

// Cache is a tiny in-memory cache for reverse-geocode lookups keyed by
// coordinates at 6-decimal precision.
type Cache struct {
	mu    sync.RWMutex
	store map[string]cacheEntry
	ttl   time.Duration
}

type cacheEntry struct {
	addr string
	ts   time.Time
}

// NewCache creates a cache with the provided TTL.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{store: make(map[string]cacheEntry), ttl: ttl}
}

func keyFor(lat, lon float64) string {
	return fmt.Sprintf("%.6f,%.6f", lat, lon)
}

// Get returns the cached address and true if present and not expired.
func (c *Cache) Get(lat, lon float64) (string, bool) {
	k := keyFor(lat, lon)
	c.mu.RLock()
	e, ok := c.store[k]
	c.mu.RUnlock()
	if !ok {
		return "", false
	}
	if time.Since(e.ts) > c.ttl {
		c.mu.Lock()
		delete(c.store, k)
		c.mu.Unlock()
		return "", false
	}
	return e.addr, true
}

// Set stores an address in the cache.
func (c *Cache) Set(lat, lon float64, addr string) {
	k := keyFor(lat, lon)
	c.mu.Lock()
	c.store[k] = cacheEntry{addr: addr, ts: time.Now()}
	c.mu.Unlock()
}
