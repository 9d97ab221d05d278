package cache

import (
	"sync"
	"time"
)

// entry holds a cached value and its expiry deadline.
type entry struct {
	value     interface{}
	expiresAt time.Time
}

// Cache is an in-memory TTL cache. Expired entries are dropped lazily on
// read and swept on write, so no background goroutine is needed.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
}

// New creates a Cache whose entries expire after ttl.
func New(ttl time.Duration) *Cache {
	return &Cache{
		entries: make(map[string]entry),
		ttl:     ttl,
	}
}

// Get returns the cached value for key, or false if absent or expired.
func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		c.mu.Lock()
		// Re-check under the write lock: a concurrent Set may have refreshed it
		if cur, exists := c.entries[key]; exists && time.Now().After(cur.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return e.value, true
}

// Set stores value under key with the cache's TTL.
func (c *Cache) Set(key string, value interface{}) {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Sweep expired entries opportunistically to bound memory
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
		}
	}

	c.entries[key] = entry{
		value:     value,
		expiresAt: now.Add(c.ttl),
	}
}

// Invalidate removes a single key.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// InvalidatePrefix removes every key with the given prefix. Used to drop
// one owner's cached views after their claim graph changes.
func (c *Cache) InvalidatePrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for k := range c.entries {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(c.entries, k)
		}
	}
}

// Len returns the number of entries currently held, including any that
// have expired but not yet been swept.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
