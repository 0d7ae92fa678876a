package nutrition

import (
	"sync"
	"time"
)

// DefaultCacheTTL is the reuse window for in-session analysis results.
const DefaultCacheTTL = 60 * time.Second

// CacheKey identifies one analysis: a product as seen by one user.
type CacheKey struct {
	ProductID string
	UserID    string
}

type cacheEntry struct {
	timestamp time.Time
	payload   *AnalysisResult
}

// Cache is a short-TTL in-memory memoization of analysis results, keyed by
// (product, user). Entries expire lazily on read and are never invalidated
// on write: a short staleness window is accepted by design of the callers.
// The clock is injected so tests stay deterministic.
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[CacheKey]cacheEntry
}

// NewCache creates a cache with the given TTL. A zero ttl uses
// DefaultCacheTTL; a nil clock uses time.Now.
func NewCache(ttl time.Duration, now func() time.Time) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Cache{
		ttl:     ttl,
		now:     now,
		entries: make(map[CacheKey]cacheEntry),
	}
}

// Get returns the cached result for key, or nil if absent or expired.
func (c *Cache) Get(key CacheKey) *AnalysisResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil
	}
	if c.now().Sub(entry.timestamp) > c.ttl {
		delete(c.entries, key)
		return nil
	}
	return entry.payload
}

// Put stores a result for key, stamping it with the current time.
func (c *Cache) Put(key CacheKey, payload *AnalysisResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{timestamp: c.now(), payload: payload}
}

// Clear drops all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[CacheKey]cacheEntry)
}

// Len returns the number of stored entries, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
