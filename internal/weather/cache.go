package weather

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// DefaultCacheTTL is how long a snapshot is served before the upstream is asked again.
const DefaultCacheTTL = 5 * time.Minute

// CacheKey derives the rounded-coordinate key shared by nearby coordinates.
func CacheKey(lat, lon float64) string {
	return fmt.Sprintf("weather_%.2f_%.2f", keyPart(lat), keyPart(lon))
}

// keyPart rounds to two decimals and folds -0 into 0, so points just either
// side of the equator or prime meridian share a key.
func keyPart(v float64) float64 {
	r := math.Round(v*100) / 100
	if r == 0 {
		return 0
	}
	return r
}

// CacheConfig configures a Cache.
type CacheConfig struct {
	// TTL defaults to DefaultCacheTTL.
	TTL time.Duration

	// Now defaults to time.Now; tests inject a fake clock.
	Now func() time.Time
}

// Cache is an in-memory TTL cache of snapshots. Expired entries are removed
// lazily when read; there is no background sweep.
type Cache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	value    *Snapshot
	storedAt time.Time
}

// NewCache creates an empty cache.
func NewCache(cfg CacheConfig) *Cache {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Cache{
		ttl:     ttl,
		now:     now,
		entries: make(map[string]cacheEntry),
	}
}

// Get returns the live snapshot for key. An entry older than the TTL is
// deleted and reported absent.
func (c *Cache) Get(key string) (*Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(entry.storedAt) > c.ttl {
		delete(c.entries, key)
		return nil, false
	}
	return entry.value, true
}

// Set stores value under key, overwriting any existing entry.
func (c *Cache) Set(key string, value *Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{value: value, storedAt: c.now()}
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// TTL returns the configured time-to-live.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}
