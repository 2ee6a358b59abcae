package cache

import (
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Stats counts lookups since the cache was created.
type Stats struct {
	Hits   uint64
	Misses uint64
}

// MemoryCache holds model replies in process. Entries are copied in and
// out so a caller mutating a returned slice cannot corrupt a stored reply.
type MemoryCache struct {
	items  *gocache.Cache
	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewMemoryCache expires entries after ttl and sweeps expired ones every
// sweep interval.
func NewMemoryCache(ttl, sweep time.Duration) *MemoryCache {
	return &MemoryCache{items: gocache.New(ttl, sweep)}
}

func (c *MemoryCache) Get(key string) ([]byte, bool) {
	v, found := c.items.Get(key)
	b, ok := v.([]byte)
	if !found || !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return append([]byte(nil), b...), true
}

// Set stores value. A zero ttl uses the cache default.
func (c *MemoryCache) Set(key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = gocache.DefaultExpiration
	}
	c.items.Set(key, append([]byte(nil), value...), ttl)
	return nil
}

func (c *MemoryCache) Delete(key string) error {
	c.items.Delete(key)
	return nil
}

func (c *MemoryCache) Clear() error {
	c.items.Flush()
	return nil
}

// Len counts stored entries, including expired ones not yet swept.
func (c *MemoryCache) Len() int {
	return c.items.ItemCount()
}

func (c *MemoryCache) Stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
}
