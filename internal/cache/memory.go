package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// DefaultMemoryEntries bounds the in-process layer of a LayeredCache
const DefaultMemoryEntries = 4096

const maxSweepInterval = 10 * time.Minute

// MemoryCache is the in-process verdict layer. Entries expire after a TTL
// and at most maxEntries are held; once full, only keys already present are
// updated and misses fall through to the next layer.
type MemoryCache struct {
	items      *gocache.Cache
	maxEntries int
}

// NewMemoryCache creates a memory layer; maxEntries <= 0 leaves it unbounded
func NewMemoryCache(ttl time.Duration, maxEntries int) *MemoryCache {
	sweep := ttl
	if sweep <= 0 || sweep > maxSweepInterval {
		sweep = maxSweepInterval
	}
	return &MemoryCache{
		items:      gocache.New(ttl, sweep),
		maxEntries: maxEntries,
	}
}

func (c *MemoryCache) Get(key string) ([]byte, bool) {
	val, found := c.items.Get(key)
	if !found {
		return nil, false
	}
	data, ok := val.([]byte)
	return data, ok
}

// Set stores a copy of value; a zero ttl uses the layer default
func (c *MemoryCache) Set(key string, value []byte, ttl time.Duration) error {
	data := append([]byte(nil), value...)
	if c.full() {
		// Replace fails for absent keys, which a full layer skips
		_ = c.items.Replace(key, data, ttl)
		return nil
	}
	c.items.Set(key, data, ttl)
	return nil
}

func (c *MemoryCache) full() bool {
	if c.maxEntries <= 0 || c.items.ItemCount() < c.maxEntries {
		return false
	}
	c.items.DeleteExpired()
	return c.items.ItemCount() >= c.maxEntries
}

func (c *MemoryCache) Delete(key string) error {
	c.items.Delete(key)
	return nil
}

func (c *MemoryCache) Clear() error {
	c.items.Flush()
	return nil
}
