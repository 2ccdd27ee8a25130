package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/phishlens/internal/model"
)

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// CacheKey derives a cache key from the URL and the scope it was classified
// under. Verdicts from a different schema or fusion policy never collide.
func CacheKey(url, scope string) string {
	hash := sha256.Sum256([]byte(scope + "\x00" + strings.TrimSpace(url)))
	return "phishlens:v1:" + hex.EncodeToString(hash[:])
}

// VerdictCache stores verdicts as JSON in a byte cache.
// Fetch results are never cached, only the verdicts derived from them.
type VerdictCache struct {
	store Cache
	scope string
	ttl   time.Duration
}

// NewVerdictCache wraps store. scope should identify everything that changes
// a verdict for the same URL, such as the schema version and fusion weights.
func NewVerdictCache(store Cache, scope string, ttl time.Duration) *VerdictCache {
	return &VerdictCache{store: store, scope: scope, ttl: ttl}
}

// Get returns the cached verdict for url. Corrupt entries are evicted.
func (c *VerdictCache) Get(url string) (*model.Verdict, bool) {
	key := CacheKey(url, c.scope)
	data, ok := c.store.Get(key)
	if !ok {
		return nil, false
	}

	var v model.Verdict
	if err := json.Unmarshal(data, &v); err != nil {
		_ = c.store.Delete(key)
		return nil, false
	}
	return &v, true
}

// Put stores a verdict under its URL
func (c *VerdictCache) Put(v *model.Verdict) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal verdict: %w", err)
	}
	return c.store.Set(CacheKey(v.URL, c.scope), data, c.ttl)
}
