package classifier

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/normanking/cortex-emotion/internal/metrics"
	"github.com/normanking/cortex-emotion/pkg/emotion"
)

const (
	DefaultCacheTTL        = 5 * time.Minute
	DefaultCacheMaxEntries = 1024
)

type cacheKey struct {
	text  string
	useAI bool
}

type cacheEntry struct {
	analysis emotion.Analysis
	storedAt time.Time
}

// Cache memoizes analyses by (text, useAI). Entries older than the TTL are
// dropped when they are looked up; nothing sweeps them in the background.
// The entry count is capped with least-recently-used eviction.
type Cache struct {
	entries *lru.Cache[cacheKey, cacheEntry]
	ttl     time.Duration
	now     func() time.Time
}

// NewCache creates a cache. Non-positive arguments select the defaults.
func NewCache(maxEntries int, ttl time.Duration) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultCacheMaxEntries
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	entries, err := lru.New[cacheKey, cacheEntry](maxEntries)
	if err != nil {
		// only reachable with a non-positive size
		panic(err)
	}
	return &Cache{entries: entries, ttl: ttl, now: time.Now}
}

// Get returns a copy of the cached analysis if it is still fresh.
func (c *Cache) Get(text string, useAI bool) (emotion.Analysis, bool) {
	key := cacheKey{text: text, useAI: useAI}
	e, ok := c.entries.Get(key)
	if !ok {
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		return emotion.Analysis{}, false
	}
	if c.now().Sub(e.storedAt) > c.ttl {
		c.entries.Remove(key)
		metrics.CacheLookups.WithLabelValues("expired").Inc()
		return emotion.Analysis{}, false
	}
	metrics.CacheLookups.WithLabelValues("hit").Inc()
	return e.analysis.Clone(), true
}

// Put stores a copy of a.
func (c *Cache) Put(text string, useAI bool, a emotion.Analysis) {
	c.entries.Add(cacheKey{text: text, useAI: useAI}, cacheEntry{analysis: a.Clone(), storedAt: c.now()})
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.entries.Purge()
}

// Len counts entries, including stale ones not yet looked up.
func (c *Cache) Len() int {
	return c.entries.Len()
}
