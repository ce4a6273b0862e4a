package cache

import (
	"sync/atomic"
	"time"

	"github.com/caleywoods/wayfindr/pkg/core"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	DefaultMaxEntries = 16
	DefaultTTL        = 5 * time.Minute
)

// Stats is a snapshot of cache counters.
type Stats struct {
	Entries   int    `json:"entries"`
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
}

// SessionCache holds the waypoint list of recently used session keys.
// Entries expire after the configured TTL and the least recently used key
// is evicted once the cache is full. Lists are copied in and out.
type SessionCache struct {
	lru       *expirable.LRU[string, []core.Waypoint]
	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// NewSessionCache creates a cache bounded to maxEntries keys.
// Non-positive arguments fall back to the defaults.
func NewSessionCache(maxEntries int, ttl time.Duration) *SessionCache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &SessionCache{
		lru: expirable.NewLRU[string, []core.Waypoint](maxEntries, nil, ttl),
	}
}

// Get returns a copy of the cached list for key.
func (c *SessionCache) Get(key string) ([]core.Waypoint, bool) {
	list, ok := c.lru.Get(key)
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return core.CloneAll(list), true
}

// Set stores a copy of list under key and refreshes its expiry.
func (c *SessionCache) Set(key string, list []core.Waypoint) {
	if c.lru.Add(key, core.CloneAll(list)) {
		c.evictions.Add(1)
	}
}

// Delete drops key from the cache.
func (c *SessionCache) Delete(key string) {
	c.lru.Remove(key)
}

// Reset drops every entry. Counters are kept.
func (c *SessionCache) Reset() {
	c.lru.Purge()
}

// Len returns the number of cached keys, including ones not yet reaped.
func (c *SessionCache) Len() int {
	return c.lru.Len()
}

// Stats returns the current counters.
func (c *SessionCache) Stats() Stats {
	return Stats{
		Entries:   c.lru.Len(),
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}
