package reputation

import (
	"sync"
	"time"

	"github.com/jmerrifield20/ThreatSentinel/internal/threat"
)

// maxCacheEntries bounds the cache. A set at the bound first drops expired
// entries, then the entry closest to expiry.
const maxCacheEntries = 10000

type cacheEntry struct {
	verdict   threat.Verdict
	expiresAt time.Time
}

func (e *cacheEntry) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// verdictCache holds successful lookups keyed by IP until their TTL passes.
type verdictCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	ttl     time.Duration
	max     int
	now     func() time.Time
}

func newVerdictCache(ttl time.Duration) *verdictCache {
	return &verdictCache{
		entries: make(map[string]*cacheEntry),
		ttl:     ttl,
		max:     maxCacheEntries,
		now:     time.Now,
	}
}

// get returns a copy of the cached verdict for ip.
func (c *verdictCache) get(ip string) (*threat.Verdict, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[ip]
	if !ok || e.expired(c.now()) {
		return nil, false
	}
	v := e.verdict
	return &v, true
}

func (c *verdictCache) set(ip string, v *threat.Verdict) {
	if c.ttl <= 0 || v == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[ip]; !exists && len(c.entries) >= c.max {
		if c.evictLocked() == 0 {
			c.evictOldestLocked()
		}
	}
	c.entries[ip] = &cacheEntry{verdict: *v, expiresAt: c.now().Add(c.ttl)}
}

// evict removes expired entries and returns how many were dropped.
func (c *verdictCache) evict() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evictLocked()
}

func (c *verdictCache) evictLocked() int {
	now := c.now()
	n := 0
	for k, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

func (c *verdictCache) evictOldestLocked() {
	var (
		oldest string
		at     time.Time
	)
	for k, e := range c.entries {
		if oldest == "" || e.expiresAt.Before(at) {
			oldest, at = k, e.expiresAt
		}
	}
	delete(c.entries, oldest)
}

func (c *verdictCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
