package client

import (
	"sync"
	"time"
)

// settingsCache holds the last successfully fetched configuration for a
// bounded time. Settings change rarely, so a short TTL removes most
// network calls without risking long-lived staleness. The cache owns no
// durable state and may be discarded at will.
type settingsCache struct {
	mu        sync.Mutex
	values    map[string]string
	fetchedAt time.Time
	ttl       time.Duration
	now       func() time.Time
}

func newSettingsCache(ttl time.Duration) *settingsCache {
	return &settingsCache{ttl: ttl, now: time.Now}
}

// get returns a copy of the cached values if they are still fresh.
func (c *settingsCache) get() (map[string]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.values == nil || c.now().Sub(c.fetchedAt) > c.ttl {
		return nil, false
	}
	return copyMap(c.values), true
}

// put stores a fresh copy with the current timestamp.
func (c *settingsCache) put(values map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values = copyMap(values)
	c.fetchedAt = c.now()
}

// invalidate discards the cached copy.
func (c *settingsCache) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values = nil
}

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
