// internal/chat/usercache.go
package chat

import (
	"sync"
	"time"
)

const userCacheMaxEntries = 1000

type cacheEntry struct {
	value     []string
	expiresAt time.Time
}

// userCache is a bounded TTL cache keyed by conversation context id
// (user/session). The service uses it for command suggestions derived from
// that conversation's history; entries are invalidated whenever the
// conversation's context changes.
type userCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	ttl     time.Duration
}

func newUserCache(ttl time.Duration) *userCache {
	return &userCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
	}
}

func (c *userCache) get(key string) ([]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || time.Now().After(e.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

func (c *userCache) set(key string, value []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) >= userCacheMaxEntries {
		c.evictLocked()
	}
	c.entries[key] = cacheEntry{value: value, expiresAt: time.Now().Add(c.ttl)}
}

func (c *userCache) invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

func (c *userCache) clear() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}

// evictLocked drops expired entries first, then the soonest-to-expire one if
// the cache is still full.
func (c *userCache) evictLocked() {
	now := time.Now()
	for id, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, id)
		}
	}
	if len(c.entries) < userCacheMaxEntries {
		return
	}
	var oldestID string
	var oldest time.Time
	for id, e := range c.entries {
		if oldestID == "" || e.expiresAt.Before(oldest) {
			oldestID = id
			oldest = e.expiresAt
		}
	}
	if oldestID != "" {
		delete(c.entries, oldestID)
	}
}
