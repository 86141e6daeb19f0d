package web

import (
	"strings"
	"sync"
	"time"

	"github.com/JonMunkholm/colisage/internal/core"
)

// ListCache keeps rendered listing responses for a short time. Commits
// invalidate it through core.ViewCache. Invalidating a key also drops every
// variant of it stored as "<key>?<query>".
//
// Each base key carries a generation bumped by Invalidate. Readers take the
// generation before loading and Set discards the body if it moved, so a
// listing read during a commit is never cached after that commit.
type ListCache struct {
	mu          sync.Mutex
	ttl         time.Duration
	entries     map[string]cacheEntry
	generations map[string]uint64
	now         func() time.Time
}

type cacheEntry struct {
	body    []byte
	expires time.Time
}

var _ core.ViewCache = (*ListCache)(nil)

// NewListCache creates a cache. A non-positive ttl disables caching.
func NewListCache(ttl time.Duration) *ListCache {
	return &ListCache{
		ttl:     ttl,
		entries:     make(map[string]cacheEntry),
		generations: make(map[string]uint64),
		now:         time.Now,
	}
}

// Get returns the cached body for key if it has not expired.
func (c *ListCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !c.now().Before(e.expires) {
		delete(c.entries, key)
		return nil, false
	}
	return e.body, true
}

// Generation returns the invalidation generation of key's base key. Take it
// before reading the data that will be passed to Set.
func (c *ListCache) Generation(key string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[baseKey(key)]
}

// Set stores body under key unless key was invalidated since gen was read.
func (c *ListCache) Set(key string, gen uint64, body []byte) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generations[baseKey(key)] != gen {
		return
	}
	c.entries[key] = cacheEntry{body: body, expires: c.now().Add(c.ttl)}
}

// Invalidate drops keys and their query variants.
func (c *ListCache) Invalidate(keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, key := range keys {
		c.generations[key]++
	}

	for k := range c.entries {
		for _, key := range keys {
			if k == key || strings.HasPrefix(k, key+"?") {
				delete(c.entries, k)
				break
			}
		}
	}
}

func baseKey(key string) string {
	if i := strings.IndexByte(key, '?'); i >= 0 {
		return key[:i]
	}
	return key
}

// Len returns the number of cached entries, expired or not.
func (c *ListCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
