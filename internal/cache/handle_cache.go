package cache

import (
	"strings"
	"sync"
	"time"

	"snmpfs/internal/oid"
)

// HandleCache maps slash separated paths, relative to the export root, to
// the handles they resolved to. Entries expire after a TTL so that rows
// appearing or disappearing on the agent become visible.
//
// Thread-safe: Uses RWMutex for concurrent access.
type HandleCache struct {
	mu      sync.RWMutex
	entries map[string]handleEntry
	ttl     time.Duration
	maxSize int
	now     func() time.Time
}

type handleEntry struct {
	handle  oid.Handle
	expires time.Time
}

// NewHandleCache creates a new handle cache.
// ttl: Time-to-live for cached entries (use 0 for no expiration)
// maxSize: Maximum number of entries (use 0 for unlimited)
func NewHandleCache(ttl time.Duration, maxSize int) *HandleCache {
	return &HandleCache{
		entries: make(map[string]handleEntry, 256),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
	}
}

// Get returns the handle cached for path.
func (c *HandleCache) Get(path string) (oid.Handle, bool) {
	if Disabled || c == nil {
		return oid.Handle{}, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[path]
	if !ok {
		return oid.Handle{}, false
	}
	if c.ttl > 0 && c.now().After(entry.expires) {
		return oid.Handle{}, false
	}
	return entry.handle, true
}

// Set stores the handle of path. Handles of undetermined kind are not
// worth keeping and are ignored.
func (c *HandleCache) Set(path string, h oid.Handle) {
	if Disabled || c == nil || h.Kind == oid.KindUndetermined {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.maxSize > 0 && len(c.entries) >= c.maxSize {
		if _, exists := c.entries[path]; !exists {
			c.evictExpiredLocked()
			if len(c.entries) >= c.maxSize {
				return
			}
		}
	}

	var expires time.Time
	if c.ttl > 0 {
		expires = c.now().Add(c.ttl)
	}
	c.entries[path] = handleEntry{handle: oid.NewHandle(h.Kind, h.Path), expires: expires}
}

func (c *HandleCache) evictExpiredLocked() {
	if c.ttl <= 0 {
		return
	}
	now := c.now()
	for path, e := range c.entries {
		if now.After(e.expires) {
			delete(c.entries, path)
		}
	}
}

// Invalidate clears all entries from the cache.
func (c *HandleCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) > 0 {
		c.entries = make(map[string]handleEntry, 256)
	}
}

// InvalidatePrefix removes path and everything below it.
func (c *HandleCache) InvalidatePrefix(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if path == "" {
		c.entries = make(map[string]handleEntry, 256)
		return
	}
	prefix := strings.TrimSuffix(path, "/") + "/"
	for p := range c.entries {
		if p == path || strings.HasPrefix(p, prefix) {
			delete(c.entries, p)
		}
	}
}

// Size returns the current number of entries in the cache.
func (c *HandleCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// HandleCacheStats describes a cache's occupancy.
type HandleCacheStats struct {
	Size    int
	MaxSize int
	TTL     time.Duration
}

// Stats returns current cache statistics.
func (c *HandleCache) Stats() HandleCacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return HandleCacheStats{
		Size:    len(c.entries),
		MaxSize: c.maxSize,
		TTL:     c.ttl,
	}
}
