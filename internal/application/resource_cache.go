package application

import (
	"context"
	"sync"
	"time"

	"gitlab.com/timkado/api/daisi-feed-client/internal/adapters/metrics"
	"gitlab.com/timkado/api/daisi-feed-client/internal/domain"
)

// CacheTTLs maps resource types to a freshness window. Types not listed
// never go stale on their own and leave only through invalidation.
type CacheTTLs map[domain.ResourceType]time.Duration

type cacheEntry struct {
	value    any
	storedAt time.Time
}

// ResourceCache holds server data keyed by (resource type, id, cursor).
// Writes that raced an invalidation of the same collection are dropped, so
// an entry is never older than the last invalidation that covered it.
type ResourceCache struct {
	logger domain.Logger
	ttls   CacheTTLs
	now    func() time.Time

	mu      sync.RWMutex
	entries map[domain.CacheKey]cacheEntry
	// generations counts invalidations per collection key.
	generations map[domain.CacheKey]uint64
}

// NewResourceCache creates an empty cache.
func NewResourceCache(logger domain.Logger, ttls CacheTTLs) *ResourceCache {
	if logger == nil {
		panic("logger is nil in NewResourceCache")
	}
	if ttls == nil {
		ttls = CacheTTLs{}
	}
	return &ResourceCache{
		logger:      logger,
		ttls:        ttls,
		now:         time.Now,
		entries:     make(map[domain.CacheKey]cacheEntry),
		generations: make(map[domain.CacheKey]uint64),
	}
}

// Get returns the fresh value stored under key.
func (c *ResourceCache) Get(key domain.CacheKey) (any, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		metrics.IncrementCacheLookup(string(key.Type), "miss")
		return nil, false
	}
	if ttl := c.ttls[key.Type]; ttl > 0 && c.now().Sub(entry.storedAt) > ttl {
		metrics.IncrementCacheLookup(string(key.Type), "stale")
		return nil, false
	}
	metrics.IncrementCacheLookup(string(key.Type), "hit")
	return entry.value, true
}

// Peek returns whatever is stored under key, fresh or not, without
// touching metrics. Used to seed optimistic state and by tests.
func (c *ResourceCache) Peek(key domain.CacheKey) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[key]
	return entry.value, ok
}

// Set stores value under key unconditionally (write-through after a mutation).
func (c *ResourceCache) Set(key domain.CacheKey, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{value: value, storedAt: c.now()}
}

func (c *ResourceCache) generation(key domain.CacheKey) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generations[key.Collection()]
}

// setIfCurrent stores value only if key's collection was not invalidated since gen was read.
func (c *ResourceCache) setIfCurrent(key domain.CacheKey, value any, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generations[key.Collection()] != gen {
		return false
	}
	c.entries[key] = cacheEntry{value: value, storedAt: c.now()}
	return true
}

// Update rewrites the value stored under key in place. fn returns the new
// value and whether anything changed; missing keys are left alone.
func (c *ResourceCache) Update(key domain.CacheKey, fn func(any) (any, bool)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return false
	}
	next, changed := fn(entry.value)
	if !changed {
		return false
	}
	c.entries[key] = cacheEntry{value: next, storedAt: entry.storedAt}
	return true
}

// UpdateWhere applies fn to every entry whose key matches.
func (c *ResourceCache) UpdateWhere(match func(domain.CacheKey) bool, fn func(any) (any, bool)) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for key, entry := range c.entries {
		if !match(key) {
			continue
		}
		if next, changed := fn(entry.value); changed {
			c.entries[key] = cacheEntry{value: next, storedAt: entry.storedAt}
			n++
		}
	}
	return n
}

// Invalidate drops the entries named by invs and returns how many were removed.
// source labels the metric ("local" or "remote").
func (c *ResourceCache) Invalidate(source string, invs ...domain.Invalidation) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for _, inv := range invs {
		collection := inv.Key.Collection()
		c.generations[collection]++
		n := 0
		switch inv.Scope {
		case domain.ScopeCollection:
			for key := range c.entries {
				if key.Collection() == collection {
					delete(c.entries, key)
					n++
				}
			}
		default:
			if _, ok := c.entries[inv.Key]; ok {
				delete(c.entries, inv.Key)
				n++
			}
		}
		metrics.IncrementCacheInvalidation(string(inv.Key.Type), source, n)
		removed += n
	}
	return removed
}

// Clear empties the cache, as on logout.
func (c *ResourceCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		c.generations[key.Collection()]++
	}
	c.entries = make(map[domain.CacheKey]cacheEntry)
}

// Len returns the number of stored entries.
func (c *ResourceCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// cachedFetch serves key from the cache or fills it with fetch. A result is
// not stored when the caller's context was cancelled meanwhile or when the
// collection was invalidated while the fetch was in flight.
func cachedFetch[T any](ctx context.Context, c *ResourceCache, key domain.CacheKey, fetch func(context.Context) (T, error)) (T, error) {
	if v, ok := c.Get(key); ok {
		if typed, ok := v.(T); ok {
			return typed, nil
		}
	}

	gen := c.generation(key)
	val, err := fetch(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	if err := ctx.Err(); err != nil {
		var zero T
		return zero, err
	}
	if !c.setIfCurrent(key, val, gen) {
		c.logger.Debug(ctx, "Discarded fetch result invalidated mid-flight", "key", key.String())
	}
	return val, nil
}
