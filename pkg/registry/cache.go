package registry

import (
	"sync"
	"time"
)

// Cache holds reconciled records with a TTL, keyed by service name. It is
// the only shared mutable state in the reconciliation path. Updates are
// copy-on-write per service key: a stored record is never mutated, readers
// always see a complete record, and there is no global rebuild on
// invalidation unless the caller explicitly asks for one.
type Cache struct {
	ttl time.Duration

	mu      sync.RWMutex
	entries map[string]cacheEntry

	// full is the time the cache last absorbed a complete registry.
	// Zero when no full reconciliation has been cached yet or after
	// InvalidateAll.
	full time.Time
}

type cacheEntry struct {
	record  *ReconciledRecord
	expires time.Time
}

// NewCache creates a cache with the given per-entry TTL. A TTL of zero
// disables caching: Get always misses.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

// Get returns the cached record for a service if present and unexpired.
func (c *Cache) Get(name string) (*ReconciledRecord, bool) {
	if c.ttl <= 0 {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[name]
	if !ok || time.Now().After(entry.expires) {
		return nil, false
	}
	return entry.record, true
}

// Put stores one record, replacing any previous entry for the service.
func (c *Cache) Put(record *ReconciledRecord) {
	if c.ttl <= 0 || record == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[record.Name] = cacheEntry{
		record:  record,
		expires: time.Now().Add(c.ttl),
	}
}

// PutRegistry absorbs a full reconciled registry and marks the cache as
// covering the whole fleet until the TTL lapses.
func (c *Cache) PutRegistry(reg ServiceRegistry) {
	if c.ttl <= 0 {
		return
	}
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for name, record := range reg.Services {
		c.entries[name] = cacheEntry{record: record, expires: now.Add(c.ttl)}
	}
	c.full = now
}

// Registry returns the full cached registry if a complete reconciliation
// was cached within the TTL and no entry has been invalidated since.
func (c *Cache) Registry() (ServiceRegistry, bool) {
	if c.ttl <= 0 {
		return ServiceRegistry{}, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.full.IsZero() || time.Now().After(c.full.Add(c.ttl)) {
		return ServiceRegistry{}, false
	}
	services := make(map[string]*ReconciledRecord, len(c.entries))
	now := time.Now()
	for name, entry := range c.entries {
		if now.After(entry.expires) {
			return ServiceRegistry{}, false
		}
		services[name] = entry.record
	}
	return ServiceRegistry{Services: services, AsOf: c.full}, true
}

// Invalidate drops the entry for one service, typically in response to a
// "this service changed" signal from a collector. The rest of the cache is
// untouched, but the cache no longer covers the full fleet.
func (c *Cache) Invalidate(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, name)
	c.full = time.Time{}
}

// InvalidateAll drops every entry. Only used when a full rebuild is
// explicitly requested.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
	c.full = time.Time{}
}

// Len returns the number of cached entries, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
