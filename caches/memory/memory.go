// Package memory provides the in-process cache used standalone or as the
// L1 tier of the dual cache. Eviction is approximate LRU with TTL expiry.
package memory

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blueberrycongee/aicache/pkg/cache"
)

// Cache implements cache.Cache entirely in process memory.
// All operations are lock-bounded and never fail; memory pressure is
// handled by evicting the least-recently-used entry, never by raising.
type Cache struct {
	mu sync.Mutex

	data  map[string]*list.Element
	order *list.List // front = most recently used

	maxEntries      int
	defaultTTL      time.Duration
	cleanupInterval int // run amortized cleanup every N Get/Set calls
	cleanupScan     int // max entries examined per cleanup pass
	opCount         int

	// Statistics
	hits      atomic.Int64
	misses    atomic.Int64
	sets      atomic.Int64
	deletes   atomic.Int64
	evictions atomic.Int64
	expired   atomic.Int64
}

type entry struct {
	key        string
	value      []byte
	expiresAt  time.Time // zero means never
	createdAt  time.Time
	lastAccess time.Time
}

func (e *entry) expiredAt(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Config holds configuration for the memory Cache.
type Config struct {
	MaxEntries      int           // Maximum number of entries (default: 1000)
	DefaultTTL      time.Duration // Default TTL, 0 disables expiry (default: 1 hour)
	CleanupInterval int           // Operations between cleanup passes (default: 64)
	CleanupScan     int           // Entries examined per cleanup pass (default: 128)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxEntries:      1000,
		DefaultTTL:      time.Hour,
		CleanupInterval: 64,
		CleanupScan:     128,
	}
}

// New creates a new in-process cache.
func New(cfg Config) *Cache {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 1000
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 64
	}
	if cfg.CleanupScan <= 0 {
		cfg.CleanupScan = 128
	}
	return &Cache{
		data:            make(map[string]*list.Element),
		order:           list.New(),
		maxEntries:      cfg.MaxEntries,
		defaultTTL:      cfg.DefaultTTL,
		cleanupInterval: cfg.CleanupInterval,
		cleanupScan:     cfg.CleanupScan,
	}
}

// Get retrieves a value. Expired entries are purged on observation.
func (c *Cache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.maybeCleanup()

	elem, ok := c.data[key]
	if !ok {
		c.misses.Add(1)
		return nil, nil
	}

	e := elem.Value.(*entry)
	now := time.Now()
	if e.expiredAt(now) {
		c.removeElement(elem)
		c.expired.Add(1)
		c.misses.Add(1)
		return nil, nil
	}

	e.lastAccess = now
	c.order.MoveToFront(elem)
	c.hits.Add(1)
	return e.value, nil
}

// Set stores a value, evicting the least-recently-used entry first when
// the cache is full and the key is new.
func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	now := time.Now()
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = now.Add(ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.maybeCleanup()

	if elem, ok := c.data[key]; ok {
		e := elem.Value.(*entry)
		e.value = value
		e.expiresAt = expiresAt
		e.lastAccess = now
		c.order.MoveToFront(elem)
		c.sets.Add(1)
		return nil
	}

	if len(c.data) >= c.maxEntries {
		c.evictOldest()
	}

	e := &entry{
		key:        key,
		value:      value,
		expiresAt:  expiresAt,
		createdAt:  now,
		lastAccess: now,
	}
	c.data[key] = c.order.PushFront(e)
	c.sets.Add(1)
	return nil
}

// Delete removes a key, reporting whether it existed.
func (c *Cache) Delete(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.data[key]
	if !ok {
		return false, nil
	}
	e := elem.Value.(*entry)
	existed := !e.expiredAt(time.Now())
	c.removeElement(elem)
	if existed {
		c.deletes.Add(1)
	}
	return existed, nil
}

// Exists reports whether the key is present and unexpired.
func (c *Cache) Exists(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.data[key]
	if !ok {
		return false, nil
	}
	e := elem.Value.(*entry)
	if e.expiredAt(time.Now()) {
		c.removeElement(elem)
		c.expired.Add(1)
		return false, nil
	}
	return true, nil
}

// GetTTL returns the remaining TTL for a key. The second return is false
// when the key is absent; a zero duration means the entry never expires.
func (c *Cache) GetTTL(key string) (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.data[key]
	if !ok {
		return 0, false
	}
	e := elem.Value.(*entry)
	now := time.Now()
	if e.expiredAt(now) {
		c.removeElement(elem)
		c.expired.Add(1)
		return 0, false
	}
	if e.expiresAt.IsZero() {
		return 0, true
	}
	return e.expiresAt.Sub(now), true
}

// Clear removes all entries.
func (c *Cache) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data = make(map[string]*list.Element)
	c.order.Init()
	return nil
}

// Keys returns a snapshot of non-expired keys. The snapshot is for
// maintenance only and is not consistent with concurrent writes.
func (c *Cache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	keys := make([]string, 0, len(c.data))
	for key, elem := range c.data {
		if !elem.Value.(*entry).expiredAt(now) {
			keys = append(keys, key)
		}
	}
	return keys
}

// Len returns the current entry count, including not-yet-purged expired entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}

// SizeBytes returns the approximate payload footprint.
func (c *Cache) SizeBytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	var total int64
	for _, elem := range c.data {
		e := elem.Value.(*entry)
		total += int64(len(e.key) + len(e.value))
	}
	return total
}

// Ping always reports healthy; the L1 tier has no failure mode.
func (c *Cache) Ping(_ context.Context) cache.Health {
	return cache.Healthy
}

// Close releases nothing but satisfies the contract.
func (c *Cache) Close() error {
	return nil
}

// Stats returns cache statistics.
func (c *Cache) Stats() cache.Stats {
	hits := c.hits.Load()
	misses := c.misses.Load()
	total := hits + misses

	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return cache.Stats{
		Hits:    hits,
		Misses:  misses,
		Sets:    c.sets.Load(),
		Deletes: c.deletes.Load(),
		HitRate: hitRate,
	}
}

// Evictions returns how many entries were displaced by LRU pressure.
func (c *Cache) Evictions() int64 {
	return c.evictions.Load()
}

// maybeCleanup purges expired entries oldest-first, bounded to cleanupScan
// elements, once every cleanupInterval operations. Callers hold c.mu.
func (c *Cache) maybeCleanup() {
	c.opCount++
	if c.opCount%c.cleanupInterval != 0 {
		return
	}

	now := time.Now()
	scanned := 0
	for elem := c.order.Back(); elem != nil && scanned < c.cleanupScan; scanned++ {
		prev := elem.Prev()
		if elem.Value.(*entry).expiredAt(now) {
			c.removeElement(elem)
			c.expired.Add(1)
		}
		elem = prev
	}
}

// evictOldest removes the least-recently-used entry. Callers hold c.mu.
func (c *Cache) evictOldest() {
	elem := c.order.Back()
	if elem == nil {
		return
	}
	c.removeElement(elem)
	c.evictions.Add(1)
}

func (c *Cache) removeElement(elem *list.Element) {
	e := elem.Value.(*entry)
	delete(c.data, e.key)
	c.order.Remove(elem)
}
