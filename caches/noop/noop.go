// Package noop provides the disabled cache: every operation succeeds
// trivially and every get misses. The disabled preset returns one so
// callers keep a working cache contract with caching switched off.
package noop

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/blueberrycongee/aicache/pkg/cache"
)

// Cache is a cache that stores nothing.
type Cache struct {
	misses atomic.Int64
	sets   atomic.Int64
}

// New creates a disabled cache.
func New() *Cache {
	return &Cache{}
}

// Get always misses.
func (c *Cache) Get(_ context.Context, _ string) ([]byte, error) {
	c.misses.Add(1)
	return nil, nil
}

// Set accepts and discards the value.
func (c *Cache) Set(_ context.Context, _ string, _ []byte, _ time.Duration) error {
	c.sets.Add(1)
	return nil
}

// Delete reports that nothing existed.
func (c *Cache) Delete(_ context.Context, _ string) (bool, error) {
	return false, nil
}

// Exists reports absence.
func (c *Cache) Exists(_ context.Context, _ string) (bool, error) {
	return false, nil
}

// Clear has nothing to remove.
func (c *Cache) Clear(_ context.Context) error {
	return nil
}

// Ping always reports healthy.
func (c *Cache) Ping(_ context.Context) cache.Health {
	return cache.Healthy
}

// Close releases nothing.
func (c *Cache) Close() error {
	return nil
}

// Stats reports the recorded misses and discarded sets.
func (c *Cache) Stats() cache.Stats {
	return cache.Stats{
		Misses: c.misses.Load(),
		Sets:   c.sets.Load(),
	}
}
