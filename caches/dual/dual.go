// Package dual provides the generic two-tier cache engine: in-process L1,
// Redis L2, payload compression, operation callbacks, and graceful
// degradation when the remote tier is unreachable.
package dual

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/goccy/go-json"

	"github.com/blueberrycongee/aicache/caches/memory"
	"github.com/blueberrycongee/aicache/caches/redis"
	"github.com/blueberrycongee/aicache/internal/monitor"
	"github.com/blueberrycongee/aicache/pkg/cache"
)

// TracerName identifies spans emitted by the cache engine.
const TracerName = "aicache"

// Cache implements cache.Cache across an in-process L1 and a Redis L2.
// Reads check L1 first, then L2 with backfill; writes go to L2 then L1.
// Remote failures degrade to L1-only behavior and are surfaced through
// the monitor, never as errors on the data path.
type Cache struct {
	l1  *memory.Cache
	l2  *redis.Cache
	cfg Config

	remoteConfigured bool

	callbacks cache.Callbacks
	mon       *monitor.Monitor
	logger    *slog.Logger
	tracer    trace.Tracer

	// Statistics
	l1Hits    atomic.Int64
	l2Hits    atomic.Int64
	misses    atomic.Int64
	backfills atomic.Int64
}

// Config holds configuration for the two-tier engine.
type Config struct {
	DefaultTTL           time.Duration // TTL when Set receives 0 (default: 1 hour)
	CompressionThreshold int           // Compress payloads at or above this many bytes (default: 1024)
	CompressionLevel     int           // zlib level 1-9 (default: 6)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		DefaultTTL:           time.Hour,
		CompressionThreshold: 1024,
		CompressionLevel:     6,
	}
}

// Option customizes the engine.
type Option func(*Cache)

// WithMonitor threads a performance monitor through the engine.
func WithMonitor(m *monitor.Monitor) Option {
	return func(c *Cache) { c.mon = m }
}

// WithCallbacks registers operation hooks.
func WithCallbacks(cb cache.Callbacks) Option {
	return func(c *Cache) { c.callbacks = cb }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// WithRemoteConfigured marks that a remote tier was requested even if it
// could not be connected; Ping then reports Degraded instead of Healthy.
func WithRemoteConfigured() Option {
	return func(c *Cache) { c.remoteConfigured = true }
}

// New creates a two-tier cache. Either tier may be nil: a nil l2 yields a
// memory-only cache, a nil l1 a remote-only one.
func New(l1 *memory.Cache, l2 *redis.Cache, cfg Config, opts ...Option) *Cache {
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = time.Hour
	}
	if cfg.CompressionLevel < 1 || cfg.CompressionLevel > 9 {
		cfg.CompressionLevel = 6
	}

	c := &Cache{
		l1:     l1,
		l2:     l2,
		cfg:    cfg,
		logger: slog.Default(),
		tracer: otel.Tracer(TracerName),
	}
	if l2 != nil {
		c.remoteConfigured = true
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.mon != nil {
		c.mon.SetRemoteState(l2 != nil, remoteNote(c.remoteConfigured, l2 != nil))
	}
	return c
}

func remoteNote(configured, connected bool) string {
	if configured && !connected {
		return "remote tier configured but not connected"
	}
	return ""
}

// Get retrieves a value, checking L1 first, then L2 with backfill.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	ctx, span := c.tracer.Start(ctx, "cache.get")
	defer span.End()

	if c.l1 != nil {
		if val, _ := c.l1.Get(ctx, key); val != nil {
			c.l1Hits.Add(1)
			c.record("get", start, monitor.OutcomeHit, len(val))
			span.SetAttributes(attribute.String("cache.tier", "l1"), attribute.Bool("cache.hit", true))
			c.fire(c.callbacks.OnGetSuccess, key)
			return val, nil
		}
	}

	if c.l2 != nil {
		envelope, ttl, err := c.l2.GetWithTTL(ctx, key)
		switch {
		case err != nil:
			c.remoteFailure("get", key, err)
		case envelope != nil:
			val, err := decodePayload(envelope)
			if err != nil {
				// Corrupt payload: treat as a miss and drop the entry.
				c.logger.Warn("discarding corrupt cache payload", "key", key, "error", err)
				_, _ = c.l2.Delete(ctx, key)
				break
			}
			if c.l1 != nil {
				_ = c.l1.Set(ctx, key, val, ttl)
				c.backfills.Add(1)
			}
			c.l2Hits.Add(1)
			c.remoteRecovered()
			c.record("get", start, monitor.OutcomeHit, len(val))
			span.SetAttributes(attribute.String("cache.tier", "l2"), attribute.Bool("cache.hit", true))
			c.fire(c.callbacks.OnGetSuccess, key)
			return val, nil
		}
	}

	c.misses.Add(1)
	c.record("get", start, monitor.OutcomeMiss, 0)
	span.SetAttributes(attribute.Bool("cache.hit", false))
	c.fire(c.callbacks.OnGetMiss, key)
	return nil, nil
}

// Set stores a value in both tiers. The L2 write carries the compression
// envelope; the L1 copy stays decoded for sub-millisecond reads. Remote
// failures downgrade to an L1-only best-effort write.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	start := time.Now()
	ctx, span := c.tracer.Start(ctx, "cache.set")
	defer span.End()

	if ttl <= 0 {
		ttl = c.cfg.DefaultTTL
	}

	if c.l2 != nil {
		compressStart := time.Now()
		envelope, compressed, err := encodePayload(value, c.cfg.CompressionThreshold, c.cfg.CompressionLevel)
		if err != nil {
			c.logger.Error("payload encoding failed, skipping remote write", "key", key, "error", err)
		} else {
			if compressed && c.mon != nil {
				c.mon.RecordCompression(len(value), len(envelope)-1, time.Since(compressStart))
			}
			if err := c.l2.Set(ctx, key, envelope, ttl); err != nil {
				c.remoteFailure("set", key, err)
			} else {
				c.remoteRecovered()
			}
			span.SetAttributes(attribute.Bool("cache.compressed", compressed))
		}
	}

	if c.l1 != nil {
		_ = c.l1.Set(ctx, key, value, ttl)
	}

	c.record("set", start, monitor.OutcomeNone, len(value))
	c.fireSet(key, len(value))
	return nil
}

// Delete removes a key from both tiers, reporting whether either held it.
func (c *Cache) Delete(ctx context.Context, key string) (bool, error) {
	ctx, span := c.tracer.Start(ctx, "cache.delete")
	defer span.End()

	var existed bool
	if c.l1 != nil {
		ok, _ := c.l1.Delete(ctx, key)
		existed = existed || ok
	}
	if c.l2 != nil {
		ok, err := c.l2.Delete(ctx, key)
		if err != nil {
			c.remoteFailure("delete", key, err)
		}
		existed = existed || ok
	}
	if existed {
		c.fire(c.callbacks.OnDeleteSuccess, key)
	}
	return existed, nil
}

// Exists checks L1 then L2 without fetching payloads.
func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	if c.l1 != nil {
		if ok, _ := c.l1.Exists(ctx, key); ok {
			return true, nil
		}
	}
	if c.l2 != nil {
		ok, err := c.l2.Exists(ctx, key)
		if err != nil {
			c.remoteFailure("exists", key, err)
			return false, nil
		}
		return ok, nil
	}
	return false, nil
}

// Clear removes all entries in both tiers, restricted to the cache's
// remote namespace.
func (c *Cache) Clear(ctx context.Context) error {
	ctx, span := c.tracer.Start(ctx, "cache.clear")
	defer span.End()

	if c.l1 != nil {
		_ = c.l1.Clear(ctx)
	}
	if c.l2 != nil {
		if err := c.l2.Clear(ctx); err != nil {
			c.remoteFailure("clear", "*", err)
			return err
		}
	}
	return nil
}

// DeleteMatching removes keys matching pattern from both tiers and
// returns the number of remote keys removed. The budget bounds remote
// scan time; on overrun the partial count is returned along with
// redis.ErrBudgetExceeded.
func (c *Cache) DeleteMatching(ctx context.Context, pattern string, budget time.Duration) (int, error) {
	if c.l1 != nil {
		for _, key := range c.l1.Keys() {
			if matchPattern(pattern, key) {
				_, _ = c.l1.Delete(ctx, key)
			}
		}
	}
	if c.l2 == nil {
		return 0, nil
	}
	n, err := c.l2.DeleteMatching(ctx, pattern, budget)
	if err != nil && !errors.Is(err, redis.ErrBudgetExceeded) {
		c.remoteFailure("invalidate", pattern, err)
	}
	return n, err
}

// Ping reports Healthy when every configured tier answers, Degraded when
// serving from L1 while a remote tier is configured but unreachable, and
// Unavailable when nothing can serve.
func (c *Cache) Ping(ctx context.Context) cache.Health {
	remoteOK := c.l2 != nil && c.l2.Ping(ctx) == cache.Healthy
	switch {
	case remoteOK:
		return cache.Healthy
	case c.l1 != nil && c.remoteConfigured:
		return cache.Degraded
	case c.l1 != nil:
		return cache.Healthy
	default:
		return cache.Unavailable
	}
}

// Close releases both tiers.
func (c *Cache) Close() error {
	if c.l1 != nil {
		_ = c.l1.Close()
	}
	if c.l2 != nil {
		return c.l2.Close()
	}
	return nil
}

// Stats returns engine-level statistics. Hits and misses count whole
// engine lookups, not per-tier probes, so a miss that consulted both
// tiers counts once.
func (c *Cache) Stats() cache.Stats {
	var l1Stats, l2Stats cache.Stats
	if c.l1 != nil {
		l1Stats = c.l1.Stats()
	}
	if c.l2 != nil {
		l2Stats = c.l2.Stats()
	}

	hits := c.l1Hits.Load() + c.l2Hits.Load()
	misses := c.misses.Load()
	var hitRate float64
	if hits+misses > 0 {
		hitRate = float64(hits) / float64(hits+misses)
	}

	return cache.Stats{
		Hits:    hits,
		Misses:  misses,
		Sets:    l1Stats.Sets + l2Stats.Sets,
		Deletes: l1Stats.Deletes + l2Stats.Deletes,
		Errors:  l2Stats.Errors,
		HitRate: hitRate,
	}
}

// DetailedStats breaks statistics down by tier.
type DetailedStats struct {
	L1Hits    int64       `json:"l1_hits"`
	L2Hits    int64       `json:"l2_hits"`
	Misses    int64       `json:"misses"`
	Backfills int64       `json:"backfills"`
	HitRate   float64     `json:"hit_rate"`
	L1Stats   cache.Stats `json:"l1_stats"`
	L2Stats   cache.Stats `json:"l2_stats"`
}

// GetDetailedStats returns per-tier statistics.
func (c *Cache) GetDetailedStats() DetailedStats {
	l1Hits := c.l1Hits.Load()
	l2Hits := c.l2Hits.Load()
	misses := c.misses.Load()
	total := l1Hits + l2Hits + misses

	var hitRate float64
	if total > 0 {
		hitRate = float64(l1Hits+l2Hits) / float64(total)
	}

	stats := DetailedStats{
		L1Hits:    l1Hits,
		L2Hits:    l2Hits,
		Misses:    misses,
		Backfills: c.backfills.Load(),
		HitRate:   hitRate,
	}
	if c.l1 != nil {
		stats.L1Stats = c.l1.Stats()
	}
	if c.l2 != nil {
		stats.L2Stats = c.l2.Stats()
	}
	return stats
}

// L1 exposes the in-process tier for maintenance surfaces; nil when
// disabled.
func (c *Cache) L1() *memory.Cache { return c.l1 }

// L2 exposes the remote tier; nil in memory-only mode.
func (c *Cache) L2() *redis.Cache { return c.l2 }

// SetJSON serializes a value with a stable encoding and stores it.
// Serialization failures are logged and the value is not stored; they
// are not counted in statistics or the monitor, and never propagated.
func (c *Cache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Error("cache value serialization failed", "key", key, "error", err)
		return nil
	}
	return c.Set(ctx, key, data, ttl)
}

// GetJSON retrieves and deserializes a value. A corrupt payload reads as
// a miss.
func (c *Cache) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	data, err := c.Get(ctx, key)
	if err != nil || data == nil {
		return false, err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		c.logger.Warn("cache value deserialization failed, treating as miss", "key", key, "error", err)
		_, _ = c.Delete(ctx, key)
		return false, nil
	}
	return true, nil
}

// SnapshotMemory pushes a memory usage record into the monitor.
func (c *Cache) SnapshotMemory(ctx context.Context) {
	if c.mon == nil || c.l1 == nil {
		return
	}
	var remoteBytes int64
	if c.l2 != nil {
		remoteBytes = c.l2.UsedMemory(ctx)
	}
	c.mon.RecordMemory(c.l1.SizeBytes(), c.l1.Len(), remoteBytes)
}

func (c *Cache) record(op string, start time.Time, outcome monitor.Outcome, size int) {
	if c.mon == nil {
		return
	}
	c.mon.RecordOperation(op, time.Since(start), outcome, size)
}

func (c *Cache) remoteRecovered() {
	if c.mon != nil {
		c.mon.SetRemoteState(true, "")
	}
}

func (c *Cache) remoteFailure(op, key string, err error) {
	c.logger.Warn("remote cache unavailable, continuing on L1", "op", op, "key", key, "error", err)
	if c.mon != nil {
		c.mon.SetRemoteState(false, err.Error())
	}
}

// fire invokes a callback behind a recover guard; a panicking observer
// must not break the cache operation.
func (c *Cache) fire(cb func(string), key string) {
	if cb == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("cache callback panicked", "panic", r)
		}
	}()
	cb(key)
}

func (c *Cache) fireSet(key string, size int) {
	if c.callbacks.OnSetSuccess == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("cache callback panicked", "panic", r)
		}
	}()
	c.callbacks.OnSetSuccess(key, size)
}

// matchPattern implements the glob subset used by invalidation patterns
// against L1 keys: '*' wildcards with literal segments.
func matchPattern(pattern, s string) bool {
	var pi, si, starP, starS int
	starP = -1
	for si < len(s) {
		switch {
		case pi < len(pattern) && pattern[pi] == '*':
			starP = pi
			starS = si
			pi++
		case pi < len(pattern) && pattern[pi] == s[si]:
			pi++
			si++
		case starP >= 0:
			starS++
			si = starS
			pi = starP + 1
		default:
			return false
		}
	}
	for pi < len(pattern) && pattern[pi] == '*' {
		pi++
	}
	return pi == len(pattern)
}
