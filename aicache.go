// Package aicache layers AI response-cache semantics over the generic
// two-tier engine: content-aware key generation, per-operation TTLs,
// text-size tier metrics, and namespace-scoped pattern invalidation.
// It wraps the engine by composition and satisfies the same cache
// contract, so callers never depend on the concrete variant.
package aicache

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/blueberrycongee/aicache/caches/dual"
	"github.com/blueberrycongee/aicache/caches/redis"
	"github.com/blueberrycongee/aicache/config"
	"github.com/blueberrycongee/aicache/internal/monitor"
	"github.com/blueberrycongee/aicache/pkg/cache"
)

// DefaultInvalidationBudget bounds how long one pattern invalidation may
// hold the remote scan before returning a partial count.
const DefaultInvalidationBudget = 5 * time.Second

// Cache is the AI-specialized cache. It delegates storage to the dual
// engine and adds AI behaviors on top.
type Cache struct {
	engine *dual.Cache
	cfg    config.Config
	keys   *KeyGenerator
	mon    *monitor.Monitor
	logger *slog.Logger

	invalidationBudget time.Duration

	mu        sync.Mutex
	opStats   map[string]*opStat
	tierStats map[string]*tierStat
}

type opStat struct {
	Hits   int64
	Misses int64
	Sets   int64
}

type tierStat struct {
	Requests   int64
	TotalChars int64
}

// Option customizes the AI cache.
type Option func(*Cache)

// WithMonitor threads the shared performance monitor through the AI layer.
func WithMonitor(m *monitor.Monitor) Option {
	return func(c *Cache) { c.mon = m }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// WithInvalidationBudget overrides the pattern invalidation time budget.
func WithInvalidationBudget(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.invalidationBudget = d
		}
	}
}

// New wraps a dual engine with AI semantics. The engine must have been
// built from the same configuration; the factory does both in one step.
func New(engine *dual.Cache, cfg config.Config, opts ...Option) *Cache {
	c := &Cache{
		engine:             engine,
		cfg:                cfg,
		keys:               NewKeyGenerator(cfg.TextHashThreshold),
		logger:             slog.Default(),
		invalidationBudget: DefaultInvalidationBudget,
		opStats:            make(map[string]*opStat),
		tierStats:          make(map[string]*tierStat),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BuildKey produces the deterministic cache key for a request. Key
// generation time feeds the monitor under its own category.
func (c *Cache) BuildKey(text, operation string, options map[string]any) string {
	start := time.Now()
	key := c.keys.BuildKey(text, operation, options)
	if c.mon != nil {
		c.mon.RecordOperation(monitor.OpKeyGen, time.Since(start), monitor.OutcomeNone, len(text))
	}
	return key
}

// CachedResponse looks up the cached result for (text, operation,
// options). The bool reports whether a cached value was found.
func (c *Cache) CachedResponse(ctx context.Context, text, operation string, options map[string]any) ([]byte, bool, error) {
	key := c.BuildKey(text, operation, options)
	start := time.Now()

	val, err := c.engine.Get(ctx, key)
	hit := err == nil && val != nil

	c.recordAIOperation(operation, text, time.Since(start), hit)
	return val, hit, err
}

// CacheResponse stores an AI response under the operation's TTL,
// falling back to the default TTL for unknown operations.
func (c *Cache) CacheResponse(ctx context.Context, text, operation string, options map[string]any, value []byte) error {
	key := c.BuildKey(text, operation, options)
	err := c.engine.Set(ctx, key, value, c.cfg.TTLFor(operation))
	if err == nil {
		c.bumpSet(operation, text)
	}
	return err
}

// InvalidatePattern removes all cached entries whose key contains
// pattern. It returns the number of remote keys removed and whether the
// scan was cut short by the time budget; a truncated invalidation is
// recorded as a warning, not an error.
func (c *Cache) InvalidatePattern(ctx context.Context, pattern, reason string) (int, bool, error) {
	start := time.Now()

	n, err := c.engine.DeleteMatching(ctx, "*"+pattern+"*", c.invalidationBudget)
	truncated := isBudgetExceeded(err)
	if truncated {
		c.logger.Warn("pattern invalidation exceeded its budget, returning partial count",
			"pattern", pattern, "removed", n, "budget", c.invalidationBudget)
		err = nil
	}
	if err != nil {
		return n, false, err
	}

	if c.mon != nil {
		c.mon.RecordInvalidation(pattern, n, time.Since(start), reason)
	}
	return n, truncated, nil
}

// InvalidateByOperation removes every cached entry for one operation.
func (c *Cache) InvalidateByOperation(ctx context.Context, operation, reason string) (int, bool, error) {
	return c.InvalidatePattern(ctx, "op:"+operation+"|", reason)
}

// Get implements the cache contract by delegation.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	return c.engine.Get(ctx, key)
}

// Set implements the cache contract by delegation.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.engine.Set(ctx, key, value, ttl)
}

// Delete implements the cache contract by delegation.
func (c *Cache) Delete(ctx context.Context, key string) (bool, error) {
	return c.engine.Delete(ctx, key)
}

// Exists implements the cache contract by delegation.
func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	return c.engine.Exists(ctx, key)
}

// Clear removes every entry within the cache namespace.
func (c *Cache) Clear(ctx context.Context) error {
	return c.engine.Clear(ctx)
}

// Ping reports the engine's health.
func (c *Cache) Ping(ctx context.Context) cache.Health {
	return c.engine.Ping(ctx)
}

// Close releases the engine.
func (c *Cache) Close() error {
	return c.engine.Close()
}

// Stats returns the engine's combined tier statistics.
func (c *Cache) Stats() cache.Stats {
	return c.engine.Stats()
}

// Engine exposes the wrapped dual cache for maintenance surfaces.
func (c *Cache) Engine() *dual.Cache {
	return c.engine
}

// TierFor classifies a text length into small/medium/large/xlarge per
// the configured tier thresholds. Classification only segments metrics.
func (c *Cache) TierFor(textLength int) string {
	tiers := c.cfg.TextSizeTiers
	switch {
	case textLength <= tiers.Small:
		return "small"
	case textLength <= tiers.Medium:
		return "medium"
	case textLength <= tiers.Large:
		return "large"
	default:
		return "xlarge"
	}
}

// OperationStats is the per-operation AI view.
type OperationStats struct {
	Operation string  `json:"operation"`
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Sets      int64   `json:"sets"`
	HitRate   float64 `json:"hit_rate"`
	TTL       int     `json:"ttl_seconds"`
}

// TierStats is the per-text-size-tier AI view.
type TierStats struct {
	Tier         string `json:"tier"`
	Requests     int64  `json:"requests"`
	AvgTextChars int64  `json:"avg_text_chars"`
}

// PerformanceSummary combines the monitor report with the AI-segmented
// statistics.
type PerformanceSummary struct {
	Report     monitor.Report   `json:"report"`
	Operations []OperationStats `json:"operations"`
	Tiers      []TierStats      `json:"tiers"`
	Engine     cache.Stats      `json:"engine"`
}

// GetAIPerformanceSummary returns the combined AI performance view.
func (c *Cache) GetAIPerformanceSummary() PerformanceSummary {
	sum := PerformanceSummary{
		Operations: c.GetOperationPerformance(),
		Tiers:      c.GetTextTierStatistics(),
		Engine:     c.engine.Stats(),
	}
	if c.mon != nil {
		c.engine.SnapshotMemory(context.Background())
		sum.Report = c.mon.Report()
	}
	return sum
}

// GetOperationPerformance returns hit/miss/set counts per AI operation.
func (c *Cache) GetOperationPerformance() []OperationStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]OperationStats, 0, len(c.opStats))
	for op, s := range c.opStats {
		total := s.Hits + s.Misses
		var rate float64
		if total > 0 {
			rate = float64(s.Hits) / float64(total)
		}
		out = append(out, OperationStats{
			Operation: op,
			Hits:      s.Hits,
			Misses:    s.Misses,
			Sets:      s.Sets,
			HitRate:   rate,
			TTL:       int(c.cfg.TTLFor(op) / time.Second),
		})
	}
	sortOperationStats(out)
	return out
}

// GetTextTierStatistics returns request counts segmented by text size
// tier.
func (c *Cache) GetTextTierStatistics() []TierStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]TierStats, 0, len(c.tierStats))
	for _, tier := range []string{"small", "medium", "large", "xlarge"} {
		s, ok := c.tierStats[tier]
		if !ok {
			continue
		}
		avg := int64(0)
		if s.Requests > 0 {
			avg = s.TotalChars / s.Requests
		}
		out = append(out, TierStats{Tier: tier, Requests: s.Requests, AvgTextChars: avg})
	}
	return out
}

func (c *Cache) recordAIOperation(operation, text string, d time.Duration, hit bool) {
	outcome := monitor.OutcomeMiss
	if hit {
		outcome = monitor.OutcomeHit
	}
	if c.mon != nil {
		c.mon.RecordOperation(operation, d, outcome, len(text))
	}

	tier := c.TierFor(len(text))
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.opStats[operation]
	if !ok {
		s = &opStat{}
		c.opStats[operation] = s
	}
	if hit {
		s.Hits++
	} else {
		s.Misses++
	}

	ts, ok := c.tierStats[tier]
	if !ok {
		ts = &tierStat{}
		c.tierStats[tier] = ts
	}
	ts.Requests++
	ts.TotalChars += int64(len(text))
}

func (c *Cache) bumpSet(operation, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.opStats[operation]
	if !ok {
		s = &opStat{}
		c.opStats[operation] = s
	}
	s.Sets++
}

func sortOperationStats(stats []OperationStats) {
	sort.Slice(stats, func(i, j int) bool { return stats[i].Operation < stats[j].Operation })
}

func isBudgetExceeded(err error) bool {
	return errors.Is(err, redis.ErrBudgetExceeded)
}
