// Package caches assembles cache instances from presets and validated
// configurations. It is the only place where tiers are wired together:
// callers receive a value satisfying the cache contract and never see
// the concrete variant.
package caches

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/blueberrycongee/aicache"
	"github.com/blueberrycongee/aicache/caches/dual"
	"github.com/blueberrycongee/aicache/caches/memory"
	"github.com/blueberrycongee/aicache/caches/noop"
	"github.com/blueberrycongee/aicache/caches/redis"
	"github.com/blueberrycongee/aicache/config"
	"github.com/blueberrycongee/aicache/internal/monitor"
	"github.com/blueberrycongee/aicache/internal/observability"
	"github.com/blueberrycongee/aicache/pkg/cache"
)

// Factory constructs caches with environment-aware defaults and a shared
// performance monitor. Build one at startup and inject it; identical
// inputs always produce equivalent caches.
type Factory struct {
	presets   *config.PresetManager
	validator *config.Validator
	mon       *monitor.Monitor
	logger    *slog.Logger
}

// FactoryOption customizes a Factory.
type FactoryOption func(*Factory)

// WithMonitor shares an existing monitor across every cache the factory
// builds.
func WithMonitor(m *monitor.Monitor) FactoryOption {
	return func(f *Factory) { f.mon = m }
}

// WithLogger sets the structured logger passed to constructed caches.
func WithLogger(l *slog.Logger) FactoryOption {
	return func(f *Factory) { f.logger = l }
}

// NewFactory creates a factory with built-in presets and a fresh monitor
// unless one is supplied.
func NewFactory(opts ...FactoryOption) *Factory {
	f := &Factory{
		presets:   config.NewPresetManager(),
		validator: config.NewValidator(),
		logger:    observability.NewLogger(observability.LoggerConfig{JSONFormat: true}),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.mon == nil {
		f.mon = monitor.New(monitor.DefaultConfig())
	}
	return f
}

// Monitor returns the shared performance monitor.
func (f *Factory) Monitor() *monitor.Monitor {
	return f.mon
}

// Presets returns the preset manager, for recommendation surfaces.
func (f *Factory) Presets() *config.PresetManager {
	return f.presets
}

// Validator returns the configuration validator, for pre-flight checks
// of custom override payloads.
func (f *Factory) Validator() *config.Validator {
	return f.validator
}

// ForWebApp builds a generic two-tier cache for web workloads from the
// production preset. redisURL may be empty for a memory-only cache;
// overrides overlay the preset.
func (f *Factory) ForWebApp(ctx context.Context, redisURL string, overrides map[string]any) (cache.Cache, error) {
	return f.fromPreset(ctx, config.PresetProduction, redisURL, overrides, false)
}

// ForAIApp builds an AI-specialized cache from the ai-production preset.
func (f *Factory) ForAIApp(ctx context.Context, redisURL string, overrides map[string]any) (cache.Cache, error) {
	return f.fromPreset(ctx, config.PresetAIProduction, redisURL, overrides, true)
}

// ForTesting builds a small, short-TTL cache for tests. kind is
// cache.TypeMemory or cache.TypeRedis; with TypeRedis the strict
// connection flag is honored so tests can assert CacheUnavailable.
func (f *Factory) ForTesting(ctx context.Context, kind cache.Type, redisURL string, failOnConnectionError bool) (cache.Cache, error) {
	cfg := config.Default()
	cfg.DefaultTTL = 60
	cfg.L1CacheSize = 100
	cfg.FailOnConnectionError = failOnConnectionError

	switch kind {
	case cache.TypeMemory, "":
		cfg.RedisURL = ""
	case cache.TypeRedis:
		if redisURL == "" {
			redisURL = "redis://localhost:6379"
		}
		cfg.RedisURL = redisURL
	default:
		return nil, fmt.Errorf("unsupported testing cache kind %q", kind)
	}
	return f.NewFromConfig(ctx, cfg)
}

// FromPreset resolves a named preset, overlays overrides, and builds the
// resulting cache. The disabled preset yields a no-op cache.
func (f *Factory) FromPreset(ctx context.Context, name string, overrides map[string]any) (cache.Cache, error) {
	return f.fromPreset(ctx, name, "", overrides, false)
}

func (f *Factory) fromPreset(ctx context.Context, name, redisURL string, overrides map[string]any, forceAI bool) (cache.Cache, error) {
	preset, err := f.presets.Get(name)
	if err != nil {
		return nil, err
	}
	if preset.Disabled {
		return noop.New(), nil
	}

	cfg := preset.ToConfig()
	if redisURL != "" {
		cfg.RedisURL = redisURL
	}
	cfg, err = cfg.ApplyOverrides(overrides)
	if err != nil {
		return nil, err
	}
	return f.build(ctx, cfg, forceAI)
}

// NewFromConfig validates cfg and builds the cache it describes. The AI
// specialization is applied when the strategy is ai_optimized.
func (f *Factory) NewFromConfig(ctx context.Context, cfg config.Config) (cache.Cache, error) {
	return f.build(ctx, cfg, cfg.Strategy == config.StrategyAIOptimized)
}

func (f *Factory) build(ctx context.Context, cfg config.Config, wrapAI bool) (cache.Cache, error) {
	if err := cfg.Validate().Err(); err != nil {
		return nil, err
	}

	var l1 *memory.Cache
	if cfg.EnableL1Cache {
		l1 = memory.New(memory.Config{
			MaxEntries: cfg.L1CacheSize,
			DefaultTTL: cfg.DefaultTTLDuration(),
		})
	}

	var (
		l2         *redis.Cache
		remoteWant bool
	)
	if cfg.RedisURL != "" {
		remoteWant = true
		redisCfg, err := redis.ConfigFromURL(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		redisCfg.DefaultTTL = cfg.DefaultTTLDuration()

		security, _ := cfg.SecurityConfig.(redis.SecurityProvider)
		l2, err = redis.New(ctx, redisCfg, security)
		if err != nil {
			if cfg.FailOnConnectionError {
				return nil, fmt.Errorf("%w: %v", cache.ErrCacheUnavailable, err)
			}
			f.logger.Warn("remote cache unreachable at startup, continuing memory-only", "error", err)
			l2 = nil
		}
	}

	opts := []dual.Option{
		dual.WithMonitor(f.mon),
		dual.WithLogger(f.logger),
	}
	if remoteWant {
		opts = append(opts, dual.WithRemoteConfigured())
	}
	engine := dual.New(l1, l2, dual.Config{
		DefaultTTL:           cfg.DefaultTTLDuration(),
		CompressionThreshold: cfg.CompressionThreshold,
		CompressionLevel:     cfg.CompressionLevel,
	}, opts...)

	if !wrapAI {
		return engine, nil
	}
	return aicache.New(engine, cfg,
		aicache.WithMonitor(f.mon),
		aicache.WithLogger(f.logger),
	), nil
}

// SnapshotMemoryLoop records periodic memory snapshots for a dual-engine
// cache until ctx is canceled. Run it as a goroutine when memory alerts
// should stay current without traffic.
func SnapshotMemoryLoop(ctx context.Context, c cache.Cache, interval time.Duration) {
	type snapshotter interface {
		SnapshotMemory(context.Context)
	}
	s, ok := c.(snapshotter)
	if !ok {
		if ai, isAI := c.(*aicache.Cache); isAI {
			s = ai.Engine()
		} else {
			return
		}
	}
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SnapshotMemory(ctx)
		}
	}
}
