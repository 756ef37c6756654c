package caches

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blueberrycongee/aicache"
	"github.com/blueberrycongee/aicache/config"
	"github.com/blueberrycongee/aicache/internal/monitor"
	"github.com/blueberrycongee/aicache/pkg/cache"
)

func TestFactory_ForAIApp(t *testing.T) {
	s := miniredis.RunT(t)
	f := NewFactory()
	ctx := context.Background()

	c, err := f.ForAIApp(ctx, "redis://"+s.Addr(), nil)
	require.NoError(t, err)
	defer c.Close()

	ai, ok := c.(*aicache.Cache)
	require.True(t, ok, "ForAIApp must return the AI specialization")

	// Cold then warm: first lookup misses, set, second lookup hits.
	text, op := "Hello world.", "summarize"
	opts := map[string]any{"max_length": 100}

	_, hit, err := ai.CachedResponse(ctx, text, op, opts)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, ai.CacheResponse(ctx, text, op, opts, []byte(`{"summary":"Hello."}`)))

	val, hit, err := ai.CachedResponse(ctx, text, op, opts)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []byte(`{"summary":"Hello."}`), val)

	rep := f.Monitor().Report()
	assert.InDelta(t, 0.5, rep.HitRatio, 1e-9, "one miss and one hit give ratio 0.5")
}

func TestFactory_ForWebAppIsGeneric(t *testing.T) {
	s := miniredis.RunT(t)
	f := NewFactory()

	c, err := f.ForWebApp(context.Background(), "redis://"+s.Addr(), nil)
	require.NoError(t, err)
	defer c.Close()

	_, isAI := c.(*aicache.Cache)
	assert.False(t, isAI, "web profile stays generic")

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	val, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), val)
}

func TestFactory_GracefulDegradation(t *testing.T) {
	f := NewFactory()
	ctx := context.Background()

	c, err := f.ForAIApp(ctx, "redis://127.0.0.1:1", nil)
	require.NoError(t, err, "lenient mode constructs a memory-only fallback")
	defer c.Close()

	assert.Equal(t, cache.Degraded, c.Ping(ctx))

	// Round trip via L1 only.
	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	val, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), val)

	rep := f.Monitor().Report()
	assert.False(t, rep.RemoteReachable)
	var warned bool
	for _, a := range rep.Alerts {
		if a.Kind == monitor.AlertRemoteUnreachable {
			warned = true
		}
	}
	assert.True(t, warned)
}

func TestFactory_StrictConnectionMode(t *testing.T) {
	f := NewFactory()

	_, err := f.ForAIApp(context.Background(), "redis://127.0.0.1:1",
		map[string]any{"fail_on_connection_error": true})
	require.Error(t, err)
	assert.True(t, errors.Is(err, cache.ErrCacheUnavailable))
}

func TestFactory_DisabledPreset(t *testing.T) {
	f := NewFactory()
	ctx := context.Background()

	c, err := f.FromPreset(ctx, config.PresetDisabled, nil)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	val, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, val, "the disabled cache always misses")
	assert.Equal(t, cache.Healthy, c.Ping(ctx))
}

func TestFactory_ForTestingMemory(t *testing.T) {
	f := NewFactory()
	ctx := context.Background()

	c, err := f.ForTesting(ctx, cache.TypeMemory, "", false)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))
	val, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), val)
}

func TestFactory_ForTestingRedisStrict(t *testing.T) {
	f := NewFactory()

	_, err := f.ForTesting(context.Background(), cache.TypeRedis, "redis://127.0.0.1:1", true)
	require.Error(t, err)
	assert.True(t, errors.Is(err, cache.ErrCacheUnavailable))
}

func TestFactory_NewFromConfigValidates(t *testing.T) {
	f := NewFactory()

	bad := config.Default()
	bad.CompressionLevel = 42

	_, err := f.NewFromConfig(context.Background(), bad)
	require.Error(t, err)
	var cfgErr *cache.ConfigError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestFactory_UnknownPreset(t *testing.T) {
	f := NewFactory()
	_, err := f.FromPreset(context.Background(), "warp-speed", nil)
	require.Error(t, err)
}

func TestFactory_OverridesApply(t *testing.T) {
	s := miniredis.RunT(t)
	f := NewFactory()
	ctx := context.Background()

	c, err := f.ForAIApp(ctx, "redis://"+s.Addr(), map[string]any{
		"operation_ttls": map[string]any{"summarize": 7200, "qa": 1800},
		"default_ttl":    3600,
	})
	require.NoError(t, err)
	defer c.Close()

	ai := c.(*aicache.Cache)
	require.NoError(t, ai.CacheResponse(ctx, "doc", "summarize", nil, []byte("s")))
	require.NoError(t, ai.CacheResponse(ctx, "doc", "qa", map[string]any{"question": "Q"}, []byte("a")))
	require.NoError(t, ai.CacheResponse(ctx, "doc", "foo", nil, []byte("f")))

	sumKey := "ai_cache:" + ai.BuildKey("doc", "summarize", nil)
	qaKey := "ai_cache:" + ai.BuildKey("doc", "qa", map[string]any{"question": "Q"})
	fooKey := "ai_cache:" + ai.BuildKey("doc", "foo", nil)

	assert.InDelta(t, (7200 * time.Second).Seconds(), s.TTL(sumKey).Seconds(), 5)
	assert.InDelta(t, (1800 * time.Second).Seconds(), s.TTL(qaKey).Seconds(), 5)
	assert.InDelta(t, (3600 * time.Second).Seconds(), s.TTL(fooKey).Seconds(), 5, "unknown operations use default_ttl")
}

func TestFactory_Idempotent(t *testing.T) {
	s := miniredis.RunT(t)
	f := NewFactory()
	ctx := context.Background()

	c1, err := f.ForAIApp(ctx, "redis://"+s.Addr(), nil)
	require.NoError(t, err)
	defer c1.Close()
	c2, err := f.ForAIApp(ctx, "redis://"+s.Addr(), nil)
	require.NoError(t, err)
	defer c2.Close()

	// Equivalent construction: both are AI caches and generate identical keys.
	a1 := c1.(*aicache.Cache)
	a2 := c2.(*aicache.Cache)
	assert.Equal(t,
		a1.BuildKey("doc", "summarize", map[string]any{"x": 1}),
		a2.BuildKey("doc", "summarize", map[string]any{"x": 1}))
}
