package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_Validates(t *testing.T) {
	res := Default().Validate()
	assert.True(t, res.IsValid, "errors: %v", res.Errors)
	assert.NoError(t, res.Err())
}

func TestValidate_Ranges(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"ttl zero", func(c *Config) { c.DefaultTTL = 0 }},
		{"ttl too large", func(c *Config) { c.DefaultTTL = 31_536_001 }},
		{"compression level zero", func(c *Config) { c.CompressionLevel = 0 }},
		{"compression level ten", func(c *Config) { c.CompressionLevel = 10 }},
		{"compression threshold negative", func(c *Config) { c.CompressionThreshold = -1 }},
		{"hash threshold zero", func(c *Config) { c.TextHashThreshold = 0 }},
		{"l1 size zero", func(c *Config) { c.L1CacheSize = 0 }},
		{"l1 size too large", func(c *Config) { c.L1CacheSize = 10_001 }},
		{"tiers not monotonic", func(c *Config) { c.TextSizeTiers = SizeTiers{Small: 10, Medium: 5, Large: 100} }},
		{"bad operation ttl", func(c *Config) { c.OperationTTLs = map[string]int{"qa": 0} }},
		{"bad redis url", func(c *Config) { c.RedisURL = "localhost:6379" }},
		{"bad hash algorithm", func(c *Config) { c.HashAlgorithm = "md5" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			res := cfg.Validate()
			assert.False(t, res.IsValid)
			assert.Error(t, res.Err())
		})
	}
}

func TestMerge_Identity(t *testing.T) {
	cfg := Default()
	cfg.RedisURL = "redis://localhost:6379"

	assert.Equal(t, cfg.RedisURL, cfg.Merge(cfg).RedisURL)
	assert.Equal(t, cfg.DefaultTTL, cfg.Merge(cfg).DefaultTTL)
	assert.Equal(t, cfg.OperationTTLs, cfg.Merge(cfg).OperationTTLs)
	assert.Equal(t, cfg.TextSizeTiers, cfg.Merge(cfg).TextSizeTiers)
}

func TestMerge_Overlay(t *testing.T) {
	base := Default()
	overlay := Config{
		RedisURL:      "redis://cache:6379",
		DefaultTTL:    60,
		OperationTTLs: map[string]int{"qa": 42},
	}

	merged := base.Merge(overlay)
	assert.Equal(t, "redis://cache:6379", merged.RedisURL)
	assert.Equal(t, 60, merged.DefaultTTL)
	assert.Equal(t, 42, merged.OperationTTLs["qa"])
	// Untouched base entries survive.
	assert.Equal(t, base.OperationTTLs["sentiment"], merged.OperationTTLs["sentiment"])
	assert.Equal(t, base.CompressionLevel, merged.CompressionLevel)
}

func TestFromMap_ToMap_RoundTrip(t *testing.T) {
	cfg := Default()
	cfg.RedisURL = "redis://localhost:6379"

	back, err := FromMap(cfg.ToMap())
	require.NoError(t, err)
	// ToMap carries both parameter groups; compare fields from each.
	assert.Equal(t, cfg.DefaultTTL, back.DefaultTTL)
	assert.Equal(t, cfg.TextSizeTiers, back.TextSizeTiers)
	assert.Equal(t, cfg.OperationTTLs, back.OperationTTLs)
	assert.Equal(t, cfg.RedisURL, back.RedisURL)
}

func TestFromMap_LegacyAlias(t *testing.T) {
	cfg, err := FromMap(map[string]any{"memory_cache_size": 321})
	require.NoError(t, err)
	assert.Equal(t, 321, cfg.L1CacheSize)
}

func TestFromMap_UnknownKey(t *testing.T) {
	_, err := FromMap(map[string]any{"bogus": 1})
	require.Error(t, err)
}

func TestTTLFor(t *testing.T) {
	cfg := Default()
	cfg.DefaultTTL = 3600
	cfg.OperationTTLs = map[string]int{"summarize": 7200, "qa": 1800}

	assert.Equal(t, 7200*time.Second, cfg.TTLFor("summarize"))
	assert.Equal(t, 1800*time.Second, cfg.TTLFor("qa"))
	assert.Equal(t, 3600*time.Second, cfg.TTLFor("foo"), "unknown operations use the default TTL")
}

func TestFromEnv(t *testing.T) {
	t.Setenv("AICACHE_REDIS_URL", "redis://env:6379")
	t.Setenv("AICACHE_DEFAULT_TTL", "1200")
	t.Setenv("AICACHE_ENABLE_L1_CACHE", "false")

	cfg, err := FromEnv("")
	require.NoError(t, err)
	assert.Equal(t, "redis://env:6379", cfg.RedisURL)
	assert.Equal(t, 1200, cfg.DefaultTTL)
	assert.False(t, cfg.EnableL1Cache)
}

func TestFromEnv_BadValue(t *testing.T) {
	t.Setenv("AICACHE_DEFAULT_TTL", "soon")
	_, err := FromEnv("")
	require.Error(t, err)
}

func TestFromFile_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.yaml")
	data := []byte("redis_url: redis://file:6379\ndefault_ttl: 900\noperation_ttls:\n  qa: 60\n")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	cfg, err := FromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "redis://file:6379", cfg.RedisURL)
	assert.Equal(t, 900, cfg.DefaultTTL)
	assert.Equal(t, 60, cfg.OperationTTLs["qa"])
}

func TestFromFile_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	data := []byte(`{"redis_url":"redis://file:6379","compression_level":3}`)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	cfg, err := FromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "redis://file:6379", cfg.RedisURL)
	assert.Equal(t, 3, cfg.CompressionLevel)
}

func TestFromFile_UnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.toml")
	require.NoError(t, os.WriteFile(path, []byte("x = 1"), 0o600))

	_, err := FromFile(path)
	require.Error(t, err)
}
