// Package config holds the cache configuration record, the deployment
// presets tuned for common scenarios, and the validator that gates every
// configuration before a cache is constructed. A Config is treated as
// immutable once validated; merging produces a new value.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/blueberrycongee/aicache/internal/params"
	"github.com/blueberrycongee/aicache/pkg/cache"
)

// Strategy is a coarse performance/reliability tradeoff label.
type Strategy string

const (
	StrategyFast        Strategy = "fast"
	StrategyBalanced    Strategy = "balanced"
	StrategyRobust      Strategy = "robust"
	StrategyAIOptimized Strategy = "ai_optimized"
)

// SizeTiers are the ordered text-length thresholds, in characters, used
// to segment metrics. Texts above Large classify as xlarge.
type SizeTiers struct {
	Small  int `yaml:"small" json:"small"`
	Medium int `yaml:"medium" json:"medium"`
	Large  int `yaml:"large" json:"large"`
}

// DefaultSizeTiers returns the standard tier boundaries.
func DefaultSizeTiers() SizeTiers {
	return SizeTiers{Small: 500, Medium: 5000, Large: 50000}
}

// Config is the consolidated configuration record. The generic group
// drives the two-tier engine; the AI group drives key generation, TTL
// resolution and tier metrics.
type Config struct {
	// Generic parameters
	RedisURL              string `yaml:"redis_url" json:"redis_url"`
	DefaultTTL            int    `yaml:"default_ttl" json:"default_ttl"` // seconds
	EnableL1Cache         bool   `yaml:"enable_l1_cache" json:"enable_l1_cache"`
	L1CacheSize           int    `yaml:"l1_cache_size" json:"l1_cache_size"`
	CompressionThreshold  int    `yaml:"compression_threshold" json:"compression_threshold"` // bytes
	CompressionLevel      int    `yaml:"compression_level" json:"compression_level"`         // zlib 1-9
	FailOnConnectionError bool   `yaml:"fail_on_connection_error" json:"fail_on_connection_error"`
	SecurityConfig        any    `yaml:"security_config,omitempty" json:"security_config,omitempty"` // opaque to the engine

	// AI-specific parameters
	TextHashThreshold int            `yaml:"text_hash_threshold" json:"text_hash_threshold"`
	HashAlgorithm     string         `yaml:"hash_algorithm" json:"hash_algorithm"`
	TextSizeTiers     SizeTiers      `yaml:"text_size_tiers" json:"text_size_tiers"`
	OperationTTLs     map[string]int `yaml:"operation_ttls" json:"operation_ttls"` // seconds

	Strategy Strategy `yaml:"strategy" json:"strategy"`
}

// Default returns the balanced baseline every preset builds on.
func Default() Config {
	return Config{
		DefaultTTL:           3600,
		EnableL1Cache:        true,
		L1CacheSize:          1000,
		CompressionThreshold: 1024,
		CompressionLevel:     6,
		TextHashThreshold:    1000,
		HashAlgorithm:        "sha256",
		TextSizeTiers:        DefaultSizeTiers(),
		OperationTTLs: map[string]int{
			"summarize":  7200,
			"sentiment":  86400,
			"key_points": 7200,
			"questions":  3600,
			"qa":         1800,
		},
		Strategy: StrategyBalanced,
	}
}

// Validate checks ranges and cross-field constraints. A Config that
// passed validation is treated as read-only from then on.
func (c Config) Validate() ValidationResult {
	res := ValidationResult{IsValid: true}

	checkRange := func(name string, v, min, max int) {
		if v < min || v > max {
			res.addError("%s must be between %d and %d, got %d", name, min, max, v)
		}
	}
	checkRange("default_ttl", c.DefaultTTL, 1, 31_536_000)
	checkRange("compression_threshold", c.CompressionThreshold, 0, 1_048_576)
	checkRange("compression_level", c.CompressionLevel, 1, 9)
	checkRange("text_hash_threshold", c.TextHashThreshold, 1, 100_000)
	checkRange("l1_cache_size", c.L1CacheSize, 1, 10_000)

	if !(c.TextSizeTiers.Small < c.TextSizeTiers.Medium && c.TextSizeTiers.Medium < c.TextSizeTiers.Large) {
		res.addError("text_size_tiers must satisfy small < medium < large, got %d/%d/%d",
			c.TextSizeTiers.Small, c.TextSizeTiers.Medium, c.TextSizeTiers.Large)
	}
	if c.HashAlgorithm != "" && c.HashAlgorithm != "sha256" {
		res.addError("unsupported hash_algorithm %q", c.HashAlgorithm)
	}
	for op, ttl := range c.OperationTTLs {
		if ttl < 1 || ttl > 31_536_000 {
			res.addError("operation_ttls[%s] must be between 1 and 31536000, got %d", op, ttl)
		}
	}
	if c.RedisURL != "" && !strings.HasPrefix(c.RedisURL, "redis://") && !strings.HasPrefix(c.RedisURL, "rediss://") {
		res.addError("redis_url must start with redis:// or rediss://")
	}

	if !c.EnableL1Cache && c.RedisURL == "" {
		res.addWarning("no L1 cache and no redis_url: every operation will miss")
	}
	if c.CompressionLevel >= 8 {
		res.addInfo("compression level %d trades CPU for size; level 6 is the usual balance", c.CompressionLevel)
	}

	return res
}

// Err converts a failed validation into a ConfigError; nil when valid.
func (r ValidationResult) Err() error {
	if r.IsValid {
		return nil
	}
	return &cache.ConfigError{Errors: r.Errors}
}

// Merge overlays non-zero fields of other onto c and returns the result.
// Merging a config with itself is the identity.
func (c Config) Merge(other Config) Config {
	out := c
	if other.RedisURL != "" {
		out.RedisURL = other.RedisURL
	}
	if other.DefaultTTL != 0 {
		out.DefaultTTL = other.DefaultTTL
	}
	if other.L1CacheSize != 0 {
		out.L1CacheSize = other.L1CacheSize
	}
	if other.CompressionThreshold != 0 {
		out.CompressionThreshold = other.CompressionThreshold
	}
	if other.CompressionLevel != 0 {
		out.CompressionLevel = other.CompressionLevel
	}
	if other.TextHashThreshold != 0 {
		out.TextHashThreshold = other.TextHashThreshold
	}
	if other.HashAlgorithm != "" {
		out.HashAlgorithm = other.HashAlgorithm
	}
	if other.TextSizeTiers != (SizeTiers{}) {
		out.TextSizeTiers = other.TextSizeTiers
	}
	if other.OperationTTLs != nil {
		merged := make(map[string]int, len(c.OperationTTLs)+len(other.OperationTTLs))
		for op, ttl := range c.OperationTTLs {
			merged[op] = ttl
		}
		for op, ttl := range other.OperationTTLs {
			merged[op] = ttl
		}
		out.OperationTTLs = merged
	}
	if other.Strategy != "" {
		out.Strategy = other.Strategy
	}
	if other.SecurityConfig != nil {
		out.SecurityConfig = other.SecurityConfig
	}
	out.EnableL1Cache = c.EnableL1Cache || other.EnableL1Cache
	out.FailOnConnectionError = c.FailOnConnectionError || other.FailOnConnectionError
	return out
}

// ToGenericParams exports the generic parameter group as a map.
func (c Config) ToGenericParams() map[string]any {
	return map[string]any{
		"redis_url":                c.RedisURL,
		"default_ttl":              c.DefaultTTL,
		"enable_l1_cache":          c.EnableL1Cache,
		"l1_cache_size":            c.L1CacheSize,
		"compression_threshold":    c.CompressionThreshold,
		"compression_level":        c.CompressionLevel,
		"fail_on_connection_error": c.FailOnConnectionError,
	}
}

// ToAIParams exports the AI parameter group as a map.
func (c Config) ToAIParams() map[string]any {
	return map[string]any{
		"text_hash_threshold": c.TextHashThreshold,
		"hash_algorithm":      c.HashAlgorithm,
		"text_size_tiers": map[string]int{
			"small":  c.TextSizeTiers.Small,
			"medium": c.TextSizeTiers.Medium,
			"large":  c.TextSizeTiers.Large,
		},
		"operation_ttls": c.OperationTTLs,
	}
}

// DefaultTTLDuration returns the default TTL as a duration.
func (c Config) DefaultTTLDuration() time.Duration {
	return time.Duration(c.DefaultTTL) * time.Second
}

// TTLFor resolves the TTL for an operation, falling back to the default
// for unknown operations.
func (c Config) TTLFor(operation string) time.Duration {
	if ttl, ok := c.OperationTTLs[operation]; ok {
		return time.Duration(ttl) * time.Second
	}
	return c.DefaultTTLDuration()
}

// FromMap builds a config from a raw option map, routing keys through
// the parameter mapper so aliases and unknown keys are handled uniformly.
// The base for unset values is Default().
func FromMap(input map[string]any) (Config, error) {
	mapped := params.Map(input)
	if !mapped.OK {
		return Config{}, &cache.ConfigError{Errors: mapped.Errors}
	}

	cfg := Default()
	applyMapped(&cfg, mapped.Generic, mapped.AI)
	return cfg, nil
}

func applyMapped(cfg *Config, generic, ai map[string]any) {
	if v, ok := generic["redis_url"].(string); ok {
		cfg.RedisURL = v
	}
	if v, ok := intFrom(generic["default_ttl"]); ok {
		cfg.DefaultTTL = v
	}
	if v, ok := generic["enable_l1_cache"].(bool); ok {
		cfg.EnableL1Cache = v
	}
	if v, ok := intFrom(generic["l1_cache_size"]); ok {
		cfg.L1CacheSize = v
	}
	if v, ok := intFrom(generic["compression_threshold"]); ok {
		cfg.CompressionThreshold = v
	}
	if v, ok := intFrom(generic["compression_level"]); ok {
		cfg.CompressionLevel = v
	}
	if v, ok := generic["fail_on_connection_error"].(bool); ok {
		cfg.FailOnConnectionError = v
	}
	if v, ok := generic["security_config"]; ok && v != nil {
		cfg.SecurityConfig = v
	}

	if v, ok := intFrom(ai["text_hash_threshold"]); ok {
		cfg.TextHashThreshold = v
	}
	if v, ok := ai["hash_algorithm"].(string); ok {
		cfg.HashAlgorithm = v
	}
	if tiers, ok := ai["text_size_tiers"]; ok {
		if st, ok := sizeTiersFrom(tiers); ok {
			cfg.TextSizeTiers = st
		}
	}
	if ttls, ok := ai["operation_ttls"]; ok {
		if m, ok := intMapFrom(ttls); ok {
			cfg.OperationTTLs = m
		}
	}
}

// ApplyOverrides overlays only the explicitly-provided option values
// onto c, routing them through the parameter mapper first. Unlike Merge,
// booleans can be overridden in either direction.
func (c Config) ApplyOverrides(input map[string]any) (Config, error) {
	if len(input) == 0 {
		return c, nil
	}
	mapped := params.Map(input)
	if !mapped.OK {
		return Config{}, &cache.ConfigError{Errors: mapped.Errors}
	}
	out := c
	applyMapped(&out, mapped.Generic, mapped.AI)
	return out, nil
}

// FromEnv builds a config from environment variables under the given
// prefix (e.g. AICACHE_REDIS_URL, AICACHE_DEFAULT_TTL). Unset variables
// keep their Default() values.
func FromEnv(prefix string) (Config, error) {
	if prefix == "" {
		prefix = "AICACHE"
	}
	lookup := func(name string) (string, bool) {
		return os.LookupEnv(prefix + "_" + name)
	}

	cfg := Default()
	if v, ok := lookup("REDIS_URL"); ok {
		cfg.RedisURL = v
	}
	var err error
	setInt := func(name string, dst *int) {
		v, ok := lookup(name)
		if !ok || err != nil {
			return
		}
		n, convErr := strconv.Atoi(v)
		if convErr != nil {
			err = fmt.Errorf("%s_%s: %w", prefix, name, convErr)
			return
		}
		*dst = n
	}
	setBool := func(name string, dst *bool) {
		v, ok := lookup(name)
		if !ok || err != nil {
			return
		}
		b, convErr := strconv.ParseBool(v)
		if convErr != nil {
			err = fmt.Errorf("%s_%s: %w", prefix, name, convErr)
			return
		}
		*dst = b
	}

	setInt("DEFAULT_TTL", &cfg.DefaultTTL)
	setBool("ENABLE_L1_CACHE", &cfg.EnableL1Cache)
	setInt("L1_CACHE_SIZE", &cfg.L1CacheSize)
	setInt("COMPRESSION_THRESHOLD", &cfg.CompressionThreshold)
	setInt("COMPRESSION_LEVEL", &cfg.CompressionLevel)
	setBool("FAIL_ON_CONNECTION_ERROR", &cfg.FailOnConnectionError)
	setInt("TEXT_HASH_THRESHOLD", &cfg.TextHashThreshold)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromFile loads a config from a YAML or JSON file, selected by
// extension. File values overlay Default().
func FromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	switch ext := filepath.Ext(path); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse yaml config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse json config: %w", err)
		}
	default:
		return Config{}, fmt.Errorf("unsupported config extension %q", ext)
	}
	return cfg, nil
}

// ToMap exports the full config as a flat option map; FromMap inverts it.
func (c Config) ToMap() map[string]any {
	out := c.ToGenericParams()
	for k, v := range c.ToAIParams() {
		out[k] = v
	}
	return out
}

func intFrom(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

func intMapFrom(v any) (map[string]int, bool) {
	switch m := v.(type) {
	case map[string]int:
		return m, true
	case map[string]any:
		out := make(map[string]int, len(m))
		for k, raw := range m {
			n, ok := intFrom(raw)
			if !ok {
				return nil, false
			}
			out[k] = n
		}
		return out, true
	default:
		return nil, false
	}
}

func sizeTiersFrom(v any) (SizeTiers, bool) {
	if st, ok := v.(SizeTiers); ok {
		return st, true
	}
	m, ok := intMapFrom(v)
	if !ok {
		return SizeTiers{}, false
	}
	return SizeTiers{Small: m["small"], Medium: m["medium"], Large: m["large"]}, true
}
