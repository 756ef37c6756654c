// Package redis provides the Redis-backed L2 cache implementation.
package redis

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/blueberrycongee/aicache/pkg/cache"
)

// Cache implements cache.Cache using Redis as backend. Every key is
// stored under the configured namespace; bulk operations (Clear, Scan)
// are restricted to that namespace and never touch foreign keys.
type Cache struct {
	client     goredis.UniversalClient
	namespace  string
	defaultTTL time.Duration
	security   *ConnectionSecurity

	// Statistics
	hits    atomic.Int64
	misses  atomic.Int64
	sets    atomic.Int64
	deletes atomic.Int64
	errors  atomic.Int64
}

// Config holds configuration for the Redis Cache.
type Config struct {
	// Single node configuration
	Addr     string `yaml:"addr"`     // Redis address (e.g., "localhost:6379")
	Password string `yaml:"password"` // Redis password
	DB       int    `yaml:"db"`       // Redis database number

	// Cluster configuration
	ClusterAddrs []string `yaml:"cluster_addrs"` // Redis cluster addresses

	// Sentinel configuration
	SentinelAddrs  []string `yaml:"sentinel_addrs"`  // Sentinel addresses
	SentinelMaster string   `yaml:"sentinel_master"` // Sentinel master name

	// Common configuration
	Namespace    string        `yaml:"namespace"`      // Key namespace prefix (default: "ai_cache")
	DefaultTTL   time.Duration `yaml:"default_ttl"`    // Default TTL (default: 1 hour)
	DialTimeout  time.Duration `yaml:"dial_timeout"`   // Connection timeout
	ReadTimeout  time.Duration `yaml:"read_timeout"`   // Read timeout
	WriteTimeout time.Duration `yaml:"write_timeout"`  // Write timeout
	PoolSize     int           `yaml:"pool_size"`      // Connection pool size
	MinIdleConns int           `yaml:"min_idle_conns"` // Minimum idle connections
	MaxRetries   int           `yaml:"max_retries"`    // Maximum retries
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Addr:         "localhost:6379",
		DB:           0,
		Namespace:    "ai_cache",
		DefaultTTL:   time.Hour,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
	}
}

// New creates a new Redis cache client and verifies connectivity.
// When a SecurityProvider is supplied the client is obtained from it and
// the connection security report is retained for Status queries.
func New(ctx context.Context, cfg Config, security SecurityProvider) (*Cache, error) {
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = time.Hour
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "ai_cache"
	}

	var (
		client goredis.UniversalClient
		report *ConnectionSecurity
		err    error
	)

	if security != nil {
		client, err = security.CreateSecureClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("secure client: %w", err)
		}
	} else {
		client = newPlainClient(cfg)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	if security != nil {
		sec := security.ValidateConnection(ctx, client)
		report = &sec
	}

	return &Cache{
		client:     client,
		namespace:  cfg.Namespace,
		defaultTTL: cfg.DefaultTTL,
		security:   report,
	}, nil
}

func newPlainClient(cfg Config) goredis.UniversalClient {
	switch {
	case len(cfg.ClusterAddrs) > 0:
		return goredis.NewClusterClient(&goredis.ClusterOptions{
			Addrs:        cfg.ClusterAddrs,
			Password:     cfg.Password,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			PoolSize:     cfg.PoolSize,
			MinIdleConns: cfg.MinIdleConns,
			MaxRetries:   cfg.MaxRetries,
		})
	case len(cfg.SentinelAddrs) > 0:
		return goredis.NewFailoverClient(&goredis.FailoverOptions{
			MasterName:    cfg.SentinelMaster,
			SentinelAddrs: cfg.SentinelAddrs,
			Password:      cfg.Password,
			DB:            cfg.DB,
			DialTimeout:   cfg.DialTimeout,
			ReadTimeout:   cfg.ReadTimeout,
			WriteTimeout:  cfg.WriteTimeout,
			PoolSize:      cfg.PoolSize,
			MinIdleConns:  cfg.MinIdleConns,
			MaxRetries:    cfg.MaxRetries,
		})
	default:
		return goredis.NewClient(&goredis.Options{
			Addr:         cfg.Addr,
			Password:     cfg.Password,
			DB:           cfg.DB,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			PoolSize:     cfg.PoolSize,
			MinIdleConns: cfg.MinIdleConns,
			MaxRetries:   cfg.MaxRetries,
		})
	}
}

// ConfigFromURL maps a redis:// or rediss:// URL onto a Config, keeping
// defaults for everything the URL does not express.
func ConfigFromURL(rawURL string) (Config, error) {
	opts, err := goredis.ParseURL(rawURL)
	if err != nil {
		return Config{}, fmt.Errorf("parse redis url: %w", err)
	}

	cfg := DefaultConfig()
	cfg.Addr = opts.Addr
	cfg.Password = opts.Password
	cfg.DB = opts.DB
	if opts.DialTimeout > 0 {
		cfg.DialTimeout = opts.DialTimeout
	}
	if opts.ReadTimeout > 0 {
		cfg.ReadTimeout = opts.ReadTimeout
	}
	if opts.WriteTimeout > 0 {
		cfg.WriteTimeout = opts.WriteTimeout
	}
	if opts.PoolSize > 0 {
		cfg.PoolSize = opts.PoolSize
	}
	return cfg, nil
}

// prefixKey adds the namespace prefix to the key.
func (c *Cache) prefixKey(key string) string {
	if c.namespace == "" {
		return key
	}
	return c.namespace + ":" + key
}

// Get retrieves a value from Redis.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, c.prefixKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			c.misses.Add(1)
			return nil, nil
		}
		c.errors.Add(1)
		return nil, fmt.Errorf("redis get: %w", err)
	}

	c.hits.Add(1)
	return val, nil
}

// GetWithTTL retrieves a value along with its remaining TTL.
func (c *Cache) GetWithTTL(ctx context.Context, key string) ([]byte, time.Duration, error) {
	prefixedKey := c.prefixKey(key)

	pipe := c.client.Pipeline()
	getCmd := pipe.Get(ctx, prefixedKey)
	ttlCmd := pipe.TTL(ctx, prefixedKey)

	_, err := pipe.Exec(ctx)
	if err != nil && !errors.Is(err, goredis.Nil) {
		c.errors.Add(1)
		return nil, 0, fmt.Errorf("redis pipeline: %w", err)
	}

	val, err := getCmd.Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			c.misses.Add(1)
			return nil, 0, nil
		}
		return nil, 0, err
	}

	ttl := ttlCmd.Val()
	if ttl < 0 {
		ttl = 0
	}
	c.hits.Add(1)

	return val, ttl, nil
}

// Set stores a value in Redis with TTL.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	if err := c.client.Set(ctx, c.prefixKey(key), value, ttl).Err(); err != nil {
		c.errors.Add(1)
		return fmt.Errorf("redis set: %w", err)
	}

	c.sets.Add(1)
	return nil
}

// Delete removes a key, reporting whether it existed.
func (c *Cache) Delete(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Del(ctx, c.prefixKey(key)).Result()
	if err != nil {
		c.errors.Add(1)
		return false, fmt.Errorf("redis del: %w", err)
	}
	if n > 0 {
		c.deletes.Add(1)
	}
	return n > 0, nil
}

// Exists reports key presence without fetching the payload.
func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, c.prefixKey(key)).Result()
	if err != nil {
		c.errors.Add(1)
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}

// Clear removes every key under the cache's namespace using bounded SCAN
// iterations. Keys outside the namespace are never touched.
func (c *Cache) Clear(ctx context.Context) error {
	_, err := c.DeleteMatching(ctx, "*", 0)
	return err
}

// DeleteMatching removes keys matching the glob pattern within the
// namespace, iterating the keyspace in bounded chunks. A positive budget
// caps the wall time; on overrun the count removed so far is returned
// with ErrBudgetExceeded.
func (c *Cache) DeleteMatching(ctx context.Context, pattern string, budget time.Duration) (int, error) {
	match := c.prefixKey(pattern)
	deadline := time.Time{}
	if budget > 0 {
		deadline = time.Now().Add(budget)
	}

	var (
		cursor  uint64
		removed int
	)
	for {
		keys, next, err := c.client.Scan(ctx, cursor, match, 100).Result()
		if err != nil {
			c.errors.Add(1)
			return removed, fmt.Errorf("redis scan: %w", err)
		}
		if len(keys) > 0 {
			n, err := c.client.Del(ctx, keys...).Result()
			if err != nil {
				c.errors.Add(1)
				return removed, fmt.Errorf("redis del: %w", err)
			}
			removed += int(n)
			c.deletes.Add(n)
		}
		cursor = next
		if cursor == 0 {
			return removed, nil
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return removed, ErrBudgetExceeded
		}
	}
}

// ErrBudgetExceeded reports a pattern deletion interrupted by its time
// budget; the returned count is the partial total.
var ErrBudgetExceeded = errors.New("pattern deletion budget exceeded")

// Ping checks Redis connectivity.
func (c *Cache) Ping(ctx context.Context) cache.Health {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return cache.Unavailable
	}
	return cache.Healthy
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	return c.client.Close()
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
		Errors:  c.errors.Load(),
		HitRate: hitRate,
	}
}

// SetPipeline performs batch set operations using a Redis pipeline.
func (c *Cache) SetPipeline(ctx context.Context, entries []cache.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	pipe := c.client.Pipeline()
	for _, entry := range entries {
		ttl := entry.TTL
		if ttl <= 0 {
			ttl = c.defaultTTL
		}
		pipe.Set(ctx, c.prefixKey(entry.Key), entry.Value, ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		c.errors.Add(1)
		return fmt.Errorf("redis pipeline exec: %w", err)
	}

	c.sets.Add(int64(len(entries)))
	return nil
}

// UsedMemory reports the backend's used_memory if the INFO command is
// available; zero when it is not.
func (c *Cache) UsedMemory(ctx context.Context) int64 {
	res, err := c.client.Info(ctx, "memory").Result()
	if err != nil {
		return 0
	}
	return parseUsedMemory(res)
}

// SecurityReport returns the connection security report captured at
// construction, or nil when no security provider was configured.
func (c *Cache) SecurityReport() *ConnectionSecurity {
	return c.security
}
