package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blueberrycongee/aicache/pkg/cache"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	cfg := DefaultConfig()
	cfg.Addr = s.Addr()
	c, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, s
}

func TestCache_BasicOperations(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	t.Run("set and get", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "key1", []byte("value1"), time.Minute))

		val, err := c.Get(ctx, "key1")
		require.NoError(t, err)
		assert.Equal(t, []byte("value1"), val)
	})

	t.Run("miss is not an error", func(t *testing.T) {
		val, err := c.Get(ctx, "missing")
		require.NoError(t, err)
		assert.Nil(t, val)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "key2", []byte("v"), time.Minute))

		existed, err := c.Delete(ctx, "key2")
		require.NoError(t, err)
		assert.True(t, existed)

		existed, err = c.Delete(ctx, "key2")
		require.NoError(t, err)
		assert.False(t, existed)
	})

	t.Run("exists", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "key3", []byte("v"), time.Minute))

		ok, err := c.Exists(ctx, "key3")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = c.Exists(ctx, "absent")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestCache_NamespacePrefix(t *testing.T) {
	c, s := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "op:summarize|txt:hi", []byte("v"), time.Minute))
	assert.True(t, s.Exists("ai_cache:op:summarize|txt:hi"))
}

func TestCache_ClearRespectsNamespace(t *testing.T) {
	c, s := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, c.Set(ctx, "b", []byte("2"), time.Minute))
	s.Set("foreign:key", "untouchable")

	require.NoError(t, c.Clear(ctx))

	val, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, val)
	assert.True(t, s.Exists("foreign:key"), "keys outside the namespace must survive Clear")
}

func TestCache_DeleteMatching(t *testing.T) {
	c, s := newTestCache(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, c.Set(ctx, fmt.Sprintf("op:summarize|%d", i), []byte("v"), time.Minute))
	}
	require.NoError(t, c.Set(ctx, "op:qa|0", []byte("v"), time.Minute))
	s.Set("other:op:summarize|9", "untouchable")

	n, err := c.DeleteMatching(ctx, "*op:summarize*", 0)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	ok, err := c.Exists(ctx, "op:qa|0")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, s.Exists("other:op:summarize|9"))
}

func TestCache_GetWithTTL(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "timed", []byte("v"), time.Hour))

	val, ttl, err := c.GetWithTTL(ctx, "timed")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), val)
	assert.Greater(t, ttl, 59*time.Minute)

	val, ttl, err = c.GetWithTTL(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, val)
	assert.Equal(t, time.Duration(0), ttl)
}

func TestCache_TTLExpiry(t *testing.T) {
	c, s := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "short", []byte("v"), time.Second))
	s.FastForward(2 * time.Second)

	val, err := c.Get(ctx, "short")
	require.NoError(t, err)
	assert.Nil(t, val)
}

func TestCache_PingHealth(t *testing.T) {
	c, s := newTestCache(t)
	ctx := context.Background()

	assert.Equal(t, cache.Healthy, c.Ping(ctx))

	s.Close()
	assert.Equal(t, cache.Unavailable, c.Ping(ctx))
}

func TestCache_ConnectFailure(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:1"
	cfg.DialTimeout = 100 * time.Millisecond

	_, err := New(context.Background(), cfg, nil)
	require.Error(t, err)
}

func TestCache_SetPipeline(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	entries := []cache.Entry{
		{Key: "p1", Value: []byte("1"), TTL: time.Minute},
		{Key: "p2", Value: []byte("2"), TTL: time.Minute},
	}
	require.NoError(t, c.SetPipeline(ctx, entries))

	for _, e := range entries {
		val, err := c.Get(ctx, e.Key)
		require.NoError(t, err)
		assert.Equal(t, e.Value, val)
	}
}

type fakeSecurityProvider struct {
	addr string
}

func (f *fakeSecurityProvider) CreateSecureClient(context.Context) (goredis.UniversalClient, error) {
	return goredis.NewClient(&goredis.Options{Addr: f.addr}), nil
}

func (f *fakeSecurityProvider) ValidateConnection(context.Context, goredis.UniversalClient) ConnectionSecurity {
	return ConnectionSecurity{
		IsSecure:        false,
		Vulnerabilities: []string{"plaintext transport"},
		Recommendations: []string{"enable TLS"},
	}
}

func (f *fakeSecurityProvider) Status() SecurityStatus {
	return SecurityStatus{Level: "basic", Summary: "no TLS"}
}

func TestCache_SecurityProvider(t *testing.T) {
	s := miniredis.RunT(t)
	cfg := DefaultConfig()

	c, err := New(context.Background(), cfg, &fakeSecurityProvider{addr: s.Addr()})
	require.NoError(t, err)
	defer c.Close()

	report := c.SecurityReport()
	require.NotNil(t, report)
	assert.False(t, report.IsSecure)
	assert.Contains(t, report.Vulnerabilities, "plaintext transport")
}

func TestParseUsedMemory(t *testing.T) {
	info := "# Memory\r\nused_memory:1048576\r\nused_memory_human:1.00M\r\n"
	assert.Equal(t, int64(1048576), parseUsedMemory(info))
	assert.Equal(t, int64(0), parseUsedMemory("garbage"))
}
