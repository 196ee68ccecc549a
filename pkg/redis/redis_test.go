package redis

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c21-japan/homemart-sub002/pkg/config"
	"github.com/c21-japan/homemart-sub002/pkg/logger"
)

func setupRedis(t *testing.T) (*Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return Wrap(rdb), mr
}

func TestNewClient_Disabled(t *testing.T) {
	cfg := &config.Config{
		Redis: config.RedisConfig{
			Enabled: false,
		},
	}

	client, err := New(cfg)
	require.NoError(t, err)
	assert.False(t, client.Enabled())
	assert.NoError(t, client.Close())
}

func TestPing(t *testing.T) {
	client, mr := setupRedis(t)
	assert.NoError(t, client.Ping(context.Background()))
	assert.NoError(t, Disabled().Ping(context.Background()))

	mr.Close()
	assert.Error(t, client.Ping(context.Background()))
}

func TestCache_Disabled(t *testing.T) {
	cache := NewCache(Disabled(), "test")

	var result string
	found, err := cache.Get(context.Background(), "key", &result)
	require.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, cache.Set(context.Background(), "key", "v", time.Minute))
}

func TestCache_RoundTrip(t *testing.T) {
	client, mr := setupRedis(t)
	cache := NewCache(client, "homemart")
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k", map[string]int{"total": 3}, time.Minute))
	assert.True(t, mr.Exists("homemart:cache:k"))

	var got map[string]int
	found, err := cache.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 3, got["total"])

	require.NoError(t, cache.Delete(ctx, "k"))
	found, err = cache.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCache_GetOrSet(t *testing.T) {
	client, _ := setupRedis(t)
	cache := NewCache(client, "homemart")
	ctx := context.Background()

	calls := 0
	load := func() (interface{}, error) {
		calls++
		return []string{"a", "b"}, nil
	}

	var first, second []string
	require.NoError(t, cache.GetOrSet(ctx, "list", &first, time.Minute, load))
	require.NoError(t, cache.GetOrSet(ctx, "list", &second, time.Minute, load))

	assert.Equal(t, 1, calls)
	assert.Equal(t, []string{"a", "b"}, first)
	assert.Equal(t, first, second)
}

func TestCache_CorruptEntryIsReloaded(t *testing.T) {
	client, mr := setupRedis(t)
	cache := NewCache(client, "homemart")
	ctx := context.Background()

	require.NoError(t, mr.Set("homemart:cache:stats", "{not json"))

	var got map[string]int
	_, err := cache.Get(ctx, "stats", &got)
	assert.Error(t, err)

	require.NoError(t, cache.GetOrSet(ctx, "stats", &got, time.Minute, func() (interface{}, error) {
		return map[string]int{"total": 4}, nil
	}))
	assert.Equal(t, 4, got["total"])

	raw, err := mr.Get("homemart:cache:stats")
	require.NoError(t, err)
	assert.JSONEq(t, `{"total":4}`, raw)
}

func TestCache_UnreachableServerFallsBackToLoader(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 50 * time.Millisecond})
	t.Cleanup(func() { _ = rdb.Close() })
	cache := NewCache(Wrap(rdb), "homemart")

	var got []string
	err := cache.GetOrSet(context.Background(), "list", &got, time.Minute, func() (interface{}, error) {
		return []string{"fresh"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh"}, got)
}

func TestCache_LoaderErrorIsReturned(t *testing.T) {
	cache := NewCache(Disabled(), "homemart")
	boom := errors.New("count agreements: boom")

	var got int
	err := cache.GetOrSet(context.Background(), "n", &got, time.Minute, func() (interface{}, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestRateLimiter_Redis(t *testing.T) {
	client, _ := setupRedis(t)
	limiter := NewRateLimiter(client, "homemart")
	cfg := RateLimitConfig{Key: "email", Limit: 2, Window: time.Minute}
	ctx := context.Background()

	allowed, remaining, err := limiter.Allow(ctx, cfg)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 1, remaining)

	allowed, _, err = limiter.Allow(ctx, cfg)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, remaining, err = limiter.Allow(ctx, cfg)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Zero(t, remaining)
}

func TestRateLimiter_LocalFallback(t *testing.T) {
	limiter := NewRateLimiter(Disabled(), "homemart")
	cfg := RateLimitConfig{Key: "email", Limit: 1, Window: time.Hour}
	ctx := context.Background()

	allowed, _, err := limiter.Allow(ctx, cfg)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, _, err = limiter.Allow(ctx, cfg)
	require.NoError(t, err)
	assert.False(t, allowed)

	cctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	assert.Error(t, limiter.Wait(cctx, cfg))
}

func TestEmailRateLimit(t *testing.T) {
	cfg := EmailRateLimit(0)
	assert.Equal(t, 1, cfg.Limit)
	assert.Equal(t, time.Second, cfg.Window)
}

func TestLocker_Redis(t *testing.T) {
	client, mr := setupRedis(t)
	locker := NewLocker(client, "homemart", logger.NewNop())
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "reports", time.Minute)
	require.NoError(t, err)
	assert.True(t, mr.Exists("homemart:lock:reports"))

	_, err = locker.Acquire(ctx, "reports", time.Minute)
	assert.ErrorIs(t, err, ErrLockHeld)

	release()
	release()
	assert.False(t, mr.Exists("homemart:lock:reports"))

	release, err = locker.Acquire(ctx, "reports", time.Minute)
	require.NoError(t, err)
	release()
}

func TestLocker_ReleaseDoesNotStealExpiredLock(t *testing.T) {
	client, mr := setupRedis(t)
	locker := NewLocker(client, "homemart", logger.NewNop())
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "reports", time.Second)
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	other, err := locker.Acquire(ctx, "reports", time.Minute)
	require.NoError(t, err)

	release()
	assert.True(t, mr.Exists("homemart:lock:reports"))
	other()
}

func TestLocker_ReleaseFailureIsLogged(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	client := Wrap(rdb)

	var buf bytes.Buffer
	locker := NewLocker(client, "homemart", logger.NewWithWriter(&buf, "warn"))

	release, err := locker.Acquire(context.Background(), "reports", time.Minute)
	require.NoError(t, err)

	// server gone before the batch finishes
	mr.Close()
	release()

	assert.Contains(t, buf.String(), "Failed to release lock")
	assert.Contains(t, buf.String(), "homemart:lock:reports")
}

func TestLocker_Local(t *testing.T) {
	locker := NewLocker(Disabled(), "homemart", logger.NewNop())
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "reports", time.Minute)
	require.NoError(t, err)

	_, err = locker.Acquire(ctx, "reports", time.Minute)
	assert.ErrorIs(t, err, ErrLockHeld)

	release()
	release, err = locker.Acquire(ctx, "reports", time.Minute)
	require.NoError(t, err)
	release()
}

func TestAgreementStatsKey(t *testing.T) {
	assert.Equal(t, "agreements:stats:2024-01-08", AgreementStatsKey("2024-01-08"))
}
