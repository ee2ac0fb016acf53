package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestLimiter(t *testing.T) (*RedisLimiter, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisLimiter(client, zaptest.NewLogger(t)), mr
}

func TestRedisLimiter_Allow(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	ctx := context.Background()

	config := LimitConfig{
		Key:    "test-key",
		Limit:  3,
		Period: time.Minute,
	}

	// The first three requests fit within the limit
	for i := 0; i < 3; i++ {
		allowed, limit, _, _, err := limiter.Allow(ctx, config)
		require.NoError(t, err)
		assert.True(t, allowed, "request %d should be allowed", i+1)
		assert.Equal(t, 3, limit)
	}

	// The fourth request exceeds it
	allowed, _, remaining, _, err := limiter.Allow(ctx, config)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Less(t, remaining, 0)
}

func TestRedisLimiter_AllowInvalidConfig(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	ctx := context.Background()

	// Invalid limits fail open
	allowed, _, _, _, err := limiter.Allow(ctx, LimitConfig{Key: "k", Limit: 0, Period: time.Minute})
	assert.Error(t, err)
	assert.True(t, allowed)

	allowed, _, _, _, err = limiter.Allow(ctx, LimitConfig{Key: "k", Limit: 5, Period: 0})
	assert.Error(t, err)
	assert.True(t, allowed)
}

func TestRedisLimiter_BurstFactor(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	ctx := context.Background()

	config := LimitConfig{
		Key:         "burst-key",
		Limit:       2,
		Period:      time.Minute,
		BurstFactor: 2.0, // effective ceiling of 4
	}

	for i := 0; i < 4; i++ {
		allowed, _, _, _, err := limiter.Allow(ctx, config)
		require.NoError(t, err)
		assert.True(t, allowed, "request %d should be within burst", i+1)
	}

	allowed, _, _, _, err := limiter.Allow(ctx, config)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestRedisLimiter_AllowRoute(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	ctx := context.Background()

	// Counters are isolated per route and per client
	for i := 0; i < 2; i++ {
		allowed, _, _, err := limiter.AllowRoute(ctx, "route-1", "10.0.0.1", 2)
		require.NoError(t, err)
		assert.True(t, allowed)
	}

	allowed, _, _, err := limiter.AllowRoute(ctx, "route-1", "10.0.0.1", 2)
	require.NoError(t, err)
	assert.False(t, allowed, "client over its per-route limit")

	allowed, _, _, err = limiter.AllowRoute(ctx, "route-1", "10.0.0.2", 2)
	require.NoError(t, err)
	assert.True(t, allowed, "other clients keep their own budget")

	allowed, _, _, err = limiter.AllowRoute(ctx, "route-2", "10.0.0.1", 2)
	require.NoError(t, err)
	assert.True(t, allowed, "other routes keep their own budget")
}

func TestRedisLimiter_ResetsAfterPeriod(t *testing.T) {
	limiter, mr := newTestLimiter(t)
	ctx := context.Background()

	config := LimitConfig{Key: "reset-key", Limit: 1, Period: time.Minute}

	allowed, _, _, _, err := limiter.Allow(ctx, config)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, _, _, _, err = limiter.Allow(ctx, config)
	require.NoError(t, err)
	assert.False(t, allowed)

	// After the window expires the counter starts over
	mr.FastForward(2 * time.Minute)

	allowed, _, _, _, err = limiter.Allow(ctx, config)
	require.NoError(t, err)
	assert.True(t, allowed)
}
