package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lora-studio-backend/internal/ratelimit"
)

func TestFixedWindowAllowsUpToLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	limiter, err := ratelimit.NewFixedWindow(client, "test", 3, time.Minute)
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		ok, err := limiter.Allow(ctx, "login:1.2.3.4")
		require.NoError(t, err)
		assert.True(t, ok, "request %d", i+1)
	}

	ok, err := limiter.Allow(ctx, "login:1.2.3.4")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = limiter.Allow(ctx, "login:5.6.7.8")
	require.NoError(t, err)
	assert.True(t, ok, "other keys have their own window")
}

func TestFixedWindowSetsExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	limiter, err := ratelimit.NewFixedWindow(client, "test", 1, time.Minute)
	require.NoError(t, err)

	_, err = limiter.Allow(context.Background(), "k")
	require.NoError(t, err)

	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.Greater(t, mr.TTL(keys[0]), time.Duration(0))
}

func TestFixedWindowFailsClosed(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	limiter, err := ratelimit.NewFixedWindow(client, "test", 1, time.Minute)
	require.NoError(t, err)
	mr.Close()

	ok, err := limiter.Allow(context.Background(), "k")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestNewFixedWindowValidates(t *testing.T) {
	_, err := ratelimit.NewFixedWindow(nil, "", 1, time.Minute)
	assert.Error(t, err)

	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	_, err = ratelimit.NewFixedWindow(client, "", 0, time.Minute)
	assert.Error(t, err)
}
