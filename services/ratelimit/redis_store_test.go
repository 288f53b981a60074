package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	cli := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = cli.Close() })
	return NewRedisStore(cli), mr
}

func TestRedisStore_CheckAndConsume(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		res, err := store.CheckAndConsume(ctx, "10.0.0.1", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, 3-i, res.Remaining)
	}

	res, err := store.CheckAndConsume(ctx, "10.0.0.1", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)

	val, err := mr.Get(redisKeyPrefix + "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "3", val, "rejected requests are not counted")

	ttl := mr.TTL(redisKeyPrefix + "10.0.0.1")
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Minute)
}

func TestRedisStore_WindowExpiry(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := store.CheckAndConsume(ctx, "client", 3, time.Minute)
		require.NoError(t, err)
	}

	mr.FastForward(61 * time.Second)

	res, err := store.CheckAndConsume(ctx, "client", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 2, res.Remaining)
}

func TestRedisStore_ClientsAreIndependent(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	_, err := store.CheckAndConsume(ctx, "a", 1, time.Minute)
	require.NoError(t, err)

	resA, err := store.CheckAndConsume(ctx, "a", 1, time.Minute)
	require.NoError(t, err)
	resB, err := store.CheckAndConsume(ctx, "b", 1, time.Minute)
	require.NoError(t, err)

	assert.False(t, resA.Allowed)
	assert.True(t, resB.Allowed)
}

func TestRedisStore_ConnectionError(t *testing.T) {
	store, mr := newTestRedisStore(t)
	mr.Close()

	_, err := store.CheckAndConsume(context.Background(), "client", 3, time.Minute)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis rate limit script")
	assert.Error(t, store.Ping(context.Background()))
}
