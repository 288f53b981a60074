package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "ratelimit:chat:"

// KEYS[1] = window key, ARGV[1] = limit, ARGV[2] = window in ms.
// Returns {allowed, count, pttl}.
var luaCheckAndConsume = redis.NewScript(`
local current = tonumber(redis.call("GET", KEYS[1]) or "0")
if current >= tonumber(ARGV[1]) then
	return {0, current, redis.call("PTTL", KEYS[1])}
end
current = redis.call("INCR", KEYS[1])
if current == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return {1, current, redis.call("PTTL", KEYS[1])}`)

// RedisStore shares client windows across replicas. The key expiry is the
// window reset, so a fresh window starts once the key is gone.
type RedisStore struct {
	cli *redis.Client
	now func() time.Time
}

// NewRedisStore creates a store backed by the given client
func NewRedisStore(cli *redis.Client) *RedisStore {
	return &RedisStore{cli: cli, now: time.Now}
}

// CheckAndConsume implements Store
func (s *RedisStore) CheckAndConsume(ctx context.Context, clientKey string, limit int, window time.Duration) (Result, error) {
	res, err := luaCheckAndConsume.Run(ctx, s.cli,
		[]string{redisKeyPrefix + clientKey}, limit, window.Milliseconds()).Int64Slice()
	if err != nil {
		return Result{}, fmt.Errorf("redis rate limit script: %w", err)
	}
	if len(res) != 3 {
		return Result{}, fmt.Errorf("redis rate limit script: unexpected reply length %d", len(res))
	}

	allowed, count, pttl := res[0] == 1, int(res[1]), res[2]

	ttl := window
	if pttl > 0 {
		ttl = time.Duration(pttl) * time.Millisecond
	}
	resetAt := s.now().Add(ttl)

	if !allowed {
		return Result{Allowed: false, Remaining: 0, ResetAt: resetAt}, nil
	}
	return Result{Allowed: true, Remaining: limit - count, ResetAt: resetAt}, nil
}

// Ping checks the connection to Redis
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.cli.Ping(ctx).Err()
}
