package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// slidingWindowScript evicts, counts and conditionally records in one round trip.
// KEYS[1] = window key
// ARGV[1] = now (ms), ARGV[2] = window (ms), ARGV[3] = limit, ARGV[4] = member
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call("ZREMRANGEBYSCORE", key, "-inf", "(" .. (now - window))
local count = redis.call("ZCARD", key)
if count >= limit then
    return 0
end
redis.call("ZADD", key, now, ARGV[4])
redis.call("PEXPIRE", key, window)
return 1
`)

// RedisWindow shares the sliding window across processes through Redis.
type RedisWindow struct {
	client redis.UniversalClient
	limit  int
	window time.Duration
	prefix string
}

// NewRedisWindow builds a RedisWindow on an existing client.
func NewRedisWindow(client redis.UniversalClient, limit int, window time.Duration) *RedisWindow {
	if limit < 1 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RedisWindow{client: client, limit: limit, window: window, prefix: "stowbot:ratelimit:"}
}

// Admit implements Limiter.
func (w *RedisWindow) Admit(ctx context.Context, key string, now time.Time) (bool, error) {
	res, err := slidingWindowScript.Run(ctx, w.client,
		[]string{w.prefix + key},
		now.UnixMilli(), w.window.Milliseconds(), w.limit, uuid.NewString(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("redis rate limit: %w", err)
	}
	return res == 1, nil
}
