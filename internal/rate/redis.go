package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// The counter, its expiry and the remaining TTL are read in one script so
// the increment and the decision derived from it cannot interleave with
// another caller.
const fixedWindowScript = `
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {count, ttl}
`

var fixedWindowLua = redis.NewScript(fixedWindowScript)

// RedisLimiter keeps fixed-window counters in Redis so every keygate
// instance shares one budget per key.
type RedisLimiter struct {
	redis  redis.UniversalClient
	prefix string
}

func NewRedis(client redis.UniversalClient, prefix string) *RedisLimiter {
	if prefix == "" {
		prefix = "keygate:rl"
	}
	return &RedisLimiter{redis: client, prefix: prefix}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (Result, error) {
	windowMS := window.Milliseconds()
	if windowMS <= 0 {
		windowMS = 1
	}

	raw, err := fixedWindowLua.Run(ctx, l.redis, []string{l.prefix + ":" + key}, windowMS).Int64Slice()
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(raw) != 2 {
		return Result{}, fmt.Errorf("%w: unexpected script reply %v", ErrUnavailable, raw)
	}

	count, ttl := raw[0], time.Duration(raw[1])*time.Millisecond
	if count > int64(limit) {
		return Result{Allowed: false, RetryAfter: ttl}, nil
	}
	return Result{Allowed: true, Remaining: limit - int(count), RetryAfter: ttl}, nil
}
