package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/Shivanand-hulikatti/slot-booking/internal/config"
	"github.com/redis/go-redis/v9"
)

// bucketScript refills and takes one token atomically on the server.
var bucketScript = redis.NewScript(`
local key = KEYS[1]
local now_ms = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local interval_ms = tonumber(ARGV[3])
local ttl_seconds = tonumber(ARGV[4])

local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
local tokens = tonumber(state[1])
local last_refill = tonumber(state[2])

if tokens == nil or last_refill == nil then
    tokens = capacity
    last_refill = now_ms
end

if interval_ms > 0 then
    local elapsed = math.max(0, now_ms - last_refill)
    local intervals = math.floor(elapsed / interval_ms)
    if intervals > 0 then
        tokens = math.min(capacity, tokens + intervals)
        last_refill = last_refill + (intervals * interval_ms)
    end
end

local allowed = 0
local retry_after_ms = 0
if tokens > 0 then
    allowed = 1
    tokens = tokens - 1
else
    retry_after_ms = math.max(0, interval_ms - (now_ms - last_refill))
end

redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
redis.call('EXPIRE', key, ttl_seconds)

return { allowed, tokens, retry_after_ms }
`)

// RedisLimiter is a token bucket shared through Redis.
type RedisLimiter struct {
	rdb      redis.Scripter
	settings Settings
	now      func() time.Time
}

// NewRedis constructs a RedisLimiter over rdb.
func NewRedis(rdb redis.Scripter, s Settings) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, settings: s.normalise(), now: time.Now}
}

// Allow consumes one token for key. Errors mean the decision could not be
// made; callers choose whether to fail open.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	vals, err := bucketScript.Run(ctx, l.rdb, []string{l.settings.Prefix + ":" + key},
		l.now().UnixMilli(),
		l.settings.Burst,
		l.settings.RefillEvery.Milliseconds(),
		int64(l.settings.TTL/time.Second),
	).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("run bucket script: %w", err)
	}
	if len(vals) != 3 {
		return Decision{}, fmt.Errorf("unexpected bucket script result %v", vals)
	}
	return Decision{
		Allowed:    vals[0] == 1,
		Limit:      l.settings.Burst,
		Remaining:  int(vals[1]),
		RetryAfter: time.Duration(vals[2]) * time.Millisecond,
	}, nil
}

// NewRedisClient connects to Redis and pings it with a short timeout.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// SettingsFrom maps the rate limit configuration onto bucket settings.
func SettingsFrom(cfg config.RateLimitConfig) Settings {
	return Settings{
		Burst:       cfg.Burst,
		RefillEvery: cfg.RefillEvery.Duration,
		TTL:         cfg.TTL.Duration,
		Prefix:      cfg.Prefix,
	}
}

// RetryAfterSeconds rounds d up to whole seconds for the Retry-After header.
func RetryAfterSeconds(d time.Duration) string {
	secs := int64((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return strconv.FormatInt(secs, 10)
}
