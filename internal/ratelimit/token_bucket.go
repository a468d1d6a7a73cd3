package ratelimit

import (
	"context"
	"errors"
	"math"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const tokenBucketScript = `
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])

local nowData = redis.call("TIME")
local now = (nowData[1] * 1000) + math.floor(nowData[2] / 1000)

local data = redis.call("HMGET", KEYS[1], "tokens", "ts")
local tokens = tonumber(data[1])
local ts = tonumber(data[2])

if tokens == nil then
  tokens = burst
  ts = now
else
  local delta = now - ts
  if delta < 0 then
    delta = 0
  end
  tokens = math.min(burst, tokens + (delta / 1000) * rate)
  ts = now
end

local allowed = 0
if tokens >= 1 then
  allowed = 1
  tokens = tokens - 1
end

redis.call("HMSET", KEYS[1], "tokens", tokens, "ts", ts)
redis.call("PEXPIRE", KEYS[1], ttl)

return {allowed, tostring(tokens), ts}
`

var (
	ErrNotConfigured = errors.New("rate limiter not configured")
	ErrInvalidBucket = errors.New("rate limiter key, rate and burst are required")
)

type TokenBucket struct {
	client redis.Scripter
	script *redis.Script
}

type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

func NewTokenBucket(client redis.Scripter) *TokenBucket {
	if client == nil {
		return nil
	}
	return &TokenBucket{
		client: client,
		script: redis.NewScript(tokenBucketScript),
	}
}

// Allow takes one token from the bucket at key. Rate is tokens per second.
func (t *TokenBucket) Allow(ctx context.Context, key string, rate float64, burst int) (Result, error) {
	if t == nil || t.client == nil {
		return Result{}, ErrNotConfigured
	}
	if key == "" || rate <= 0 || burst <= 0 {
		return Result{}, ErrInvalidBucket
	}

	ttl := bucketTTL(rate, burst)
	res, err := t.script.Run(ctx, t.client, []string{key}, rate, burst, ttl.Milliseconds()).Slice()
	if err != nil {
		return Result{}, err
	}
	if len(res) < 3 {
		return Result{}, errors.New("invalid rate limit script response")
	}
	return bucketResult(toInt(res[0]) == 1, toFloat(res[1]), rate, burst), nil
}

func bucketResult(allowed bool, remaining, rate float64, burst int) Result {
	out := Result{Allowed: allowed, Limit: burst, Remaining: int(remaining)}
	if !allowed && rate > 0 {
		if needed := 1.0 - remaining; needed > 0 {
			out.RetryAfter = time.Duration(needed / rate * float64(time.Second))
		}
	}
	return out
}

// bucketTTL keeps an idle bucket around for twice its full refill time.
func bucketTTL(rate float64, burst int) time.Duration {
	if rate <= 0 || burst <= 0 {
		return time.Second
	}
	seconds := math.Ceil((float64(burst) / rate) * 2)
	if seconds < 1 {
		seconds = 1
	}
	return time.Duration(seconds) * time.Second
}

func toInt(v any) int64 {
	switch val := v.(type) {
	case int64:
		return val
	case int:
		return int64(val)
	case float64:
		return int64(val)
	case string:
		parsed, _ := strconv.ParseInt(val, 10, 64)
		return parsed
	default:
		return 0
	}
}

// toFloat handles the string form the script uses to keep fractional tokens.
func toFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int64:
		return float64(val)
	case string:
		parsed, _ := strconv.ParseFloat(val, 64)
		return parsed
	default:
		return 0
	}
}
