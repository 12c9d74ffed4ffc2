package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/ticket-booking/internal/config"
	"github.com/iliyamo/ticket-booking/internal/metrics"
)

// takeScript keeps a bucket as a hash of its token count (t) and the
// millisecond time it was last topped up (ts).  Tokens come back in
// whole intervals only, so ts always sits on an interval boundary.
//
// ARGV: now_ms, capacity, tokens_per_interval, interval_ms, ttl_ms.
// Returns {allowed, tokens_left, wait_ms}.
var takeScript = redis.NewScript(`
local t = tonumber(redis.call('HGET', KEYS[1], 't'))
local ts = tonumber(redis.call('HGET', KEYS[1], 'ts'))
local now = tonumber(ARGV[1])
local cap = tonumber(ARGV[2])
local step = tonumber(ARGV[3])
local every = tonumber(ARGV[4])

if t == nil or ts == nil then
	t = cap
	ts = now
end
if every > 0 and now > ts then
	local n = math.floor((now - ts) / every)
	if n > 0 then
		t = math.min(cap, t + n * step)
		ts = ts + n * every
	end
end

local ok = 0
local wait = 0
if t >= 1 then
	ok = 1
	t = t - 1
else
	wait = math.max(ts + every - now, 0)
end
redis.call('HSET', KEYS[1], 't', t, 'ts', ts)
redis.call('PEXPIRE', KEYS[1], tonumber(ARGV[5]))
return {ok, t, wait}
`)

// Decision is the outcome of taking a token.
type Decision struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

// TokenBucket is a per-key token bucket kept in Redis.  The read, refill
// and take run as one script, so instances sharing Redis share buckets.
type TokenBucket struct {
	rdb *redis.Client
	cfg config.RateLimitConfig
	now func() time.Time
}

// NewTokenBucket returns a bucket store over rdb.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client) *TokenBucket {
	return &TokenBucket{rdb: rdb, cfg: cfg, now: time.Now}
}

// Take removes one token from key's bucket if it has one.
func (b *TokenBucket) Take(ctx context.Context, key string) (Decision, error) {
	ttl := b.cfg.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	res, err := takeScript.Run(ctx, b.rdb, []string{key},
		b.now().UnixMilli(),
		b.cfg.Capacity,
		b.cfg.RefillTokens,
		b.cfg.RefillInterval.Milliseconds(),
		ttl.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("take token %s: %w", key, err)
	}
	if len(res) != 3 {
		return Decision{}, fmt.Errorf("take token %s: unexpected reply %v", key, res)
	}
	return Decision{
		Allowed:    res[0] == 1,
		Remaining:  res[1],
		RetryAfter: time.Duration(res[2]) * time.Millisecond,
	}, nil
}

// RateLimit rejects requests whose bucket is empty with 429.  It must
// run after JWTAuth when the key strategy involves the user.  A nil or
// disabled bucket lets everything through, and so does a Redis failure.
func RateLimit(b *TokenBucket) echo.MiddlewareFunc {
	if b == nil || b.rdb == nil || !b.cfg.Enabled {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := buildRateKey(b.cfg, c)
			d, err := b.Take(c.Request().Context(), key)
			if err != nil {
				if b.cfg.Debug {
					c.Logger().Warnf("ratelimit: %v", err)
				}
				return next(c)
			}
			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(b.cfg.Capacity))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(d.Remaining, 10))
			if d.Allowed {
				return next(c)
			}

			secs := int64((d.RetryAfter + time.Second - 1) / time.Second)
			h.Set("Retry-After", strconv.FormatInt(secs, 10))
			metrics.RateLimited.Inc()
			return c.JSON(http.StatusTooManyRequests, echo.Map{
				"error":       "too_many_requests",
				"message":     "rate limit exceeded",
				"retry_after": secs,
			})
		}
	}
}

// buildRateKey names the bucket of the request under cfg.KeyStrategy:
// "user" (default), "ip" or "ip_user".
func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	uid := UserID(c)
	if uid == "" {
		uid = "anon"
	}
	switch strings.ToLower(cfg.KeyStrategy) {
	case "ip":
		return cfg.Prefix + ":ip:" + ip
	case "ip_user":
		return cfg.Prefix + ":ip:" + ip + ":user:" + uid
	}
	return cfg.Prefix + ":user:" + uid
}
