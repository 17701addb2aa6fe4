package middleware

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/talentbridge/marketplace-api/internal/config"
)

var limiterScript = redis.NewScript(`
	local key = KEYS[1]
	local now_ms = tonumber(ARGV[1])
	local capacity = tonumber(ARGV[2])
	local refill_tokens = tonumber(ARGV[3])
	local interval_ms = tonumber(ARGV[4])
	local ttl_seconds = tonumber(ARGV[5])

	local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
	local tokens = tonumber(state[1])
	local last_refill = tonumber(state[2])

	if tokens == nil or last_refill == nil then
		tokens = capacity
		last_refill = now_ms
	end

	if interval_ms > 0 and refill_tokens > 0 then
		local elapsed = math.max(0, now_ms - last_refill)
		local intervals = math.floor(elapsed / interval_ms)
		if intervals > 0 then
			tokens = math.min(capacity, tokens + (intervals * refill_tokens))
			last_refill = last_refill + (intervals * interval_ms)
		end
	end

	local allowed = 0
	local retry_after_ms = 0
	if tokens > 0 then
		allowed = 1
		tokens = tokens - 1
	else
		local until_next = interval_ms - (now_ms - last_refill)
		if until_next < 0 then until_next = 0 end
		retry_after_ms = until_next
	end

	redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
	redis.call('EXPIRE', key, ttl_seconds)

	return { allowed, tokens, retry_after_ms }
`)

// NewRateLimiter picks the Redis token bucket when rdb is available and
// the in-process limiter otherwise.  A disabled config yields a no-op.
func NewRateLimiter(cfg config.RateLimitConfig, rdb *redis.Client, log *zap.Logger) echo.MiddlewareFunc {
	if !cfg.Enabled {
		return passThrough
	}
	if rdb == nil {
		log.Warn("redis unavailable, using in-process rate limiter")
		return NewLocalLimiter(cfg)
	}
	return NewTokenBucket(cfg, rdb, log)
}

func passThrough(next echo.HandlerFunc) echo.HandlerFunc { return next }

// NewTokenBucket enforces cfg with a token bucket kept in Redis so all
// instances share one budget per key.  Redis errors fail open.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client, log *zap.Logger) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return passThrough
	}
	log = log.Named("ratelimit")
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := buildRateKey(cfg, c)
			args := []any{
				time.Now().UnixMilli(),
				cfg.Capacity,
				cfg.RefillTokens,
				cfg.RefillInterval.Milliseconds(),
				int64(cfg.TTL / time.Second),
			}
			vals, err := limiterScript.Run(c.Request().Context(), rdb, []string{key}, args...).Result()
			if err != nil {
				log.Warn("redis error", zap.String("key", key), zap.Error(err))
				return next(c)
			}
			arr, ok := vals.([]any)
			if !ok || len(arr) != 3 {
				log.Warn("unexpected script result", zap.String("key", key), zap.Any("result", vals))
				return next(c)
			}
			allowed := fmt.Sprint(arr[0]) == "1"
			remaining := asInt64(arr[1])
			retry := time.Duration(asInt64(arr[2])) * time.Millisecond

			if !allowed && cfg.Debug {
				log.Info("blocked", zap.String("key", key), zap.Duration("retry", retry))
			}
			return decide(c, next, cfg, allowed, remaining, retry)
		}
	}
}

// NewLocalLimiter enforces cfg with one x/time/rate limiter per key held
// in memory.  Idle keys are dropped after cfg.TTL.
func NewLocalLimiter(cfg config.RateLimitConfig) echo.MiddlewareFunc {
	if !cfg.Enabled {
		return passThrough
	}
	every := rate.Every(cfg.RefillInterval / time.Duration(cfg.RefillTokens))
	store := &localBuckets{
		limiters: make(map[string]*localBucket),
		newLimiter: func() *rate.Limiter {
			return rate.NewLimiter(every, cfg.Capacity)
		},
		ttl: cfg.TTL,
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			now := time.Now()
			lim := store.get(buildRateKey(cfg, c), now)
			r := lim.ReserveN(now, 1)
			if delay := r.DelayFrom(now); delay > 0 {
				r.CancelAt(now)
				return decide(c, next, cfg, false, 0, delay)
			}
			remaining := int64(lim.TokensAt(now))
			return decide(c, next, cfg, true, remaining, 0)
		}
	}
}

type localBucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

type localBuckets struct {
	mu         sync.Mutex
	limiters   map[string]*localBucket
	newLimiter func() *rate.Limiter
	ttl        time.Duration
	lastSweep  time.Time
}

func (s *localBuckets) get(key string, now time.Time) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	if now.Sub(s.lastSweep) > s.ttl {
		for k, b := range s.limiters {
			if now.Sub(b.lastSeen) > s.ttl {
				delete(s.limiters, k)
			}
		}
		s.lastSweep = now
	}
	b, ok := s.limiters[key]
	if !ok {
		b = &localBucket{lim: s.newLimiter()}
		s.limiters[key] = b
	}
	b.lastSeen = now
	return b.lim
}

func decide(c echo.Context, next echo.HandlerFunc, cfg config.RateLimitConfig, allowed bool, remaining int64, retry time.Duration) error {
	h := c.Response().Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
	h.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
	if !allowed {
		secs := int(math.Ceil(retry.Seconds()))
		if secs < 0 {
			secs = 0
		}
		h.Set("Retry-After", strconv.Itoa(secs))
		return c.JSON(http.StatusTooManyRequests, echo.Map{
			"error":       "too_many_requests",
			"message":     "rate limit exceeded",
			"retry_after": secs,
		})
	}
	if cfg.Debug {
		h.Set("X-RateLimit-Key", buildRateKey(cfg, c))
	}
	return next(c)
}

func asInt64(v any) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return n
		}
	}
	return 0
}

func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
	parts := []string{cfg.Prefix}
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	uid := "anon"
	if id, ok := AccountID(c); ok {
		uid = strconv.FormatUint(id, 10)
	}
	route := c.Request().Method + " " + c.Path()

	switch strings.ToLower(cfg.KeyStrategy) {
	case "ip":
		parts = append(parts, "ip", ip)
	case "user":
		parts = append(parts, "user", uid)
	case "route":
		parts = append(parts, "route", route)
	case "ip_user":
		parts = append(parts, "ip", ip, "user", uid)
	case "ip_route":
		parts = append(parts, "ip", ip, "route", route)
	case "user_route":
		parts = append(parts, "user", uid, "route", route)
	default:
		parts = append(parts, "ip", ip, "user", uid, "route", route)
	}
	return strings.Join(parts, ":")
}
