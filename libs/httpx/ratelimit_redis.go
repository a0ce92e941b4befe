package httpx

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRateLimiter counts requests per caller address in fixed windows stored in Redis, so
// every schedule-service instance enforces one shared booking limit.
type RedisRateLimiter struct {
	rdb        *redis.Client
	limit      int64
	window     time.Duration
	prefix     string
	trustProxy bool
}

// windowHit increments the caller's counter, starts its window on the first hit and returns
// the count with the milliseconds left in the window.
var windowHit = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {n, redis.call("PTTL", KEYS[1])}
`)

func NewRedisRateLimiter(rdb *redis.Client, limit int, window time.Duration, prefix string) *RedisRateLimiter {
	if limit <= 0 {
		limit = 60
	}
	if window < time.Millisecond {
		window = time.Minute
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "workhours:rl"
	}
	return &RedisRateLimiter{rdb: rdb, limit: int64(limit), window: window, prefix: prefix}
}

// TrustProxy keys callers by the first X-Forwarded-For hop, like RateLimiter.TrustProxy.
func (rl *RedisRateLimiter) TrustProxy() *RedisRateLimiter {
	rl.trustProxy = true
	return rl
}

// Middleware rejects callers over the limit with 429. When Redis fails, failOpen lets the
// request through; otherwise it gets 503.
func (rl *RedisRateLimiter) Middleware(logger *slog.Logger, failOpen bool) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			count, left, err := rl.hit(r.Context(), rl.prefix+":"+clientKey(r, rl.trustProxy))
			switch {
			case err != nil:
				if logger != nil {
					logger.Warn("booking rate limiter unavailable", "err", err, "fail_open", failOpen)
				}
				if !failOpen {
					http.Error(w, "rate limiter unavailable", http.StatusServiceUnavailable)
					return
				}
			case count > rl.limit:
				w.Header().Set("Retry-After", retryAfter(left))
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (rl *RedisRateLimiter) hit(ctx context.Context, key string) (int64, time.Duration, error) {
	res, err := windowHit.Run(ctx, rl.rdb, []string{key}, rl.window.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, 0, err
	}
	if len(res) != 2 {
		return 0, 0, fmt.Errorf("rate limit script returned %d values", len(res))
	}
	left := time.Duration(res[1]) * time.Millisecond
	if left <= 0 {
		left = rl.window
	}
	return res[0], left, nil
}
