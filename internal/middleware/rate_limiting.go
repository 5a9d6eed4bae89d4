package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-redis/redis_rate/v9"
	log "github.com/sirupsen/logrus"

	"github.com/2beens/mergington/internal/telemetry/metrics"
	"github.com/2beens/mergington/pkg"
)

type RequestRateLimiter interface {
	// Allow reports whether one more request for key fits the limit, and if
	// not, how long the caller should wait.
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
}

var _ RequestRateLimiter = (*RedisRateLimiter)(nil)

type redisRateAllower interface {
	Allow(ctx context.Context, key string, limit redis_rate.Limit) (*redis_rate.Result, error)
}

// RedisRateLimiter shares the limit between all service instances using redis.
type RedisRateLimiter struct {
	limiter redisRateAllower
	limit   redis_rate.Limit
}

func NewRedisRateLimiter(limiter redisRateAllower, allowedPerMin int) *RedisRateLimiter {
	return &RedisRateLimiter{
		limiter: limiter,
		limit:   redis_rate.PerMinute(allowedPerMin),
	}
}

func (l *RedisRateLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	res, err := l.limiter.Allow(ctx, key, l.limit)
	if err != nil {
		return false, 0, err
	}
	return res.Allowed > 0, res.RetryAfter, nil
}

// RateLimit limits requests per routerName and client IP. A nil limiter
// disables limiting.
func RateLimit(rateLimiter RequestRateLimiter, routerName string, metricsManager *metrics.Manager) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if rateLimiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			key := routerName + "||" + pkg.ReadUserIP(r)
			allowed, retryAfter, err := rateLimiter.Allow(r.Context(), key)
			if err != nil {
				log.Errorf("rate limit [%s]: %s", routerName, err)
				pkg.WriteDetail(w, http.StatusInternalServerError, "rate limit internal error")
				return
			}

			if allowed {
				next.ServeHTTP(w, r)
				return
			}

			if metricsManager != nil {
				metricsManager.CounterRateLimitedRequests.Inc()
			}
			log.Warnf("rate limit exceeded for [%s]", key)

			retryAfterSec := int(math.Ceil(retryAfter.Seconds()))
			if retryAfterSec < 1 {
				retryAfterSec = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
			pkg.WriteDetail(w, http.StatusTooManyRequests, "Too many requests, retry in "+strconv.Itoa(retryAfterSec)+"s")
		})
	}
}
