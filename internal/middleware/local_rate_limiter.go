package middleware

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

var _ RequestRateLimiter = (*LocalRateLimiter)(nil)

type keyLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// LocalRateLimiter keeps one token bucket per key in process memory. Idle
// buckets are dropped by a background loop until Stop is called.
type LocalRateLimiter struct {
	limit           rate.Limit
	burst           int
	cleanupInterval time.Duration

	mutex    sync.Mutex
	limiters map[string]*keyLimiter

	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func NewLocalRateLimiter(allowedPerMin int, cleanupInterval time.Duration) *LocalRateLimiter {
	if allowedPerMin < 1 {
		allowedPerMin = 1
	}
	if cleanupInterval <= 0 {
		cleanupInterval = 5 * time.Minute
	}

	l := &LocalRateLimiter{
		limit:           rate.Every(time.Minute / time.Duration(allowedPerMin)),
		burst:           allowedPerMin,
		cleanupInterval: cleanupInterval,
		limiters:        make(map[string]*keyLimiter),
		stopCh:          make(chan struct{}),
		done:            make(chan struct{}),
	}

	go l.cleanupLoop()

	return l
}

func (l *LocalRateLimiter) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	limiter := l.limiterFor(key)

	now := time.Now()
	reservation := limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return false, time.Minute, nil
	}
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		return false, delay, nil
	}
	return true, 0, nil
}

func (l *LocalRateLimiter) limiterFor(key string) *rate.Limiter {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	kl, ok := l.limiters[key]
	if !ok {
		kl = &keyLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = kl
	}
	kl.lastAccess = time.Now()
	return kl.limiter
}

func (l *LocalRateLimiter) Len() int {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return len(l.limiters)
}

func (l *LocalRateLimiter) Stop() {
	l.stopOnce.Do(func() {
		close(l.stopCh)
	})
	<-l.done
}

func (l *LocalRateLimiter) cleanupLoop() {
	defer close(l.done)

	ticker := time.NewTicker(l.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanup(time.Now())
		case <-l.stopCh:
			return
		}
	}
}

// cleanup drops buckets idle for longer than two cleanup intervals.
func (l *LocalRateLimiter) cleanup(now time.Time) {
	ttl := l.cleanupInterval * 2

	l.mutex.Lock()
	defer l.mutex.Unlock()
	for key, kl := range l.limiters {
		if now.Sub(kl.lastAccess) > ttl {
			delete(l.limiters, key)
		}
	}
}
