package handlers

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/wonny/miyagi/pkg/redis"
)

// Limiter gates inbound requests per client key. Best-effort: a limiter
// backend failure allows the request rather than dropping alerts.
type Limiter interface {
	Allow(ctx context.Context, key string) bool
}

// RedisLimiter applies the shared sliding-window limit per client key
type RedisLimiter struct {
	limiter *redis.RateLimiter
	base    redis.RateLimitConfig
}

// NewRedisLimiter wraps the redis rate limiter for per-key use
func NewRedisLimiter(limiter *redis.RateLimiter, base redis.RateLimitConfig) *RedisLimiter {
	return &RedisLimiter{limiter: limiter, base: base}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) bool {
	cfg := l.base
	cfg.Key = l.base.Key + ":" + key

	allowed, _, err := l.limiter.Allow(ctx, cfg)
	if err != nil {
		return true
	}
	return allowed
}

// LocalLimiter is the in-process fallback when Redis is disabled.
// Token bucket per key; counters are not shared across instances.
type LocalLimiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	limit   rate.Limit
	burst   int
}

// NewLocalLimiter creates a per-key token bucket limiter from a
// requests-per-window budget.
func NewLocalLimiter(requests int, window time.Duration) *LocalLimiter {
	return &LocalLimiter{
		buckets: make(map[string]*rate.Limiter),
		limit:   rate.Every(window / time.Duration(requests)),
		burst:   requests,
	}
}

func (l *LocalLimiter) Allow(ctx context.Context, key string) bool {
	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = rate.NewLimiter(l.limit, l.burst)
		l.buckets[key] = b
	}
	l.mu.Unlock()

	return b.Allow()
}
