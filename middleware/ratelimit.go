package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"openfashion/logger"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Limiter decides whether one more request for key fits the budget.
type Limiter interface {
	Allow(ctx context.Context, key string) bool
}

// IPRateLimiter keeps a token bucket per key in process memory.
type IPRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

func NewIPRateLimiter(perMinute int) *IPRateLimiter {
	return &IPRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    perMinute,
	}
}

func (rl *IPRateLimiter) Allow(_ context.Context, key string) bool {
	rl.mu.Lock()
	limiter, ok := rl.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(rl.rate, rl.burst)
		rl.limiters[key] = limiter
	}
	rl.mu.Unlock()
	return limiter.Allow()
}

// Cleanup drops every bucket once the map grows past max keys.
func (rl *IPRateLimiter) Cleanup(max int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if len(rl.limiters) > max {
		rl.limiters = make(map[string]*rate.Limiter)
	}
}

// RedisRateLimiter counts requests per key in fixed one-minute windows, so
// every replica shares the same budget.
type RedisRateLimiter struct {
	client *redis.Client
	prefix string
	limit  int64
	window time.Duration
}

func NewRedisRateLimiter(client *redis.Client, prefix string, perMinute int) *RedisRateLimiter {
	return &RedisRateLimiter{client: client, prefix: prefix, limit: int64(perMinute), window: time.Minute}
}

// Allow fails open when Redis is unreachable.
func (rl *RedisRateLimiter) Allow(ctx context.Context, key string) bool {
	redisKey := rl.key(key)
	count, err := rl.client.Incr(ctx, redisKey).Result()
	if err != nil {
		logger.Get().Warn("[RateLimit] redis unavailable", zap.Error(err))
		return true
	}
	if count == 1 {
		rl.client.Expire(ctx, redisKey, rl.window)
	}
	return count <= rl.limit
}

// key namespaces an IP under the limiter prefix, e.g. "rl:api:" + ip.
func (rl *RedisRateLimiter) key(ip string) string {
	return rl.prefix + ip
}

// RateLimitMiddleware rejects callers over budget with 429, keyed by client IP.
func RateLimitMiddleware(limiter Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(c.Request.Context(), c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
			return
		}
		c.Next()
	}
}
