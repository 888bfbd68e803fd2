package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/slidecoffee/brew-service/pkg/metrics"
)

// RedisRateLimitMiddleware provides a coarse fixed-window Redis-backed limiter.
// Keying: prefers `claims.sub` when present, otherwise uses client IP.
// Algorithm: INCR a per-subject key whose TTL is the window, and compare against
// allowed = floor(rps*windowSeconds)+burst.
func RedisRateLimitMiddleware(client *redis.Client, rps float64, burst int, window time.Duration) gin.HandlerFunc {
	if client == nil {
		return RateLimitMiddleware(rps, burst)
	}
	windowSeconds := int(window.Seconds())
	if windowSeconds <= 0 {
		windowSeconds = 1
	}
	allowed := int(rps*float64(windowSeconds)) + burst
	return fixedWindow(client, "rl:", allowed, time.Duration(windowSeconds)*time.Second, "redis", "Rate limit exceeded")
}

// RedisGenerationRateLimit caps generation requests at max per window per
// subject, shared across replicas.
func RedisGenerationRateLimit(client *redis.Client, max int, window time.Duration) gin.HandlerFunc {
	if client == nil {
		return GenerationRateLimit(max, window)
	}
	if max <= 0 {
		max = 10
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	return fixedWindow(client, "rl:gen:", max, window, "generation_redis", "Too many generation requests. Please wait before trying again.")
}

func fixedWindow(client *redis.Client, prefix string, allowed int, window time.Duration, label, msg string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := prefix + subjectKey(c)
		ctx := c.Request.Context()

		cnt, err := client.Incr(ctx, key).Result()
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Rate limit check failed"})
			return
		}
		if cnt == 1 {
			_ = client.Expire(ctx, key, window).Err()
		}
		if int(cnt) > allowed {
			retry := window
			if ttl, err := client.TTL(ctx, key).Result(); err == nil && ttl > 0 {
				retry = ttl
			}
			c.Header("Retry-After", fmt.Sprintf("%d", int(retry.Seconds())))
			metrics.RateLimitRejected.WithLabelValues(label).Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": msg})
			return
		}
		metrics.RateLimitAllowed.WithLabelValues(label).Inc()
		c.Next()
	}
}
