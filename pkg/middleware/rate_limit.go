package middleware

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/slidecoffee/brew-service/pkg/metrics"
)

// limiterStore lazily creates one token bucket per key.
type limiterStore struct {
	m     sync.Map // map[string]*rate.Limiter
	limit rate.Limit
	burst int
}

func (s *limiterStore) get(key string) *rate.Limiter {
	if v, ok := s.m.Load(key); ok {
		return v.(*rate.Limiter)
	}
	v, _ := s.m.LoadOrStore(key, rate.NewLimiter(s.limit, s.burst))
	return v.(*rate.Limiter)
}

// RateLimitMiddleware returns a Gin middleware enforcing a token-bucket per-key limit.
// Key selection: when request context contains a `claims` map with `sub`, that value is used
// (per-user NAT-friendly limiting). Otherwise the client IP from Gin is used.
// rps = allowed events per second, burst = maximum tokens in bucket.
func RateLimitMiddleware(rps float64, burst int) gin.HandlerFunc {
	return tokenBucket(&limiterStore{limit: rate.Limit(rps), burst: burst}, "memory", "1", "Rate limit exceeded")
}

// GenerationRateLimit allows max generation requests per window for each
// subject, refilling evenly across the window.
func GenerationRateLimit(max int, window time.Duration) gin.HandlerFunc {
	if max <= 0 {
		max = 10
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	store := &limiterStore{limit: rate.Every(window / time.Duration(max)), burst: max}
	retry := fmt.Sprintf("%d", int((window / time.Duration(max)).Seconds()))
	return tokenBucket(store, "generation_memory", retry, "Too many generation requests. Please wait before trying again.")
}

func tokenBucket(store *limiterStore, label, retryAfter, msg string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !store.get(subjectKey(c)).Allow() {
			c.Header("Retry-After", retryAfter)
			metrics.RateLimitRejected.WithLabelValues(label).Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": msg})
			return
		}
		metrics.RateLimitAllowed.WithLabelValues(label).Inc()
		c.Next()
	}
}
