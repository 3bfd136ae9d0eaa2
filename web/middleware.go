package web

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// The bucket map is swept periodically instead of tracking last-use per IP.
// Active clients refill on their next request; a sweep only costs them a
// fresh burst allowance.
const (
	limiterSweepInterval  = 5 * time.Minute
	limiterSweepThreshold = 10000
)

// RateLimiter hands out one token bucket per client IP.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	rate    rate.Limit
	burst   int
}

func NewRateLimiter(r rate.Limit, b int) *RateLimiter {
	return &RateLimiter{
		buckets: make(map[string]*rate.Limiter),
		rate:    r,
		burst:   b,
	}
}

func (rl *RateLimiter) bucketFor(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	bucket, ok := rl.buckets[ip]
	if !ok {
		bucket = rate.NewLimiter(rl.rate, rl.burst)
		rl.buckets[ip] = bucket
	}
	return bucket
}

func (rl *RateLimiter) sweep() {
	ticker := time.NewTicker(limiterSweepInterval)
	defer ticker.Stop()

	for range ticker.C {
		rl.mu.Lock()
		if len(rl.buckets) > limiterSweepThreshold {
			rl.buckets = make(map[string]*rate.Limiter)
		}
		rl.mu.Unlock()
	}
}

// RateLimitMiddleware answers 429 once a client exceeds its per-IP budget.
func RateLimitMiddleware(rl *RateLimiter) gin.HandlerFunc {
	go rl.sweep()

	return func(c *gin.Context) {
		if !rl.bucketFor(c.ClientIP()).Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "Rate limit exceeded. Please try again later.",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// MaxBytesMiddleware caps request bodies twice over: the declared
// Content-Length is rejected up front, and a MaxBytesReader catches chunked
// senders that lie about it.
func MaxBytesMiddleware(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{
				"error": "Request body too large",
			})
			c.Abort()
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
