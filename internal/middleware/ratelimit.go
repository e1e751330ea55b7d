package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/cyphera/emailsend/internal/logger"
)

const (
	limiterIdleTimeout     = 10 * time.Minute
	limiterCleanupInterval = 5 * time.Minute
)

// RateLimiter throttles send requests per client. Every accepted request can
// fan out into many SMTP deliveries, so the limit applies to the API call.
type RateLimiter struct {
	limiters sync.Map
	rps      int
	burst    int
}

type limiterEntry struct {
	limiter *rate.Limiter
	mu      sync.Mutex
	seen    time.Time
}

func (e *limiterEntry) touch(now time.Time) {
	e.mu.Lock()
	e.seen = now
	e.mu.Unlock()
}

func (e *limiterEntry) idleSince(now time.Time) time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return now.Sub(e.seen)
}

// NewRateLimiter creates a limiter allowing rps requests per second with the
// given burst per client.
func NewRateLimiter(rps, burst int) *RateLimiter {
	return &RateLimiter{rps: rps, burst: burst}
}

// StartCleanup evicts idle clients until ctx is done.
func (rl *RateLimiter) StartCleanup(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(limiterCleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				rl.evictIdle(now, limiterIdleTimeout)
			}
		}
	}()
}

func (rl *RateLimiter) evictIdle(now time.Time, idle time.Duration) {
	rl.limiters.Range(func(key, value any) bool {
		if entry, ok := value.(*limiterEntry); ok && entry.idleSince(now) > idle {
			rl.limiters.Delete(key)
		}
		return true
	})
}

func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	now := time.Now()
	if val, ok := rl.limiters.Load(key); ok {
		entry := val.(*limiterEntry)
		entry.touch(now)
		return entry.limiter
	}
	entry := &limiterEntry{limiter: rate.NewLimiter(rate.Limit(rl.rps), rl.burst), seen: now}
	actual, _ := rl.limiters.LoadOrStore(key, entry)
	return actual.(*limiterEntry).limiter
}

// clientKey identifies the caller by gin's client IP. Forwarding headers only
// count when the router trusts the peer that set them.
func clientKey(c *gin.Context) string {
	if ip := c.ClientIP(); ip != "" {
		return "ip:" + ip
	}
	return "ip:unknown"
}

// Middleware enforces the limit. Health checks are never limited.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/health" {
			c.Next()
			return
		}

		key := clientKey(c)
		limiter := rl.limiter(key)
		reset := strconv.FormatInt(time.Now().Add(time.Second).Unix(), 10)
		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.rps))
		c.Header("X-RateLimit-Reset", reset)

		if !limiter.Allow() {
			logger.L().Warn("Rate limit exceeded",
				zap.String("client_id", key),
				zap.String("path", c.Request.URL.Path),
				zap.String("correlation_id", GetCorrelationID(c)),
			)
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Too many requests. Please try again later.",
				"retry_after": 1,
			})
			return
		}

		remaining := int(limiter.Tokens())
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
		c.Next()
	}
}
