package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newLimitedRouter(rl *RateLimiter) *gin.Engine {
	router := gin.New()
	_ = router.SetTrustedProxies(nil)
	router.Use(rl.Middleware())
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.POST("/api/v1/email/send", func(c *gin.Context) { c.Status(http.StatusOK) })
	return router
}

func doRequest(router *gin.Engine, method, path, ip string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = ip + ":40000"
	router.ServeHTTP(w, req)
	return w
}

func TestRateLimiter(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("allows requests within burst", func(t *testing.T) {
		router := newLimitedRouter(NewRateLimiter(10, 5))
		for i := 0; i < 5; i++ {
			w := doRequest(router, http.MethodPost, "/api/v1/email/send", "10.0.0.1")
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "10", w.Header().Get("X-RateLimit-Limit"))
			assert.NotEmpty(t, w.Header().Get("X-RateLimit-Remaining"))
		}
	})

	t.Run("blocks requests beyond burst", func(t *testing.T) {
		router := newLimitedRouter(NewRateLimiter(1, 2))
		doRequest(router, http.MethodPost, "/api/v1/email/send", "10.0.0.2")
		doRequest(router, http.MethodPost, "/api/v1/email/send", "10.0.0.2")

		w := doRequest(router, http.MethodPost, "/api/v1/email/send", "10.0.0.2")
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
		assert.Equal(t, "1", w.Header().Get("Retry-After"))
	})

	t.Run("clients are limited independently", func(t *testing.T) {
		router := newLimitedRouter(NewRateLimiter(1, 1))
		assert.Equal(t, http.StatusOK, doRequest(router, http.MethodPost, "/api/v1/email/send", "10.0.0.3").Code)
		assert.Equal(t, http.StatusOK, doRequest(router, http.MethodPost, "/api/v1/email/send", "10.0.0.4").Code)
	})

	t.Run("rotating forwarded headers share the peer's bucket", func(t *testing.T) {
		rl := NewRateLimiter(1, 1)
		router := newLimitedRouter(rl)
		accepted := 0
		for i := 0; i < 20; i++ {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/v1/email/send", nil)
			req.RemoteAddr = "10.0.0.6:40000"
			req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i))
			router.ServeHTTP(w, req)
			if w.Code == http.StatusOK {
				accepted++
			}
		}
		assert.Equal(t, 1, accepted)

		keys := 0
		rl.limiters.Range(func(_, _ any) bool {
			keys++
			return true
		})
		assert.Equal(t, 1, keys)
	})

	t.Run("health checks are not limited", func(t *testing.T) {
		router := newLimitedRouter(NewRateLimiter(1, 1))
		for i := 0; i < 5; i++ {
			assert.Equal(t, http.StatusOK, doRequest(router, http.MethodGet, "/health", "10.0.0.5").Code)
		}
	})
}

func TestRateLimiter_EvictIdle(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	rl.limiter("ip:stale")
	rl.limiter("ip:fresh")

	if val, ok := rl.limiters.Load("ip:stale"); ok {
		val.(*limiterEntry).touch(time.Now().Add(-time.Hour))
	}
	rl.evictIdle(time.Now(), limiterIdleTimeout)

	_, staleKept := rl.limiters.Load("ip:stale")
	_, freshKept := rl.limiters.Load("ip:fresh")
	assert.False(t, staleKept)
	assert.True(t, freshKept)
}
