package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRateLimiter(t *testing.T) {
	t.Run("allows a full window then blocks", func(t *testing.T) {
		limiter := NewRateLimiter(3, time.Minute, 0)
		t.Cleanup(limiter.Stop)

		for i := 0; i < 3; i++ {
			assert.True(t, limiter.Allow("client1"), "request %d", i+1)
		}
		assert.False(t, limiter.Allow("client1"))
		assert.Equal(t, 0, limiter.Remaining("client1"))
	})

	t.Run("separate buckets per client", func(t *testing.T) {
		limiter := NewRateLimiter(1, time.Minute, 0)
		t.Cleanup(limiter.Stop)

		assert.True(t, limiter.Allow("clientA"))
		assert.False(t, limiter.Allow("clientA"))
		assert.True(t, limiter.Allow("clientB"))
	})

	t.Run("burst adds headroom", func(t *testing.T) {
		limiter := NewRateLimiter(2, time.Minute, 5)
		t.Cleanup(limiter.Stop)

		for i := 0; i < 5; i++ {
			assert.True(t, limiter.Allow("client2"))
		}
		assert.False(t, limiter.Allow("client2"))
	})

	t.Run("refills over time", func(t *testing.T) {
		limiter := NewRateLimiter(2, 100*time.Millisecond, 0)
		t.Cleanup(limiter.Stop)

		assert.True(t, limiter.Allow("client3"))
		assert.True(t, limiter.Allow("client3"))
		assert.False(t, limiter.Allow("client3"))

		time.Sleep(80 * time.Millisecond)
		assert.True(t, limiter.Allow("client3"))
	})

	t.Run("unknown client has full burst", func(t *testing.T) {
		limiter := NewRateLimiter(10, time.Minute, 20)
		t.Cleanup(limiter.Stop)
		assert.Equal(t, 20, limiter.Remaining("nobody"))
	})

	t.Run("concurrent access", func(t *testing.T) {
		limiter := NewRateLimiter(50, time.Minute, 0)
		t.Cleanup(limiter.Stop)

		var allowed atomic.Int64
		var wg sync.WaitGroup
		for i := 0; i < 100; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if limiter.Allow("shared") {
					allowed.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int64(50), allowed.Load())
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter := NewRateLimiter(2, time.Minute, 0)
	t.Cleanup(limiter.Stop)

	router := gin.New()
	router.Use(RequestID(), RateLimit(limiter))
	router.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	call := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.RemoteAddr = "192.0.2.10:4000"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	first := call()
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))

	assert.Equal(t, http.StatusOK, call().Code)

	blocked := call()
	assert.Equal(t, http.StatusTooManyRequests, blocked.Code)
	assert.Equal(t, "30", blocked.Header().Get("Retry-After"))
	assert.Contains(t, blocked.Body.String(), "ERR_RATE_LIMITED")
	assert.Contains(t, blocked.Body.String(), blocked.Header().Get(RequestIDHeader))
}
