package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/taskkeeper/pkg/api"
)

// newTestLimiter возвращает limiter с управляемыми часами
func newTestLimiter(t *testing.T, rate int, window time.Duration) (*RateLimiter, *time.Time) {
	t.Helper()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(rate, window)
	limiter.now = func() time.Time { return now }
	t.Cleanup(limiter.Stop)
	return limiter, &now
}

func TestRateLimiter_Allow(t *testing.T) {
	t.Run("Requests within limit are allowed", func(t *testing.T) {
		limiter, _ := newTestLimiter(t, 5, time.Minute)

		for i := 0; i < 5; i++ {
			allowed, _ := limiter.Allow("192.168.1.1")
			assert.True(t, allowed, fmt.Sprintf("request %d should be allowed", i+1))
		}
	})

	t.Run("Requests over limit are denied with retry hint", func(t *testing.T) {
		limiter, now := newTestLimiter(t, 3, time.Minute)

		for i := 0; i < 3; i++ {
			allowed, _ := limiter.Allow("192.168.1.2")
			require.True(t, allowed)
		}

		*now = now.Add(20 * time.Second)
		allowed, retry := limiter.Allow("192.168.1.2")
		assert.False(t, allowed, "request over limit should be denied")
		assert.Equal(t, 40*time.Second, retry)
	})

	t.Run("Different keys are tracked separately", func(t *testing.T) {
		limiter, _ := newTestLimiter(t, 1, time.Minute)

		allowed, _ := limiter.Allow("a")
		assert.True(t, allowed)
		allowed, _ = limiter.Allow("a")
		assert.False(t, allowed)

		allowed, _ = limiter.Allow("b")
		assert.True(t, allowed)
	})

	t.Run("Bucket refills after window", func(t *testing.T) {
		limiter, now := newTestLimiter(t, 1, time.Minute)

		allowed, _ := limiter.Allow("c")
		require.True(t, allowed)
		allowed, _ = limiter.Allow("c")
		require.False(t, allowed)

		*now = now.Add(time.Minute)
		allowed, _ = limiter.Allow("c")
		assert.True(t, allowed)
	})
}

func TestRateLimiter_Concurrent(t *testing.T) {
	limiter, _ := newTestLimiter(t, 10, time.Minute)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := limiter.Allow("shared"); ok {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, granted)
}

func TestRateLimiter_CleanupOldBuckets(t *testing.T) {
	limiter, now := newTestLimiter(t, 1, time.Minute)

	limiter.Allow("old")
	*now = now.Add(3 * time.Minute)
	limiter.Allow("fresh")

	limiter.cleanupOldBuckets()

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	assert.NotContains(t, limiter.buckets, "old")
	assert.Contains(t, limiter.buckets, "fresh")
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	limiter := NewRateLimiter(1, time.Minute)
	assert.False(t, limiter.Stopped())

	limiter.Stop()
	// Stop синхронный: goroutine уже завершилась
	assert.True(t, limiter.Stopped())
	assert.NotPanics(t, limiter.Stop)
}

func TestPathLimiter_Stop(t *testing.T) {
	pl := NewPathLimiter([]PathRateLimit{
		{Path: "/api/v1/auth/login", Rate: 2, Window: time.Minute},
		{Path: "/api/v1/auth/refresh", Rate: 2, Window: time.Minute},
	}, false, setupTestLogger())
	assert.False(t, pl.Stopped())

	pl.Stop()
	assert.True(t, pl.Stopped())

	// без лимитов останавливать нечего
	assert.True(t, NewPathLimiter(nil, false, setupTestLogger()).Stopped())
}

func TestPathLimiter(t *testing.T) {
	pl := NewPathLimiter([]PathRateLimit{
		{Path: "/api/v1/auth/login", Rate: 2, Window: time.Minute},
		{Path: "/api/v1/auth/disabled", Rate: 0, Window: time.Minute},
	}, false, setupTestLogger())
	t.Cleanup(pl.Stop)

	handler := pl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func(path, remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		req.RemoteAddr = remote
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, do("/api/v1/auth/login", "10.0.0.1:1000").Code)
	// другой порт того же IP считается тем же клиентом
	assert.Equal(t, http.StatusOK, do("/api/v1/auth/login", "10.0.0.1:2000").Code)

	w := do("/api/v1/auth/login", "10.0.0.1:3000")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))

	var resp api.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "Too Many Requests", resp.Error)

	assert.Equal(t, http.StatusOK, do("/api/v1/auth/login", "10.0.0.2:1000").Code)

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, do("/api/v1/tasks", "10.0.0.1:1000").Code, "unlisted path is not limited")
		assert.Equal(t, http.StatusOK, do("/api/v1/auth/disabled", "10.0.0.1:1000").Code)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		trustProxy bool
		expected   string
	}{
		{
			name:       "RemoteAddr with port",
			remoteAddr: "192.168.1.1:12345",
			expected:   "192.168.1.1",
		},
		{
			name:       "RemoteAddr without port",
			remoteAddr: "192.168.1.1",
			expected:   "192.168.1.1",
		},
		{
			name:       "X-Forwarded-For ignored without trust",
			remoteAddr: "10.0.0.1:1",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.1"},
			expected:   "10.0.0.1",
		},
		{
			name:       "X-Forwarded-For first entry when trusted",
			remoteAddr: "10.0.0.1:1",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.1, 70.41.3.18"},
			trustProxy: true,
			expected:   "203.0.113.1",
		},
		{
			name:       "X-Real-IP when trusted",
			remoteAddr: "10.0.0.1:1",
			headers:    map[string]string{"X-Real-IP": "203.0.113.7"},
			trustProxy: true,
			expected:   "203.0.113.7",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.expected, clientIP(req, tt.trustProxy))
		})
	}
}
