package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, rate int) (*RateLimiter, *time.Time) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(ctx, rate, time.Minute)
	rl.now = func() time.Time { return clock }
	return rl, &clock
}

func TestRateLimiter_Allow(t *testing.T) {
	rl, clock := newTestLimiter(t, 3)

	for i := 0; i < 3; i++ {
		require.True(t, rl.Allow("10.0.0.1"), "request %d", i)
	}
	require.False(t, rl.Allow("10.0.0.1"))
	require.True(t, rl.Allow("10.0.0.2"), "buckets are per key")

	*clock = clock.Add(59 * time.Second)
	require.False(t, rl.Allow("10.0.0.1"), "partial intervals do not refill")

	*clock = clock.Add(time.Second)
	require.True(t, rl.Allow("10.0.0.1"))
}

func TestRateLimiter_RefillIsCapped(t *testing.T) {
	rl, clock := newTestLimiter(t, 2)
	require.True(t, rl.Allow("a"))

	*clock = clock.Add(10 * time.Minute)
	require.True(t, rl.Allow("a"))
	require.True(t, rl.Allow("a"))
	require.False(t, rl.Allow("a"))
}

func TestRateLimiter_CleanupDropsIdleVisitors(t *testing.T) {
	rl, clock := newTestLimiter(t, 1)
	rl.Allow("a")

	*clock = clock.Add(2 * time.Minute)
	rl.cleanup()
	require.Len(t, rl.visitors, 1)

	*clock = clock.Add(2 * time.Minute)
	rl.cleanup()
	require.Empty(t, rl.visitors)
}

func TestRateLimiter_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl, _ := newTestLimiter(t, 1)

	r := gin.New()
	r.POST("/login", rl.Middleware(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	first := httptest.NewRecorder()
	r.ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/login", nil))
	require.Equal(t, http.StatusNoContent, first.Code)

	second := httptest.NewRecorder()
	r.ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/login", nil))
	require.Equal(t, http.StatusTooManyRequests, second.Code)
	require.Contains(t, second.Body.String(), "RATE_LIMIT_EXCEEDED")
}
