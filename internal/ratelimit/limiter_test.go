package ratelimit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/ZanzyTHEbar/ecoscan/internal/errors"
	"github.com/ZanzyTHEbar/ecoscan/internal/monitoring"
)

func newTestLimiter(t *testing.T, perMinute int) (*RateLimiter, *time.Time, *monitoring.Metrics) {
	t.Helper()
	metrics := monitoring.NewMetrics()
	rl := NewRateLimiter(nil, Config{IPLimitPerMin: perMinute}, metrics)
	t.Cleanup(rl.Close)

	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return clock }
	return rl, &clock, metrics
}

func TestRateLimiterFallbackMode(t *testing.T) {
	rl, _, metrics := newTestLimiter(t, 5)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		result, err := rl.AllowIP(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, result.Allowed, "request %d should be allowed", i+1)
		assert.Equal(t, 5, result.Limit)
		assert.Equal(t, 4-i, result.Remaining)
	}

	result, err := rl.AllowIP(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, 0, result.Remaining)
	assert.InDelta(t, float64(12*time.Second), float64(result.RetryAfter), float64(time.Millisecond))

	other, err := rl.AllowIP(ctx, "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, other.Allowed, "limits are per IP")

	assert.EqualValues(t, 7, metrics.GetRateLimitStats()["fallback_count"])
}

func TestRateLimiterRefills(t *testing.T) {
	rl, clock, _ := newTestLimiter(t, 60)
	ctx := context.Background()

	for i := 0; i < 60; i++ {
		result, err := rl.AllowIP(ctx, "10.0.0.1")
		require.NoError(t, err)
		require.True(t, result.Allowed)
	}
	result, err := rl.AllowIP(ctx, "10.0.0.1")
	require.NoError(t, err)
	require.False(t, result.Allowed)

	*clock = clock.Add(time.Second)
	result, err = rl.AllowIP(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestRateLimiterRejectsInvalidRate(t *testing.T) {
	rl, _, _ := newTestLimiter(t, 5)

	_, err := rl.Allow(context.Background(), "k", Rate{Limit: 0, Period: time.Minute})
	assert.Error(t, err)
	_, err = rl.Allow(context.Background(), "k", Rate{Limit: 1})
	assert.Error(t, err)
}

func TestSweepDropsIdleLimiters(t *testing.T) {
	rl, clock, _ := newTestLimiter(t, 5)
	ctx := context.Background()

	_, err := rl.AllowIP(ctx, "10.0.0.1")
	require.NoError(t, err)
	*clock = clock.Add(30 * time.Second)
	_, err = rl.AllowIP(ctx, "10.0.0.2")
	require.NoError(t, err)

	*clock = clock.Add(45 * time.Second)
	assert.Equal(t, 1, rl.sweep())

	count, err := rl.GetKeyCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestInvalidateIP(t *testing.T) {
	rl, _, _ := newTestLimiter(t, 2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := rl.AllowIP(ctx, "10.0.0.1")
		require.NoError(t, err)
	}
	_, err := rl.Allow(ctx, endpointKey("products", "10.0.0.1"), PerMinute(1))
	require.NoError(t, err)
	_, err = rl.AllowIP(ctx, "10.0.0.11")
	require.NoError(t, err)

	result, err := rl.AllowIP(ctx, "10.0.0.1")
	require.NoError(t, err)
	require.False(t, result.Allowed)

	removed, err := rl.InvalidateIP(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	result, err = rl.AllowIP(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, result.Allowed)

	removed, err = rl.InvalidateAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
}

func newTestRouter(rl *RateLimiter, mw gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(apperrors.ErrorHandler())
	r.GET("/ping", mw, func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	r.GET("/ratelimit", rl.HandleRateLimitStatus())
	return r
}

func TestIPRateLimitMiddleware(t *testing.T) {
	rl, _, metrics := newTestLimiter(t, 2)
	router := newTestRouter(rl, rl.IPRateLimitMiddleware())

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "30", w.Header().Get("Retry-After"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	var body struct {
		Error struct {
			Code     string            `json:"code"`
			Category string            `json:"category"`
			Details  map[string]string `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "rate_limit", body.Error.Category)
	assert.Equal(t, "30", body.Error.Details["retry_after"])
	assert.EqualValues(t, 1, metrics.GetRateLimitStats()["ip_blocks"])
}

func TestEndpointRateLimitMiddleware(t *testing.T) {
	rl, _, _ := newTestLimiter(t, 100)
	router := newTestRouter(rl, rl.EndpointRateLimitMiddleware("products", 1))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Endpoint-Limit"))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
}

func TestHandleRateLimitStatus(t *testing.T) {
	rl, _, _ := newTestLimiter(t, 42)
	router := newTestRouter(rl, rl.IPRateLimitMiddleware())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ratelimit", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "memory", body["backend"])
	limits := body["limits"].(map[string]interface{})["ip_per_minute"].(map[string]interface{})
	assert.EqualValues(t, 42, limits["limit"])
}
