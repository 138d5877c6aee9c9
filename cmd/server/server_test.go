package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/ecoscan/internal/adapters"
	"github.com/ZanzyTHEbar/ecoscan/internal/cache"
	"github.com/ZanzyTHEbar/ecoscan/internal/config"
	"github.com/ZanzyTHEbar/ecoscan/internal/database"
	"github.com/ZanzyTHEbar/ecoscan/internal/lookup"
	"github.com/ZanzyTHEbar/ecoscan/internal/middleware"
	"github.com/ZanzyTHEbar/ecoscan/internal/monitoring"
	"github.com/ZanzyTHEbar/ecoscan/internal/privacy"
	"github.com/ZanzyTHEbar/ecoscan/internal/ratelimit"
	"github.com/ZanzyTHEbar/ecoscan/internal/resilience"
	"github.com/ZanzyTHEbar/ecoscan/internal/scoring"
	"github.com/ZanzyTHEbar/ecoscan/internal/security"
	"github.com/ZanzyTHEbar/ecoscan/internal/types"
)

const yogurtBarcode = "8901234567890"

type stubFetcher struct {
	calls atomic.Int32
	fn    func(barcode string) (*types.RawProduct, error)
}

func (f *stubFetcher) FetchProduct(ctx context.Context, barcode, region string) (*types.RawProduct, error) {
	f.calls.Add(1)
	if f.fn == nil {
		return nil, adapters.ErrProductNotFound
	}
	return f.fn(barcode)
}

func testConfig() *config.Config {
	return &config.Config{
		Environment:          "test",
		HomeRegion:           scoring.DefaultRegionCode,
		UseSeeds:             true,
		CacheTTL:             time.Minute,
		RateLimitPerMinute:   1000,
		HistoryRetentionDays: 30,
		MaxBodyBytes:         1 << 20,
	}
}

func setupServer(t *testing.T, cfg *config.Config, fetcher lookup.ProductFetcher) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.NewDB(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	repo := database.NewRepository(db)

	store := cache.NewCache(cfg.CacheTTL, 0)
	t.Cleanup(func() { _ = store.Close() })

	metrics := monitoring.NewMetrics()
	logger := monitoring.NewLoggerWithWriter(io.Discard, monitoring.ParseLevel("error"))

	degradation := resilience.NewDegradationManager(resilience.DefaultDegradationConfig())
	degradation.RegisterService(lookup.ServiceName, nil)

	lookupService := lookup.NewService(lookup.Config{
		Fetcher:    fetcher,
		Store:      store,
		CacheTTL:   cfg.CacheTTL,
		HomeRegion: cfg.HomeRegion,
		UseSeeds:   cfg.UseSeeds,
		Retry: resilience.RetryConfig{
			MaxAttempts:   2,
			InitialDelay:  time.Millisecond,
			MaxDelay:      2 * time.Millisecond,
			BackoffFactor: 2,
		},
		Degradation: degradation,
		Metrics:     metrics,
		Logger:      logger,
	})

	limiter := ratelimit.NewRateLimiter(nil, ratelimit.Config{IPLimitPerMin: cfg.RateLimitPerMinute}, metrics)
	t.Cleanup(limiter.Close)

	var ids atomic.Int32
	return &server{
		cfg:         cfg,
		lookup:      lookupService,
		repo:        repo,
		store:       store,
		limiter:     limiter,
		degradation: degradation,
		retention:   privacy.NewRetentionService(repo, cfg.HistoryRetentionDays),
		metrics:     metrics,
		logger:      logger,
		security:    security.NewSecurityMiddleware(security.DefaultSecurityConfig()),
		compression: middleware.NewCompressionMiddleware(middleware.DefaultCompressionConfig()),
		breaker:     resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{}),
		pools: map[string]func() map[string]interface{}{
			"database": db.GetPoolStats,
		},
		newID: func() string { return fmt.Sprintf("scan-%d", ids.Add(1)) },
		now: func() time.Time {
			return time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
		},
	}
}

func setupRouter(t *testing.T) *gin.Engine {
	return setupServer(t, testConfig(), &stubFetcher{}).routes()
}

func doRequest(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func errorCategory(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	body := decode(t, w)
	envelope, ok := body["error"].(map[string]interface{})
	require.True(t, ok, w.Body.String())
	category, _ := envelope["category"].(string)
	return category
}

func TestHealthEndpoint(t *testing.T) {
	r := setupRouter(t)

	tests := []struct {
		name           string
		method         string
		path           string
		expectedStatus int
	}{
		{"GET /health returns OK status", http.MethodGet, "/health", http.StatusOK},
		{"POST /health is not routed", http.MethodPost, "/health", http.StatusNotFound},
		{"DELETE /health is not routed", http.MethodDelete, "/health", http.StatusNotFound},
		{"GET /health/services returns OK", http.MethodGet, "/health/services", http.StatusOK},
		{"GET /metrics returns OK", http.MethodGet, "/metrics", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(r, tt.method, tt.path, nil)
			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}

	w := doRequest(r, http.MethodGet, "/health", nil)
	body := decode(t, w)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "mx", body["home_region"])
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestHealthReportsEmergency(t *testing.T) {
	srv := setupServer(t, testConfig(), &stubFetcher{})
	for i := 0; i < 20; i++ {
		srv.degradation.RecordRequest(lookup.ServiceName, assert.AnError)
	}
	r := srv.routes()

	w := doRequest(r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "degraded", decode(t, w)["status"])
}

func TestServiceHealthEndpoint(t *testing.T) {
	r := setupRouter(t)

	w := doRequest(r, http.MethodGet, "/health/services", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	for _, key := range []string{"services", "circuit_breakers", "pools", "cache", "rate_limiter", "retention"} {
		assert.Contains(t, body, key)
	}
	breakers := body["circuit_breakers"].(map[string]interface{})
	off := breakers["openfoodfacts"].(map[string]interface{})
	assert.Equal(t, "closed", off["state"])
}

func TestMetricsIncludesCompression(t *testing.T) {
	r := setupRouter(t)

	w := doRequest(r, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decode(t, w), "compression")
}

func TestRegionsEndpoint(t *testing.T) {
	r := setupRouter(t)

	w := doRequest(r, http.MethodGet, "/api/v1/regions", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, "mx", body["home"])
	regions := body["regions"].([]interface{})
	assert.Len(t, regions, len(scoring.DefaultTables().Regions()))
}

func TestProductEndpoint(t *testing.T) {
	fetcher := &stubFetcher{fn: func(barcode string) (*types.RawProduct, error) {
		if barcode == "5449000000996" {
			return &types.RawProduct{
				Code:                   barcode,
				ProductName:            "Cola",
				Categories:             "Beverages",
				PackagingMaterialsTags: []string{"en:aluminium"},
			}, nil
		}
		return nil, adapters.ErrProductNotFound
	}}
	r := setupServer(t, testConfig(), fetcher).routes()

	tests := []struct {
		name           string
		path           string
		expectedStatus int
		category       string
		source         string
	}{
		{"seed product", "/api/v1/products/" + yogurtBarcode, http.StatusOK, "", "seed"},
		{"fetched product", "/api/v1/products/5449000000996?region=fr", http.StatusOK, "", "openfoodfacts"},
		{"cached product", "/api/v1/products/5449000000996?region=fr", http.StatusOK, "", "cache"},
		{"unknown product", "/api/v1/products/4000000000000", http.StatusNotFound, "not_found", ""},
		{"malformed barcode", "/api/v1/products/abc", http.StatusBadRequest, "validation", ""},
		{"unknown region", "/api/v1/products/" + yogurtBarcode + "?region=atlantis", http.StatusBadRequest, "validation", ""},
		{"bad explain flag", "/api/v1/products/" + yogurtBarcode + "?explain=maybe", http.StatusBadRequest, "validation", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(r, http.MethodGet, tt.path, nil)
			require.Equal(t, tt.expectedStatus, w.Code, w.Body.String())

			if tt.category != "" {
				assert.Equal(t, tt.category, errorCategory(t, w))
				return
			}
			assert.Equal(t, tt.source, decode(t, w)["source"])
		})
	}
}

func TestProductEndpointExplain(t *testing.T) {
	fetcher := &stubFetcher{fn: func(barcode string) (*types.RawProduct, error) {
		return &types.RawProduct{Code: barcode, ProductName: "Crackers", Categories: "Snacks"}, nil
	}}
	r := setupServer(t, testConfig(), fetcher).routes()

	w := doRequest(r, http.MethodGet, "/api/v1/products/5000000000001?explain=true", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, decode(t, w), "breakdown")

	w = doRequest(r, http.MethodGet, "/api/v1/products/5000000000001", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, decode(t, w), "breakdown")
}

func TestScoreEndpoint(t *testing.T) {
	r := setupRouter(t)

	req := types.ScoreRequest{
		Product: types.RawProduct{
			Code:        "5000000000002",
			ProductName: "Oat Drink",
			Categories:  "Plant-based beverages",
			Labels:      "Organic",
		},
		Region:  "fr",
		Explain: true,
	}

	first := doRequest(r, http.MethodPost, "/api/v1/score", req)
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))

	body := decode(t, first)
	assert.Equal(t, "fr", body["region"])
	assert.Contains(t, body, "breakdown")
	product := body["product"].(map[string]interface{})
	assert.Equal(t, "Oat Drink", product["name"])

	second := doRequest(r, http.MethodPost, "/api/v1/score", req)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())
}

func TestScoreEndpointRejections(t *testing.T) {
	r := setupRouter(t)

	t.Run("malformed json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/score", strings.NewReader(`{"product":`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "validation", errorCategory(t, w))
	})

	t.Run("non json content type", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/score", strings.NewReader("product=x"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	})

	t.Run("unknown region", func(t *testing.T) {
		w := doRequest(r, http.MethodPost, "/api/v1/score", types.ScoreRequest{Region: "atlantis"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHistoryLifecycle(t *testing.T) {
	r := setupRouter(t)

	w := doRequest(r, http.MethodPost, "/api/v1/history", types.ScanRequest{
		Barcode:  yogurtBarcode,
		Decision: "avoided",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	created := decode(t, w)
	assert.Equal(t, "seed", created["source"])
	scan := created["scan"].(map[string]interface{})
	assert.Equal(t, "scan-1", scan["id"])
	assert.Equal(t, "Avoided", scan["decision"])
	assert.EqualValues(t, 85, scan["ecoScore"])
	impact := created["impact"].(map[string]interface{})
	assert.EqualValues(t, 1, impact["totalScans"])
	assert.EqualValues(t, 1, impact["goodDecisions"])

	w = doRequest(r, http.MethodPost, "/api/v1/history", types.ScanRequest{
		Barcode:  "7501059200050",
		Decision: "Purchased",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = doRequest(r, http.MethodGet, "/api/v1/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, decode(t, w)["count"])

	w = doRequest(r, http.MethodGet, "/api/v1/history?decision=avoided", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["count"])

	w = doRequest(r, http.MethodGet, "/api/v1/history?search=yogurt", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["count"])

	w = doRequest(r, http.MethodGet, "/api/v1/history/summary", nil)
	require.Equal(t, http.StatusOK, w.Code)
	summary := decode(t, w)
	assert.EqualValues(t, 2, summary["totalScans"])
	assert.EqualValues(t, 55, summary["averageScore"])
	assert.EqualValues(t, 1, summary["goodChoices"])

	w = doRequest(r, http.MethodGet, "/api/v1/history/scan-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Organic Greek Yogurt", decode(t, w)["productName"])

	w = doRequest(r, http.MethodDelete, "/api/v1/history/scan-1", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doRequest(r, http.MethodGet, "/api/v1/history/scan-1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", errorCategory(t, w))

	w = doRequest(r, http.MethodDelete, "/api/v1/history/scan-1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Deleting a scan leaves the accumulated impact alone.
	w = doRequest(r, http.MethodGet, "/api/v1/impact", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, decode(t, w)["totalScans"])

	w = doRequest(r, http.MethodDelete, "/api/v1/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["deleted"])

	w = doRequest(r, http.MethodGet, "/api/v1/history", nil)
	assert.EqualValues(t, 0, decode(t, w)["count"])
}

func TestRecordScanRejections(t *testing.T) {
	r := setupRouter(t)

	tests := []struct {
		name           string
		body           interface{}
		expectedStatus int
		category       string
	}{
		{"missing barcode", map[string]string{"decision": "avoided"}, http.StatusBadRequest, "validation"},
		{"missing decision", map[string]string{"barcode": yogurtBarcode}, http.StatusBadRequest, "validation"},
		{"unknown decision", types.ScanRequest{Barcode: yogurtBarcode, Decision: "shoplifted"}, http.StatusBadRequest, "validation"},
		{"unknown product", types.ScanRequest{Barcode: "4000000000000", Decision: "avoided"}, http.StatusNotFound, "not_found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(r, http.MethodPost, "/api/v1/history", tt.body)
			assert.Equal(t, tt.expectedStatus, w.Code, w.Body.String())
			assert.Equal(t, tt.category, errorCategory(t, w))
		})
	}
}

func TestHistoryQueryRejections(t *testing.T) {
	r := setupRouter(t)

	for _, path := range []string{
		"/api/v1/history?decision=stolen",
		"/api/v1/history?sort=sideways",
		"/api/v1/history/summary?decision=stolen",
	} {
		w := doRequest(r, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
	}
}

func TestRateLimitedRoutes(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitPerMinute = 2
	r := setupServer(t, cfg, &stubFetcher{}).routes()

	path := "/api/v1/products/" + yogurtBarcode
	for i := 0; i < 2; i++ {
		w := doRequest(r, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	}

	w := doRequest(r, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, "rate_limit", errorCategory(t, w))

	// History reads are not throttled.
	w = doRequest(r, http.MethodGet, "/api/v1/history", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdminRoutes(t *testing.T) {
	t.Run("available outside production", func(t *testing.T) {
		srv := setupServer(t, testConfig(), &stubFetcher{})
		r := srv.routes()

		w := doRequest(r, http.MethodGet, "/api/v1/admin/ratelimit", nil)
		assert.Equal(t, http.StatusOK, w.Code)

		w = doRequest(r, http.MethodDelete, "/api/v1/admin/products/"+yogurtBarcode, nil)
		assert.Equal(t, http.StatusNoContent, w.Code)

		w = doRequest(r, http.MethodPost, "/api/v1/admin/retention/purge", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.EqualValues(t, 0, decode(t, w)["purged"])
	})

	t.Run("hidden in production", func(t *testing.T) {
		cfg := testConfig()
		cfg.Environment = "production"
		r := setupServer(t, cfg, &stubFetcher{}).routes()

		w := doRequest(r, http.MethodGet, "/api/v1/admin/ratelimit", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("purge with retention disabled", func(t *testing.T) {
		cfg := testConfig()
		cfg.HistoryRetentionDays = 0
		r := setupServer(t, cfg, &stubFetcher{}).routes()

		w := doRequest(r, http.MethodPost, "/api/v1/admin/retention/purge", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestCORSPreflight(t *testing.T) {
	r := setupRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/score", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
}
