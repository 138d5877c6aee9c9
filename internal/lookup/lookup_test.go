package lookup

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/ecoscan/internal/adapters"
	"github.com/ZanzyTHEbar/ecoscan/internal/cache"
	apperrors "github.com/ZanzyTHEbar/ecoscan/internal/errors"
	"github.com/ZanzyTHEbar/ecoscan/internal/monitoring"
	"github.com/ZanzyTHEbar/ecoscan/internal/resilience"
	"github.com/ZanzyTHEbar/ecoscan/internal/scoring"
	"github.com/ZanzyTHEbar/ecoscan/internal/types"
)

const sodaBarcode = "5449000000996"

type fakeFetcher struct {
	calls   atomic.Int32
	regions []string
	mu      sync.Mutex
	fn      func(call int32) (*types.RawProduct, error)
}

func (f *fakeFetcher) FetchProduct(ctx context.Context, barcode, region string) (*types.RawProduct, error) {
	call := f.calls.Add(1)
	f.mu.Lock()
	f.regions = append(f.regions, region)
	f.mu.Unlock()
	return f.fn(call)
}

func soda() *types.RawProduct {
	return &types.RawProduct{
		Code:                   sodaBarcode,
		ProductName:            "Cola",
		Brands:                 "Fizz Co",
		Categories:             "Beverages, Sodas",
		PackagingMaterialsTags: []string{"en:pet-1-polyethylene-terephthalate"},
		Countries:              "Mexico",
	}
}

func newTestService(t *testing.T, fetcher ProductFetcher) (*Service, *monitoring.Metrics) {
	t.Helper()
	store := cache.NewCache(time.Minute, 0)
	t.Cleanup(func() { _ = store.Close() })

	metrics := monitoring.NewMetrics()
	svc := NewService(Config{
		Fetcher:  fetcher,
		Store:    store,
		UseSeeds: true,
		Retry: resilience.RetryConfig{
			MaxAttempts:   3,
			InitialDelay:  time.Millisecond,
			MaxDelay:      5 * time.Millisecond,
			BackoffFactor: 2,
		},
		Metrics: metrics,
		Logger:  monitoring.NewLoggerWithWriter(io.Discard, monitoring.ParseLevel("error")),
	})
	return svc, metrics
}

func TestValidateBarcode(t *testing.T) {
	for _, ok := range []string{"12345678", "012345678905", "5449000000996", "12345678901234"} {
		assert.NoError(t, ValidateBarcode(ok), ok)
	}
	for _, bad := range []string{"", "1234567", "123456789012345", "54490000009a6", " 5449000000996"} {
		err := ValidateBarcode(bad)
		require.Error(t, err, bad)
		var appErr *apperrors.AppError
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, apperrors.CategoryValidation, appErr.Category)
	}
}

func TestLookupFetchesThenCaches(t *testing.T) {
	fetcher := &fakeFetcher{fn: func(int32) (*types.RawProduct, error) { return soda(), nil }}
	svc, metrics := newTestService(t, fetcher)
	ctx := context.Background()

	first, err := svc.Lookup(ctx, sodaBarcode, "", false)
	require.NoError(t, err)
	assert.Equal(t, SourceOpenFoodFacts, first.Source)
	assert.Equal(t, "mx", first.Region)
	assert.Equal(t, "Cola", first.Product.Name)
	assert.Nil(t, first.Breakdown)

	second, err := svc.Lookup(ctx, sodaBarcode, "MX", true)
	require.NoError(t, err)
	assert.Equal(t, SourceCache, second.Source)
	assert.Equal(t, first.Product, second.Product)
	require.NotNil(t, second.Breakdown)
	assert.Equal(t, "mx", second.Breakdown.Region)

	assert.Equal(t, int32(1), fetcher.calls.Load())
	stats := metrics.GetStats()
	assert.EqualValues(t, 1, stats["cache_hits"])
}

func TestLookupCacheIsPerRegion(t *testing.T) {
	fetcher := &fakeFetcher{fn: func(int32) (*types.RawProduct, error) { return soda(), nil }}
	svc, _ := newTestService(t, fetcher)

	_, err := svc.Lookup(context.Background(), sodaBarcode, "mx", false)
	require.NoError(t, err)
	result, err := svc.Lookup(context.Background(), sodaBarcode, "fr", false)
	require.NoError(t, err)

	assert.Equal(t, SourceOpenFoodFacts, result.Source)
	assert.Equal(t, int32(2), fetcher.calls.Load())
	assert.Equal(t, []string{"mx", "fr"}, fetcher.regions)
}

func TestLookupServesSeedProducts(t *testing.T) {
	fetcher := &fakeFetcher{fn: func(int32) (*types.RawProduct, error) {
		return nil, errors.New("should not be called")
	}}
	svc, _ := newTestService(t, fetcher)

	result, err := svc.Lookup(context.Background(), "8901234567890", "", true)
	require.NoError(t, err)
	assert.Equal(t, SourceSeed, result.Source)
	assert.Equal(t, 85, result.Product.EcoScore)
	assert.Nil(t, result.Breakdown)
	assert.Zero(t, fetcher.calls.Load())
}

func TestLookupRejectsInvalidInput(t *testing.T) {
	svc, _ := newTestService(t, &fakeFetcher{fn: func(int32) (*types.RawProduct, error) { return soda(), nil }})

	_, err := svc.Lookup(context.Background(), "abc", "", false)
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperrors.CategoryValidation, appErr.Category)

	_, err = svc.Lookup(context.Background(), sodaBarcode, "atlantis", false)
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperrors.CategoryValidation, appErr.Category)
}

func TestLookupNotFoundIsNotRetried(t *testing.T) {
	fetcher := &fakeFetcher{fn: func(int32) (*types.RawProduct, error) {
		return nil, adapters.ErrProductNotFound
	}}
	svc, metrics := newTestService(t, fetcher)

	_, err := svc.Lookup(context.Background(), sodaBarcode, "", false)
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
	assert.ErrorIs(t, err, adapters.ErrProductNotFound)
	assert.Equal(t, int32(1), fetcher.calls.Load())
	assert.EqualValues(t, 1, metrics.GetStats()["not_found"])
}

func TestLookupRetriesUpstreamFailures(t *testing.T) {
	fetcher := &fakeFetcher{fn: func(call int32) (*types.RawProduct, error) {
		if call < 3 {
			return nil, resilience.NewHTTPError(503, "503 Service Unavailable", "http://off")
		}
		return soda(), nil
	}}
	svc, _ := newTestService(t, fetcher)

	result, err := svc.Lookup(context.Background(), sodaBarcode, "", false)
	require.NoError(t, err)
	assert.Equal(t, "Cola", result.Product.Name)
	assert.Equal(t, int32(3), fetcher.calls.Load())
}

func TestLookupMapsUpstreamErrors(t *testing.T) {
	fetcher := &fakeFetcher{fn: func(int32) (*types.RawProduct, error) {
		return nil, resilience.NewHTTPError(500, "500 Internal Server Error", "http://off")
	}}
	svc, _ := newTestService(t, fetcher)

	_, err := svc.Lookup(context.Background(), sodaBarcode, "", false)
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperrors.CategoryExternalAPI, appErr.Category)
	assert.Equal(t, int32(3), fetcher.calls.Load())
}

func TestLookupFetcherPanicBecomesInternalError(t *testing.T) {
	fetcher := &fakeFetcher{fn: func(call int32) (*types.RawProduct, error) {
		if call == 1 {
			panic("decoder blew up")
		}
		return soda(), nil
	}}
	svc, _ := newTestService(t, fetcher)

	_, err := svc.Lookup(context.Background(), sodaBarcode, "", false)
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperrors.CategoryInternal, appErr.Category)

	result, err := svc.Lookup(context.Background(), sodaBarcode, "", false)
	require.NoError(t, err)
	assert.Equal(t, "Cola", result.Product.Name)
	assert.Equal(t, int32(2), fetcher.calls.Load())
}

func TestLookupCollapsesConcurrentFetches(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	fetcher := &fakeFetcher{fn: func(int32) (*types.RawProduct, error) {
		once.Do(func() { close(entered) })
		<-release
		return soda(), nil
	}}
	svc, _ := newTestService(t, fetcher)

	var wg sync.WaitGroup
	results := make([]Result, 5)
	errs := make([]error, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.Lookup(context.Background(), sodaBarcode, "", false)
		}(i)
	}

	<-entered
	close(release)
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, "Cola", results[i].Product.Name)
	}
	assert.Equal(t, int32(1), fetcher.calls.Load())
}

func TestLookupCallerCancellation(t *testing.T) {
	release := make(chan struct{})
	fetcher := &fakeFetcher{fn: func(int32) (*types.RawProduct, error) {
		<-release
		return soda(), nil
	}}
	svc, _ := newTestService(t, fetcher)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.Lookup(ctx, sodaBarcode, "", false)
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperrors.CategoryTimeout, appErr.Category)
	close(release)
}

func TestLookupHonoursDegradation(t *testing.T) {
	fetcher := &fakeFetcher{fn: func(int32) (*types.RawProduct, error) { return soda(), nil }}
	svc, _ := newTestService(t, fetcher)

	dm := resilience.NewDegradationManager(resilience.DegradationConfig{
		MinRequests:        1,
		DegradedThreshold:  0.1,
		CriticalThreshold:  0.2,
		EmergencyThreshold: 0.3,
		RecoveryTimeWindow: time.Hour,
		HealthCheckTimeout: time.Second,
	})
	dm.RegisterService(ServiceName, nil)
	dm.RecordRequest(ServiceName, errors.New("boom"))
	svc.degradation = dm

	_, err := svc.Lookup(context.Background(), sodaBarcode, "", false)
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperrors.CategoryExternalAPI, appErr.Category)
	assert.Zero(t, fetcher.calls.Load())
}

func TestScoreAndInvalidate(t *testing.T) {
	fetcher := &fakeFetcher{fn: func(int32) (*types.RawProduct, error) { return soda(), nil }}
	svc, _ := newTestService(t, fetcher)

	scored, err := svc.Score(*soda(), "", true)
	require.NoError(t, err)
	require.NotNil(t, scored.Breakdown)
	assert.Equal(t, scoring.Rating(scored.Product.EcoScore), scored.Rating)
	assert.Empty(t, scored.Source)

	ctx := context.Background()
	_, err = svc.Lookup(ctx, sodaBarcode, "", false)
	require.NoError(t, err)
	require.NoError(t, svc.Invalidate(ctx, sodaBarcode, ""))
	_, err = svc.Lookup(ctx, sodaBarcode, "", false)
	require.NoError(t, err)
	assert.Equal(t, int32(2), fetcher.calls.Load())
}
