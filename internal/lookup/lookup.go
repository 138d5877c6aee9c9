// Package lookup resolves a barcode to a scored product: cache, offline
// seed products, then the upstream product database.
package lookup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ZanzyTHEbar/ecoscan/internal/adapters"
	"github.com/ZanzyTHEbar/ecoscan/internal/cache"
	apperrors "github.com/ZanzyTHEbar/ecoscan/internal/errors"
	"github.com/ZanzyTHEbar/ecoscan/internal/monitoring"
	"github.com/ZanzyTHEbar/ecoscan/internal/resilience"
	"github.com/ZanzyTHEbar/ecoscan/internal/scoring"
	"github.com/ZanzyTHEbar/ecoscan/internal/types"
)

// ServiceName identifies the upstream in degradation and retry registries.
const ServiceName = "openfoodfacts"

// Source says where a lookup result came from.
type Source string

const (
	SourceCache         Source = "cache"
	SourceSeed          Source = "seed"
	SourceOpenFoodFacts Source = "openfoodfacts"
)

// ProductFetcher loads raw product records by barcode.
type ProductFetcher interface {
	FetchProduct(ctx context.Context, barcode, homeRegion string) (*types.RawProduct, error)
}

// Result is a looked-up product. Breakdown is set only when requested and
// the product was scored from raw data.
type Result struct {
	Product   scoring.Product    `json:"product"`
	Breakdown *scoring.Breakdown `json:"breakdown,omitempty"`
	Source    Source             `json:"source"`
	Region    string             `json:"region"`
	Rating    string             `json:"rating"`
}

// Config wires a Service.
type Config struct {
	Tables       *scoring.Tables
	Fetcher      ProductFetcher
	Store        cache.Store
	CacheTTL     time.Duration
	HomeRegion   string
	Retry        resilience.RetryConfig
	FetchTimeout time.Duration
	UseSeeds     bool
	Degradation  *resilience.DegradationManager
	Metrics      *monitoring.Metrics
	Logger       *monitoring.Logger
}

// Service looks products up and scores them.
type Service struct {
	tables       *scoring.Tables
	fetcher      ProductFetcher
	store        cache.Store
	cacheTTL     time.Duration
	homeRegion   string
	retry        resilience.RetryConfig
	fetchTimeout time.Duration
	useSeeds     bool
	degradation  *resilience.DegradationManager
	metrics      *monitoring.Metrics
	logger       *monitoring.Logger
	group        singleflight.Group
}

// NewService creates a lookup service. Tables, Fetcher and Store are
// required.
func NewService(cfg Config) *Service {
	if cfg.Tables == nil {
		cfg.Tables = scoring.DefaultTables()
	}
	if cfg.HomeRegion == "" {
		cfg.HomeRegion = scoring.DefaultRegionCode
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 15 * time.Minute
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 30 * time.Second
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = resilience.DefaultRetryConfig()
	}
	cfg.Retry.RetryableErrors = retryable
	if cfg.Metrics == nil {
		cfg.Metrics = monitoring.NewMetrics()
	}
	if cfg.Logger == nil {
		cfg.Logger = monitoring.NewLogger(monitoring.ParseLevel("info"))
	}

	return &Service{
		tables:       cfg.Tables,
		fetcher:      cfg.Fetcher,
		store:        cfg.Store,
		cacheTTL:     cfg.CacheTTL,
		homeRegion:   cfg.HomeRegion,
		retry:        cfg.Retry,
		fetchTimeout: cfg.FetchTimeout,
		useSeeds:     cfg.UseSeeds,
		degradation:  cfg.Degradation,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger,
	}
}

// retryable never retries a definitive not-found.
func retryable(err error) bool {
	if errors.Is(err, adapters.ErrProductNotFound) {
		return false
	}
	return resilience.IsRetryable(err)
}

// ValidateBarcode accepts 8 to 14 ASCII digits (EAN-8, UPC-A, EAN-13,
// GTIN-14).
func ValidateBarcode(barcode string) error {
	if len(barcode) < 8 || len(barcode) > 14 {
		return apperrors.NewValidationError("Barcode must be 8 to 14 digits", barcode)
	}
	for _, r := range barcode {
		if r < '0' || r > '9' {
			return apperrors.NewValidationError("Barcode must contain only digits", barcode)
		}
	}
	return nil
}

// Region normalises a requested region, defaulting to the home region.
func (s *Service) Region(requested string) (string, error) {
	region := strings.ToLower(strings.TrimSpace(requested))
	if region == "" {
		return s.homeRegion, nil
	}
	if !s.tables.HasRegion(region) {
		return "", apperrors.NewValidationError("Unknown region", region)
	}
	return region, nil
}

// Tables returns the reference tables used for scoring.
func (s *Service) Tables() *scoring.Tables {
	return s.tables
}

func cacheKey(region, barcode string) string {
	return "product:" + region + ":" + barcode
}

// Lookup resolves barcode for region.
func (s *Service) Lookup(ctx context.Context, barcode, region string, explain bool) (Result, error) {
	start := time.Now()
	s.metrics.IncrementProductLookup()

	barcode = strings.TrimSpace(barcode)
	if err := ValidateBarcode(barcode); err != nil {
		return Result{}, err
	}
	region, err := s.Region(region)
	if err != nil {
		return Result{}, err
	}

	key := cacheKey(region, barcode)
	if assessment, ok := s.fromCache(ctx, key); ok {
		return s.result(assessment, SourceCache, region, explain), nil
	}

	if s.useSeeds {
		if product, ok := scoring.DemoProduct(barcode); ok {
			s.metrics.IncrementSeedHit()
			return Result{
				Product: product,
				Source:  SourceSeed,
				Region:  region,
				Rating:  scoring.Rating(product.EcoScore),
			}, nil
		}
	}

	// Only the fetch is shared. A panic inside DoChan is re-raised on a
	// goroutine nobody can recover, so the closure recovers its own and
	// scoring runs on the caller's goroutine.
	ch := s.group.DoChan(key, func() (v interface{}, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = apperrors.NewInternalError("Product fetch failed", fmt.Errorf("panic: %v", r))
			}
		}()
		return s.fetch(context.WithoutCancel(ctx), barcode, region)
	})

	select {
	case <-ctx.Done():
		return Result{}, apperrors.NewTimeoutError("Product lookup cancelled", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return Result{}, res.Err
		}
		assessment := s.score(ctx, key, *res.Val.(*types.RawProduct), region)
		s.logger.LogScore(assessment.Product.ID, region, string(SourceOpenFoodFacts), assessment.Product.EcoScore, time.Since(start))
		return s.result(assessment, SourceOpenFoodFacts, region, explain), nil
	}
}

func (s *Service) fromCache(ctx context.Context, key string) (scoring.Assessment, bool) {
	data, found, err := s.store.Get(ctx, key)
	if err != nil {
		s.logger.Warn("Product cache read failed", "key", key, "error", err)
		return scoring.Assessment{}, false
	}
	s.logger.LogCacheOperation("get", key, found)
	if !found {
		s.metrics.IncrementCacheMiss()
		return scoring.Assessment{}, false
	}

	var assessment scoring.Assessment
	if err := json.Unmarshal(data, &assessment); err != nil {
		s.logger.Warn("Discarding unreadable cache entry", "key", key, "error", err)
		_ = s.store.Delete(ctx, key)
		return scoring.Assessment{}, false
	}
	s.metrics.IncrementCacheHit()
	return assessment, true
}

// fetch runs once per key at a time. ctx carries no caller cancellation
// so that one impatient caller does not fail the others.
func (s *Service) fetch(ctx context.Context, barcode, region string) (*types.RawProduct, error) {
	if s.degradation != nil && !s.degradation.IsServiceAvailable(ServiceName) {
		return nil, apperrors.NewExternalAPIError(ServiceName,
			fmt.Errorf("%s temporarily unavailable", ServiceName))
	}

	ctx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	var raw *types.RawProduct
	err := resilience.RetryWithConfig(ctx, s.retry, func() error {
		fetchStart := time.Now()
		product, err := s.fetcher.FetchProduct(ctx, barcode, region)

		upstreamFailed := err != nil && !errors.Is(err, adapters.ErrProductNotFound)
		s.metrics.RecordExternalAPIRequest(ServiceName, !upstreamFailed)
		if s.degradation != nil {
			var failure error
			if upstreamFailed {
				failure = err
			}
			s.degradation.RecordRequest(ServiceName, failure)
		}
		s.logger.LogExternalAPI(ServiceName, "fetch_product", time.Since(fetchStart), err)

		if err != nil {
			return err
		}
		raw = product
		return nil
	})
	if err != nil {
		return nil, s.classify(barcode, err)
	}
	return raw, nil
}

// score assesses a fetched product and caches the assessment. Scoring
// panics on a broken invariant; it runs here so the panic reaches the
// caller's recovery middleware.
func (s *Service) score(ctx context.Context, key string, raw types.RawProduct, region string) scoring.Assessment {
	assessment := s.tables.Assess(raw, region)
	s.metrics.IncrementProductScored()

	if data, err := json.Marshal(assessment); err == nil {
		if err := s.store.Set(ctx, key, data, s.cacheTTL); err != nil {
			s.logger.Warn("Product cache write failed", "key", key, "error", err)
		}
	}
	return assessment
}

// classify maps upstream failures onto the application error taxonomy.
func (s *Service) classify(barcode string, err error) error {
	var cbErr *resilience.CircuitBreakerError
	var httpErr *resilience.HTTPError

	switch {
	case errors.Is(err, adapters.ErrProductNotFound):
		s.metrics.IncrementNotFound()
		return apperrors.NewNotFoundError("product", barcode, err)
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.NewTimeoutError("Product database did not respond in time", err)
	case errors.As(err, &cbErr), errors.As(err, &httpErr):
		return apperrors.NewExternalAPIError(ServiceName, err)
	default:
		return apperrors.ToAppError(err)
	}
}

func (s *Service) result(assessment scoring.Assessment, source Source, region string, explain bool) Result {
	result := Result{
		Product: assessment.Product,
		Source:  source,
		Region:  region,
		Rating:  scoring.Rating(assessment.Product.EcoScore),
	}
	if explain {
		breakdown := assessment.Breakdown
		result.Breakdown = &breakdown
	}
	return result
}

// Score scores a raw product supplied by the caller.
func (s *Service) Score(raw types.RawProduct, region string, explain bool) (Result, error) {
	region, err := s.Region(region)
	if err != nil {
		return Result{}, err
	}

	assessment := s.tables.Assess(raw, region)
	s.metrics.IncrementProductScored()
	return s.result(assessment, "", region, explain), nil
}

// Invalidate drops the cached entry for barcode in region.
func (s *Service) Invalidate(ctx context.Context, barcode, region string) error {
	region, err := s.Region(region)
	if err != nil {
		return err
	}
	return s.store.Delete(ctx, cacheKey(region, barcode))
}
