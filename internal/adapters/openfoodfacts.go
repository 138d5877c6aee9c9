package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/ecoscan/internal/resilience"
	"github.com/ZanzyTHEbar/ecoscan/internal/types"
)

// ErrProductNotFound is returned when no source knows the barcode.
var ErrProductNotFound = errors.New("product not found")

const (
	// DefaultURLTemplate takes the region subdomain and the barcode.
	DefaultURLTemplate = "https://%s.openfoodfacts.org/api/v2/product/%s.json"
	DefaultUserAgent   = "EcoScan/1.0 (https://github.com/ZanzyTHEbar/ecoscan)"
	DefaultFallback    = "world"

	maxResponseBytes = 4 << 20
)

// OpenFoodFactsConfig configures the product database client.
type OpenFoodFactsConfig struct {
	URLTemplate    string
	UserAgent      string
	FallbackRegion string
	Timeout        time.Duration
	// OnBreakerChange, when set, observes circuit breaker transitions.
	OnBreakerChange func(from, to resilience.CircuitBreakerState)
}

// OpenFoodFactsAdapter fetches raw product records from OpenFoodFacts
type OpenFoodFactsAdapter struct {
	config OpenFoodFactsConfig
	pool   *resilience.ConnectionPool
}

// NewOpenFoodFactsAdapter creates an adapter with its own pool and circuit
// breaker.
func NewOpenFoodFactsAdapter(config OpenFoodFactsConfig) *OpenFoodFactsAdapter {
	if config.URLTemplate == "" {
		config.URLTemplate = DefaultURLTemplate
	}
	if config.UserAgent == "" {
		config.UserAgent = DefaultUserAgent
	}
	if config.FallbackRegion == "" {
		config.FallbackRegion = DefaultFallback
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}

	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		FailureThreshold: 5,
		RecoveryTimeout:  30 * time.Second,
		SuccessThreshold: 2,
		OnStateChange: func(from, to resilience.CircuitBreakerState) {
			slog.Warn("OpenFoodFacts circuit breaker state changed", "from", from.String(), "to", to.String())
			if config.OnBreakerChange != nil {
				config.OnBreakerChange(from, to)
			}
		},
	})

	pool := resilience.NewConnectionPool(resilience.PoolConfig{
		MaxIdle:        10,
		MaxActive:      20,
		IdleTimeout:    90 * time.Second,
		RequestTimeout: config.Timeout,
	}, cb)

	return &OpenFoodFactsAdapter{
		config: config,
		pool:   pool,
	}
}

// Sources returns the region subdomains tried for homeRegion, in order.
func (o *OpenFoodFactsAdapter) Sources(homeRegion string) []string {
	sources := make([]string, 0, 2)
	if region := strings.ToLower(strings.TrimSpace(homeRegion)); region != "" {
		sources = append(sources, region)
	}
	if len(sources) == 0 || sources[0] != o.config.FallbackRegion {
		sources = append(sources, o.config.FallbackRegion)
	}
	return sources
}

// FetchProduct looks the barcode up in the home region's database, then in
// the fallback region. ErrProductNotFound is returned only when every
// source reported the product missing; otherwise the last failure is.
func (o *OpenFoodFactsAdapter) FetchProduct(ctx context.Context, barcode, homeRegion string) (*types.RawProduct, error) {
	var lastErr error

	for _, source := range o.Sources(homeRegion) {
		product, err := o.fetchFrom(ctx, source, barcode)
		if err == nil {
			return product, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		slog.Debug("OpenFoodFacts source failed", "source", source, "barcode", barcode, "error", err)
		if lastErr == nil || !errors.Is(err, ErrProductNotFound) {
			lastErr = err
		}
	}

	return nil, lastErr
}

func (o *OpenFoodFactsAdapter) fetchFrom(ctx context.Context, source, barcode string) (*types.RawProduct, error) {
	url := fmt.Sprintf(o.config.URLTemplate, source, barcode)

	resp, err := o.makeRequest(ctx, http.MethodGet, url)
	if err != nil {
		return nil, fmt.Errorf("openfoodfacts %s: %w", source, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("openfoodfacts %s: %w", source, ErrProductNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("openfoodfacts %s: %w", source, resilience.NewHTTPError(resp.StatusCode, resp.Status, url))
	}

	var envelope types.ProductResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("openfoodfacts %s: failed to decode product: %w", source, err)
	}
	if envelope.Status != 1 || envelope.Product == nil {
		return nil, fmt.Errorf("openfoodfacts %s: %w", source, ErrProductNotFound)
	}

	product := envelope.Product
	if product.Code == "" {
		product.Code = firstNonEmpty(envelope.Code, barcode)
	}
	return product, nil
}

// makeRequest makes an HTTP request using the connection pool
func (o *OpenFoodFactsAdapter) makeRequest(ctx context.Context, method, url string) (*http.Response, error) {
	headers := map[string]string{
		"Accept":     "application/json",
		"User-Agent": o.config.UserAgent,
	}
	return o.pool.DoRequest(ctx, method, url, headers)
}

// Ping checks that the fallback source is reachable.
func (o *OpenFoodFactsAdapter) Ping(ctx context.Context) error {
	_, err := o.fetchFrom(ctx, o.config.FallbackRegion, "0000000000000")
	if err == nil || errors.Is(err, ErrProductNotFound) {
		return nil
	}
	return err
}

// GetPoolStats returns connection pool statistics
func (o *OpenFoodFactsAdapter) GetPoolStats() map[string]interface{} {
	return o.pool.GetStats()
}

// CircuitBreaker returns the breaker guarding upstream requests.
func (o *OpenFoodFactsAdapter) CircuitBreaker() *resilience.CircuitBreaker {
	return o.pool.CircuitBreaker()
}

// Close closes the connection pool
func (o *OpenFoodFactsAdapter) Close() error {
	return o.pool.Close()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
