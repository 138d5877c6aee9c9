package resilience

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"sync"
	"time"

	apperrors "github.com/ZanzyTHEbar/ecoscan/internal/errors"
)

// RetryConfig holds configuration for retry behavior
type RetryConfig struct {
	MaxAttempts     int              `json:"max_attempts"`
	InitialDelay    time.Duration    `json:"initial_delay"`
	MaxDelay        time.Duration    `json:"max_delay"`
	BackoffFactor   float64          `json:"backoff_factor"`
	JitterEnabled   bool             `json:"jitter_enabled"`
	RetryableErrors func(error) bool `json:"-"`
}

// DefaultRetryConfig returns sensible defaults for retry behavior
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:     3,
		InitialDelay:    100 * time.Millisecond,
		MaxDelay:        30 * time.Second,
		BackoffFactor:   2.0,
		JitterEnabled:   true,
		RetryableErrors: IsRetryable,
	}
}

// IsRetryable reports whether err is worth another attempt: transient
// network failures, timeouts and retryable upstream statuses.
func IsRetryable(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return isRetryableHTTPStatus(httpErr.StatusCode)
	}
	var cbErr *CircuitBreakerError
	if errors.As(err, &cbErr) {
		return false
	}
	return apperrors.IsRetryableError(err)
}

// RetryableFunc represents a function that can be retried
type RetryableFunc func() error

// RetryWithConfig executes a function with retry logic using custom configuration
func RetryWithConfig(ctx context.Context, config RetryConfig, fn RetryableFunc) error {
	if config.RetryableErrors == nil {
		config.RetryableErrors = IsRetryable
	}

	var lastErr error

	for attempt := 0; attempt < config.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err

		if !config.RetryableErrors(err) {
			break
		}

		// Don't delay on the last attempt
		if attempt == config.MaxAttempts-1 {
			break
		}

		timer := time.NewTimer(calculateDelay(config, attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return lastErr
}

// calculateDelay computes the delay for the next retry attempt
func calculateDelay(config RetryConfig, attempt int) time.Duration {
	// Exponential backoff: initial_delay * (backoff_factor ^ attempt)
	delay := time.Duration(float64(config.InitialDelay) * math.Pow(config.BackoffFactor, float64(attempt)))

	if config.MaxDelay > 0 && delay > config.MaxDelay {
		delay = config.MaxDelay
	}

	// Up to 10% jitter
	if config.JitterEnabled && delay >= 10 {
		delay += time.Duration(rand.Int63n(int64(delay / 10)))
	}

	return delay
}

// isRetryableHTTPStatus checks if an HTTP status code should trigger a retry
func isRetryableHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// HTTPError represents an unexpected upstream HTTP status
type HTTPError struct {
	StatusCode int
	Status     string
	URL        string
}

func (e *HTTPError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("unexpected status %s", e.Status)
	}
	return fmt.Sprintf("unexpected status %s from %s", e.Status, e.URL)
}

// NewHTTPError creates a new HTTP error
func NewHTTPError(statusCode int, status, url string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Status:     status,
		URL:        url,
	}
}

// IgnoreFailure reports whether an error is an expected client-side
// outcome (4xx other than 408/429) that says nothing about upstream health.
func IgnoreFailure(err error) bool {
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		return false
	}
	return httpErr.StatusCode >= 400 && httpErr.StatusCode < 500 && !isRetryableHTTPStatus(httpErr.StatusCode)
}

// RetryPolicy defines different retry strategies
type RetryPolicy struct {
	Name   string
	Config RetryConfig
}

// Common retry policies
var (
	// FastRetryPolicy for quick-retry scenarios
	FastRetryPolicy = RetryPolicy{
		Name: "fast",
		Config: RetryConfig{
			MaxAttempts:   3,
			InitialDelay:  50 * time.Millisecond,
			MaxDelay:      1 * time.Second,
			BackoffFactor: 2.0,
			JitterEnabled: true,
		},
	}

	// StandardRetryPolicy for general use cases
	StandardRetryPolicy = RetryPolicy{
		Name: "standard",
		Config: RetryConfig{
			MaxAttempts:   3,
			InitialDelay:  100 * time.Millisecond,
			MaxDelay:      10 * time.Second,
			BackoffFactor: 2.0,
			JitterEnabled: true,
		},
	}

	// SlowRetryPolicy for external APIs that need longer delays
	SlowRetryPolicy = RetryPolicy{
		Name: "slow",
		Config: RetryConfig{
			MaxAttempts:   5,
			InitialDelay:  1 * time.Second,
			MaxDelay:      30 * time.Second,
			BackoffFactor: 1.5,
			JitterEnabled: true,
		},
	}
)

// RetryManager manages retry policies for different services
type RetryManager struct {
	mu       sync.RWMutex
	policies map[string]RetryPolicy
}

// NewRetryManager creates a new retry manager
func NewRetryManager() *RetryManager {
	return &RetryManager{
		policies: make(map[string]RetryPolicy),
	}
}

// RegisterPolicy registers a retry policy for a service
func (rm *RetryManager) RegisterPolicy(serviceName string, policy RetryPolicy) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.policies[serviceName] = policy
}

// GetPolicy returns the retry policy for a service, or standard policy if not found
func (rm *RetryManager) GetPolicy(serviceName string) RetryPolicy {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	if policy, exists := rm.policies[serviceName]; exists {
		return policy
	}
	return StandardRetryPolicy
}

// Execute executes a function with retry using the appropriate policy for the service
func (rm *RetryManager) Execute(ctx context.Context, serviceName string, fn RetryableFunc) error {
	return RetryWithConfig(ctx, rm.GetPolicy(serviceName).Config, fn)
}
