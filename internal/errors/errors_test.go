package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errSentinel = errors.New("sentinel")

func TestConstructors(t *testing.T) {
	tests := []struct {
		name             string
		err              *AppError
		expectedCategory ErrorCategory
		expectedStatus   int
		expectedMessage  string
	}{
		{"validation", NewValidationError("bad barcode", "abc"), CategoryValidation, http.StatusBadRequest, "[VALIDATION_ERROR] bad barcode"},
		{"not found", NewNotFoundError("product", "123", errSentinel), CategoryNotFound, http.StatusNotFound, "[NOT_FOUND] product not found"},
		{"network", NewNetworkError("dial failed", nil), CategoryNetwork, http.StatusBadGateway, "[NETWORK_ERROR] dial failed"},
		{"timeout", NewTimeoutError("slow", nil), CategoryTimeout, http.StatusGatewayTimeout, "[TIMEOUT_ERROR] slow"},
		{"rate limit", NewRateLimitError("60"), CategoryRateLimit, http.StatusTooManyRequests, "[RATE_LIMIT_EXCEEDED] Rate limit exceeded"},
		{"external api", NewExternalAPIError("OpenFoodFacts", nil), CategoryExternalAPI, http.StatusBadGateway, "[EXTERNAL_API_ERROR] OpenFoodFacts API error"},
		{"database", NewDatabaseError("save scan", nil), CategoryDatabase, http.StatusInternalServerError, "[DATABASE_ERROR] Database error"},
		{"configuration", NewConfigurationError("bad region", nil), CategoryConfiguration, http.StatusInternalServerError, "[CONFIGURATION_ERROR] Configuration error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expectedCategory, tt.err.Category)
			assert.Equal(t, tt.expectedStatus, tt.err.HTTPStatus)
			assert.Equal(t, tt.expectedMessage, tt.err.Error())
		})
	}
}

func TestNotFoundWrapsCause(t *testing.T) {
	err := fmt.Errorf("lookup: %w", NewNotFoundError("product", "123", errSentinel))

	assert.True(t, errors.Is(err, errSentinel))
	assert.True(t, IsNotFound(err))
	assert.False(t, IsNotFound(NewNetworkError("x", nil)))
}

func TestToAppError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorCategory
	}{
		{"deadline", context.DeadlineExceeded, CategoryTimeout},
		{"cancelled", context.Canceled, CategoryTimeout},
		{"connection refused", errors.New("dial tcp: connection refused"), CategoryNetwork},
		{"open breaker", errors.New("circuit breaker is open"), CategoryNetwork},
		{"wrapped app error", fmt.Errorf("wrap: %w", NewValidationError("bad")), CategoryValidation},
		{"anything else", errors.New("boom"), CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ToAppError(tt.err).Category)
		})
	}

	assert.Nil(t, ToAppError(nil))
}

func TestIsRetryableError(t *testing.T) {
	assert.True(t, IsRetryableError(NewNetworkError("x", nil)))
	assert.True(t, IsRetryableError(NewExternalAPIError("OpenFoodFacts", nil)))
	assert.True(t, IsRetryableError(context.DeadlineExceeded))
	assert.False(t, IsRetryableError(context.Canceled))
	assert.False(t, IsRetryableError(NewNotFoundError("product", "1", nil)))
	assert.False(t, IsRetryableError(NewValidationError("x")))
	assert.False(t, IsRetryableError(nil))
}

func TestErrorHandlerRendersResponse(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorHandler())
	r.GET("/missing", func(c *gin.Context) {
		_ = c.Error(NewNotFoundError("product", "0000", nil))
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"NOT_FOUND"`)
	assert.Contains(t, w.Body.String(), `"product":"0000"`)
}

func TestRecoveryHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RecoveryHandler())
	r.GET("/panic", func(c *gin.Context) {
		panic("invariant broken")
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	require.NotPanics(t, func() { r.ServeHTTP(w, req) })

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "INTERNAL_ERROR")
}

func TestSafeExecute(t *testing.T) {
	var recovered interface{}
	SafeExecute(func() { panic("boom") }, func(r interface{}) { recovered = r })
	assert.Equal(t, "boom", recovered)
}
