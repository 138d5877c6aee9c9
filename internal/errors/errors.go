package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/gin-gonic/gin"
)

// ErrorCategory defines the type of error for proper handling
type ErrorCategory string

const (
	CategoryValidation    ErrorCategory = "validation"
	CategoryNotFound      ErrorCategory = "not_found"
	CategoryNetwork       ErrorCategory = "network"
	CategoryTimeout       ErrorCategory = "timeout"
	CategoryRateLimit     ErrorCategory = "rate_limit"
	CategoryInternal      ErrorCategory = "internal"
	CategoryExternalAPI   ErrorCategory = "external_api"
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryDatabase      ErrorCategory = "database"
)

var categoryCodes = map[ErrorCategory]string{
	CategoryValidation:    "VALIDATION_ERROR",
	CategoryNotFound:      "NOT_FOUND",
	CategoryNetwork:       "NETWORK_ERROR",
	CategoryTimeout:       "TIMEOUT_ERROR",
	CategoryRateLimit:     "RATE_LIMIT_EXCEEDED",
	CategoryInternal:      "INTERNAL_ERROR",
	CategoryExternalAPI:   "EXTERNAL_API_ERROR",
	CategoryConfiguration: "CONFIGURATION_ERROR",
	CategoryDatabase:      "DATABASE_ERROR",
}

// AppError wraps an errbuilder error with the category and HTTP status used
// to report it.
type AppError struct {
	*errbuilder.ErrBuilder
	Category   ErrorCategory     `json:"category"`
	HTTPStatus int               `json:"http_status"`
	Timestamp  time.Time         `json:"timestamp"`
	RequestID  string            `json:"request_id,omitempty"`
	StackTrace string            `json:"stack_trace,omitempty"`
	Fields     map[string]string `json:"fields,omitempty"`
}

// Code returns the display code of the error category.
func (e *AppError) Code() string {
	if code, ok := categoryCodes[e.Category]; ok {
		return code
	}
	return "UNKNOWN_ERROR"
}

func (e *AppError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code(), e.ErrBuilder.Msg)
}

// Unwrap returns the underlying cause
func (e *AppError) Unwrap() error {
	return e.ErrBuilder.Unwrap()
}

// Response is the JSON body sent to clients.
func (e *AppError) Response() gin.H {
	body := gin.H{
		"code":      e.Code(),
		"category":  e.Category,
		"message":   e.ErrBuilder.Msg,
		"timestamp": e.Timestamp.Format(time.RFC3339),
	}
	if e.RequestID != "" {
		body["request_id"] = e.RequestID
	}
	if len(e.Fields) > 0 {
		body["details"] = e.Fields
	}
	return gin.H{"error": body}
}

// NewAppError creates an AppError from errbuilder with additional context
func NewAppError(builder *errbuilder.ErrBuilder, category ErrorCategory, httpStatus int) *AppError {
	return &AppError{
		ErrBuilder: builder,
		Category:   category,
		HTTPStatus: httpStatus,
		Timestamp:  time.Now(),
	}
}

func withDetail(builder *errbuilder.ErrBuilder, key, value string) *errbuilder.ErrBuilder {
	errorMap := errbuilder.ErrorMap{}
	errorMap.Set(key, errors.New(value))
	return builder.WithDetails(errbuilder.NewErrDetails(errorMap))
}

// newDetailedError records a single detail both on the builder and on the
// AppError for rendering.
func newDetailedError(builder *errbuilder.ErrBuilder, category ErrorCategory, httpStatus int, key, value string) *AppError {
	appErr := NewAppError(withDetail(builder, key, value), category, httpStatus)
	appErr.Fields = map[string]string{key: value}
	return appErr
}

// NewValidationError creates a validation error using errbuilder
func NewValidationError(message string, details ...interface{}) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(message)

	if len(details) > 0 {
		return newDetailedError(builder, CategoryValidation, http.StatusBadRequest, "validation_details", fmt.Sprintf("%v", details[0]))
	}

	return NewAppError(builder, CategoryValidation, http.StatusBadRequest)
}

// NewNotFoundError reports a missing resource.
func NewNotFoundError(resource, id string, cause error) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeNotFound).
		WithMsg(fmt.Sprintf("%s not found", resource))

	if cause != nil {
		builder = builder.WithCause(cause)
	}

	return newDetailedError(builder, CategoryNotFound, http.StatusNotFound, resource, id)
}

// NewNetworkError creates a network error using errbuilder
func NewNetworkError(message string, cause error) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeUnavailable).
		WithMsg(message)

	if cause != nil {
		builder = builder.WithCause(cause)
	}

	return NewAppError(builder, CategoryNetwork, http.StatusBadGateway)
}

// NewTimeoutError creates a timeout error using errbuilder
func NewTimeoutError(message string, cause error) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeDeadlineExceeded).
		WithMsg(message)

	if cause != nil {
		builder = builder.WithCause(cause)
	}

	return NewAppError(builder, CategoryTimeout, http.StatusGatewayTimeout)
}

// NewRateLimitError creates a rate limit error using errbuilder
func NewRateLimitError(retryAfter string) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeResourceExhausted).
		WithMsg("Rate limit exceeded")

	return newDetailedError(builder, CategoryRateLimit, http.StatusTooManyRequests, "retry_after", retryAfter)
}

// NewExternalAPIError creates an external API error using errbuilder
func NewExternalAPIError(apiName string, cause error) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeUnavailable).
		WithMsg(fmt.Sprintf("%s API error", apiName))

	if cause != nil {
		builder = builder.WithCause(cause)
	}

	return newDetailedError(builder, CategoryExternalAPI, http.StatusBadGateway, "api_name", apiName)
}

// NewDatabaseError reports a failed storage operation.
func NewDatabaseError(operation string, cause error) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeInternal).
		WithMsg("Database error")

	if cause != nil {
		builder = builder.WithCause(cause)
	}

	return newDetailedError(builder, CategoryDatabase, http.StatusInternalServerError, "operation", operation)
}

// NewInternalError creates an internal server error using errbuilder
func NewInternalError(message string, cause error) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeInternal).
		WithMsg("Internal server error")

	if cause != nil {
		builder = builder.WithCause(cause)
	}

	appErr := NewAppError(withDetail(builder, "internal_details", message), CategoryInternal, http.StatusInternalServerError)

	// Capture stack trace in development/debug mode
	if gin.Mode() == gin.DebugMode || gin.Mode() == gin.TestMode {
		appErr.StackTrace = captureStackTrace()
	}

	return appErr
}

// NewConfigurationError creates a configuration error using errbuilder
func NewConfigurationError(message string, cause error) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeFailedPrecondition).
		WithMsg("Configuration error")

	if cause != nil {
		builder = builder.WithCause(cause)
	}

	return newDetailedError(builder, CategoryConfiguration, http.StatusInternalServerError, "config_details", message)
}

// captureStackTrace captures a stack trace for debugging
func captureStackTrace() string {
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}

// ErrorHandler is a Gin middleware that renders the last error attached to
// the context.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		appErr := ToAppError(c.Errors.Last().Err)
		if appErr.RequestID == "" {
			appErr.RequestID = c.GetString("request_id")
		}

		LogError(c, appErr)
		c.JSON(appErr.HTTPStatus, appErr.Response())
	}
}

// RecoveryHandler provides panic recovery with structured error responses
func RecoveryHandler() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		appErr := NewInternalError(
			fmt.Sprintf("Panic recovered: %v", recovered),
			fmt.Errorf("%v", recovered),
		)
		appErr.StackTrace = captureStackTrace()
		appErr.RequestID = c.GetString("request_id")

		LogError(c, appErr)
		c.AbortWithStatusJSON(appErr.HTTPStatus, appErr.Response())
	})
}

// ToAppError converts any error to an AppError
func ToAppError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var ebErr *errbuilder.ErrBuilder
	if errors.As(err, &ebErr) {
		return NewAppError(ebErr, CategoryInternal, http.StatusInternalServerError)
	}

	if errors.Is(err, context.Canceled) {
		return NewTimeoutError("Request cancelled", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewTimeoutError("Request deadline exceeded", err)
	}

	errMsg := err.Error()

	if strings.Contains(errMsg, "connection refused") ||
		strings.Contains(errMsg, "no such host") ||
		strings.Contains(errMsg, "network is unreachable") ||
		strings.Contains(errMsg, "circuit breaker is open") {
		return NewNetworkError("Network connection failed", err)
	}

	if strings.Contains(errMsg, "timeout") ||
		strings.Contains(errMsg, "deadline exceeded") {
		return NewTimeoutError("Request timeout", err)
	}

	return NewInternalError("An unexpected error occurred", err)
}

// LogError logs an error with appropriate level and context
func LogError(c *gin.Context, err *AppError) {
	logEntry := slog.With(
		"error_category", err.Category,
		"error_code", err.ErrBuilder.ErrCode(),
		"http_status", err.HTTPStatus,
		"ip", c.ClientIP(),
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"request_id", c.GetString("request_id"),
	)

	errorMsg := err.ErrBuilder.Msg
	cause := err.ErrBuilder.Unwrap()

	switch err.Category {
	case CategoryValidation, CategoryRateLimit, CategoryNotFound:
		if len(err.Fields) > 0 {
			logEntry.Warn(errorMsg, "details", err.Fields)
		} else {
			logEntry.Warn(errorMsg)
		}
	case CategoryNetwork, CategoryTimeout, CategoryExternalAPI:
		if cause != nil {
			logEntry.Info(errorMsg, "cause", cause)
		} else {
			logEntry.Info(errorMsg)
		}
	default:
		if cause != nil {
			logEntry.Error(errorMsg, "cause", cause)
		} else {
			logEntry.Error(errorMsg)
		}
	}

	if err.StackTrace != "" && (gin.Mode() == gin.DebugMode || gin.Mode() == gin.TestMode) {
		logEntry.Debug("stack_trace", "trace", err.StackTrace)
	}
}

// IsRetryableError checks if an error should trigger a retry
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	switch ToAppError(err).Category {
	case CategoryNetwork, CategoryTimeout, CategoryExternalAPI:
		return true
	default:
		return false
	}
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Category == CategoryNotFound
}

// SafeClose safely closes a resource and logs any errors
func SafeClose(closer interface{ Close() error }, resourceName string) {
	if closer == nil {
		return
	}

	if err := closer.Close(); err != nil {
		slog.Warn("Failed to close resource",
			"resource", resourceName,
			"error", err)
	}
}

// SafeExecute executes a function and recovers from panics
func SafeExecute(fn func(), panicHandler func(interface{})) {
	defer func() {
		if r := recover(); r != nil {
			if panicHandler != nil {
				panicHandler(r)
			} else {
				slog.Error("Panic in safe execution", "panic", r)
			}
		}
	}()

	fn()
}
