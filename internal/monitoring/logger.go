package monitoring

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Logger provides structured logging with context
type Logger struct {
	*slog.Logger
}

// ParseLevel maps a configuration string to a slog level. Unknown values
// log at info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a JSON logger writing to stdout.
func NewLogger(level slog.Level) *Logger {
	return NewLoggerWithWriter(os.Stdout, level)
}

// NewLoggerWithWriter creates a JSON logger writing to w.
func NewLoggerWithWriter(w io.Writer, level slog.Level) *Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{
					Key:   "timestamp",
					Value: slog.StringValue(a.Value.Time().Format(time.RFC3339)),
				}
			}
			return a
		},
	})

	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithRequestID returns a logger that tags every record with the request id.
func (l *Logger) WithRequestID(requestID string) *Logger {
	return &Logger{Logger: l.With("request_id", requestID)}
}

// LogRequest logs HTTP request details
func (l *Logger) LogRequest(method, path, ip, userAgent string, statusCode int, duration time.Duration) {
	level := slog.LevelInfo
	if statusCode >= 500 {
		level = slog.LevelError
	} else if statusCode >= 400 {
		level = slog.LevelWarn
	}

	l.Log(context.Background(), level, "HTTP Request",
		"method", method,
		"path", path,
		"ip", ip,
		"user_agent", userAgent,
		"status_code", statusCode,
		"duration_ms", duration.Milliseconds(),
	)
}

// LogScore logs a completed product scoring.
func (l *Logger) LogScore(productID, region, source string, ecoScore int, duration time.Duration) {
	l.Info("Product Scored",
		"product_id", productID,
		"region", region,
		"source", source,
		"eco_score", ecoScore,
		"duration_ms", duration.Milliseconds(),
	)
}

// LogExternalAPI logs external API calls
func (l *Logger) LogExternalAPI(apiName, operation string, duration time.Duration, err error) {
	if err != nil {
		l.Warn("External API Call",
			"api_name", apiName,
			"operation", operation,
			"duration_ms", duration.Milliseconds(),
			"success", false,
			"error", err.Error(),
		)
		return
	}

	l.Info("External API Call",
		"api_name", apiName,
		"operation", operation,
		"duration_ms", duration.Milliseconds(),
		"success", true,
	)
}

// LogCacheOperation logs cache operations
func (l *Logger) LogCacheOperation(operation, key string, hit bool) {
	l.Debug("Cache Operation",
		"operation", operation,
		"key", key,
		"hit", hit,
	)
}

// LogSecurityEvent logs security-related events
func (l *Logger) LogSecurityEvent(event, ip, userAgent string, details map[string]interface{}) {
	attrs := []any{
		"event", event,
		"ip", ip,
		"user_agent", userAgent,
	}
	for key, value := range details {
		attrs = append(attrs, key, value)
	}

	l.Warn("Security Event", attrs...)
}

// LogSystemEvent logs system-level events
func (l *Logger) LogSystemEvent(event, details string) {
	l.Info("System Event",
		"event", event,
		"details", details,
		"uptime", time.Since(startTime).String(),
	)
}

var startTime = time.Now()
