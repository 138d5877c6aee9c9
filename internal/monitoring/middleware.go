package monitoring

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// RequestIDHeader carries the request id in and out.
	RequestIDHeader = "X-Request-ID"
	// RequestIDKey is the gin context key holding the request id.
	RequestIDKey = "request_id"

	loggerKey = "logger"
)

// RequestIDMiddleware propagates the caller's X-Request-ID or assigns a new
// one, and stores a request-scoped logger on the context.
func RequestIDMiddleware(logger *Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(RequestIDHeader))
		if requestID == "" || len(requestID) > 128 {
			requestID = uuid.NewString()
		}

		c.Set(RequestIDKey, requestID)
		c.Set(loggerKey, logger.WithRequestID(requestID))
		c.Header(RequestIDHeader, requestID)

		c.Next()
	}
}

// GetLogger returns the request-scoped logger, or fallback when the request
// id middleware did not run.
func GetLogger(c *gin.Context, fallback *Logger) *Logger {
	if v, ok := c.Get(loggerKey); ok {
		if logger, ok := v.(*Logger); ok {
			return logger
		}
	}
	return fallback
}

// MonitoringMiddleware creates Gin middleware for request monitoring
func MonitoringMiddleware(metrics *Metrics, logger *Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		metrics.IncrementRequest()

		ip := c.ClientIP()
		userAgent := c.GetHeader("User-Agent")
		method := c.Request.Method
		path := c.Request.URL.Path

		c.Next()

		duration := time.Since(start)
		statusCode := c.Writer.Status()

		metrics.RecordResponseTime(duration)
		metrics.RecordRequestByStatus(statusCode)
		if statusCode >= 400 {
			metrics.IncrementError()
		}

		requestLogger := GetLogger(c, logger)
		requestLogger.LogRequest(method, path, ip, userAgent, statusCode, duration)

		for _, err := range c.Errors {
			requestLogger.Debug("Request error", "error", err.Err.Error(), "path", path)
		}

		if duration > 5*time.Second {
			requestLogger.LogSystemEvent("slow_request", fmt.Sprintf("%s %s took %s", method, path, duration))
		}
	}
}

// SecurityMonitoringMiddleware logs requests that look like scans or abuse.
// It never blocks.
func SecurityMonitoringMiddleware(logger *Logger, maxBodyBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		userAgent := c.GetHeader("User-Agent")
		details := make(map[string]interface{})

		switch {
		case containsSQLInjectionPatterns(c.Request.URL.RawQuery):
			details["type"] = "potential_sql_injection"
			details["query"] = c.Request.URL.RawQuery
		case maxBodyBytes > 0 && c.Request.ContentLength > maxBodyBytes:
			details["type"] = "large_request_body"
			details["size_bytes"] = c.Request.ContentLength
		case containsSuspiciousUserAgent(userAgent):
			details["type"] = "suspicious_user_agent"
		}

		if len(details) > 0 {
			details["path"] = c.Request.URL.Path
			GetLogger(c, logger).LogSecurityEvent("suspicious_activity_detected", c.ClientIP(), userAgent, details)
		}

		c.Next()
	}
}

var sqlInjectionPatterns = []string{
	"union select",
	"union all",
	"select * from",
	"drop table",
	"delete from",
	"';--",
	"/*",
	"*/",
	" xp_",
}

var suspiciousAgents = []string{
	"sqlmap",
	"nmap",
	"masscan",
	"zmap",
	"dirbuster",
	"gobuster",
	"nikto",
	"acunetix",
	"nessus",
}

// containsSQLInjectionPatterns checks for common SQL injection patterns
func containsSQLInjectionPatterns(rawQuery string) bool {
	if decoded, err := url.QueryUnescape(rawQuery); err == nil {
		rawQuery = decoded
	}
	return containsAnyFold(rawQuery, sqlInjectionPatterns)
}

// containsSuspiciousUserAgent checks for scanner user agents
func containsSuspiciousUserAgent(userAgent string) bool {
	return containsAnyFold(userAgent, suspiciousAgents)
}

func containsAnyFold(s string, patterns []string) bool {
	if s == "" {
		return false
	}
	lower := strings.ToLower(s)
	for _, pattern := range patterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}
