package ratelimit

import (
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/ZanzyTHEbar/ecoscan/internal/errors"
)

func retryAfterSeconds(d time.Duration) int {
	return int(math.Ceil(d.Seconds()))
}

// IPRateLimitMiddleware limits every request by client IP.
func (rl *RateLimiter) IPRateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()

		result, err := rl.AllowIP(c.Request.Context(), ip)
		if err != nil {
			// A broken limiter must not take the API down with it.
			slog.Error("Rate limit check failed", "ip", ip, "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

		if !result.Allowed {
			if rl.metrics != nil {
				rl.metrics.IncrementRateLimitIPBlock()
			}
			rl.reject(c, result)
			return
		}

		c.Next()
	}
}

// EndpointRateLimitMiddleware applies a separate per-IP budget to one
// route group, e.g. the routes that reach the upstream product database.
func (rl *RateLimiter) EndpointRateLimitMiddleware(endpoint string, limit int) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()

		result, err := rl.Allow(c.Request.Context(), endpointKey(endpoint, ip), PerMinute(limit))
		if err != nil {
			slog.Error("Endpoint rate limit check failed", "endpoint", endpoint, "ip", ip, "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Endpoint-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Endpoint-Remaining", strconv.Itoa(result.Remaining))

		if !result.Allowed {
			if rl.metrics != nil {
				rl.metrics.IncrementRateLimitEndpoint(endpoint)
			}
			rl.reject(c, result)
			return
		}

		c.Next()
	}
}

func (rl *RateLimiter) reject(c *gin.Context, result *Result) {
	seconds := strconv.Itoa(retryAfterSeconds(result.RetryAfter))
	c.Header("Retry-After", seconds)
	_ = c.Error(apperrors.NewRateLimitError(seconds))
	c.Abort()
}
