package ratelimit

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HandleRateLimitStatus reports the limit applied to the requesting IP.
func (rl *RateLimiter) HandleRateLimitStatus() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"ip": c.ClientIP(),
			"limits": gin.H{
				"ip_per_minute": gin.H{
					"limit":  rl.config.IPLimitPerMin,
					"period": "1 minute",
				},
			},
			"backend":   rl.backend(),
			"timestamp": time.Now().Format(time.RFC3339),
		})
	}
}

// HandleRateLimitStats returns limiter and metric counters.
func (rl *RateLimiter) HandleRateLimitStats() gin.HandlerFunc {
	return func(c *gin.Context) {
		keyCount, err := rl.GetKeyCount(c.Request.Context())
		if err != nil {
			_ = c.Error(err)
			return
		}

		response := gin.H{
			"total_keys":    keyCount,
			"limiter_stats": rl.GetStats(),
			"timestamp":     time.Now().Format(time.RFC3339),
		}
		if rl.metrics != nil {
			response["metrics"] = rl.metrics.GetRateLimitStats()
		}

		c.JSON(http.StatusOK, response)
	}
}

// HandleInvalidateIP clears the limits recorded for the :ip path parameter.
func (rl *RateLimiter) HandleInvalidateIP() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.Param("ip")

		removed, err := rl.InvalidateIP(c.Request.Context(), ip)
		if err != nil {
			_ = c.Error(err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message":   "IP rate limits invalidated",
			"ip":        ip,
			"removed":   removed,
			"timestamp": time.Now().Format(time.RFC3339),
		})
	}
}

func (rl *RateLimiter) backend() string {
	if rl.redisLimiter != nil && rl.redisClient.IsEnabled() {
		return "redis"
	}
	return "memory"
}
