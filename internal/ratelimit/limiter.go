package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"golang.org/x/time/rate"

	"github.com/ZanzyTHEbar/ecoscan/internal/cache"
	"github.com/ZanzyTHEbar/ecoscan/internal/monitoring"
)

const keyPrefix = "ratelimit:"

// Config holds rate limiter configuration
type Config struct {
	IPLimitPerMin   int           // requests per minute per client IP
	BurstMultiplier int           // in-memory burst = limit * multiplier
	CleanupInterval time.Duration // how often idle in-memory limiters are dropped
}

// DefaultConfig returns default rate limiting configuration
func DefaultConfig() Config {
	return Config{
		IPLimitPerMin:   60,
		BurstMultiplier: 1,
		CleanupInterval: 10 * time.Minute,
	}
}

// Rate is a number of requests allowed per period.
type Rate struct {
	Limit  int
	Period time.Duration
}

// PerMinute returns a Rate of n requests per minute.
func PerMinute(n int) Rate {
	return Rate{Limit: n, Period: time.Minute}
}

// Result represents the result of a rate limit check
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

type fallbackEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
	period   time.Duration
}

// RateLimiter provides distributed rate limiting with Redis and in-memory fallback
type RateLimiter struct {
	redisLimiter *redis_rate.Limiter
	redisClient  *cache.RedisClient
	config       Config
	metrics      *monitoring.Metrics
	now          func() time.Time

	fallbackLimiters map[string]*fallbackEntry
	fallbackMutex    sync.Mutex

	stop     chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter creates a new rate limiter. A nil or disabled Redis client
// selects the in-memory limiter.
func NewRateLimiter(redisClient *cache.RedisClient, config Config, metrics *monitoring.Metrics) *RateLimiter {
	defaults := DefaultConfig()
	if config.IPLimitPerMin <= 0 {
		config.IPLimitPerMin = defaults.IPLimitPerMin
	}
	if config.BurstMultiplier <= 0 {
		config.BurstMultiplier = defaults.BurstMultiplier
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = defaults.CleanupInterval
	}

	rl := &RateLimiter{
		redisClient:      redisClient,
		config:           config,
		metrics:          metrics,
		now:              time.Now,
		fallbackLimiters: make(map[string]*fallbackEntry),
		stop:             make(chan struct{}),
	}

	if redisClient.IsEnabled() {
		rl.redisLimiter = redis_rate.NewLimiter(redisClient.GetClient())
		slog.Info("Redis rate limiter initialized")
	} else {
		slog.Warn("Redis unavailable, using in-memory rate limiting only")
	}

	go rl.cleanupFallbackLimiters()

	return rl
}

func ipKey(ip string) string {
	return keyPrefix + "ip:" + ip
}

func endpointKey(endpoint, ip string) string {
	return keyPrefix + "endpoint:" + endpoint + ":" + ip
}

// AllowIP checks if an IP address may make another request this minute.
func (rl *RateLimiter) AllowIP(ctx context.Context, ip string) (*Result, error) {
	return rl.Allow(ctx, ipKey(ip), PerMinute(rl.config.IPLimitPerMin))
}

// Allow checks key against limit, using Redis when available.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit Rate) (*Result, error) {
	if limit.Limit <= 0 || limit.Period <= 0 {
		return nil, fmt.Errorf("invalid rate %d per %s", limit.Limit, limit.Period)
	}

	if rl.redisLimiter != nil && rl.redisClient.IsEnabled() {
		result, err := rl.allowRedis(ctx, key, limit)
		if err == nil {
			return result, nil
		}
		slog.Warn("Redis rate limit check failed, using fallback", "key", key, "error", err)
		if rl.metrics != nil {
			rl.metrics.IncrementRateLimitRedisError()
		}
	}

	if rl.metrics != nil {
		rl.metrics.IncrementRateLimitFallback()
	}
	return rl.allowFallback(key, limit), nil
}

// allowRedis uses the GCRA limiter shared by every instance.
func (rl *RateLimiter) allowRedis(ctx context.Context, key string, limit Rate) (*Result, error) {
	res, err := rl.redisLimiter.Allow(ctx, key, redis_rate.Limit{
		Rate:   limit.Limit,
		Burst:  limit.Limit,
		Period: limit.Period,
	})
	if err != nil {
		return nil, fmt.Errorf("redis rate limit check failed: %w", err)
	}

	return &Result{
		Allowed:    res.Allowed > 0,
		Limit:      res.Limit.Rate,
		Remaining:  res.Remaining,
		ResetAt:    rl.now().Add(res.ResetAfter),
		RetryAfter: max(res.RetryAfter, 0),
	}, nil
}

// allowFallback uses a per-key token bucket.
func (rl *RateLimiter) allowFallback(key string, limit Rate) *Result {
	now := rl.now()
	burst := limit.Limit * rl.config.BurstMultiplier

	rl.fallbackMutex.Lock()
	entry, exists := rl.fallbackLimiters[key]
	if !exists {
		every := limit.Period / time.Duration(limit.Limit)
		entry = &fallbackEntry{
			limiter: rate.NewLimiter(rate.Every(every), burst),
			period:  limit.Period,
		}
		rl.fallbackLimiters[key] = entry
	}
	entry.lastSeen = now
	rl.fallbackMutex.Unlock()

	result := &Result{Limit: limit.Limit}
	if entry.limiter.AllowN(now, 1) {
		result.Allowed = true
	} else {
		reservation := entry.limiter.ReserveN(now, 1)
		if reservation.OK() {
			result.RetryAfter = reservation.DelayFrom(now)
			reservation.CancelAt(now)
		} else {
			result.RetryAfter = limit.Period
		}
	}

	tokens := entry.limiter.TokensAt(now)
	result.Remaining = max(int(tokens), 0)

	missing := float64(burst) - tokens
	refill := time.Duration(missing * float64(limit.Period) / float64(limit.Limit))
	result.ResetAt = now.Add(refill)

	return result
}

// cleanupFallbackLimiters drops in-memory limiters idle for longer than
// their period; such a bucket is full again and indistinguishable from new.
func (rl *RateLimiter) cleanupFallbackLimiters() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			if removed := rl.sweep(); removed > 0 {
				slog.Debug("Cleaned up idle fallback rate limiters", "count", removed)
			}
		}
	}
}

func (rl *RateLimiter) sweep() int {
	now := rl.now()

	rl.fallbackMutex.Lock()
	defer rl.fallbackMutex.Unlock()

	removed := 0
	for key, entry := range rl.fallbackLimiters {
		if now.Sub(entry.lastSeen) > entry.period {
			delete(rl.fallbackLimiters, key)
			removed++
		}
	}
	return removed
}

// Close stops the cleanup goroutine. The Redis client is owned by the caller.
func (rl *RateLimiter) Close() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// GetStats returns rate limiter statistics
func (rl *RateLimiter) GetStats() map[string]interface{} {
	rl.fallbackMutex.Lock()
	fallbackCount := len(rl.fallbackLimiters)
	rl.fallbackMutex.Unlock()

	stats := map[string]interface{}{
		"redis_enabled":     rl.redisClient.IsEnabled(),
		"fallback_limiters": fallbackCount,
		"ip_limit_per_min":  rl.config.IPLimitPerMin,
	}

	if rl.redisClient.IsEnabled() {
		stats["redis_pool"] = rl.redisClient.GetPoolStats()
	}

	return stats
}
