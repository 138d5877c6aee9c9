package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// InvalidateIP removes every limit recorded for ip.
func (rl *RateLimiter) InvalidateIP(ctx context.Context, ip string) (int, error) {
	if !rl.redisClient.IsEnabled() {
		removed := rl.deleteFallback(func(key string) bool {
			return key == ipKey(ip) || (strings.HasPrefix(key, keyPrefix+"endpoint:") && strings.HasSuffix(key, ":"+ip))
		})
		slog.Info("Invalidated IP rate limits (in-memory)", "ip", ip, "count", removed)
		return removed, nil
	}

	removed, err := rl.deleteByPattern(ctx, ipKey(ip))
	if err != nil {
		return removed, err
	}
	n, err := rl.deleteByPattern(ctx, keyPrefix+"endpoint:*:"+ip)
	return removed + n, err
}

// InvalidateAll removes all rate limit keys.
func (rl *RateLimiter) InvalidateAll(ctx context.Context) (int, error) {
	if !rl.redisClient.IsEnabled() {
		removed := rl.deleteFallback(func(string) bool { return true })
		slog.Warn("Invalidated all rate limits (in-memory)", "count", removed)
		return removed, nil
	}

	slog.Warn("Invalidating all rate limits")
	return rl.deleteByPattern(ctx, keyPrefix+"*")
}

// GetKeyCount returns the number of tracked rate limit keys.
func (rl *RateLimiter) GetKeyCount(ctx context.Context) (int, error) {
	if !rl.redisClient.IsEnabled() {
		rl.fallbackMutex.Lock()
		defer rl.fallbackMutex.Unlock()
		return len(rl.fallbackLimiters), nil
	}

	client := rl.redisClient.GetClient()
	var cursor uint64
	count := 0
	for {
		keys, next, err := client.Scan(ctx, cursor, keyPrefix+"*", 100).Result()
		if err != nil {
			return 0, fmt.Errorf("failed to scan keys: %w", err)
		}
		count += len(keys)
		cursor = next
		if cursor == 0 {
			return count, nil
		}
	}
}

func (rl *RateLimiter) deleteFallback(match func(key string) bool) int {
	rl.fallbackMutex.Lock()
	defer rl.fallbackMutex.Unlock()

	removed := 0
	for key := range rl.fallbackLimiters {
		if match(key) {
			delete(rl.fallbackLimiters, key)
			removed++
		}
	}
	return removed
}

// deleteByPattern deletes all Redis keys matching a pattern
func (rl *RateLimiter) deleteByPattern(ctx context.Context, pattern string) (int, error) {
	client := rl.redisClient.GetClient()

	var cursor uint64
	deletedCount := 0

	for {
		keys, nextCursor, err := client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return deletedCount, fmt.Errorf("failed to scan keys: %w", err)
		}

		if len(keys) > 0 {
			deleted, err := client.Del(ctx, keys...).Result()
			if err != nil {
				return deletedCount, fmt.Errorf("failed to delete keys: %w", err)
			}
			deletedCount += int(deleted)
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	slog.Info("Deleted rate limit keys by pattern", "pattern", pattern, "count", deletedCount)
	return deletedCount, nil
}
