package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient wraps the Redis client with health checks and graceful
// degradation. A disabled client is valid and reports IsEnabled false.
type RedisClient struct {
	client  *redis.Client
	enabled bool
	addr    string
}

// NewRedisClient creates a new Redis client with connection pooling. An
// empty addr yields a disabled client and no error; an unreachable server
// yields a disabled client and the ping error.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*RedisClient, error) {
	if addr == "" {
		slog.Warn("Redis not configured, using in-memory cache and rate limiting")
		return &RedisClient{enabled: false}, nil
	}

	slog.Info("Initializing Redis client", "addr", addr, "db", db)

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
		PoolTimeout:  4 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		slog.Error("Redis ping failed, falling back to in-memory stores", "error", err)
		return &RedisClient{enabled: false, addr: addr}, fmt.Errorf("redis ping failed: %w", err)
	}

	slog.Info("Redis client connected successfully", "addr", addr)

	return &RedisClient{
		client:  client,
		enabled: true,
		addr:    addr,
	}, nil
}

// GetClient returns the underlying Redis client
func (r *RedisClient) GetClient() *redis.Client {
	return r.client
}

// IsEnabled returns whether Redis is enabled and healthy
func (r *RedisClient) IsEnabled() bool {
	return r != nil && r.enabled
}

// HealthCheck performs a health check on the Redis connection
func (r *RedisClient) HealthCheck(ctx context.Context) error {
	if !r.IsEnabled() {
		return fmt.Errorf("redis is disabled")
	}
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (r *RedisClient) Close() error {
	if r.IsEnabled() && r.client != nil {
		slog.Info("Closing Redis client connection")
		return r.client.Close()
	}
	return nil
}

// GetPoolStats returns Redis connection pool statistics
func (r *RedisClient) GetPoolStats() map[string]interface{} {
	if !r.IsEnabled() || r.client == nil {
		return map[string]interface{}{
			"enabled": false,
		}
	}

	stats := r.client.PoolStats()

	return map[string]interface{}{
		"enabled":     true,
		"addr":        r.addr,
		"hits":        stats.Hits,
		"misses":      stats.Misses,
		"timeouts":    stats.Timeouts,
		"total_conns": stats.TotalConns,
		"idle_conns":  stats.IdleConns,
		"stale_conns": stats.StaleConns,
	}
}

// ErrRedisDisabled is returned by RedisCache operations on a disabled client.
var ErrRedisDisabled = errors.New("redis is disabled")

// RedisCache is a Store shared between server instances.
type RedisCache struct {
	client     *RedisClient
	prefix     string
	defaultTTL time.Duration
}

// NewRedisCache creates a Store whose keys are namespaced by prefix.
func NewRedisCache(client *RedisClient, prefix string, ttl time.Duration) *RedisCache {
	return &RedisCache{
		client:     client,
		prefix:     prefix,
		defaultTTL: ttl,
	}
}

func (c *RedisCache) key(key string) string {
	return c.prefix + key
}

// Get retrieves an item. redis.Nil is a miss, not an error.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if !c.client.IsEnabled() {
		return nil, false, ErrRedisDisabled
	}

	data, err := c.client.GetClient().Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, true, nil
}

// Set stores an item. A non-positive ttl uses the default.
func (c *RedisCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if !c.client.IsEnabled() {
		return ErrRedisDisabled
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	if err := c.client.GetClient().Set(ctx, c.key(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Delete removes an item.
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if !c.client.IsEnabled() {
		return ErrRedisDisabled
	}
	if err := c.client.GetClient().Del(ctx, c.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// Stats returns the Redis pool statistics.
func (c *RedisCache) Stats() map[string]interface{} {
	stats := c.client.GetPoolStats()
	stats["backend"] = "redis"
	stats["ttl_seconds"] = c.defaultTTL.Seconds()
	return stats
}

// Close is a no-op: the RedisClient is shared and closed by its owner.
func (c *RedisCache) Close() error {
	return nil
}

var _ Store = (*RedisCache)(nil)

// NewStore returns a RedisCache when client is enabled, else an in-memory
// Cache.
func NewStore(client *RedisClient, prefix string, ttl time.Duration) Store {
	if client.IsEnabled() {
		return NewRedisCache(client, prefix, ttl)
	}
	return NewCache(ttl, 5*time.Minute)
}
