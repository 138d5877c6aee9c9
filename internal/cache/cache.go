package cache

import (
	"context"
	"sync"
	"time"
)

// Store is a byte-oriented cache with per-entry expiry.
type Store interface {
	// Get returns the cached bytes and whether the key was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Stats() map[string]interface{}
	Close() error
}

// CacheItem represents a cached item with expiration
type CacheItem struct {
	Data      []byte    `json:"data"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IsExpired checks if the cache item has expired at now.
func (c *CacheItem) IsExpired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// Cache provides thread-safe in-process caching with TTL
type Cache struct {
	mu         sync.RWMutex
	items      map[string]*CacheItem
	defaultTTL time.Duration
	now        func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// NewCache creates a new cache whose entries default to ttl. Expired
// entries are swept every sweepInterval until Close.
func NewCache(ttl, sweepInterval time.Duration) *Cache {
	c := &Cache{
		items:      make(map[string]*CacheItem),
		defaultTTL: ttl,
		now:        time.Now,
		stop:       make(chan struct{}),
	}

	if sweepInterval > 0 {
		go c.cleanup(sweepInterval)
	}

	return c
}

// cleanup removes expired items periodically
func (c *Cache) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.DeleteExpired()
		}
	}
}

// DeleteExpired removes every expired item.
func (c *Cache) DeleteExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, item := range c.items {
		if item.IsExpired(now) {
			delete(c.items, key)
		}
	}
}

// Get retrieves an item from the cache
func (c *Cache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	item, exists := c.items[key]
	c.mu.RUnlock()

	if !exists {
		return nil, false, nil
	}
	if item.IsExpired(c.now()) {
		c.mu.Lock()
		if current, ok := c.items[key]; ok && current == item {
			delete(c.items, key)
		}
		c.mu.Unlock()
		return nil, false, nil
	}

	return item.Data, true, nil
}

// Set stores an item in the cache. A non-positive ttl uses the default.
func (c *Cache) Set(_ context.Context, key string, data []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = &CacheItem{
		Data:      data,
		ExpiresAt: c.now().Add(ttl),
	}
	return nil
}

// Delete removes an item from the cache
func (c *Cache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.items, key)
	return nil
}

// Clear removes all items from the cache
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*CacheItem)
}

// Size returns the number of items in the cache
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.items)
}

// Stats returns cache statistics
func (c *Cache) Stats() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.now()
	totalItems := len(c.items)
	expiredItems := 0
	for _, item := range c.items {
		if item.IsExpired(now) {
			expiredItems++
		}
	}

	return map[string]interface{}{
		"backend":       "memory",
		"total_items":   totalItems,
		"expired_items": expiredItems,
		"active_items":  totalItems - expiredItems,
		"ttl_seconds":   c.defaultTTL.Seconds(),
	}
}

// Close stops the sweeper.
func (c *Cache) Close() error {
	c.stopOnce.Do(func() { close(c.stop) })
	return nil
}

var _ Store = (*Cache)(nil)
