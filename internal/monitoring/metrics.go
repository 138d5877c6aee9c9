package monitoring

import (
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

const maxResponseSamples = 1000

// Metrics holds application metrics
type Metrics struct {
	RequestCount   int64
	ErrorCount     int64
	CacheHits      int64
	CacheMisses    int64
	ProductLookups int64
	ProductsScored int64
	SeedHits       int64
	NotFound       int64
	ScansRecorded  int64
	StartTime      time.Time

	responseTimes      []time.Duration
	responseTimesMutex sync.RWMutex

	requestCountByStatus map[int]int64
	statusMutex          sync.RWMutex

	CircuitBreakerOpens  int64
	CircuitBreakerCloses int64

	externalAPIRequests   map[string]int64
	externalAPIErrorCount map[string]int64
	externalAPIMutex      sync.RWMutex

	RateLimitIPBlocks       int64
	RateLimitRedisErrors    int64
	RateLimitFallbackCount  int64
	rateLimitEndpointBlocks map[string]int64
	rateLimitMutex          sync.RWMutex
}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		StartTime:               time.Now(),
		responseTimes:           make([]time.Duration, 0, maxResponseSamples),
		requestCountByStatus:    make(map[int]int64),
		externalAPIRequests:     make(map[string]int64),
		externalAPIErrorCount:   make(map[string]int64),
		rateLimitEndpointBlocks: make(map[string]int64),
	}
}

// IncrementRequest increments the request count
func (m *Metrics) IncrementRequest() {
	atomic.AddInt64(&m.RequestCount, 1)
}

// IncrementError increments the error count
func (m *Metrics) IncrementError() {
	atomic.AddInt64(&m.ErrorCount, 1)
}

// IncrementCacheHit increments cache hit count
func (m *Metrics) IncrementCacheHit() {
	atomic.AddInt64(&m.CacheHits, 1)
}

// IncrementCacheMiss increments cache miss count
func (m *Metrics) IncrementCacheMiss() {
	atomic.AddInt64(&m.CacheMisses, 1)
}

// IncrementProductLookup counts a barcode lookup.
func (m *Metrics) IncrementProductLookup() {
	atomic.AddInt64(&m.ProductLookups, 1)
}

// IncrementProductScored counts a product run through the scoring pipeline.
func (m *Metrics) IncrementProductScored() {
	atomic.AddInt64(&m.ProductsScored, 1)
}

// IncrementSeedHit counts a lookup answered from the offline seed products.
func (m *Metrics) IncrementSeedHit() {
	atomic.AddInt64(&m.SeedHits, 1)
}

// IncrementNotFound counts a barcode no source knew.
func (m *Metrics) IncrementNotFound() {
	atomic.AddInt64(&m.NotFound, 1)
}

// IncrementScanRecorded counts a saved scan history entry.
func (m *Metrics) IncrementScanRecorded() {
	atomic.AddInt64(&m.ScansRecorded, 1)
}

// RecordResponseTime records a response time sample, keeping the most
// recent samples for percentiles.
func (m *Metrics) RecordResponseTime(duration time.Duration) {
	m.responseTimesMutex.Lock()
	defer m.responseTimesMutex.Unlock()

	if len(m.responseTimes) >= maxResponseSamples {
		copy(m.responseTimes, m.responseTimes[1:])
		m.responseTimes = m.responseTimes[:len(m.responseTimes)-1]
	}
	m.responseTimes = append(m.responseTimes, duration)
}

// RecordRequestByStatus records request count by HTTP status code
func (m *Metrics) RecordRequestByStatus(statusCode int) {
	m.statusMutex.Lock()
	defer m.statusMutex.Unlock()
	m.requestCountByStatus[statusCode]++
}

// RecordCircuitBreakerTransition counts breaker opens and closes.
func (m *Metrics) RecordCircuitBreakerTransition(to string) {
	switch to {
	case "open":
		atomic.AddInt64(&m.CircuitBreakerOpens, 1)
	case "closed":
		atomic.AddInt64(&m.CircuitBreakerCloses, 1)
	}
}

// RecordExternalAPIRequest records an external API request
func (m *Metrics) RecordExternalAPIRequest(apiName string, success bool) {
	m.externalAPIMutex.Lock()
	defer m.externalAPIMutex.Unlock()

	m.externalAPIRequests[apiName]++
	if !success {
		m.externalAPIErrorCount[apiName]++
	}
}

// IncrementRateLimitIPBlock increments IP-based rate limit blocks
func (m *Metrics) IncrementRateLimitIPBlock() {
	atomic.AddInt64(&m.RateLimitIPBlocks, 1)
}

// IncrementRateLimitRedisError increments Redis error count for rate limiting
func (m *Metrics) IncrementRateLimitRedisError() {
	atomic.AddInt64(&m.RateLimitRedisErrors, 1)
}

// IncrementRateLimitFallback increments fallback rate limiter usage count
func (m *Metrics) IncrementRateLimitFallback() {
	atomic.AddInt64(&m.RateLimitFallbackCount, 1)
}

// IncrementRateLimitEndpoint increments rate limit blocks for a specific endpoint
func (m *Metrics) IncrementRateLimitEndpoint(endpoint string) {
	m.rateLimitMutex.Lock()
	defer m.rateLimitMutex.Unlock()
	m.rateLimitEndpointBlocks[endpoint]++
}

// GetPercentileResponseTime calculates percentile response time
func (m *Metrics) GetPercentileResponseTime(percentile float64) time.Duration {
	m.responseTimesMutex.RLock()
	times := make([]time.Duration, len(m.responseTimes))
	copy(times, m.responseTimes)
	m.responseTimesMutex.RUnlock()

	if len(times) == 0 {
		return 0
	}

	sort.Slice(times, func(i, j int) bool {
		return times[i] < times[j]
	})

	index := int(float64(len(times)-1) * percentile / 100.0)
	if index >= len(times) {
		index = len(times) - 1
	}

	return times[index]
}

// GetStatusCodeDistribution returns request count by status code
func (m *Metrics) GetStatusCodeDistribution() map[int]int64 {
	m.statusMutex.RLock()
	defer m.statusMutex.RUnlock()

	distribution := make(map[int]int64, len(m.requestCountByStatus))
	for code, count := range m.requestCountByStatus {
		distribution[code] = count
	}
	return distribution
}

// GetExternalAPIStats returns external API statistics
func (m *Metrics) GetExternalAPIStats() map[string]interface{} {
	m.externalAPIMutex.RLock()
	defer m.externalAPIMutex.RUnlock()

	stats := make(map[string]interface{}, len(m.externalAPIRequests))
	for api, requests := range m.externalAPIRequests {
		errors := m.externalAPIErrorCount[api]
		errorRate := float64(0)
		if requests > 0 {
			errorRate = float64(errors) / float64(requests) * 100
		}

		stats[api] = map[string]interface{}{
			"requests":   requests,
			"errors":     errors,
			"error_rate": errorRate,
		}
	}
	return stats
}

// GetRateLimitStats returns rate limiting statistics
func (m *Metrics) GetRateLimitStats() map[string]interface{} {
	m.rateLimitMutex.RLock()
	endpointBlocks := make(map[string]int64, len(m.rateLimitEndpointBlocks))
	for k, v := range m.rateLimitEndpointBlocks {
		endpointBlocks[k] = v
	}
	m.rateLimitMutex.RUnlock()

	return map[string]interface{}{
		"ip_blocks":       atomic.LoadInt64(&m.RateLimitIPBlocks),
		"redis_errors":    atomic.LoadInt64(&m.RateLimitRedisErrors),
		"fallback_count":  atomic.LoadInt64(&m.RateLimitFallbackCount),
		"endpoint_blocks": endpointBlocks,
	}
}

// GetStats returns current metrics statistics
func (m *Metrics) GetStats() map[string]interface{} {
	requests := atomic.LoadInt64(&m.RequestCount)
	errors := atomic.LoadInt64(&m.ErrorCount)
	cacheHits := atomic.LoadInt64(&m.CacheHits)
	cacheMisses := atomic.LoadInt64(&m.CacheMisses)

	errorRate := float64(0)
	if requests > 0 {
		errorRate = float64(errors) / float64(requests) * 100
	}

	cacheHitRate := float64(0)
	if total := cacheHits + cacheMisses; total > 0 {
		cacheHitRate = float64(cacheHits) / float64(total) * 100
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return map[string]interface{}{
		"uptime_seconds":         time.Since(m.StartTime).Seconds(),
		"start_time":             m.StartTime.Format(time.RFC3339),
		"total_requests":         requests,
		"error_count":            errors,
		"error_rate_percent":     errorRate,
		"cache_hits":             cacheHits,
		"cache_misses":           cacheMisses,
		"cache_hit_rate_percent": cacheHitRate,
		"product_lookups":        atomic.LoadInt64(&m.ProductLookups),
		"products_scored":        atomic.LoadInt64(&m.ProductsScored),
		"seed_hits":              atomic.LoadInt64(&m.SeedHits),
		"not_found":              atomic.LoadInt64(&m.NotFound),
		"scans_recorded":         atomic.LoadInt64(&m.ScansRecorded),

		"p50_response_time_ms":     float64(m.GetPercentileResponseTime(50)) / 1e6,
		"p95_response_time_ms":     float64(m.GetPercentileResponseTime(95)) / 1e6,
		"p99_response_time_ms":     float64(m.GetPercentileResponseTime(99)) / 1e6,
		"status_code_distribution": m.GetStatusCodeDistribution(),
		"external_api_stats":       m.GetExternalAPIStats(),
		"rate_limit":               m.GetRateLimitStats(),

		"circuit_breaker_opens":  atomic.LoadInt64(&m.CircuitBreakerOpens),
		"circuit_breaker_closes": atomic.LoadInt64(&m.CircuitBreakerCloses),

		"go_goroutines":        runtime.NumGoroutine(),
		"go_gc_count":          mem.NumGC,
		"go_gc_pause_total_ns": mem.PauseTotalNs,
		"go_heap_alloc_bytes":  mem.HeapAlloc,
		"go_heap_sys_bytes":    mem.HeapSys,
	}
}

// Reset resets all metrics (useful for testing)
func (m *Metrics) Reset() {
	for _, counter := range []*int64{
		&m.RequestCount, &m.ErrorCount, &m.CacheHits, &m.CacheMisses,
		&m.ProductLookups, &m.ProductsScored, &m.SeedHits, &m.NotFound, &m.ScansRecorded,
		&m.CircuitBreakerOpens, &m.CircuitBreakerCloses,
		&m.RateLimitIPBlocks, &m.RateLimitRedisErrors, &m.RateLimitFallbackCount,
	} {
		atomic.StoreInt64(counter, 0)
	}

	m.responseTimesMutex.Lock()
	m.responseTimes = m.responseTimes[:0]
	m.responseTimesMutex.Unlock()

	m.statusMutex.Lock()
	m.requestCountByStatus = make(map[int]int64)
	m.statusMutex.Unlock()

	m.externalAPIMutex.Lock()
	m.externalAPIRequests = make(map[string]int64)
	m.externalAPIErrorCount = make(map[string]int64)
	m.externalAPIMutex.Unlock()

	m.rateLimitMutex.Lock()
	m.rateLimitEndpointBlocks = make(map[string]int64)
	m.rateLimitMutex.Unlock()
}
