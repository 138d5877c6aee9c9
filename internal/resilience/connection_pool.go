package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// PoolConfig sizes a ConnectionPool.
type PoolConfig struct {
	MaxIdle        int
	MaxActive      int
	IdleTimeout    time.Duration
	RequestTimeout time.Duration
}

// ConnectionPool hands out HTTP clients over a shared transport, bounds the
// number of requests in flight and routes every request through a circuit
// breaker.
type ConnectionPool struct {
	config         PoolConfig
	circuitBreaker *CircuitBreaker
	transport      *http.Transport

	mutex           sync.Mutex
	active          int
	idle            []*pooledConnection
	requests        int64
	failedRequests  int64
	rejectedByLimit int64
}

type pooledConnection struct {
	client   *http.Client
	lastUsed time.Time
}

// NewConnectionPool creates a new connection pool with circuit breaker
func NewConnectionPool(config PoolConfig, cb *CircuitBreaker) *ConnectionPool {
	if config.MaxIdle <= 0 {
		config.MaxIdle = 10
	}
	if config.MaxActive <= 0 {
		config.MaxActive = 50
	}
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = 90 * time.Second
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 30 * time.Second
	}
	if cb == nil {
		cb = NewCircuitBreaker(CircuitBreakerConfig{})
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          config.MaxIdle,
		MaxConnsPerHost:       config.MaxActive,
		MaxIdleConnsPerHost:   max(config.MaxIdle/2, 1),
		IdleConnTimeout:       config.IdleTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: config.RequestTimeout,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &ConnectionPool{
		config:         config,
		circuitBreaker: cb,
		transport:      transport,
	}
}

// getClient retrieves a pooled HTTP client
func (cp *ConnectionPool) getClient() (*http.Client, error) {
	cp.mutex.Lock()
	defer cp.mutex.Unlock()

	if cp.active >= cp.config.MaxActive {
		cp.rejectedByLimit++
		return nil, fmt.Errorf("connection pool exhausted: %d/%d active connections", cp.active, cp.config.MaxActive)
	}
	cp.active++

	cp.cleanupIdleConnections()
	if n := len(cp.idle); n > 0 {
		conn := cp.idle[n-1]
		cp.idle = cp.idle[:n-1]
		return conn.client, nil
	}

	return &http.Client{
		Transport: cp.transport,
		Timeout:   cp.config.RequestTimeout,
	}, nil
}

// returnClient releases a client taken with getClient.
func (cp *ConnectionPool) returnClient(client *http.Client) {
	cp.mutex.Lock()
	defer cp.mutex.Unlock()

	cp.active--
	if len(cp.idle) < cp.config.MaxIdle {
		cp.idle = append(cp.idle, &pooledConnection{client: client, lastUsed: time.Now()})
	}
}

// cleanupIdleConnections removes expired idle clients. Callers hold the lock.
func (cp *ConnectionPool) cleanupIdleConnections() {
	now := time.Now()
	valid := cp.idle[:0]
	for _, conn := range cp.idle {
		if now.Sub(conn.lastUsed) <= cp.config.IdleTimeout {
			valid = append(valid, conn)
		}
	}
	cp.idle = valid
}

// GetStats returns connection pool statistics
func (cp *ConnectionPool) GetStats() map[string]interface{} {
	cp.mutex.Lock()
	defer cp.mutex.Unlock()

	return map[string]interface{}{
		"active_connections":    cp.active,
		"idle_connections":      len(cp.idle),
		"max_idle":              cp.config.MaxIdle,
		"max_active":            cp.config.MaxActive,
		"idle_timeout_ms":       cp.config.IdleTimeout.Milliseconds(),
		"request_timeout_ms":    cp.config.RequestTimeout.Milliseconds(),
		"total_requests":        cp.requests,
		"failed_requests":       cp.failedRequests,
		"rejected_by_limit":     cp.rejectedByLimit,
		"circuit_breaker_state": cp.circuitBreaker.State(),
	}
}

// CircuitBreaker returns the breaker guarding this pool.
func (cp *ConnectionPool) CircuitBreaker() *CircuitBreaker {
	return cp.circuitBreaker
}

// DoRequest executes an HTTP request with circuit breaker and connection
// pooling. 5xx responses are closed and returned as *HTTPError so that
// they count against the breaker; other responses are returned to the
// caller, who owns the body.
func (cp *ConnectionPool) DoRequest(ctx context.Context, method, url string, headers map[string]string) (*http.Response, error) {
	var resp *http.Response

	err := cp.circuitBreaker.Call(func() error {
		client, err := cp.getClient()
		if err != nil {
			return err
		}
		defer cp.returnClient(client)

		req, err := http.NewRequestWithContext(ctx, method, url, nil)
		if err != nil {
			return err
		}
		for key, value := range headers {
			req.Header.Set(key, value)
		}

		start := time.Now()
		r, err := client.Do(req)
		duration := time.Since(start)

		cp.mutex.Lock()
		cp.requests++
		if err != nil || r.StatusCode >= http.StatusInternalServerError {
			cp.failedRequests++
		}
		cp.mutex.Unlock()

		if err != nil {
			slog.Warn("Request failed", "url", url, "error", err, "duration_ms", duration.Milliseconds())
			return err
		}

		slog.Debug("Request completed", "url", url, "status", r.StatusCode, "duration_ms", duration.Milliseconds())

		if r.StatusCode >= http.StatusInternalServerError {
			r.Body.Close()
			return NewHTTPError(r.StatusCode, r.Status, url)
		}

		resp = r
		return nil
	})

	if err != nil {
		return nil, err
	}

	return resp, nil
}

// Close releases idle connections held by the transport.
func (cp *ConnectionPool) Close() error {
	cp.mutex.Lock()
	defer cp.mutex.Unlock()

	cp.transport.CloseIdleConnections()
	cp.idle = nil

	slog.Info("Connection pool closed")
	return nil
}
