package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DegradationLevel represents the current degradation state
type DegradationLevel int

const (
	LevelNormal DegradationLevel = iota
	LevelDegraded
	LevelCritical
	LevelEmergency
)

func (l DegradationLevel) String() string {
	switch l {
	case LevelNormal:
		return "normal"
	case LevelDegraded:
		return "degraded"
	case LevelCritical:
		return "critical"
	case LevelEmergency:
		return "emergency"
	default:
		return "unknown"
	}
}

// MarshalText renders the level by name in JSON.
func (l DegradationLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// DegradationConfig holds configuration for graceful degradation
type DegradationConfig struct {
	HealthCheckInterval time.Duration `json:"health_check_interval"`
	DegradedThreshold   float64       `json:"degraded_threshold"`  // Error rate threshold (0.0-1.0)
	CriticalThreshold   float64       `json:"critical_threshold"`  // Error rate threshold (0.0-1.0)
	EmergencyThreshold  float64       `json:"emergency_threshold"` // Error rate threshold (0.0-1.0)
	MinRequests         int64         `json:"min_requests"`        // Requests needed before leaving normal
	RecoveryTimeWindow  time.Duration `json:"recovery_time_window"`
	HealthCheckTimeout  time.Duration `json:"health_check_timeout"`
}

// DefaultDegradationConfig returns sensible defaults
func DefaultDegradationConfig() DegradationConfig {
	return DegradationConfig{
		HealthCheckInterval: 30 * time.Second,
		DegradedThreshold:   0.1,
		CriticalThreshold:   0.25,
		EmergencyThreshold:  0.5,
		MinRequests:         10,
		RecoveryTimeWindow:  5 * time.Minute,
		HealthCheckTimeout:  5 * time.Second,
	}
}

// ServiceHealth represents the health status of a service
type ServiceHealth struct {
	ServiceName   string           `json:"service_name"`
	Level         DegradationLevel `json:"level"`
	ErrorRate     float64          `json:"error_rate"`
	TotalRequests int64            `json:"total_requests"`
	ErrorCount    int64            `json:"error_count"`
	LastError     string           `json:"last_error,omitempty"`
	LastErrorTime time.Time        `json:"last_error_time,omitempty"`
	DegradedSince *time.Time       `json:"degraded_since,omitempty"`
	StatusMessage string           `json:"status_message"`

	windowStart time.Time
}

// HealthCheckFunc represents a function that checks service health
type HealthCheckFunc func(ctx context.Context) error

// DegradationManager tracks the error rate of the services the API depends
// on (upstream product database, Redis, SQLite).
type DegradationManager struct {
	config       DegradationConfig
	services     map[string]*ServiceHealth
	healthChecks map[string]HealthCheckFunc
	mutex        sync.RWMutex
}

// NewDegradationManager creates a new degradation manager
func NewDegradationManager(config DegradationConfig) *DegradationManager {
	return &DegradationManager{
		config:       config,
		services:     make(map[string]*ServiceHealth),
		healthChecks: make(map[string]HealthCheckFunc),
	}
}

// RegisterService registers a service with an optional health check.
func (dm *DegradationManager) RegisterService(serviceName string, healthCheck HealthCheckFunc) {
	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	dm.services[serviceName] = &ServiceHealth{
		ServiceName:   serviceName,
		Level:         LevelNormal,
		StatusMessage: "Service is healthy",
		windowStart:   time.Now(),
	}
	if healthCheck != nil {
		dm.healthChecks[serviceName] = healthCheck
	}

	slog.Info("Registered service for degradation management", "service", serviceName)
}

// RecordRequest records the outcome of one call to a service.
func (dm *DegradationManager) RecordRequest(serviceName string, err error) {
	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	service, exists := dm.services[serviceName]
	if !exists {
		return
	}

	now := time.Now()
	if dm.config.RecoveryTimeWindow > 0 && now.Sub(service.windowStart) > dm.config.RecoveryTimeWindow {
		service.TotalRequests = 0
		service.ErrorCount = 0
		service.windowStart = now
	}

	service.TotalRequests++
	if err != nil {
		service.ErrorCount++
		service.LastError = err.Error()
		service.LastErrorTime = now
	}
	service.ErrorRate = float64(service.ErrorCount) / float64(service.TotalRequests)

	dm.updateDegradationLevel(service, now)
}

// updateDegradationLevel updates the degradation level. Callers hold the lock.
func (dm *DegradationManager) updateDegradationLevel(service *ServiceHealth, now time.Time) {
	oldLevel := service.Level

	newLevel := LevelNormal
	if service.TotalRequests >= dm.config.MinRequests {
		switch {
		case service.ErrorRate >= dm.config.EmergencyThreshold:
			newLevel = LevelEmergency
		case service.ErrorRate >= dm.config.CriticalThreshold:
			newLevel = LevelCritical
		case service.ErrorRate >= dm.config.DegradedThreshold:
			newLevel = LevelDegraded
		}
	}

	service.Level = newLevel
	if newLevel == LevelNormal {
		service.DegradedSince = nil
		service.StatusMessage = "Service is healthy"
	} else {
		if service.DegradedSince == nil {
			since := now
			service.DegradedSince = &since
		}
		service.StatusMessage = fmt.Sprintf("Service %s: %.0f%% of recent requests failed", newLevel, service.ErrorRate*100)
	}

	if oldLevel != newLevel {
		slog.Warn("Service degradation level changed",
			"service", service.ServiceName,
			"from", oldLevel.String(),
			"to", newLevel.String(),
			"error_rate", service.ErrorRate,
			"total_requests", service.TotalRequests,
			"error_count", service.ErrorCount)
	}
}

// GetServiceHealth returns a copy of the health status of a service
func (dm *DegradationManager) GetServiceHealth(serviceName string) (ServiceHealth, bool) {
	dm.mutex.RLock()
	defer dm.mutex.RUnlock()

	service, exists := dm.services[serviceName]
	if !exists {
		return ServiceHealth{}, false
	}
	return *service, true
}

// GetAllServiceHealth returns health status for all services
func (dm *DegradationManager) GetAllServiceHealth() map[string]ServiceHealth {
	dm.mutex.RLock()
	defer dm.mutex.RUnlock()

	result := make(map[string]ServiceHealth, len(dm.services))
	for name, service := range dm.services {
		result[name] = *service
	}
	return result
}

// IsServiceAvailable reports whether calls to a service should be attempted.
// Unknown services are assumed available.
func (dm *DegradationManager) IsServiceAvailable(serviceName string) bool {
	dm.mutex.RLock()
	defer dm.mutex.RUnlock()

	service, exists := dm.services[serviceName]
	if !exists {
		return true
	}
	return service.Level != LevelEmergency
}

// StartHealthChecks runs the registered health checks until ctx is done.
func (dm *DegradationManager) StartHealthChecks(ctx context.Context) {
	ticker := time.NewTicker(dm.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			dm.RunHealthChecks(ctx)
		}
	}
}

// RunHealthChecks performs every registered health check once.
func (dm *DegradationManager) RunHealthChecks(ctx context.Context) {
	dm.mutex.RLock()
	checks := make(map[string]HealthCheckFunc, len(dm.healthChecks))
	for name, check := range dm.healthChecks {
		checks[name] = check
	}
	dm.mutex.RUnlock()

	var wg sync.WaitGroup
	for name, check := range checks {
		wg.Add(1)
		go func(name string, check HealthCheckFunc) {
			defer wg.Done()
			checkCtx, cancel := context.WithTimeout(ctx, dm.config.HealthCheckTimeout)
			defer cancel()

			err := check(checkCtx)
			if err != nil {
				err = fmt.Errorf("health check failed for service %s: %w", name, err)
			}
			dm.RecordRequest(name, err)
		}(name, check)
	}
	wg.Wait()
}

// ResetService resets a service's health status
func (dm *DegradationManager) ResetService(serviceName string) {
	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	if service, exists := dm.services[serviceName]; exists {
		*service = ServiceHealth{
			ServiceName:   serviceName,
			Level:         LevelNormal,
			StatusMessage: "Service is healthy",
			windowStart:   time.Now(),
		}
		slog.Info("Service health reset", "service", serviceName)
	}
}
