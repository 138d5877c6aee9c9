package main

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ZanzyTHEbar/ecoscan/internal/cache"
	"github.com/ZanzyTHEbar/ecoscan/internal/config"
	"github.com/ZanzyTHEbar/ecoscan/internal/database"
	apperrors "github.com/ZanzyTHEbar/ecoscan/internal/errors"
	"github.com/ZanzyTHEbar/ecoscan/internal/lookup"
	"github.com/ZanzyTHEbar/ecoscan/internal/middleware"
	"github.com/ZanzyTHEbar/ecoscan/internal/monitoring"
	"github.com/ZanzyTHEbar/ecoscan/internal/privacy"
	"github.com/ZanzyTHEbar/ecoscan/internal/ratelimit"
	"github.com/ZanzyTHEbar/ecoscan/internal/resilience"
	"github.com/ZanzyTHEbar/ecoscan/internal/security"
)

const version = "1.0.0"

// server holds the dependencies shared by the HTTP handlers.
type server struct {
	cfg         *config.Config
	lookup      *lookup.Service
	repo        *database.Repository
	store       cache.Store
	limiter     *ratelimit.RateLimiter
	degradation *resilience.DegradationManager
	retention   *privacy.RetentionService
	metrics     *monitoring.Metrics
	logger      *monitoring.Logger
	security    *security.SecurityMiddleware
	compression *middleware.CompressionMiddleware
	breaker     *resilience.CircuitBreaker
	pools       map[string]func() map[string]interface{}
	newID       func() string
	now         func() time.Time
}

func (s *server) routes() *gin.Engine {
	r := gin.New()

	r.Use(monitoring.RequestIDMiddleware(s.logger))
	r.Use(monitoring.MonitoringMiddleware(s.metrics, s.logger))
	r.Use(monitoring.SecurityMonitoringMiddleware(s.logger, s.cfg.MaxBodyBytes))
	r.Use(s.compression.Handler())

	r.Use(apperrors.ErrorHandler())
	r.Use(apperrors.RecoveryHandler())

	r.Use(s.security.SecurityHeaders)
	r.Use(s.security.CORSConfig())
	r.Use(s.security.LimitRequestBody)
	r.Use(s.security.ValidateContentType)
	r.Use(s.security.RequestTimeout)

	r.GET("/health", s.handleHealth)
	r.GET("/health/services", s.handleServiceHealth)
	r.GET("/metrics", s.handleMetrics)

	api := r.Group("/api/v1")
	api.GET("/regions", s.handleRegions)
	api.GET("/ratelimit", s.limiter.HandleRateLimitStatus())

	// Routes that may reach the upstream product database.
	limited := api.Group("", s.limiter.IPRateLimitMiddleware())
	limited.GET("/products/:barcode", s.handleProduct)
	limited.POST("/score", cache.Middleware(s.store, s.cfg.CacheTTL, s.metrics), s.handleScore)
	limited.POST("/history", s.handleRecordScan)

	api.GET("/history", s.handleListHistory)
	api.GET("/history/summary", s.handleHistorySummary)
	api.GET("/history/:id", s.handleGetScan)
	api.DELETE("/history/:id", s.handleDeleteScan)
	api.DELETE("/history", s.handleResetHistory)
	api.GET("/impact", s.handleImpact)

	if !s.cfg.IsProduction() {
		admin := api.Group("/admin")
		admin.GET("/ratelimit", s.limiter.HandleRateLimitStats())
		admin.DELETE("/ratelimit/:ip", s.limiter.HandleInvalidateIP())
		admin.DELETE("/products/:barcode", s.handleInvalidateProduct)
		admin.POST("/retention/purge", s.handlePurge)
	}

	return r
}
