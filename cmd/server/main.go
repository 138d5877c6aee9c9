package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ZanzyTHEbar/ecoscan/internal/adapters"
	"github.com/ZanzyTHEbar/ecoscan/internal/cache"
	"github.com/ZanzyTHEbar/ecoscan/internal/config"
	"github.com/ZanzyTHEbar/ecoscan/internal/database"
	"github.com/ZanzyTHEbar/ecoscan/internal/lookup"
	"github.com/ZanzyTHEbar/ecoscan/internal/middleware"
	"github.com/ZanzyTHEbar/ecoscan/internal/monitoring"
	"github.com/ZanzyTHEbar/ecoscan/internal/privacy"
	"github.com/ZanzyTHEbar/ecoscan/internal/ratelimit"
	"github.com/ZanzyTHEbar/ecoscan/internal/resilience"
	"github.com/ZanzyTHEbar/ecoscan/internal/security"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	appLogger := monitoring.NewLogger(monitoring.ParseLevel(cfg.LogLevel))
	slog.SetDefault(appLogger.Logger)

	tables, err := cfg.Tables()
	if err != nil {
		return fmt.Errorf("load reference tables: %w", err)
	}
	if err := cfg.Validate(tables); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewDB(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer db.Close()
	repo := database.NewRepository(db)

	// Redis is optional; a failed ping degrades to in-process stores.
	redisClient, err := cache.NewRedisClient(ctx, cfg.Addr, cfg.Password, cfg.DB)
	if err != nil {
		slog.Warn("Continuing without Redis", "error", err)
	}
	defer redisClient.Close()

	store := cache.NewStore(redisClient, "ecoscan:", cfg.CacheTTL)
	defer store.Close()

	appMetrics := monitoring.NewMetrics()

	off := adapters.NewOpenFoodFactsAdapter(adapters.OpenFoodFactsConfig{
		URLTemplate:    cfg.URLTemplate,
		UserAgent:      cfg.UserAgent,
		FallbackRegion: cfg.FallbackRegion,
		Timeout:        cfg.OpenFoodFactsConfig.Timeout,
		OnBreakerChange: func(_, to resilience.CircuitBreakerState) {
			appMetrics.RecordCircuitBreakerTransition(to.String())
		},
	})
	defer off.Close()

	// Scans are interactive; fail fast rather than keep the user waiting.
	retries := resilience.NewRetryManager()
	retries.RegisterPolicy(lookup.ServiceName, resilience.FastRetryPolicy)

	degradation := resilience.NewDegradationManager(resilience.DefaultDegradationConfig())
	degradation.RegisterService(lookup.ServiceName, off.Ping)
	degradation.RegisterService("database", db.HealthCheck)
	if redisClient.IsEnabled() {
		degradation.RegisterService("redis", redisClient.HealthCheck)
	}
	go degradation.StartHealthChecks(ctx)

	lookupService := lookup.NewService(lookup.Config{
		Tables:       tables,
		Fetcher:      off,
		Store:        store,
		CacheTTL:     cfg.CacheTTL,
		HomeRegion:   cfg.HomeRegion,
		Retry:        retries.GetPolicy(lookup.ServiceName).Config,
		FetchTimeout: 2 * cfg.OpenFoodFactsConfig.Timeout,
		UseSeeds:     cfg.UseSeeds,
		Degradation:  degradation,
		Metrics:      appMetrics,
		Logger:       appLogger,
	})

	limiter := ratelimit.NewRateLimiter(redisClient, ratelimit.Config{
		IPLimitPerMin: cfg.RateLimitPerMinute,
	}, appMetrics)
	defer limiter.Close()

	retention := privacy.NewRetentionService(repo, cfg.HistoryRetentionDays)
	if retention.Enabled() {
		go retention.Run(ctx, cfg.RetentionInterval)
	}

	securityConfig := security.DefaultSecurityConfig()
	securityConfig.EnableHSTS = cfg.IsProduction()

	srv := &server{
		cfg:         cfg,
		lookup:      lookupService,
		repo:        repo,
		store:       store,
		limiter:     limiter,
		degradation: degradation,
		retention:   retention,
		metrics:     appMetrics,
		logger:      appLogger,
		security:    security.NewSecurityMiddleware(securityConfig),
		compression: middleware.NewCompressionMiddleware(middleware.DefaultCompressionConfig()),
		breaker:     off.CircuitBreaker(),
		pools: map[string]func() map[string]interface{}{
			"openfoodfacts": off.GetPoolStats,
			"database":      db.GetPoolStats,
			"redis":         redisClient.GetPoolStats,
		},
		now: time.Now,
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLogger.LogSystemEvent("startup", fmt.Sprintf("listening on :%s, home region %s", cfg.Port, cfg.HomeRegion))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	slog.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	slog.Info("Server exited")
	return nil
}
