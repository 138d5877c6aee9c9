// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/ZanzyTHEbar/ecoscan/internal/scoring"
)

// Prefix is prepended to every environment variable name.
const Prefix = "ECOSCAN"

// Config is the full service configuration.
type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	Port        string `envconfig:"PORT" default:"8080"`
	DataDir     string `envconfig:"DATA_DIR" default:"./data"`
	HomeRegion  string `envconfig:"HOME_REGION" default:"mx"`
	TablesFile  string `envconfig:"TABLES_FILE"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	UseSeeds    bool   `envconfig:"USE_SEEDS" default:"true"`

	RedisConfig
	OpenFoodFactsConfig

	CacheTTL             time.Duration `envconfig:"CACHE_TTL" default:"15m"`
	RateLimitPerMinute   int           `envconfig:"RATE_LIMIT_PER_MINUTE" default:"60"`
	HistoryRetentionDays int           `envconfig:"HISTORY_RETENTION_DAYS" default:"365"`
	RetentionInterval    time.Duration `envconfig:"RETENTION_INTERVAL" default:"24h"`
	ShutdownTimeout      time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	MaxBodyBytes         int64         `envconfig:"MAX_BODY_BYTES" default:"1048576"`
}

// RedisConfig configures the optional shared Redis instance. An empty
// address disables Redis.
type RedisConfig struct {
	Addr     string `envconfig:"REDIS_ADDR"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

// OpenFoodFactsConfig configures the upstream product database client.
type OpenFoodFactsConfig struct {
	URLTemplate    string        `envconfig:"OFF_URL_TEMPLATE" default:"https://%s.openfoodfacts.org/api/v2/product/%s.json"`
	UserAgent      string        `envconfig:"OFF_USER_AGENT" default:"ecoscan/1.0 (https://github.com/ZanzyTHEbar/ecoscan)"`
	Timeout        time.Duration `envconfig:"OFF_TIMEOUT" default:"15s"`
	FallbackRegion string        `envconfig:"OFF_FALLBACK_REGION" default:"world"`
}

// Load reads an optional .env file and then the ECOSCAN_* environment.
// Variables already set in the environment win over the file.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, file := range envFiles {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			return nil, fmt.Errorf("load %s: %w", file, err)
		}
		slog.Debug("Loaded environment file", "file", file)
	}

	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}
	cfg.HomeRegion = strings.ToLower(strings.TrimSpace(cfg.HomeRegion))

	return &cfg, nil
}

// Validate checks values that envconfig cannot. tables supplies the known
// regions.
func (c *Config) Validate(tables *scoring.Tables) error {
	var errs []error

	if c.Port == "" {
		errs = append(errs, errors.New("PORT must not be empty"))
	}
	if tables != nil && !tables.HasRegion(c.HomeRegion) {
		errs = append(errs, fmt.Errorf("HOME_REGION %q is not a known region", c.HomeRegion))
	}
	if c.RateLimitPerMinute <= 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive, got %d", c.RateLimitPerMinute))
	}
	if c.CacheTTL <= 0 {
		errs = append(errs, fmt.Errorf("CACHE_TTL must be positive, got %s", c.CacheTTL))
	}
	if c.HistoryRetentionDays < 0 {
		errs = append(errs, fmt.Errorf("HISTORY_RETENTION_DAYS must not be negative, got %d", c.HistoryRetentionDays))
	}
	if c.OpenFoodFactsConfig.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("OFF_TIMEOUT must be positive, got %s", c.OpenFoodFactsConfig.Timeout))
	}
	if strings.Count(c.OpenFoodFactsConfig.URLTemplate, "%s") != 2 {
		errs = append(errs, errors.New("OFF_URL_TEMPLATE needs exactly two %s verbs (region, barcode)"))
	}
	if c.MaxBodyBytes <= 0 {
		errs = append(errs, fmt.Errorf("MAX_BODY_BYTES must be positive, got %d", c.MaxBodyBytes))
	}

	return errors.Join(errs...)
}

// IsProduction reports whether the service runs in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// Tables loads the reference tables, applying TablesFile when set.
func (c *Config) Tables() (*scoring.Tables, error) {
	if c.TablesFile == "" {
		return scoring.DefaultTables(), nil
	}
	return scoring.LoadTables(c.TablesFile)
}
