package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/ecoscan/internal/scoring"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "mx", cfg.HomeRegion)
	assert.Equal(t, "./data", cfg.DataDir)
	assert.Equal(t, 15*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 60, cfg.RateLimitPerMinute)
	assert.Equal(t, 365, cfg.HistoryRetentionDays)
	assert.Equal(t, 15*time.Second, cfg.OpenFoodFactsConfig.Timeout)
	assert.Equal(t, "world", cfg.FallbackRegion)
	assert.Empty(t, cfg.Addr)
	assert.True(t, cfg.UseSeeds)
	assert.False(t, cfg.IsProduction())

	require.NoError(t, cfg.Validate(scoring.DefaultTables()))
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("ECOSCAN_PORT", "9090")
	t.Setenv("ECOSCAN_HOME_REGION", " FR ")
	t.Setenv("ECOSCAN_REDIS_ADDR", "localhost:6379")
	t.Setenv("ECOSCAN_CACHE_TTL", "90s")
	t.Setenv("ECOSCAN_OFF_TIMEOUT", "2s")
	t.Setenv("ECOSCAN_ENVIRONMENT", "Production")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "fr", cfg.HomeRegion)
	assert.Equal(t, "localhost:6379", cfg.Addr)
	assert.Equal(t, 90*time.Second, cfg.CacheTTL)
	assert.Equal(t, 2*time.Second, cfg.OpenFoodFactsConfig.Timeout)
	assert.True(t, cfg.IsProduction())
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("ECOSCAN_DATA_DIR=/var/lib/ecoscan\nECOSCAN_PORT=7070\n"), 0o600))

	// Values already in the environment take precedence over the file.
	t.Setenv("ECOSCAN_PORT", "6060")
	t.Setenv("ECOSCAN_DATA_DIR", "")
	require.NoError(t, os.Unsetenv("ECOSCAN_DATA_DIR"))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "6060", cfg.Port)
	assert.Equal(t, "/var/lib/ecoscan", cfg.DataDir)
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	t.Setenv("ECOSCAN_RATE_LIMIT_PER_MINUTE", "lots")

	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tables := scoring.DefaultTables()
	valid := func() *Config {
		cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		message string
	}{
		{"unknown home region", func(c *Config) { c.HomeRegion = "atlantis" }, "HOME_REGION"},
		{"zero rate limit", func(c *Config) { c.RateLimitPerMinute = 0 }, "RATE_LIMIT_PER_MINUTE"},
		{"negative retention", func(c *Config) { c.HistoryRetentionDays = -1 }, "HISTORY_RETENTION_DAYS"},
		{"zero cache ttl", func(c *Config) { c.CacheTTL = 0 }, "CACHE_TTL"},
		{"bad url template", func(c *Config) { c.URLTemplate = "https://example.com/%s" }, "OFF_URL_TEMPLATE"},
		{"empty port", func(c *Config) { c.Port = "" }, "PORT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate(tables)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestRetentionZeroIsValid(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	cfg.HistoryRetentionDays = 0
	assert.NoError(t, cfg.Validate(scoring.DefaultTables()))
}

func TestTables(t *testing.T) {
	cfg := &Config{}
	tables, err := cfg.Tables()
	require.NoError(t, err)
	assert.True(t, tables.HasRegion("mx"))

	cfg.TablesFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = cfg.Tables()
	assert.Error(t, err)
}
