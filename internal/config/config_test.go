package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := writeConfig(t, `
mode = "standalone"
log_level = "debug"

[market]
fee_bps = 200

[archive]
enabled = true
retention_days = 30
interval = "6h"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "standalone", cfg.Mode)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 200, cfg.Market.FeeBps)
	assert.Equal(t, 6*time.Hour, cfg.Archive.Interval.Duration)

	// Untouched sections keep their defaults.
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 8000, cfg.Server.Port)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, `mode = "serve"`)

	t.Setenv("PREDICTD_POSTGRES_PASSWORD", "hunter2")
	t.Setenv("PREDICTD_SERVER_PORT", "9090")
	t.Setenv("PREDICTD_MARKET_FEE_BPS", "50")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "hunter2", cfg.Postgres.Password)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 50, cfg.Market.FeeBps)
}

func TestValidate(t *testing.T) {
	t.Run("defaults are valid in serve mode", func(t *testing.T) {
		cfg := Defaults()
		assert.NoError(t, cfg.Validate())
	})

	t.Run("standalone needs no postgres or redis", func(t *testing.T) {
		cfg := Defaults()
		cfg.Mode = "standalone"
		cfg.Postgres = PostgresConfig{}
		cfg.Redis = RedisConfig{}
		assert.NoError(t, cfg.Validate())
	})

	t.Run("unknown mode rejected", func(t *testing.T) {
		cfg := Defaults()
		cfg.Mode = "cluster"
		assert.Error(t, cfg.Validate())
	})

	t.Run("fee out of range rejected", func(t *testing.T) {
		cfg := Defaults()
		cfg.Market.FeeBps = 10_000
		assert.Error(t, cfg.Validate())
	})

	t.Run("archive needs bucket and interval", func(t *testing.T) {
		cfg := Defaults()
		cfg.Archive.Enabled = true
		cfg.S3.Bucket = ""
		assert.Error(t, cfg.Validate())
	})
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Postgres.Password = "pg-secret"
	cfg.Redis.Password = "redis-secret"
	cfg.S3.SecretKey = "s3-secret"
	cfg.Server.APIKey = "api-secret"

	red := RedactedConfig(&cfg)

	assert.Equal(t, "***", red.Postgres.Password)
	assert.Equal(t, "***", red.Redis.Password)
	assert.Equal(t, "***", red.S3.SecretKey)
	assert.Equal(t, "***", red.Server.APIKey)

	// Originals untouched.
	assert.Equal(t, "pg-secret", cfg.Postgres.Password)

	// Mutating the redacted copy's slices must not leak back.
	require.NotEmpty(t, red.Server.CORSOrigins)
	red.Server.CORSOrigins[0] = "mutated"
	assert.NotEqual(t, "mutated", cfg.Server.CORSOrigins[0])
}
