package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	t.Setenv("CONFIG_PATH", path)
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"APP_ENV", "PORT", "TIMEZONE", "STORAGE_DRIVER", "DATABASE_URL", "AUTH_MODE",
		"CLERK_SECRET_KEY", "JWT_SECRET", "REDIS_ADDR", "KAFKA_BROKERS", "LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	clearEnv(t)
	writeConfig(t, `
database:
  driver: memory
auth:
  mode: local
  jwt_secret: s3cret
`)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "3333", cfg.Service.Port)
	assert.Equal(t, "Local", cfg.Service.Timezone)
	assert.Equal(t, 10*time.Second, cfg.Estimator.Timeout)
	assert.Equal(t, 30*time.Second, cfg.Redis.LeaderboardTTL)
	assert.Equal(t, "@every 15m", cfg.Jobs.PremiumSweep)
	assert.Equal(t, 30, cfg.Billing.PremiumDays)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	writeConfig(t, `
service:
  port: "8080"
database:
  driver: memory
auth:
  mode: local
  jwt_secret: from-file
`)
	t.Setenv("PORT", "9090")
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("KAFKA_BROKERS", "a:9092,b:9092")
	t.Setenv("TIMEZONE", "UTC")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Service.Port)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		c := Config{}
		c.applyDefaults()
		c.Database.Driver = DriverMemory
		c.Auth.Mode = AuthLocal
		c.Auth.JWTSecret = "x"
		return c
	}

	c := base()
	assert.NoError(t, c.Validate())

	c = base()
	c.Database.Driver = DriverPostgres
	assert.ErrorContains(t, c.Validate(), "DATABASE_URL")

	c = base()
	c.Auth.Mode = AuthClerk
	assert.ErrorContains(t, c.Validate(), "CLERK_SECRET_KEY")

	c = base()
	c.Auth.JWTSecret = ""
	assert.ErrorContains(t, c.Validate(), "JWT_SECRET")

	c = base()
	c.Service.Timezone = "Mars/Olympus"
	assert.ErrorContains(t, c.Validate(), "invalid timezone")
}
