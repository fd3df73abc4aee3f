package config

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearFaasbillEnv unsets every FAASBILL_ variable for the duration of the test
func clearFaasbillEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(key, "FAASBILL_") {
			t.Setenv(key, "")
			os.Unsetenv(key)
		}
	}
}

func TestLoad(t *testing.T) {
	t.Run("loads default values when env vars not set", func(t *testing.T) {
		clearFaasbillEnv(t)

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "faasbill", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "faasbill", cfg.Database.DBName)
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
		assert.Equal(t, "", cfg.Redis.Host, "redis is opt-in")
		assert.Equal(t, time.Hour, cfg.Usage.WindowSize)
		assert.Equal(t, 5*time.Minute, cfg.Usage.GracePeriod)
		assert.True(t, cfg.Usage.SchedulerEnabled)
		assert.Equal(t, "local", cfg.Storage.Driver)
		assert.True(t, cfg.Storage.UsePathStyle)
		assert.False(t, cfg.Kafka.Enabled)
		assert.Equal(t, 1.0, cfg.Telemetry.SamplingRatio)
	})

	t.Run("loads values from environment variables with FAASBILL prefix", func(t *testing.T) {
		clearFaasbillEnv(t)
		t.Setenv("FAASBILL_APP_PORT", "9000")
		t.Setenv("FAASBILL_DATABASE_HOST", "db.internal")
		t.Setenv("FAASBILL_DATABASE_PORT", "5433")
		t.Setenv("FAASBILL_REDIS_HOST", "cache.internal")
		t.Setenv("FAASBILL_USAGE_WINDOW_SIZE", "15m")
		t.Setenv("FAASBILL_USAGE_GRACE_PERIOD", "2m")
		t.Setenv("FAASBILL_USAGE_SCHEDULER_ENABLED", "false")
		t.Setenv("FAASBILL_STORAGE_DRIVER", "s3")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "9000", cfg.App.Port)
		assert.Equal(t, "db.internal", cfg.Database.Host)
		assert.Equal(t, 5433, cfg.Database.Port)
		assert.Equal(t, "cache.internal:6379", cfg.Redis.Addr())
		assert.Equal(t, 15*time.Minute, cfg.Usage.WindowSize)
		assert.Equal(t, 2*time.Minute, cfg.Usage.GracePeriod)
		assert.False(t, cfg.Usage.SchedulerEnabled)
		assert.Equal(t, "s3", cfg.Storage.Driver)
	})

	t.Run("rejects window size that does not tile a day", func(t *testing.T) {
		clearFaasbillEnv(t)
		t.Setenv("FAASBILL_USAGE_WINDOW_SIZE", "7h")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "window_size")
	})

	t.Run("requires brokers when kafka is enabled", func(t *testing.T) {
		clearFaasbillEnv(t)
		t.Setenv("FAASBILL_KAFKA_ENABLED", "true")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "kafka.brokers")
	})

	t.Run("production requires database password and tls", func(t *testing.T) {
		clearFaasbillEnv(t)
		t.Setenv("FAASBILL_APP_ENV", "production")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.password")

		t.Setenv("FAASBILL_DATABASE_PASSWORD", "secret")
		_, err = Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sslmode")

		t.Setenv("FAASBILL_DATABASE_SSLMODE", "require")
		_, err = Load()
		assert.NoError(t, err)
	})
}

func TestValidate_StorageDriver(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)
	require.NoError(t, cfg.validate())

	cfg.Storage.Driver = "ftp"
	assert.Error(t, cfg.validate())
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "billing",
		Password: "p@ss:word/with?chars",
		DBName:   "faasbill",
		SSLMode:  "disable",
	}

	dsn := d.DSN()
	assert.True(t, strings.HasPrefix(dsn, "postgres://billing:"))
	assert.Contains(t, dsn, "@localhost:5432/faasbill?sslmode=disable")
	assert.NotContains(t, dsn, "p@ss:word/with?chars")
}
