package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadWithOptions(LoadOptions{})
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "hookline", cfg.Database.DBName)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)

	assert.Equal(t, 5*time.Second, cfg.Delivery.HTTPTimeout)
	assert.Equal(t, 5, cfg.Delivery.MaxAttempts)
	assert.Equal(t, []time.Duration{
		10 * time.Second,
		30 * time.Second,
		60 * time.Second,
		300 * time.Second,
		900 * time.Second,
	}, cfg.Delivery.BackoffSchedule)
	assert.Equal(t, int64(1<<20), cfg.Delivery.MaxPayloadBytes)

	assert.Equal(t, 72*time.Hour, cfg.Retention.Horizon)
	assert.Equal(t, time.Hour, cfg.Retention.SweepInterval)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("HTTP_TIMEOUT", "2")
	t.Setenv("MAX_ATTEMPTS", "3")
	t.Setenv("BACKOFF_SCHEDULE", "0,0,0")
	t.Setenv("RETENTION_HOURS", "24")
	t.Setenv("WORKER_CONCURRENCY", "2")

	cfg, err := LoadWithOptions(LoadOptions{})
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, cfg.Delivery.HTTPTimeout)
	assert.Equal(t, 3, cfg.Delivery.MaxAttempts)
	assert.Equal(t, []time.Duration{0, 0, 0}, cfg.Delivery.BackoffSchedule)
	assert.Equal(t, 24*time.Hour, cfg.Retention.Horizon)
	assert.Equal(t, 2, cfg.Delivery.Concurrency)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Run("zero max attempts", func(t *testing.T) {
		t.Setenv("MAX_ATTEMPTS", "0")
		_, err := LoadWithOptions(LoadOptions{})
		assert.ErrorContains(t, err, "MAX_ATTEMPTS")
	})

	t.Run("malformed backoff entry", func(t *testing.T) {
		t.Setenv("BACKOFF_SCHEDULE", "10,soon,60")
		_, err := LoadWithOptions(LoadOptions{})
		assert.ErrorContains(t, err, "BACKOFF_SCHEDULE")
	})

	t.Run("negative backoff entry", func(t *testing.T) {
		t.Setenv("BACKOFF_SCHEDULE", "10,-5")
		_, err := LoadWithOptions(LoadOptions{})
		assert.ErrorContains(t, err, "negative")
	})

	t.Run("zero concurrency", func(t *testing.T) {
		t.Setenv("WORKER_CONCURRENCY", "0")
		_, err := LoadWithOptions(LoadOptions{})
		assert.ErrorContains(t, err, "WORKER_CONCURRENCY")
	})
}

func TestDatabaseDSN(t *testing.T) {
	db := DatabaseConfig{
		Host:     "db.internal",
		Port:     5433,
		User:     "hookline",
		Password: "s3cret",
		DBName:   "hooks",
		SSLMode:  "require",
	}

	assert.Equal(t,
		"host=db.internal port=5433 user=hookline password=s3cret dbname=hooks sslmode=require",
		db.DSN())
}
