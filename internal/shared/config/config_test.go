package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "/api/v1", cfg.GetAPIBasePath())
	assert.Equal(t, 10*time.Minute, cfg.Redis.SeatHoldTTL)
	assert.Equal(t, 0.5, cfg.Client.RefreshFraction)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.False(t, cfg.Kafka.Enabled)
	assert.Contains(t, cfg.Database.DSN, "dbname=fanclub_db")
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("REDIS_SEAT_HOLD_TTL", "90s")
	t.Setenv("FANCLUB_HOLD_REFRESH_FRACTION", "0.25")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("RATE_LIMIT_ENABLED", "false")
	t.Setenv("RETRY_MAX_ATTEMPTS", "not-a-number")
	t.Setenv("DB_DRIVER", "sqlite")

	cfg := Load()

	assert.Equal(t, 90*time.Second, cfg.Redis.SeatHoldTTL)
	assert.Equal(t, 0.25, cfg.Client.RefreshFraction)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.False(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
}
