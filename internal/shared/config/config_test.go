package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "/api/v1", cfg.GetAPIBasePath())
	assert.Equal(t, 15*time.Minute, cfg.Reservation.Window)
	assert.Equal(t, 60*time.Second, cfg.Reservation.SweepInterval)
	assert.Equal(t, 100, cfg.Reservation.SweepBatchSize)
	assert.Equal(t, 3, cfg.Reservation.TxRetryAttempts)
	assert.Equal(t, 20*time.Millisecond, cfg.Reservation.TxRetryBackoff)
	assert.False(t, cfg.Kafka.Enabled)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("RESERVATION_WINDOW", "5m")
	t.Setenv("SWEEP_BATCH_SIZE", "25")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092")
	t.Setenv("DB_HOST", "db.internal")

	cfg := Load()

	assert.Equal(t, 5*time.Minute, cfg.Reservation.Window)
	assert.Equal(t, 25, cfg.Reservation.SweepBatchSize)
	assert.True(t, cfg.Kafka.Enabled)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Contains(t, cfg.Database.DSN, "host=db.internal")
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("SWEEP_INTERVAL", "soon")
	t.Setenv("TX_RETRY_ATTEMPTS", "many")
	t.Setenv("RATE_LIMIT_ENABLED", "maybe")

	cfg := Load()

	assert.Equal(t, 60*time.Second, cfg.Reservation.SweepInterval)
	assert.Equal(t, 3, cfg.Reservation.TxRetryAttempts)
	assert.True(t, cfg.RateLimit.Enabled)
}
