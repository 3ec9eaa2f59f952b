package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PICKUP_DEADLINE_HOURS", "")
	t.Setenv("NO_COMMISSION_PLATFORM", "")

	cfg := Load()

	assert.Equal(t, 48*time.Hour, cfg.Business.PickupDeadline)
	assert.Equal(t, "internal", cfg.Business.NoCommissionPlatform)
	assert.Equal(t, 100, cfg.Business.BulkMaxItems)
	assert.Equal(t, "commission-rates", cfg.Kafka.TopicRates)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PICKUP_DEADLINE_HOURS", "24")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("NO_COMMISSION_PLATFORM", "Dealer-Direct")

	cfg := Load()

	assert.Equal(t, 24*time.Hour, cfg.Business.PickupDeadline)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "Dealer-Direct", cfg.Business.NoCommissionPlatform)
}
