package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLimitsConfig(t *testing.T) {
	cfg := DefaultLimitsConfig()

	assert.Equal(t, 90, cfg.WarningThresholdPercent)
	assert.True(t, cfg.RateLimitEnabled)
	assert.Positive(t, cfg.SweepBatchSize)
	require.NoError(t, validateLimitsConfig(cfg))
}

func TestValidateLimitsConfig(t *testing.T) {
	cfg := DefaultLimitsConfig()

	cfg.WarningThresholdPercent = 0
	assert.Error(t, validateLimitsConfig(cfg))

	cfg.WarningThresholdPercent = 101
	assert.Error(t, validateLimitsConfig(cfg))

	cfg.WarningThresholdPercent = 100
	assert.NoError(t, validateLimitsConfig(cfg))

	cfg.SweepBatchSize = 0
	assert.Error(t, validateLimitsConfig(cfg))
}

func TestStaticLimitsHolder(t *testing.T) {
	cfg := DefaultLimitsConfig()
	cfg.WarningThresholdPercent = 75

	holder := NewStaticLimitsHolder(cfg)
	assert.Equal(t, 75, holder.Get().WarningThresholdPercent)
}
