package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.InDelta(t, 0.70, cfg.Learning.MinStreetAgreement, 0.001)
	assert.InDelta(t, 0.80, cfg.Learning.MinPrefixAgreement, 0.001)
	assert.Equal(t, 3, cfg.Learning.MinPrefixSamples)
	assert.InDelta(t, 0.005, cfg.Boundary.MeanGapDegrees, 1e-9)
	assert.InDelta(t, 2.0, cfg.Boundary.DominanceRatio, 0.001)
	assert.InDelta(t, 0.25, cfg.Lookup.NeighborRadiusMi, 0.001)
	assert.Equal(t, 4, cfg.Lookup.MinSharedPrefix)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("UTILITY_STORE_DRIVER", "postgres")
	t.Setenv("UTILITY_SERVER_PORT", "9090")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestInitLoggerBadLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "nope", Format: "json"})
	assert.Error(t, err)
}
