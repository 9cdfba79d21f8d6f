package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "4000", cfg.ServerPort)
	require.Equal(t, 1500*time.Millisecond, cfg.GeocoderMinInterval)
	require.Equal(t, 10*time.Second, cfg.GeocoderTimeout)
	require.Equal(t, 2, cfg.GeocoderMaxRetries)
	require.Equal(t, 0.5, cfg.WarehouseRadiusKm)
	require.Equal(t, 75.0, cfg.ChargeThreshold)
	require.Equal(t, "QuadriFleet/1.0", cfg.GeocoderUserAgent)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("WAREHOUSE_RADIUS_KM", "0.1")
	t.Setenv("GEOCODER_MIN_INTERVAL", "2s")
	t.Setenv("DEBUG", "true")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 0.1, cfg.WarehouseRadiusKm)
	require.Equal(t, 2*time.Second, cfg.GeocoderMinInterval)
	require.True(t, cfg.Debug)
}

func TestLoadRejectsInvalidRadius(t *testing.T) {
	t.Setenv("WAREHOUSE_RADIUS_KM", "-1")

	_, err := Load()
	require.Error(t, err)
}

func TestMalformedValuesFallBackToDefaults(t *testing.T) {
	t.Setenv("GEOCODER_MAX_RETRIES", "many")
	t.Setenv("CHARGE_THRESHOLD", "high")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 2, cfg.GeocoderMaxRetries)
	require.Equal(t, 75.0, cfg.ChargeThreshold)
}
