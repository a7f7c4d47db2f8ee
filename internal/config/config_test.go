package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weatherdeck/weatherdeck/internal/config"
)

var managedVars = []string{
	"APP_PORT", "APP_ENV", "OTEL_ENABLED", "WEATHER_PROVIDER", "OPENWEATHERMAP_API_KEY",
	"CACHE_TTL", "UPSTREAM_TIMEOUT", "DEVICE_TIMEOUT", "UPSTREAM_MAX_RETRIES",
	"REFRESH_INTERVAL", "DUPLICATE_THRESHOLD_DEG", "AGGREGATOR_CONCURRENCY",
	"STORAGE_DRIVER", "PUBSUB_PROJECT_ID", "PUBSUB_SUBSCRIPTION",
	"HOME_LATITUDE", "HOME_LONGITUDE", "WEATHER_LANGUAGE", "REQUIRE_TLS",
}

// clearEnv blanks every variable Load reads so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range managedVars {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.False(t, cfg.OTelEnabled)
	assert.False(t, cfg.RequireTLS)
	assert.Equal(t, config.ProviderOpenMeteo, cfg.WeatherProvider)
	assert.Equal(t, "es", cfg.Language)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 10*time.Second, cfg.UpstreamTimeout)
	assert.Equal(t, 10*time.Second, cfg.DeviceTimeout)
	assert.Equal(t, uint64(3), cfg.UpstreamMaxRetries)
	assert.Equal(t, 10*time.Minute, cfg.RefreshInterval)
	assert.InDelta(t, 0.01, cfg.DuplicateThreshold, 1e-9)
	assert.Equal(t, 4, cfg.AggregatorConcurrency)
	assert.Equal(t, config.StorageMemory, cfg.StorageDriver)
	assert.Nil(t, cfg.Home)
	assert.False(t, cfg.PubSubEnabled())
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("WEATHER_PROVIDER", "OpenWeatherMap")
	t.Setenv("OPENWEATHERMAP_API_KEY", "k")
	t.Setenv("CACHE_TTL", "90s")
	t.Setenv("UPSTREAM_MAX_RETRIES", "0")
	t.Setenv("STORAGE_DRIVER", "postgres")
	t.Setenv("HOME_LATITUDE", "-12.0464")
	t.Setenv("HOME_LONGITUDE", "-77.0428")
	t.Setenv("PUBSUB_PROJECT_ID", "p")
	t.Setenv("PUBSUB_SUBSCRIPTION", "s")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, config.ProviderOpenWeatherMap, cfg.WeatherProvider)
	assert.Equal(t, 90*time.Second, cfg.CacheTTL)
	assert.Equal(t, uint64(0), cfg.UpstreamMaxRetries)
	assert.Equal(t, config.StoragePostgres, cfg.StorageDriver)
	require.NotNil(t, cfg.Home)
	assert.InDelta(t, -12.0464, cfg.Home.Latitude, 1e-9)
	assert.True(t, cfg.PubSubEnabled())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad duration", map[string]string{"CACHE_TTL": "soon"}},
		{"bad retries", map[string]string{"UPSTREAM_MAX_RETRIES": "-1"}},
		{"unknown provider", map[string]string{"WEATHER_PROVIDER": "darksky"}},
		{"owm without key", map[string]string{"WEATHER_PROVIDER": "openweathermap"}},
		{"unknown storage", map[string]string{"STORAGE_DRIVER": "redis"}},
		{"zero concurrency", map[string]string{"AGGREGATOR_CONCURRENCY": "0"}},
		{"half home", map[string]string{"HOME_LATITUDE": "1"}},
		{"home out of range", map[string]string{"HOME_LATITUDE": "91", "HOME_LONGITUDE": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := config.Load()
			assert.Error(t, err)
		})
	}
}
