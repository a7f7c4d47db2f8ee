// Package config loads process configuration from the environment, with an
// optional .env file layered underneath.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/weatherdeck/weatherdeck/internal/database"
)

// Weather providers selectable with WEATHER_PROVIDER.
const (
	ProviderOpenMeteo      = "openmeteo"
	ProviderOpenWeatherMap = "openweathermap"
)

// Storage drivers selectable with STORAGE_DRIVER.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// ErrMissingAPIKey is returned when OpenWeatherMap is selected without a key.
var ErrMissingAPIKey = errors.New("OPENWEATHERMAP_API_KEY is required for the openweathermap provider")

// Config holds everything the entry points need.
type Config struct {
	Port        string
	Environment string
	RequireTLS  bool

	OTelEnabled  bool
	OTLPEndpoint string

	WeatherProvider      string
	OpenWeatherMapAPIKey string
	OpenMeteoForecastURL string
	OpenMeteoGeocodeURL  string
	NominatimURL         string
	NominatimUserAgent   string
	Language             string

	CacheTTL           time.Duration
	UpstreamTimeout    time.Duration
	DeviceTimeout      time.Duration
	UpstreamMaxRetries uint64
	RefreshInterval    time.Duration

	DuplicateThreshold    float64
	AggregatorConcurrency int

	StorageDriver string
	Database      database.Config

	PubSubProjectID    string
	PubSubSubscription string

	// Home is the fixed position used by headless refreshes. Nil when unset.
	Home *Coordinates
}

// Coordinates is a latitude/longitude pair in degrees.
type Coordinates struct {
	Latitude  float64
	Longitude float64
}

// Load reads .env (if present) and the environment.
func Load() (*Config, error) {
	// A missing .env file is normal outside local development.
	_ = godotenv.Load()

	cfg := &Config{
		Port:                 getenvDefault("APP_PORT", "8080"),
		Environment:          getenvDefault("APP_ENV", "development"),
		RequireTLS:           os.Getenv("REQUIRE_TLS") == "true",
		OTelEnabled:          os.Getenv("OTEL_ENABLED") == "true",
		OTLPEndpoint:         getenvDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		WeatherProvider:      strings.ToLower(getenvDefault("WEATHER_PROVIDER", ProviderOpenMeteo)),
		OpenWeatherMapAPIKey: os.Getenv("OPENWEATHERMAP_API_KEY"),
		OpenMeteoForecastURL: os.Getenv("OPENMETEO_FORECAST_URL"),
		OpenMeteoGeocodeURL:  os.Getenv("OPENMETEO_GEOCODING_URL"),
		NominatimURL:         os.Getenv("NOMINATIM_URL"),
		NominatimUserAgent:   getenvDefault("NOMINATIM_USER_AGENT", "weatherdeck/1.0"),
		Language:             getenvDefault("WEATHER_LANGUAGE", "es"),
		StorageDriver:        strings.ToLower(getenvDefault("STORAGE_DRIVER", StorageMemory)),
		Database:             database.ConfigFromEnv(),
		PubSubProjectID:      os.Getenv("PUBSUB_PROJECT_ID"),
		PubSubSubscription:   os.Getenv("PUBSUB_SUBSCRIPTION"),
	}

	var err error
	if cfg.CacheTTL, err = getenvDuration("CACHE_TTL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.UpstreamTimeout, err = getenvDuration("UPSTREAM_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.DeviceTimeout, err = getenvDuration("DEVICE_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.RefreshInterval, err = getenvDuration("REFRESH_INTERVAL", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.UpstreamMaxRetries, err = getenvUint("UPSTREAM_MAX_RETRIES", 3); err != nil {
		return nil, err
	}
	if cfg.DuplicateThreshold, err = getenvFloat("DUPLICATE_THRESHOLD_DEG", 0.01); err != nil {
		return nil, err
	}
	if cfg.AggregatorConcurrency, err = getenvInt("AGGREGATOR_CONCURRENCY", 4); err != nil {
		return nil, err
	}
	if cfg.Home, err = loadHome(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.WeatherProvider {
	case ProviderOpenMeteo:
	case ProviderOpenWeatherMap:
		if c.OpenWeatherMapAPIKey == "" {
			return ErrMissingAPIKey
		}
	default:
		return fmt.Errorf("invalid WEATHER_PROVIDER %q", c.WeatherProvider)
	}

	switch c.StorageDriver {
	case StorageMemory, StoragePostgres:
	default:
		return fmt.Errorf("invalid STORAGE_DRIVER %q", c.StorageDriver)
	}

	if c.AggregatorConcurrency <= 0 {
		return fmt.Errorf("AGGREGATOR_CONCURRENCY must be positive, got %d", c.AggregatorConcurrency)
	}
	return nil
}

// PubSubEnabled reports whether both Pub/Sub settings are present.
func (c *Config) PubSubEnabled() bool {
	return c.PubSubProjectID != "" && c.PubSubSubscription != ""
}

func loadHome() (*Coordinates, error) {
	lat, lon := os.Getenv("HOME_LATITUDE"), os.Getenv("HOME_LONGITUDE")
	if lat == "" && lon == "" {
		return nil, nil
	}
	if lat == "" || lon == "" {
		return nil, errors.New("HOME_LATITUDE and HOME_LONGITUDE must be set together")
	}

	latV, err := strconv.ParseFloat(lat, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid HOME_LATITUDE: %w", err)
	}
	lonV, err := strconv.ParseFloat(lon, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid HOME_LONGITUDE: %w", err)
	}
	if latV < -90 || latV > 90 || lonV < -180 || lonV > 180 {
		return nil, fmt.Errorf("home coordinates out of range: %v,%v", latV, lonV)
	}
	return &Coordinates{Latitude: latV, Longitude: lonV}, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getenvUint(key string, def uint64) (uint64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getenvFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}
