// Package app assembles the services shared by the API server and the worker.
package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/weatherdeck/weatherdeck/internal/aggregator"
	"github.com/weatherdeck/weatherdeck/internal/api/handler"
	"github.com/weatherdeck/weatherdeck/internal/cities"
	"github.com/weatherdeck/weatherdeck/internal/config"
	"github.com/weatherdeck/weatherdeck/internal/database"
	"github.com/weatherdeck/weatherdeck/internal/geocoding"
	geocodingopenmeteo "github.com/weatherdeck/weatherdeck/internal/geocoding/openmeteo"
	"github.com/weatherdeck/weatherdeck/internal/geolocation"
	"github.com/weatherdeck/weatherdeck/internal/geolocation/nominatim"
	"github.com/weatherdeck/weatherdeck/internal/location"
	"github.com/weatherdeck/weatherdeck/internal/provider/resilience"
	"github.com/weatherdeck/weatherdeck/internal/telemetry"
	"github.com/weatherdeck/weatherdeck/internal/weather"
	"github.com/weatherdeck/weatherdeck/internal/weather/openmeteo"
	"github.com/weatherdeck/weatherdeck/internal/weather/openweathermap"
)

// Services is the wired object graph.
type Services struct {
	Registry   *resilience.Registry
	Resolver   *geolocation.Resolver
	Geocoder   *geocoding.Service
	Weather    *weather.Service
	Cities     *cities.Service
	Aggregator *aggregator.Aggregator

	// Checks are the readiness probes for stateful dependencies.
	Checks map[string]handler.Check

	pool *pgxpool.Pool
}

// Build wires every service from cfg. metrics may be nil.
func Build(ctx context.Context, cfg *config.Config, log zerolog.Logger, metrics *telemetry.UpstreamMetrics) (*Services, error) {
	s := &Services{
		Registry: resilience.NewRegistry(),
		Checks:   map[string]handler.Check{},
	}

	kv, err := s.openStorage(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	s.Geocoder = geocoding.NewService(geocoding.ServiceConfig{
		Searcher: geocodingopenmeteo.NewClient(geocodingopenmeteo.ClientConfig{
			BaseURL:    cfg.OpenMeteoGeocodeURL,
			Language:   cfg.Language,
			HTTPClient: s.upstreamClient(cfg, log, geocodingopenmeteo.ProviderName, "", false),
			Logger:     log,
		}),
		Logger:  log,
		Metrics: metrics,
	})

	s.Resolver = geolocation.NewResolver(geolocation.ResolverConfig{
		Reverse: nominatim.NewClient(nominatim.ClientConfig{
			BaseURL:    cfg.NominatimURL,
			Language:   cfg.Language,
			HTTPClient: s.upstreamClient(cfg, log, nominatim.ProviderName, cfg.NominatimUserAgent, true),
			Logger:     log,
		}),
		Timeout: cfg.DeviceTimeout,
		Logger:  log,
	})

	s.Weather = weather.NewService(weather.ServiceConfig{
		Provider: s.weatherProvider(cfg, log),
		Cache:    weather.NewCache(weather.CacheConfig{TTL: cfg.CacheTTL}),
		Logger:   log,
		Metrics:  metrics,
	})

	s.Cities = cities.NewService(cities.ServiceConfig{
		Store:    cities.NewStore(kv),
		Geocoder: s.Geocoder,
		Logger:   log,
	})

	s.Aggregator = aggregator.New(aggregator.Config{
		Geo:          s.Resolver,
		Cities:       s.Geocoder,
		Weather:      s.Weather,
		Saved:        s.Cities,
		Duplicates:   location.DuplicateRule{Threshold: cfg.DuplicateThreshold},
		Concurrency:  cfg.AggregatorConcurrency,
		EntryTimeout: cfg.UpstreamTimeout + cfg.DeviceTimeout,
		Logger:       log,
	})

	log.Info().
		Str("weather_provider", cfg.WeatherProvider).
		Str("storage", cfg.StorageDriver).
		Int("upstreams", s.Registry.Len()).
		Msg("services initialized")

	return s, nil
}

// Close releases the storage pool, if any.
func (s *Services) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Services) openStorage(ctx context.Context, cfg *config.Config, log zerolog.Logger) (cities.KV, error) {
	if cfg.StorageDriver != config.StoragePostgres {
		log.Warn().Msg("using in-memory city storage; saved cities are lost on restart")
		return cities.NewMemoryKV(), nil
	}

	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := database.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	log.Info().
		Str("host", cfg.Database.Host).
		Int("port", cfg.Database.Port).
		Str("database", cfg.Database.Database).
		Msg("database connected")

	s.pool = pool
	s.Checks["database"] = func(ctx context.Context) error { return pool.Ping(ctx) }
	return cities.NewPostgresKV(pool), nil
}

func (s *Services) weatherProvider(cfg *config.Config, log zerolog.Logger) weather.Provider {
	if cfg.WeatherProvider == config.ProviderOpenWeatherMap {
		return openweathermap.NewClient(openweathermap.ClientConfig{
			APIKey:     cfg.OpenWeatherMapAPIKey,
			Language:   cfg.Language,
			HTTPClient: s.upstreamClient(cfg, log, openweathermap.ProviderName, "", true),
			Logger:     log,
		})
	}
	return openmeteo.NewClient(openmeteo.ClientConfig{
		BaseURL:    cfg.OpenMeteoForecastURL,
		HTTPClient: s.upstreamClient(cfg, log, openmeteo.ProviderName, "", true),
		Logger:     log,
	})
}

// upstreamClient builds a resilient client that reports to the shared registry.
// Without retry every call is a single attempt behind the breaker; city
// geocoding leaves retrying to its callers.
func (s *Services) upstreamClient(cfg *config.Config, log zerolog.Logger, name, userAgent string, retry bool) *resilience.Client {
	cbConfig := resilience.DefaultCircuitBreakerConfig(name)
	cbConfig.OnStateChange = resilience.LogStateChanges(log)

	clientCfg := resilience.DefaultClientConfig(name)
	clientCfg.Timeout = cfg.UpstreamTimeout
	clientCfg.MaxRetries = cfg.UpstreamMaxRetries
	clientCfg.DisableRetries = !retry || cfg.UpstreamMaxRetries == 0
	clientCfg.UserAgent = userAgent
	clientCfg.CircuitBreaker = &cbConfig
	clientCfg.Registry = s.Registry
	return resilience.NewClient(clientCfg)
}
