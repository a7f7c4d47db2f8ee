package weather

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/weatherdeck/weatherdeck/internal/failure"
	"github.com/weatherdeck/weatherdeck/internal/location"
	"github.com/weatherdeck/weatherdeck/internal/telemetry"
)

// Provider is an upstream forecast source. Each upstream has its own adapter
// so that upstream field names never leave the adapter package.
type Provider interface {
	// Forecast returns current, hourly and daily data for the coordinates.
	Forecast(ctx context.Context, lat, lon float64) (*Forecast, error)

	// Name returns the provider name for logging and metrics.
	Name() string
}

// ServiceConfig holds configuration for the weather service.
type ServiceConfig struct {
	Provider Provider

	// Cache is shared by every fetch. A default 5 minute cache is created when nil.
	Cache *Cache

	Logger  zerolog.Logger
	Metrics *telemetry.UpstreamMetrics

	// Now defaults to time.Now.
	Now func() time.Time
}

// FetchOptions controls a single fetch.
type FetchOptions struct {
	// Refresh skips the cache read. The fresh snapshot is still written back.
	Refresh bool
}

// Service fetches and normalises weather snapshots.
type Service struct {
	provider Provider
	cache    *Cache
	logger   zerolog.Logger
	metrics  *telemetry.UpstreamMetrics
	now      func() time.Time
}

// NewService creates a new weather service.
func NewService(cfg ServiceConfig) *Service {
	cache := cfg.Cache
	if cache == nil {
		cache = NewCache(CacheConfig{Now: cfg.Now})
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		provider: cfg.Provider,
		cache:    cache,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		now:      now,
	}
}

// FetchWeather returns the snapshot for loc. A location without coordinates is a
// caller error. Upstream and normalisation failures are WeatherApiError; no
// partial snapshot is ever returned.
func (s *Service) FetchWeather(ctx context.Context, loc location.Location, opts FetchOptions) (*Snapshot, error) {
	const op = "weather.FetchWeather"

	lat, lon, ok := loc.Coordinates()
	if !ok {
		return nil, failure.New(failure.KindUnknown, op, ErrMissingCoordinates)
	}
	if err := validateCoordinates(lat, lon); err != nil {
		return nil, failure.New(failure.KindUnknown, op, err)
	}

	ctx, span := telemetry.Tracer("weatherdeck/weather").Start(ctx, op)
	defer span.End()
	span.SetAttributes(
		attribute.Float64("location.latitude", lat),
		attribute.Float64("location.longitude", lon),
		attribute.Bool("weather.refresh", opts.Refresh),
	)

	key := CacheKey(lat, lon)
	if !opts.Refresh {
		if snap, hit := s.cache.Get(key); hit {
			s.metrics.RecordCacheHit(ctx, s.provider.Name())
			span.SetAttributes(attribute.Bool("weather.cache_hit", true))
			s.logger.Debug().Str("key", key).Msg("weather served from cache")
			return snap, nil
		}
		s.metrics.RecordCacheMiss(ctx, s.provider.Name())
	}

	s.logger.Debug().
		Float64("lat", lat).
		Float64("lon", lon).
		Str("provider", s.provider.Name()).
		Msg("fetching weather from provider")

	start := time.Now()
	forecast, err := s.provider.Forecast(ctx, lat, lon)
	s.metrics.RecordRequest(ctx, s.provider.Name(), "forecast", time.Since(start), err)
	if err != nil {
		s.logger.Error().Err(err).
			Float64("lat", lat).
			Float64("lon", lon).
			Msg("failed to fetch weather")
		span.RecordError(err)
		span.SetStatus(codes.Error, "upstream failure")
		return nil, failure.New(failure.KindWeatherAPI, op, err)
	}

	snap, err := Normalize(forecast, s.now())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "normalisation failure")
		return nil, failure.New(failure.KindWeatherAPI, op, err)
	}

	s.cache.Set(key, snap)
	return snap, nil
}

// ClearCache drops every cached snapshot.
func (s *Service) ClearCache() {
	s.cache.Clear()
	s.logger.Info().Msg("weather cache cleared")
}

// CacheStats reports the cache size and the provider behind it.
func (s *Service) CacheStats() CacheStats {
	return CacheStats{
		Entries:  s.cache.Len(),
		TTL:      s.cache.TTL(),
		Provider: s.provider.Name(),
	}
}

// CacheStats contains cache statistics.
type CacheStats struct {
	Entries  int
	TTL      time.Duration
	Provider string
}

func validateCoordinates(lat, lon float64) error {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return ErrInvalidCoordinates
	}
	return nil
}
