// Package api provides the HTTP API for WeatherDeck.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/weatherdeck/weatherdeck/internal/api/handler"
	"github.com/weatherdeck/weatherdeck/internal/api/middleware"
	"github.com/weatherdeck/weatherdeck/internal/provider/resilience"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics
	RequireTLS  bool

	Resolver handler.CurrentLocationResolver
	Searcher handler.CitySearcher
	Weather  handler.WeatherService
	Cities   handler.CityService
	Session  handler.LocationSession

	Registry *resilience.Registry
	Checks   map[string]handler.Check
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "weatherdeck-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))         // Structured logging
	r.Use(middleware.Recovery(cfg.Logger))       // Panic recovery
	r.Use(chimiddleware.RealIP)                  // Real IP extraction
	r.Use(middleware.SecurityHeaders)            // Security headers
	r.Use(middleware.RequireTLS(cfg.RequireTLS)) // TLS enforcement behind a proxy
	r.Use(middleware.ContentTypeJSON)            // JSON content type
	r.Use(middleware.RequireJSON)                // Reject non-JSON bodies

	opsHandler := handler.NewOpsHandler(handler.OpsConfig{
		Version:   cfg.Version,
		BuildTime: cfg.BuildTime,
		Registry:  cfg.Registry,
		Checks:    cfg.Checks,
	})
	locationHandler := handler.NewLocationHandler(cfg.Resolver, cfg.Searcher)
	weatherHandler := handler.NewWeatherHandler(cfg.Weather)
	locationsHandler := handler.NewLocationsHandler(cfg.Session)
	citiesHandler := handler.NewCitiesHandler(cfg.Cities)

	searchRateLimit := middleware.RateLimitByIP(middleware.SearchRateLimit)     // 60 req/min
	refreshRateLimit := middleware.RateLimitByIP(middleware.RefreshRateLimit)   // 10 req/min
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit) // 120 req/min

	r.Route("/v1", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.Get("/status", opsHandler.SystemStatus)
		})

		// Geocoding hits rate-limited public upstreams
		r.Group(func(r chi.Router) {
			r.Use(searchRateLimit)
			r.Post("/location:resolve", locationHandler.ResolveCurrent)
			r.Post("/geocode", locationHandler.Geocode)
			r.Get("/geocode/suggestions", locationHandler.Suggestions)
		})

		// Cache-bypassing endpoints
		r.Group(func(r chi.Router) {
			r.Use(refreshRateLimit)
			r.Post("/weather/cache:clear", weatherHandler.ClearCache)
			r.Post("/locations:load", locationsHandler.Load)
		})

		r.Group(func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Post("/weather", weatherHandler.Fetch)
			r.Get("/weather/cache", weatherHandler.CacheStats)

			r.Get("/locations", locationsHandler.Latest)
			r.Put("/locations/active", locationsHandler.Activate)

			r.Route("/cities", func(r chi.Router) {
				r.Get("/", citiesHandler.List)
				r.Post("/", citiesHandler.Add)
				r.Delete("/{cityId}", citiesHandler.Remove)
			})
		})
	})

	return r
}
