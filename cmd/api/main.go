// Package main provides the entrypoint for the WeatherDeck API server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/weatherdeck/weatherdeck/internal/aggregator"
	"github.com/weatherdeck/weatherdeck/internal/api"
	"github.com/weatherdeck/weatherdeck/internal/api/middleware"
	"github.com/weatherdeck/weatherdeck/internal/app"
	"github.com/weatherdeck/weatherdeck/internal/config"
	"github.com/weatherdeck/weatherdeck/internal/geolocation"
	"github.com/weatherdeck/weatherdeck/internal/telemetry"
	"github.com/weatherdeck/weatherdeck/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "weatherdeck-api"

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting WeatherDeck API")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if cfg.Environment != "production" {
		log = log.Level(zerolog.DebugLevel)
	} else {
		log = log.Level(zerolog.InfoLevel)
	}

	// Initialize OpenTelemetry
	ctx := context.Background()
	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.OTelEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if cfg.OTelEnabled {
		log.Info().
			Str("otlp_endpoint", cfg.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	httpMetrics, err := middleware.NewMetrics(tp.Meter)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}
	upstreamMetrics, err := tp.UpstreamMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize upstream metrics")
		os.Exit(1)
	}

	svc, err := app.Build(ctx, cfg, log, upstreamMetrics)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize services")
		os.Exit(1)
	}
	defer svc.Close()

	// Scheduled refreshes reuse the last client request, or the home
	// position when nothing has been loaded yet.
	var defaults aggregator.Options
	if cfg.Home != nil {
		defaults.Device = geolocation.StaticDevice{
			Granted:  true,
			Position: &geolocation.Coordinates{Latitude: cfg.Home.Latitude, Longitude: cfg.Home.Longitude},
		}
	}
	session := aggregator.NewSession(svc.Aggregator, defaults, log)

	refreshCfg := worker.DefaultRefreshConfig()
	refreshCfg.Interval = cfg.RefreshInterval
	refreshJob := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config:    refreshCfg,
		Refresher: session,
		Metrics:   upstreamMetrics,
		Logger:    log,
	})
	scheduler := worker.NewScheduler(refreshJob, cfg.RefreshInterval, log)
	if err := scheduler.Start(); err != nil {
		log.Error().Err(err).Msg("failed to start refresh scheduler")
		os.Exit(1)
	}
	defer scheduler.Stop()

	router := api.NewRouter(api.RouterConfig{
		Version:     Version,
		BuildTime:   BuildTime,
		Logger:      log,
		ServiceName: serviceName,
		Metrics:     httpMetrics,
		RequireTLS:  cfg.RequireTLS,
		Resolver:    svc.Resolver,
		Searcher:    svc.Geocoder,
		Weather:     svc.Weather,
		Cities:      svc.Cities,
		Session:     session,
		Registry:    svc.Registry,
		Checks:      svc.Checks,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // a cold locations:load fans out to several upstreams
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}
