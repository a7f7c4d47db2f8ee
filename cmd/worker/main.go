// Package main provides the entrypoint for the WeatherDeck refresh worker.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/weatherdeck/weatherdeck/internal/aggregator"
	"github.com/weatherdeck/weatherdeck/internal/api/handler"
	"github.com/weatherdeck/weatherdeck/internal/api/middleware"
	"github.com/weatherdeck/weatherdeck/internal/api/response"
	"github.com/weatherdeck/weatherdeck/internal/app"
	"github.com/weatherdeck/weatherdeck/internal/config"
	"github.com/weatherdeck/weatherdeck/internal/geolocation"
	"github.com/weatherdeck/weatherdeck/internal/telemetry"
	"github.com/weatherdeck/weatherdeck/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "weatherdeck-worker"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting WeatherDeck worker")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	upstreamMetrics, err := tp.UpstreamMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize upstream metrics")
	}

	svc, err := app.Build(ctx, cfg, log, upstreamMetrics)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize services")
	}
	defer svc.Close()

	// Headless refreshes have no device; the configured home stands in for it.
	var defaults aggregator.Options
	if cfg.Home != nil {
		defaults.Device = geolocation.StaticDevice{
			Granted:  true,
			Position: &geolocation.Coordinates{Latitude: cfg.Home.Latitude, Longitude: cfg.Home.Longitude},
		}
	} else {
		log.Warn().Msg("HOME_LATITUDE/HOME_LONGITUDE unset; refreshing saved cities only")
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
		log.Fatal().Err(err).Msg("failed to start refresh scheduler")
	}
	defer scheduler.Stop()

	// Pub/Sub triggers on-demand refreshes and health checks
	var pubsubHandler *worker.PubSubHandler
	if cfg.PubSubEnabled() {
		dispatcher := worker.NewDispatcher(worker.DispatcherConfig{
			RefreshJob: refreshJob,
			Registry:   svc.Registry,
			Logger:     log,
		})
		pubsubHandler, err = worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        cfg.PubSubProjectID,
			SubscriptionName: cfg.PubSubSubscription,
			Dispatcher:       dispatcher,
			Logger:           log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create Pub/Sub handler")
		}
		defer func() {
			if closeErr := pubsubHandler.Close(); closeErr != nil {
				log.Error().Err(closeErr).Msg("failed to close Pub/Sub client")
			}
		}()

		go func() {
			if err := pubsubHandler.Start(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("Pub/Sub receiver stopped")
			}
		}()
	} else {
		log.Info().Msg("Pub/Sub not configured; running on schedule only")
	}

	// Worker also exposes health endpoints for Cloud Run
	ops := handler.NewOpsHandler(handler.OpsConfig{
		Version:   Version,
		BuildTime: BuildTime,
		Registry:  svc.Registry,
		Checks:    svc.Checks,
	})
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(log))
	r.Get("/health", ops.HealthCheck)
	r.Get("/ready", ops.ReadinessCheck)
	r.Get("/status", ops.SystemStatus)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		snapshot := refreshJob.MetricsSnapshot()
		snapshot["scheduler_running"] = scheduler.IsRunning()
		response.JSON(w, r, http.StatusOK, snapshot)
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}
