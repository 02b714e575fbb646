// Package main provides the entrypoint for the cache warm-up worker.
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

	"github.com/breatheroute/airseries/internal/api/handler"
	"github.com/breatheroute/airseries/internal/app"
	"github.com/breatheroute/airseries/internal/config"
	"github.com/breatheroute/airseries/internal/series"
	"github.com/breatheroute/airseries/internal/telemetry"
	"github.com/breatheroute/airseries/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "airseries-worker"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting cache warm-up worker")

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if err := cfg.ValidateWorker(); err != nil {
		log.Fatal().Err(err).Msg("worker cache is not shared with the API")
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Env,
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

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize series service")
		return
	}
	defer a.Close()

	sites := make([]series.Request, len(cfg.WarmSites))
	for i, s := range cfg.WarmSites {
		sites[i] = series.Request{Lat: s.Lat, Lon: s.Lon, Name: s.Name}
	}

	refreshCfg := worker.DefaultRefreshConfig()
	refreshCfg.Sites = sites
	refreshCfg.Timeout = cfg.ProviderTimeout + 10*time.Second
	job := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config:  refreshCfg,
		Logger:  log,
		Builder: a.Service,
	})

	scheduler := worker.NewScheduler(job, cfg.RefreshInterval, log)
	if err := scheduler.Start(ctx); err != nil {
		log.Error().Err(err).Msg("failed to start scheduler")
		return
	}
	defer scheduler.Stop()

	// Pub/Sub is optional; without it the worker only runs on its schedule
	if cfg.GCPProjectID != "" && cfg.PubSubSubscription != "" {
		ps, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        cfg.GCPProjectID,
			SubscriptionName: cfg.PubSubSubscription,
			RefreshJob:       job,
			Logger:           log,
		})
		if err != nil {
			log.Error().Err(err).Msg("failed to create pubsub handler")
			return
		}
		defer ps.Close()

		go func() {
			if err := ps.Start(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("pubsub receive stopped")
			}
		}()
	} else {
		log.Info().Msg("pubsub not configured - scheduled warm-up only")
	}

	// Worker also exposes health endpoints for Cloud Run
	ops := handler.NewOpsHandler(handler.OpsConfig{
		Version:   Version,
		BuildTime: BuildTime,
		Registry:  a.Registry,
		Checks:    a.ReadinessChecks,
	})
	mux := chi.NewRouter()
	mux.Get("/health", ops.HealthCheck)
	mux.Get("/ready", ops.ReadinessCheck)
	mux.Get("/status", ops.SystemStatus)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
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

	log.Info().
		Interface("metrics", job.MetricsSnapshot()).
		Msg("worker stopped")
}
