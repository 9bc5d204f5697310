// Package main provides the entrypoint for the lap comparison API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/Ppratik765/Beyond-The-Apex-Quali-only/internal/api"
	"github.com/Ppratik765/Beyond-The-Apex-Quali-only/internal/api/middleware"
	"github.com/Ppratik765/Beyond-The-Apex-Quali-only/internal/app"
	"github.com/Ppratik765/Beyond-The-Apex-Quali-only/internal/auth"
	"github.com/Ppratik765/Beyond-The-Apex-Quali-only/internal/config"
	"github.com/Ppratik765/Beyond-The-Apex-Quali-only/internal/observability"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "beyond-the-apex-api"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting lap comparison API")

	cfg := config.FromEnv()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()

	tp, err := observability.Init(ctx, observability.Config{
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

	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	services, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Error().Err(err).Str("backend", cfg.CacheBackend).Msg("failed to build services")
		os.Exit(1)
	}
	defer services.Close()
	log.Info().
		Str("backend", cfg.CacheBackend).
		Str("provider", services.Sessions.ProviderName()).
		Msg("session cache initialized")

	tokens := auth.NewTokenService(auth.TokenConfig{SigningKey: cfg.AdminSigningKey})
	if !tokens.Enabled() {
		log.Warn().Msg("ADMIN_SIGNING_KEY not set - admin endpoints are disabled")
	}

	router := api.NewRouter(api.RouterConfig{
		Version:     Version,
		BuildTime:   BuildTime,
		Logger:      log,
		ServiceName: serviceName,
		Metrics:     metrics,
		Comparer:    services.Compare,
		Sessions:    services.Sessions,
		Store:       services,
		Registry:    services.Registry,
		Tokens:      tokens,
		CORSOrigins: cfg.CORSAllowedOrigins,
		RequireTLS:  cfg.RequireTLS,
	})

	// Cold comparisons fetch several laps from the provider, so the write
	// timeout is well above PROVIDER_TIMEOUT.
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 3*cfg.ProviderTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

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
