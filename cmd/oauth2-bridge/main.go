// Command oauth2-bridge serves the Galette OAuth2 authorization bridge.
//
// Purpose:
//
//	This binary lets relying parties (Nextcloud, wikis, forums) sign Galette
//	members in with the OAuth2 authorization code flow. It initializes the
//	runtime via bootstrap, registers the bridge routes and serves HTTP
//	requests with graceful shutdown handling.
//
// Debugging Notes:
//   - Server starts on HTTP_PORT (default 8080)
//   - Routes live under PUBLIC_BASE_PATH; /healthz, /readyz and /metrics do not
//   - Readiness probe checks Postgres and Redis connectivity
//   - Graceful shutdown allows in-flight requests to complete (10s timeout)
//
// Error Handling:
//   - Configuration errors exit with code 1
//   - Bootstrap failures log fatal and exit
//   - Shutdown errors log an error and exit with code 1
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/galette-community/plugin-oauth2/internal/bootstrap"
	"github.com/galette-community/plugin-oauth2/internal/config"
	"github.com/galette-community/plugin-oauth2/internal/httpapi/auth"
	"github.com/galette-community/plugin-oauth2/internal/logging"
	"github.com/galette-community/plugin-oauth2/internal/server"
)

func main() {
	cfg := config.MustLoad()
	logger := logging.New(cfg.ServiceName, cfg.LogLevel)
	logger.Info().
		Str("env", cfg.Environment).
		Int("port", cfg.HTTPPort).
		Str("base_path", cfg.BasePath).
		Msg("starting oauth2 bridge")

	ctx := context.Background()
	runtime, err := bootstrap.Initialize(ctx, cfg, bootstrap.WithLogger(logger))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to bootstrap runtime")
	}
	logger.Info().Msg("runtime dependencies initialized")

	srv := server.New(server.Options{
		Port:        cfg.HTTPPort,
		Logger:      logging.Component(logger, "http"),
		ServiceName: cfg.ServiceName,
		Readiness:   runtime.ReadinessProbe,
		Debug:       cfg.Environment == "development",
		RegisterRoutes: func(r chi.Router) {
			auth.RegisterRoutes(r, runtime)
		},
	})

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("oauth2 bridge server failed")
		}
	}()

	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
		os.Exit(1)
	}
	if err := runtime.Close(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to cleanly close runtime")
	}

	logger.Info().Msg("oauth2 bridge stopped")
}
