package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"imagequeue/internal/bootstrap"
	"imagequeue/internal/http/handlers"
	httpapi "imagequeue/internal/http/httpapi"
	"imagequeue/internal/infra"
	"imagequeue/internal/jobs"
)

func main() {
	// Optional .env
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, err := bootstrap.OpenBackend(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.StoreBackend).Msg("failed to open job store")
	}
	defer backend.Close()

	artifacts, err := bootstrap.OpenArtifacts(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.ArtifactBackend).Msg("failed to configure artifact storage")
	}

	generator := bootstrap.NewGenerator(ctx, cfg, backend, logger)
	service := bootstrap.NewService(cfg, backend, artifacts.Store, generator, logger)

	app := handlers.NewApp(service, logger, cfg.JobRetention)
	app.Ping = backend.Ping

	router := httpapi.NewRouter(app, httpapi.Options{
		Logger:          logger,
		AdminToken:      cfg.AdminToken,
		RateLimitPerMin: cfg.RateLimitPerMin,
		StaticDir:       artifacts.StaticDir,
	})
	if cfg.AdminToken == "" {
		logger.Warn().Msg("ADMIN_TOKEN is empty; admin routes are unauthenticated")
	}

	// The API process also purges expired jobs unless a dedicated worker does.
	if cfg.GCInterval > 0 {
		collector := jobs.NewCollector(service, cfg.JobRetention, cfg.GCInterval, logger.With().Str("component", "collector").Logger())
		go func() { _ = collector.Run(ctx) }()
	}

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Str("store", cfg.StoreBackend).Str("artifacts", cfg.ArtifactBackend).Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil {
			logger.Error().Err(err).Msg("http server failed")
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	// Background runs finish or time out on their own; give them the same
	// grace period before the store closes underneath them.
	if err := service.Wait(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("in-flight jobs still running at shutdown")
	}
	logger.Info().Msg("server stopped")
}
