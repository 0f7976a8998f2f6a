package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"imagequeue/internal/bootstrap"
	"imagequeue/internal/infra"
	"imagequeue/internal/jobs"
)

func main() {
	once := flag.Bool("once", false, "purge expired jobs once and exit")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv).With().Str("cmd", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := bootstrap.OpenBackend(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to open job store")
	}
	defer backend.Close()

	// Purging never generates or stores images, so the service is built
	// without a pipeline.
	service := jobs.NewService(backend.Jobs, nil, nil, nil, logger)
	collector := jobs.NewCollector(service, cfg.JobRetention, cfg.GCInterval, logger)

	if *once {
		n, err := collector.RunOnce(ctx)
		if err != nil {
			logger.Fatal().Err(err).Msg("worker: purge failed")
		}
		logger.Info().Int("deleted", n).Msg("worker: purge complete")
		return
	}

	if err := collector.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker: stopped with error")
	}
	logger.Info().Msg("worker: stopped")
}
