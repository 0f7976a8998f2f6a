// Package bootstrap assembles the job service from configuration. The API
// server, the collector worker and the admin CLI share it so every binary
// talks to the same backend the same way.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"

	"imagequeue/internal/adapter/repo"
	"imagequeue/internal/clock"
	"imagequeue/internal/coordinator"
	"imagequeue/internal/domain"
	"imagequeue/internal/infra"
	"imagequeue/internal/infra/credentials"
	"imagequeue/internal/jobs"
	"imagequeue/internal/pipeline"
	"imagequeue/internal/providers/image"
	"imagequeue/internal/storage"
)

// Backend is an opened job store together with its optional subject store.
type Backend struct {
	Jobs     domain.JobRepository
	Subjects domain.SubjectStore
	// SQL is set for the postgres backend only.
	SQL  infra.SQLExecutor
	Ping func(ctx context.Context) error

	closers []func()
}

// Close releases the backend connections.
func (b *Backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
	b.closers = nil
}

// OpenBackend connects to the configured store and ensures its schema.
func OpenBackend(ctx context.Context, cfg *infra.Config, logger zerolog.Logger) (*Backend, error) {
	switch cfg.StoreBackend {
	case infra.BackendPostgres:
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return postgresBackend(ctx, pool, logger)
	case infra.BackendMongo:
		client, err := infra.NewMongoClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return mongoBackend(ctx, client, cfg)
	case infra.BackendSQLite:
		db, err := infra.OpenSQLite(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return sqliteBackend(ctx, db, logger)
	case infra.BackendMemory:
		logger.Warn().Msg("using in-memory job store; jobs are lost on restart and not shared between processes")
		return &Backend{Jobs: repo.NewMemoryJobRepository(time.Now)}, nil
	default:
		return nil, fmt.Errorf("unsupported store backend %q", cfg.StoreBackend)
	}
}

func postgresBackend(ctx context.Context, pool *pgxpool.Pool, logger zerolog.Logger) (*Backend, error) {
	runner := infra.NewSQLRunner(pool, logger)
	jobRepo := repo.NewJobRepository(runner)
	if err := jobRepo.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure job schema: %w", err)
	}
	if err := credentials.NewStore(runner).EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure credentials schema: %w", err)
	}
	return &Backend{
		Jobs:     jobRepo,
		Subjects: repo.NewSubjectRepository(runner),
		SQL:      runner,
		Ping:     pool.Ping,
		closers:  []func(){pool.Close},
	}, nil
}

func mongoBackend(ctx context.Context, client *mongo.Client, cfg *infra.Config) (*Backend, error) {
	disconnect := func() { _ = client.Disconnect(context.Background()) }
	db := client.Database(cfg.MongoDB)
	jobRepo := repo.NewMongoJobRepository(db, time.Now)
	if err := jobRepo.EnsureIndexes(ctx); err != nil {
		disconnect()
		return nil, fmt.Errorf("ensure job indexes: %w", err)
	}
	return &Backend{
		Jobs:     jobRepo,
		Subjects: repo.NewMongoSubjectRepository(db, cfg.SubjectCollection),
		Ping:     func(ctx context.Context) error { return client.Ping(ctx, nil) },
		closers:  []func(){disconnect},
	}, nil
}

func sqliteBackend(ctx context.Context, db *sql.DB, logger zerolog.Logger) (*Backend, error) {
	jobRepo := repo.NewSQLiteJobRepository(db, logger, time.Now)
	if err := jobRepo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure job schema: %w", err)
	}
	return &Backend{
		Jobs:    jobRepo,
		Ping:    db.PingContext,
		closers: []func(){func() { _ = db.Close() }},
	}, nil
}

// Artifacts is the configured artifact store. StaticDir is set when files
// land on local disk and should be served by the API.
type Artifacts struct {
	Store     storage.ArtifactStore
	StaticDir string
}

func OpenArtifacts(ctx context.Context, cfg *infra.Config) (*Artifacts, error) {
	switch cfg.ArtifactBackend {
	case infra.ArtifactMinIO:
		store, err := storage.NewMinIOStore(storage.MinIOOptions{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			Bucket:    cfg.MinIOBucket,
			UseSSL:    cfg.MinIOUseSSL,
			PublicURL: cfg.MinIOPublicURL,
		})
		if err != nil {
			return nil, err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return &Artifacts{Store: store}, nil
	default:
		path := cfg.StoragePath
		if path == "" {
			path = "./storage"
		}
		if !filepath.IsAbs(path) {
			if abs, err := filepath.Abs(path); err == nil {
				path = abs
			}
		}
		store, err := storage.NewFileStore(path, cfg.StorageBaseURL)
		if err != nil {
			return nil, err
		}
		return &Artifacts{Store: store, StaticDir: store.BasePath()}, nil
	}
}

// NewGenerator returns the Gemini generator, falling back to the synthetic
// one when no API key is configured. The key may also come from the
// credentials table on the postgres backend.
func NewGenerator(ctx context.Context, cfg *infra.Config, backend *Backend, logger zerolog.Logger) image.Generator {
	apiKey := strings.TrimSpace(cfg.GeminiAPIKey)
	if apiKey == "" && backend.SQL != nil {
		stored, err := credentials.NewStore(backend.SQL).GeminiAPIKey(ctx)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to load gemini api key from store")
		} else {
			apiKey = stored
		}
	}

	var gen image.Generator
	if apiKey == "" {
		logger.Warn().Msg("gemini api key missing, using synthetic image generation")
		gen = image.NewSyntheticGenerator(512)
	} else {
		gemini, err := image.NewGeminiGenerator(image.GeminiOptions{
			APIKey:  apiKey,
			BaseURL: cfg.GeminiBaseURL,
			Model:   cfg.GeminiModel,
			Logger:  &logger,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("failed to configure gemini, using synthetic image generation")
			gen = image.NewSyntheticGenerator(512)
		} else {
			gen = gemini
		}
	}

	return image.NewRetryingGenerator(gen, image.RetryOptions{
		MaxRetries: cfg.GenMaxRetries,
		BaseDelay:  cfg.GenBaseDelay,
		Logger:     logger,
	})
}

// NewService wires the coordinator and pipeline into a job service.
func NewService(cfg *infra.Config, backend *Backend, artifacts storage.ArtifactStore, gen image.Generator, logger zerolog.Logger) *jobs.Service {
	clk := clock.Real{}
	coord := coordinator.New(backend.Jobs, clk, logger.With().Str("component", "coordinator").Logger(), coordinator.Options{
		MaxWait:       cfg.JobMaxWait,
		ZombieTimeout: cfg.JobZombieTimeout,
		MinSpacing:    cfg.JobMinSpacing,
		PollInterval:  cfg.JobPollInterval,
	})
	pipe := pipeline.New(pipeline.Options{
		Jobs:              backend.Jobs,
		Generator:         gen,
		Artifacts:         artifacts,
		Subjects:          backend.Subjects,
		SubjectImageField: cfg.SubjectImageField,
		HeartbeatInterval: cfg.JobHeartbeat,
		Clock:             clk,
		Logger:            logger.With().Str("component", "pipeline").Logger(),
	})
	return jobs.NewService(backend.Jobs, coord, pipe, clk, logger.With().Str("component", "jobs").Logger())
}
