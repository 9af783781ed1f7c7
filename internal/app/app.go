// Package app wires the calculation stack shared by the server binaries.
package app

import (
	"context"

	"github.com/andresuchdata/safety-stock/internal/cache"
	"github.com/andresuchdata/safety-stock/internal/config"
	"github.com/andresuchdata/safety-stock/internal/pipeline"
	"github.com/andresuchdata/safety-stock/internal/repository"
	"github.com/andresuchdata/safety-stock/internal/repository/postgres"
	"github.com/andresuchdata/safety-stock/internal/service"
	"github.com/andresuchdata/safety-stock/internal/storage"
	"github.com/andresuchdata/safety-stock/pkg/logger"
)

type App struct {
	Calculation *service.CalculationService
	Worker      *pipeline.Worker

	closers []func() error
}

// New builds storage, job store, result repository, cache and the worker
// pool from cfg. Job state lives in Postgres when enabled, in memory
// otherwise. The pool is not started.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	log := logger.Component("app")
	a := &App{}

	objects, err := storage.New(StorageConfig(cfg.Storage))
	if err != nil {
		return nil, err
	}

	var (
		jobs    pipeline.JobStore
		results repository.ResultRepository
	)
	if cfg.Database.Enabled {
		db, err := postgres.NewDB(&cfg.Database)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)

		if err := postgres.Migrate(ctx, db.DB.DB); err != nil {
			a.Close()
			return nil, err
		}
		jobs = pipeline.NewRepository(db.DB.DB)
		results = postgres.NewResultRepository(db)
	} else {
		log.Warn().Msg("database disabled, jobs are kept in memory")
		jobs = pipeline.NewMemoryStore()
		results = repository.NewMemoryResultRepository()
	}

	jobCache, err := cache.NewJobCache(cfg.Cache)
	if err != nil {
		log.Warn().Err(err).Msg("job cache unavailable, continuing without it")
		jobCache = cache.NewNoopJobCache()
	}
	if !cfg.Database.Enabled {
		// In-memory jobs died with the previous process; cached snapshots of
		// them would otherwise still answer status polls.
		if err := jobCache.InvalidateAll(ctx); err != nil {
			log.Warn().Err(err).Msg("failed to clear cached jobs")
		}
	}

	a.Calculation = service.NewCalculationService(jobs, results, objects, jobCache, logger.Component("calculation"))

	orchestrator := pipeline.NewOrchestrator(jobs, a.Calculation, a.Calculation, logger.Component("pipeline"))
	orchestrator.Observe(a.Calculation.OnJobUpdate)

	a.Worker = pipeline.NewWorker(orchestrator, PipelineConfig(cfg.Pipeline), logger.Component("pipeline"))
	a.Calculation.SetWorker(a.Worker)

	return a, nil
}

// Close releases the database connection, if any.
func (a *App) Close() error {
	var first error
	for _, fn := range a.closers {
		if err := fn(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func StorageConfig(cfg config.StorageConfig) storage.Config {
	return storage.Config{
		Driver:    cfg.Driver,
		LocalRoot: cfg.LocalRoot,
		S3: storage.S3Config{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			UseSSL:    cfg.S3UseSSL,
		},
	}
}

func PipelineConfig(cfg config.PipelineConfig) pipeline.PipelineConfig {
	out := pipeline.DefaultPipelineConfig()
	if cfg.Workers > 0 {
		out.WorkerCount = cfg.Workers
	}
	if cfg.QueueSize > 0 {
		out.QueueSize = cfg.QueueSize
	}
	if cfg.JobTimeout > 0 {
		out.JobTimeout = cfg.JobTimeout
	}
	return out
}
