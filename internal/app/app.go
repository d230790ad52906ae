// Package app wires the service together: configuration, storage, queue,
// providers, scheduler, executor and the HTTP surface.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/mindshare/internal/api"
	"github.com/jonesrussell/mindshare/internal/config"
	"github.com/jonesrussell/mindshare/internal/database"
	"github.com/jonesrussell/mindshare/internal/executor"
	"github.com/jonesrussell/mindshare/internal/logger"
	"github.com/jonesrussell/mindshare/internal/provider"
	"github.com/jonesrussell/mindshare/internal/queue"
	"github.com/jonesrussell/mindshare/internal/scheduler"
	"github.com/jonesrussell/mindshare/internal/telemetry"
)

const (
	defaultReadTimeout  = 30 * time.Second
	defaultWriteTimeout = 60 * time.Second
	shutdownTimeout     = 30 * time.Second
)

// App holds the wired service components.
type App struct {
	cfg       *config.Config
	logger    logger.Logger
	db        *sqlx.DB
	streams   *queue.StreamsClient
	producer  *queue.Producer
	telemetry *telemetry.Provider
	scheduler *scheduler.Scheduler
	executor  *executor.Executor
	jobs      *database.JobRepository
	entities  *database.EntityRepository
	responses *database.ResponseRepository
}

// New connects to PostgreSQL and Redis, ensures the schema, and wires all
// components. Call Close when done.
func New(cfg *config.Config, log logger.Logger) (*App, error) {
	db, err := database.NewPostgresConnection(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := database.EnsureSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	streams, err := queue.NewStreamsClient(queue.StreamsConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Prefix:   cfg.Redis.StreamPrefix,
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	prompts := database.NewPromptRepository(db)
	models := database.NewModelRepository(db)
	runs := database.NewRunRepository(db)
	jobs := database.NewJobRepository(db)
	entities := database.NewEntityRepository(db)
	responses := database.NewResponseRepository(db)

	tel := telemetry.NewProvider()
	producer := queue.NewProducer(streams, queue.ProducerConfig{})
	registry := provider.NewRegistry(cfg.Providers, log)

	exec := executor.New(jobs, runs, prompts, models, entities, responses, registry, tel, log)
	sched := scheduler.New(prompts, models, runs, jobs, producer, tel, log,
		cfg.Scheduler.DueAfter, cfg.Scheduler.LeaseTimeout)

	return &App{
		cfg:       cfg,
		logger:    log,
		db:        db,
		streams:   streams,
		producer:  producer,
		telemetry: tel,
		scheduler: sched,
		executor:  exec,
		jobs:      jobs,
		entities:  entities,
		responses: responses,
	}, nil
}

// Close releases database and Redis connections.
func (a *App) Close() {
	if err := a.streams.Close(); err != nil {
		a.logger.Warn("redis close failed", logger.Error(err))
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("database close failed", logger.Error(err))
	}
}

// dbPinger adapts sqlx.DB to the api health-check surface.
type dbPinger struct {
	db *sqlx.DB
}

func (p dbPinger) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// RunServe runs the HTTP API with the periodic scheduler until the context is
// cancelled.
func (a *App) RunServe(ctx context.Context) error {
	router := api.NewRouter(
		a.scheduler, a.executor, a.jobs, a.entities, a.responses,
		dbPinger{a.db}, a.streams, a.telemetry.Handler(), a.cfg, a.logger,
	)

	readTimeout := a.cfg.Server.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = defaultReadTimeout
	}
	writeTimeout := a.cfg.Server.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}

	server := &http.Server{
		Addr:         a.cfg.Server.Address,
		Handler:      router.SetupRoutes(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	runner := scheduler.NewRunner(a.scheduler,
		a.cfg.Scheduler.SweepSchedule, a.cfg.Scheduler.ReconcileInterval, a.logger)
	if err := runner.Start(ctx); err != nil {
		return err
	}
	defer runner.Stop()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening",
			logger.String("address", a.cfg.Server.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// RunWorker runs the queue-consuming executor pool until the context is
// cancelled.
func (a *App) RunWorker(ctx context.Context) error {
	consumerID := a.cfg.Worker.ConsumerGroup + "-" + hostnameOr(uuid.NewString())
	consumer, err := queue.NewConsumer(a.streams, queue.ConsumerConfig{
		Group:        a.cfg.Worker.ConsumerGroup,
		ConsumerID:   consumerID,
		BlockTimeout: a.cfg.Worker.BlockTimeout,
		BatchSize:    a.cfg.Worker.BatchSize,
		ClaimMinIdle: a.cfg.Worker.ClaimMinIdle,
	})
	if err != nil {
		return err
	}

	pool := queue.NewPool(consumer, func(ctx context.Context, jobID string) error {
		_, processErr := a.executor.Process(ctx, jobID)
		return processErr
	}, a.cfg.Worker.Concurrency, a.logger)

	return pool.Run(ctx)
}

// RunSweep performs a single sweep and returns its result.
func (a *App) RunSweep(ctx context.Context) (*scheduler.SweepResult, error) {
	return a.scheduler.Sweep(ctx)
}

func hostnameOr(fallback string) string {
	if host, err := os.Hostname(); err == nil && host != "" {
		return host + "-" + fallback[:8]
	}
	return fallback
}
