package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/FACorreiaa/statement-ingest/internal/domain/categorization"
	importrepo "github.com/FACorreiaa/statement-ingest/internal/domain/import/repository"
	importservice "github.com/FACorreiaa/statement-ingest/internal/domain/import/service"
	"github.com/FACorreiaa/statement-ingest/pkg/config"
	"github.com/FACorreiaa/statement-ingest/pkg/db"
	"github.com/FACorreiaa/statement-ingest/pkg/storage"
)

// Dependencies holds everything a database-backed command needs
type Dependencies struct {
	Config   *config.Config
	DB       *db.DB
	Logger   *slog.Logger
	Registry *prometheus.Registry

	// Repositories
	ImportRepo         importrepo.ImportRepository
	CategorizationRepo *categorization.Repository

	// Services
	CategorizationService *categorization.Service
	ImportService         *importservice.ImportService
	Archive               storage.Storage
}

// InitDependencies connects to the database, migrates it and wires the services
func InitDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config:   cfg,
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
	}

	if err := deps.initDatabase(ctx); err != nil {
		return nil, fmt.Errorf("failed to init database: %w", err)
	}

	deps.initRepositories()

	if err := deps.initServices(); err != nil {
		deps.Cleanup()
		return nil, fmt.Errorf("failed to init services: %w", err)
	}

	logger.Debug("all dependencies initialized")
	return deps, nil
}

// initDatabase opens the pool and applies pending migrations
func (d *Dependencies) initDatabase(ctx context.Context) error {
	database, err := d.openDatabase(ctx)
	if err != nil {
		return err
	}
	d.DB = database

	if err := d.DB.RunMigrations(ctx); err != nil {
		d.DB.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (d *Dependencies) openDatabase(ctx context.Context) (*db.DB, error) {
	c := d.Config.Database
	return db.New(ctx, db.Config{
		DSN:             c.DSN(),
		MaxConns:        int32(c.MaxConns),
		MinConns:        int32(c.MinConns),
		MaxConnLifetime: c.MaxConnLifetime,
		MaxConnIdleTime: 10 * time.Minute,
	}, d.Logger)
}

func (d *Dependencies) initRepositories() {
	d.ImportRepo = importrepo.NewPostgresRepository(d.DB.Pool)
	d.CategorizationRepo = categorization.NewRepository(d.DB.Pool)
}

func (d *Dependencies) initServices() error {
	d.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	d.CategorizationService = categorization.NewService(d.CategorizationRepo, d.Logger)

	d.ImportService = importservice.NewImportService(d.ImportRepo, d.Logger).
		WithCategorizationService(newCategorizationAdapter(d.CategorizationService)).
		WithMetrics(importservice.NewMetrics(d.Registry))

	archive, err := storage.New(storage.Config{LocalPath: d.Config.Import.ArchiveDir})
	if err != nil {
		return fmt.Errorf("failed to init archive: %w", err)
	}
	if archive != nil {
		d.Archive = archive
		d.ImportService.WithArchive(archive)
	}
	return nil
}

// Cleanup closes all resources
func (d *Dependencies) Cleanup() {
	if d.DB != nil {
		d.DB.Close()
	}
}

// dependencies is the helper commands use; the caller must Cleanup.
func (a *app) dependencies(ctx context.Context) (*Dependencies, error) {
	return InitDependencies(ctx, a.cfg, a.logger)
}
