package container

import (
	"context"
	"fmt"

	"coinsleuth/adapters/badgerstore"
	"coinsleuth/adapters/sqlstore"
	"coinsleuth/app"
	"coinsleuth/internal"
	"coinsleuth/internal/config"
	"coinsleuth/ports"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config
	Logger *internal.Logger

	// Infrastructure
	Repository ports.TableRepository
	health     func() error

	// Services
	Store    *app.StatisticsStore
	Analyzer *app.SequenceAnalyzer
	Tester   *app.SampleTester
	Sampling *app.SamplingService
	Builder  *app.DatabaseBuilder
}

// New creates the container, opening the configured persistent backend
func New(ctx context.Context, cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	c := &Container{
		Config: cfg,
		Logger: internal.NewLogger(internal.ParseLogLevel(cfg.LogLevel)),
	}

	if cfg.Storage.EnablePersistence {
		if err := c.initRepository(ctx); err != nil {
			return nil, fmt.Errorf("failed to initialize repository: %w", err)
		}
	}

	if err := c.initServices(); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	c.Logger.WithComponent("Container").Info("initialized (persistence=%t backend=%s cache=%t)",
		cfg.Storage.EnablePersistence, cfg.Storage.Backend, cfg.Storage.EnableInMemoryCache)
	return c, nil
}

// initRepository opens the persistent tier for the configured backend
func (c *Container) initRepository(ctx context.Context) error {
	repo, err := OpenRepository(ctx, c.Config, c.Config.Storage.Backend, c.Logger)
	if err != nil {
		return err
	}
	c.Repository = repo
	if sqlRepo, ok := repo.(*sqlstore.Repository); ok {
		c.health = func() error { return sqlRepo.DB().Ping() }
	}
	return nil
}

// OpenRepository opens the TableRepository of one backend using the storage
// locations of cfg
func OpenRepository(ctx context.Context, cfg *config.Config, backend string, logger *internal.Logger) (ports.TableRepository, error) {
	switch backend {
	case config.BackendBadger:
		badgerCfg := badgerstore.DefaultConfig(cfg.Storage.BadgerPath())
		badgerCfg.Logger = logger
		return badgerstore.Open(badgerCfg)
	case config.BackendSQLite, config.BackendPostgres:
		sqlCfg := *cfg
		sqlCfg.Storage.Backend = backend
		return sqlstore.Open(ctx, &sqlCfg, logger)
	}
	return nil, fmt.Errorf("unknown storage backend %q", backend)
}

// initServices wires the statistics store and the services built on it
func (c *Container) initServices() error {
	var err error
	c.Store, err = app.NewStatisticsStore(app.StoreConfigFrom(c.Config.Storage), c.Repository, c.Logger)
	if err != nil {
		return err
	}

	workers := c.Config.Analysis.Workers
	c.Analyzer = app.NewSequenceAnalyzer(c.Store, workers, c.Logger)
	c.Tester = app.NewSampleTester(c.Store, c.Logger)
	c.Sampling = app.NewSamplingService(c.Store, c.Store, workers, c.Logger)
	c.Builder = app.NewDatabaseBuilder(c.Store, c.Logger)
	return nil
}

// Health reports whether the persistent tier is reachable
func (c *Container) Health() error {
	if c.health == nil {
		return nil
	}
	return c.health()
}

// Close releases the repository
func (c *Container) Close() error {
	if c.Store != nil {
		return c.Store.Close()
	}
	if c.Repository != nil {
		return c.Repository.Close()
	}
	return nil
}
