package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/anstrom/portward/internal/config"
	"github.com/anstrom/portward/internal/db"
	"github.com/anstrom/portward/internal/jobs"
	"github.com/anstrom/portward/internal/metrics"
	"github.com/anstrom/portward/internal/probe"
	"github.com/anstrom/portward/internal/resolver"
	"github.com/anstrom/portward/internal/scanning"
)

// engine holds what a registry needs beyond its configuration.
type engine struct {
	store    *db.SessionRepository
	notifier jobs.Notifier
	metrics  metrics.Collector
	logger   *slog.Logger
}

func registryConfig(cfg *config.Config) jobs.Config {
	s := cfg.Scanning
	return jobs.Config{
		MaxConcurrentScans: s.MaxConcurrentScans,
		QueueSize:          s.QueueSize,
		PersistRetries:     s.PersistRetries,
		PersistRetryDelay:  s.PersistRetryDelay,
		Defaults: scanning.Defaults{
			StartPort:      s.DefaultStartPort,
			EndPort:        s.DefaultEndPort,
			Timeout:        s.DefaultTimeout,
			Concurrency:    s.DefaultConcurrency,
			MaxConcurrency: s.MaxConcurrency,
		},
	}
}

// newRegistry builds the probe, scheduler and resolver from cfg and
// starts a job registry on top of them.
func newRegistry(cfg *config.Config, e engine) *jobs.Registry {
	schedulerOpts := []scanning.SchedulerOption{}
	if cfg.Scanning.ProbeRate > 0 {
		schedulerOpts = append(schedulerOpts, scanning.WithProbeRate(cfg.Scanning.ProbeRate))
	}
	if e.logger != nil {
		schedulerOpts = append(schedulerOpts, scanning.WithLogger(e.logger.With("component", "scanner")))
	}
	scheduler := scanning.NewScheduler(probe.New(), schedulerOpts...)

	opts := []jobs.Option{
		jobs.WithNotifier(e.notifier),
		jobs.WithMetrics(e.metrics),
	}
	// A nil *SessionRepository must not become a non-nil Store.
	if e.store != nil {
		opts = append(opts, jobs.WithStore(e.store))
	}
	if e.logger != nil {
		opts = append(opts, jobs.WithLogger(e.logger))
	}

	return jobs.New(registryConfig(cfg), scheduler, resolver.New(cfg.Scanning.DNSServer), opts...)
}

// openDatabase connects to the configured database, applying migrations
// when migrate is set.
func openDatabase(ctx context.Context, cfg *config.Config, migrate bool) (*db.DB, error) {
	if !cfg.HasDatabase() {
		return nil, fmt.Errorf("no database configured: set database.database in %s or PORTWARD_DATABASE_DATABASE",
			getConfigFilePath())
	}

	var (
		database *db.DB
		err      error
	)
	if migrate {
		database, err = db.ConnectAndMigrate(ctx, &cfg.Database)
	} else {
		database, err = db.Connect(ctx, &cfg.Database)
	}
	if err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}
	return database, nil
}

// withSessions runs fn against the session repository and closes the
// connection afterwards.
func withSessions(ctx context.Context, fn func(*db.SessionRepository) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	database, err := openDatabase(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := database.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close database connection: %v\n", closeErr)
		}
	}()

	return fn(db.NewSessionRepository(database))
}
