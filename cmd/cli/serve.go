package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/anstrom/portward/internal/api"
	apihandlers "github.com/anstrom/portward/internal/api/handlers"
	"github.com/anstrom/portward/internal/config"
	"github.com/anstrom/portward/internal/db"
	"github.com/anstrom/portward/internal/events"
	"github.com/anstrom/portward/internal/janitor"
	"github.com/anstrom/portward/internal/jobs"
	"github.com/anstrom/portward/internal/logging"
	"github.com/anstrom/portward/internal/metrics"
)

const systemMetricsInterval = 15 * time.Second

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the portward API server",
	Long: `Run the REST API server. Scans are accepted as jobs, executed on a bounded
worker pool and, when a database is configured, recorded as sessions.

The server provides:
  - Scan endpoints under /api/v1/scans
  - Stored sessions under /api/v1/sessions
  - Live job events over WebSocket at /api/v1/ws
  - Prometheus metrics at /metrics and API docs at /swagger/`,
	Example: `  portward serve
  portward serve --host 0.0.0.0 --port 8080
  PORTWARD_DATABASE_PASSWORD=secret portward serve --config /etc/portward/config.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "", "address to bind the API server (overrides config)")
	serveCmd.Flags().Int("port", 0, "port for the API server (overrides config)")
	serveCmd.Flags().String("redis", "", "Redis address for job event fan-out (overrides config)")

	_ = viper.BindPFlag("server.listen_addr", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("events.redis_addr", serveCmd.Flags().Lookup("redis"))
}

// service owns everything serve starts, in shutdown order.
type service struct {
	logger    *slog.Logger
	server    *api.Server
	registry  *jobs.Registry
	janitor   *janitor.Janitor
	publisher *events.RedisPublisher
	database  *db.DB
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := startService(ctx, cfg)
	if err != nil {
		return err
	}

	fmt.Printf("API server listening on %s\n", cfg.GetAPIAddress())
	fmt.Printf("Health check: http://%s/api/v1/health\n", cfg.GetAPIAddress())
	fmt.Printf("API documentation: http://%s/swagger/index.html\n", cfg.GetAPIAddress())

	serveErr := svc.server.Start(ctx)
	if serveErr != nil {
		svc.logger.Error("API server error", "error", serveErr)
		_ = svc.server.Stop()
	} else {
		svc.logger.Info("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := svc.shutdown(shutdownCtx); err != nil {
		return err
	}
	return serveErr
}

func startService(ctx context.Context, cfg *config.Config) (*service, error) {
	svc := &service{logger: logging.Component("serve")}
	collector := metrics.NewPrometheusMetrics()
	collector.StartPeriodicUpdates(ctx, systemMetricsInterval)

	deps := api.Dependencies{
		Metrics: collector,
		Build:   apihandlers.BuildInfo{Version: version, Commit: commit, BuildTime: buildTime},
	}

	var store *db.SessionRepository
	if cfg.HasDatabase() {
		svc.logger.Info("Connecting to database", "host", cfg.Database.Host, "database", cfg.Database.Database)
		database, err := db.ConnectAndMigrate(ctx, &cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("database connection failed: %w", err)
		}
		svc.database = database
		store = db.NewSessionRepository(database)
		deps.Sessions = store
		deps.Database = store
	} else {
		svc.logger.Warn("No database configured, scan results will not be persisted")
	}

	hub := apihandlers.NewWebSocketHandler(logging.Component("api"), collector,
		api.OriginChecker(cfg.Server.CORS.AllowedOrigins))
	deps.Hub = hub
	notifiers := []jobs.Notifier{hub}

	if cfg.Events.RedisAddr != "" {
		publisher, err := events.NewRedisPublisher(ctx, events.RedisConfig{
			Addr:        cfg.Events.RedisAddr,
			Password:    cfg.Events.RedisPassword,
			DB:          cfg.Events.RedisDB,
			Channel:     cfg.Events.Channel,
			SnapshotTTL: cfg.Events.SnapshotTTL,
		})
		if err != nil {
			svc.closeDatabase()
			return nil, err
		}
		svc.publisher = publisher
		notifiers = append(notifiers, publisher)
		svc.logger.Info("Publishing job events to Redis", "addr", cfg.Events.RedisAddr, "channel", cfg.Events.Channel)
	}

	svc.registry = newRegistry(cfg, engine{
		store:    store,
		notifier: events.NewMulti(notifiers...),
		metrics:  collector,
		logger:   logging.Component("jobs"),
	})
	deps.Jobs = svc.registry

	if cfg.Retention.Enabled {
		var purger janitor.SessionPurger
		if store != nil {
			purger = store
		}
		j, err := janitor.New(janitor.Config{
			Schedule:      cfg.Retention.Schedule,
			JobTTL:        cfg.Retention.JobTTL,
			SessionMaxAge: cfg.Retention.SessionMaxAge,
		}, svc.registry, purger, collector)
		if err == nil {
			err = j.Start()
		}
		if err != nil {
			_ = svc.shutdown(context.Background())
			return nil, fmt.Errorf("failed to start retention janitor: %w", err)
		}
		svc.janitor = j
	}

	server, err := api.New(cfg, deps)
	if err != nil {
		_ = svc.shutdown(context.Background())
		return nil, fmt.Errorf("failed to create API server: %w", err)
	}
	svc.server = server
	return svc, nil
}

// shutdown stops the janitor, drains the registry so in-flight results are
// persisted and then releases Redis and the database.
func (s *service) shutdown(ctx context.Context) error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if s.janitor != nil {
		s.janitor.Stop()
	}
	if s.registry != nil {
		keep(s.registry.Close(ctx))
	}
	if s.publisher != nil {
		keep(s.publisher.Close(ctx))
	}
	s.closeDatabase()

	if firstErr != nil {
		s.logger.Error("Shutdown incomplete", "error", firstErr)
		return fmt.Errorf("shutdown: %w", firstErr)
	}
	s.logger.Info("Shutdown complete")
	return nil
}

func (s *service) closeDatabase() {
	if s.database == nil {
		return
	}
	if err := s.database.Close(); err != nil {
		s.logger.Warn("Failed to close database connection", "error", err)
	}
	s.database = nil
}
