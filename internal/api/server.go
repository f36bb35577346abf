// Package api provides the HTTP REST API for portward. It wires the scan,
// session and health handlers onto a gorilla/mux router behind the
// middleware chain and serves Prometheus metrics and Swagger docs.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "github.com/anstrom/portward/docs/swagger" // registers the generated swagger spec
	apihandlers "github.com/anstrom/portward/internal/api/handlers"
	"github.com/anstrom/portward/internal/api/middleware"
	"github.com/anstrom/portward/internal/config"
	"github.com/anstrom/portward/internal/logging"
	"github.com/anstrom/portward/internal/metrics"
)

// Dependencies are the collaborators the server routes to. Jobs is
// required; Sessions and Database may be nil when no database is configured.
type Dependencies struct {
	Jobs     apihandlers.JobService
	Sessions apihandlers.SessionStore
	Database apihandlers.DatabasePinger
	Hub      *apihandlers.WebSocketHandler
	Metrics  *metrics.PrometheusMetrics
	Build    apihandlers.BuildInfo
}

// Server represents the API server.
type Server struct {
	httpServer *http.Server
	router     *mux.Router
	config     *config.Config
	logger     *slog.Logger
	hub        *apihandlers.WebSocketHandler
	metrics    *metrics.PrometheusMetrics

	// ends the rate limiter cleanup
	cancel context.CancelFunc
}

// New creates a new API server instance.
func New(cfg *config.Config, deps Dependencies) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if deps.Jobs == nil {
		return nil, fmt.Errorf("job service is required")
	}

	logger := logging.Component("api")

	var collector metrics.Collector
	if deps.Metrics != nil {
		collector = deps.Metrics
	}

	hub := deps.Hub
	if hub == nil {
		hub = apihandlers.NewWebSocketHandler(logger, collector, OriginChecker(cfg.Server.CORS.AllowedOrigins))
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		router:  mux.NewRouter(),
		config:  cfg,
		logger:  logger,
		hub:     hub,
		metrics: deps.Metrics,
		cancel:  cancel,
	}

	s.setupMiddleware(ctx, collector)
	s.setupRoutes(deps)

	s.httpServer = &http.Server{
		Addr:              cfg.GetAPIAddress(),
		Handler:           s.handler(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	return s, nil
}

// handler wraps the router with the handlers that must also see requests
// no route matches, such as CORS preflights.
func (s *Server) handler() http.Handler {
	cors := s.config.Server.CORS
	var h http.Handler = handlers.CORS(
		handlers.AllowedOrigins(cors.AllowedOrigins),
		handlers.AllowedMethods(cors.AllowedMethods),
		handlers.AllowedHeaders(cors.AllowedHeaders),
		handlers.ExposedHeaders([]string{"X-Request-ID", "Location", "Retry-After"}),
	)(s.router)

	if s.config.Server.TrustProxyHeaders {
		h = handlers.ProxyHeaders(h)
	}
	return h
}

func (s *Server) setupMiddleware(ctx context.Context, collector metrics.Collector) {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recovery(s.logger))
	s.router.Use(middleware.Logging(s.logger))
	s.router.Use(middleware.Metrics(collector))

	if rl := s.config.Server.RateLimit; rl.Enabled {
		s.router.Use(middleware.RateLimit(ctx, rl.RequestsPerSecond, rl.BurstSize, s.logger))
	}

	s.router.Use(middleware.SecurityHeaders)
	s.router.Use(middleware.ContentType)
}

func (s *Server) setupRoutes(deps Dependencies) {
	scans := apihandlers.NewScanHandler(deps.Jobs, s.logger, s.config.Server.MaxRequestSize)
	sessions := apihandlers.NewSessionHandler(deps.Sessions, s.logger)
	health := apihandlers.NewHealthHandler(deps.Database, deps.Jobs, deps.Build, s.logger)

	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/scans", scans.CreateScan).Methods(http.MethodPost)
	api.HandleFunc("/scans", scans.ListScans).Methods(http.MethodGet)
	api.HandleFunc("/scans/{id}", scans.GetScan).Methods(http.MethodGet)
	api.HandleFunc("/scans/{id}/cancel", scans.CancelScan).Methods(http.MethodPost)

	api.HandleFunc("/sessions", sessions.ListSessions).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}", sessions.GetSession).Methods(http.MethodGet)
	api.HandleFunc("/stats", sessions.GetStatistics).Methods(http.MethodGet)

	api.HandleFunc("/health", health.Health).Methods(http.MethodGet)
	api.HandleFunc("/liveness", health.Liveness).Methods(http.MethodGet)
	api.HandleFunc("/status", health.Status).Methods(http.MethodGet)
	api.HandleFunc("/version", health.Version).Methods(http.MethodGet)

	api.HandleFunc("/ws", s.hub.Subscribe).Methods(http.MethodGet)

	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}

	s.router.PathPrefix("/swagger/").Handler(httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
		httpSwagger.DeepLinking(true),
		httpSwagger.DocExpansion("none"),
	))
	s.router.HandleFunc("/docs", redirectToSwagger).Methods(http.MethodGet)
}

func redirectToSwagger(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/swagger/index.html", http.StatusMovedPermanently)
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, listener)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	s.logger.Info("Starting API server",
		"address", listener.Addr().String(),
		"read_timeout", s.httpServer.ReadTimeout,
		"write_timeout", s.httpServer.WriteTimeout)

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("API server failed: %w", err)
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		return s.Stop()
	case err, ok := <-errChan:
		if !ok {
			return nil
		}
		return err
	}
}

// Stop disconnects WebSocket subscribers and gracefully stops the server.
func (s *Server) Stop() error {
	s.logger.Info("Stopping API server")
	s.cancel()
	s.hub.Close()

	timeout := s.config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("API server shutdown error", "error", err)
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("API server stopped")
	return nil
}

// Router returns the configured router.
func (s *Server) Router() *mux.Router {
	return s.router
}

// Handler returns the full handler chain, including CORS.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Address returns the configured listen address.
func (s *Server) Address() string {
	return s.httpServer.Addr
}

// OriginChecker returns a WebSocket origin check that accepts the given
// CORS origins. An empty list or "*" accepts every origin. Requests without
// an Origin header are not from browsers and are always accepted.
func OriginChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 || slices.Contains(allowed, "*") {
		return nil
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, origin)
	}
}
