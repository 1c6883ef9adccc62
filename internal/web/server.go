package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/vvka-141/sfdash/internal/config"
	"github.com/vvka-141/sfdash/internal/db/manager"
	"github.com/vvka-141/sfdash/internal/query"
	"github.com/vvka-141/sfdash/pkg/sfdash"
)

// QueryRunner executes catalog statements. *query.Service satisfies it.
type QueryRunner interface {
	Catalog() *query.Catalog
	Run(ctx context.Context, name string) ([]sfdash.Record, error)
}

// StatsSource reports connection manager state. *manager.Manager satisfies it.
type StatsSource interface {
	Stats() manager.Stats
}

// Server is the dashboard HTTP backend.
type Server struct {
	router   *chi.Mux
	queries  QueryRunner
	stats    StatsSource
	logger   sfdash.Logger
	settings config.ServerSettings
}

// NewServer creates a Server with its routes registered.
func NewServer(queries QueryRunner, stats StatsSource, logger sfdash.Logger, settings config.ServerSettings) *Server {
	if queries == nil {
		panic("queries cannot be nil")
	}
	if stats == nil {
		panic("stats cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	s := &Server{
		router:   chi.NewRouter(),
		queries:  queries,
		stats:    stats,
		logger:   logger,
		settings: settings,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := s.router

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", s.handleHealth)

	r.Route("/api/queries", func(r chi.Router) {
		r.Get("/", s.handleListQueries)
		r.With(queryTimeout(s.settings.QueryTimeout)).Get("/{name}", s.handleRunQuery)
	})
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves on the configured address until ctx is cancelled, then shuts
// down gracefully within the shutdown timeout.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.settings.Listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.settings.Listen, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	server := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("Listening on %s", ln.Addr())
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Shutting down HTTP server")
		timeout := s.settings.ShutdownTimeout
		if timeout <= 0 {
			timeout = config.DefaultShutdownTimeout
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-errChan
	case err := <-errChan:
		return err
	}
}
