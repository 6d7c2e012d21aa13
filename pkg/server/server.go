// Package server exposes the session manager over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/entrhq/chromectl/pkg/browser"
	"github.com/entrhq/chromectl/pkg/tools"
)

const shutdownTimeout = 10 * time.Second

// Config configures the HTTP server.
type Config struct {
	// Listen is the address to bind, e.g. ":8700"
	Listen string

	// EnableEvents serves the per-session websocket event stream
	EnableEvents bool
}

// Server serves the session API.
type Server struct {
	cfg      Config
	manager  *browser.Manager
	tools    *tools.Registry
	gatherer prometheus.Gatherer
	logger   browser.Logger
	upgrader websocket.Upgrader
	started  time.Time
}

// Option customizes a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l browser.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithGatherer serves metrics from g instead of the default registry.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// New creates a server over manager. registry backs the /v1/tools routes.
func New(cfg Config, manager *browser.Manager, registry *tools.Registry, opts ...Option) *Server {
	s := &Server{
		cfg:      cfg,
		manager:  manager,
		tools:    registry,
		gatherer: prometheus.DefaultGatherer,
		logger:   browser.NopLogger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		started: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the router serving every route.
func (s *Server) Handler() http.Handler {
	router := chi.NewRouter()
	router.Use(s.recoverMiddleware)

	router.Get("/healthz", s.handleHealthz)
	router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	router.Route("/v1", func(r chi.Router) {
		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", s.handleLaunch)
			r.Get("/", s.handleList)
			r.Route("/{sessionID}", func(r chi.Router) {
				r.Get("/", s.handleGet)
				r.Delete("/", s.handleClose)
				r.Post("/navigate", s.handleNavigate)
				r.Post("/evaluate", s.handleEvaluate)
				r.Post("/screenshot", s.handleScreenshot)
				r.Post("/pdf", s.handlePDF)
				r.Get("/content", s.handleContent)
				r.Get("/outline", s.handleOutline)
				r.Get("/pages", s.handlePages)
				r.Delete("/pages/{pageID}", s.handleClosePage)
				if s.cfg.EnableEvents {
					r.Get("/events", s.handleEvents)
				}
			})
		})
		if s.tools != nil {
			r.Get("/tools", s.handleListTools)
			r.Post("/tools/{name}", s.handleRunTool)
		}
	})
	return router
}

// Serve listens on cfg.Listen until ctx is canceled, then shuts the HTTP
// server down gracefully. It does not shut down the manager.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Listen, err)
	}
	return s.serve(ctx, ln)
}

func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
		MaxHeaderBytes:    1 << 20,
	}

	serverErr := make(chan error, 1)
	go func() {
		s.logger.Infof("serving session API on %s", ln.Addr())
		serverErr <- httpServer.Serve(ln)
	}()

	select {
	case err := <-serverErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	if err := <-serverErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Infof("session API stopped")
	return nil
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.logger.Errorf("panic serving %s %s: %v", r.Method, r.URL.Path, rec)
				respondError(w, http.StatusInternalServerError, fmt.Errorf("internal error"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": len(s.manager.List()),
		"uptime":   time.Since(s.started).Round(time.Second).String(),
	})
}
