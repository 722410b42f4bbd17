package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sundayezeilo/shortlink/internal/admin"
	"github.com/sundayezeilo/shortlink/internal/config"
	"github.com/sundayezeilo/shortlink/internal/httpx"
	"github.com/sundayezeilo/shortlink/internal/links"
)

const (
	healthPingTimeout = 2 * time.Second
	sweepInterval     = time.Minute
)

// Pinger reports whether the database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// MetricsHandler exposes collected metrics and receives request
// observations.
type MetricsHandler interface {
	httpx.RequestObserver
	Handler() http.Handler
}

// Deps are the handlers and collaborators the server routes to.
type Deps struct {
	Links   *links.Handler
	Admin   *admin.Handler
	DB      Pinger         // optional
	Metrics MetricsHandler // optional
	Limiter *httpx.RateLimiter
}

// Server represents the HTTP server with all dependencies.
type Server struct {
	config *config.Config
	logger *slog.Logger
	deps   Deps
	server *http.Server
	now    func() time.Time
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// New creates a new Server instance.
func New(cfg *config.Config, logger *slog.Logger, deps Deps) *Server {
	return &Server{
		config: cfg,
		logger: logger,
		deps:   deps,
		now:    time.Now,
	}
}

// Handler returns the fully routed and wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.applyMiddleware(s.setupRoutes())
}

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.config.Server.Addr(),
		Handler:      s.Handler(),
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
		IdleTimeout:  s.config.Server.IdleTimeout,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if s.deps.Limiter != nil {
		go s.deps.Limiter.Run(ctx, sweepInterval)
	}

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("starting http server",
			"addr", s.server.Addr,
			"env", s.config.App.Environment,
		)
		serverErrors <- s.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		s.logger.Info("received shutdown signal", "signal", sig.String())

	case <-ctx.Done():
		s.logger.Info("context cancelled, shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := s.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	s.logger.Info("server stopped gracefully")
	return nil
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	limit := httpx.Limit(s.deps.Limiter)

	mux.HandleFunc("GET /healthz", s.healthCheckHandler)
	if s.deps.Metrics != nil {
		mux.Handle("GET /metrics", s.deps.Metrics.Handler())
	}

	h := s.deps.Links
	mux.Handle("POST /api/links", limit(http.HandlerFunc(h.CreateLink)))
	mux.HandleFunc("GET /api/links", h.ListLinks)
	mux.HandleFunc("GET /api/links/{code}", h.GetLinkStats)
	mux.HandleFunc("PUT /api/links/{code}", h.UpdateLink)
	mux.HandleFunc("DELETE /api/links/{code}", h.DeleteLink)
	mux.HandleFunc("GET /api/links/redirect/{code}", h.Redirect)
	mux.HandleFunc("GET /{code}", h.Redirect)

	if a := s.deps.Admin; a != nil {
		mux.Handle("GET /admin", http.RedirectHandler("/admin/", http.StatusMovedPermanently))
		mux.HandleFunc("GET /admin/{$}", a.Dashboard)
		mux.Handle("POST /admin/links", limit(http.HandlerFunc(a.CreateLink)))
		mux.HandleFunc("POST /admin/links/{code}/delete", a.DeleteLink)
		mux.HandleFunc("GET /admin/links/{code}", a.LinkStats)
		mux.HandleFunc("GET /admin/r/{code}", a.Redirect)
		mux.HandleFunc("GET /admin/health", a.Health)
	}

	return mux
}

// applyMiddleware wraps the handler with middleware in the correct order.
func (s *Server) applyMiddleware(handler http.Handler) http.Handler {
	var observer httpx.RequestObserver
	if s.deps.Metrics != nil {
		observer = s.deps.Metrics
	}

	return httpx.Chain(
		httpx.Recovery(s.logger),   // Outermost: catch panics
		httpx.RequestID,            // Add request ID
		httpx.Logger(s.logger),     // Log requests
		httpx.Instrument(observer), // Count and time requests
		httpx.CORS(nil),            // CORS headers (allow all in dev)
	)(handler)
}

// healthCheckHandler reports OK when the database answers a ping.
func (s *Server) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	if s.deps.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
		defer cancel()

		if err := s.deps.DB.Ping(ctx); err != nil {
			s.logger.ErrorContext(ctx, "health check failed",
				"request_id", httpx.GetRequestID(r.Context()),
				"error", err.Error(),
			)
			httpx.WriteJSON(w, http.StatusServiceUnavailable, HealthResponse{
				Status:    "unavailable",
				Timestamp: s.now().UTC(),
			})
			return
		}
	}

	httpx.WriteJSON(w, http.StatusOK, HealthResponse{
		Status:    "OK",
		Timestamp: s.now().UTC(),
	})
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	s.logger.Info("shutting down server")

	if err := s.server.Shutdown(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			s.logger.Warn("shutdown timeout exceeded, forcing close")
			return s.server.Close()
		}
		return err
	}

	return nil
}
