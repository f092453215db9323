// Package server assembles the HTTP API: router, middleware chain and the
// lifecycle of the underlying http.Server.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/iudanet/taskkeeper/internal/config"
	"github.com/iudanet/taskkeeper/internal/server/handlers"
	"github.com/iudanet/taskkeeper/internal/server/middleware"
)

// Auth-эндпоинты под rate limit.
const (
	pathRegister = "/api/v1/auth/register"
	pathLogin    = "/api/v1/auth/login"
	pathRefresh  = "/api/v1/auth/refresh"
)

// AuthService is what the HTTP layer needs from the auth service.
type AuthService interface {
	handlers.AuthService
	middleware.Authenticator
}

// Deps are the collaborators the router dispatches to.
type Deps struct {
	Auth    AuthService
	Tasks   handlers.TaskService
	DB      handlers.Pinger
	Version string
}

// Server is the HTTP API server.
type Server struct {
	logger     *slog.Logger
	httpServer *http.Server
	limiter    *middleware.PathLimiter
	cfg        config.HTTPConfig
}

// New builds the router and the http.Server. Nothing listens until Run.
// The rate limiter runs background cleanup from here on: release it with
// Close (Serve also does so on return).
func New(logger *slog.Logger, cfg config.HTTPConfig, deps Deps) *Server {
	limits := []middleware.PathRateLimit{
		{Path: pathRegister, Rate: cfg.RateLimit.Rate, Window: cfg.RateLimit.Window},
		{Path: pathLogin, Rate: cfg.RateLimit.Rate, Window: cfg.RateLimit.Window},
		{Path: pathRefresh, Rate: cfg.RateLimit.Rate, Window: cfg.RateLimit.Window},
	}

	s := &Server{
		logger:  logger,
		limiter: middleware.NewPathLimiter(limits, cfg.TrustProxy, logger),
		cfg:     cfg,
	}

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.routes(deps),
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}

	return s
}

// Handler returns the root handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Close stops background work owned by the server. It does not close
// listeners; cancel the Run context for that. Safe to call repeatedly.
func (s *Server) Close() {
	s.limiter.Stop()
}

func (s *Server) routes(deps Deps) http.Handler {
	authHandler := handlers.NewAuthHandler(s.logger, deps.Auth)
	taskHandler := handlers.NewTaskHandler(s.logger, deps.Tasks)
	healthHandler := handlers.NewHealthHandler(s.logger, deps.DB, deps.Version)
	requireAuth := middleware.AuthMiddleware(s.logger, deps.Auth)

	r := chi.NewRouter()

	// Порядок важен: recovery внутри logging, чтобы 500 после паники попал в лог.
	r.Use(middleware.RequestID)
	r.Use(middleware.LoggingWithSkip(s.logger, []string{"/health"}))
	r.Use(middleware.RecoveryMiddleware(s.logger))
	r.Use(middleware.CORS(s.cfg.CORSOrigins))
	r.Use(s.limiter.Middleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		handlers.WriteError(w, s.logger, "resource not found", http.StatusNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		handlers.WriteError(w, s.logger, "method not allowed", http.StatusMethodNotAllowed)
	})

	r.Get("/health", healthHandler.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.Refresh)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Post("/logout", authHandler.Logout)
				r.Get("/me", authHandler.Me)
			})
		})

		r.Route("/tasks", func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/", taskHandler.Create)
			r.Get("/", taskHandler.List)
			r.Get("/{id}", taskHandler.Get)
			r.Put("/{id}", taskHandler.Update)
			r.Delete("/{id}", taskHandler.Delete)
		})
	})

	return r
}

// Run listens on the configured address and serves until ctx is cancelled,
// then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		s.Close()
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer s.Close()

	errCh := make(chan error, 1)
	go func() {
		s.logger.InfoContext(ctx, "HTTP server listening", slog.String("addr", ln.Addr().String()))
		errCh <- s.httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down HTTP server", slog.Duration("timeout", s.cfg.ShutdownTimeout))

	shutdownTimeout := s.cfg.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 15 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}

	s.logger.Info("HTTP server stopped")
	return nil
}
