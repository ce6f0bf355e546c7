// File: internal/server/server.go
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ma5311943-dotcom/testing-tool/api/schemas"
	"github.com/ma5311943-dotcom/testing-tool/internal/config"
	"github.com/ma5311943-dotcom/testing-tool/internal/orchestrator"
)

// shutdownTimeout bounds how long in-flight requests get to finish once the
// serve context ends. Runs still executing are cancelled with their requests.
const shutdownTimeout = 30 * time.Second

// Runner is the part of the orchestrator the HTTP API drives.
type Runner interface {
	Prepare(req schemas.RunRequest) (*orchestrator.Prepared, error)
	Execute(ctx context.Context, p *orchestrator.Prepared) orchestrator.Result
}

var _ Runner = (*orchestrator.Orchestrator)(nil)

// Server exposes scenario runs over HTTP.
type Server struct {
	cfg      config.Interface
	logger   *zap.Logger
	handlers *Handlers
	limiter  *rateLimiter
}

// New creates a Server.
func New(cfg config.Interface, logger *zap.Logger, runner Runner) (*Server, error) {
	if cfg == nil || logger == nil || runner == nil {
		return nil, fmt.Errorf("cannot initialize server with nil dependencies")
	}
	logger = logger.Named("server")
	sc := cfg.Server()
	return &Server{
		cfg:      cfg,
		logger:   logger,
		handlers: NewHandlers(logger, runner),
		limiter:  newRateLimiter(sc.RateLimit, sc.Burst),
	}, nil
}

// Handler builds the router. Only the run and parse endpoints are throttled.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	// Forwarding headers are client controlled unless a proxy rewrites them.
	if s.cfg.Server().TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	r.Get("/healthz", s.handlers.HandleHealthCheck)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.limiter.middleware(s.logger))
		r.Post("/runs", s.handlers.HandleRun)
		r.Post("/parse", s.handlers.HandleParse)
	})
	return r
}

// Start listens on the configured address and serves until ctx ends.
func (s *Server) Start(ctx context.Context) error {
	addr := s.cfg.Server().Addr
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx ends, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.cfg.Server().ReadTimeout,
		ReadTimeout:       s.cfg.Server().ReadTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("HTTP server starting.", zap.String("address", ln.Addr().String()))
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("Shutting down HTTP server.")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		return nil
	})

	err := g.Wait()
	s.logger.Info("HTTP server stopped.")
	return err
}

// corsMiddleware lets a browser dashboard on another origin call the API.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
