// Package server assembles the wastewatch HTTP server.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"

	"mercator-hq/wastewatch/pkg/config"
	"mercator-hq/wastewatch/pkg/httpapi/handlers"
	"mercator-hq/wastewatch/pkg/httpapi/middleware"
	"mercator-hq/wastewatch/pkg/telemetry/health"
	"mercator-hq/wastewatch/pkg/telemetry/metrics"
	"mercator-hq/wastewatch/pkg/telemetry/tracing"
)

// BuildInfo identifies the running binary on /version.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// Deps are the components the server routes to.
type Deps struct {
	// Detector serves /detect_img. Required.
	Detector handlers.Detector

	// Health serves /health and /ready. Optional.
	Health *health.Checker

	// Metrics serves the metrics path when enabled. Optional.
	Metrics *metrics.Collector

	// StaticDir is the directory behind artifacts.access_path. Empty when
	// artifacts are served from object storage.
	StaticDir string

	Build BuildInfo
}

// Server is the wastewatch HTTP server.
type Server struct {
	config       *config.Config
	deps         Deps
	httpServer   *http.Server
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
	addr         net.Addr
}

// New creates a server. It does not start listening.
func New(cfg *config.Config, deps Deps) *Server {
	return &Server{
		config: cfg,
		deps:   deps,
	}
}

// Start listens and serves until ctx is cancelled or the server fails,
// then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return errors.New("server is already running")
	}

	srv := s.config.Server
	s.httpServer = &http.Server{
		Addr:           srv.ListenAddress,
		Handler:        s.Handler(),
		ReadTimeout:    srv.ReadTimeout,
		WriteTimeout:   srv.WriteTimeout,
		IdleTimeout:    srv.IdleTimeout,
		MaxHeaderBytes: srv.MaxHeaderBytes,
	}

	tlsCfg := s.config.Security.TLS
	if tlsCfg.Enabled {
		tc, err := configureTLS(ctx, &tlsCfg)
		if err != nil {
			s.mu.Unlock()
			return fmt.Errorf("failed to configure TLS: %w", err)
		}
		s.httpServer.TLSConfig = tc
	}

	ln, err := net.Listen("tcp", srv.ListenAddress)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("listen on %s: %w", srv.ListenAddress, err)
	}
	s.addr = ln.Addr()
	s.isRunning = true
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		slog.Info("starting wastewatch server",
			"address", ln.Addr().String(),
			"tls_enabled", tlsCfg.Enabled,
			"auth_enabled", s.config.Security.AuthEnabled(),
		)

		var err error
		if tlsCfg.Enabled {
			err = s.httpServer.ServeTLS(ln, "", "")
		} else {
			err = s.httpServer.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case err := <-errChan:
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
		return err
	}
}

// Shutdown gracefully shuts down the server, waiting up to
// server.shutdown_timeout for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.RLock()
		running := s.isRunning
		s.mu.RUnlock()
		if !running {
			return
		}

		timeout := s.config.Server.ShutdownTimeout
		slog.Info("initiating graceful shutdown", "timeout", timeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("error during server shutdown", "error", err)
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		slog.Info("wastewatch server stopped")
	})

	return shutdownErr
}

// Handler returns the routed handler with the full middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	cfg := s.config

	apiKeys := middleware.NewAPIKeyValidator(cfg.Security.APIKeys)
	if !apiKeys.Enabled() {
		slog.Warn("no API keys configured, /detect_img is unauthenticated")
	}

	detect := handlers.NewDetectHandler(s.deps.Detector, cfg.Server.MaxUploadBytes, cfg.Server.MaxImagePixels, s.deps.Metrics)
	mux.Handle("POST /detect_img", middleware.APIKey(apiKeys)(detect))

	if s.deps.StaticDir != "" {
		prefix := "/" + strings.Trim(cfg.Artifacts.AccessPath, "/") + "/"
		mux.Handle("GET "+prefix, handlers.StaticHandler(prefix, s.deps.StaticDir))
	}

	if s.deps.Health != nil {
		s.deps.Health.Mount(mux, s.deps.Build.Version, s.deps.Build.Commit, s.deps.Build.BuildTime)
	}

	if s.deps.Metrics != nil && cfg.Telemetry.Metrics.MetricsEnabled() {
		mux.Handle("GET "+cfg.Telemetry.Metrics.Path, s.deps.Metrics.Handler())
	}

	return middleware.Chain(mux,
		middleware.Recovery,
		middleware.RequestID,
		tracing.HTTPMiddleware,
		middleware.Logging,
		middleware.CORS(&cfg.Server.CORS),
		middleware.Timeout(cfg.Server.WriteTimeout),
	)
}

// Addr returns the address the server is listening on, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}
