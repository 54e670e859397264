// Package server exposes the governance engine over an HTTP JSON API for
// the dispatch fabric: evaluation, feedback, operator mode control, audit
// chain verification, health probes, and metrics.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"mercator-hq/aegis/pkg/audit/ledger"
	"mercator-hq/aegis/pkg/config"
	"mercator-hq/aegis/pkg/governance/engine"
	"mercator-hq/aegis/pkg/server/middleware"
	"mercator-hq/aegis/pkg/telemetry/health"
)

// BuildInfo identifies the running binary on /version.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// Server is the HTTP front of the governance engine.
type Server struct {
	config  *config.ServerConfig
	engine  *engine.Engine
	ledger  *ledger.Ledger
	checker *health.Checker
	metrics http.Handler // nil disables /metrics
	build   BuildInfo
	schema  *jsonschema.Schema
	logger  *slog.Logger

	httpServer   *http.Server
	shutdownChan chan struct{}
	shutdownOnce sync.Once
}

// NewServer creates the HTTP server. The metrics handler may be nil.
func NewServer(cfg *config.ServerConfig, eng *engine.Engine, led *ledger.Ledger, checker *health.Checker, metricsHandler http.Handler, build BuildInfo) (*Server, error) {
	if eng == nil || led == nil {
		return nil, fmt.Errorf("server requires an engine and a ledger")
	}
	if checker == nil {
		checker = health.New(0)
	}
	schema, err := compileMessageSchema()
	if err != nil {
		return nil, err
	}
	return &Server{
		config:       cfg,
		engine:       eng,
		ledger:       led,
		checker:      checker,
		metrics:      metricsHandler,
		build:        build,
		schema:       schema,
		logger:       slog.Default().With("component", "server"),
		shutdownChan: make(chan struct{}),
	}, nil
}

// Handler assembles the full route table and middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Governed API, behind authentication.
	api := http.NewServeMux()
	api.HandleFunc("POST /v1/evaluate", s.handleEvaluate)
	api.HandleFunc("POST /v1/feedback", s.handleFeedback)
	api.HandleFunc("POST /v1/mode/relax", s.handleModeRelax)
	api.HandleFunc("GET /v1/audit/verify", s.handleAuditVerify)
	mux.Handle("/v1/", middleware.APIKeyAuth(s.config.APIKeys)(api))

	// Operational endpoints, unauthenticated by convention.
	mux.HandleFunc("GET /healthz", s.checker.LivenessHandler())
	mux.HandleFunc("GET /readyz", s.checker.ReadinessHandler())
	mux.HandleFunc("GET /version", health.VersionHandler(s.build.Version, s.build.Commit, s.build.BuildTime))
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}

	var handler http.Handler = mux
	handler = middleware.Logging(handler)
	handler = middleware.Recovery(handler)
	handler = middleware.RequestID(handler)
	return handler
}

// Start runs the server and blocks until the context is cancelled, a
// shutdown signal arrives, TriggerShutdown is called, or the listener
// fails.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:           s.config.ListenAddress,
		Handler:        s.Handler(),
		ReadTimeout:    s.config.ReadTimeout,
		WriteTimeout:   s.config.WriteTimeout,
		IdleTimeout:    s.config.IdleTimeout,
		MaxHeaderBytes: s.config.MaxHeaderBytes,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting governance server", "address", s.config.ListenAddress)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
	case <-s.shutdownChan:
		s.logger.Warn("shutdown triggered internally")
	case err := <-errChan:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// TriggerShutdown initiates a graceful shutdown from inside the process.
// It is the engine's fatal hook for runtime constitutional hash
// mismatches.
func (s *Server) TriggerShutdown() {
	s.shutdownOnce.Do(func() { close(s.shutdownChan) })
}
