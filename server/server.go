// Package server wires the memory engine behind an HTTP server: the JSON
// API, health probes and the background embedding runner.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/ptattershall/pjais/internal/profile"
	"github.com/ptattershall/pjais/memory"
	"github.com/ptattershall/pjais/memory/embed"
	apiv1 "github.com/ptattershall/pjais/server/router/api/v1"
	"github.com/ptattershall/pjais/server/runner/embedding"
	"github.com/ptattershall/pjais/store"
)

type Server struct {
	Profile *profile.Profile
	Store   *store.Store
	Manager memory.Manager

	echoServer *echo.Echo

	// embeddingRunner is nil when semantic features are disabled.
	embeddingRunner *embedding.Runner
	runnerCancel    context.CancelFunc
}

// NewServer assembles the HTTP server around an initialized store and
// manager. embedService may be nil when embeddings are disabled.
func NewServer(ctx context.Context, p *profile.Profile, s *store.Store, manager memory.Manager, embedService embed.Service) (*Server, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogURI: true, LogStatus: true, LogMethod: true, LogLatency: true,
		LogValuesFunc: func(_ echo.Context, v echomw.RequestLoggerValues) error {
			slog.Info("http request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
			)
			return nil
		},
	}))

	server := &Server{
		Profile:    p,
		Store:      s,
		Manager:    manager,
		echoServer: e,
	}

	apiv1.NewAPIV1Service(p, s, manager).Register(e)

	if embedService != nil {
		server.embeddingRunner = embedding.NewRunner(s, embedService)
	}

	return server, nil
}

// Start begins serving and launches background runners. It returns once the
// listener is bound; serve errors after that are logged, not returned.
func (s *Server) Start(ctx context.Context) error {
	if s.embeddingRunner != nil {
		runnerCtx, cancel := context.WithCancel(ctx)
		s.runnerCancel = cancel
		go s.embeddingRunner.Run(runnerCtx)
	}

	address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	go func() {
		if err := s.echoServer.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("failed to start server", "error", err)
		}
	}()
	slog.Info("server started", "address", address, "mode", s.Profile.Mode, "version", s.Profile.Version)
	return nil
}

// Shutdown stops the runners, drains in-flight requests and closes the
// manager and store.
func (s *Server) Shutdown(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if s.runnerCancel != nil {
		s.runnerCancel()
	}

	if err := s.echoServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown server", "error", err)
	}
	if err := s.Manager.Close(); err != nil {
		slog.Error("failed to close memory manager", "error", err)
	}
	if err := s.Store.Close(); err != nil {
		slog.Error("failed to close store", "error", err)
	}
	slog.Info("server shutdown complete")
}
