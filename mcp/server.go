// Package mcp runs the mem0 MCP server over stdio or SSE.
package mcp

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog/log"

	"github.com/51302890/mcp-mem0/internal/api"
	"github.com/51302890/mcp-mem0/internal/config"
	"github.com/51302890/mcp-mem0/internal/factory"
	"github.com/51302890/mcp-mem0/internal/logger"
	"github.com/51302890/mcp-mem0/mcp/internal/handlers"
)

const (
	httpReadTimeout = 5 * time.Second
	httpIdleTimeout = 120 * time.Second
	startupWait     = 30 * time.Second
)

type toolRegisterer interface {
	RegisterTools(s *server.MCPServer) error
}

// NewServer creates the MCP server with the memory tools registered for
// userID.
func NewServer(name, version string, svc handlers.MemoryService, userID string) (*server.MCPServer, error) {
	s := server.NewMCPServer(
		name,
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)
	for _, h := range []toolRegisterer{handlers.NewMemoryHandler(svc, userID)} {
		if err := h.RegisterTools(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// RunMCPServer loads settings, builds the memory service and serves MCP on
// the configured transport until ctx ends or the transport fails.
func RunMCPServer(ctx context.Context, envFiles ...string) error {
	settings, err := config.Load(envFiles...)
	if err != nil {
		l := logger.New("mcp-mem0", os.Stderr)
		l.Error().Err(err).Msg("Failed to load configuration")
		return err
	}

	// stdout belongs to the stdio transport, so logs always go to stderr.
	l := logger.New(settings.ServerName, os.Stderr)
	logger.Install(l, logger.ParseLevel(settings.LogLevel))
	settings.LogSummary(l)

	svc, err := factory.NewService(ctx, settings, l)
	if err != nil {
		log.Error().Stack().Err(err).Msg("Failed to initialise memory service")
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing memory service")
		}
	}()

	healthCtx, stopHealth := context.WithCancel(ctx)
	defer stopHealth()
	svc.Health.StartAll(healthCtx, settings.HealthInterval)
	if !svc.Health.WaitUntilHealthy(ctx, startupWait) {
		// the embedder may still be loading its model; tools report errors until it is up
		log.Warn().Interface("components", svc.Health.Components()).Msg("Starting before all dependencies are healthy")
	}

	s, err := NewServer(settings.ServerName, settings.ServerVersion, svc.Engine, settings.DefaultUserID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to register tools")
		return err
	}

	if settings.IsStdio() {
		return serveStdio(ctx, s)
	}
	return serveSSE(ctx, settings, s, svc.Health)
}

func serveStdio(ctx context.Context, s *server.MCPServer) error {
	log.Info().Msg("Starting mem0 MCP server (stdio transport)")

	err := server.NewStdioServer(s).Listen(ctx, os.Stdin, os.Stdout)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("Stdio server error")
		return err
	}
	log.Info().Msg("Stdio server stopped")
	return nil
}

// newSSEHandler serves MCP over SSE next to /health and /metrics.
func newSSEHandler(s *server.MCPServer, reporter api.HealthReporter) http.Handler {
	sse := server.NewSSEServer(s,
		server.WithSSEEndpoint("/sse"),
		server.WithMessageEndpoint("/messages/"),
		server.WithKeepAlive(true),
	)
	return api.NewRouter(api.Routes{
		SSE:     sse.SSEHandler(),
		Message: sse.MessageHandler(),
		Health:  api.NewHealthHandler(reporter),
	})
}

func serveSSE(ctx context.Context, settings *config.Settings, s *server.MCPServer, reporter api.HealthReporter) error {
	srv := &http.Server{
		Addr:        settings.Addr(),
		Handler:     newSSEHandler(s, reporter),
		ReadTimeout: httpReadTimeout,
		// No write deadline: SSE streams stay open.
		WriteTimeout: 0,
		IdleTimeout:  httpIdleTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Starting mem0 MCP server (SSE transport)")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			log.Error().Stack().Err(err).Msg("HTTP server failed")
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), settings.ShutdownTimeout)
	defer cancel()

	// Request contexts derive from ctx, so open SSE streams are already ending.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
		return err
	}
	log.Info().Msg("Server exited")
	return nil
}
