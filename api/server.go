// Package api exposes the streaming chat and document endpoints over
// HTTP.
//
// Endpoints:
//
//	POST /api/chat/stream     streaming chat turn (SSE)
//	GET  /api/chat/ws         streaming chat turn (WebSocket)
//	GET  /api/document        version history for a document
//	POST /api/document        save a manual edit (debounced)
//	GET  /api/suggestions     suggestions for a document
//	GET  /health              liveness probe
//	GET  /ready               readiness probe (pings the database)
//
// File structure:
//   - server.go: HTTP server setup and lifecycle
//   - middleware.go: HTTP middleware (recovery, CORS, logging)
//   - chat.go: SSE chat endpoint and the shared turn pipeline
//   - ws.go: WebSocket chat endpoint
//   - document.go: document version and suggestion endpoints
//   - health.go: health check endpoints (/health, /ready)
//   - response.go: JSON response helpers
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/blueprintlabs/blueprint/internal/document"
	"github.com/blueprintlabs/blueprint/internal/log"
	"github.com/blueprintlabs/blueprint/internal/turn"
)

const (
	// DefaultAddr is the default address for the HTTP server.
	DefaultAddr = "127.0.0.1:8080"

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout is the timeout for reading request headers.
	// This prevents Slowloris attacks (CWE-400).
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout = 30 * time.Second

	// WriteTimeout is the maximum duration for writing the response.
	// Generous because chat turns stream for as long as the model talks.
	WriteTimeout = 10 * time.Minute

	// IdleTimeout is the maximum time to wait for the next request on keep-alive connections.
	IdleTimeout = 120 * time.Second
)

// Config carries the server's dependencies.
type Config struct {
	// Pool backs the readiness probe. A nil pool reports not ready.
	Pool *pgxpool.Pool

	// Store persists document versions and suggestions.
	Store document.Store

	// Toolset provides the tools for chat turns. An incomplete toolset
	// leaves the chat endpoints unregistered.
	Toolset turn.Toolset

	// MaxTurns bounds the model/tool loop per chat turn.
	MaxTurns int

	// SaveDelay debounces manual-edit saves.
	SaveDelay time.Duration

	// CORSOrigins lists allowed origins; "*" allows any.
	CORSOrigins []string

	Logger log.Logger
}

// Server is the HTTP server for the chat and document API.
type Server struct {
	mux    *http.ServeMux
	cors   []string
	logger log.Logger

	health   *HealthHandler
	chat     *ChatHandler
	ws       *WSHandler
	document *DocumentHandler
}

// NewServer creates a new HTTP server with all routes registered.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()

	s := &Server{
		mux:      mux,
		cors:     cfg.CORSOrigins,
		logger:   logger,
		health:   NewHealthHandler(cfg.Pool, logger),
		chat:     NewChatHandler(cfg.Toolset, cfg.MaxTurns, logger),
		ws:       NewWSHandler(cfg.Toolset, cfg.MaxTurns, cfg.CORSOrigins, logger),
		document: NewDocumentHandler(cfg.Store, cfg.SaveDelay, logger),
	}

	s.health.RegisterRoutes(mux)
	s.chat.RegisterRoutes(mux)
	s.ws.RegisterRoutes(mux)
	s.document.RegisterRoutes(mux)

	return s
}

// Handler returns the HTTP handler with middleware applied.
// Middleware order: recovery → CORS → logging → handler
func (s *Server) Handler() http.Handler {
	return chain(s.mux, recoveryMiddleware, corsMiddleware(s.cors), loggingMiddleware)
}

// Run starts the HTTP server and blocks until the context is cancelled.
// It handles graceful shutdown when the context is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
