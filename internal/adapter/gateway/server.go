package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/kaptinlin/jsonschema"
	"github.com/mark3labs/mcp-go/server"

	"finnguide/internal/domain"
	"finnguide/internal/infra/config"
	"finnguide/internal/infra/middleware"
	"finnguide/internal/usecase"
)

// Asker answers one question, passing answer text to emit as it is
// produced. *usecase.Agent implements it.
type Asker interface {
	Ask(ctx context.Context, query string, emit func(string)) (*usecase.Answer, error)
}

// ServerDeps holds injected dependencies for the HTTP server.
type ServerDeps struct {
	Agent   Asker
	Tools   domain.ToolExecutor // exposed over MCP when enabled
	Config  config.ServerConfig
	Logger  *slog.Logger
	Version string
}

// Server serves the query, health, WebSocket and MCP endpoints.
type Server struct {
	deps        ServerDeps
	querySchema *jsonschema.Schema
	handler     http.Handler

	mu        sync.Mutex
	httpSrv   *http.Server
	boundAddr string
}

// NewServer builds the router and middleware chain.
func NewServer(deps ServerDeps) (*Server, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Version == "" {
		deps.Version = "dev"
	}

	schema, err := jsonschema.NewCompiler().Compile([]byte(queryRequestSchema))
	if err != nil {
		return nil, fmt.Errorf("compile query schema: %w", err)
	}

	s := &Server{deps: deps, querySchema: schema}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /query/{$}", s.handleQuery)
	mux.HandleFunc("POST /query", s.handleQuery)
	mux.HandleFunc("GET /health", s.handleHealth)
	if deps.Config.WebSocket {
		mux.HandleFunc("GET /ws", s.handleWebSocket)
	}
	if deps.Config.MCP {
		if deps.Tools == nil {
			return nil, fmt.Errorf("mcp endpoint needs a tool set")
		}
		mcpSrv := newMCPServer(deps.Agent, deps.Tools, deps.Version, deps.Logger)
		mux.Handle("/mcp", server.NewStreamableHTTPServer(mcpSrv))
	}

	s.handler = middleware.Chain(mux,
		middleware.RequestID,
		middleware.AccessLog(deps.Logger),
		middleware.Recover(deps.Logger),
		middleware.CORS,
		middleware.SecurityHeaders,
	)
	return s, nil
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler { return s.handler }

// Start listens on the configured address and serves until ctx is
// cancelled or Stop is called.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.deps.Config.Addr)
	if err != nil {
		return fmt.Errorf("gateway listen: %w", err)
	}

	readHeaderTimeout := s.deps.Config.ReadHeaderTimeout
	if readHeaderTimeout <= 0 {
		readHeaderTimeout = 10 * time.Second
	}
	httpSrv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	s.mu.Lock()
	s.httpSrv = httpSrv
	s.boundAddr = listener.Addr().String()
	s.mu.Unlock()

	s.deps.Logger.Info("gateway started", "addr", listener.Addr().String(),
		"websocket", s.deps.Config.WebSocket, "mcp", s.deps.Config.MCP)

	stopped := make(chan struct{})
	defer close(stopped)
	go func() {
		select {
		case <-ctx.Done():
			_ = s.Stop(context.Background())
		case <-stopped:
		}
	}()

	if err := httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("gateway serve: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the server, waiting up to the configured
// shutdown timeout for in-flight answers.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	httpSrv := s.httpSrv
	s.mu.Unlock()
	if httpSrv == nil {
		return nil
	}

	timeout := s.deps.Config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// BoundAddr returns the address the server bound to. Empty before Start.
func (s *Server) BoundAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.boundAddr
}
