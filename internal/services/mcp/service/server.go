package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/louisbranch/oilandrope/internal/platform/httpx"
	"github.com/louisbranch/oilandrope/internal/platform/timeouts"
	"github.com/louisbranch/oilandrope/internal/random"
	"github.com/louisbranch/oilandrope/internal/services/mcp/domain"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	serverName    = "oilandrope"
	serverVersion = "0.1.0"

	// MCPPath is where the streamable HTTP transport is mounted.
	MCPPath = "/mcp"
)

// Transport selects how the server talks to clients.
type Transport string

const (
	TransportStdio Transport = "stdio"
	TransportHTTP  Transport = "http"
)

// Config selects the transport.
type Config struct {
	Transport Transport
	// HTTPAddr is only used with TransportHTTP.
	HTTPAddr string
}

// Store is the read model the tools query.
type Store interface {
	domain.WorldStore
	domain.CampaignStore
}

// Deps holds the server collaborators.
type Deps struct {
	Store   Store
	Metrics domain.DiceRecorder
	// ResolveSeed overrides the dice seed source.
	ResolveSeed func(*int64) (int64, error)
	Now         func() time.Time
}

// Server wraps an MCP server with the roleplay tools registered.
type Server struct {
	mcpServer *mcp.Server
}

// New builds a server and registers every tool.
func New(deps Deps) (*Server, error) {
	if deps.Store == nil {
		return nil, errors.New("store is required")
	}
	if deps.ResolveSeed == nil {
		deps.ResolveSeed = random.ResolveSeed
	}

	mcpServer := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, &mcp.ServerOptions{
		Instructions: "Tools for Oil & Rope tabletop campaigns: roll dice, browse worlds and summarize campaigns.",
		Logger:       slog.Default(),
	})
	mcp.AddTool(mcpServer, domain.RollDiceTool(), domain.RollDiceHandler(deps.ResolveSeed, deps.Metrics))
	mcp.AddTool(mcpServer, domain.ListWorldsTool(), domain.ListWorldsHandler(deps.Store))
	mcp.AddTool(mcpServer, domain.DescribeCampaignTool(), domain.DescribeCampaignHandler(deps.Store, deps.Now))
	return &Server{mcpServer: mcpServer}, nil
}

// Run builds a server and serves it on the configured transport until the
// context ends.
func Run(ctx context.Context, cfg Config, deps Deps) error {
	server, err := New(deps)
	if err != nil {
		return fmt.Errorf("init mcp server: %w", err)
	}
	switch cfg.Transport {
	case "", TransportStdio:
		return server.Serve(ctx)
	case TransportHTTP:
		return server.ListenAndServe(ctx, cfg.HTTPAddr)
	default:
		return fmt.Errorf("transport %q is not supported", cfg.Transport)
	}
}

// Serve runs the server on stdio and blocks until the client disconnects or
// the context ends.
func (s *Server) Serve(ctx context.Context) error {
	return s.serveWithTransport(ctx, &mcp.StdioTransport{})
}

func (s *Server) serveWithTransport(ctx context.Context, transport mcp.Transport) error {
	if s == nil || s.mcpServer == nil {
		return errors.New("mcp server is not configured")
	}
	err := s.mcpServer.Run(ctx, transport)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("serve mcp: %w", err)
	}
	return nil
}

// Handler serves the streamable HTTP transport at MCPPath.
func (s *Server) Handler() http.Handler {
	streamable := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.mcpServer
	}, &mcp.StreamableHTTPOptions{Logger: slog.Default()})

	mux := http.NewServeMux()
	mux.Handle(MCPPath, streamable)
	return httpx.Chain(mux, httpx.RequestID(), httpx.RecoverPanic(), httpx.Trace("mcp"))
}

// ListenAndServe serves Handler on addr until the context ends.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	if addr == "" {
		addr = "localhost:8083"
	}
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: timeouts.ReadHeader,
	}

	serveErr := make(chan error, 1)
	log.Printf("mcp: listening on %s%s", addr, MCPPath)
	go func() {
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}
