// Package api serves the REST surface under /api/ and the bot-check socket.
package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/louisbranch/oilandrope/internal/platform/telemetry/metrics"
	"github.com/louisbranch/oilandrope/internal/platform/timeouts"
	"github.com/louisbranch/oilandrope/internal/services/registration/mail"
	"github.com/louisbranch/oilandrope/internal/services/registration/token"
	"github.com/louisbranch/oilandrope/internal/storage"
)

// Config defines the inputs for the API transport boundary.
type Config struct {
	HTTPAddr          string
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
	// SiteURL prefixes the links mailed to users.
	SiteURL   string
	FromEmail string
	// BotEmail names the account the Discord bot acts as.
	BotEmail string
	// MediaDir receives uploaded files.
	MediaDir string
	Version  string
}

// Deps are the collaborators of the API.
type Deps struct {
	Store   storage.Store
	Tokens  *token.Manager
	Sender  mail.Sender
	Metrics *metrics.Metrics
	// Now overrides the clock used for timestamps.
	Now func() time.Time
	// Seed overrides the dice seed source.
	Seed func() (int64, error)
}

// Server hosts the API HTTP process.
type Server struct {
	httpAddr        string
	shutdownTimeout time.Duration
	httpServer      *http.Server
}

// NewHandler builds the API routes for cfg and deps without a listener.
func NewHandler(cfg Config, deps Deps) (http.Handler, error) {
	if deps.Store == nil {
		return nil, errors.New("api store is required")
	}
	if deps.Tokens == nil {
		return nil, errors.New("token manager is required")
	}
	return newHandler(handlerOptions{
		store:     deps.Store,
		tokens:    deps.Tokens,
		sender:    deps.Sender,
		metrics:   deps.Metrics,
		seed:      deps.Seed,
		now:       deps.Now,
		siteURL:   strings.TrimSpace(cfg.SiteURL),
		fromEmail: strings.TrimSpace(cfg.FromEmail),
		botEmail:  strings.TrimSpace(cfg.BotEmail),
		mediaDir:  strings.TrimSpace(cfg.MediaDir),
		version:   strings.TrimSpace(cfg.Version),
	}), nil
}

// NewServer builds a configured API server.
func NewServer(config Config, deps Deps) (*Server, error) {
	httpAddr := strings.TrimSpace(config.HTTPAddr)
	if httpAddr == "" {
		return nil, errors.New("http address is required")
	}
	if config.ReadHeaderTimeout <= 0 {
		config.ReadHeaderTimeout = timeouts.ReadHeader
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = timeouts.Shutdown
	}
	handler, err := NewHandler(config, deps)
	if err != nil {
		return nil, err
	}
	return &Server{
		httpAddr:        httpAddr,
		shutdownTimeout: config.ShutdownTimeout,
		httpServer: &http.Server{
			Addr:              httpAddr,
			Handler:           handler,
			ReadHeaderTimeout: config.ReadHeaderTimeout,
		},
	}, nil
}

// Run creates and serves an API server until the context ends.
func Run(ctx context.Context, config Config, deps Deps) error {
	server, err := NewServer(config, deps)
	if err != nil {
		return fmt.Errorf("init api server: %w", err)
	}
	if err := server.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("serve api: %w", err)
	}
	return nil
}

// ListenAndServe runs the HTTP server until the context ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s == nil {
		return errors.New("api server is nil")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	serveErr := make(chan error, 1)
	log.Printf("api: listening on %s", s.httpAddr)
	go func() {
		serveErr <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		err := s.httpServer.Shutdown(shutdownCtx)
		cancel()
		if err != nil {
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
