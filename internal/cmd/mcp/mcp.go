// Package mcp parses MCP command flags and runs the tool server.
package mcp

import (
	"context"
	"flag"
	"fmt"
	"log"

	entrypoint "github.com/louisbranch/oilandrope/internal/platform/cmd"
	"github.com/louisbranch/oilandrope/internal/platform/telemetry/metrics"
	"github.com/louisbranch/oilandrope/internal/services/mcp/service"
	"github.com/louisbranch/oilandrope/internal/storage/sqlite"
)

// Config holds MCP command configuration.
type Config struct {
	DBPath    string `env:"OILANDROPE_DB_PATH"       envDefault:"data/oilandrope.sqlite"`
	HTTPAddr  string `env:"OILANDROPE_MCP_HTTP_ADDR" envDefault:"localhost:8083"`
	Transport string `env:"OILANDROPE_MCP_TRANSPORT" envDefault:"stdio"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "SQLite database path")
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP listen address for the http transport")
	fs.StringVar(&cfg.Transport, "transport", cfg.Transport, "transport: stdio or http")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	switch service.Transport(cfg.Transport) {
	case service.TransportStdio, service.TransportHTTP:
	default:
		return Config{}, fmt.Errorf("transport %q is not supported", cfg.Transport)
	}
	return cfg, nil
}

// Run opens the store and serves MCP until the client leaves or the context
// ends.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceMCP, func(ctx context.Context) error {
		store, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open sqlite store: %w", err)
		}
		defer func() {
			if closeErr := store.Close(); closeErr != nil {
				log.Printf("mcp: close sqlite store: %v", closeErr)
			}
		}()

		return service.Run(ctx, service.Config{
			Transport: service.Transport(cfg.Transport),
			HTTPAddr:  cfg.HTTPAddr,
		}, service.Deps{
			Store:   store,
			Metrics: metrics.New(),
		})
	})
}
