// Package chat parses chat command flags and composes the relay process.
package chat

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"

	entrypoint "github.com/louisbranch/oilandrope/internal/platform/cmd"
	platformgrpc "github.com/louisbranch/oilandrope/internal/platform/grpc"
	"github.com/louisbranch/oilandrope/internal/platform/telemetry/metrics"
	server "github.com/louisbranch/oilandrope/internal/services/chat/app"
	"github.com/louisbranch/oilandrope/internal/services/registration/token"
	"github.com/louisbranch/oilandrope/internal/storage/sqlite"
)

// Config holds chat command configuration.
type Config struct {
	HTTPAddr   string `env:"OILANDROPE_CHAT_HTTP_ADDR"   envDefault:":8086"`
	HealthAddr string `env:"OILANDROPE_CHAT_HEALTH_ADDR" envDefault:":8087"`
	DBPath     string `env:"OILANDROPE_DB_PATH"          envDefault:"data/oilandrope.sqlite"`
	JWTSecret  string `env:"OILANDROPE_JWT_SECRET"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "chat HTTP listen address")
	fs.StringVar(&cfg.HealthAddr, "health-addr", cfg.HealthAddr, "gRPC health listen address (empty disables it)")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "SQLite database path")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run opens the store and relays chat frames until the context ends.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceChat, func(ctx context.Context) error {
		tokens, err := token.NewManager(token.Config{Secret: []byte(cfg.JWTSecret)})
		if err != nil {
			return fmt.Errorf("init tokens: %w", err)
		}
		store, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open sqlite store: %w", err)
		}
		defer func() {
			if closeErr := store.Close(); closeErr != nil {
				log.Printf("chat: close sqlite store: %v", closeErr)
			}
		}()

		if addr := strings.TrimSpace(cfg.HealthAddr); addr != "" {
			health, err := platformgrpc.NewHealthServer(addr)
			if err != nil {
				return err
			}
			go func() {
				if err := health.Serve(ctx); err != nil {
					log.Printf("chat: health server: %v", err)
				}
			}()
			health.SetServing("", true)
			health.SetServing(entrypoint.ServiceChat, true)
			defer health.SetServing(entrypoint.ServiceChat, false)
			log.Printf("chat: health listening at %s", health.Addr())
		}

		return server.Run(ctx, server.Config{HTTPAddr: cfg.HTTPAddr}, server.Deps{
			Store:   store,
			Tokens:  tokens,
			Metrics: metrics.New(),
		})
	})
}
