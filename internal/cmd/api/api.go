// Package api parses api command flags and composes the REST process.
package api

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"

	entrypoint "github.com/louisbranch/oilandrope/internal/platform/cmd"
	platformgrpc "github.com/louisbranch/oilandrope/internal/platform/grpc"
	"github.com/louisbranch/oilandrope/internal/platform/telemetry/metrics"
	server "github.com/louisbranch/oilandrope/internal/services/api"
	"github.com/louisbranch/oilandrope/internal/services/registration/mail"
	"github.com/louisbranch/oilandrope/internal/services/registration/token"
	"github.com/louisbranch/oilandrope/internal/storage/sqlite"
)

// Config holds api command configuration.
type Config struct {
	HTTPAddr   string `env:"OILANDROPE_API_HTTP_ADDR"   envDefault:":8000"`
	HealthAddr string `env:"OILANDROPE_API_HEALTH_ADDR" envDefault:":8001"`
	DBPath     string `env:"OILANDROPE_DB_PATH"         envDefault:"data/oilandrope.sqlite"`
	JWTSecret  string `env:"OILANDROPE_JWT_SECRET"`
	SiteURL    string `env:"OILANDROPE_SITE_URL"        envDefault:"http://localhost:8000"`
	MediaDir   string `env:"OILANDROPE_MEDIA_DIR"       envDefault:"data/media"`
	Version    string `env:"OILANDROPE_VERSION"         envDefault:"dev"`
	SMTP       mail.SMTPConfig
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "API HTTP listen address")
	fs.StringVar(&cfg.HealthAddr, "health-addr", cfg.HealthAddr, "gRPC health listen address (empty disables it)")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "SQLite database path")
	fs.StringVar(&cfg.SiteURL, "site-url", cfg.SiteURL, "public site URL used in mailed links")
	fs.StringVar(&cfg.MediaDir, "media-dir", cfg.MediaDir, "directory receiving uploaded files")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// newSender picks SMTP delivery when a relay is configured and logs mail
// otherwise.
func newSender(cfg mail.SMTPConfig) (mail.Sender, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		log.Printf("api: no smtp host configured, mail is logged")
		return &mail.LogSender{}, nil
	}
	return mail.NewSMTPSender(cfg)
}

// Run opens the store and serves the API until the context ends.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceAPI, func(ctx context.Context) error {
		tokens, err := token.NewManager(token.Config{Secret: []byte(cfg.JWTSecret)})
		if err != nil {
			return fmt.Errorf("init tokens: %w", err)
		}
		sender, err := newSender(cfg.SMTP)
		if err != nil {
			return fmt.Errorf("init mail: %w", err)
		}

		store, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open sqlite store: %w", err)
		}
		defer func() {
			if closeErr := store.Close(); closeErr != nil {
				log.Printf("api: close sqlite store: %v", closeErr)
			}
		}()

		if addr := strings.TrimSpace(cfg.HealthAddr); addr != "" {
			health, err := platformgrpc.NewHealthServer(addr)
			if err != nil {
				return err
			}
			go func() {
				if err := health.Serve(ctx); err != nil {
					log.Printf("api: health server: %v", err)
				}
			}()
			health.SetServing("", true)
			health.SetServing(entrypoint.ServiceAPI, true)
			defer health.SetServing(entrypoint.ServiceAPI, false)
			log.Printf("api: health listening at %s", health.Addr())
		}

		if err := server.Run(ctx, server.Config{
			HTTPAddr:  cfg.HTTPAddr,
			SiteURL:   cfg.SiteURL,
			FromEmail: cfg.SMTP.From,
			BotEmail:  cfg.SMTP.From,
			MediaDir:  cfg.MediaDir,
			Version:   cfg.Version,
		}, server.Deps{
			Store:   store,
			Tokens:  tokens,
			Sender:  sender,
			Metrics: metrics.New(),
		}); err != nil {
			return fmt.Errorf("serve api: %w", err)
		}
		return nil
	})
}
