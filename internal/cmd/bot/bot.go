// Package bot parses bot command flags and starts the Discord gateway.
package bot

import (
	"context"
	"flag"
	"fmt"

	entrypoint "github.com/louisbranch/oilandrope/internal/platform/cmd"
	"github.com/louisbranch/oilandrope/internal/services/bot/app"
)

// Config holds bot command configuration.
type Config struct {
	Token         string   `env:"OILANDROPE_BOT_TOKEN"`
	CommandPrefix string   `env:"OILANDROPE_BOT_COMMAND_PREFIX" envDefault:"!"`
	Description   string   `env:"OILANDROPE_BOT_DESCRIPTION"    envDefault:"Oil & Rope bot for Discord."`
	OwnerIDs      []string `env:"OILANDROPE_BOT_OWNER_IDS"      envSeparator:","`
	SiteURL       string   `env:"OILANDROPE_SITE_URL"           envDefault:"http://localhost:8000"`
	DBPath        string   `env:"OILANDROPE_DB_PATH"            envDefault:"data/oilandrope.sqlite"`
	HealthAddr    string   `env:"OILANDROPE_BOT_HEALTH_ADDR"    envDefault:":8088"`
	MetricsAddr   string   `env:"OILANDROPE_BOT_METRICS_ADDR"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.CommandPrefix, "prefix", cfg.CommandPrefix, "command prefix")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "SQLite database path")
	fs.StringVar(&cfg.HealthAddr, "health-addr", cfg.HealthAddr, "gRPC health listen address (empty disables it)")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Prometheus listen address (empty disables it)")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run connects the bot and serves Discord events until the context ends.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceBot, func(ctx context.Context) error {
		if err := app.Run(ctx, app.RuntimeConfig{
			Token:       cfg.Token,
			DBPath:      cfg.DBPath,
			HealthAddr:  cfg.HealthAddr,
			MetricsAddr: cfg.MetricsAddr,
			Bot: app.Config{
				CommandPrefix: cfg.CommandPrefix,
				Description:   cfg.Description,
				OwnerIDs:      cfg.OwnerIDs,
				SiteURL:       cfg.SiteURL,
			},
		}); err != nil {
			return fmt.Errorf("run bot: %w", err)
		}
		return nil
	})
}
