// Package cmd holds the startup plumbing shared by every service binary.
package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/louisbranch/oilandrope/internal/platform/config"
	"github.com/louisbranch/oilandrope/internal/platform/logging"
	"github.com/louisbranch/oilandrope/internal/platform/otel"
)

const defaultOTelShutdownTimeout = 5 * time.Second

// Service identifiers for command startup telemetry and CLI naming consistency.
const (
	ServiceAPI  = "api"
	ServiceBot  = "bot"
	ServiceChat = "chat"
	ServiceMCP  = "mcp"
	ServiceMenu = "menu"
)

// LogConfig is read from the environment by every service.
type LogConfig struct {
	Level string `env:"OILANDROPE_LOG_LEVEL" envDefault:"info"`
	File  string `env:"OILANDROPE_LOG_FILE"`
}

// RunOptions controls shared entrypoint behavior for service commands.
type RunOptions struct {
	// ShutdownTimeout sets the timeout used when stopping telemetry.
	ShutdownTimeout time.Duration
	// Log overrides the environment log configuration.
	Log *LogConfig
}

// ParseConfig loads the dotenv file and then environment defaults into cfg.
func ParseConfig[T any](cfg *T) error {
	if cfg == nil {
		return errors.New("config target is required")
	}
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	return config.ParseEnv(cfg)
}

// ParseArgs parses command-line flags.
func ParseArgs(fs *flag.FlagSet, args []string) error {
	if fs == nil {
		return errors.New("flag parser is required")
	}
	if args == nil {
		args = []string{}
	}
	return fs.Parse(args)
}

// ParseConfigFromArgs loads defaults from env and then parses flags.
func ParseConfigFromArgs[T any](cfg *T, fs *flag.FlagSet, args []string) error {
	if err := ParseConfig(cfg); err != nil {
		return err
	}
	return ParseArgs(fs, args)
}

// RunWithTelemetry configures logging and tracing and executes a service run loop.
func RunWithTelemetry(ctx context.Context, service string, run func(context.Context) error) error {
	return RunWithTelemetryAndOptions(ctx, service, RunOptions{}, run)
}

// RunWithTelemetryAndOptions configures logging and tracing and executes a service run loop.
func RunWithTelemetryAndOptions(ctx context.Context, service string, options RunOptions, run func(context.Context) error) error {
	service = strings.TrimSpace(service)
	if service == "" {
		return fmt.Errorf("service name is required")
	}
	if run == nil {
		return fmt.Errorf("run function is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	logCfg := options.Log
	if logCfg == nil {
		logCfg = &LogConfig{}
		if err := config.ParseEnv(logCfg); err != nil {
			return err
		}
	}
	closeLogs, err := logging.Setup(service, logging.Options{Level: logCfg.Level, File: logCfg.File})
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	defer func() {
		_ = closeLogs()
	}()

	shutdown, err := otel.Setup(ctx, service)
	if err != nil {
		return err
	}
	defer func() {
		shutdownTimeout := options.ShutdownTimeout
		if shutdownTimeout <= 0 {
			shutdownTimeout = defaultOTelShutdownTimeout
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			log.Printf("%s otel shutdown: %v", service, err)
		}
	}()
	return run(ctx)
}
