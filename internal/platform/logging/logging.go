// Package logging configures the process-wide structured logger.
//
// Console output is colored and leveled. When a file path is configured a
// rotating JSON sink receives the same records.
package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls logger construction.
type Options struct {
	// Level is one of debug, info, warn or error. Empty means info.
	Level string
	// File enables a rotating JSON log file at this path.
	File string
	// MaxSizeMB caps a log file before rotation.
	MaxSizeMB int
	// MaxBackups caps the number of rotated files kept.
	MaxBackups int
	// NoColor disables ANSI colors on the console handler.
	NoColor bool
	// Console overrides the console writer. Defaults to stderr.
	Console io.Writer
}

// ParseLevel maps a textual level onto slog levels.
func ParseLevel(value string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", value)
	}
}

// New builds a logger and a closer that releases the file sink.
func New(opts Options) (*slog.Logger, func() error, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}

	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	handlers := []slog.Handler{
		tint.NewHandler(console, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
			NoColor:    opts.NoColor,
		}),
	}

	closer := func() error { return nil }
	if path := strings.TrimSpace(opts.File); path != "" {
		rotator := &lumberjack.Logger{
			Filename:   path,
			MaxSize:    defaultInt(opts.MaxSizeMB, 50),
			MaxBackups: defaultInt(opts.MaxBackups, 5),
			Compress:   true,
		}
		handlers = append(handlers, slog.NewJSONHandler(rotator, &slog.HandlerOptions{Level: level}))
		closer = rotator.Close
	}

	var handler slog.Handler = handlers[0]
	if len(handlers) > 1 {
		handler = fanout(handlers)
	}
	return slog.New(handler), closer, nil
}

// Setup installs the logger as the slog default. The stdlib log package is
// bridged through the same handler so log.Printf lines end up structured.
func Setup(service string, opts Options) (func() error, error) {
	logger, closer, err := New(opts)
	if err != nil {
		return nil, err
	}
	if service = strings.TrimSpace(service); service != "" {
		logger = logger.With(slog.String("service", service))
	}
	slog.SetDefault(logger)
	log.SetFlags(0)
	return closer, nil
}

func defaultInt(value int, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}

type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, h := range f {
		if !h.Enabled(ctx, record.Level) {
			continue
		}
		if err := h.Handle(ctx, record.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make(fanout, len(f))
	for i, h := range f {
		next[i] = h.WithAttrs(attrs)
	}
	return next
}

func (f fanout) WithGroup(name string) slog.Handler {
	next := make(fanout, len(f))
	for i, h := range f {
		next[i] = h.WithGroup(name)
	}
	return next
}
