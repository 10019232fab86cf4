package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    slog.Level
		wantErr bool
	}{
		{input: "", want: slog.LevelInfo},
		{input: "DEBUG", want: slog.LevelDebug},
		{input: " warn ", want: slog.LevelWarn},
		{input: "warning", want: slog.LevelWarn},
		{input: "error", want: slog.LevelError},
		{input: "verbose", wantErr: true},
	}
	for _, tc := range tests {
		got, err := ParseLevel(tc.input)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("ParseLevel(%q) expected error", tc.input)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseLevel(%q): %v", tc.input, err)
		}
		if got != tc.want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", tc.input, got, tc.want)
		}
	}
}

func TestNewWritesConsoleAtLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, closer, err := New(Options{Level: "warn", NoColor: true, Console: &buf})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	defer closer()

	logger.Info("hidden")
	logger.Warn("shown", "campaign", "c1")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("expected info line to be filtered, got %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "campaign=c1") {
		t.Fatalf("expected warn line with attrs, got %q", out)
	}
}

func TestNewWritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "oilandrope.log")
	var console bytes.Buffer
	logger, closer, err := New(Options{File: path, NoColor: true, Console: &console})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	logger.With("service", "api").Info("started", "addr", ":8080")
	if err := closer(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(data)
	for _, want := range []string{`"msg":"started"`, `"service":"api"`, `"addr":":8080"`} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %s in %q", want, line)
		}
	}
	if !strings.Contains(console.String(), "started") {
		t.Fatalf("expected console copy, got %q", console.String())
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, _, err := New(Options{Level: "loud"}); err == nil {
		t.Fatal("expected error for unknown level")
	}
}
