package chat

import (
	"flag"
	"testing"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("chat", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.HTTPAddr != ":8086" {
		t.Fatalf("expected default http addr, got %q", cfg.HTTPAddr)
	}
	if cfg.HealthAddr != ":8087" {
		t.Fatalf("expected default health addr, got %q", cfg.HealthAddr)
	}
	if cfg.DBPath != "data/oilandrope.sqlite" {
		t.Fatalf("expected default db path, got %q", cfg.DBPath)
	}
}

func TestParseConfigOverrides(t *testing.T) {
	t.Setenv("OILANDROPE_CHAT_HTTP_ADDR", "env-chat")
	t.Setenv("OILANDROPE_DB_PATH", "env.sqlite")

	fs := flag.NewFlagSet("chat", flag.ContinueOnError)
	args := []string{
		"-http-addr", "flag-chat",
		"-health-addr", "flag-health",
	}
	cfg, err := ParseConfig(fs, args)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.HTTPAddr != "flag-chat" {
		t.Fatalf("expected flag http addr, got %q", cfg.HTTPAddr)
	}
	if cfg.HealthAddr != "flag-health" {
		t.Fatalf("expected flag health addr, got %q", cfg.HealthAddr)
	}
	if cfg.DBPath != "env.sqlite" {
		t.Fatalf("expected env db path, got %q", cfg.DBPath)
	}
}

func TestRunRejectsShortSecret(t *testing.T) {
	err := Run(t.Context(), Config{HTTPAddr: "127.0.0.1:0", DBPath: t.TempDir() + "/chat.sqlite", JWTSecret: "short"})
	if err == nil {
		t.Fatal("expected short JWT secret to fail")
	}
}
