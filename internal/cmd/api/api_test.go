package api

import (
	"flag"
	"testing"

	"github.com/louisbranch/oilandrope/internal/services/registration/mail"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("api", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.HTTPAddr != ":8000" {
		t.Fatalf("expected default http addr, got %q", cfg.HTTPAddr)
	}
	if cfg.HealthAddr != ":8001" {
		t.Fatalf("expected default health addr, got %q", cfg.HealthAddr)
	}
	if cfg.DBPath != "data/oilandrope.sqlite" {
		t.Fatalf("expected default db path, got %q", cfg.DBPath)
	}
	if cfg.SMTP.Port != 587 {
		t.Fatalf("expected default smtp port, got %d", cfg.SMTP.Port)
	}
}

func TestParseConfigOverrides(t *testing.T) {
	t.Setenv("OILANDROPE_API_HTTP_ADDR", "env-http")
	t.Setenv("OILANDROPE_JWT_SECRET", "0123456789abcdef")
	t.Setenv("OILANDROPE_SMTP_HOST", "smtp.example.com")
	t.Setenv("OILANDROPE_DEFAULT_FROM_EMAIL", "bot@example.com")

	fs := flag.NewFlagSet("api", flag.ContinueOnError)
	args := []string{"-http-addr", "flag-http", "-media-dir", "/srv/media", "-health-addr", ""}
	cfg, err := ParseConfig(fs, args)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.HTTPAddr != "flag-http" {
		t.Fatalf("expected flag http addr, got %q", cfg.HTTPAddr)
	}
	if cfg.MediaDir != "/srv/media" {
		t.Fatalf("expected flag media dir, got %q", cfg.MediaDir)
	}
	if cfg.HealthAddr != "" {
		t.Fatalf("expected health disabled, got %q", cfg.HealthAddr)
	}
	if cfg.JWTSecret != "0123456789abcdef" {
		t.Fatalf("expected env secret, got %q", cfg.JWTSecret)
	}
	if cfg.SMTP.Host != "smtp.example.com" || cfg.SMTP.From != "bot@example.com" {
		t.Fatalf("expected env smtp config, got %+v", cfg.SMTP)
	}
}

func TestNewSender(t *testing.T) {
	sender, err := newSender(mail.SMTPConfig{})
	if err != nil {
		t.Fatalf("new sender: %v", err)
	}
	if _, ok := sender.(*mail.LogSender); !ok {
		t.Fatalf("expected log sender without smtp host, got %T", sender)
	}
	sender, err = newSender(mail.SMTPConfig{Host: "smtp.example.com", Port: 25})
	if err != nil {
		t.Fatalf("new smtp sender: %v", err)
	}
	if _, ok := sender.(*mail.SMTPSender); !ok {
		t.Fatalf("expected smtp sender, got %T", sender)
	}
}
