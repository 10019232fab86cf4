package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	apperrors "github.com/louisbranch/oilandrope/internal/platform/errors"
)

func TestRunExplainsMissingSettings(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		cfg      RuntimeConfig
		solution string
	}{
		{name: "token", cfg: RuntimeConfig{DBPath: "bot.sqlite"}, solution: "OILANDROPE_BOT_TOKEN"},
		{name: "blank token", cfg: RuntimeConfig{Token: "  ", DBPath: "bot.sqlite"}, solution: "OILANDROPE_BOT_TOKEN"},
		{name: "db path", cfg: RuntimeConfig{Token: "secret"}, solution: "OILANDROPE_DB_PATH"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := Run(context.Background(), tc.cfg)
			var helpful *apperrors.HelpfulError
			if !errors.As(err, &helpful) {
				t.Fatalf("err = %v, want a helpful error", err)
			}
			if helpful.Preface != "Error loading bot variables." {
				t.Fatalf("preface = %q", helpful.Preface)
			}
			if !strings.Contains(helpful.Solution, tc.solution) {
				t.Fatalf("solution = %q, want mention of %s", helpful.Solution, tc.solution)
			}
			if !strings.Contains(err.Error(), "\tProblem: ") {
				t.Fatalf("message = %q", err.Error())
			}
		})
	}
}
