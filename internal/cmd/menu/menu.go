// Package menu parses menu command flags and imports a YAML menu tree.
package menu

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	entrypoint "github.com/louisbranch/oilandrope/internal/platform/cmd"
	"github.com/louisbranch/oilandrope/internal/services/menu"
	"github.com/louisbranch/oilandrope/internal/storage/sqlite"
)

// Config holds menu command configuration.
type Config struct {
	File   string `env:"OILANDROPE_MENU_FILE" envDefault:"menus.yaml"`
	DBPath string `env:"OILANDROPE_DB_PATH"   envDefault:"data/oilandrope.sqlite"`
	DryRun bool
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.File, "file", cfg.File, "YAML menu fixture to import")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "SQLite database path")
	fs.BoolVar(&cfg.DryRun, "dry-run", false, "print the tree without writing it")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type replacer interface {
	ReplaceMenus(ctx context.Context, menus []menu.Menu) error
}

// Run reads cfg.File and replaces the stored menus with its tree.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceMenu, func(ctx context.Context) error {
		f, err := os.Open(cfg.File)
		if err != nil {
			return fmt.Errorf("open menu fixture: %w", err)
		}
		defer f.Close()

		if cfg.DryRun {
			_, err := importMenus(ctx, f, nil, os.Stdout)
			return err
		}

		store, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open sqlite store: %w", err)
		}
		defer func() {
			if closeErr := store.Close(); closeErr != nil {
				log.Printf("menu: close sqlite store: %v", closeErr)
			}
		}()

		count, err := importMenus(ctx, f, store, io.Discard)
		if err != nil {
			return err
		}
		log.Printf("menu: imported %d menus from %s", count, cfg.File)
		return nil
	})
}

// importMenus decodes the fixture, validates it and hands it to store. A nil
// store only prints the tree to out.
func importMenus(ctx context.Context, r io.Reader, store replacer, out io.Writer) (int, error) {
	entries, err := menu.Decode(r)
	if err != nil {
		return 0, err
	}
	menus, err := menu.Flatten(entries, nil, nil)
	if err != nil {
		return 0, err
	}
	if err := menu.ValidateTree(menus); err != nil {
		return 0, err
	}
	printTree(out, menu.Tree(menus), 0)
	if store == nil {
		return len(menus), nil
	}
	if err := store.ReplaceMenus(ctx, menus); err != nil {
		return 0, fmt.Errorf("replace menus: %w", err)
	}
	return len(menus), nil
}

func printTree(out io.Writer, nodes []*menu.Node, depth int) {
	for _, node := range nodes {
		fmt.Fprintf(out, "%s%s %s\n", strings.Repeat("  ", depth), node.Menu.DisplayName(), node.Link)
		printTree(out, node.Children, depth+1)
	}
}
