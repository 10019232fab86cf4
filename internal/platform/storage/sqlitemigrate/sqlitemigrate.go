// Package sqlitemigrate applies embedded SQL migrations to a SQLite database.
package sqlitemigrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"path"
	"sort"
	"strings"
	"time"
)

const (
	migrationTable = "schema_migrations"
	upMarker       = "-- +migrate Up"
	downMarker     = "-- +migrate Down"
)

// Migration is one embedded migration file.
type Migration struct {
	// Name is the key recorded in the migration table (root/file.sql).
	Name string
	Up   string
}

// Load reads the *.sql files under root in lexical order.
func Load(migrationFS fs.FS, root string) ([]Migration, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		root = "."
	}
	entries, err := fs.ReadDir(migrationFS, root)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	migrations := make([]Migration, 0, len(names))
	for _, name := range names {
		content, err := fs.ReadFile(migrationFS, path.Join(root, name))
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		key := name
		if root != "." {
			key = path.Join(root, name)
		}
		migrations = append(migrations, Migration{Name: key, Up: ExtractUpMigration(string(content))})
	}
	return migrations, nil
}

// ApplyMigrations executes the migrations under migrationRoot at most once
// per file, each in its own transaction.
func ApplyMigrations(sqlDB *sql.DB, migrationFS fs.FS, migrationRoot string) error {
	_, err := Apply(context.Background(), sqlDB, migrationFS, migrationRoot)
	return err
}

// Apply executes pending migrations and returns the names it applied.
func Apply(ctx context.Context, sqlDB *sql.DB, migrationFS fs.FS, migrationRoot string) ([]string, error) {
	if sqlDB == nil {
		return nil, fmt.Errorf("sql db is required")
	}
	migrations, err := Load(migrationFS, migrationRoot)
	if err != nil {
		return nil, err
	}

	if _, err := sqlDB.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+migrationTable+` (
    name TEXT PRIMARY KEY,
    applied_at INTEGER NOT NULL
)`); err != nil {
		return nil, fmt.Errorf("ensure migration table: %w", err)
	}

	var applied []string
	for _, migration := range migrations {
		done, err := isApplied(ctx, sqlDB, migration.Name)
		if err != nil {
			return applied, fmt.Errorf("check migration %s: %w", migration.Name, err)
		}
		if done || strings.TrimSpace(migration.Up) == "" {
			continue
		}
		if err := applyOne(ctx, sqlDB, migration); err != nil {
			return applied, err
		}
		log.Printf("storage: applied migration %s", migration.Name)
		applied = append(applied, migration.Name)
	}
	return applied, nil
}

func applyOne(ctx context.Context, sqlDB *sql.DB, migration Migration) (err error) {
	tx, err := sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration transaction %s: %w", migration.Name, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, migration.Up); err != nil && !IsAlreadyExistsError(err) {
		return fmt.Errorf("exec migration %s: %w", migration.Name, err)
	}
	if _, err = tx.ExecContext(ctx,
		"INSERT OR IGNORE INTO "+migrationTable+" (name, applied_at) VALUES (?, ?)",
		migration.Name, time.Now().UTC().UnixMilli(),
	); err != nil {
		return fmt.Errorf("record migration %s: %w", migration.Name, err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", migration.Name, err)
	}
	return nil
}

// ExtractUpMigration returns the SQL in the -- +migrate Up section, or the
// whole content when no markers are present.
func ExtractUpMigration(content string) string {
	upIdx := strings.Index(content, upMarker)
	if upIdx == -1 {
		return content
	}
	body := content[upIdx+len(upMarker):]
	if downIdx := strings.Index(body, downMarker); downIdx != -1 {
		body = body[:downIdx]
	}
	return body
}

// IsAlreadyExistsError reports whether this error indicates idempotent DDL success.
func IsAlreadyExistsError(err error) bool {
	if err == nil {
		return false
	}
	value := strings.ToLower(err.Error())
	return strings.Contains(value, "already exists") || strings.Contains(value, "duplicate column name")
}

func isApplied(ctx context.Context, sqlDB *sql.DB, name string) (bool, error) {
	var found int
	err := sqlDB.QueryRowContext(ctx, "SELECT 1 FROM "+migrationTable+" WHERE name = ?", name).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
