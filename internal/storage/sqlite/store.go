// Package sqlite provides the SQLite-backed implementation of the shared
// storage contracts.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/louisbranch/oilandrope/internal/platform/pagination"
	sqlitemigrate "github.com/louisbranch/oilandrope/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/oilandrope/internal/storage"
	"github.com/louisbranch/oilandrope/internal/storage/sqlite/migrations"
)

// Store persists every service's state in one SQLite database.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func toNullMillis(value *time.Time) sql.NullInt64 {
	if value == nil || value.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*value), Valid: true}
}

func fromNullMillis(value sql.NullInt64) *time.Time {
	if !value.Valid {
		return nil
	}
	t := fromMillis(value.Int64)
	return &t
}

func nullString(value string) sql.NullString {
	value = strings.TrimSpace(value)
	return sql.NullString{String: value, Valid: value != ""}
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

// timestamps fills zero timestamps the way every Put method does.
func timestamps(createdAt, updatedAt time.Time) (time.Time, time.Time) {
	createdAt = createdAt.UTC()
	updatedAt = updatedAt.UTC()
	if createdAt.IsZero() && updatedAt.IsZero() {
		createdAt = time.Now().UTC()
		return createdAt, createdAt
	}
	if createdAt.IsZero() {
		createdAt = updatedAt
	}
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}
	return createdAt, updatedAt
}

// Open opens a SQLite store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	if dir := filepath.Dir(cleanPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	dsn := cleanPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Ping checks the database connection. Used by health probes.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return s.sqlDB.PingContext(ctx)
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// execer is implemented by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

func isForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code() == sqlite3lib.SQLITE_CONSTRAINT_FOREIGNKEY {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "foreign key constraint failed")
}

// mapWriteError converts constraint failures to storage sentinels.
func mapWriteError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case isUniqueViolation(err):
		return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
	case isForeignKeyViolation(err):
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

func mapReadError(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

// requireAffected returns ErrNotFound when an update or delete matched no row.
func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// keyset appends the id cursor, order and limit to a list query. conditions
// are ANDed.
func keyset(base string, conditions []string, params []any, page pagination.Request) (string, []any) {
	if page.PageToken != "" {
		conditions = append(conditions, "id > ?")
		params = append(params, page.PageToken)
	}
	query := base
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY id ASC LIMIT ?"
	params = append(params, page.PageSize+1)
	return query, params
}

func withFilter(conditions []string, params []any, filter storage.Condition) ([]string, []any) {
	if filter.Empty() {
		return conditions, params
	}
	return append(conditions, "("+filter.Clause+")"), append(params, filter.Params...)
}

func normalizePage(page pagination.Request) (pagination.Request, error) {
	if page.PageSize <= 0 {
		return pagination.Request{}, fmt.Errorf("page size must be greater than zero")
	}
	page.PageToken = strings.TrimSpace(page.PageToken)
	return page, nil
}

// listPage runs a keyset query and trims the extra row into a next token.
func listPage[T any](ctx context.Context, s *Store, op string, query string, params []any, pageSize int, scan func(rowScanner) (T, error), cursor func(T) string) (pagination.Page[T], error) {
	rows, err := s.sqlDB.QueryContext(ctx, query, params...)
	if err != nil {
		return pagination.Page[T]{}, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	items := make([]T, 0, pageSize+1)
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return pagination.Page[T]{}, fmt.Errorf("%s: %w", op, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return pagination.Page[T]{}, fmt.Errorf("%s: %w", op, err)
	}
	return pagination.Trim(items, pageSize, cursor), nil
}

// listAll runs a query and scans every row.
func listAll[T any](ctx context.Context, s *Store, op string, query string, params []any, scan func(rowScanner) (T, error)) ([]T, error) {
	rows, err := s.sqlDB.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	items := []T{}
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return items, nil
}

func (s *Store) inTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("start transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", op, err)
	}
	return nil
}

var _ storage.Store = (*Store)(nil)
