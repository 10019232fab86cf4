package sqlitemigrate

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"
)

const createPlaces = "-- +migrate Up\nCREATE TABLE places(id TEXT PRIMARY KEY);\n-- +migrate Down\nDROP TABLE places;"

func TestApplyMigrations(t *testing.T) {
	tests := []struct {
		name      string
		root      string
		fsys      fstest.MapFS
		runs      int
		wantRows  int64
		wantTable string
		wantKey   string
	}{
		{
			name:      "applies once",
			fsys:      fstest.MapFS{"0001_places.sql": {Data: []byte(createPlaces)}},
			wantRows:  1,
			wantTable: "places",
			wantKey:   "0001_places.sql",
		},
		{
			name:      "replay is a no-op",
			fsys:      fstest.MapFS{"0001_places.sql": {Data: []byte(createPlaces)}},
			runs:      2,
			wantRows:  1,
			wantTable: "places",
			wantKey:   "0001_places.sql",
		},
		{
			name:      "root prefixes key",
			root:      "roleplay",
			fsys:      fstest.MapFS{"roleplay/0001_places.sql": {Data: []byte(createPlaces)}},
			wantRows:  1,
			wantTable: "places",
			wantKey:   "roleplay/0001_places.sql",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			db := openInMemoryDB(t)
			for range max(tc.runs, 1) {
				if err := ApplyMigrations(db, tc.fsys, tc.root); err != nil {
					t.Fatalf("apply migrations: %v", err)
				}
			}
			if rows := queryInt64(t, db, "SELECT COUNT(*) FROM schema_migrations"); rows != tc.wantRows {
				t.Fatalf("migration rows = %d, want %d", rows, tc.wantRows)
			}
			if key := queryString(t, db, "SELECT name FROM schema_migrations LIMIT 1"); key != tc.wantKey {
				t.Fatalf("migration key = %q, want %q", key, tc.wantKey)
			}
			if !tableExists(t, db, tc.wantTable) {
				t.Fatalf("table %s missing", tc.wantTable)
			}
		})
	}
}

func TestFailedMigrationCanBeRetried(t *testing.T) {
	db := openInMemoryDB(t)

	broken := fstest.MapFS{"0001_places.sql": {Data: []byte("-- +migrate Up\nCREAT TABLE places(id TEXT);")}}
	if err := ApplyMigrations(db, broken, ""); err == nil {
		t.Fatal("expected syntax error")
	}
	if rows := queryInt64(t, db, "SELECT COUNT(*) FROM schema_migrations"); rows != 0 {
		t.Fatalf("failed migration recorded %d rows", rows)
	}

	fixed := fstest.MapFS{"0001_places.sql": {Data: []byte(createPlaces)}}
	if err := ApplyMigrations(db, fixed, ""); err != nil {
		t.Fatalf("apply fixed migration: %v", err)
	}
	if !tableExists(t, db, "places") {
		t.Fatal("fixed migration did not run")
	}
}

func TestIsAlreadyExistsError(t *testing.T) {
	if IsAlreadyExistsError(nil) {
		t.Fatal("nil is not an exists error")
	}
	if !IsAlreadyExistsError(errors.New("table places already exists")) {
		t.Fatal("expected exists error")
	}
	if !IsAlreadyExistsError(errors.New("duplicate column name: slug")) {
		t.Fatal("expected duplicate column error")
	}
	if IsAlreadyExistsError(errors.New("no such table: races")) {
		t.Fatal("unexpected exists error")
	}
}

func TestApplyReturnsAppliedNamesInOrder(t *testing.T) {
	db := openInMemoryDB(t)

	migrations := fstest.MapFS{
		"002_second.sql": &fstest.MapFile{Data: []byte("-- +migrate Up\nCREATE TABLE second(id TEXT);\n-- +migrate Down\nDROP TABLE second;")},
		"001_first.sql":  &fstest.MapFile{Data: []byte("-- +migrate Up\nCREATE TABLE first(id TEXT);")},
		"README.md":      &fstest.MapFile{Data: []byte("not a migration")},
	}
	applied, err := Apply(context.Background(), db, migrations, "")
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(applied) != 2 || applied[0] != "001_first.sql" || applied[1] != "002_second.sql" {
		t.Fatalf("applied = %v", applied)
	}
	if !tableExists(t, db, "second") {
		t.Fatal("expected second table to exist")
	}

	again, err := Apply(context.Background(), db, migrations, "")
	if err != nil {
		t.Fatalf("re-apply: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("expected nothing applied on replay, got %v", again)
	}
}

func TestExtractUpMigration(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "CREATE TABLE a(id TEXT);", want: "CREATE TABLE a(id TEXT);"},
		{in: "-- +migrate Up\nCREATE TABLE a(id TEXT);", want: "\nCREATE TABLE a(id TEXT);"},
		{in: "-- +migrate Up\nA;\n-- +migrate Down\nB;", want: "\nA;\n"},
	}
	for _, tc := range tests {
		if got := ExtractUpMigration(tc.in); got != tc.want {
			t.Fatalf("ExtractUpMigration(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func openInMemoryDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open in-memory db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Fatalf("close db: %v", err)
		}
	})
	return db
}

func queryInt64(t *testing.T, db *sql.DB, query string) int64 {
	t.Helper()
	var value int64
	row := db.QueryRow(query)
	if err := row.Scan(&value); err != nil {
		t.Fatalf("query int value: %v", err)
	}
	return value
}

func queryString(t *testing.T, db *sql.DB, query string) string {
	t.Helper()
	var value string
	row := db.QueryRow(query)
	if err := row.Scan(&value); err != nil {
		t.Fatalf("query string value: %v", err)
	}
	return value
}

func tableExists(t *testing.T, db *sql.DB, tableName string) bool {
	t.Helper()
	query := "SELECT name FROM sqlite_master WHERE type='table' AND name = ?"
	var name string
	row := db.QueryRow(query, tableName)
	if err := row.Scan(&name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false
		}
		t.Fatalf("check table exists: %v", err)
	}
	return name == tableName
}
