package migrate

import (
	"database/sql"
	"path/filepath"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"
)

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"m/001_create_runs.up.sql":       {Data: []byte("CREATE TABLE runs (id INTEGER PRIMARY KEY);")},
		"m/001_create_runs.down.sql":     {Data: []byte("DROP TABLE runs;")},
		"m/002_add_cells.up.sql":         {Data: []byte("CREATE TABLE cells (id INTEGER PRIMARY KEY); CREATE INDEX idx_cells ON cells(id);")},
		"m/002_add_cells.down.sql":       {Data: []byte("DROP INDEX idx_cells; DROP TABLE cells;")},
		"m/README.md":                    {Data: []byte("not a migration")},
		"m/003_no_down_migration.up.sql": {Data: []byte("CREATE TABLE extra (id INTEGER);")},
	}
}

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "m.db"))
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name).Scan(&n); err != nil {
		t.Fatal(err)
	}
	return n == 1
}

func TestGetMigrations(t *testing.T) {
	migrations, err := NewFSProvider(testFS(), "m", "").GetMigrations()
	if err != nil {
		t.Fatalf("GetMigrations: %v", err)
	}
	if len(migrations) != 3 {
		t.Fatalf("expected 3 migrations, got %d", len(migrations))
	}
	if migrations[0].Version != 1 || migrations[0].Name != "create runs" || migrations[0].Down == "" {
		t.Errorf("unexpected first migration %+v", migrations[0])
	}
	if migrations[2].Down != "" {
		t.Errorf("migration 3 should have no down SQL")
	}
}

func TestMigrateUpAndDown(t *testing.T) {
	db := openDB(t)
	m := NewMigrator(db, NewFSProvider(testFS(), "m", ""), nil)

	if err := m.MigrateUp(); err != nil {
		t.Fatalf("MigrateUp: %v", err)
	}
	v, err := m.CurrentVersion()
	if err != nil {
		t.Fatal(err)
	}
	if v != 3 {
		t.Errorf("expected version 3, got %d", v)
	}
	if !tableExists(t, db, "cells") || !tableExists(t, db, "extra") {
		t.Error("expected tables to exist after migrating up")
	}

	// Running again is a no-op
	if err := m.MigrateUp(); err != nil {
		t.Fatalf("second MigrateUp: %v", err)
	}

	// Migration 3 cannot be rolled back
	if err := m.MigrateTo(1); err == nil {
		t.Error("expected rollback through a migration without down SQL to fail")
	}
}

func TestMigrateToIntermediateVersion(t *testing.T) {
	db := openDB(t)
	m := NewMigrator(db, NewFSProvider(testFS(), "m", "versions"), nil)

	if err := m.MigrateTo(2); err != nil {
		t.Fatalf("MigrateTo(2): %v", err)
	}
	pending, err := m.Pending()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].Version != 3 {
		t.Errorf("expected migration 3 pending, got %+v", pending)
	}

	if err := m.MigrateTo(1); err != nil {
		t.Fatalf("MigrateTo(1): %v", err)
	}
	if tableExists(t, db, "cells") {
		t.Error("cells should be dropped after rolling back to 1")
	}
	v, err := m.CurrentVersion()
	if err != nil {
		t.Fatal(err)
	}
	if v != 1 {
		t.Errorf("expected version 1, got %d", v)
	}
}
