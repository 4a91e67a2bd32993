package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *Database {
	t.Helper()
	database, err := Open(filepath.Join(t.TempDir(), "nested", "jobs.db"))
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

func TestOpen_MigratesSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.db")
	database, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if database.Path() != path {
		t.Errorf("Path() = %q", database.Path())
	}
	if err := database.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error: %v", err)
	}
	if err := database.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	version, dirty, err := MigrationVersionFromPath(path)
	if err != nil {
		t.Fatalf("MigrationVersionFromPath() error: %v", err)
	}
	if version != SchemaVersion || dirty {
		t.Errorf("version = %d dirty = %v, want %d clean", version, dirty, SchemaVersion)
	}

	// Reopening an up-to-date database is fine.
	again, err := Open(path)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	again.Close()
}

func TestOpen_EmptyPath(t *testing.T) {
	if _, err := Open(""); !errors.Is(err, ErrNoPath) {
		t.Errorf("Open(\"\") error = %v, want ErrNoPath", err)
	}
}

func TestDatabase_Closed(t *testing.T) {
	database := openTestDB(t)
	if err := database.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if err := database.Close(); err != nil {
		t.Errorf("second Close() error: %v", err)
	}

	ctx := context.Background()
	if err := database.Ping(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("Ping() after Close = %v", err)
	}
	if _, err := database.ExecContext(ctx, "SELECT 1"); !errors.Is(err, ErrClosed) {
		t.Errorf("ExecContext() after Close = %v", err)
	}
	var n int
	if err := database.ScanOne(ctx, []any{&n}, "SELECT 1"); !errors.Is(err, ErrClosed) {
		t.Errorf("ScanOne() after Close = %v", err)
	}
}

func TestMigrateDown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.db")
	if err := MigrateUpFromPath(path); err != nil {
		t.Fatalf("MigrateUpFromPath() error: %v", err)
	}

	conn, err := NewSQLiteConnection(DefaultConnectionConfig(path))
	if err != nil {
		t.Fatal(err)
	}
	if err := MigrateDown(conn, 1); err != nil {
		t.Fatalf("MigrateDown(1) error: %v", err)
	}
	if v, _, _ := MigrationVersionFromPath(path); v != 1 {
		t.Errorf("version after one step down = %d, want 1", v)
	}

	conn, err = NewSQLiteConnection(DefaultConnectionConfig(path))
	if err != nil {
		t.Fatal(err)
	}
	if err := MigrateDown(conn, -1); err != nil {
		t.Fatalf("MigrateDown(-1) error: %v", err)
	}
	if v, _, _ := MigrationVersionFromPath(path); v != 0 {
		t.Errorf("version after full rollback = %d, want 0", v)
	}
}

func TestNewSQLiteConnection(t *testing.T) {
	if _, err := NewSQLiteConnection(ConnectionConfig{}); !errors.Is(err, ErrNoPath) {
		t.Errorf("empty path error = %v", err)
	}

	conn, err := NewSQLiteConnection(DefaultConnectionConfig(filepath.Join(t.TempDir(), "wal.db")))
	if err != nil {
		t.Fatalf("NewSQLiteConnection() error: %v", err)
	}
	defer conn.Close()

	var fk int
	if err := conn.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil || fk != 1 {
		t.Errorf("foreign_keys = %d, %v", fk, err)
	}
	if conn.Stats().MaxOpenConnections != 1 {
		t.Errorf("MaxOpenConnections = %d", conn.Stats().MaxOpenConnections)
	}
}
