// Package testutil provides shared fixtures for package tests.
package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/garage-core/internal/infrastructure/database"
	_ "github.com/nerrad567/garage-core/migrations" // registers the schema
)

// OpenDB opens a temp-file SQLite database with every migration applied.
// It is closed when the test finishes.
func OpenDB(t testing.TB) *database.DB {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "garage-test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("migrating test db: %v", err)
	}
	return db
}

// InsertUser adds a bare user row so foreign keys resolve.
func InsertUser(t testing.TB, db *database.DB, id, username string) {
	t.Helper()

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := db.ExecContext(context.Background(),
		`INSERT INTO users (id, username, password_hash, role, created_at, updated_at) VALUES (?, ?, 'x', 'user', ?, ?)`,
		id, username, now, now)
	if err != nil {
		t.Fatalf("inserting user %s: %v", id, err)
	}
}
