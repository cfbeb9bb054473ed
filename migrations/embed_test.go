package migrations

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/nerrad567/garage-core/internal/infrastructure/database"
)

func TestEmbeddedMigrations(t *testing.T) {
	db, err := database.Open(database.Config{Path: filepath.Join(t.TempDir(), "garage.db")})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close() //nolint:errcheck // test cleanup

	ctx := context.Background()
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	for _, table := range []string{"users", "schedules", "execution_logs"} {
		var n int
		if err := db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&n); err != nil {
			t.Fatalf("query sqlite_master: %v", err)
		}
		if n != 1 {
			t.Errorf("table %s not created", table)
		}
	}

	// Every migration must roll back cleanly.
	for range 3 {
		if err := db.MigrateDown(ctx); err != nil {
			t.Fatalf("MigrateDown() error = %v", err)
		}
	}
	applied, pending, err := db.GetMigrationStatus(ctx)
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	if len(applied) != 0 || len(pending) != 3 {
		t.Errorf("applied=%d pending=%d after full rollback", len(applied), len(pending))
	}
}
