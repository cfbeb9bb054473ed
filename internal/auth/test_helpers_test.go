package auth

import (
	"database/sql"
	"io"
	"log/slog"
	"testing"

	"github.com/nerrad567/garage-core/internal/testutil"
)

// testDB returns a migrated database handle.
func testDB(t *testing.T) *sql.DB {
	t.Helper()
	return testutil.OpenDB(t).DB
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const testSecret = "test-secret-key-for-jwt-signing-32+"
