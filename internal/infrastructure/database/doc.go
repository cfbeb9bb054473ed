// Package database provides SQLite connectivity and schema migrations for
// the garage core.
//
// The store holds users, schedule definitions and the execution log.
// SQLite allows one writer, so the pool is pinned to a single connection
// and WAL mode is used for concurrent readers.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with a
// matching .down.sql, and are registered by the migrations package.
package database
