// Package database provides SQLite connectivity and schema migrations for zmapp.
//
// This package manages:
//   - Opening the database file with WAL mode, busy timeout and foreign keys
//   - Versioned migrations read from an fs.FS (embedded by package migrations)
//   - Health checks and transaction helpers
//
// All queries use parameterised statements. The database file is created
// with 0600 permissions because it holds password digests.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
package database
