package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps the session database handle. All speller persistence (trained
// models, trial outcomes, training runs) lives in a single SQLite file so a
// session can be archived or inspected as one artifact.
type DB struct {
	*sql.DB
}

// Open opens (or creates) the session database at path and applies the
// connection pragmas. The schema itself is managed by migrations; see
// MigrateUp.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}

	// modernc.org/sqlite serializes writes per connection; WAL plus a busy
	// timeout keeps concurrent readers (report tooling, the web monitor)
	// from failing while the pipeline writes trial rows.
	_, err = sqlDB.Exec(`
		PRAGMA journal_mode = WAL;
		PRAGMA busy_timeout = 5000;
		PRAGMA foreign_keys = ON;
	`)
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}

	return &DB{sqlDB}, nil
}
