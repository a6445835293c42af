package sqlite

import (
	"database/sql"
	"strings"
	"time"
)

const (
	busyRetries = 5
	busyBackoff = 25 * time.Millisecond
)

// retryOnBusy retries fn when SQLite reports a locked or busy database.
// Writes from the pipeline and reads from the web monitor share one file,
// so transient SQLITE_BUSY errors are expected under load.
func retryOnBusy(fn func() error) error {
	var err error
	for attempt := 0; attempt < busyRetries; attempt++ {
		err = fn()
		if err == nil || !isBusy(err) {
			return err
		}
		time.Sleep(busyBackoff * time.Duration(attempt+1))
	}
	return err
}

func isBusy(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "SQLITE_BUSY")
}

// nullStr converts an empty string to a SQL NULL parameter.
func nullStr(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func scanNullStr(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}
