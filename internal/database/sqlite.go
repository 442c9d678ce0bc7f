package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// NewLocalDB opens the on-device SQLite database backing the local store.
func NewLocalDB(path string, busyTimeout time.Duration) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open local database: %w", err)
	}

	// An in-memory database only lives as long as its connection.
	if path == ":memory:" || strings.Contains(path, "mode=memory") {
		sqldb.SetMaxOpenConns(1)
		sqldb.SetConnMaxLifetime(0)
	}

	db := bun.NewDB(sqldb, sqlitedialect.New())

	if _, err := db.Exec("SELECT 1"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach local database: %w", err)
	}

	// WAL lets the shell read while a background refresh writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=?", busyTimeout.Milliseconds()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy_timeout: %w", err)
	}

	return db, nil
}
