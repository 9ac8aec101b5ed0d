// Package sqlite implements the repository interfaces on SQLite.
//
// SQLite keeps the whole deployment a single binary plus a single file —
// there is no database server to run, and tests get a throwaway database
// with ":memory:". We use modernc.org/sqlite, the pure-Go translation of
// SQLite, so builds need no CGo and cross-compile anywhere.
package sqlite

import (
	"database/sql"
	"fmt"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and provides the repository methods.
type DB struct {
	conn *sql.DB
}

// New opens the SQLite database at dbPath and runs migrations.
//
// dbPath is a file path ("data/medbox.db") or ":memory:" for tests.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// sql.Open doesn't actually connect; Ping surfaces a bad path or
	// permissions problem now instead of on the first query.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets reads proceed while a write is in flight — relevant for a
	// web server where requests overlap.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Off by default in SQLite for backwards compatibility.
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the connection pool. Callers should defer this right after
// New so the WAL is flushed and the file lock released on shutdown.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the schema. CREATE TABLE IF NOT EXISTS keeps it
// idempotent, so it is safe on every startup.
//
// The UNIQUE constraint on email is load-bearing: it is what serializes two
// concurrent first logins for the same address down to a single row. The
// medication, alarm, and stock tables will land here once those features
// grow past their page stubs.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id          TEXT PRIMARY KEY,
			email       TEXT NOT NULL UNIQUE,
			name        TEXT NOT NULL DEFAULT '',
			picture_url TEXT NOT NULL DEFAULT '',
			created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	return nil
}
