// Package store provides the SQLite-backed note persistence layer.
package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS notes (
	id                TEXT PRIMARY KEY,
	created_at        DATETIME NOT NULL,
	pinned            INTEGER NOT NULL DEFAULT 0,
	raw_text          TEXT NOT NULL,
	corrected         TEXT NOT NULL DEFAULT '',
	title             TEXT NOT NULL DEFAULT '',
	emoji             TEXT NOT NULL DEFAULT '',
	tags              TEXT NOT NULL DEFAULT '[]',
	kind              TEXT NOT NULL DEFAULT 'idea',
	status            TEXT NOT NULL DEFAULT 'inbox',
	priority          TEXT NOT NULL DEFAULT 'p3',
	area              TEXT NOT NULL DEFAULT 'other',
	project           TEXT NOT NULL DEFAULT '',
	people            TEXT NOT NULL DEFAULT '[]',
	due_at            DATETIME,
	summary           TEXT NOT NULL DEFAULT '',
	action_items      TEXT NOT NULL DEFAULT '[]',
	links             TEXT NOT NULL DEFAULT '[]',
	enhancing         INTEGER NOT NULL DEFAULT 0,
	enhancement_error TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_notes_created ON notes(created_at);
CREATE INDEX IF NOT EXISTS idx_notes_kind ON notes(kind);
`

// DB wraps a sql.DB with note-store operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
