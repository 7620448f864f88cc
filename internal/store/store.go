// Package store persists per-session credentials and the message archive in
// a local sqlite database. Both tables use upsert-on-conflict writes and are
// safe for concurrent use across sessions; isolation between sessions comes
// from the session_id column scoping every credential query, not locks.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS auth_credentials (
    session_id TEXT NOT NULL,
    cred_key   TEXT NOT NULL,
    payload    BLOB NOT NULL,
    updated_at INTEGER NOT NULL,
    PRIMARY KEY (session_id, cred_key)
);

CREATE TABLE IF NOT EXISTS message_archive (
    message_id TEXT PRIMARY KEY,
    payload    BLOB NOT NULL,
    updated_at INTEGER NOT NULL
);
`

// Open opens (creating if needed) the sqlite database at path and applies
// the schema. The parent directory is created when missing.
func Open(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("store: create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}

	// Keep sqlite responsive under concurrent sessions.
	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000;",
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		"PRAGMA foreign_keys = ON;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("store: apply pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return db, nil
}
