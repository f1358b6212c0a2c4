package registry

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// schema creates the three tables that make up the registry's persistent
// state: the eligible-voter whitelist, the per-voter registration rows, and
// the single-row issuer key table. All three live in one SQLite file, as in
// the original implementation's voter_registry.db.
const schema = `
CREATE TABLE IF NOT EXISTS eligible_voters (
	voter_id TEXT PRIMARY KEY,
	name     TEXT
);

CREATE TABLE IF NOT EXISTS voters (
	voter_id        TEXT PRIMARY KEY,
	registered_at   TEXT NOT NULL DEFAULT (datetime('now')),
	token_issued    INTEGER NOT NULL DEFAULT 0,
	token_issued_at TEXT
);

CREATE TABLE IF NOT EXISTS issuer_keys (
	id          INTEGER PRIMARY KEY CHECK (id = 1),
	private_key TEXT NOT NULL,
	public_key  TEXT NOT NULL,
	created_at  TEXT NOT NULL DEFAULT (datetime('now'))
);
`

// OpenDB opens (creating if necessary) the registry's SQLite database at
// path and ensures its schema exists.
func OpenDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("registry: open db: %w", err)
	}
	// The registry is written from multiple goroutines; SQLite only
	// supports one writer at a time, so a single connection avoids
	// "database is locked" errors under concurrent issuance attempts.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("registry: create schema: %w", err)
	}
	return db, nil
}
