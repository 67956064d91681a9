package db

import (
	"database/sql"
	"fmt"
)

// schema holds the DDL for one dialect, applied in order.
type schema struct {
	tables  []string
	indexes []string
}

var schemas = map[Dialect]schema{
	DialectPostgres: {
		tables: []string{`
CREATE TABLE IF NOT EXISTS watch_titles (
    id         BIGSERIAL PRIMARY KEY,
    title      TEXT NOT NULL,
    title_key  TEXT NOT NULL UNIQUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, `
CREATE TABLE IF NOT EXISTS dispatch_records (
    entry_key      TEXT PRIMARY KEY,
    title          TEXT NOT NULL,
    matched_title  TEXT NOT NULL DEFAULT '',
    source_link    TEXT NOT NULL,
    submitted_at   TIMESTAMPTZ NOT NULL,
    outcome        VARCHAR(16) NOT NULL CHECK (outcome IN ('success', 'failed')),
    artifact_ref   TEXT NOT NULL DEFAULT '',
    shareable_link TEXT NOT NULL DEFAULT '',
    failure_reason TEXT NOT NULL DEFAULT ''
)`},
		indexes: []string{
			`CREATE INDEX IF NOT EXISTS idx_dispatch_records_submitted_at ON dispatch_records(submitted_at DESC)`,
			`CREATE INDEX IF NOT EXISTS idx_dispatch_records_outcome ON dispatch_records(outcome)`,
		},
	},
	DialectSQLite: {
		tables: []string{`
CREATE TABLE IF NOT EXISTS watch_titles (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    title      TEXT NOT NULL,
    title_key  TEXT NOT NULL UNIQUE,
    created_at DATETIME NOT NULL
)`, `
CREATE TABLE IF NOT EXISTS dispatch_records (
    entry_key      TEXT PRIMARY KEY,
    title          TEXT NOT NULL,
    matched_title  TEXT NOT NULL DEFAULT '',
    source_link    TEXT NOT NULL,
    submitted_at   DATETIME NOT NULL,
    outcome        TEXT NOT NULL CHECK (outcome IN ('success', 'failed')),
    artifact_ref   TEXT NOT NULL DEFAULT '',
    shareable_link TEXT NOT NULL DEFAULT '',
    failure_reason TEXT NOT NULL DEFAULT ''
)`},
		indexes: []string{
			`CREATE INDEX IF NOT EXISTS idx_dispatch_records_submitted_at ON dispatch_records(submitted_at DESC)`,
			`CREATE INDEX IF NOT EXISTS idx_dispatch_records_outcome ON dispatch_records(outcome)`,
		},
	},
}

// MigrateUp creates the watch list and ledger tables for dialect. It is idempotent.
func MigrateUp(db *sql.DB, dialect Dialect) error {
	s, ok := schemas[dialect]
	if !ok {
		return fmt.Errorf("unsupported dialect %q", dialect)
	}
	for _, stmt := range s.tables {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	for _, idx := range s.indexes {
		if _, err := db.Exec(idx); err != nil {
			return err
		}
	}
	return nil
}

// MigrateDown drops every table MigrateUp creates.
// Use with caution: this deletes the dispatch ledger, after which entries may be dispatched again.
func MigrateDown(db *sql.DB) error {
	dropStatements := []string{
		`DROP INDEX IF EXISTS idx_dispatch_records_outcome`,
		`DROP INDEX IF EXISTS idx_dispatch_records_submitted_at`,
		`DROP TABLE IF EXISTS dispatch_records`,
		`DROP TABLE IF EXISTS watch_titles`,
	}
	for _, stmt := range dropStatements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
