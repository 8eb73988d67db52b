// Package sqlite persists run history in an embedded SQLite database.
package sqlite

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"schemaforge/internal/config"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	source TEXT NOT NULL,
	source_kind TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS schema_versions (
	id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL REFERENCES runs(id),
	version INTEGER NOT NULL,
	payload TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	UNIQUE (run_id, version)
);

CREATE TABLE IF NOT EXISTS feedback_rounds (
	id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL REFERENCES runs(id),
	schema_version INTEGER NOT NULL,
	feedback TEXT NOT NULL,
	changed_columns TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_schema_versions_run ON schema_versions(run_id);
CREATE INDEX IF NOT EXISTS idx_feedback_rounds_run ON feedback_rounds(run_id);
`

// NewDB opens (and if needed initializes) the history database.
func NewDB(cfg *config.HistoryConfig) (*sqlx.DB, error) {
	db, err := sqlx.Connect("sqlite3", cfg.DBPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening history db: %w", err)
	}
	// SQLite serializes writes; a single connection avoids lock errors.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaDDL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing history db schema: %w", err)
	}
	return db, nil
}
