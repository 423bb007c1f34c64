package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "notes: decaying notes with penalty and lifecycle state",
		SQL: `
CREATE TABLE notes (
    id                     TEXT PRIMARY KEY,
    owner_id               TEXT NOT NULL,
    title                  TEXT NOT NULL,
    content                TEXT NOT NULL,

    -- Decay timer
    decay_minutes          INTEGER NOT NULL,
    original_decay_minutes INTEGER NOT NULL,
    last_revised           INTEGER NOT NULL,

    -- Lifecycle
    status                 TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'archived', 'revived')),
    archived_at            INTEGER,
    revived_at             INTEGER,

    -- Penalties
    wrong_answers          INTEGER NOT NULL DEFAULT 0,
    penalty_applied        INTEGER NOT NULL DEFAULT 0,

    -- AI revision content
    ai_summary             TEXT,
    ai_questions           TEXT,

    created_at             INTEGER NOT NULL
);

CREATE INDEX idx_notes_owner_status ON notes(owner_id, status);
CREATE INDEX idx_notes_last_revised ON notes(last_revised DESC);
CREATE INDEX idx_notes_archived_at  ON notes(archived_at DESC);
`,
	},
}

func (db *DB) migrate() error {
	// Create schema_versions table if it doesn't exist
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
