package storage

import (
	"database/sql"
	"fmt"
)

// InitDB initializes the database schema.
// PRE: db is a valid database connection
// POST: The record table exists, WAL mode enabled
func InitDB(db *sql.DB) error {
	// WAL lets the emulator serve reads while a write is in flight
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS record (
		app_id TEXT NOT NULL,
		id TEXT NOT NULL,
		fields TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (app_id, id)
	);

	CREATE INDEX IF NOT EXISTS idx_record_app_created ON record(app_id, created_at);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}
