// Package db provides database schema migration management.
package db

import (
	"database/sql"
	"fmt"
	"time"
)

// migration is one versioned schema step. Steps are applied in order inside
// a transaction and recorded in schema_migrations.
type migration struct {
	Version     int
	Description string
	Statements  []string
}

// migrations holds the full schema history. Append only; never edit an
// applied step.
var migrations = []migration{
	{
		Version:     1,
		Description: "mutation queue",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS mutation_queue (
				entity_id   TEXT PRIMARY KEY,
				list_id     TEXT NOT NULL,
				kind        TEXT NOT NULL CHECK(kind IN ('item', 'category', 'meal_plan')),
				payload     TEXT NOT NULL,
				baseline    TEXT,
				enqueued_at INTEGER NOT NULL,
				attempts    INTEGER NOT NULL DEFAULT 0,
				position    INTEGER NOT NULL
			);`,
			`CREATE INDEX IF NOT EXISTS idx_mutation_queue_position ON mutation_queue(position);`,
		},
	},
	{
		Version:     2,
		Description: "resolution audit log",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS resolution_log (
				id          TEXT PRIMARY KEY,
				conflict_id TEXT NOT NULL,
				item_id     TEXT NOT NULL,
				list_id     TEXT NOT NULL,
				strategy    TEXT NOT NULL CHECK(strategy IN ('mine', 'theirs', 'manual')),
				applied_at  INTEGER NOT NULL
			);`,
			`CREATE INDEX IF NOT EXISTS idx_resolution_log_applied_at ON resolution_log(applied_at);`,
		},
	},
}

// Migrator applies pending schema migrations.
type Migrator struct {
	db *sql.DB
}

// NewMigrator creates a new Migrator instance.
func NewMigrator(db *sql.DB) *Migrator {
	return &Migrator{db: db}
}

// Initialize creates the schema_migrations table if it doesn't exist.
func (m *Migrator) Initialize() error {
	query := `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY CHECK(version > 0),
		applied_at INTEGER NOT NULL CHECK(applied_at > 0),
		description TEXT NOT NULL CHECK(length(description) > 0)
	);`
	_, err := m.db.Exec(query)
	return err
}

// CurrentVersion returns the current schema version.
func (m *Migrator) CurrentVersion() (int, error) {
	var version int
	err := m.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	return version, err
}

// Up applies all pending migrations.
func (m *Migrator) Up() error {
	if err := m.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize migrations table: %w", err)
	}

	current, err := m.CurrentVersion()
	if err != nil {
		return fmt.Errorf("failed to read current version: %w", err)
	}

	for _, mig := range migrations {
		if mig.Version <= current {
			continue
		}

		tx, err := m.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", mig.Version, err)
		}

		for _, stmt := range mig.Statements {
			if _, err := tx.Exec(stmt); err != nil {
				tx.Rollback()
				return fmt.Errorf("migration %d (%s) failed: %w", mig.Version, mig.Description, err)
			}
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_migrations (version, applied_at, description) VALUES (?, ?, ?)",
			mig.Version, time.Now().Unix(), mig.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", mig.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", mig.Version, err)
		}
	}

	return nil
}
