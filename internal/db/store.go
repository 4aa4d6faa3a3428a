package db

import (
	"database/sql"
	"fmt"

	"github.com/kuochun/listsync/internal/models"
)

// Store persists queued mutations and the append-only resolution log.
// It satisfies queue.Store and conflict.RecordSink.
type Store struct {
	db *sql.DB
}

// NewStore creates a Store over an opened, migrated database.
func NewStore(database *DB) *Store {
	return &Store{db: database.DB}
}

// Put inserts or replaces the queued mutation row for an entity.
// Coalescing keeps one row per entity id.
func (s *Store) Put(rec *models.MutationRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO mutation_queue (entity_id, list_id, kind, payload, baseline, enqueued_at, attempts, position)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(entity_id) DO UPDATE SET
			payload = excluded.payload,
			baseline = excluded.baseline,
			enqueued_at = excluded.enqueued_at,
			attempts = excluded.attempts,
			position = excluded.position`,
		rec.EntityID, rec.ListID, rec.Kind, string(rec.Payload), nullableText(rec.Baseline),
		rec.EnqueuedAt, rec.Attempts, rec.Position,
	)
	if err != nil {
		return fmt.Errorf("failed to persist mutation for %s: %w", rec.EntityID, err)
	}
	return nil
}

// Delete removes the queued mutation row for an entity.
func (s *Store) Delete(entityID string) error {
	if _, err := s.db.Exec("DELETE FROM mutation_queue WHERE entity_id = ?", entityID); err != nil {
		return fmt.Errorf("failed to delete mutation for %s: %w", entityID, err)
	}
	return nil
}

// LoadAll returns all persisted mutations oldest-position-first.
func (s *Store) LoadAll() ([]*models.MutationRecord, error) {
	rows, err := s.db.Query(`
		SELECT entity_id, list_id, kind, payload, baseline, enqueued_at, attempts, position
		FROM mutation_queue ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to load mutation queue: %w", err)
	}
	defer rows.Close()

	var records []*models.MutationRecord
	for rows.Next() {
		var rec models.MutationRecord
		var payload string
		var baseline sql.NullString
		if err := rows.Scan(&rec.EntityID, &rec.ListID, &rec.Kind, &payload, &baseline,
			&rec.EnqueuedAt, &rec.Attempts, &rec.Position); err != nil {
			return nil, fmt.Errorf("failed to scan mutation row: %w", err)
		}
		rec.Payload = []byte(payload)
		if baseline.Valid {
			rec.Baseline = []byte(baseline.String)
		}
		records = append(records, &rec)
	}

	return records, rows.Err()
}

// AppendResolution appends one audit entry. Rows are never updated.
func (s *Store) AppendResolution(rec *models.ResolutionRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO resolution_log (id, conflict_id, item_id, list_id, strategy, applied_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.ConflictID, rec.ItemID, rec.ListID, rec.Strategy, rec.AppliedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append resolution record: %w", err)
	}
	return nil
}

// ListResolutions returns the most recent audit entries, newest first.
func (s *Store) ListResolutions(limit int) ([]*models.ResolutionRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.Query(`
		SELECT id, conflict_id, item_id, list_id, strategy, applied_at
		FROM resolution_log ORDER BY applied_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list resolutions: %w", err)
	}
	defer rows.Close()

	var records []*models.ResolutionRecord
	for rows.Next() {
		var rec models.ResolutionRecord
		if err := rows.Scan(&rec.ID, &rec.ConflictID, &rec.ItemID, &rec.ListID,
			&rec.Strategy, &rec.AppliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan resolution row: %w", err)
		}
		records = append(records, &rec)
	}

	return records, rows.Err()
}

func nullableText(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
