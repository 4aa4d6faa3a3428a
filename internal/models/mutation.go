package models

import (
	"encoding/json"
	"time"
)

// MutationRecord is the persisted form of a queued local mutation.
// One row per entity id; the queue coalesces newer local intents into it.
type MutationRecord struct {
	EntityID   UUID            `db:"entity_id" json:"entity_id"`
	ListID     UUID            `db:"list_id" json:"list_id"`
	Kind       string          `db:"kind" json:"kind"`
	Payload    json.RawMessage `db:"payload" json:"payload"`
	Baseline   json.RawMessage `db:"baseline" json:"baseline"`
	EnqueuedAt int64           `db:"enqueued_at" json:"enqueued_at"` // unix millis
	Attempts   int             `db:"attempts" json:"attempts"`
	Position   int64           `db:"position" json:"position"`
}

// TableName returns the table name for MutationRecord.
func (MutationRecord) TableName() string {
	return "mutation_queue"
}

// EnqueuedAtTime returns EnqueuedAt as time.Time.
func (m *MutationRecord) EnqueuedAtTime() time.Time {
	return time.UnixMilli(m.EnqueuedAt)
}
