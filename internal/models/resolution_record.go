package models

import "time"

// Resolution strategies recorded in the audit log.
const (
	StrategyMine   = "mine"
	StrategyTheirs = "theirs"
	StrategyManual = "manual"
)

// ResolutionRecord is one append-only audit entry describing how a conflict
// was retired. Rows are never updated after insertion.
type ResolutionRecord struct {
	ID         UUID   `db:"id" json:"id"`
	ConflictID string `db:"conflict_id" json:"conflict_id"`
	ItemID     UUID   `db:"item_id" json:"item_id"`
	ListID     UUID   `db:"list_id" json:"list_id"`
	Strategy   string `db:"strategy" json:"strategy"` // mine, theirs, manual
	AppliedAt  int64  `db:"applied_at" json:"applied_at"` // unix millis
}

// TableName returns the table name for ResolutionRecord.
func (ResolutionRecord) TableName() string {
	return "resolution_log"
}

// AppliedAtTime returns AppliedAt as time.Time.
func (r *ResolutionRecord) AppliedAtTime() time.Time {
	return time.UnixMilli(r.AppliedAt)
}
