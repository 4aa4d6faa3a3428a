// Package conflict provides conflict detection and resolution coordination
// for multi-client list synchronization.
package conflict

import (
	"strconv"

	"github.com/kuochun/listsync/internal/models"
	"github.com/kuochun/listsync/internal/uuid"
)

// Type classifies how two versions of the same entity diverged.
type Type string

const (
	// TypeConcurrentEdit: both sides touched at least one common field.
	TypeConcurrentEdit Type = "concurrent_edit"
	// TypeDeleteEdit: one side deleted the entity, the other edited it.
	TypeDeleteEdit Type = "delete_edit"
	// TypeEditEdit: both sides edited disjoint fields.
	TypeEditEdit Type = "edit_edit"
)

// Priorities. Higher sorts first in the notification stack.
const (
	PriorityDeleteEdit = 10
	PriorityNearSimul  = 10 // concurrent edits under 1s apart
	PriorityRecent     = 5  // concurrent edits under 5s apart
	PriorityDefault    = 1
)

// EntityVersion is one side's view of an entity at a point in time. Never
// mutated after construction; owned by the Conflict that references it.
type EntityVersion struct {
	Value     models.EntitySnapshot
	Changes   []models.FieldChange
	Timestamp int64 // unix millis
	UserID    string
	UserName  string
}

// Conflict is a detected divergence between a queued local version and an
// incoming remote version of the same entity.
type Conflict struct {
	ID             string
	Type           Type
	ItemID         string
	ItemName       string
	ListID         string
	LocalVersion   EntityVersion
	RemoteVersion  EntityVersion
	Timestamp      int64 // unix millis
	Priority       int
	AutoResolvable bool
}

// RemoteMeta describes who produced an incoming remote version and when.
type RemoteMeta struct {
	UserID    string
	UserName  string
	Timestamp int64 // unix millis
}

// Identity names the local user for the local side of a conflict.
type Identity struct {
	UserID   string
	UserName string
}

// DeterministicID derives the conflict id from the detection inputs, so
// re-running detection on the same inputs yields the same conflict.
func DeterministicID(itemID string, localEnqueuedAt, remoteTimestamp int64) string {
	return uuid.NewDeterministic(
		itemID,
		strconv.FormatInt(localEnqueuedAt, 10),
		strconv.FormatInt(remoteTimestamp, 10),
	)
}
