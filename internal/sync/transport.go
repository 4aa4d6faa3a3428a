// Package sync wires the reconciliation core together: the offline mutation
// queue, conflict detection and resolution, the notification stack, and the
// periodic scheduler, behind a single Reconciler facade.
package sync

import (
	"context"

	"github.com/kuochun/listsync/internal/models"
	"github.com/kuochun/listsync/internal/sync/conflict"
	"github.com/kuochun/listsync/internal/sync/queue"
)

// RemoteUpdate is one entity version received from the server.
type RemoteUpdate struct {
	Snapshot models.EntitySnapshot
	Meta     conflict.RemoteMeta
}

// Transport is the out-of-process sync collaborator. The core never talks
// to the network directly; it hands mutations to the transport and receives
// remote versions back.
type Transport interface {
	// Push transmits queued mutations. An error means none of them may be
	// treated as acknowledged.
	Push(ctx context.Context, mutations []*queue.QueuedMutation) error
	// Pull fetches remote versions changed since the last cycle.
	Pull(ctx context.Context) ([]RemoteUpdate, error)
	// SupportsPeriodicSync reports the platform's background-sync
	// capability.
	SupportsPeriodicSync() bool
}

// ApplyFunc receives remote snapshots that arrived without conflicting;
// the host applies them to its local store and UI.
type ApplyFunc func(snapshot models.EntitySnapshot)

// EventSink receives reconciliation lifecycle events for broadcast to
// attached clients. Implementations must not block.
type EventSink interface {
	ConflictDetected(c *conflict.Conflict)
	ConflictResolved(conflictID, outcome string)
	SyncStarted(cause string)
	SyncCompleted(result *SyncResult)
	SyncFailed(cause string, err error)
}

// SyncResult summarizes one completed sync cycle.
type SyncResult struct {
	Cause      string `json:"cause"`
	Pushed     int    `json:"pushed"`
	Pulled     int    `json:"pulled"`
	Conflicts  int    `json:"conflicts"`
	DurationMs int64  `json:"duration_ms"`
}
