package conflict

import (
	apperrors "github.com/kuochun/listsync/internal/errors"
	"github.com/kuochun/listsync/internal/logging"
	"github.com/kuochun/listsync/internal/models"
	"github.com/kuochun/listsync/internal/sync/diff"
	"github.com/kuochun/listsync/internal/sync/queue"
)

// Detector classifies divergence between a queued local version and an
// incoming remote version of the same entity. Detection is synchronous,
// deterministic, and idempotent: identical inputs produce an identical
// Conflict, including its id.
type Detector struct {
	local Identity
}

// NewDetector creates a Detector attributing local versions to the given
// user.
func NewDetector(local Identity) *Detector {
	return &Detector{local: local}
}

// Detect returns the Conflict between the pending local mutation and the
// incoming remote snapshot, or nil when they do not actually diverge.
// A nil local mutation means the remote update is simply accepted.
func (d *Detector) Detect(local *queue.QueuedMutation, remote models.EntitySnapshot, meta RemoteMeta) *Conflict {
	if local == nil || remote == nil {
		return nil
	}

	baseline := local.Baseline
	ambiguous := baseline == nil
	if ambiguous {
		// Missing baseline: diff against the identity-only zero value and
		// classify conservatively rather than dropping the divergence.
		logging.WarnWithCode("Detection baseline missing, classifying conservatively",
			string(apperrors.ErrDetectionAmbiguity),
			map[string]interface{}{"entity_id": local.EntityID})
		baseline = models.ZeroSnapshot(remote.Kind(), remote.EntityID(), remote.ListID())
	}

	localChanges := diff.Diff(baseline, local.Payload)
	remoteChanges := diff.Diff(baseline, remote)

	// Deletion is a change in its own right even when no diffable field
	// moved, so it is tracked alongside the field change sets.
	localDeleted := local.Payload.IsDeleted()
	remoteDeleted := remote.IsDeleted()
	baseDeleted := baseline.IsDeleted()

	localChanged := len(localChanges) > 0 || localDeleted != baseDeleted
	remoteChanged := len(remoteChanges) > 0 || remoteDeleted != baseDeleted

	// No actual divergence: a zero-priority conflict here would only
	// produce spurious notifications.
	if !localChanged || !remoteChanged {
		return nil
	}
	if localDeleted == remoteDeleted && len(diff.Diff(local.Payload, remote)) == 0 {
		return nil
	}
	if localDeleted && remoteDeleted {
		return nil
	}

	var (
		conflictType   Type
		priority       int
		autoResolvable bool
	)

	switch {
	case localDeleted || remoteDeleted:
		conflictType = TypeDeleteEdit
		priority = PriorityDeleteEdit
		autoResolvable = false
	case ambiguous || diff.Overlap(localChanges, remoteChanges):
		conflictType = TypeConcurrentEdit
		priority = timestampDeltaBucket(local.EnqueuedAt, meta.Timestamp)
		autoResolvable = false
	default:
		conflictType = TypeEditEdit
		priority = PriorityDefault
		autoResolvable = true
	}

	itemName := local.Payload.DisplayName()
	if itemName == "" {
		itemName = remote.DisplayName()
	}

	timestamp := meta.Timestamp
	if local.EnqueuedAt > timestamp {
		timestamp = local.EnqueuedAt
	}

	c := &Conflict{
		ID:       DeterministicID(local.EntityID, local.EnqueuedAt, meta.Timestamp),
		Type:     conflictType,
		ItemID:   local.EntityID,
		ItemName: itemName,
		ListID:   local.ListID,
		LocalVersion: EntityVersion{
			Value:     local.Payload,
			Changes:   localChanges,
			Timestamp: local.EnqueuedAt,
			UserID:    d.local.UserID,
			UserName:  d.local.UserName,
		},
		RemoteVersion: EntityVersion{
			Value:     remote,
			Changes:   remoteChanges,
			Timestamp: meta.Timestamp,
			UserID:    meta.UserID,
			UserName:  meta.UserName,
		},
		Timestamp:      timestamp,
		Priority:       priority,
		AutoResolvable: autoResolvable,
	}

	logging.Warn("Conflict detected",
		map[string]interface{}{
			"conflict_id":     c.ID,
			"type":            string(c.Type),
			"item_id":         c.ItemID,
			"priority":        c.Priority,
			"auto_resolvable": c.AutoResolvable,
			"local_user":      c.LocalVersion.UserID,
			"remote_user":     c.RemoteVersion.UserID,
		})

	return c
}

// timestampDeltaBucket ranks concurrent edits by recency: the closer the
// two writes, the likelier both users are actively editing, the higher the
// priority.
func timestampDeltaBucket(localMillis, remoteMillis int64) int {
	delta := localMillis - remoteMillis
	if delta < 0 {
		delta = -delta
	}

	switch {
	case delta < 1000:
		return PriorityNearSimul
	case delta < 5000:
		return PriorityRecent
	default:
		return PriorityDefault
	}
}
