package sync

import (
	"context"
	"sync"
	"time"

	"github.com/kuochun/listsync/internal/clock"
	apperrors "github.com/kuochun/listsync/internal/errors"
	"github.com/kuochun/listsync/internal/logging"
	"github.com/kuochun/listsync/internal/models"
	"github.com/kuochun/listsync/internal/sync/conflict"
	"github.com/kuochun/listsync/internal/sync/notify"
	"github.com/kuochun/listsync/internal/sync/queue"
	"github.com/kuochun/listsync/internal/sync/scheduler"
)

// DefaultSyncInterval is the periodic sync cadence when none is configured.
const DefaultSyncInterval = 5 * time.Minute

// Config assembles a Reconciler. Transport is required; everything else
// has a working zero value.
type Config struct {
	Identity  conflict.Identity
	Transport Transport

	Store   queue.Store           // nil = in-memory queue
	Records conflict.RecordSink   // nil = no resolution audit log
	Merger  conflict.ManualMerger // nil = manual strategy unavailable
	Events  EventSink             // nil = no event broadcast
	Apply   ApplyFunc             // nil = accepted remote updates dropped
	Clock   clock.Clock           // nil = system clock

	SyncInterval     time.Duration // 0 = DefaultSyncInterval
	MaxVisible       int           // 0 = notify.DefaultMaxVisible
	CountdownSeconds int           // 0 = notify.DefaultCountdownSeconds
}

// Reconciler is the facade over the reconciliation core. The transport
// feeds it remote updates and acknowledgments; the presentation layer reads
// notifications and calls Resolve/Dismiss. All cross-component wiring lives
// here so the components stay independently testable.
type Reconciler struct {
	queue     *queue.MutationQueue
	detector  *conflict.Detector
	coord     *conflict.Coordinator
	stack     *notify.Stack
	sched     *scheduler.Scheduler
	transport Transport
	events    EventSink
	apply     ApplyFunc
	clk       clock.Clock

	mu       sync.Mutex // guards deferred and the sync-in-progress flag
	deferred map[string]RemoteUpdate
	syncing  bool
}

// NewReconciler builds and wires the full reconciliation core.
func NewReconciler(cfg Config) *Reconciler {
	clk := cfg.Clock
	if clk == nil {
		clk = clock.System()
	}
	interval := cfg.SyncInterval
	if interval <= 0 {
		interval = DefaultSyncInterval
	}
	events := cfg.Events
	if events == nil {
		events = nopEvents{}
	}

	r := &Reconciler{
		queue:     queue.NewMutationQueue(cfg.Store, clk),
		detector:  conflict.NewDetector(cfg.Identity),
		transport: cfg.Transport,
		events:    events,
		apply:     cfg.Apply,
		clk:       clk,
		deferred:  make(map[string]RemoteUpdate),
	}

	r.coord = conflict.NewCoordinator(r.queue, cfg.Records, cfg.Merger, clk)
	r.coord.SetRetiredHook(r.onConflictRetired)

	var opts []notify.Option
	if cfg.MaxVisible > 0 {
		opts = append(opts, notify.WithMaxVisible(cfg.MaxVisible))
	}
	if cfg.CountdownSeconds > 0 {
		opts = append(opts, notify.WithCountdown(cfg.CountdownSeconds))
	}
	r.stack = notify.NewStack(r.onCountdownExpired, clk, opts...)

	r.sched = scheduler.New(syncRunner{r}, interval,
		cfg.Transport.SupportsPeriodicSync(), clk)

	return r
}

// Restore reloads persisted queue state. Call once before Start.
func (r *Reconciler) Restore() error {
	return r.queue.Restore()
}

// Start begins notification countdowns and the periodic sync schedule.
func (r *Reconciler) Start() {
	r.stack.Start()
	r.sched.Start()
}

// Stop shuts the scheduler and countdowns down cleanly.
func (r *Reconciler) Stop() {
	r.sched.Stop()
	r.stack.Stop()
}

// Enqueue records a local edit for transmission. baseline is the last value
// both sides agreed on, before the edit.
func (r *Reconciler) Enqueue(payload, baseline models.EntitySnapshot) {
	r.queue.Enqueue(payload, baseline)
}

// Acknowledge removes an entity's queued mutation once the transport
// confirms the server persisted it.
func (r *Reconciler) Acknowledge(entityID string) {
	r.queue.DequeueAcknowledged(entityID)
}

// OnTransportFailure records a failed transmission attempt. The mutation
// stays queued; retry policy belongs to the transport.
func (r *Reconciler) OnTransportFailure(entityID string) {
	attempts := r.queue.MarkAttempt(entityID)
	logging.WarnWithCode("Mutation transmission failed",
		string(apperrors.ErrTransportFailure),
		map[string]interface{}{"entity_id": entityID, "attempts": attempts})
}

// OnRemoteUpdate ingests a remote entity version. Non-conflicting versions
// are applied directly; divergent ones become active conflicts. A remote
// version for an entity already in conflict is deferred until that conflict
// retires, keeping only the newest deferred version.
func (r *Reconciler) OnRemoteUpdate(snapshot models.EntitySnapshot, meta conflict.RemoteMeta) {
	entityID := snapshot.EntityID()
	listID := snapshot.ListID()

	if r.coord.HasActiveFor(entityID, listID) {
		r.deferRemote(RemoteUpdate{Snapshot: snapshot, Meta: meta})
		return
	}

	local := r.queue.PendingFor(entityID)
	if local == nil {
		r.applyRemote(snapshot)
		return
	}

	c := r.detector.Detect(local, snapshot, meta)
	if c == nil {
		// The pending local intent and the remote version do not diverge;
		// the remote value is safe to show while the mutation stays queued.
		r.applyRemote(snapshot)
		return
	}

	if !r.coord.Submit(c) {
		// Lost the race with another detection for this entity.
		r.deferRemote(RemoteUpdate{Snapshot: snapshot, Meta: meta})
		return
	}

	r.stack.Push(c)
	r.events.ConflictDetected(c)
}

// Resolve applies a resolution strategy to an active conflict. A conflict
// actually delegated to manual merge stops being shown until the merge
// completes; a refused delegation (no merger configured) leaves the
// notification visible.
func (r *Reconciler) Resolve(conflictID string, strategy conflict.Strategy) {
	r.coord.Resolve(conflictID, strategy)
	if strategy == conflict.StrategyManual && r.coord.IsDelegated(conflictID) {
		r.stack.Suppress(conflictID)
	}
}

// Dismiss discards a conflict's notification without resolving it.
func (r *Reconciler) Dismiss(conflictID string) {
	r.coord.Dismiss(conflictID)
}

// ActiveConflictsSorted returns the notifications to render, highest
// priority first, plus the overflow count.
func (r *Reconciler) ActiveConflictsSorted() ([]*conflict.Conflict, int) {
	return r.stack.Visible()
}

// Notifications exposes the presentation state for expand/collapse and
// countdown display.
func (r *Reconciler) Notifications() *notify.Stack {
	return r.stack
}

// PendingMutations returns the number of queued local mutations.
func (r *Reconciler) PendingMutations() int {
	return r.queue.Len()
}

// SchedulerStatus returns the periodic sync status for display.
func (r *Reconciler) SchedulerStatus() scheduler.Status {
	return r.sched.Status()
}

// TriggerManualSync runs a sync cycle now, without moving the periodic
// slot.
func (r *Reconciler) TriggerManualSync(ctx context.Context) error {
	return r.sched.TriggerManual(ctx)
}

// RunSync executes one full cycle: drain the queue, push, acknowledge
// whatever was transmitted and not edited since, pull remote deltas, and
// route each through conflict detection.
func (r *Reconciler) RunSync(ctx context.Context, cause string) (*SyncResult, error) {
	r.mu.Lock()
	if r.syncing {
		r.mu.Unlock()
		return nil, apperrors.New(apperrors.ErrSyncFailed, "sync already in progress")
	}
	r.syncing = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.syncing = false
		r.mu.Unlock()
	}()

	started := r.clk.Now()
	r.events.SyncStarted(cause)
	logging.Info("Sync cycle started",
		map[string]interface{}{"cause": cause, "pending": r.queue.Len()})

	mutations := r.queue.DrainAll()
	if len(mutations) > 0 {
		if err := r.transport.Push(ctx, mutations); err != nil {
			for _, m := range mutations {
				r.OnTransportFailure(m.EntityID)
			}
			r.events.SyncFailed(cause, err)
			return nil, apperrors.Wrap(apperrors.ErrSyncFailed, "push failed", err)
		}
		for _, m := range mutations {
			// An edit coalesced while the push was in flight was never
			// transmitted; it stays queued for the next cycle.
			if !r.queue.DequeueIfUnchanged(m.EntityID, m.EnqueuedAt) {
				logging.Debug("Keeping mutation edited during push",
					map[string]interface{}{"entity_id": m.EntityID})
			}
		}
	}

	updates, err := r.transport.Pull(ctx)
	if err != nil {
		r.events.SyncFailed(cause, err)
		return nil, apperrors.Wrap(apperrors.ErrSyncFailed, "pull failed", err)
	}

	conflictsBefore := len(r.coord.Active())
	for _, u := range updates {
		r.OnRemoteUpdate(u.Snapshot, u.Meta)
	}
	newConflicts := len(r.coord.Active()) - conflictsBefore
	if newConflicts < 0 {
		newConflicts = 0
	}

	result := &SyncResult{
		Cause:      cause,
		Pushed:     len(mutations),
		Pulled:     len(updates),
		Conflicts:  newConflicts,
		DurationMs: r.clk.Now().Sub(started).Milliseconds(),
	}

	r.events.SyncCompleted(result)
	logging.Info("Sync cycle completed",
		map[string]interface{}{
			"cause":     result.Cause,
			"pushed":    result.Pushed,
			"pulled":    result.Pulled,
			"conflicts": result.Conflicts,
		})

	return result, nil
}

// deferRemote parks a remote update behind the entity's active conflict,
// keeping only the newest version per entity.
func (r *Reconciler) deferRemote(u RemoteUpdate) {
	key := u.Snapshot.ListID() + "/" + u.Snapshot.EntityID()

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.deferred[key]; ok && existing.Meta.Timestamp >= u.Meta.Timestamp {
		return
	}
	r.deferred[key] = u

	logging.Debug("Remote update deferred behind active conflict",
		map[string]interface{}{"entity_id": u.Snapshot.EntityID()})
}

// onConflictRetired clears presentation state and replays any remote
// update that arrived while the conflict was active.
func (r *Reconciler) onConflictRetired(c *conflict.Conflict, outcome string) {
	r.stack.Remove(c.ID)
	r.events.ConflictResolved(c.ID, outcome)

	key := c.ListID + "/" + c.ItemID
	r.mu.Lock()
	u, ok := r.deferred[key]
	if ok {
		delete(r.deferred, key)
	}
	r.mu.Unlock()

	if ok {
		r.OnRemoteUpdate(u.Snapshot, u.Meta)
	}
}

// onCountdownExpired dismisses an auto-resolvable conflict whose
// notification timed out. A timer that outlives its conflict is dropped.
func (r *Reconciler) onCountdownExpired(conflictID string) {
	if _, ok := r.coord.Get(conflictID); !ok {
		logging.WarnWithCode("Countdown fired for retired conflict",
			string(apperrors.ErrStaleTimer),
			map[string]interface{}{"conflict_id": conflictID})
		return
	}
	r.coord.Dismiss(conflictID)
}

func (r *Reconciler) applyRemote(snapshot models.EntitySnapshot) {
	if r.apply != nil {
		r.apply(snapshot)
	}
}

// syncRunner adapts the Reconciler to the scheduler's Runner interface.
type syncRunner struct {
	r *Reconciler
}

func (s syncRunner) RunSync(ctx context.Context, cause string) error {
	_, err := s.r.RunSync(ctx, cause)
	return err
}

// nopEvents is the EventSink used when no broadcaster is attached.
type nopEvents struct{}

func (nopEvents) ConflictDetected(*conflict.Conflict) {}
func (nopEvents) ConflictResolved(string, string)     {}
func (nopEvents) SyncStarted(string)                  {}
func (nopEvents) SyncCompleted(*SyncResult)           {}
func (nopEvents) SyncFailed(string, error)            {}
