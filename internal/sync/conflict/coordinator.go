package conflict

import (
	"sync"

	"github.com/kuochun/listsync/internal/clock"
	apperrors "github.com/kuochun/listsync/internal/errors"
	"github.com/kuochun/listsync/internal/logging"
	"github.com/kuochun/listsync/internal/models"
	"github.com/kuochun/listsync/internal/sync/queue"
	"github.com/kuochun/listsync/internal/uuid"
)

// Strategy selects how a conflict is resolved.
type Strategy string

const (
	StrategyMine   Strategy = models.StrategyMine
	StrategyTheirs Strategy = models.StrategyTheirs
	StrategyManual Strategy = models.StrategyManual
)

// RecordSink receives append-only resolution audit records.
type RecordSink interface {
	AppendResolution(rec *models.ResolutionRecord) error
}

// ManualMerger is the external field-by-field merge collaborator. It is
// opaque to the core: it eventually calls done with the merged snapshot.
// done must tolerate being called at most once per delegation.
type ManualMerger interface {
	Merge(c *Conflict, done func(merged models.EntitySnapshot))
}

// RetiredFunc observes a conflict leaving the active set, with the outcome
// ("resolved" or "dismissed"). Called outside the coordinator's lock.
type RetiredFunc func(c *Conflict, outcome string)

// Coordinator owns the active conflict set. At most one active conflict
// exists per (itemID, listID) pair; duplicate submissions and duplicate
// resolutions are no-ops.
type Coordinator struct {
	mu        sync.Mutex
	active    map[string]*Conflict // by conflict id
	byEntity  map[string]string    // entity key -> conflict id
	delegated map[string]bool      // conflict ids forwarded to manual merge

	queue   *queue.MutationQueue
	records RecordSink // nil = audit log disabled
	merger  ManualMerger
	clk     clock.Clock

	onRetired RetiredFunc
}

// NewCoordinator creates a Coordinator over the given mutation queue.
// records and merger may be nil; clk may be nil for the system clock.
func NewCoordinator(q *queue.MutationQueue, records RecordSink, merger ManualMerger, clk clock.Clock) *Coordinator {
	if clk == nil {
		clk = clock.System()
	}
	return &Coordinator{
		active:    make(map[string]*Conflict),
		byEntity:  make(map[string]string),
		delegated: make(map[string]bool),
		queue:     q,
		records:   records,
		merger:    merger,
		clk:       clk,
	}
}

// SetRetiredHook registers the observer invoked when a conflict leaves the
// active set. Must be called before the coordinator receives traffic.
func (c *Coordinator) SetRetiredHook(fn RetiredFunc) {
	c.onRetired = fn
}

func entityKey(itemID, listID string) string {
	return listID + "/" + itemID
}

// Submit inserts a conflict into the active set. Returns false without
// side effects if a conflict with the same id is already active, or if the
// entity already has a different active conflict (callers queue the new
// remote version behind it instead).
func (c *Coordinator) Submit(conf *Conflict) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.active[conf.ID]; exists {
		return false
	}
	if _, busy := c.byEntity[entityKey(conf.ItemID, conf.ListID)]; busy {
		return false
	}

	c.active[conf.ID] = conf
	c.byEntity[entityKey(conf.ItemID, conf.ListID)] = conf.ID

	return true
}

// HasActiveFor reports whether the entity already has an active conflict.
func (c *Coordinator) HasActiveFor(itemID, listID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, busy := c.byEntity[entityKey(itemID, listID)]
	return busy
}

// Get returns the active conflict with the given id.
func (c *Coordinator) Get(id string) (*Conflict, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	conf, ok := c.active[id]
	return conf, ok
}

// Active returns all active conflicts, unsorted.
func (c *Coordinator) Active() []*Conflict {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*Conflict, 0, len(c.active))
	for _, conf := range c.active {
		out = append(out, conf)
	}
	return out
}

// IsDelegated reports whether a conflict has been forwarded to the manual
// merge collaborator and awaits completion.
func (c *Coordinator) IsDelegated(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.delegated[id]
}

// Resolve applies the chosen strategy to an active conflict. Unknown ids
// are a logged no-op so duplicate UI-triggered calls (double-click) are
// safe. mine and theirs retire the conflict immediately; manual delegates
// to the merge collaborator and retires only once it completes.
func (c *Coordinator) Resolve(id string, strategy Strategy) {
	c.mu.Lock()

	conf, ok := c.active[id]
	if !ok {
		c.mu.Unlock()
		logging.WarnWithCode("Resolve called on absent conflict",
			string(apperrors.ErrDuplicateResolution),
			map[string]interface{}{"conflict_id": id, "strategy": string(strategy)})
		return
	}

	switch strategy {
	case StrategyMine:
		// Re-enqueue the local value as a fresh corrective mutation. Its
		// baseline is the remote value: that is now the last state the
		// server is known to hold.
		c.queue.Enqueue(conf.LocalVersion.Value, conf.RemoteVersion.Value)
		c.appendRecord(conf, StrategyMine)
		retired := c.retire(conf)
		c.mu.Unlock()
		c.notifyRetired(retired, "resolved")

	case StrategyTheirs:
		// Accept the remote value as final; the pending local mutation is
		// discarded so it is never retransmitted.
		c.queue.Drop(conf.ItemID)
		c.appendRecord(conf, StrategyTheirs)
		retired := c.retire(conf)
		c.mu.Unlock()
		c.notifyRetired(retired, "resolved")

	case StrategyManual:
		if c.merger == nil {
			c.mu.Unlock()
			logging.Error("Manual resolution requested but no merger configured", nil,
				map[string]interface{}{"conflict_id": id})
			return
		}
		if c.delegated[id] {
			// Already forwarded; the collaborator has not completed yet.
			c.mu.Unlock()
			return
		}
		c.delegated[id] = true
		c.mu.Unlock()

		logging.Info("Conflict delegated to manual merge",
			map[string]interface{}{"conflict_id": id, "item_id": conf.ItemID})

		c.merger.Merge(conf, func(merged models.EntitySnapshot) {
			c.completeManual(conf.ID, merged)
		})

	default:
		c.mu.Unlock()
		logging.Error("Unknown resolution strategy", nil,
			map[string]interface{}{"conflict_id": id, "strategy": string(strategy)})
	}
}

// completeManual finishes a delegated resolution: the merged snapshot is
// enqueued as a corrective mutation and the conflict retires. Safe against
// duplicate completion callbacks.
func (c *Coordinator) completeManual(id string, merged models.EntitySnapshot) {
	c.mu.Lock()

	conf, ok := c.active[id]
	if !ok || !c.delegated[id] {
		c.mu.Unlock()
		logging.WarnWithCode("Manual merge completed for absent conflict",
			string(apperrors.ErrDuplicateResolution),
			map[string]interface{}{"conflict_id": id})
		return
	}

	if merged != nil {
		c.queue.Enqueue(merged, conf.RemoteVersion.Value)
	}
	c.appendRecord(conf, StrategyManual)
	retired := c.retire(conf)
	c.mu.Unlock()

	c.notifyRetired(retired, "resolved")
}

// Dismiss removes a conflict without resolving it. Whether dismissal is
// permitted (auto-resolvable, countdown expiry) is the presentation
// layer's policy, not enforced here. Unknown ids are a logged no-op.
func (c *Coordinator) Dismiss(id string) {
	c.mu.Lock()

	conf, ok := c.active[id]
	if !ok {
		c.mu.Unlock()
		logging.WarnWithCode("Dismiss called on absent conflict",
			string(apperrors.ErrDuplicateResolution),
			map[string]interface{}{"conflict_id": id})
		return
	}

	retired := c.retire(conf)
	c.mu.Unlock()

	c.notifyRetired(retired, "dismissed")
}

// retire removes a conflict from the active set. Caller holds the lock;
// the retired hook fires after it is released.
func (c *Coordinator) retire(conf *Conflict) *Conflict {
	delete(c.active, conf.ID)
	delete(c.delegated, conf.ID)
	delete(c.byEntity, entityKey(conf.ItemID, conf.ListID))
	return conf
}

func (c *Coordinator) notifyRetired(conf *Conflict, outcome string) {
	logging.Info("Conflict retired",
		map[string]interface{}{
			"conflict_id": conf.ID,
			"item_id":     conf.ItemID,
			"outcome":     outcome,
		})

	if c.onRetired != nil {
		c.onRetired(conf, outcome)
	}
}

// appendRecord emits the audit record before removal. Caller holds the
// lock. Sink errors are logged; the audit log never blocks resolution.
func (c *Coordinator) appendRecord(conf *Conflict, strategy Strategy) {
	if c.records == nil {
		return
	}

	rec := &models.ResolutionRecord{
		ID:         models.UUID(uuid.New()),
		ConflictID: conf.ID,
		ItemID:     models.UUID(conf.ItemID),
		ListID:     models.UUID(conf.ListID),
		Strategy:   string(strategy),
		AppliedAt:  c.clk.Now().UnixMilli(),
	}

	if err := c.records.AppendResolution(rec); err != nil {
		logging.Error("Failed to append resolution record", err,
			map[string]interface{}{"conflict_id": conf.ID})
	}
}
