// Package queue provides the durable offline mutation queue.
package queue

import (
	"sync"

	"github.com/kuochun/listsync/internal/clock"
	"github.com/kuochun/listsync/internal/logging"
	"github.com/kuochun/listsync/internal/models"
)

// QueuedMutation is one local write awaiting server acknowledgment. Owned
// exclusively by the queue; callers receive copies.
type QueuedMutation struct {
	EntityID   string
	ListID     string
	Payload    models.EntitySnapshot
	Baseline   models.EntitySnapshot // last value both sides agreed on
	EnqueuedAt int64                 // unix millis
	Attempts   int
}

// Store persists queue contents across process restarts. Implementations
// must keep one record per entity id.
type Store interface {
	Put(rec *models.MutationRecord) error
	Delete(entityID string) error
	LoadAll() ([]*models.MutationRecord, error)
}

// MutationQueue buffers local writes while disconnected or while a sync
// round-trip is in flight. FIFO across entities, coalescing per entity: only
// the latest local intent per entity id is retransmitted.
//
// The queue itself never fails; persistence errors are logged and the
// in-memory state stays authoritative for the running process.
type MutationQueue struct {
	mu      sync.Mutex
	pending map[string]*QueuedMutation
	order   []string // entity ids, oldest enqueue first
	nextPos int64
	store   Store // nil = in-memory only
	clk     clock.Clock
}

// NewMutationQueue creates a MutationQueue. store may be nil for an
// in-memory queue; clk may be nil for the system clock.
func NewMutationQueue(store Store, clk clock.Clock) *MutationQueue {
	if clk == nil {
		clk = clock.System()
	}
	return &MutationQueue{
		pending: make(map[string]*QueuedMutation),
		store:   store,
		clk:     clk,
	}
}

// Restore loads persisted mutations from the store, replacing in-memory
// state. Call once at startup before the transport begins draining.
func (q *MutationQueue) Restore() error {
	if q.store == nil {
		return nil
	}

	records, err := q.store.LoadAll()
	if err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	q.pending = make(map[string]*QueuedMutation, len(records))
	q.order = q.order[:0]
	q.nextPos = 0

	for _, rec := range records {
		m, err := fromRecord(rec)
		if err != nil {
			logging.Error("Skipping unreadable queued mutation", err,
				map[string]interface{}{"entity_id": rec.EntityID})
			continue
		}
		q.pending[m.EntityID] = m
		q.order = append(q.order, m.EntityID)
		if rec.Position >= q.nextPos {
			q.nextPos = rec.Position + 1
		}
	}

	logging.Info("Mutation queue restored",
		map[string]interface{}{"pending": len(q.pending)})

	return nil
}

// Enqueue records a local write. If an unacknowledged mutation already
// exists for the entity it is coalesced: the payload and enqueue time are
// replaced in place, the queue position and baseline are kept. Returns a
// copy of the stored mutation.
func (q *MutationQueue) Enqueue(payload, baseline models.EntitySnapshot) QueuedMutation {
	q.mu.Lock()
	defer q.mu.Unlock()

	entityID := payload.EntityID()
	now := q.clk.Now().UnixMilli()

	if existing, ok := q.pending[entityID]; ok {
		existing.Payload = payload
		existing.EnqueuedAt = now
		q.persist(existing, q.positionOf(entityID))
		logging.Debug("Coalesced queued mutation",
			map[string]interface{}{"entity_id": entityID})
		return *existing
	}

	m := &QueuedMutation{
		EntityID:   entityID,
		ListID:     payload.ListID(),
		Payload:    payload,
		Baseline:   baseline,
		EnqueuedAt: now,
	}
	q.pending[entityID] = m
	q.order = append(q.order, entityID)
	q.persist(m, q.nextPos)
	q.nextPos++

	return *m
}

// DequeueAcknowledged removes the mutation for an entity once the transport
// confirms persistence. Returns the removed mutation, or nil if none was
// queued.
func (q *MutationQueue) DequeueAcknowledged(entityID string) *QueuedMutation {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.remove(entityID)
}

// DequeueIfUnchanged removes the mutation for an entity only if its enqueue
// time still matches enqueuedAt. An edit coalesced after the caller drained
// its copy carries a newer enqueue time and stays queued for the next cycle.
// Returns whether the mutation was removed.
func (q *MutationQueue) DequeueIfUnchanged(entityID string, enqueuedAt int64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	m, ok := q.pending[entityID]
	if !ok || m.EnqueuedAt != enqueuedAt {
		return false
	}
	q.remove(entityID)
	return true
}

// Drop discards the pending mutation for an entity without an
// acknowledgment, used when a conflict is resolved in the remote's favor.
func (q *MutationQueue) Drop(entityID string) *QueuedMutation {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.remove(entityID)
}

// PendingFor returns a copy of the in-flight mutation for an entity, or nil.
func (q *MutationQueue) PendingFor(entityID string) *QueuedMutation {
	q.mu.Lock()
	defer q.mu.Unlock()

	m, ok := q.pending[entityID]
	if !ok {
		return nil
	}
	cp := *m
	return &cp
}

// DrainAll returns copies of all queued mutations oldest-enqueued-first
// across distinct entities, for retransmission. Entries leave the queue only
// via acknowledgment or Drop.
func (q *MutationQueue) DrainAll() []*QueuedMutation {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]*QueuedMutation, 0, len(q.order))
	for _, entityID := range q.order {
		if m, ok := q.pending[entityID]; ok {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out
}

// MarkAttempt increments the transport attempt counter for an entity and
// returns the new count. Retry policy lives in the transport, not here.
func (q *MutationQueue) MarkAttempt(entityID string) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	m, ok := q.pending[entityID]
	if !ok {
		return 0
	}
	m.Attempts++
	q.persist(m, q.positionOf(entityID))
	return m.Attempts
}

// Len returns the number of queued mutations.
func (q *MutationQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Clear removes all queued mutations.
func (q *MutationQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()

	for entityID := range q.pending {
		q.remove(entityID)
	}
}

// remove deletes an entity's mutation from memory and the store. Caller
// holds the lock.
func (q *MutationQueue) remove(entityID string) *QueuedMutation {
	m, ok := q.pending[entityID]
	if !ok {
		return nil
	}
	delete(q.pending, entityID)

	for i, id := range q.order {
		if id == entityID {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}

	if q.store != nil {
		if err := q.store.Delete(entityID); err != nil {
			logging.Error("Failed to delete persisted mutation", err,
				map[string]interface{}{"entity_id": entityID})
		}
	}

	return m
}

// positionOf returns the queue position index of an entity. Caller holds
// the lock.
func (q *MutationQueue) positionOf(entityID string) int64 {
	for i, id := range q.order {
		if id == entityID {
			return int64(i)
		}
	}
	return q.nextPos
}

// persist writes a mutation through to the store. Errors are logged; the
// queue never fails. Caller holds the lock.
func (q *MutationQueue) persist(m *QueuedMutation, position int64) {
	if q.store == nil {
		return
	}

	rec, err := toRecord(m, position)
	if err != nil {
		logging.Error("Failed to serialize queued mutation", err,
			map[string]interface{}{"entity_id": m.EntityID})
		return
	}
	if err := q.store.Put(rec); err != nil {
		logging.Error("Failed to persist queued mutation", err,
			map[string]interface{}{"entity_id": m.EntityID})
	}
}

// toRecord converts a QueuedMutation to its persisted form.
func toRecord(m *QueuedMutation, position int64) (*models.MutationRecord, error) {
	payload, err := models.MarshalSnapshot(m.Payload)
	if err != nil {
		return nil, err
	}
	baseline, err := models.MarshalSnapshot(m.Baseline)
	if err != nil {
		return nil, err
	}

	return &models.MutationRecord{
		EntityID:   models.UUID(m.EntityID),
		ListID:     models.UUID(m.ListID),
		Kind:       string(m.Payload.Kind()),
		Payload:    payload,
		Baseline:   baseline,
		EnqueuedAt: m.EnqueuedAt,
		Attempts:   m.Attempts,
		Position:   position,
	}, nil
}

// fromRecord restores a QueuedMutation from its persisted form.
func fromRecord(rec *models.MutationRecord) (*QueuedMutation, error) {
	payload, err := models.UnmarshalSnapshot(rec.Payload)
	if err != nil {
		return nil, err
	}
	baseline, err := models.UnmarshalSnapshot(rec.Baseline)
	if err != nil {
		return nil, err
	}

	return &QueuedMutation{
		EntityID:   string(rec.EntityID),
		ListID:     string(rec.ListID),
		Payload:    payload,
		Baseline:   baseline,
		EnqueuedAt: rec.EnqueuedAt,
		Attempts:   rec.Attempts,
	}, nil
}
