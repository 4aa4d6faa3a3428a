// Package notify maintains the conflict notification stack shown to the
// user: which conflicts are visible, in what order, and which auto-dismiss.
package notify

import (
	"sort"
	"sync"
	"time"

	"github.com/kuochun/listsync/internal/clock"
	"github.com/kuochun/listsync/internal/logging"
	"github.com/kuochun/listsync/internal/sync/conflict"
)

const (
	// DefaultMaxVisible caps how many notifications render at once; the
	// rest collapse into an overflow count.
	DefaultMaxVisible = 3
	// DefaultCountdownSeconds is how long an auto-resolvable notification
	// stays up before dismissing itself.
	DefaultCountdownSeconds = 30
)

// DismissFunc is called when a countdown expires, outside the stack's lock.
type DismissFunc func(conflictID string)

type entry struct {
	conflict   *conflict.Conflict
	remaining  int  // countdown seconds; meaningful only when !persistent
	persistent bool // stays until explicitly resolved or dismissed
	suppressed bool // hidden while delegated to manual merge
	expanded   bool // diff preview open; ephemeral, never persisted
}

// Stack is the notification presentation state for active conflicts. It
// never decides how a conflict resolves; it only tracks visibility,
// ordering, and countdown expiry.
type Stack struct {
	mu      sync.Mutex
	entries map[string]*entry

	maxVisible       int
	countdownSeconds int

	clk       clock.Clock
	ticker    clock.Ticker
	stopCh    chan struct{}
	wg        sync.WaitGroup
	onDismiss DismissFunc
}

// Option configures a Stack.
type Option func(*Stack)

// WithMaxVisible overrides the visible-notification cap.
func WithMaxVisible(n int) Option {
	return func(s *Stack) { s.maxVisible = n }
}

// WithCountdown overrides the auto-dismiss countdown, in seconds.
func WithCountdown(seconds int) Option {
	return func(s *Stack) { s.countdownSeconds = seconds }
}

// NewStack creates a Stack. onDismiss receives expired countdown conflicts;
// clk may be nil for the system clock.
func NewStack(onDismiss DismissFunc, clk clock.Clock, opts ...Option) *Stack {
	if clk == nil {
		clk = clock.System()
	}
	s := &Stack{
		entries:          make(map[string]*entry),
		maxVisible:       DefaultMaxVisible,
		countdownSeconds: DefaultCountdownSeconds,
		clk:              clk,
		onDismiss:        onDismiss,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins the one-second countdown ticker. Idempotent.
func (s *Stack) Start() {
	s.mu.Lock()
	if s.stopCh != nil {
		s.mu.Unlock()
		return
	}
	s.stopCh = make(chan struct{})
	s.ticker = s.clk.NewTicker(time.Second)
	stopCh := s.stopCh
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-s.ticker.C():
				s.tick()
			case <-stopCh:
				return
			}
		}
	}()
}

// Stop halts the countdown ticker. Idempotent.
func (s *Stack) Stop() {
	s.mu.Lock()
	if s.stopCh == nil {
		s.mu.Unlock()
		return
	}
	close(s.stopCh)
	s.stopCh = nil
	s.ticker.Stop()
	s.mu.Unlock()

	s.wg.Wait()
}

// Push adds a conflict to the stack. Auto-resolvable conflicts get a
// countdown; everything else stays until resolved or dismissed. Pushing an
// already-present id refreshes nothing and is a no-op.
func (s *Stack) Push(c *conflict.Conflict) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[c.ID]; ok {
		return
	}

	s.entries[c.ID] = &entry{
		conflict:   c,
		remaining:  s.countdownSeconds,
		persistent: !c.AutoResolvable,
	}

	logging.Debug("Notification pushed",
		map[string]interface{}{
			"conflict_id": c.ID,
			"priority":    c.Priority,
			"persistent":  !c.AutoResolvable,
		})
}

// Remove drops a conflict's notification, cancelling any countdown.
func (s *Stack) Remove(conflictID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, conflictID)
}

// Suppress hides a notification without removing it, used while the
// conflict is open in the manual merge view.
func (s *Stack) Suppress(conflictID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[conflictID]; ok {
		e.suppressed = true
	}
}

// Unsuppress restores a suppressed notification.
func (s *Stack) Unsuppress(conflictID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[conflictID]; ok {
		e.suppressed = false
	}
}

// SetExpanded toggles a notification's diff preview. Ephemeral UI state,
// never persisted and never part of ordering.
func (s *Stack) SetExpanded(conflictID string, expanded bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[conflictID]; ok {
		e.expanded = expanded
	}
}

// Expanded reports whether a notification's diff preview is open.
func (s *Stack) Expanded(conflictID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[conflictID]
	return ok && e.expanded
}

// Visible returns the notifications to render, highest priority first, and
// the count of overflow notifications hidden behind the cap. Ties break by
// recency, then id so the order is stable.
func (s *Stack) Visible() ([]*conflict.Conflict, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ordered := s.orderedLocked()
	if len(ordered) <= s.maxVisible {
		return ordered, 0
	}
	hidden := len(ordered) - s.maxVisible
	return ordered[:s.maxVisible], hidden
}

// Remaining returns the countdown seconds left for a conflict, or -1 for
// persistent or unknown entries.
func (s *Stack) Remaining(conflictID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[conflictID]
	if !ok || e.persistent {
		return -1
	}
	return e.remaining
}

// Len returns the number of tracked notifications, suppressed included.
func (s *Stack) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// orderedLocked returns unsuppressed conflicts sorted for display. Caller
// holds the lock.
func (s *Stack) orderedLocked() []*conflict.Conflict {
	out := make([]*conflict.Conflict, 0, len(s.entries))
	for _, e := range s.entries {
		if e.suppressed {
			continue
		}
		out = append(out, e.conflict)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp > out[j].Timestamp
		}
		return out[i].ID < out[j].ID
	})

	return out
}

// tick advances countdowns by one second. Only notifications actually on
// screen count down; overflow and suppressed entries hold their remaining
// time. Expired entries are removed and reported exactly once.
func (s *Stack) tick() {
	s.mu.Lock()

	visible := s.orderedLocked()
	if len(visible) > s.maxVisible {
		visible = visible[:s.maxVisible]
	}

	var expired []string
	for _, c := range visible {
		e := s.entries[c.ID]
		if e.persistent {
			continue
		}
		e.remaining--
		if e.remaining <= 0 {
			expired = append(expired, c.ID)
			delete(s.entries, c.ID)
		}
	}

	s.mu.Unlock()

	for _, id := range expired {
		logging.Debug("Notification countdown expired",
			map[string]interface{}{"conflict_id": id})
		if s.onDismiss != nil {
			s.onDismiss(id)
		}
	}
}
