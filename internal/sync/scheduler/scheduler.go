// Package scheduler drives the periodic background sync cycle.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/kuochun/listsync/internal/clock"
	apperrors "github.com/kuochun/listsync/internal/errors"
	"github.com/kuochun/listsync/internal/logging"
)

// State is the scheduler's lifecycle phase.
type State string

const (
	// StateInactive: created but not started.
	StateInactive State = "inactive"
	// StateUnsupported: the platform reports no periodic-sync capability.
	// Terminal, not an error.
	StateUnsupported State = "unsupported"
	// StateScheduled: waiting for the next fire time.
	StateScheduled State = "scheduled"
	// StateFiring: a sync cycle is running.
	StateFiring State = "firing"
)

// Sync causes, for status display and logging.
const (
	CausePeriodic = "periodic"
	CauseManual   = "manual"
)

// Runner executes one sync cycle: drain the queue, push, pull deltas.
type Runner interface {
	RunSync(ctx context.Context, cause string) error
}

// Status is a point-in-time snapshot of the scheduler for display.
type Status struct {
	State             State         `json:"state"`
	Active            bool          `json:"active"`
	TimeUntilNextSync time.Duration `json:"time_until_next_sync"`
	LastSyncAt        int64         `json:"last_sync_at"` // unix millis, 0 = never
	LastCause         string        `json:"last_cause"`
}

// Scheduler fires periodic sync cycles while the platform supports them.
// Cycle failures are logged and the schedule continues; periodic sync is
// best-effort and never surfaces a blocking failure.
type Scheduler struct {
	runner    Runner
	interval  time.Duration
	supported bool
	clk       clock.Clock

	mu         sync.Mutex
	state      State
	nextFireAt time.Time
	lastSyncAt int64
	lastCause  string
	stopCh     chan struct{}
	wg         sync.WaitGroup
}

// New creates a Scheduler. supported reports the platform's
// periodic-background-sync capability; clk may be nil for the system clock.
func New(runner Runner, interval time.Duration, supported bool, clk clock.Clock) *Scheduler {
	if clk == nil {
		clk = clock.System()
	}
	return &Scheduler{
		runner:    runner,
		interval:  interval,
		supported: supported,
		clk:       clk,
		state:     StateInactive,
	}
}

// Start begins the periodic schedule. Without platform capability the
// scheduler lands in the terminal Unsupported state; manual triggers still
// work. Idempotent.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateInactive {
		return
	}

	if !s.supported {
		s.state = StateUnsupported
		logging.Info("Periodic sync unavailable on this platform", nil)
		return
	}

	s.state = StateScheduled
	s.nextFireAt = s.clk.Now().Add(s.interval)
	s.stopCh = make(chan struct{})

	ticker := s.clk.NewTicker(s.interval)
	stopCh := s.stopCh

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C():
				s.fire(CausePeriodic)
			case <-stopCh:
				return
			}
		}
	}()

	logging.Info("Periodic sync scheduled",
		map[string]interface{}{"interval": s.interval.String()})
}

// Stop halts the schedule and waits for an in-flight cycle's goroutine to
// exit. Idempotent.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopCh == nil {
		s.mu.Unlock()
		return
	}
	close(s.stopCh)
	s.stopCh = nil
	if s.state == StateScheduled || s.state == StateFiring {
		s.state = StateInactive
	}
	s.mu.Unlock()

	s.wg.Wait()
}

// TriggerManual runs a sync cycle immediately. The next periodic slot is
// unaffected. Works in every state except while a cycle is already firing.
func (s *Scheduler) TriggerManual(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateFiring {
		s.mu.Unlock()
		return apperrors.New(apperrors.ErrSyncFailed, "sync already in progress")
	}
	prev := s.state
	s.state = StateFiring
	s.mu.Unlock()

	logging.Info("Manual sync triggered", nil)
	err := s.runner.RunSync(ctx, CauseManual)

	s.mu.Lock()
	s.lastSyncAt = s.clk.Now().UnixMilli()
	s.lastCause = CauseManual
	s.state = prev
	s.mu.Unlock()

	if err != nil {
		return apperrors.Wrap(apperrors.ErrSyncFailed, "manual sync failed", err)
	}
	return nil
}

// fire runs one periodic cycle. Failures log and the schedule continues.
func (s *Scheduler) fire(cause string) {
	s.mu.Lock()
	if s.state != StateScheduled {
		// A manual cycle is in flight; skip this slot rather than overlap.
		s.nextFireAt = s.clk.Now().Add(s.interval)
		s.mu.Unlock()
		return
	}
	s.state = StateFiring
	s.mu.Unlock()

	logging.Debug("Periodic sync firing", nil)
	err := s.runner.RunSync(context.Background(), cause)

	s.mu.Lock()
	s.lastSyncAt = s.clk.Now().UnixMilli()
	s.lastCause = cause
	s.nextFireAt = s.clk.Now().Add(s.interval)
	if s.state == StateFiring {
		s.state = StateScheduled
	}
	s.mu.Unlock()

	if err != nil {
		logging.ErrorWithCode("Periodic sync failed, will retry next interval",
			string(apperrors.ErrSyncFailed), err, nil)
	}
}

// TimeUntilNextSync returns the time remaining before the next periodic
// fire, or 0 when no fire is scheduled.
func (s *Scheduler) TimeUntilNextSync() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateScheduled && s.state != StateFiring {
		return 0
	}
	remaining := s.nextFireAt.Sub(s.clk.Now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// State returns the current lifecycle phase.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Status returns a snapshot for display.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	state := s.state
	lastSyncAt := s.lastSyncAt
	lastCause := s.lastCause
	s.mu.Unlock()

	return Status{
		State:             state,
		Active:            state == StateScheduled || state == StateFiring,
		TimeUntilNextSync: s.TimeUntilNextSync(),
		LastSyncAt:        lastSyncAt,
		LastCause:         lastCause,
	}
}
