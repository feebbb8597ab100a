// Package scheduler provides a supervised one-shot deferred task scheduler.
// Unlike a bare timer, scheduled tasks are tracked: they can be counted,
// cancelled, and waited on during shutdown, and their failures are logged.
package scheduler

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Scheduler struct {
	mu      sync.Mutex
	pending map[uuid.UUID]*time.Timer
	wg      sync.WaitGroup
	closed  bool
}

func New() *Scheduler {
	return &Scheduler{pending: make(map[uuid.UUID]*time.Timer)}
}

// Schedule registers fn to run once after delay. The returned id can be used
// to cancel the task before it fires. Errors from fn are logged, never
// propagated; deferred tasks are fire-and-forget by contract.
func (s *Scheduler) Schedule(name string, delay time.Duration, fn func() error) uuid.UUID {
	id := uuid.New()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		slog.Warn("scheduler is stopped, dropping task", "task", name)
		return id
	}

	s.wg.Add(1)
	s.pending[id] = time.AfterFunc(delay, func() {
		defer s.wg.Done()

		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()

		slog.Info("running deferred task", "task", name)
		if err := fn(); err != nil {
			slog.Error("deferred task failed", "task", name, "error", err)
		}
	})

	return id
}

// Cancel stops a pending task. Returns false if the task already fired or is
// unknown.
func (s *Scheduler) Cancel(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	timer, ok := s.pending[id]
	if !ok {
		return false
	}
	delete(s.pending, id)

	if timer.Stop() {
		s.wg.Done()
		return true
	}
	return false
}

// Pending reports how many tasks are scheduled but not yet fired.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Stop cancels all pending tasks and waits for any currently running task to
// finish. The scheduler accepts no new tasks afterwards.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.closed = true
	for id, timer := range s.pending {
		delete(s.pending, id)
		if timer.Stop() {
			s.wg.Done()
		}
	}
	s.mu.Unlock()

	s.wg.Wait()
}
