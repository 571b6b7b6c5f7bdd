package timer

import (
	"sync"
	"time"
)

// Scheduler runs one-shot delayed tasks and tracks the outstanding handles
// so a stopped scheduler can cancel everything still pending. It backs the
// per-checkout operation timeouts in the connection manager.
type Scheduler struct {
	mu      sync.Mutex
	pending map[*Timeout]struct{}
	stopped bool
}

// Timeout is a cancelable handle for one scheduled task.
type Timeout struct {
	s     *Scheduler
	timer *time.Timer
}

// New creates a running scheduler.
func New() *Scheduler {
	return &Scheduler{pending: make(map[*Timeout]struct{})}
}

// Schedule runs fn once after delay. The returned handle cancels the task
// if it has not fired yet. On a stopped scheduler the task is dropped and
// an inert handle is returned.
func (s *Scheduler) Schedule(delay time.Duration, fn func()) *Timeout {
	s.mu.Lock()
	defer s.mu.Unlock()

	to := &Timeout{s: s}
	if s.stopped {
		return to
	}

	to.timer = time.AfterFunc(delay, func() {
		s.forget(to)
		fn()
	})
	s.pending[to] = struct{}{}
	return to
}

// Cancel stops the task if it has not fired. Safe to call multiple times
// and safe to race with the task firing.
func (to *Timeout) Cancel() {
	if to.timer == nil {
		return
	}
	to.timer.Stop()
	to.s.forget(to)
}

// Stop cancels every outstanding task and rejects new ones. Tasks already
// executing are not interrupted.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	for to := range s.pending {
		to.timer.Stop()
	}
	s.pending = make(map[*Timeout]struct{})
}

// PendingCount returns the number of scheduled tasks not yet fired or
// canceled.
func (s *Scheduler) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *Scheduler) forget(to *Timeout) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, to)
}
