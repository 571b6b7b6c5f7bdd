package latch

import "sync"

// Latch is a quiescence gate with two phases. While open, callers may
// acquire it any number of times; each acquisition must be paired with a
// release. Close flips the latch permanently and blocks until every
// outstanding acquisition has been released. A closed latch never reopens.
type Latch struct {
	mu      sync.Mutex
	drained *sync.Cond
	pending int
	closed  bool
}

// New creates an open latch with no pending acquisitions.
func New() *Latch {
	l := &Latch{}
	l.drained = sync.NewCond(&l.mu)
	return l
}

// Acquire registers one unit of in-flight work. It returns false without
// registering anything if the latch is already closed.
func (l *Latch) Acquire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return false
	}
	l.pending++
	return true
}

// Release completes one unit of in-flight work. Callers must hold a
// successful Acquire; releasing below zero panics.
func (l *Latch) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.pending <= 0 {
		panic("latch: release without acquire")
	}
	l.pending--
	if l.pending == 0 {
		l.drained.Broadcast()
	}
}

// CloseAndWait closes the latch for new acquisitions and blocks until all
// pending work has been released. Safe to call more than once; later calls
// just wait for the drain.
func (l *Latch) CloseAndWait() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.closed = true
	for l.pending > 0 {
		l.drained.Wait()
	}
}

// Closed reports whether the latch has been closed.
func (l *Latch) Closed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// Pending returns the number of outstanding acquisitions.
func (l *Latch) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pending
}
