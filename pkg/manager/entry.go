package manager

import (
	"sync"
	"sync/atomic"

	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/transport"
)

// subKind distinguishes plain channel subscriptions from pattern
// subscriptions; it selects the subscribe call and the confirmation status
// an unsubscribe waits for.
type subKind int

const (
	kindChannel subKind = iota
	kindPattern
)

// PubSubEntry multiplexes up to capacity channel subscriptions onto one
// dedicated pub/sub connection. Capacity is reserved through an atomic
// counter so the allocation fast path takes no lock; the entry lock only
// guards the active flag and the listener bookkeeping, and is never held
// across network calls.
type PubSubEntry struct {
	conn     transport.PubSubConn
	capacity int32
	usage    atomic.Int32

	mu        sync.Mutex
	active    bool
	listeners map[string][]transport.Listener
	kinds     map[string]subKind
}

// NewPubSubEntry wraps a connection in an active entry with the given
// subscription capacity.
func NewPubSubEntry(conn transport.PubSubConn, capacity int) *PubSubEntry {
	return &PubSubEntry{
		conn:      conn,
		capacity:  int32(capacity),
		active:    true,
		listeners: make(map[string][]transport.Listener),
		kinds:     make(map[string]subKind),
	}
}

// TryAcquire reserves one unit of subscription capacity. It never blocks
// and fails once the entry is full.
func (e *PubSubEntry) TryAcquire() bool {
	for {
		cur := e.usage.Load()
		if cur >= e.capacity {
			return false
		}
		if e.usage.CompareAndSwap(cur, cur+1) {
			return true
		}
	}
}

// Release returns one unit of capacity.
func (e *PubSubEntry) Release() {
	if e.usage.Add(-1) < 0 {
		panic("pubsub entry: release below zero")
	}
}

// Usage returns the current number of reserved capacity units.
func (e *PubSubEntry) Usage() int {
	return int(e.usage.Load())
}

// Conn returns the wrapped connection.
func (e *PubSubEntry) Conn() transport.PubSubConn {
	return e.conn
}

// Active reports whether the entry still admits subscriptions.
func (e *PubSubEntry) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// subscribeIfActive records the channel and optional listener under the
// entry lock, then issues the network subscribe with the lock released.
// Returns false without side effects if the entry is already closing.
func (e *PubSubEntry) subscribeIfActive(codec transport.Codec, name string, kind subKind, l transport.Listener) bool {
	e.mu.Lock()
	if !e.active {
		e.mu.Unlock()
		return false
	}
	e.kinds[name] = kind
	if l != nil {
		e.listeners[name] = append(e.listeners[name], l)
		e.conn.AddListener(l)
	} else if _, ok := e.listeners[name]; !ok {
		e.listeners[name] = nil
	}
	e.mu.Unlock()

	var err error
	if kind == kindPattern {
		err = e.conn.PSubscribe(codec, name)
	} else {
		err = e.conn.Subscribe(codec, name)
	}
	if err != nil {
		// connection died between allocation and subscribe; the
		// failover path re-homes the channel
		logger := log.WithChannel(name)
		logger.Warn().Err(err).Msg("subscribe failed")
	}
	return true
}

// addListenerIfActive attaches a listener for an already-mapped channel.
func (e *PubSubEntry) addListenerIfActive(name string, l transport.Listener) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.active {
		return false
	}
	e.listeners[name] = append(e.listeners[name], l)
	e.conn.AddListener(l)
	return true
}

// AddListener attaches a listener unconditionally. Used when re-homing
// saved listeners onto a freshly allocated entry.
func (e *PubSubEntry) AddListener(name string, l transport.Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.listeners[name] = append(e.listeners[name], l)
	e.conn.AddListener(l)
}

// Listeners returns a snapshot of the listeners attached for a channel.
func (e *PubSubEntry) Listeners(name string) []transport.Listener {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]transport.Listener, len(e.listeners[name]))
	copy(out, e.listeners[name])
	return out
}

// closeAndSnapshot irreversibly deactivates the entry and returns the
// listeners and kind recorded for the channel. Part of the replica-down
// migration; only one entry lock is ever held at a time.
func (e *PubSubEntry) closeAndSnapshot(name string) ([]transport.Listener, subKind) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.active = false
	out := make([]transport.Listener, len(e.listeners[name]))
	copy(out, e.listeners[name])
	return out, e.kinds[name]
}

// Unsubscribe sends the network unsubscribe for a channel and invokes
// onConfirmed once the matching confirmation arrives. The confirmation
// releases the channel's capacity unit and detaches its listeners first.
// When the send itself fails the confirmation can never arrive, so the
// channel is settled locally instead of leaking its capacity unit.
func (e *PubSubEntry) Unsubscribe(name string, onConfirmed func()) {
	e.mu.Lock()
	kind := e.kinds[name]
	e.mu.Unlock()

	want := transport.StatusUnsubscribe
	if kind == kindPattern {
		want = transport.StatusPUnsubscribe
	}

	// settles at most once whether the confirmation arrives or the send
	// error path runs first
	var settled atomic.Bool
	finish := func() {
		if !settled.CompareAndSwap(false, true) {
			return
		}
		e.removeChannel(name)
		e.Release()
		onConfirmed()
	}

	confirm := transport.OnStatusFunc(func(status transport.StatusType, channel string) bool {
		if status != want || channel != name {
			return false
		}
		finish()
		return true
	})
	e.conn.AddListener(confirm)

	var err error
	if kind == kindPattern {
		err = e.conn.PUnsubscribe(name)
	} else {
		err = e.conn.Unsubscribe(name)
	}
	if err != nil {
		e.conn.RemoveListener(confirm)
		logger := log.WithChannel(name)
		logger.Warn().Err(err).Msg("unsubscribe send failed, settling locally")
		finish()
	}
}

// TryClose succeeds only when every capacity unit has been released; it
// flips the entry inactive so no new subscription can be admitted.
func (e *PubSubEntry) TryClose() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.usage.Load() > 0 {
		return false
	}
	e.active = false
	return true
}

// removeChannel drops all bookkeeping for a channel and detaches its
// listeners from the connection.
func (e *PubSubEntry) removeChannel(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, l := range e.listeners[name] {
		e.conn.RemoveListener(l)
	}
	delete(e.listeners, name)
	delete(e.kinds, name)
}
