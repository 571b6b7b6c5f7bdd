package manager

import (
	"fmt"
	"sync/atomic"

	"github.com/cuemby/burrow/pkg/metrics"
	"github.com/cuemby/burrow/pkg/timer"
	"github.com/cuemby/burrow/pkg/transport"
	"github.com/cuemby/burrow/pkg/types"
)

// ReleaseFunc returns a checked-out connection. It is safe to call more
// than once and safe to race with the operation timeout; the underlying
// release fires exactly once.
type ReleaseFunc func()

// CheckoutWrite leases a master connection from the partition owning slot.
// The lease registers with the shutdown latch and carries an operation
// timeout that force-releases it if the caller never does.
func (m *Manager) CheckoutWrite(slot int) (transport.Conn, ReleaseFunc, error) {
	return m.checkout(slot, "write")
}

// CheckoutRead is CheckoutWrite for read operations, honoring the
// configured read mode.
func (m *Manager) CheckoutRead(slot int) (transport.Conn, ReleaseFunc, error) {
	return m.checkout(slot, "read")
}

func (m *Manager) checkout(slot int, op string) (transport.Conn, ReleaseFunc, error) {
	if !m.gate.Acquire() {
		return nil, nil, types.ErrManagerClosed
	}
	metrics.PendingOperations.Inc()

	part := m.table.Resolve(slot)
	if part == nil {
		m.gate.Release()
		metrics.PendingOperations.Dec()
		return nil, nil, fmt.Errorf("no partition for slot %d", slot)
	}
	var conn transport.Conn
	var err error
	if op == "write" {
		conn, err = part.ConnectionWriteOp()
	} else {
		conn, err = part.ConnectionReadOp()
	}
	if err != nil {
		m.gate.Release()
		metrics.PendingOperations.Dec()
		return nil, nil, err
	}
	metrics.CheckoutsTotal.WithLabelValues(op).Inc()

	// Release must run exactly once whether the caller finishes, the
	// caller double-releases, or the timeout fires first.
	var fired atomic.Bool
	var handle *timer.Timeout
	doRelease := func(timedOut bool) {
		if !fired.CompareAndSwap(false, true) {
			return
		}
		m.gate.Release()
		metrics.PendingOperations.Dec()
		if !timedOut {
			handle.Cancel()
		} else {
			metrics.CheckoutTimeoutsTotal.Inc()
			m.logger.Warn().Str("op", op).Int("slot", slot).
				Str("conn_id", conn.ID()).Msg("checkout released by timeout")
		}
		if op == "write" {
			part.ReleaseWrite(conn)
		} else {
			part.ReleaseRead(conn)
		}
	}
	handle = m.timers.Schedule(m.cfg.OperationTimeout, func() { doRelease(true) })

	return conn, func() { doRelease(false) }, nil
}
