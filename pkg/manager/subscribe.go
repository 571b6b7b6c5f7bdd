package manager

import (
	"fmt"

	"github.com/cuemby/burrow/pkg/metrics"
	"github.com/cuemby/burrow/pkg/transport"
	"github.com/cuemby/burrow/pkg/types"
)

// Subscribe maps a channel onto a pub/sub pool entry, multiplexing onto an
// existing entry when one has spare capacity and growing the pool
// otherwise. All callers for the same channel observe the same entry until
// it is released.
func (m *Manager) Subscribe(channel string) (*PubSubEntry, error) {
	return m.acquireEntry(channel, kindChannel, nil)
}

// PSubscribe is Subscribe for a glob pattern.
func (m *Manager) PSubscribe(pattern string) (*PubSubEntry, error) {
	return m.acquireEntry(pattern, kindPattern, nil)
}

// SubscribeWithListener subscribes a channel and attaches the listener to
// whichever entry ends up serving it.
func (m *Manager) SubscribeWithListener(l transport.Listener, channel string) (*PubSubEntry, error) {
	return m.acquireEntry(channel, kindChannel, l)
}

// PSubscribeWithListener is SubscribeWithListener for a glob pattern.
func (m *Manager) PSubscribeWithListener(l transport.Listener, pattern string) (*PubSubEntry, error) {
	return m.acquireEntry(pattern, kindPattern, l)
}

// acquireEntry runs the allocation protocol. Race losses are retried, not
// surfaced: every iteration either adopts a settled entry or installs a
// new one, so the loop terminates under any interleaving.
func (m *Manager) acquireEntry(name string, kind subKind, l transport.Listener) (*PubSubEntry, error) {
	if m.closed.Load() {
		return nil, types.ErrManagerClosed
	}

retry:
	for {
		// fast path: the channel is already multiplexed somewhere
		if v, ok := m.registry.Load(name); ok {
			e := v.(*PubSubEntry)
			if l == nil {
				return e, nil
			}
			if e.addListenerIfActive(name, l) {
				return e, nil
			}
			// mid-close entry; its mapping clears momentarily
			continue retry
		}

		// scan path: reserve capacity on any live entry
		for _, e := range m.snapshotEntries() {
			if !e.TryAcquire() {
				continue
			}
			if actual, loaded := m.registry.LoadOrStore(name, e); loaded {
				// another caller published first; back off and
				// adopt the winner
				e.Release()
				winner := actual.(*PubSubEntry)
				if l != nil && !winner.addListenerIfActive(name, l) {
					continue retry
				}
				return winner, nil
			}
			if e.subscribeIfActive(m.codec, name, kind, l) {
				m.recordSubscribe(kind)
				return e, nil
			}
			// entry closed between reservation and publish
			e.Release()
			m.registry.CompareAndDelete(name, e)
			continue retry
		}

		// growth path: no spare capacity anywhere, take a fresh
		// connection from the primary partition
		primary := m.firstPartition()
		if primary == nil {
			return nil, fmt.Errorf("no partition available for channel %q", name)
		}
		conn, err := primary.NextPubSubConnection()
		if err != nil {
			return nil, err
		}
		e := NewPubSubEntry(conn, m.cfg.SubscriptionsPerConnection)
		e.TryAcquire()
		if actual, loaded := m.registry.LoadOrStore(name, e); loaded {
			primary.ReturnPubSubConnection(conn)
			winner := actual.(*PubSubEntry)
			if l != nil && !winner.addListenerIfActive(name, l) {
				continue retry
			}
			return winner, nil
		}
		if e.subscribeIfActive(m.codec, name, kind, l) {
			metrics.PubSubEntriesActive.Inc()
			m.recordSubscribe(kind)
			return e, nil
		}
		e.Release()
		m.registry.CompareAndDelete(name, e)
		primary.ReturnPubSubConnection(conn)
	}
}

// Unsubscribe removes the channel mapping and issues the network
// unsubscribe. Duplicate calls no-op: the mapping is gone after the first.
func (m *Manager) Unsubscribe(channel string) {
	m.releaseChannel(channel)
}

// PUnsubscribe is Unsubscribe for a pattern subscription.
func (m *Manager) PUnsubscribe(pattern string) {
	m.releaseChannel(pattern)
}

// releaseChannel removes the mapping eagerly, then waits (via the
// confirmation listener) for the unsubscribe acknowledgement before
// deciding whether the entry's connection can go back to the pool.
func (m *Manager) releaseChannel(name string) {
	v, ok := m.registry.LoadAndDelete(name)
	if !ok {
		return
	}
	e := v.(*PubSubEntry)
	metrics.ChannelsActive.Dec()
	metrics.UnsubscribesTotal.Inc()

	e.Unsubscribe(name, func() {
		if e.TryClose() {
			m.firstPartition().ReturnPubSubConnection(e.Conn())
			metrics.PubSubEntriesActive.Dec()
			m.logger.Debug().Str("channel", name).Msg("pubsub entry drained")
		}
	})
}

// snapshotEntries returns the distinct entries currently reachable from
// the registry.
func (m *Manager) snapshotEntries() []*PubSubEntry {
	seen := make(map[*PubSubEntry]struct{})
	var out []*PubSubEntry
	m.registry.Range(func(_, v any) bool {
		e := v.(*PubSubEntry)
		if _, dup := seen[e]; !dup {
			seen[e] = struct{}{}
			out = append(out, e)
		}
		return true
	})
	return out
}

func (m *Manager) recordSubscribe(kind subKind) {
	metrics.ChannelsActive.Inc()
	if kind == kindPattern {
		metrics.SubscribesTotal.WithLabelValues("psubscribe").Inc()
	} else {
		metrics.SubscribesTotal.WithLabelValues("subscribe").Inc()
	}
}
