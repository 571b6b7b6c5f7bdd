package manager

import (
	"fmt"

	"github.com/cuemby/burrow/pkg/metrics"
	"github.com/cuemby/burrow/pkg/types"
)

// AddReplica registers a new replica with the partition owning slot.
func (m *Manager) AddReplica(slot int, addr types.Addr) error {
	part := m.table.Resolve(slot)
	if part == nil {
		return fmt.Errorf("no partition for slot %d", slot)
	}
	return part.AddReplica(addr)
}

// ReplicaUp marks a replica usable for reads again. No registry
// interaction: subscriptions only move on loss, never on recovery.
func (m *Manager) ReplicaUp(slot int, addr types.Addr) error {
	part := m.table.Resolve(slot)
	if part == nil {
		return fmt.Errorf("no partition for slot %d", slot)
	}
	return part.ReplicaUp(addr)
}

// ChangeMaster repoints the master of the partition owning slot.
func (m *Manager) ChangeMaster(slot int, addr types.Addr) error {
	part := m.table.Resolve(slot)
	if part == nil {
		return fmt.Errorf("no partition for slot %d", slot)
	}
	return part.ChangeMaster(addr)
}

// ReplicaDown tears down a replica and transparently re-homes every
// subscription that was multiplexed onto one of its pub/sub connections.
// Channels with listeners are re-subscribed on a fresh entry with all
// their listeners re-attached; a replica loss never silently drops a
// subscription.
func (m *Manager) ReplicaDown(slot int, addr types.Addr) {
	part := m.table.Resolve(slot)
	if part == nil {
		return
	}

	dead := part.ReplicaDown(addr)
	if len(dead) == 0 {
		return
	}
	deadIDs := make(map[string]struct{}, len(dead))
	for _, conn := range dead {
		deadIDs[conn.ID()] = struct{}{}
	}

	type victim struct {
		name  string
		entry *PubSubEntry
	}
	var victims []victim
	m.registry.Range(func(k, v any) bool {
		e := v.(*PubSubEntry)
		if _, gone := deadIDs[e.Conn().ID()]; gone {
			victims = append(victims, victim{name: k.(string), entry: e})
		}
		return true
	})

	for _, vic := range victims {
		listeners, kind := vic.entry.closeAndSnapshot(vic.name)
		m.releaseChannel(vic.name)

		if len(listeners) == 0 {
			continue
		}
		fresh, err := m.acquireEntry(vic.name, kind, nil)
		if err != nil {
			m.logger.Error().Err(err).Str("channel", vic.name).
				Msg("failed to re-home subscription after replica loss")
			continue
		}
		for _, l := range listeners {
			fresh.AddListener(vic.name, l)
		}
		metrics.ResubscribesTotal.Inc()
		m.logger.Info().Str("channel", vic.name).Int("listeners", len(listeners)).
			Msg("resubscribed listeners")
	}
}
