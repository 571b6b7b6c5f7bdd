package manager

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cuemby/burrow/pkg/config"
	"github.com/cuemby/burrow/pkg/hashslot"
	"github.com/cuemby/burrow/pkg/latch"
	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/metrics"
	"github.com/cuemby/burrow/pkg/partition"
	"github.com/cuemby/burrow/pkg/timer"
	"github.com/cuemby/burrow/pkg/transport"
	"github.com/rs/zerolog"
)

// Manager is the connection-management core: it routes keyspace operations
// to the partition owning their slot, multiplexes channel subscriptions
// onto a small pool of pub/sub connections, re-homes subscriptions when a
// replica is lost, and drains in-flight work on shutdown.
type Manager struct {
	cfg       *config.Config
	codec     transport.Codec
	factory   transport.Factory
	table     *partition.Table
	registry  sync.Map // channel name -> *PubSubEntry
	gate      *latch.Latch
	timers    *timer.Scheduler
	eventLoop *transport.EventLoop
	logger    zerolog.Logger
	closed    atomic.Bool
}

// New builds a manager over a single master/replica partition covering the
// whole slot space. Clustered topologies add partitions with AddPartition.
// A nil codec defaults to transport.StringCodec.
func New(cfg *config.Config, factory transport.Factory, codec transport.Codec) (*Manager, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %v", err)
	}
	if codec == nil {
		codec = transport.StringCodec{}
	}

	part, err := partition.NewMasterReplica(cfg, factory)
	if err != nil {
		return nil, fmt.Errorf("failed to create partition: %v", err)
	}

	m := &Manager{
		cfg:       cfg,
		codec:     codec,
		factory:   factory,
		table:     partition.NewTable(),
		gate:      latch.New(),
		timers:    timer.New(),
		eventLoop: transport.NewEventLoop(cfg.EventLoopWorkers),
		logger:    log.WithComponent("manager"),
	}
	// connections created from here on dispatch message callbacks on the
	// manager's event loop instead of their I/O goroutines
	if la, ok := factory.(transport.LoopAttacher); ok {
		la.AttachEventLoop(m.eventLoop)
	}
	m.table.Put(hashslot.SlotMax, part)
	metrics.PartitionsTotal.Set(1)
	return m, nil
}

// ResolveSlot returns the hash slot for a key, or hashslot.NoSlot when
// routing is unnecessary: single-partition deployments and keyless
// (administrative or broadcast) operations skip slot resolution entirely.
func (m *Manager) ResolveSlot(key string) (int, error) {
	if m.table.Len() == 1 || key == "" {
		return hashslot.NoSlot, nil
	}
	slot, err := hashslot.ForKey(key)
	if err != nil {
		return hashslot.NoSlot, err
	}
	m.logger.Debug().Int("slot", slot).Str("key", key).Msg("resolved slot")
	return slot, nil
}

// AddPartition installs a partition owning the slot range that ends at
// upperBound, built from its own configuration.
func (m *Manager) AddPartition(upperBound int, cfg *config.Config) error {
	if upperBound < 0 || upperBound > hashslot.SlotMax {
		return fmt.Errorf("partition upper bound %d outside slot space", upperBound)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid partition configuration: %v", err)
	}
	part, err := partition.NewMasterReplica(cfg, m.factory)
	if err != nil {
		return err
	}
	m.table.Put(upperBound, part)
	metrics.PartitionsTotal.Set(float64(m.table.Len()))
	logger := log.WithPartition(upperBound)
	logger.Info().Msg("partition added")
	return nil
}

// RemovePartition drops the partition keyed by upperBound from the routing
// table and shuts it down. Used when a slot range is merged away. The
// partition keyed by the sentinel upper bound is permanent: removing it
// would leave the top of the slot space unroutable.
func (m *Manager) RemovePartition(upperBound int) bool {
	if upperBound == hashslot.SlotMax {
		return false
	}
	part := m.table.Remove(upperBound)
	if part == nil {
		return false
	}
	part.Shutdown()
	metrics.PartitionsTotal.Set(float64(m.table.Len()))
	logger := log.WithPartition(upperBound)
	logger.Info().Msg("partition removed")
	return true
}

// Entry returns the pool entry currently serving a channel, or nil.
func (m *Manager) Entry(channel string) *PubSubEntry {
	if v, ok := m.registry.Load(channel); ok {
		return v.(*PubSubEntry)
	}
	return nil
}

// Config returns the manager's configuration.
func (m *Manager) Config() *config.Config { return m.cfg }

// Codec returns the pub/sub payload codec.
func (m *Manager) Codec() transport.Codec { return m.codec }

// Table returns the partition routing table.
func (m *Manager) Table() *partition.Table { return m.table }

// Timer returns the shared operation-timeout scheduler.
func (m *Manager) Timer() *timer.Scheduler { return m.timers }

// ShutdownLatch returns the quiescence gate checkouts register with.
func (m *Manager) ShutdownLatch() *latch.Latch { return m.gate }

// EventLoop returns the transport worker group.
func (m *Manager) EventLoop() *transport.EventLoop { return m.eventLoop }

// Shutdown refuses new operations, waits for admitted checkouts to drain,
// then tears down partitions, the timer, and the transport event loop, in
// that order. It is terminal and idempotent.
func (m *Manager) Shutdown() {
	if !m.closed.CompareAndSwap(false, true) {
		return
	}
	m.logger.Info().Msg("shutting down, draining in-flight operations")

	m.gate.CloseAndWait()
	for _, part := range m.table.Partitions() {
		part.Shutdown()
	}
	m.timers.Stop()
	if err := m.eventLoop.Shutdown(context.Background()); err != nil {
		m.logger.Error().Err(err).Msg("event loop shutdown failed")
	}
	m.logger.Info().Msg("shutdown complete")
}

// Closed reports whether shutdown has begun.
func (m *Manager) Closed() bool {
	return m.closed.Load()
}

// firstPartition resolves the primary partition; pub/sub connections are
// never slot-sharded, so everything pub/sub related lives here.
func (m *Manager) firstPartition() partition.Partition {
	return m.table.Resolve(hashslot.NoSlot)
}
