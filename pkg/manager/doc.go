/*
Package manager implements the connection-management core of the burrow
client: slot routing, the multiplexed pub/sub connection pool, failover
re-subscription, and shutdown quiescence.

# Architecture

	┌────────────────── CONNECTION MANAGER ──────────────────┐
	│                                                         │
	│  ┌──────────────┐   ResolveSlot   ┌─────────────────┐  │
	│  │  pkg/hashslot │ ──────────────▶ │ partition.Table │  │
	│  └──────────────┘                 └────────┬────────┘  │
	│                                            │            │
	│  Checkout read/write ──────────────────────┤            │
	│   latch acquire → lease → timed release    │            │
	│                                            ▼            │
	│  ┌───────────────────┐          ┌──────────────────┐   │
	│  │  Channel Registry │          │    Partition      │   │
	│  │ channel → entry   │          │ master+replicas   │   │
	│  └─────────┬─────────┘          │ pub/sub sub-pool  │   │
	│            │                    └──────────────────┘   │
	│            ▼                                            │
	│  ┌───────────────────┐                                  │
	│  │   PubSubEntry     │  capacity-bounded multiplexing   │
	│  └───────────────────┘                                  │
	└─────────────────────────────────────────────────────────┘

# Allocation Protocol

Subscribe resolves a channel to a pool entry in three stages: a lock-free
fast path against the registry, a scan over live entries reserving
capacity with an atomic counter, and a growth path that takes a fresh
pub/sub connection from the primary partition. Publication into the
registry is insert-if-absent; a caller that loses the race releases its
reservation and adopts the winner. An entry that closed between
reservation and publication is detected under the entry's lock and the
protocol restarts. The retry loop is bounded in practice, since every
iteration either adopts a settled entry or installs a new one.

Invariants:

  - at most one entry is mapped per channel at any instant
  - entry usage never exceeds capacity and never drops below zero
  - no subscription is admitted into a closing entry

# Failover

ReplicaDown closes the lost replica's pooled connections and re-homes
every channel whose entry wrapped one of its pub/sub connections: the
entry is closed and its listeners snapshotted under its lock, the channel
unsubscribed, and, when listeners remain, re-subscribed through the
normal allocation protocol with every listener re-attached. At most one
entry lock is held at a time, so migration cannot deadlock against
concurrent subscribers.

# Shutdown

Shutdown closes the quiescence latch, letting admitted checkouts finish
while new ones fail fast with types.ErrManagerClosed, then shuts down the
partitions, stops the timeout scheduler, and waits for the transport
event loop to drain. It is terminal: the manager never reopens.

# Integration Points

This package integrates with:

  - pkg/partition: slot-range routing and connection pools
  - pkg/transport: pub/sub connections, listeners, event loop
  - pkg/latch: shutdown quiescence gate
  - pkg/timer: per-checkout operation timeouts
  - pkg/metrics: subscription, checkout, and failover counters
*/
package manager
