/*
Package partition owns slot-range routing and the per-partition connection
pools.

A Table maps the inclusive upper bound of each partition's slot range to
the Partition serving it. Lookups take the nearest key greater than or
equal to the slot; the last key is always the sentinel hashslot.SlotMax,
so every slot resolves even in a non-clustered single-partition
deployment, where resolution short-circuits to the sole entry. Reads go
against an immutable snapshot swapped atomically by writers, so routing
never blocks on a topology mutation and never observes a half-applied one.

MasterReplica is the standard Partition: a bounded master pool for writes,
a pool per replica for reads (round-robin over usable replicas, falling
back to the master), and a sub-pool of dedicated pub/sub connections. The
pub/sub sub-pool is hosted on replicas when any is up; the connection
manager asks the partition for "the next pub/sub connection" rather than
dialing itself.

# Topology Changes

  - AddReplica registers a node and makes it immediately usable
  - ReplicaUp re-enables a node after a down notification
  - ReplicaDown closes the replica's pooled reads and returns the closed
    pub/sub connections it hosted, for the manager to re-home
  - ChangeMaster swaps the master pool; stale leases close on release

# Integration Points

This package integrates with:

  - pkg/manager: resolves partitions, checks out connections, reacts to
    the pub/sub connections ReplicaDown reports dead
  - pkg/transport: dials through a Factory, pools Conns and PubSubConns
  - pkg/config: pool sizes, read mode, timeouts
*/
package partition
