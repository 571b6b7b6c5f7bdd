package partition

import (
	"github.com/cuemby/burrow/pkg/transport"
	"github.com/cuemby/burrow/pkg/types"
)

// Partition is one master+replica set serving a contiguous slot range. The
// connection manager checks connections in and out of it and forwards
// topology changes; everything network-level happens behind this
// interface.
type Partition interface {
	// ConnectionWriteOp leases a master connection
	ConnectionWriteOp() (transport.Conn, error)

	// ConnectionReadOp leases a connection per the configured read mode
	ConnectionReadOp() (transport.Conn, error)

	// ReleaseWrite returns a write lease to the pool
	ReleaseWrite(conn transport.Conn)

	// ReleaseRead returns a read lease to the pool
	ReleaseRead(conn transport.Conn)

	// NextPubSubConnection hands out a pub/sub connection from the
	// partition's sub-pool, growing it up to the configured size
	NextPubSubConnection() (transport.PubSubConn, error)

	// ReturnPubSubConnection puts a pub/sub connection back in the free
	// pool; closed connections are dropped instead
	ReturnPubSubConnection(conn transport.PubSubConn)

	// AddReplica registers a new replica node
	AddReplica(addr types.Addr) error

	// ReplicaUp marks a replica usable for reads again
	ReplicaUp(addr types.Addr) error

	// ReplicaDown disables a replica, closes its pooled connections, and
	// returns the pub/sub connections it was hosting, already closed
	ReplicaDown(addr types.Addr) []transport.PubSubConn

	// ChangeMaster repoints the master connection set
	ChangeMaster(addr types.Addr) error

	// Shutdown closes every connection owned by the partition
	Shutdown()
}
