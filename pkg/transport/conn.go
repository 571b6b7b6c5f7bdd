package transport

import (
	"github.com/cuemby/burrow/pkg/types"
)

// Conn is a request/response connection leased out of a partition pool.
// The wire protocol lives below this interface; the connection manager only
// needs identity, origin, and lifecycle.
type Conn interface {
	// ID returns a stable unique identity for the connection
	ID() string

	// Addr returns the node the connection is attached to
	Addr() types.Addr

	// Close tears the connection down
	Close() error

	// Closed reports whether the connection has been closed
	Closed() bool
}

// PubSubConn is a dedicated publish/subscribe connection. Messages and
// status confirmations are dispatched to attached listeners.
type PubSubConn interface {
	Conn

	// Subscribe registers the connection for a channel; messages decode
	// through codec before reaching listeners
	Subscribe(codec Codec, channel string) error

	// PSubscribe registers the connection for a glob pattern
	PSubscribe(codec Codec, pattern string) error

	// Unsubscribe drops a channel; listeners observe an unsubscribe
	// status confirmation for it
	Unsubscribe(channel string) error

	// PUnsubscribe drops a pattern subscription
	PUnsubscribe(pattern string) error

	// AddListener attaches a listener for messages and status events
	AddListener(l Listener)

	// RemoveListener detaches a previously attached listener
	RemoveListener(l Listener)
}

// Factory creates connections to store nodes. Implementations carry the
// dial timeout from configuration.
type Factory interface {
	NewConn(addr types.Addr) (Conn, error)
	NewPubSubConn(addr types.Addr) (PubSubConn, error)
}
