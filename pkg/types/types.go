package types

import (
	"errors"
	"fmt"
	"net"
	"strconv"
)

// Addr identifies a store node by host and port.
type Addr struct {
	Host string
	Port int
}

// String returns the host:port form of the address.
func (a Addr) String() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

// ParseAddr parses a host:port string into an Addr.
func ParseAddr(s string) (Addr, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return Addr{}, fmt.Errorf("invalid address %q: %v", s, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return Addr{}, fmt.Errorf("invalid port in address %q", s)
	}
	return Addr{Host: host, Port: port}, nil
}

// ReadMode controls which connection set serves read operations.
type ReadMode string

const (
	// ReadModeReplica routes reads to replica connections when available
	ReadModeReplica ReadMode = "replica"
	// ReadModeMaster routes all reads to the master connection set
	ReadModeMaster ReadMode = "master"
)

var (
	// ErrManagerClosed is returned for any checkout or subscription
	// attempted after shutdown has begun draining.
	ErrManagerClosed = errors.New("connection manager is closed")

	// ErrPoolExhausted is returned when a partition pool cannot hand out
	// a connection within the configured checkout timeout.
	ErrPoolExhausted = errors.New("connection pool exhausted")

	// ErrInvalidKeyTag is returned when a key contains an opening brace
	// with no matching closing brace.
	ErrInvalidKeyTag = errors.New("key hash tag has no closing brace")
)
