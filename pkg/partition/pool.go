package partition

import (
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/burrow/pkg/transport"
	"github.com/cuemby/burrow/pkg/types"
)

// connPool is a bounded pool of request/response connections to one node.
// Capacity is enforced with a token channel so checkouts can block with a
// timeout without holding the pool lock.
type connPool struct {
	addr    types.Addr
	timeout time.Duration
	dial    func(types.Addr) (transport.Conn, error)
	tokens  chan struct{}

	mu     sync.Mutex
	free   []transport.Conn
	closed bool
}

func newConnPool(addr types.Addr, size int, timeout time.Duration, dial func(types.Addr) (transport.Conn, error)) *connPool {
	p := &connPool{
		addr:    addr,
		timeout: timeout,
		dial:    dial,
		tokens:  make(chan struct{}, size),
	}
	for i := 0; i < size; i++ {
		p.tokens <- struct{}{}
	}
	return p
}

// Get leases a connection, dialing lazily when the free list is empty.
// Blocks up to the pool timeout for a capacity token.
func (p *connPool) Get() (transport.Conn, error) {
	select {
	case <-p.tokens:
	case <-time.After(p.timeout):
		return nil, fmt.Errorf("%w: no connection to %s within %s", types.ErrPoolExhausted, p.addr, p.timeout)
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.tokens <- struct{}{}
		return nil, fmt.Errorf("pool for %s is closed", p.addr)
	}
	var conn transport.Conn
	for len(p.free) > 0 && conn == nil {
		conn = p.free[len(p.free)-1]
		p.free = p.free[:len(p.free)-1]
		if conn.Closed() {
			conn = nil
		}
	}
	p.mu.Unlock()

	if conn != nil {
		return conn, nil
	}

	conn, err := p.dial(p.addr)
	if err != nil {
		p.tokens <- struct{}{}
		return nil, fmt.Errorf("failed to connect to %s: %v", p.addr, err)
	}
	return conn, nil
}

// Put returns a leased connection. Closed connections are dropped; the
// capacity token is always released.
func (p *connPool) Put(conn transport.Conn) {
	p.mu.Lock()
	if p.closed || conn.Closed() {
		p.mu.Unlock()
		conn.Close()
	} else {
		p.free = append(p.free, conn)
		p.mu.Unlock()
	}

	select {
	case p.tokens <- struct{}{}:
	default:
		// token already back; double release is a caller bug but must
		// not block
	}
}

// Close shuts the pool and closes every idle connection. Leased
// connections are closed by their owners on release.
func (p *connPool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	for _, conn := range p.free {
		conn.Close()
	}
	p.free = nil
}
