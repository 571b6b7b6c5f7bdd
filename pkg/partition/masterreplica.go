package partition

import (
	"fmt"
	"sync"

	"github.com/cuemby/burrow/pkg/config"
	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/transport"
	"github.com/cuemby/burrow/pkg/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// MasterReplica is the standard Partition implementation: a master
// connection pool, one pool per replica, and a bounded sub-pool of
// dedicated pub/sub connections hosted on the replicas (falling back to
// the master when no replica is usable).
type MasterReplica struct {
	cfg     *config.Config
	factory transport.Factory
	logger  zerolog.Logger

	mu         sync.Mutex
	masterAddr types.Addr
	masterPool *connPool
	replicas   map[string]*replica
	rrKeys     []string
	rrIndex    int
	pubsub     map[string]*pubSubRecord
	shutdown   bool
}

type replica struct {
	addr types.Addr
	pool *connPool
	up   bool
}

type pubSubRecord struct {
	conn transport.PubSubConn
	host string
	free bool
}

// NewMasterReplica builds a partition from configuration. Connections are
// dialed lazily on first checkout.
func NewMasterReplica(cfg *config.Config, factory transport.Factory) (*MasterReplica, error) {
	masterAddr, err := types.ParseAddr(cfg.Address)
	if err != nil {
		return nil, err
	}

	m := &MasterReplica{
		cfg:        cfg,
		factory:    factory,
		logger:     log.WithComponent("partition"),
		masterAddr: masterAddr,
		replicas:   make(map[string]*replica),
		pubsub:     make(map[string]*pubSubRecord),
	}
	m.masterPool = m.newPool(masterAddr, cfg.MasterPoolSize)

	for _, r := range cfg.Replicas {
		addr, err := types.ParseAddr(r)
		if err != nil {
			return nil, err
		}
		m.addReplicaLocked(addr)
	}
	return m, nil
}

func (m *MasterReplica) newPool(addr types.Addr, size int) *connPool {
	return newConnPool(addr, size, m.cfg.OperationTimeout, m.factory.NewConn)
}

// ConnectionWriteOp leases a master connection.
func (m *MasterReplica) ConnectionWriteOp() (transport.Conn, error) {
	m.mu.Lock()
	pool := m.masterPool
	m.mu.Unlock()
	return pool.Get()
}

// ConnectionReadOp leases a replica connection when the read mode allows
// and a replica is up, otherwise a master connection.
func (m *MasterReplica) ConnectionReadOp() (transport.Conn, error) {
	m.mu.Lock()
	var pool *connPool
	if m.cfg.ReadMode == types.ReadModeReplica {
		if r := m.nextUpReplicaLocked(); r != nil {
			pool = r.pool
		}
	}
	if pool == nil {
		pool = m.masterPool
	}
	m.mu.Unlock()
	return pool.Get()
}

// ReleaseWrite returns a write lease. Connections to a demoted master are
// closed instead of pooled.
func (m *MasterReplica) ReleaseWrite(conn transport.Conn) {
	m.mu.Lock()
	pool := m.masterPool
	stale := conn.Addr() != m.masterAddr
	m.mu.Unlock()

	if stale {
		conn.Close()
		return
	}
	pool.Put(conn)
}

// ReleaseRead returns a read lease to the pool of the node it came from.
func (m *MasterReplica) ReleaseRead(conn transport.Conn) {
	m.mu.Lock()
	if r, ok := m.replicas[conn.Addr().String()]; ok {
		pool := r.pool
		m.mu.Unlock()
		pool.Put(conn)
		return
	}
	pool := m.masterPool
	stale := conn.Addr() != m.masterAddr
	m.mu.Unlock()

	if stale {
		conn.Close()
		return
	}
	pool.Put(conn)
}

// NextPubSubConnection hands out a free pub/sub connection or dials a new
// one, up to the configured sub-pool size.
func (m *MasterReplica) NextPubSubConnection() (transport.PubSubConn, error) {
	m.mu.Lock()
	if m.shutdown {
		m.mu.Unlock()
		return nil, fmt.Errorf("partition is shut down")
	}
	for _, rec := range m.pubsub {
		if rec.free && !rec.conn.Closed() {
			rec.free = false
			conn := rec.conn
			m.mu.Unlock()
			return conn, nil
		}
	}
	if len(m.pubsub) >= m.cfg.PubSubPoolSize {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %d pub/sub connections in use", types.ErrPoolExhausted, m.cfg.PubSubPoolSize)
	}

	host := m.masterAddr
	if r := m.nextUpReplicaLocked(); r != nil {
		host = r.addr
	}
	// reserve the slot before dialing so concurrent callers cannot
	// overshoot the pool size
	key := "dialing-" + uuid.New().String()
	m.pubsub[key] = &pubSubRecord{host: host.String()}
	m.mu.Unlock()

	conn, err := m.factory.NewPubSubConn(host)

	m.mu.Lock()
	delete(m.pubsub, key)
	if err == nil {
		m.pubsub[conn.ID()] = &pubSubRecord{conn: conn, host: host.String()}
	}
	m.mu.Unlock()

	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %v", host, err)
	}
	return conn, nil
}

// ReturnPubSubConnection puts a pub/sub connection back in the free pool.
// Closed or unknown connections are dropped.
func (m *MasterReplica) ReturnPubSubConnection(conn transport.PubSubConn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.pubsub[conn.ID()]
	if !ok {
		return
	}
	if conn.Closed() || m.shutdown {
		delete(m.pubsub, conn.ID())
		return
	}
	rec.free = true
}

// AddReplica registers a new replica node, immediately usable for reads.
func (m *MasterReplica) AddReplica(addr types.Addr) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.replicas[addr.String()]; exists {
		return fmt.Errorf("replica %s already registered", addr)
	}
	m.addReplicaLocked(addr)
	m.logger.Info().Str("replica", addr.String()).Msg("replica added")
	return nil
}

func (m *MasterReplica) addReplicaLocked(addr types.Addr) {
	key := addr.String()
	m.replicas[key] = &replica{
		addr: addr,
		pool: m.newPool(addr, m.cfg.ReplicaPoolSize),
		up:   true,
	}
	m.rrKeys = append(m.rrKeys, key)
}

// ReplicaUp marks a replica usable again after a down notification.
func (m *MasterReplica) ReplicaUp(addr types.Addr) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.replicas[addr.String()]
	if !ok {
		return fmt.Errorf("unknown replica %s", addr)
	}
	if !r.up {
		r.up = true
		r.pool = m.newPool(addr, m.cfg.ReplicaPoolSize)
		m.logger.Info().Str("replica", addr.String()).Msg("replica up")
	}
	return nil
}

// ReplicaDown disables a replica, closes its pooled read connections, and
// closes and returns every pub/sub connection it was hosting. The caller
// re-homes the subscriptions that lived on those connections.
func (m *MasterReplica) ReplicaDown(addr types.Addr) []transport.PubSubConn {
	m.mu.Lock()

	key := addr.String()
	if r, ok := m.replicas[key]; ok && r.up {
		r.up = false
		r.pool.Close()
	}

	var dead []transport.PubSubConn
	for id, rec := range m.pubsub {
		if rec.host == key && rec.conn != nil {
			rec.conn.Close()
			dead = append(dead, rec.conn)
			delete(m.pubsub, id)
		}
	}
	m.mu.Unlock()

	if len(dead) > 0 {
		m.logger.Warn().Str("replica", key).Int("pubsub_conns", len(dead)).
			Msg("replica down, pub/sub connections torn down")
	} else {
		m.logger.Warn().Str("replica", key).Msg("replica down")
	}
	return dead
}

// ChangeMaster repoints the master connection set. Idle connections to the
// old master close now; leased ones close on release.
func (m *MasterReplica) ChangeMaster(addr types.Addr) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if addr == m.masterAddr {
		return nil
	}
	old := m.masterAddr
	m.masterPool.Close()
	m.masterAddr = addr
	m.masterPool = m.newPool(addr, m.cfg.MasterPoolSize)
	m.logger.Info().Str("old", old.String()).Str("new", addr.String()).Msg("master changed")
	return nil
}

// Shutdown closes every connection owned by the partition.
func (m *MasterReplica) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shutdown {
		return
	}
	m.shutdown = true
	m.masterPool.Close()
	for _, r := range m.replicas {
		r.pool.Close()
	}
	for id, rec := range m.pubsub {
		if rec.conn != nil {
			rec.conn.Close()
		}
		delete(m.pubsub, id)
	}
}

// MasterAddr returns the current master address.
func (m *MasterReplica) MasterAddr() types.Addr {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.masterAddr
}

// nextUpReplicaLocked round-robins over usable replicas. Caller holds the
// lock.
func (m *MasterReplica) nextUpReplicaLocked() *replica {
	for i := 0; i < len(m.rrKeys); i++ {
		m.rrIndex = (m.rrIndex + 1) % len(m.rrKeys)
		if r := m.replicas[m.rrKeys[m.rrIndex]]; r != nil && r.up {
			return r
		}
	}
	return nil
}
