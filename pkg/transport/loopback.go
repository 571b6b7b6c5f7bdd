package transport

import (
	"fmt"
	"path"
	"sync"

	"github.com/cuemby/burrow/pkg/types"
	"github.com/google/uuid"
)

// Broker is an in-process message hub backing loopback connections. It
// gives embedding applications and tests a complete pub/sub transport with
// real subscribe/unsubscribe confirmations, without a network.
type Broker struct {
	mu    sync.RWMutex
	conns map[string]*loopbackConn
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{conns: make(map[string]*loopbackConn)}
}

// Publish delivers a payload to every connection subscribed to the channel
// directly or through a matching pattern. It returns the number of
// connections that received the message.
func (b *Broker) Publish(channel string, payload []byte) int {
	b.mu.RLock()
	conns := make([]*loopbackConn, 0, len(b.conns))
	for _, c := range b.conns {
		conns = append(conns, c)
	}
	b.mu.RUnlock()

	delivered := 0
	for _, c := range conns {
		if c.deliver(channel, payload) {
			delivered++
		}
	}
	return delivered
}

func (b *Broker) register(c *loopbackConn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conns[c.id] = c
}

func (b *Broker) unregister(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conns, id)
}

// LoopbackFactory creates connections attached to a Broker.
type LoopbackFactory struct {
	broker *Broker
	loop   *EventLoop
}

// NewLoopbackFactory creates a factory whose pub/sub connections exchange
// messages through the given broker.
func NewLoopbackFactory(b *Broker) *LoopbackFactory {
	return &LoopbackFactory{broker: b}
}

// AttachEventLoop makes subsequently created connections run message
// callbacks on the loop instead of the publisher's goroutine.
func (f *LoopbackFactory) AttachEventLoop(loop *EventLoop) {
	f.loop = loop
}

// NewConn creates a request/response loopback connection.
func (f *LoopbackFactory) NewConn(addr types.Addr) (Conn, error) {
	return newLoopbackConn(addr, nil, nil), nil
}

// NewPubSubConn creates a pub/sub loopback connection registered with the
// broker.
func (f *LoopbackFactory) NewPubSubConn(addr types.Addr) (PubSubConn, error) {
	c := newLoopbackConn(addr, f.broker, f.loop)
	f.broker.register(c)
	return c, nil
}

type loopbackConn struct {
	id     string
	addr   types.Addr
	broker *Broker
	loop   *EventLoop

	mu        sync.Mutex
	listeners []Listener
	channels  map[string]Codec
	patterns  map[string]Codec
	closed    bool
}

func newLoopbackConn(addr types.Addr, broker *Broker, loop *EventLoop) *loopbackConn {
	return &loopbackConn{
		id:       uuid.New().String(),
		addr:     addr,
		broker:   broker,
		loop:     loop,
		channels: make(map[string]Codec),
		patterns: make(map[string]Codec),
	}
}

func (c *loopbackConn) ID() string       { return c.id }
func (c *loopbackConn) Addr() types.Addr { return c.addr }

func (c *loopbackConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	if c.broker != nil {
		c.broker.unregister(c.id)
	}
	return nil
}

func (c *loopbackConn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *loopbackConn) Subscribe(codec Codec, channel string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("subscribe on closed connection")
	}
	c.channels[channel] = codec
	c.mu.Unlock()

	c.dispatchStatus(StatusSubscribe, channel)
	return nil
}

func (c *loopbackConn) PSubscribe(codec Codec, pattern string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("psubscribe on closed connection")
	}
	c.patterns[pattern] = codec
	c.mu.Unlock()

	c.dispatchStatus(StatusPSubscribe, pattern)
	return nil
}

// Unsubscribe always confirms, even on a closed connection, so teardown
// paths waiting on the confirmation can finish after a connection loss.
func (c *loopbackConn) Unsubscribe(channel string) error {
	c.mu.Lock()
	delete(c.channels, channel)
	c.mu.Unlock()

	c.dispatchStatus(StatusUnsubscribe, channel)
	return nil
}

func (c *loopbackConn) PUnsubscribe(pattern string) error {
	c.mu.Lock()
	delete(c.patterns, pattern)
	c.mu.Unlock()

	c.dispatchStatus(StatusPUnsubscribe, pattern)
	return nil
}

func (c *loopbackConn) AddListener(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

func (c *loopbackConn) RemoveListener(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, cur := range c.listeners {
		if cur == l {
			c.listeners = append(c.listeners[:i], c.listeners[i+1:]...)
			return
		}
	}
}

// deliver decodes and dispatches a published payload. Listener callbacks
// run without the connection lock held.
func (c *loopbackConn) deliver(channel string, payload []byte) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	chanCodec, subscribed := c.channels[channel]
	matched := make(map[string]Codec)
	for pattern, codec := range c.patterns {
		if ok, _ := path.Match(pattern, channel); ok {
			matched[pattern] = codec
		}
	}
	listeners := make([]Listener, len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.Unlock()

	if !subscribed && len(matched) == 0 {
		return false
	}

	if subscribed {
		msg, err := chanCodec.Decode(payload)
		if err == nil {
			c.run(func() {
				for _, l := range listeners {
					l.OnMessage(channel, msg)
				}
			})
		}
	}
	for pattern, codec := range matched {
		msg, err := codec.Decode(payload)
		if err != nil {
			continue
		}
		c.run(func() {
			for _, l := range listeners {
				l.OnPatternMessage(pattern, channel, msg)
			}
		})
	}
	return true
}

// run hands a message callback to the attached event loop; without one, or
// once the loop has stopped, the callback runs inline. Status confirmations
// never go through here: they stay on the issuing goroutine so teardown
// observes them in command order.
func (c *loopbackConn) run(fn func()) {
	if c.loop != nil && c.loop.Submit(fn) {
		return
	}
	fn()
}

// dispatchStatus delivers a confirmation and detaches listeners that
// report themselves done.
func (c *loopbackConn) dispatchStatus(status StatusType, channel string) {
	c.mu.Lock()
	listeners := make([]Listener, len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.Unlock()

	var done []Listener
	for _, l := range listeners {
		if l.OnStatus(status, channel) {
			done = append(done, l)
		}
	}
	for _, l := range done {
		c.RemoveListener(l)
	}
}
