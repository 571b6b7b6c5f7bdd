package transport

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/types"
	"github.com/google/uuid"
)

// DialFactory creates TCP connections to store nodes, honoring the
// configured connect timeout. Pub/sub connections run a background read
// loop that parses server pushes and dispatches them to listeners.
type DialFactory struct {
	connectTimeout time.Duration
	loop           *EventLoop
}

// NewDialFactory creates a factory dialing with the given timeout.
func NewDialFactory(connectTimeout time.Duration) *DialFactory {
	return &DialFactory{connectTimeout: connectTimeout}
}

// AttachEventLoop makes subsequently created connections run message
// callbacks on the loop instead of their read-loop goroutines.
func (f *DialFactory) AttachEventLoop(loop *EventLoop) {
	f.loop = loop
}

// NewConn dials a request/response connection.
func (f *DialFactory) NewConn(addr types.Addr) (Conn, error) {
	nc, err := net.DialTimeout("tcp", addr.String(), f.connectTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %v", addr, err)
	}
	return newTCPConn(addr, nc, nil), nil
}

// NewPubSubConn dials a dedicated pub/sub connection and starts its read
// loop.
func (f *DialFactory) NewPubSubConn(addr types.Addr) (PubSubConn, error) {
	nc, err := net.DialTimeout("tcp", addr.String(), f.connectTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %v", addr, err)
	}
	c := newTCPConn(addr, nc, f.loop)
	go c.readLoop()
	return c, nil
}

type tcpConn struct {
	id   string
	addr types.Addr
	nc   net.Conn
	br   *bufio.Reader
	loop *EventLoop

	mu        sync.Mutex
	listeners []Listener
	channels  map[string]Codec
	patterns  map[string]Codec
	closed    bool
}

func newTCPConn(addr types.Addr, nc net.Conn, loop *EventLoop) *tcpConn {
	return &tcpConn{
		id:       uuid.New().String(),
		addr:     addr,
		nc:       nc,
		br:       bufio.NewReader(nc),
		loop:     loop,
		channels: make(map[string]Codec),
		patterns: make(map[string]Codec),
	}
}

func (c *tcpConn) ID() string       { return c.id }
func (c *tcpConn) Addr() types.Addr { return c.addr }

func (c *tcpConn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	return c.nc.Close()
}

func (c *tcpConn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *tcpConn) Subscribe(codec Codec, channel string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("subscribe on closed connection")
	}
	c.channels[channel] = codec
	c.mu.Unlock()
	return c.writeCommand("SUBSCRIBE", channel)
}

func (c *tcpConn) PSubscribe(codec Codec, pattern string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("psubscribe on closed connection")
	}
	c.patterns[pattern] = codec
	c.mu.Unlock()
	return c.writeCommand("PSUBSCRIBE", pattern)
}

func (c *tcpConn) Unsubscribe(channel string) error {
	c.mu.Lock()
	delete(c.channels, channel)
	c.mu.Unlock()
	return c.writeCommand("UNSUBSCRIBE", channel)
}

func (c *tcpConn) PUnsubscribe(pattern string) error {
	c.mu.Lock()
	delete(c.patterns, pattern)
	c.mu.Unlock()
	return c.writeCommand("PUNSUBSCRIBE", pattern)
}

func (c *tcpConn) AddListener(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

func (c *tcpConn) RemoveListener(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, cur := range c.listeners {
		if cur == l {
			c.listeners = append(c.listeners[:i], c.listeners[i+1:]...)
			return
		}
	}
}

// writeCommand serializes a command as an array of bulk strings.
func (c *tcpConn) writeCommand(args ...string) error {
	buf := make([]byte, 0, 32)
	buf = append(buf, '*')
	buf = strconv.AppendInt(buf, int64(len(args)), 10)
	buf = append(buf, '\r', '\n')
	for _, a := range args {
		buf = append(buf, '$')
		buf = strconv.AppendInt(buf, int64(len(a)), 10)
		buf = append(buf, '\r', '\n')
		buf = append(buf, a...)
		buf = append(buf, '\r', '\n')
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("write on closed connection")
	}
	if _, err := c.nc.Write(buf); err != nil {
		return fmt.Errorf("failed to write command: %v", err)
	}
	return nil
}

// readLoop parses server frames until the connection closes. Pub/sub
// traffic arrives as arrays whose first element names the event.
func (c *tcpConn) readLoop() {
	for {
		frame, err := c.readValue()
		if err != nil {
			c.mu.Lock()
			wasClosed := c.closed
			c.closed = true
			c.mu.Unlock()
			if !wasClosed {
				c.nc.Close()
				logger := log.WithConnID(c.id)
				logger.Debug().Err(err).Msg("pubsub read loop ended")
			}
			return
		}
		c.dispatch(frame)
	}
}

func (c *tcpConn) dispatch(frame any) {
	parts, ok := frame.([]any)
	if !ok || len(parts) < 2 {
		return
	}
	kind, ok := parts[0].(string)
	if !ok {
		return
	}

	switch kind {
	case "message":
		if len(parts) != 3 {
			return
		}
		channel, _ := parts[1].(string)
		payload, _ := parts[2].(string)
		c.mu.Lock()
		codec, subscribed := c.channels[channel]
		listeners := c.snapshotListenersLocked()
		c.mu.Unlock()
		if !subscribed {
			return
		}
		msg, err := codec.Decode([]byte(payload))
		if err != nil {
			logger := log.WithChannel(channel)
			logger.Warn().Err(err).Msg("failed to decode message")
			return
		}
		c.run(func() {
			for _, l := range listeners {
				l.OnMessage(channel, msg)
			}
		})

	case "pmessage":
		if len(parts) != 4 {
			return
		}
		pattern, _ := parts[1].(string)
		channel, _ := parts[2].(string)
		payload, _ := parts[3].(string)
		c.mu.Lock()
		codec, subscribed := c.patterns[pattern]
		listeners := c.snapshotListenersLocked()
		c.mu.Unlock()
		if !subscribed {
			return
		}
		msg, err := codec.Decode([]byte(payload))
		if err != nil {
			logger := log.WithChannel(pattern)
			logger.Warn().Err(err).Msg("failed to decode pattern message")
			return
		}
		c.run(func() {
			for _, l := range listeners {
				l.OnPatternMessage(pattern, channel, msg)
			}
		})

	case "subscribe", "unsubscribe", "psubscribe", "punsubscribe":
		channel, _ := parts[1].(string)
		var status StatusType
		switch kind {
		case "subscribe":
			status = StatusSubscribe
		case "unsubscribe":
			status = StatusUnsubscribe
		case "psubscribe":
			status = StatusPSubscribe
		case "punsubscribe":
			status = StatusPUnsubscribe
		}

		c.mu.Lock()
		listeners := c.snapshotListenersLocked()
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
}

// run hands a message callback to the attached event loop; without one, or
// once the loop has stopped, the callback runs inline on the read loop.
// Status confirmations stay on the read loop so teardown observes them in
// command order.
func (c *tcpConn) run(fn func()) {
	if c.loop != nil && c.loop.Submit(fn) {
		return
	}
	fn()
}

func (c *tcpConn) snapshotListenersLocked() []Listener {
	out := make([]Listener, len(c.listeners))
	copy(out, c.listeners)
	return out
}

// readValue parses one wire value: simple string, error, integer, bulk
// string, or array.
func (c *tcpConn) readValue() (any, error) {
	line, err := c.readLine()
	if err != nil {
		return nil, err
	}
	if len(line) == 0 {
		return nil, fmt.Errorf("empty frame")
	}

	switch line[0] {
	case '+':
		return string(line[1:]), nil
	case '-':
		return nil, fmt.Errorf("server error: %s", line[1:])
	case ':':
		n, err := strconv.ParseInt(string(line[1:]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad integer frame: %v", err)
		}
		return n, nil
	case '$':
		size, err := strconv.Atoi(string(line[1:]))
		if err != nil {
			return nil, fmt.Errorf("bad bulk length: %v", err)
		}
		if size < 0 {
			return nil, nil
		}
		buf := make([]byte, size+2)
		if _, err := io.ReadFull(c.br, buf); err != nil {
			return nil, err
		}
		return string(buf[:size]), nil
	case '*', '>':
		count, err := strconv.Atoi(string(line[1:]))
		if err != nil {
			return nil, fmt.Errorf("bad array length: %v", err)
		}
		if count < 0 {
			return nil, nil
		}
		out := make([]any, 0, count)
		for i := 0; i < count; i++ {
			v, err := c.readValue()
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown frame type %q", line[0])
	}
}

func (c *tcpConn) readLine() ([]byte, error) {
	line, err := c.br.ReadBytes('\n')
	if err != nil {
		return nil, err
	}
	if len(line) < 2 || line[len(line)-2] != '\r' {
		return nil, fmt.Errorf("malformed line terminator")
	}
	return line[:len(line)-2], nil
}
