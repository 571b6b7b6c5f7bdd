package manager

import (
	"errors"
	"sync"
	"testing"

	"github.com/cuemby/burrow/pkg/transport"
	"github.com/cuemby/burrow/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEntry(t *testing.T, capacity int) (*PubSubEntry, *transport.Broker) {
	t.Helper()
	broker := transport.NewBroker()
	conn, err := transport.NewLoopbackFactory(broker).
		NewPubSubConn(types.Addr{Host: "127.0.0.1", Port: 6380})
	require.NoError(t, err)
	return NewPubSubEntry(conn, capacity), broker
}

func TestTryAcquireBounds(t *testing.T) {
	e, _ := newTestEntry(t, 2)

	assert.True(t, e.TryAcquire())
	assert.True(t, e.TryAcquire())
	assert.False(t, e.TryAcquire(), "acquire beyond capacity must fail")
	assert.Equal(t, 2, e.Usage())

	e.Release()
	assert.Equal(t, 1, e.Usage())
	assert.True(t, e.TryAcquire())
}

func TestTryAcquireConcurrentNeverOvershoots(t *testing.T) {
	e, _ := newTestEntry(t, 5)

	var wg sync.WaitGroup
	results := make(chan bool, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- e.TryAcquire()
		}()
	}
	wg.Wait()
	close(results)

	won := 0
	for ok := range results {
		if ok {
			won++
		}
	}
	assert.Equal(t, 5, won)
	assert.Equal(t, 5, e.Usage())
}

func TestReleaseBelowZeroPanics(t *testing.T) {
	e, _ := newTestEntry(t, 1)
	assert.Panics(t, func() { e.Release() })
}

func TestTryCloseOnlyAtZeroUsage(t *testing.T) {
	e, _ := newTestEntry(t, 2)

	require.True(t, e.TryAcquire())
	assert.False(t, e.TryClose())
	assert.True(t, e.Active())

	e.Release()
	assert.True(t, e.TryClose())
	assert.False(t, e.Active())
}

func TestSubscribeIfActiveRefusedOnClosingEntry(t *testing.T) {
	e, _ := newTestEntry(t, 2)
	require.True(t, e.TryClose())

	ok := e.subscribeIfActive(transport.StringCodec{}, "news", kindChannel, nil)
	assert.False(t, ok)
	assert.False(t, e.addListenerIfActive("news", transport.BaseListener{}))
}

func TestUnsubscribeReleasesOnConfirmation(t *testing.T) {
	e, _ := newTestEntry(t, 2)

	require.True(t, e.TryAcquire())
	require.True(t, e.subscribeIfActive(transport.StringCodec{}, "news", kindChannel, nil))

	confirmed := false
	e.Unsubscribe("news", func() { confirmed = true })

	assert.True(t, confirmed)
	assert.Equal(t, 0, e.Usage())
}

// failingUnsubscribeConn simulates a connection whose write side died
// between subscribing and unsubscribing.
type failingUnsubscribeConn struct {
	transport.PubSubConn
}

func (c *failingUnsubscribeConn) Unsubscribe(channel string) error {
	return errors.New("connection reset")
}

func TestUnsubscribeSettlesWhenSendFails(t *testing.T) {
	broker := transport.NewBroker()
	inner, err := transport.NewLoopbackFactory(broker).
		NewPubSubConn(types.Addr{Host: "127.0.0.1", Port: 6380})
	require.NoError(t, err)
	e := NewPubSubEntry(&failingUnsubscribeConn{PubSubConn: inner}, 2)

	require.True(t, e.TryAcquire())
	require.True(t, e.subscribeIfActive(transport.StringCodec{}, "news", kindChannel, nil))

	confirmed := false
	e.Unsubscribe("news", func() { confirmed = true })

	assert.True(t, confirmed, "a failed send must still settle the channel")
	assert.Equal(t, 0, e.Usage())
	assert.True(t, e.TryClose())
}

func TestPatternUnsubscribeMatchesPatternStatus(t *testing.T) {
	e, _ := newTestEntry(t, 2)

	require.True(t, e.TryAcquire())
	require.True(t, e.subscribeIfActive(transport.StringCodec{}, "news.*", kindPattern, nil))

	confirmed := false
	e.Unsubscribe("news.*", func() { confirmed = true })
	assert.True(t, confirmed)
}

func TestCloseAndSnapshotReturnsListeners(t *testing.T) {
	e, _ := newTestEntry(t, 2)

	l1 := &countingListener{}
	l2 := &countingListener{}
	require.True(t, e.TryAcquire())
	require.True(t, e.subscribeIfActive(transport.StringCodec{}, "news", kindChannel, l1))
	e.AddListener("news", l2)

	listeners, kind := e.closeAndSnapshot("news")
	assert.Len(t, listeners, 2)
	assert.Equal(t, kindChannel, kind)
	assert.False(t, e.Active())
}

// countingListener records messages delivered to it.
type countingListener struct {
	transport.BaseListener
	mu       sync.Mutex
	messages []string
	patterns []string
}

func (c *countingListener) OnMessage(channel string, msg any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msg.(string))
}

func (c *countingListener) OnPatternMessage(pattern, channel string, msg any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.patterns = append(c.patterns, channel+"="+msg.(string))
}

func (c *countingListener) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

func (c *countingListener) all() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.messages...)
}

func (c *countingListener) patternCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.patterns)
}

func (c *countingListener) allPatterns() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.patterns...)
}
