package transport

import (
	"context"
	"sync"
	"testing"

	"github.com/cuemby/burrow/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testAddr = types.Addr{Host: "127.0.0.1", Port: 6379}

// recordingListener captures everything dispatched to it.
type recordingListener struct {
	mu       sync.Mutex
	messages []string
	patterns []string
	statuses []StatusType
}

func (r *recordingListener) OnMessage(channel string, msg any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, channel+"="+msg.(string))
}

func (r *recordingListener) OnPatternMessage(pattern, channel string, msg any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patterns = append(r.patterns, pattern+"/"+channel+"="+msg.(string))
}

func (r *recordingListener) OnStatus(status StatusType, channel string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, status)
	return false
}

// Message callbacks ride the attached event loop; status confirmations
// stay inline on the issuing goroutine.
func TestAttachedEventLoopCarriesMessageDispatch(t *testing.T) {
	broker := NewBroker()
	factory := NewLoopbackFactory(broker)
	loop := NewEventLoop(1)
	factory.AttachEventLoop(loop)

	conn, err := factory.NewPubSubConn(testAddr)
	require.NoError(t, err)

	rec := &recordingListener{}
	conn.AddListener(rec)
	require.NoError(t, conn.Subscribe(StringCodec{}, "news"))
	assert.Contains(t, rec.statuses, StatusSubscribe, "confirmation must not wait for the loop")

	assert.Equal(t, 1, broker.Publish("news", []byte("hello")))

	// draining the loop flushes the queued delivery
	require.NoError(t, loop.Shutdown(context.Background()))
	messages, _, _ := rec.snapshot()
	assert.Equal(t, []string{"news=hello"}, messages)
}

func TestPublishToSubscribedChannel(t *testing.T) {
	broker := NewBroker()
	factory := NewLoopbackFactory(broker)

	conn, err := factory.NewPubSubConn(testAddr)
	require.NoError(t, err)

	rec := &recordingListener{}
	conn.AddListener(rec)
	require.NoError(t, conn.Subscribe(StringCodec{}, "news"))

	delivered := broker.Publish("news", []byte("hello"))
	assert.Equal(t, 1, delivered)
	assert.Equal(t, []string{"news=hello"}, rec.messages)
	assert.Contains(t, rec.statuses, StatusSubscribe)
}

func TestPublishUnrelatedChannelNotDelivered(t *testing.T) {
	broker := NewBroker()
	factory := NewLoopbackFactory(broker)

	conn, _ := factory.NewPubSubConn(testAddr)
	rec := &recordingListener{}
	conn.AddListener(rec)
	require.NoError(t, conn.Subscribe(StringCodec{}, "news"))

	assert.Equal(t, 0, broker.Publish("sports", []byte("goal")))
	assert.Empty(t, rec.messages)
}

func TestPatternSubscription(t *testing.T) {
	broker := NewBroker()
	factory := NewLoopbackFactory(broker)

	conn, _ := factory.NewPubSubConn(testAddr)
	rec := &recordingListener{}
	conn.AddListener(rec)
	require.NoError(t, conn.PSubscribe(StringCodec{}, "news.*"))

	assert.Equal(t, 1, broker.Publish("news.sports", []byte("goal")))
	assert.Equal(t, []string{"news.*/news.sports=goal"}, rec.patterns)
}

func TestUnsubscribeConfirms(t *testing.T) {
	broker := NewBroker()
	factory := NewLoopbackFactory(broker)

	conn, _ := factory.NewPubSubConn(testAddr)
	require.NoError(t, conn.Subscribe(StringCodec{}, "news"))

	confirmed := false
	conn.AddListener(OnStatusFunc(func(status StatusType, channel string) bool {
		if status == StatusUnsubscribe && channel == "news" {
			confirmed = true
			return true
		}
		return false
	}))

	require.NoError(t, conn.Unsubscribe("news"))
	assert.True(t, confirmed)
	assert.Equal(t, 0, broker.Publish("news", []byte("late")))
}

// Confirmation listeners must still fire on closed connections so entry
// teardown can finish after a replica loss.
func TestUnsubscribeAfterCloseStillConfirms(t *testing.T) {
	broker := NewBroker()
	factory := NewLoopbackFactory(broker)

	conn, _ := factory.NewPubSubConn(testAddr)
	require.NoError(t, conn.Subscribe(StringCodec{}, "news"))
	require.NoError(t, conn.Close())

	confirmed := false
	conn.AddListener(OnStatusFunc(func(status StatusType, channel string) bool {
		confirmed = status == StatusUnsubscribe && channel == "news"
		return true
	}))
	require.NoError(t, conn.Unsubscribe("news"))
	assert.True(t, confirmed)
}

func TestOneShotListenerDetaches(t *testing.T) {
	broker := NewBroker()
	factory := NewLoopbackFactory(broker)

	conn, _ := factory.NewPubSubConn(testAddr)

	calls := 0
	conn.AddListener(OnStatusFunc(func(status StatusType, channel string) bool {
		calls++
		return true
	}))

	require.NoError(t, conn.Subscribe(StringCodec{}, "a"))
	require.NoError(t, conn.Subscribe(StringCodec{}, "b"))
	assert.Equal(t, 1, calls, "one-shot listener ran more than once")
}

func TestSubscribeOnClosedConnFails(t *testing.T) {
	broker := NewBroker()
	factory := NewLoopbackFactory(broker)

	conn, _ := factory.NewPubSubConn(testAddr)
	require.NoError(t, conn.Close())
	assert.True(t, conn.Closed())
	assert.Error(t, conn.Subscribe(StringCodec{}, "news"))
	assert.Error(t, conn.PSubscribe(StringCodec{}, "news.*"))
}

func TestConnIdentity(t *testing.T) {
	broker := NewBroker()
	factory := NewLoopbackFactory(broker)

	a, _ := factory.NewPubSubConn(testAddr)
	b, _ := factory.NewPubSubConn(testAddr)
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, testAddr, a.Addr())
}

func TestJSONCodecRoundTrip(t *testing.T) {
	broker := NewBroker()
	factory := NewLoopbackFactory(broker)

	conn, _ := factory.NewPubSubConn(testAddr)
	var got any
	var mu sync.Mutex
	conn.AddListener(&funcMessageListener{fn: func(channel string, msg any) {
		mu.Lock()
		defer mu.Unlock()
		got = msg
	}})
	require.NoError(t, conn.Subscribe(JSONCodec{}, "events"))

	payload, err := JSONCodec{}.Encode(map[string]any{"kind": "update"})
	require.NoError(t, err)
	broker.Publish("events", payload)

	mu.Lock()
	defer mu.Unlock()
	require.IsType(t, map[string]any{}, got)
	assert.Equal(t, "update", got.(map[string]any)["kind"])
}

type funcMessageListener struct {
	BaseListener
	fn func(channel string, msg any)
}

func (f *funcMessageListener) OnMessage(channel string, msg any) { f.fn(channel, msg) }
