package transport

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/cuemby/burrow/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (r *recordingListener) snapshot() (messages, patterns []string, statuses []StatusType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.messages...),
		append([]string(nil), r.patterns...),
		append([]StatusType(nil), r.statuses...)
}

// fakeServer accepts one connection, waits until the client has sent the
// expected commands, then plays scripted pub/sub frames.
type fakeServer struct {
	ln   net.Listener
	addr types.Addr
}

func newFakeServer(t *testing.T, waitFor []string, script []string) *fakeServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	addr, err := types.ParseAddr(ln.Addr().String())
	require.NoError(t, err)

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		br := bufio.NewReader(conn)
		var received []byte
		buf := make([]byte, 512)
		for !containsAll(received, waitFor) {
			n, err := br.Read(buf)
			if err != nil {
				return
			}
			received = append(received, buf[:n]...)
		}
		for _, frame := range script {
			if _, err := conn.Write([]byte(frame)); err != nil {
				return
			}
		}
	}()
	return &fakeServer{ln: ln, addr: addr}
}

func containsAll(data []byte, wants []string) bool {
	for _, w := range wants {
		if !strings.Contains(string(data), w) {
			return false
		}
	}
	return true
}

func TestDialFactoryConnRoundTrip(t *testing.T) {
	srv := newFakeServer(t, nil, nil)

	conn, err := NewDialFactory(time.Second).NewConn(srv.addr)
	require.NoError(t, err)
	assert.Equal(t, srv.addr, conn.Addr())
	assert.NotEmpty(t, conn.ID())
	assert.False(t, conn.Closed())

	require.NoError(t, conn.Close())
	assert.True(t, conn.Closed())
	require.NoError(t, conn.Close(), "double close is a no-op")
}

func TestDialFactoryConnectFailure(t *testing.T) {
	// a port nothing listens on
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr, err := types.ParseAddr(ln.Addr().String())
	require.NoError(t, err)
	ln.Close()

	_, err = NewDialFactory(100 * time.Millisecond).NewConn(addr)
	assert.Error(t, err)
}

func TestPubSubConnDispatchesServerPushes(t *testing.T) {
	srv := newFakeServer(t,
		[]string{"SUBSCRIBE", "PSUBSCRIBE"},
		[]string{
			"*3\r\n$9\r\nsubscribe\r\n$4\r\nnews\r\n:1\r\n",
			"*3\r\n$7\r\nmessage\r\n$4\r\nnews\r\n$5\r\nhello\r\n",
			"*4\r\n$8\r\npmessage\r\n$6\r\nnews.*\r\n$11\r\nnews.sports\r\n$4\r\ngoal\r\n",
		})

	factory := NewDialFactory(time.Second)
	loop := NewEventLoop(2)
	t.Cleanup(func() { loop.Shutdown(context.Background()) })
	factory.AttachEventLoop(loop)

	conn, err := factory.NewPubSubConn(srv.addr)
	require.NoError(t, err)
	defer conn.Close()

	rec := &recordingListener{}
	conn.AddListener(rec)
	require.NoError(t, conn.Subscribe(StringCodec{}, "news"))
	require.NoError(t, conn.PSubscribe(StringCodec{}, "news.*"))

	require.Eventually(t, func() bool {
		messages, patterns, statuses := rec.snapshot()
		return len(messages) == 1 && len(patterns) == 1 && len(statuses) == 1
	}, 2*time.Second, 10*time.Millisecond)

	messages, patterns, statuses := rec.snapshot()
	assert.Equal(t, []string{"news=hello"}, messages)
	assert.Equal(t, []string{"news.*/news.sports=goal"}, patterns)
	assert.Equal(t, []StatusType{StatusSubscribe}, statuses)
}

func TestPubSubConnIgnoresUnsubscribedTraffic(t *testing.T) {
	srv := newFakeServer(t,
		[]string{"SUBSCRIBE"},
		[]string{
			"*3\r\n$7\r\nmessage\r\n$5\r\nother\r\n$4\r\nnope\r\n",
			"*3\r\n$7\r\nmessage\r\n$4\r\nnews\r\n$5\r\nhello\r\n",
		})

	conn, err := NewDialFactory(time.Second).NewPubSubConn(srv.addr)
	require.NoError(t, err)
	defer conn.Close()

	rec := &recordingListener{}
	conn.AddListener(rec)
	require.NoError(t, conn.Subscribe(StringCodec{}, "news"))

	require.Eventually(t, func() bool {
		messages, _, _ := rec.snapshot()
		return len(messages) == 1
	}, 2*time.Second, 10*time.Millisecond)

	messages, _, _ := rec.snapshot()
	assert.Equal(t, []string{"news=hello"}, messages, "traffic for unsubscribed channels is dropped")
}

func TestClosedPubSubConnRejectsSubscribes(t *testing.T) {
	srv := newFakeServer(t, nil, nil)

	conn, err := NewDialFactory(time.Second).NewPubSubConn(srv.addr)
	require.NoError(t, err)

	require.NoError(t, conn.Close())
	require.Eventually(t, conn.Closed, 2*time.Second, 10*time.Millisecond)
	assert.Error(t, conn.Subscribe(StringCodec{}, "news"))
	assert.Error(t, conn.PSubscribe(StringCodec{}, "news.*"))
}
