/*
Package transport defines the wire-level collaborators of the connection
manager and ships an in-process loopback implementation.

The connection manager never touches bytes on the wire. It works against
three small contracts:

  - Conn: a leased request/response connection (identity, origin, lifecycle)
  - PubSubConn: a dedicated publish/subscribe connection with listener
    dispatch and subscribe/unsubscribe status confirmations
  - Factory: creates connections to a node, carrying the configured dial
    timeout

A protocol implementation plugs in by providing a Factory. Two ship with
the package: DialFactory speaks the store wire protocol over TCP, running
a background read loop per pub/sub connection that parses server pushes
and dispatches them to listeners. LoopbackFactory wires connections
through an in-process Broker, which gives tests and embedding applications
the full pub/sub semantics (pattern matching, per-channel codecs,
confirmation statuses) without a server.

# Listeners

Listeners attach to a PubSubConn and receive messages, pattern messages,
and status confirmations. OnStatus returning true detaches the listener;
that is how one-shot confirmation listeners (unsubscribe acknowledgements)
remove themselves. BaseListener provides no-op defaults for embedding, and
OnStatusFunc adapts a plain function.

# Event Loop

EventLoop is the worker group message callbacks run on. Factories
implementing LoopAttacher hand it to their connections, which then submit
OnMessage/OnPatternMessage dispatch to the loop instead of running it on
the publisher or read-loop goroutine; status confirmations stay inline to
preserve command ordering. The manager's shutdown sequence stops the loop
last, after all partitions are closed, and waits for queued deliveries to
drain.

# Integration Points

This package integrates with:

  - pkg/partition: pools Conns and PubSubConns created by a Factory
  - pkg/manager: attaches listeners, issues subscribes, awaits loop shutdown
*/
package transport
