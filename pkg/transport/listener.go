package transport

// StatusType identifies a pub/sub status confirmation.
type StatusType int

const (
	StatusSubscribe StatusType = iota
	StatusUnsubscribe
	StatusPSubscribe
	StatusPUnsubscribe
)

// String returns the wire name of the status type.
func (s StatusType) String() string {
	switch s {
	case StatusSubscribe:
		return "subscribe"
	case StatusUnsubscribe:
		return "unsubscribe"
	case StatusPSubscribe:
		return "psubscribe"
	case StatusPUnsubscribe:
		return "punsubscribe"
	default:
		return "unknown"
	}
}

// Listener receives pub/sub traffic from a connection. OnStatus returning
// true detaches the listener from the connection, which is how one-shot
// confirmation listeners clean themselves up.
type Listener interface {
	// OnMessage delivers a message published to a subscribed channel
	OnMessage(channel string, msg any)

	// OnPatternMessage delivers a message matched by a pattern subscription
	OnPatternMessage(pattern, channel string, msg any)

	// OnStatus delivers a subscribe/unsubscribe confirmation; return true
	// to detach this listener
	OnStatus(status StatusType, channel string) bool
}

// BaseListener is a no-op Listener for embedding; override the methods you
// care about.
type BaseListener struct{}

func (BaseListener) OnMessage(channel string, msg any)                 {}
func (BaseListener) OnPatternMessage(pattern, channel string, msg any) {}
func (BaseListener) OnStatus(status StatusType, channel string) bool   { return false }

// statusFunc adapts a function to a one-shot status listener. It is always
// handed out by pointer so listener identity comparisons stay valid.
type statusFunc struct {
	BaseListener
	fn func(status StatusType, channel string) bool
}

func (s *statusFunc) OnStatus(status StatusType, channel string) bool {
	return s.fn(status, channel)
}

// OnStatusFunc wraps fn as a Listener that only observes status events.
// The listener detaches when fn returns true.
func OnStatusFunc(fn func(status StatusType, channel string) bool) Listener {
	return &statusFunc{fn: fn}
}
