package twine

import (
	"net"
	"time"
)

// Reactor is the part of the driving event loop a [Hub] consumes.
//
// All methods are called on the loop's own thread of execution, and
// every callback passed in must be run there too.
type Reactor interface {
	// CallLater schedules f to run once, d from now.
	// CallLater(0, f) runs f on a later loop tick, never synchronously.
	CallLater(d time.Duration, f func()) DelayedCall

	// Now reports the loop's notion of the current time.
	Now() time.Time
}

// DelayedCall is the token returned by [Reactor.CallLater].
type DelayedCall interface {
	// Cancel prevents the call from running. It reports whether the call
	// was still pending.
	Cancel() bool

	// Active reports whether the call has neither run nor been canceled.
	Active() bool
}

// TCPReactor is a [Reactor] that can also accept and initiate TCP
// connections.
type TCPReactor interface {
	Reactor

	// ListenTCP starts accepting connections on address. For each accepted
	// connection, factory is called for a Protocol to drive it.
	ListenTCP(address string, factory ProtocolFactory) (Port, error)

	// ConnectTCP starts connecting to address. On success, p's
	// ConnectionMade is called; otherwise failed is called with the reason.
	ConnectTCP(address string, p Protocol, failed func(error))
}

// Port is a listening endpoint returned by [TCPReactor.ListenTCP].
type Port interface {
	Addr() net.Addr
	Close() error
}

// Transport is the low-level, non-blocking byte stream a [Protocol] is
// connected to.
type Transport interface {
	// Write queues p for sending. It never blocks.
	// The transport must not retain p after Write returns.
	Write(p []byte)

	// LoseConnection closes the connection after queued data is flushed.
	LoseConnection()

	// Buffered reports the number of queued bytes not yet handed to the
	// operating system.
	Buffered() int

	LocalAddr() net.Addr
	RemoteAddr() net.Addr
}

// Protocol receives the events of one connection from a reactor.
type Protocol interface {
	ConnectionMade(t Transport)
	DataReceived(p []byte)

	// BufferDrained reports that the transport's outgoing buffer shrank to
	// buffered bytes.
	BufferDrained(buffered int)

	// ConnectionLost is called exactly once per connection that was made.
	// A nil reason means a clean close.
	ConnectionLost(reason error)
}

// ProtocolFactory builds a [Protocol] for each new connection.
type ProtocolFactory func() Protocol
