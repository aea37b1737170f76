package reactortest

import (
	"net"
	"slices"

	"github.com/b97tsk/twine"
)

// Addr is a [net.Addr] naming a fake endpoint.
type Addr string

// Network implements [net.Addr]. It is always "tcp".
func (a Addr) Network() string { return "tcp" }

// String implements [net.Addr].
func (a Addr) String() string { return string(a) }

// Transport is a fake [twine.Transport].
//
// Written bytes are recorded. When Buffering is set, they also count
// towards Buffered until the test calls Drain, which is how tests
// simulate a slow peer.
type Transport struct {
	Protocol twine.Protocol

	// Buffering makes written bytes stay buffered until drained.
	Buffering bool

	// Disconnecting is set once LoseConnection has been called.
	Disconnecting bool

	Local, Remote net.Addr

	writes   [][]byte
	unsent   []byte
	buffered int
	lost     bool
}

// NewTransport creates a [Transport] with placeholder addresses.
func NewTransport() *Transport {
	return &Transport{Local: Addr("local:0"), Remote: Addr("remote:0")}
}

// Connect attaches p to t and reports the connection as made.
func (t *Transport) Connect(p twine.Protocol) {
	t.Protocol = p
	p.ConnectionMade(t)
}

// Write implements [twine.Transport].
func (t *Transport) Write(p []byte) {
	if t.lost {
		return
	}
	t.writes = append(t.writes, slices.Clone(p))
	t.unsent = append(t.unsent, p...)
	if t.Buffering {
		t.buffered += len(p)
	}
}

// LoseConnection implements [twine.Transport].
func (t *Transport) LoseConnection() { t.Disconnecting = true }

// Buffered implements [twine.Transport].
func (t *Transport) Buffered() int { return t.buffered }

// LocalAddr implements [twine.Transport]. It returns t.Local.
func (t *Transport) LocalAddr() net.Addr { return t.Local }

// RemoteAddr implements [twine.Transport]. It returns t.Remote.
func (t *Transport) RemoteAddr() net.Addr { return t.Remote }

// Writes returns each chunk passed to Write, in order.
func (t *Transport) Writes() [][]byte { return t.writes }

// Bytes returns everything passed to Write, concatenated.
func (t *Transport) Bytes() []byte {
	var b []byte
	for _, w := range t.writes {
		b = append(b, w...)
	}
	return b
}

// Take returns the bytes written since the last call of Take.
func (t *Transport) Take() []byte {
	b := t.unsent
	t.unsent = nil
	return b
}

// Drain removes up to n bytes from the outgoing buffer and reports the
// remaining amount to the protocol.
func (t *Transport) Drain(n int) {
	t.buffered = max(t.buffered-n, 0)
	if !t.lost {
		t.Protocol.BufferDrained(t.buffered)
	}
}

// DrainAll empties the outgoing buffer.
func (t *Transport) DrainAll() { t.Drain(t.buffered) }

// Receive delivers p to the protocol as received data.
func (t *Transport) Receive(p []byte) {
	if t.lost {
		return
	}
	t.Protocol.DataReceived(p)
}

// ReportDisconnect reports the connection as lost with reason, once.
func (t *Transport) ReportDisconnect(reason error) {
	if t.lost {
		return
	}
	t.lost = true
	t.Disconnecting = true
	t.Protocol.ConnectionLost(reason)
}

// Lost reports whether the connection has been reported lost.
func (t *Transport) Lost() bool { return t.lost }
