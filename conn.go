package twine

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"iter"
	"net"
	"slices"
)

// ConnState is the lifecycle state of a [Conn].
type ConnState uint8

const (
	ConnConnecting ConnState = iota
	ConnConnected
	ConnClosing
	ConnClosed
)

// String returns the lower-case name of s.
func (s ConnState) String() string {
	switch s {
	case ConnConnecting:
		return "connecting"
	case ConnConnected:
		return "connected"
	case ConnClosing:
		return "closing"
	case ConnClosed:
		return "closed"
	default:
		return "invalid"
	}
}

// A Handler is the logic of one connection. It runs in a fiber of its
// own; when it returns, the connection is closed.
type Handler func(c *Conn) error

// Conn is a byte stream that fibers read and write in blocking style.
//
// Reads suspend the calling fiber until the receive buffer can satisfy
// them. Writes suspend it while the transport's outgoing buffer is above
// the high-water mark of the hub's [Config].
//
// Received bytes are consumed in FIFO order. At most one read may be
// outstanding at a time; writes from several fibers are fine.
type Conn struct {
	hub     *Hub
	config  Config
	t       Transport
	state   ConnState
	buf     []byte
	read    *readRequest
	drained Signal
	reason  error
}

type readKind uint8

const (
	readAvailable readKind = iota
	readExact
	readUntil
)

type readRequest struct {
	kind  readKind
	n     int
	delim []byte
	max   int
	p     *Pending
}

func newConn(h *Hub) *Conn {
	return &Conn{hub: h, config: h.config}
}

// Hub returns the hub that drives c.
func (c *Conn) Hub() *Hub { return c.hub }

// State returns the lifecycle state of c.
func (c *Conn) State() ConnState { return c.state }

// Err returns the reason c was lost, once it is closed.
// A clean close has a nil reason.
func (c *Conn) Err() error { return c.reason }

// Buffered returns the number of received bytes not yet read.
func (c *Conn) Buffered() int { return len(c.buf) }

// Transport returns the transport underlying c.
func (c *Conn) Transport() Transport { return c.t }

// LocalAddr returns the local address of the underlying transport, or nil
// if c is not attached to one.
func (c *Conn) LocalAddr() net.Addr {
	if c.t == nil {
		return nil
	}
	return c.t.LocalAddr()
}

// RemoteAddr returns the remote address of the underlying transport, or nil
// if c is not attached to one.
func (c *Conn) RemoteAddr() net.Addr {
	if c.t == nil {
		return nil
	}
	return c.t.RemoteAddr()
}

func (c *Conn) closedErr() error {
	return &ConnectionClosedError{Reason: c.reason}
}

// ReadUntil suspends the running fiber until the receive buffer contains
// delim, and returns the bytes before it. The delimiter is consumed but
// not returned.
//
// If more than max bytes are buffered without a delimiter, ReadUntil
// fails with a *LineTooLongError and leaves the buffer untouched.
func (c *Conn) ReadUntil(delim []byte, max int) ([]byte, error) {
	if len(delim) == 0 {
		panic("twine: ReadUntil with empty delimiter")
	}
	return c.request(readRequest{kind: readUntil, delim: delim, max: max})
}

// ReadLine is ReadUntil with the delimiter and line length limit of the
// hub's [Config].
func (c *Conn) ReadLine() ([]byte, error) {
	return c.ReadUntil([]byte(c.config.Delimiter), c.config.MaxLineLength)
}

// ReadExact suspends the running fiber until at least n bytes are
// buffered, and returns exactly n of them.
func (c *Conn) ReadExact(n int) ([]byte, error) {
	if n < 0 {
		panic("twine: ReadExact with negative length")
	}
	if n == 0 {
		return []byte{}, nil
	}
	return c.request(readRequest{kind: readExact, n: n})
}

// ReadAvailable suspends the running fiber until at least one byte is
// buffered, and returns everything buffered.
func (c *Conn) ReadAvailable() ([]byte, error) {
	return c.request(readRequest{kind: readAvailable})
}

// Read implements [io.Reader]. It returns [io.EOF] once the connection
// has been closed cleanly and the buffer is empty.
func (c *Conn) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if len(c.buf) == 0 {
		data, err := c.ReadAvailable()
		if err != nil {
			var ce *ConnectionClosedError
			if errors.As(err, &ce) && (ce.Reason == nil || ce.Reason == io.EOF) {
				return 0, io.EOF
			}
			return 0, err
		}
		c.buf = append(data, c.buf...)
	}
	n := copy(p, c.buf)
	c.consume(n)
	return n, nil
}

// Lines returns an iterator over the lines read by [Conn.ReadLine].
// The iteration stops after the first error, which is yielded too.
func (c *Conn) Lines() iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		for {
			line, err := c.ReadLine()
			if !yield(line, err) || err != nil {
				return
			}
		}
	}
}

func (c *Conn) request(req readRequest) ([]byte, error) {
	if c.read != nil {
		return nil, ErrConcurrentRead
	}

	if data, err, ok := c.take(&req); ok {
		return data, err
	}

	if c.state != ConnConnected {
		return nil, c.closedErr()
	}

	v, err := c.hub.Suspend(func(p *Pending) {
		req.p = p
		c.read = &req
		p.OnSettle(func() {
			if c.read == &req {
				c.read = nil
			}
		})
	})
	if err != nil {
		return nil, err
	}
	data, _ := v.([]byte)
	return data, nil
}

// take consumes what req asks for from the receive buffer.
// ok is false if the buffer cannot satisfy req yet.
func (c *Conn) take(req *readRequest) (data []byte, err error, ok bool) {
	switch req.kind {
	case readAvailable:
		if len(c.buf) == 0 {
			return nil, nil, false
		}
		data = c.buf
		c.buf = nil
		return data, nil, true

	case readExact:
		if len(c.buf) < req.n {
			return nil, nil, false
		}
		data = slices.Clone(c.buf[:req.n])
		c.consume(req.n)
		return data, nil, true

	case readUntil:
		i := bytes.Index(c.buf, req.delim)
		if i < 0 {
			// A trailing partial delimiter does not count against the limit.
			if undelimited := len(c.buf) - partialSuffix(c.buf, req.delim); undelimited > req.max {
				return nil, &LineTooLongError{Length: len(c.buf), Limit: req.max}, true
			}
			return nil, nil, false
		}
		if i > req.max {
			return nil, &LineTooLongError{Length: i, Limit: req.max}, true
		}
		data = slices.Clone(c.buf[:i])
		c.consume(i + len(req.delim))
		return data, nil, true
	}

	panic("twine: internal error: unknown read kind")
}

// partialSuffix returns the length of the longest suffix of b that is a
// proper prefix of delim.
func partialSuffix(b, delim []byte) int {
	for k := min(len(b), len(delim)-1); k > 0; k-- {
		if bytes.HasSuffix(b, delim[:k]) {
			return k
		}
	}
	return 0
}

func (c *Conn) consume(n int) {
	if n >= len(c.buf) {
		c.buf = nil
		return
	}
	c.buf = c.buf[n:]
}

// Write forwards p to the transport. If the transport then buffers more
// than the high-water mark, Write suspends the running fiber until the
// transport reports it has drained to the low-water mark.
//
// A connection closed or lost while waiting fails Write with
// a *ConnectionClosedError, although p has been handed to the transport.
func (c *Conn) Write(p []byte) (int, error) {
	if c.state != ConnConnected {
		return 0, c.closedErr()
	}

	if len(p) != 0 {
		c.t.Write(p)
	}

	for c.t.Buffered() > c.config.HighWater {
		if err := c.drained.Wait(c.hub); err != nil {
			return len(p), err
		}
		if c.state != ConnConnected {
			return len(p), c.closedErr()
		}
	}

	return len(p), nil
}

// WriteLine writes p followed by the delimiter of the hub's [Config].
func (c *Conn) WriteLine(p []byte) error {
	line := make([]byte, 0, len(p)+len(c.config.Delimiter))
	line = append(line, p...)
	line = append(line, c.config.Delimiter...)
	_, err := c.Write(line)
	return err
}

// Close asks the transport to close the connection once queued data is
// flushed. A fiber suspended reading or writing c fails right away with
// a *ConnectionClosedError. Close does nothing if c is already closing or
// closed.
func (c *Conn) Close() error {
	if c.state != ConnConnected {
		return nil
	}
	c.state = ConnClosing
	c.t.LoseConnection()

	if req := c.read; req != nil {
		c.read = nil
		req.p.Resume(nil, c.closedErr())
	}

	c.drained.Notify()
	return nil
}

func (c *Conn) dataReceived(p []byte) {
	if c.state == ConnClosed {
		return
	}

	c.buf = append(c.buf, p...)

	req := c.read
	if req == nil {
		return
	}
	data, err, ok := c.take(req)
	if !ok {
		return
	}
	c.read = nil
	req.p.Resume(data, err)
}

func (c *Conn) bufferDrained(buffered int) {
	if buffered <= c.config.LowWater {
		c.drained.Notify()
	}
}

func (c *Conn) connectionLost(reason error) {
	if c.state == ConnClosed {
		return
	}
	c.state = ConnClosed
	c.reason = reason

	if req := c.read; req != nil {
		c.read = nil
		req.p.Resume(nil, c.closedErr())
	}

	c.drained.Notify()
}

// connProtocol is the [Protocol] through which a reactor drives a Conn.
type connProtocol struct {
	c    *Conn
	made func(c *Conn)
}

func (cp *connProtocol) ConnectionMade(t Transport) {
	c := cp.c
	c.t = t
	c.state = ConnConnected
	cp.made(c)
}

func (cp *connProtocol) DataReceived(p []byte) { cp.c.dataReceived(p) }

func (cp *connProtocol) BufferDrained(buffered int) { cp.c.bufferDrained(buffered) }

func (cp *connProtocol) ConnectionLost(reason error) { cp.c.connectionLost(reason) }

// Serve returns a [ProtocolFactory] whose protocols run handler in a new
// fiber for each connection made.
//
// When handler returns, the connection is closed. A failure other than
// the connection being closed is logged.
func (h *Hub) Serve(handler Handler) ProtocolFactory {
	return func() Protocol {
		return &connProtocol{c: newConn(h), made: func(c *Conn) { h.serveConn(c, handler) }}
	}
}

func (h *Hub) serveConn(c *Conn, handler Handler) {
	h.start(
		func() (any, error) { return nil, handler(c) },
		func(fb *Fiber) {
			if _, err := fb.Result(); err != nil && !errors.Is(err, ErrConnectionClosed) {
				h.logger.Error("twine: connection handler failed",
					"fiber", fb.ID(), "remote", c.RemoteAddr(), "error", err)
			}
			c.Close()
		},
	)
}

// ListenTCP accepts TCP connections on address and runs handler in a new
// fiber for each of them. The hub's reactor must implement [TCPReactor].
func (h *Hub) ListenTCP(address string, handler Handler) (Port, error) {
	tr, ok := h.reactor.(TCPReactor)
	if !ok {
		return nil, ErrNoTCP
	}
	return tr.ListenTCP(address, h.Serve(handler))
}

// ConnectTCP suspends the running fiber until a TCP connection to address
// is made, and returns it. The calling fiber drives the returned [Conn];
// the caller should close it when done.
//
// If the fiber is interrupted before the connection is made, the
// connection is closed as soon as it is.
func (h *Hub) ConnectTCP(address string) (*Conn, error) {
	tr, ok := h.reactor.(TCPReactor)
	if !ok {
		return nil, ErrNoTCP
	}

	v, err := h.Suspend(func(p *Pending) {
		cp := &connProtocol{c: newConn(h), made: func(c *Conn) {
			if !p.Resume(c, nil) {
				c.Close()
			}
		}}
		tr.ConnectTCP(address, cp, func(err error) {
			p.Resume(nil, fmt.Errorf("twine: connect %s: %w", address, err))
		})
	})
	if err != nil {
		return nil, err
	}
	return v.(*Conn), nil
}
