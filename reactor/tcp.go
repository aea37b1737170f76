package reactor

import (
	"errors"
	"io"
	"net"
	"slices"
	"sync"

	"github.com/b97tsk/twine"
	"github.com/someonegg/gox/syncx"
)

const readBufferSize = 32 << 10

type port struct {
	l  *Loop
	ln net.Listener
}

func (p *port) Addr() net.Addr { return p.ln.Addr() }

func (p *port) Close() error {
	p.l.mu.Lock()
	delete(p.l.ports, p)
	p.l.mu.Unlock()
	return p.ln.Close()
}

// ListenTCP implements [twine.TCPReactor]. Each accepted connection gets
// a protocol from factory, on the loop.
func (l *Loop) ListenTCP(address string, factory twine.ProtocolFactory) (twine.Port, error) {
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return nil, err
	}

	p := &port{l, ln}

	l.mu.Lock()
	l.ports[p] = struct{}{}
	l.mu.Unlock()

	go p.accept(factory)

	return p, nil
}

func (p *port) accept(factory twine.ProtocolFactory) {
	for {
		c, err := p.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			p.l.logger.Error("reactor: accept failed", "addr", p.ln.Addr(), "error", err)
			return
		}
		p.l.Post(func() { p.l.attach(c, factory()) })
	}
}

// ConnectTCP implements [twine.TCPReactor]. The dial happens on a helper
// goroutine; p or failed is then called on the loop.
func (l *Loop) ConnectTCP(address string, p twine.Protocol, failed func(error)) {
	go func() {
		c, err := net.Dial("tcp", address)
		l.Post(func() {
			if err != nil {
				failed(err)
				return
			}
			l.attach(c, p)
		})
	}()
}

func (l *Loop) attach(c net.Conn, p twine.Protocol) {
	if l.stopD.R().Done() {
		c.Close()
		return
	}

	t := &transport{
		l:     l,
		c:     c,
		p:     p,
		wake:  make(chan struct{}, 1),
		quitD: syncx.NewDoneChan(),
	}

	l.mu.Lock()
	l.conns[t] = struct{}{}
	l.mu.Unlock()

	go t.reading()
	go t.writing()

	p.ConnectionMade(t)
}

// transport is the [twine.Transport] of one net.Conn. A reading and
// a writing goroutine do the socket I/O; protocol events are posted to
// the loop.
type transport struct {
	l *Loop
	c net.Conn
	p twine.Protocol

	mu       sync.Mutex
	out      []byte
	inflight int
	closing  bool
	err      error

	wake     chan struct{}
	quitOnce sync.Once
	quitD    syncx.DoneChan

	lost bool // loop only
}

func (t *transport) Write(p []byte) {
	t.mu.Lock()
	if t.closing || t.quitD.R().Done() {
		t.mu.Unlock()
		return
	}
	t.out = append(t.out, p...)
	t.mu.Unlock()
	t.signal()
}

func (t *transport) LoseConnection() {
	t.mu.Lock()
	t.closing = true
	t.mu.Unlock()
	t.signal()
}

func (t *transport) Buffered() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.out) + t.inflight
}

func (t *transport) LocalAddr() net.Addr  { return t.c.LocalAddr() }
func (t *transport) RemoteAddr() net.Addr { return t.c.RemoteAddr() }

func (t *transport) signal() {
	select {
	case t.wake <- struct{}{}:
	default:
	}
}

// abort closes the socket without flushing. The reading goroutine then
// reports the connection lost.
func (t *transport) abort() {
	t.quitOnce.Do(t.quitD.SetDone)
	t.c.Close()
}

func (t *transport) fail(err error) {
	t.mu.Lock()
	if t.err == nil {
		t.err = err
	}
	t.mu.Unlock()
	t.abort()
}

func (t *transport) reading() {
	buf := make([]byte, readBufferSize)

	for {
		n, err := t.c.Read(buf)
		if n > 0 {
			data := slices.Clone(buf[:n])
			t.l.Post(func() { t.dataReceived(data) })
		}
		if err != nil {
			t.abort()

			t.mu.Lock()
			reason := t.err
			t.mu.Unlock()

			if reason == nil && !errors.Is(err, net.ErrClosed) && err != io.EOF {
				reason = err
			}

			t.l.Post(func() { t.connectionLost(reason) })
			return
		}
	}
}

func (t *transport) writing() {
	for {
		select {
		case <-t.wake:
		case <-t.quitD:
			return
		}

		for {
			t.mu.Lock()
			b := t.out
			t.out = nil
			t.inflight = len(b)
			closing := t.closing
			t.mu.Unlock()

			if len(b) == 0 {
				if closing {
					t.abort()
					return
				}
				break
			}

			_, err := t.c.Write(b)

			t.mu.Lock()
			t.inflight = 0
			buffered := len(t.out)
			t.mu.Unlock()

			if err != nil {
				t.fail(err)
				return
			}

			t.l.Post(func() { t.bufferDrained(buffered) })
		}
	}
}

func (t *transport) dataReceived(p []byte) {
	if !t.lost {
		t.p.DataReceived(p)
	}
}

func (t *transport) bufferDrained(buffered int) {
	if !t.lost {
		t.p.BufferDrained(buffered)
	}
}

func (t *transport) connectionLost(reason error) {
	if t.lost {
		return
	}
	t.lost = true

	t.l.mu.Lock()
	delete(t.l.conns, t)
	t.l.mu.Unlock()

	t.p.ConnectionLost(reason)
}
