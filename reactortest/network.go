package reactortest

import (
	"errors"
	"fmt"
	"net"

	"github.com/b97tsk/twine"
)

// ErrConnectionRefused is what [Network.ConnectTCP] fails with when
// nothing listens on the address.
var ErrConnectionRefused = errors.New("reactortest: connection refused")

// Network is a fake [twine.TCPReactor] on top of a [Clock].
// Connections are made on the next clock tick and carried by [IOPump]s.
type Network struct {
	*Clock

	listeners map[string]twine.ProtocolFactory
	pumps     []*IOPump

	// Dials records every call of ConnectTCP.
	Dials []string
}

// NewNetwork creates a [Network] driven by c.
func NewNetwork(c *Clock) *Network {
	return &Network{Clock: c, listeners: make(map[string]twine.ProtocolFactory)}
}

type port struct {
	n       *Network
	address string
}

func (p *port) Addr() net.Addr { return Addr(p.address) }

func (p *port) Close() error {
	delete(p.n.listeners, p.address)
	return nil
}

// ListenTCP implements [twine.TCPReactor].
func (n *Network) ListenTCP(address string, factory twine.ProtocolFactory) (twine.Port, error) {
	if _, ok := n.listeners[address]; ok {
		return nil, fmt.Errorf("reactortest: listen %s: address in use", address)
	}
	n.listeners[address] = factory
	return &port{n, address}, nil
}

// ConnectTCP implements [twine.TCPReactor].
func (n *Network) ConnectTCP(address string, p twine.Protocol, failed func(error)) {
	n.Dials = append(n.Dials, address)
	n.CallLater(0, func() {
		factory, ok := n.listeners[address]
		if !ok {
			failed(ErrConnectionRefused)
			return
		}
		n.pumps = append(n.pumps, Connect(factory(), p))
	})
}

// Pumps returns the connections made so far.
func (n *Network) Pumps() []*IOPump { return n.pumps }

// Flush ticks the clock and flushes every connection until nothing moves.
func (n *Network) Flush() {
	for {
		n.Tick()
		moved := false
		for _, p := range n.pumps {
			if p.Flush() {
				moved = true
			}
		}
		if !moved {
			return
		}
	}
}
