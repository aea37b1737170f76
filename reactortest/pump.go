package reactortest

import "github.com/b97tsk/twine"

// IOPump connects two protocols back to back through a pair of fake
// transports. Nothing moves until Flush is called.
type IOPump struct {
	Server, Client *Transport
}

// Connect makes a connection between server and client, reporting it as
// made to the server first.
func Connect(server, client twine.Protocol) *IOPump {
	st, ct := NewTransport(), NewTransport()
	st.Local, st.Remote = Addr("server:1"), Addr("client:1")
	ct.Local, ct.Remote = st.Remote, st.Local
	p := &IOPump{Server: st, Client: ct}
	st.Connect(server)
	ct.Connect(client)
	return p
}

// Flush moves written bytes between the two sides until neither has
// anything left to send. A side that called LoseConnection then gets
// both sides disconnected cleanly.
//
// Flush reports whether anything moved.
func (p *IOPump) Flush() bool {
	moved := false
	for {
		progressed := false
		if b := p.Server.Take(); len(b) != 0 {
			p.Client.Receive(b)
			progressed = true
		}
		if b := p.Client.Take(); len(b) != 0 {
			p.Server.Receive(b)
			progressed = true
		}
		if !progressed {
			break
		}
		moved = true
	}
	if p.Server.Disconnecting || p.Client.Disconnecting {
		if !p.Server.Lost() || !p.Client.Lost() {
			moved = true
		}
		p.Server.ReportDisconnect(nil)
		p.Client.ReportDisconnect(nil)
	}
	return moved
}
