package transport

import (
	"net"

	"github.com/pkg/errors"

	"github.com/netwatch/snmpcore/wire"
)

// Handler processes a single decoded inbound PDU and returns the PDU
// to send back, or nil to send no reply (matching spec's requirement
// that a SET/GET producing no response -- e.g. a notification -- not
// be acknowledged).
type Handler interface {
	HandleRequest(pdu *wire.PDU, addr net.Addr) *wire.PDU
}

// Listener serves an agent's inbound request/response loop over a
// single net.PacketConn. Unlike a trap receiver, which is allowed to
// die on the first malformed datagram since listening for traps is
// optional, an agent must keep answering well-formed requests from
// other managers even after receiving one malformed datagram, so a
// decode failure here is logged and dropped rather than propagated.
type Listener struct {
	conn    net.PacketConn
	handler Handler
	hooks   *Hooks
}

// ListenerOption configures a Listener at construction time.
type ListenerOption func(*Listener)

// WithListenerHooks installs observability hooks.
func WithListenerHooks(h *Hooks) ListenerOption {
	return func(l *Listener) { l.hooks = h }
}

// NewListener wraps conn as an agent-side request server. handler is
// invoked once per well-formed inbound datagram; Serve blocks until a
// read fails (typically because the Listener was closed).
func NewListener(conn net.PacketConn, handler Handler, opts ...ListenerOption) *Listener {
	l := &Listener{conn: conn, handler: handler, hooks: DefaultHooks}
	for _, opt := range opts {
		opt(l)
	}
	l.hooks = resolveHooks(l.hooks)
	return l
}

// Serve processes inbound datagrams until the connection is closed or
// a read error occurs.
func (l *Listener) Serve() error {
	buf := make([]byte, MaxDatagramSize)
	for {
		n, addr, err := l.conn.ReadFrom(buf)
		if n < 0 {
			n = 0
		}
		l.hooks.ReadComplete(addr, buf[:n], err)
		if err != nil {
			return err
		}

		if err := l.processDatagram(buf[:n], addr); err != nil {
			l.hooks.Error(err)
		}
	}
}

func (l *Listener) processDatagram(input []byte, addr net.Addr) error {
	pdu, err := wire.Decode(input)
	if err != nil {
		return errors.Wrap(err, "decode inbound pdu")
	}

	resp := l.handler.HandleRequest(pdu, addr)
	if resp == nil {
		return nil
	}

	out, err := wire.Encode(resp)
	if err != nil {
		return errors.Wrap(err, "encode response pdu")
	}

	_, err = l.conn.WriteTo(out, addr)
	l.hooks.WriteComplete(addr, out, err)
	return err
}

// Close releases the underlying socket.
func (l *Listener) Close() error {
	return l.conn.Close()
}
