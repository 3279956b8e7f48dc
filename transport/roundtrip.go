// Package transport provides the UDP datagram engine shared by the
// manager and agent packages: RoundTripper correlates an outbound
// request with its response by (peer address, request id), and
// Listener serves inbound requests for an agent.
//
// The wire mechanics (listen/readMessage/writeMessage loop, one
// timer per attempt) follow a conventional UDP socket wrapper
// shape; the correlation and backoff semantics -- needed because a
// manager can have several outstanding requests to different peers at
// once -- are grounded on original_source/snmpprotocol.py's
// requests[key] = (df, timer) pending map plus agentproxy.py's
// _timeout retry logic.
package transport

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/netwatch/snmpcore/wire"
)

// MaxDatagramSize is the receive buffer size for a single UDP read.
const MaxDatagramSize = 65535

// ErrTimeout is returned by RoundTripper.Send when no correlated
// response arrived within the caller-supplied timeout.
var ErrTimeout = errors.New("snmp transport: request timed out")

// ErrClosed is returned to any request still pending when the
// RoundTripper is closed.
var ErrClosed = errors.New("snmp transport: closed")

type pendingKey struct {
	addr      string
	requestID int32
}

type pendingEntry struct {
	resultCh chan rttResult
	timer    *time.Timer
}

type rttResult struct {
	data []byte
	addr net.Addr
	err  error
}

// RoundTripper multiplexes concurrent request/response exchanges over
// a single net.PacketConn. It is the manager side's correlation
// engine: a ManagerProxy issuing several concurrent Get/Set calls (to
// one peer or several) shares one RoundTripper and one UDP socket.
type RoundTripper struct {
	conn  net.PacketConn
	hooks *Hooks

	mu      sync.Mutex
	pending map[pendingKey]*pendingEntry
	closed  bool
}

// RoundTripperOption configures a RoundTripper at construction time.
type RoundTripperOption func(*RoundTripper)

// WithRoundTripperHooks installs observability hooks.
func WithRoundTripperHooks(h *Hooks) RoundTripperOption {
	return func(r *RoundTripper) { r.hooks = h }
}

// NewRoundTripper starts demultiplexing inbound datagrams on conn.
func NewRoundTripper(conn net.PacketConn, opts ...RoundTripperOption) *RoundTripper {
	r := &RoundTripper{
		conn:    conn,
		hooks:   DefaultHooks,
		pending: make(map[pendingKey]*pendingEntry),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.hooks = resolveHooks(r.hooks)
	go r.listen()
	return r
}

// claim atomically removes and returns the pending entry for key, so
// that exactly one of {a correlated response arriving, the timer
// firing, the caller's context expiring} ever resolves a given
// request.
func (r *RoundTripper) claim(key pendingKey) *pendingEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.pending[key]
	if !ok {
		return nil
	}
	delete(r.pending, key)
	return e
}

// Send writes payload to addr and blocks until either a datagram
// correlated by (addr, requestID) is received, timeout elapses, or ctx
// is done. It performs a single attempt; retry-with-backoff is the
// manager package's responsibility, matching how
// original_source/agentproxy.py's _timeout (not RoundTripper) owns the
// 1.5x backoff loop.
func (r *RoundTripper) Send(ctx context.Context, addr net.Addr, payload []byte, requestID int32, timeout time.Duration) ([]byte, net.Addr, error) {
	key := pendingKey{addr: addr.String(), requestID: requestID}
	entry := &pendingEntry{resultCh: make(chan rttResult, 1)}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, nil, ErrClosed
	}
	r.pending[key] = entry
	r.mu.Unlock()

	entry.timer = time.AfterFunc(timeout, func() {
		if e := r.claim(key); e != nil {
			e.resultCh <- rttResult{err: ErrTimeout}
		}
	})

	_, err := r.conn.WriteTo(payload, addr)
	r.hooks.WriteComplete(addr, payload, err)
	if err != nil {
		if e := r.claim(key); e != nil {
			e.timer.Stop()
		}
		return nil, nil, err
	}

	select {
	case res := <-entry.resultCh:
		return res.data, res.addr, res.err
	case <-ctx.Done():
		if e := r.claim(key); e != nil {
			e.timer.Stop()
		}
		return nil, nil, ctx.Err()
	}
}

// Pending reports the number of requests currently awaiting a
// response. Exposed so tests can assert the pending map never leaks
// an entry past its request's lifetime.
func (r *RoundTripper) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

func (r *RoundTripper) listen() {
	buf := make([]byte, MaxDatagramSize)
	for {
		n, addr, err := r.conn.ReadFrom(buf)
		if n < 0 {
			n = 0
		}
		r.hooks.ReadComplete(addr, buf[:n], err)
		if err != nil {
			return
		}

		pdu, err := wire.Decode(buf[:n])
		if err != nil {
			r.hooks.Error(errors.Wrap(err, "decode correlated response"))
			continue
		}

		key := pendingKey{addr: addr.String(), requestID: pdu.RequestID}
		e := r.claim(key)
		if e == nil {
			// No outstanding request matches: a late arrival for an
			// already-timed-out request, or an unsolicited datagram.
			continue
		}
		e.timer.Stop()

		data := make([]byte, n)
		copy(data, buf[:n])
		e.resultCh <- rttResult{data: data, addr: addr}
	}
}

// Close releases the underlying socket and fails every pending
// request with ErrClosed.
func (r *RoundTripper) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	pending := r.pending
	r.pending = nil
	r.mu.Unlock()

	for _, e := range pending {
		e.timer.Stop()
		e.resultCh <- rttResult{err: ErrClosed}
	}
	return r.conn.Close()
}
