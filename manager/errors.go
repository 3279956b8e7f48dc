package manager

import (
	"fmt"

	"github.com/netwatch/snmpcore/wire"
)

// TimedOut reports that every retry attempt for a request elapsed its
// timeout without a correlated response. Grounded on
// original_source/agentproxy.py's _timeout, which errbacks the
// deferred with a plain timeout condition once retryCount is
// exhausted.
type TimedOut struct {
	Target    string
	RequestID int32
	Attempts  int
}

func (e *TimedOut) Error() string {
	return fmt.Sprintf("snmp manager: %s request %d timed out after %d attempt(s)", e.Target, e.RequestID, e.Attempts)
}

// TransportError wraps a non-timeout failure from the underlying
// transport.RoundTripper (e.g. a socket write error).
type TransportError struct {
	Target string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("snmp manager: %s transport error: %v", e.Target, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// SetFailed reports a non-zero error-status on a SET response, naming
// the 0-based variable binding index responsible when the agent
// supplied one.
type SetFailed struct {
	Status wire.ErrorStatus
	Index  int
}

func (e *SetFailed) Error() string {
	if e.Index == wire.NoIndex {
		return fmt.Sprintf("snmp manager: set failed: %v", e.Status)
	}
	return fmt.Sprintf("snmp manager: set failed: %v at varbind %d", e.Status, e.Index)
}

// ProtocolError aliases wire.ErrProtocol: a decode failure on an
// otherwise-correlated response is a protocol-level error, not a
// manager-level one, so it is surfaced unwrapped rather than
// duplicated as a second sentinel.
var ProtocolError = wire.ErrProtocol
