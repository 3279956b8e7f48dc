package transport

import (
	"encoding/hex"
	"log"
	"net"

	"github.com/imdario/mergo"
)

// Hooks defines a structure for observing transport-level events:
// every field is independently nil-able and defaulted via mergo
// against NoOpHooks.
type Hooks struct {
	// WriteComplete is called after a datagram has been written.
	WriteComplete func(addr net.Addr, output []byte, err error)

	// ReadComplete is called after a datagram has been read.
	ReadComplete func(addr net.Addr, input []byte, err error)

	// Error is called after an error condition has been detected
	// outside the immediate scope of a single read/write, e.g. a
	// decode failure on an inbound datagram.
	Error func(err error)

	// RetryScheduled reports a retry's new timeout and the retries
	// remaining. Nothing in this package calls it: RoundTripper.Send
	// makes a single attempt, and the manager package reports its
	// retries through manager.Hooks.RetryScheduled.
	RetryScheduled func(addr net.Addr, requestID int32, nextTimeoutMs int64, retriesLeft int)
}

// DefaultHooks logs errors and dropped/undeliverable datagrams.
var DefaultHooks = &Hooks{
	Error: func(err error) {
		log.Printf("snmp-transport error: %v\n", err)
	},
	ReadComplete: func(addr net.Addr, input []byte, err error) {
		if err != nil {
			log.Printf("snmp-transport ReadComplete source:%s err:%v\n", addr, err)
		}
	},
	WriteComplete: func(addr net.Addr, output []byte, err error) {
		if err != nil {
			log.Printf("snmp-transport WriteComplete target:%s err:%v\n", addr, err)
		}
	},
}

// DiagnosticHooks logs every read/write, including the datagram payload.
var DiagnosticHooks = &Hooks{
	Error: DefaultHooks.Error,
	ReadComplete: func(addr net.Addr, input []byte, err error) {
		log.Printf("snmp-transport ReadComplete source:%s err:%v data:%s\n", addr, err, hex.EncodeToString(input))
	},
	WriteComplete: func(addr net.Addr, output []byte, err error) {
		log.Printf("snmp-transport WriteComplete target:%s err:%v data:%s\n", addr, err, hex.EncodeToString(output))
	},
	RetryScheduled: func(addr net.Addr, requestID int32, nextTimeoutMs int64, retriesLeft int) {
		log.Printf("snmp-transport retry target:%s request-id:%d next-timeout:%dms retries-left:%d\n",
			addr, requestID, nextTimeoutMs, retriesLeft)
	},
}

// NoOpHooks does nothing for every event.
var NoOpHooks = &Hooks{
	WriteComplete:  func(addr net.Addr, output []byte, err error) {},
	ReadComplete:   func(addr net.Addr, input []byte, err error) {},
	Error:          func(err error) {},
	RetryScheduled: func(addr net.Addr, requestID int32, nextTimeoutMs int64, retriesLeft int) {},
}

func resolveHooks(h *Hooks) *Hooks {
	_ = mergo.Merge(h, NoOpHooks) // nolint: errcheck
	return h
}
