package agent

import (
	"log"
	"net"

	"github.com/imdario/mergo"

	"github.com/netwatch/snmpcore/wire"
)

// Hooks defines observability callbacks for an Engine, in the same
// mergo-defaulted shape as transport.Hooks.
type Hooks struct {
	// RequestHandled is called after a request has been fully
	// processed. It is not called for an unsupported request kind,
	// for which HandleRequest returns nil.
	RequestHandled func(req *wire.PDU, resp *wire.PDU, addr net.Addr)

	// Error is called for conditions worth logging that do not, by
	// themselves, fail the request (e.g. an unexpected store error
	// that GetExact/Next already degraded to a wire-level exception
	// value).
	Error func(err error)
}

// DefaultHooks logs unexpected errors only.
var DefaultHooks = &Hooks{
	Error: func(err error) {
		log.Printf("snmp-agent error: %v\n", err)
	},
}

// DiagnosticHooks logs every handled request in addition to errors.
var DiagnosticHooks = &Hooks{
	Error: DefaultHooks.Error,
	RequestHandled: func(req *wire.PDU, resp *wire.PDU, addr net.Addr) {
		log.Printf("snmp-agent request kind:%v id:%d peer:%s error-status:%v\n",
			req.Kind, req.RequestID, addr, resp.ErrorStatus)
	},
}

// NoOpHooks does nothing for every event.
var NoOpHooks = &Hooks{
	RequestHandled: func(req *wire.PDU, resp *wire.PDU, addr net.Addr) {},
	Error:          func(err error) {},
}

func resolveHooks(h *Hooks) *Hooks {
	_ = mergo.Merge(h, NoOpHooks) // nolint: errcheck
	return h
}
