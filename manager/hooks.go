package manager

import (
	"log"
	"net"
	"time"

	"github.com/imdario/mergo"
)

// Hooks defines observability callbacks for a Proxy, in the same
// mergo-defaulted shape as transport.Hooks / agent.Hooks.
type Hooks struct {
	RequestStart    func(target net.Addr, requestID int32)
	RequestComplete func(target net.Addr, requestID int32, err error, elapsed time.Duration)
	RetryScheduled  func(target net.Addr, requestID int32, nextTimeout time.Duration, retriesLeft int)
	Error           func(err error)
}

// DefaultHooks logs unexpected errors only.
var DefaultHooks = &Hooks{
	Error: func(err error) {
		log.Printf("snmp-manager error: %v\n", err)
	},
}

// DiagnosticHooks logs every request lifecycle event in addition to
// errors.
var DiagnosticHooks = &Hooks{
	Error: DefaultHooks.Error,
	RequestStart: func(target net.Addr, requestID int32) {
		log.Printf("snmp-manager request start target:%s id:%d\n", target, requestID)
	},
	RequestComplete: func(target net.Addr, requestID int32, err error, elapsed time.Duration) {
		log.Printf("snmp-manager request done target:%s id:%d err:%v elapsed:%s\n", target, requestID, err, elapsed)
	},
	RetryScheduled: func(target net.Addr, requestID int32, nextTimeout time.Duration, retriesLeft int) {
		log.Printf("snmp-manager retry target:%s id:%d next-timeout:%s retries-left:%d\n",
			target, requestID, nextTimeout, retriesLeft)
	},
}

// NoOpHooks does nothing for every event.
var NoOpHooks = &Hooks{
	RequestStart:    func(target net.Addr, requestID int32) {},
	RequestComplete: func(target net.Addr, requestID int32, err error, elapsed time.Duration) {},
	RetryScheduled:  func(target net.Addr, requestID int32, nextTimeout time.Duration, retriesLeft int) {},
	Error:           func(err error) {},
}

func resolveHooks(h *Hooks) *Hooks {
	_ = mergo.Merge(h, NoOpHooks) // nolint: errcheck
	return h
}
