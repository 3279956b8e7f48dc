package walker

import (
	"log"

	"github.com/google/uuid"
	"github.com/imdario/mergo"
)

// Hooks defines observability callbacks for a TableWalker, in the same
// mergo-defaulted shape as transport.Hooks / agent.Hooks / manager.Hooks.
type Hooks struct {
	// RoundComplete fires after every request/response round trip,
	// reporting how many roots are still active and how many new
	// records this round contributed.
	RoundComplete func(walkID uuid.UUID, activeRoots int, recordsAdded int)

	// Error fires for conditions that abort the walk.
	Error func(walkID uuid.UUID, err error)
}

// DefaultHooks logs only aborting errors.
var DefaultHooks = &Hooks{
	Error: func(walkID uuid.UUID, err error) {
		log.Printf("snmp-walker %s error: %v\n", walkID, err)
	},
}

// DiagnosticHooks additionally logs every round.
var DiagnosticHooks = &Hooks{
	Error: DefaultHooks.Error,
	RoundComplete: func(walkID uuid.UUID, activeRoots int, recordsAdded int) {
		log.Printf("snmp-walker %s round: active-roots:%d records-added:%d\n", walkID, activeRoots, recordsAdded)
	},
}

// NoOpHooks does nothing for every event.
var NoOpHooks = &Hooks{
	RoundComplete: func(walkID uuid.UUID, activeRoots int, recordsAdded int) {},
	Error:         func(walkID uuid.UUID, err error) {},
}

func resolveHooks(h *Hooks) *Hooks {
	_ = mergo.Merge(h, NoOpHooks) // nolint: errcheck
	return h
}
