// Package walker drives a multi-root table walk against a
// manager.Proxy: GETBULK striped in lockstep across every root under
// v2c, or plain GETNEXT one root-set at a time under v1, continuing
// until every root is exhausted.
//
// Grounded on original_source/tableretriever.py's TableRetriever
// almost directly (getTable/areWeDone/integrateNewRecord/
// tableTimeout): the round-striping, per-root pruning, and
// prefix-filtered first-write-wins recording are the same algorithm,
// restructured to read its own round boundaries from the response
// (the position where a root's EndOfMibView appears) rather than
// from a precomputed M = len(newOIDs)/R, which the original's own
// comment flags as unsound once roots stop advancing at different
// rates within a single bulk response.
package walker

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/netwatch/snmpcore/manager"
	"github.com/netwatch/snmpcore/oid"
	"github.com/netwatch/snmpcore/snmptype"
	"github.com/netwatch/snmpcore/wire"
)

// DefaultMaxRepetitions is the GETBULK maxRepetitions used per round
// trip, matching original_source/agentproxy.py's
// DEFAULT_BULK_REPETITION_SIZE.
const DefaultMaxRepetitions = 128

// RecordFunc is invoked once for every (root, oid, value) discovered,
// the first time that oid is seen under that root.
type RecordFunc func(root oid.OID, leaf oid.OID, value snmptype.Value)

// Config holds TableWalker construction options.
type Config struct {
	maxRepetitions int
	includeStart   bool
	hooks          *Hooks
}

var defaultConfig = Config{
	maxRepetitions: DefaultMaxRepetitions,
	includeStart:   false,
	hooks:          DefaultHooks,
}

// Option configures a TableWalker at construction time.
type Option func(*Config)

// MaxRepetitions sets the GETBULK maxRepetitions used under v2c.
// Ignored under v1, which has no bulk primitive. Default 128.
func MaxRepetitions(n int) Option { return func(c *Config) { c.maxRepetitions = n } }

// IncludeStart makes the walk's first iteration fetch each root OID's
// own value (via GET) before continuing with GETNEXT. Honoured only
// under v1: GETBULK's response shape has no natural "fetch the start
// itself" mode, so under v2c this option is accepted but ignored (and
// reported via the Error hook with a descriptive, non-aborting note
// would be misleading since nothing failed — it is silently a no-op,
// matching the decision recorded in SPEC_FULL.md).
func IncludeStart(b bool) Option { return func(c *Config) { c.includeStart = b } }

// WithHooks installs observability hooks.
func WithHooks(h *Hooks) Option { return func(c *Config) { c.hooks = h } }

// TableWalker drives a walk of one or more root OIDs to completion
// against a single manager.Proxy.
type TableWalker struct {
	proxy   manager.Proxy
	version snmptype.Version
	config  *Config
}

// New constructs a TableWalker. version selects the per-round wire
// protocol (GETBULK for v2c, GETNEXT for v1); it should match the
// version the proxy itself was configured with.
func New(proxy manager.Proxy, version snmptype.Version, opts ...Option) *TableWalker {
	config := defaultConfig
	for _, opt := range opts {
		opt(&config)
	}
	config.hooks = resolveHooks(config.hooks)
	return &TableWalker{proxy: proxy, version: version, config: &config}
}

// rootState tracks one root's progress through the walk: root is its
// fixed identity (used for the descendant/prefix check and never
// reassigned), cursor is the last oid fetched for it (what gets sent
// in the next request), and seen dedupes repeated deliveries of the
// same oid.
type rootState struct {
	root   oid.OID
	cursor oid.OID
	seen   map[string]bool
}

// Walk retrieves every descendant of every root, calling record for
// each newly-discovered (root, oid, value) triple, and returns once
// every root is exhausted or ctx is done. The returned uuid
// correlates this walk's hook invocations.
func (w *TableWalker) Walk(ctx context.Context, roots []string, record RecordFunc) (uuid.UUID, error) {
	walkID := uuid.New()

	active := make([]*rootState, len(roots))
	for i, r := range roots {
		o, err := oid.Parse(r)
		if err != nil {
			return walkID, errors.Wrapf(err, "parse root oid %q", r)
		}
		active[i] = &rootState{root: o, cursor: o, seen: make(map[string]bool)}
	}

	first := true
	for len(active) > 0 {
		select {
		case <-ctx.Done():
			return walkID, ctx.Err()
		default:
		}

		resp, err := w.fetchRound(ctx, active, first)
		first = false
		if err != nil {
			w.config.hooks.Error(walkID, err)
			return walkID, err
		}

		if resp.ErrorStatus != wire.NoError {
			pruned, ok := w.pruneOnPDUError(active, resp)
			if !ok {
				err := errors.Errorf("snmp walk: agent returned %v at varbind %d", resp.ErrorStatus, resp.ErrorIndex)
				w.config.hooks.Error(walkID, err)
				return walkID, err
			}
			active = pruned
			continue
		}

		next, added, err := w.integrate(resp.VarBinds, active, record)
		if err != nil {
			w.config.hooks.Error(walkID, err)
			return walkID, err
		}
		w.config.hooks.RoundComplete(walkID, len(next), added)
		active = next
	}
	return walkID, nil
}

func cursorStrings(active []*rootState) []string {
	out := make([]string, len(active))
	for i, s := range active {
		out[i] = s.cursor.String()
	}
	return out
}

func (w *TableWalker) fetchRound(ctx context.Context, active []*rootState, first bool) (*wire.PDU, error) {
	oids := cursorStrings(active)
	if w.version != snmptype.V1 {
		return w.proxy.GetBulk(ctx, oids, 0, w.config.maxRepetitions)
	}
	if first && w.config.includeStart {
		return w.proxy.GetPDU(ctx, oids)
	}
	return w.proxy.GetNext(ctx, oids)
}

// pruneOnPDUError handles RFC1157's all-or-nothing PDU failure shape:
// a v1 GetNextRequest that exhausts one of several queried roots
// fails the whole PDU (noSuchName at that binding's index) rather
// than reporting a per-varbind exception the way v2c does. Dropping
// just that root and retrying the rest is the correct continuation.
func (w *TableWalker) pruneOnPDUError(active []*rootState, resp *wire.PDU) ([]*rootState, bool) {
	if w.version != snmptype.V1 || resp.ErrorStatus != wire.NoSuchName {
		return nil, false
	}
	if resp.ErrorIndex < 0 || resp.ErrorIndex >= len(active) {
		return nil, false
	}
	next := make([]*rootState, 0, len(active)-1)
	next = append(next, active[:resp.ErrorIndex]...)
	next = append(next, active[resp.ErrorIndex+1:]...)
	return next, true
}

// integrate walks the flat varbind list emitted by one round trip,
// re-deriving its internal round boundaries from the active root
// count at each step (rather than assuming a fixed stripe width),
// since a root can be dropped mid-response (see agent.Engine's
// GETBULK round/carry loop, which this mirrors from the client side).
//
// A response shorter than the active root count (fewer bindings than
// expected for a full round) is not a protocol error: it is treated
// as M=0 for the missing slots, evaluating whatever prefix did come
// back and leaving the roots past the end of the response untouched
// so they are retried, unchanged, on the next round trip.
func (w *TableWalker) integrate(vbs []wire.VarBind, active []*rootState, record RecordFunc) ([]*rootState, int, error) {
	idx := 0
	cur := active
	added := 0

	for len(cur) > 0 {
		if idx >= len(vbs) {
			break
		}
		n := len(cur)
		if avail := len(vbs) - idx; avail < n {
			n = avail
		}
		round := vbs[idx : idx+n]
		idx += n

		next := make([]*rootState, 0, len(cur))
		for i, vb := range round {
			state := cur[i]
			if vb.Value.IsException() || !state.root.IsPrefixOf(vb.OID) {
				continue
			}
			key := vb.OID.String()
			if !state.seen[key] {
				state.seen[key] = true
				record(state.root, vb.OID, vb.Value)
				added++
			}
			state.cursor = vb.OID
			next = append(next, state)
		}
		next = append(next, cur[n:]...)
		cur = next
	}
	return cur, added, nil
}
