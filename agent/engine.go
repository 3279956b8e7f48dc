// Package agent implements the agent-side SNMP request handler: GET,
// GETNEXT, GETBULK, and SET against a store.OIDStore, with the exact
// RFC1157/RFC1905 error-status and error-index semantics and the
// version-sensitive exception-value materialization RFC1905
// introduced for v2c.
//
// Grounded almost directly on original_source/agent.py's Agent class
// (get/getOIDs, getNext/getNextOIDs, getTable/getTableOIDs, set), with
// the GETBULK non-repeater/repeater round-and-carry loop in
// getTableOIDs ported line for line.
package agent

import (
	"net"

	"github.com/pkg/errors"

	"github.com/netwatch/snmpcore/oid"
	"github.com/netwatch/snmpcore/snmptype"
	"github.com/netwatch/snmpcore/store"
	"github.com/netwatch/snmpcore/wire"
)

// DefaultMaxRepetitions is used when a GETBULK request specifies
// maxRepetitions <= 0, matching original_source/agent.py's
// "maxRepetitions or 255" fallback.
const DefaultMaxRepetitions = 255

// Engine answers GET/GETNEXT/GETBULK/SET requests against a
// store.OIDStore. It implements transport.Handler, so a Listener can
// serve requests directly against an Engine.
type Engine struct {
	Store store.OIDStore

	// MaxResponseBytes, if non-zero, makes the engine refuse to encode
	// a response larger than this many bytes, instead replying with
	// tooBig/errorIndex=0 per RFC1157 §4.1.3 rule (2). Zero (the
	// default) never enforces a size limit, since the BER codec itself
	// has no architectural message-size ceiling to honor.
	MaxResponseBytes int

	hooks *Hooks
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithHooks installs observability hooks.
func WithHooks(h *Hooks) Option { return func(e *Engine) { e.hooks = h } }

// WithMaxResponseBytes sets Engine.MaxResponseBytes.
func WithMaxResponseBytes(n int) Option { return func(e *Engine) { e.MaxResponseBytes = n } }

// New constructs an Engine serving s.
func New(s store.OIDStore, opts ...Option) *Engine {
	e := &Engine{Store: s, hooks: DefaultHooks}
	for _, opt := range opts {
		opt(e)
	}
	e.hooks = resolveHooks(e.hooks)
	return e
}

// HandleRequest implements transport.Handler.
func (e *Engine) HandleRequest(req *wire.PDU, addr net.Addr) *wire.PDU {
	var resp *wire.PDU
	switch req.Kind {
	case wire.GetRequest:
		resp = e.handleGet(req)
	case wire.GetNextRequest:
		resp = e.handleGetNext(req)
	case wire.GetBulkRequest:
		resp = e.handleGetBulk(req)
	case wire.SetRequest:
		resp = e.handleSet(req, addr)
	default:
		e.hooks.Error(errors.Errorf("snmp agent: unsupported pdu kind %#x", byte(req.Kind)))
		return nil
	}
	resp = e.enforceSizeLimit(req, resp)
	e.hooks.RequestHandled(req, resp, addr)
	return resp
}

func (e *Engine) baseResponse(req *wire.PDU) *wire.PDU {
	return &wire.PDU{
		Version:     req.Version,
		Community:   req.Community,
		Kind:        wire.GetResponse,
		RequestID:   req.RequestID,
		ErrorStatus: wire.NoError,
		ErrorIndex:  wire.NoIndex,
	}
}

func cloneVarBinds(vbs []wire.VarBind) []wire.VarBind {
	out := make([]wire.VarBind, len(vbs))
	copy(out, vbs)
	return out
}

// failAt turns resp into the RFC1157 §4.1.3 rule-1/rule-3 failure
// shape: errorStatus/errorIndex set, variable bindings echoed back
// unchanged.
func failAt(resp *wire.PDU, req *wire.PDU, status wire.ErrorStatus, index int) *wire.PDU {
	resp.ErrorStatus = status
	resp.ErrorIndex = index
	resp.VarBinds = cloneVarBinds(req.VarBinds)
	return resp
}

// handleGet implements RFC1157 §4.1.2 GetRequest-PDU processing.
// Unlike GetNextRequest, GetRequest has no per-version split: a miss
// on any requested oid fails the whole PDU with noSuchName, echoing
// every original binding unchanged, regardless of version.
func (e *Engine) handleGet(req *wire.PDU) *wire.PDU {
	resp := e.baseResponse(req)
	out := make([]wire.VarBind, len(req.VarBinds))

	for i, vb := range req.VarBinds {
		entry, err := e.Store.GetExact(vb.OID)
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				e.hooks.Error(err)
			}
			return failAt(resp, req, wire.NoSuchName, i)
		}
		out[i] = wire.VarBind{OID: entry.OID, Value: snmptype.TypeCoerce(entry.Value, req.Version)}
	}

	resp.VarBinds = out
	return resp
}

// handleGetNext implements RFC1157 §4.1.3 GetNextRequest-PDU
// processing.
func (e *Engine) handleGetNext(req *wire.PDU) *wire.PDU {
	resp := e.baseResponse(req)
	out := make([]wire.VarBind, len(req.VarBinds))

	for i, vb := range req.VarBinds {
		entry, err := e.Store.Next(vb.OID)
		if err != nil {
			if !errors.Is(err, store.ErrEndOfMibView) {
				e.hooks.Error(err)
			}
			// v1 has no endOfMibView exception value (RFC1157
			// predates it): exhaustion is reported as noSuchName.
			if req.Version == snmptype.V1 {
				return failAt(resp, req, wire.NoSuchName, i)
			}
			out[i] = wire.VarBind{OID: vb.OID, Value: snmptype.EndOfMibViewVal(req.Version)}
			continue
		}
		out[i] = wire.VarBind{OID: entry.OID, Value: snmptype.TypeCoerce(entry.Value, req.Version)}
	}

	resp.VarBinds = out
	return resp
}

// handleGetBulk implements RFC1905 §4.2.3 GetBulkRequest-PDU
// processing: the first NonRepeaters variable bindings are resolved
// as plain GETNEXT, and the remainder are walked in lockstep for up
// to MaxRepetitions rounds, dropping a root from subsequent rounds
// once it is exhausted. Ported from
// original_source/agent.py's getTableOIDs.
func (e *Engine) handleGetBulk(req *wire.PDU) *wire.PDU {
	resp := e.baseResponse(req)

	nonRepeaters := req.NonRepeaters
	if nonRepeaters < 0 {
		nonRepeaters = 0
	}
	if nonRepeaters > len(req.VarBinds) {
		nonRepeaters = len(req.VarBinds)
	}
	maxRepetitions := req.MaxRepetitions
	if maxRepetitions <= 0 {
		maxRepetitions = DefaultMaxRepetitions
	}

	var out []wire.VarBind

	for _, vb := range req.VarBinds[:nonRepeaters] {
		out = append(out, e.nextOrEndOfMibView(vb.OID, req.Version))
	}

	active := make([]oid.OID, len(req.VarBinds)-nonRepeaters)
	for i, vb := range req.VarBinds[nonRepeaters:] {
		active[i] = vb.OID
	}

	for round := 0; round < maxRepetitions && len(active) > 0; round++ {
		next := make([]oid.OID, 0, len(active))
		foundGood := false
		for _, base := range active {
			entry, err := e.Store.Next(base)
			if err != nil {
				out = append(out, wire.VarBind{OID: base, Value: snmptype.EndOfMibViewVal(req.Version)})
				continue
			}
			out = append(out, wire.VarBind{OID: entry.OID, Value: snmptype.TypeCoerce(entry.Value, req.Version)})
			next = append(next, entry.OID)
			foundGood = true
		}
		active = next
		if !foundGood {
			break
		}
	}

	resp.VarBinds = out
	return resp
}

func (e *Engine) nextOrEndOfMibView(base oid.OID, ver snmptype.Version) wire.VarBind {
	entry, err := e.Store.Next(base)
	if err != nil {
		if !errors.Is(err, store.ErrEndOfMibView) {
			e.hooks.Error(err)
		}
		return wire.VarBind{OID: base, Value: snmptype.EndOfMibViewVal(ver)}
	}
	return wire.VarBind{OID: entry.OID, Value: snmptype.TypeCoerce(entry.Value, ver)}
}

// handleSet implements a two-pass validate-then-commit SET: every
// binding must pass store.ValidateSet before any binding is written,
// so a binding that fails validation leaves the store untouched. A
// store error during the commit pass is reported as genErr at that
// binding; bindings committed before it stay written. Grounded on
// original_source/agent.py's set, whose own docstring calls out that
// a genuine multi-binding commit/undo sequence was never implemented
// there either -- the two-pass validate/apply split here is this
// repo's resolution of that gap, not a carry-over bug.
func (e *Engine) handleSet(req *wire.PDU, addr net.Addr) *wire.PDU {
	resp := e.baseResponse(req)

	ctx := store.SetContext{Version: req.Version, Community: req.Community, PeerAddr: addr.String()}
	for i, vb := range req.VarBinds {
		if status := e.Store.ValidateSet(vb.OID, vb.Value, ctx); status != wire.NoError {
			return failAt(resp, req, status, i)
		}
	}

	for i, vb := range req.VarBinds {
		if _, err := e.Store.Set(vb.OID, vb.Value); err != nil {
			e.hooks.Error(err)
			return failAt(resp, req, wire.GenErr, i)
		}
	}

	resp.VarBinds = cloneVarBinds(req.VarBinds)
	return resp
}

// enforceSizeLimit applies the MaxResponseBytes knob (spec's open
// question on the tooBig error: rather than modelling a fixed
// historical datagram ceiling, the limit is an opt-in tunable that
// defaults to off).
func (e *Engine) enforceSizeLimit(req, resp *wire.PDU) *wire.PDU {
	if e.MaxResponseBytes <= 0 || resp == nil {
		return resp
	}
	encoded, err := wire.Encode(resp)
	if err == nil && len(encoded) <= e.MaxResponseBytes {
		return resp
	}
	if err != nil {
		e.hooks.Error(err)
	}
	tooBig := e.baseResponse(req)
	return failAt(tooBig, req, wire.TooBig, wire.NoIndex)
}
