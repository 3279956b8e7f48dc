package agent_test

import (
	"net"
	"testing"

	assert "github.com/stretchr/testify/require"

	"github.com/netwatch/snmpcore/agent"
	"github.com/netwatch/snmpcore/oid"
	"github.com/netwatch/snmpcore/snmptype"
	"github.com/netwatch/snmpcore/store"
	"github.com/netwatch/snmpcore/wire"
)

var testPeer net.Addr = &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 12345}

func seededStore(t *testing.T) *store.Sorted {
	t.Helper()
	s := store.NewSorted()
	s.Update([]store.Entry{
		{OID: oid.MustParse(".1.3.6.1.2.1.1.1.0"), Value: snmptype.OctetStringVal([]byte("sysDescr"), snmptype.V2c)},
		{OID: oid.MustParse(".1.3.6.1.2.1.1.5.0"), Value: snmptype.OctetStringVal([]byte("router1"), snmptype.V2c)},
		{OID: oid.MustParse(".1.3.6.1.2.2.1.3.0"), Value: snmptype.Int(1, snmptype.V2c)},
		{OID: oid.MustParse(".1.3.6.1.2.12.1.2.0"), Value: snmptype.Int(2, snmptype.V2c)},
	})
	return s
}

func getRequest(ver snmptype.Version, oids ...string) *wire.PDU {
	vbs := make([]wire.VarBind, len(oids))
	for i, o := range oids {
		vbs[i] = wire.VarBind{OID: oid.MustParse(o), Value: snmptype.NullVal(ver)}
	}
	return &wire.PDU{
		Version:    ver,
		Community:  "public",
		Kind:       wire.GetRequest,
		RequestID:  1,
		ErrorIndex: wire.NoIndex,
		VarBinds:   vbs,
	}
}

func TestHandleGetFound(t *testing.T) {
	e := agent.New(seededStore(t))
	req := getRequest(snmptype.V2c, ".1.3.6.1.2.1.1.1.0")

	resp := e.HandleRequest(req, testPeer)
	assert.Equal(t, wire.NoError, resp.ErrorStatus)
	assert.Len(t, resp.VarBinds, 1)
	assert.Equal(t, "sysDescr", resp.VarBinds[0].Value.String())
}

func TestHandleGetMissingV1ReturnsNoSuchName(t *testing.T) {
	e := agent.New(seededStore(t))
	req := getRequest(snmptype.V1, ".1.3.6.1.2.1.1.1.0", ".1.3.6.1.9.9.9.0")

	resp := e.HandleRequest(req, testPeer)
	assert.Equal(t, wire.NoSuchName, resp.ErrorStatus)
	assert.Equal(t, 1, resp.ErrorIndex)
	assert.Equal(t, req.VarBinds, resp.VarBinds, "failed GET echoes original request varbinds")
}

func TestHandleGetMissingV2cReturnsNoSuchName(t *testing.T) {
	e := agent.New(seededStore(t))
	req := getRequest(snmptype.V2c, ".1.3.6.1.2.1.1.1.0", ".1.3.6.1.9.9.9.0")

	resp := e.HandleRequest(req, testPeer)
	assert.Equal(t, wire.NoSuchName, resp.ErrorStatus)
	assert.Equal(t, 1, resp.ErrorIndex)
	assert.Equal(t, req.VarBinds, resp.VarBinds, "failed GET echoes original request varbinds regardless of version")
}

func TestHandleGetNextNumericOrdering(t *testing.T) {
	e := agent.New(seededStore(t))
	req := &wire.PDU{
		Version: snmptype.V2c, Community: "public", Kind: wire.GetNextRequest,
		RequestID: 2, ErrorIndex: wire.NoIndex,
		VarBinds: []wire.VarBind{{OID: oid.MustParse(".1.3.6.1.2.2.1.3.0"), Value: snmptype.NullVal(snmptype.V2c)}},
	}

	resp := e.HandleRequest(req, testPeer)
	assert.Equal(t, wire.NoError, resp.ErrorStatus)
	assert.Equal(t, ".1.3.6.1.2.12.1.2.0", resp.VarBinds[0].OID.String())
}

func TestHandleGetNextEndOfMibViewV2c(t *testing.T) {
	e := agent.New(seededStore(t))
	req := &wire.PDU{
		Version: snmptype.V2c, Community: "public", Kind: wire.GetNextRequest,
		RequestID: 3, ErrorIndex: wire.NoIndex,
		VarBinds: []wire.VarBind{{OID: oid.MustParse(".1.3.6.1.2.12.1.2.0"), Value: snmptype.NullVal(snmptype.V2c)}},
	}

	resp := e.HandleRequest(req, testPeer)
	assert.Equal(t, wire.NoError, resp.ErrorStatus)
	assert.Equal(t, snmptype.EndOfMibView, resp.VarBinds[0].Value.Kind)
}

func TestHandleGetNextEndOfMibViewV1IsNoSuchName(t *testing.T) {
	e := agent.New(seededStore(t))
	req := &wire.PDU{
		Version: snmptype.V1, Community: "public", Kind: wire.GetNextRequest,
		RequestID: 4, ErrorIndex: wire.NoIndex,
		VarBinds: []wire.VarBind{{OID: oid.MustParse(".1.3.6.1.2.12.1.2.0"), Value: snmptype.NullVal(snmptype.V1)}},
	}

	resp := e.HandleRequest(req, testPeer)
	assert.Equal(t, wire.NoSuchName, resp.ErrorStatus)
	assert.Equal(t, 0, resp.ErrorIndex)
}

func TestHandleGetBulkStripesMultipleRootsAndDropsExhausted(t *testing.T) {
	s := store.NewSorted()
	s.Update([]store.Entry{
		{OID: oid.MustParse(".1.1.1"), Value: snmptype.Int(1, snmptype.V2c)},
		{OID: oid.MustParse(".1.1.2"), Value: snmptype.Int(2, snmptype.V2c)},
		{OID: oid.MustParse(".1.2.1"), Value: snmptype.Int(10, snmptype.V2c)},
	})
	e := agent.New(s)

	req := &wire.PDU{
		Version: snmptype.V2c, Community: "public", Kind: wire.GetBulkRequest,
		RequestID: 5, NonRepeaters: 0, MaxRepetitions: 3,
		VarBinds: []wire.VarBind{
			{OID: oid.MustParse(".1.1"), Value: snmptype.NullVal(snmptype.V2c)},
			{OID: oid.MustParse(".1.2"), Value: snmptype.NullVal(snmptype.V2c)},
		},
	}

	resp := e.HandleRequest(req, testPeer)
	assert.Equal(t, wire.NoError, resp.ErrorStatus)

	var gotOIDs []string
	for _, vb := range resp.VarBinds {
		gotOIDs = append(gotOIDs, vb.OID.String())
	}
	// Round 0: .1.1 -> .1.1.1, .1.2 -> .1.2.1
	// Round 1: .1.1.1 -> .1.1.2, .1.2.1 exhausted -> endOfMibView (root dropped thereafter)
	// Round 2: .1.1.2 -> .1.2.1 (GETBULK follows lexicographic order past the end of the .1.1 subtree)
	assert.Equal(t, []string{".1.1.1", ".1.2.1", ".1.1.2", ".1.2.1", ".1.2.1"}, gotOIDs)
	assert.Equal(t, snmptype.EndOfMibView, resp.VarBinds[3].Value.Kind)
	assert.Equal(t, snmptype.Integer, resp.VarBinds[4].Value.Kind)
	assert.Len(t, resp.VarBinds, 5, "each exhausted root reports endOfMibView exactly once, at the round it was exhausted")
}

func TestHandleGetBulkDefaultsMaxRepetitions(t *testing.T) {
	s := store.NewSorted()
	s.Update([]store.Entry{{OID: oid.MustParse(".1.1"), Value: snmptype.Int(1, snmptype.V2c)}})
	e := agent.New(s)
	req := &wire.PDU{
		Version: snmptype.V2c, Community: "public", Kind: wire.GetBulkRequest,
		RequestID: 6, NonRepeaters: 0, MaxRepetitions: 0,
		VarBinds: []wire.VarBind{{OID: oid.MustParse(".1"), Value: snmptype.NullVal(snmptype.V2c)}},
	}
	resp := e.HandleRequest(req, testPeer)
	assert.Equal(t, ".1.1", resp.VarBinds[0].OID.String())
}

func TestHandleSetCommitsAllOnSuccess(t *testing.T) {
	s := seededStore(t)
	e := agent.New(s)

	req := &wire.PDU{
		Version: snmptype.V2c, Community: "public", Kind: wire.SetRequest,
		RequestID: 7, ErrorIndex: wire.NoIndex,
		VarBinds: []wire.VarBind{
			{OID: oid.MustParse(".1.3.6.1.2.1.1.5.0"), Value: snmptype.OctetStringVal([]byte("router2"), snmptype.V2c)},
		},
	}
	resp := e.HandleRequest(req, testPeer)
	assert.Equal(t, wire.NoError, resp.ErrorStatus)

	entry, err := s.GetExact(oid.MustParse(".1.3.6.1.2.1.1.5.0"))
	assert.NoError(t, err)
	assert.Equal(t, "router2", entry.Value.String())
}

func TestHandleSetRejectsUnknownOIDAndAppliesNothing(t *testing.T) {
	s := store.NewSorted(store.RejectUnknownOIDs(true))
	s.Update([]store.Entry{{OID: oid.MustParse(".1.1"), Value: snmptype.Int(1, snmptype.V2c)}})
	e := agent.New(s)

	req := &wire.PDU{
		Version: snmptype.V2c, Community: "public", Kind: wire.SetRequest,
		RequestID: 8, ErrorIndex: wire.NoIndex,
		VarBinds: []wire.VarBind{
			{OID: oid.MustParse(".1.1"), Value: snmptype.Int(99, snmptype.V2c)},
			{OID: oid.MustParse(".1.2"), Value: snmptype.Int(2, snmptype.V2c)},
		},
	}
	resp := e.HandleRequest(req, testPeer)
	assert.Equal(t, wire.NoSuchName, resp.ErrorStatus)
	assert.Equal(t, 1, resp.ErrorIndex)

	entry, err := s.GetExact(oid.MustParse(".1.1"))
	assert.NoError(t, err)
	assert.Equal(t, int64(1), entry.Value.Int64(), "first binding must not be committed when a later one fails validation")
}

func TestMaxResponseBytesTriggersTooBig(t *testing.T) {
	e := agent.New(seededStore(t), agent.WithMaxResponseBytes(1))
	req := getRequest(snmptype.V2c, ".1.3.6.1.2.1.1.1.0")

	resp := e.HandleRequest(req, testPeer)
	assert.Equal(t, wire.TooBig, resp.ErrorStatus)
	assert.Equal(t, wire.NoIndex, resp.ErrorIndex)
}

func TestUnsupportedKindReturnsNilResponse(t *testing.T) {
	e := agent.New(seededStore(t))
	req := &wire.PDU{Version: snmptype.V2c, Community: "public", Kind: wire.GetResponse, RequestID: 9}
	resp := e.HandleRequest(req, testPeer)
	assert.Nil(t, resp)
}
