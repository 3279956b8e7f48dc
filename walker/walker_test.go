package walker_test

import (
	"context"
	"testing"

	assert "github.com/stretchr/testify/require"

	"github.com/netwatch/snmpcore/manager"
	"github.com/netwatch/snmpcore/oid"
	"github.com/netwatch/snmpcore/snmptype"
	"github.com/netwatch/snmpcore/walker"
	"github.com/netwatch/snmpcore/wire"
)

// fakeProxy is a hand-rolled manager.Proxy double: the walker only
// needs to drive Get/GetNext/GetBulk through a manager.Proxy, so a
// scripted stub is simpler and clearer here than gomock.
type fakeProxy struct {
	getCalls     [][]string
	getNextCalls [][]string
	getBulkCalls [][]string

	getResponses     []*wire.PDU
	getNextResponses []*wire.PDU
	getBulkResponses []*wire.PDU
}

func (f *fakeProxy) Get(_ context.Context, _ []string) (map[string]snmptype.Value, error) {
	panic("not used by walker")
}

func (f *fakeProxy) GetPDU(_ context.Context, oids []string) (*wire.PDU, error) {
	f.getCalls = append(f.getCalls, oids)
	resp := f.getResponses[len(f.getCalls)-1]
	return resp, nil
}

func (f *fakeProxy) GetNext(_ context.Context, oids []string) (*wire.PDU, error) {
	f.getNextCalls = append(f.getNextCalls, oids)
	resp := f.getNextResponses[len(f.getNextCalls)-1]
	return resp, nil
}

func (f *fakeProxy) GetBulk(_ context.Context, oids []string, nonRepeaters, maxRepetitions int) (*wire.PDU, error) {
	f.getBulkCalls = append(f.getBulkCalls, oids)
	resp := f.getBulkResponses[len(f.getBulkCalls)-1]
	return resp, nil
}

func (f *fakeProxy) Set(_ context.Context, bindings []wire.VarBind) (*wire.PDU, error) {
	panic("not used by walker")
}

func (f *fakeProxy) Close() error { return nil }

var _ manager.Proxy = (*fakeProxy)(nil)

func vb(o string, v snmptype.Value) wire.VarBind {
	return wire.VarBind{OID: oid.MustParse(o), Value: v}
}

func TestWalkV2cMultiRootWithMidRoundPruning(t *testing.T) {
	// Same 3-entry, 2-root layout as agent's GETBULK round/carry test:
	// round 0 both roots advance, round 1 root .1.2 exhausts, round 2
	// root .1.1 steps past its subtree onto .1.2.1. The whole thing arrives in one GETBULK
	// response, exactly as agent.Engine.handleGetBulk would emit it.
	resp := &wire.PDU{
		ErrorStatus: wire.NoError,
		VarBinds: []wire.VarBind{
			vb(".1.1.1", snmptype.Int(1, snmptype.V2c)),
			vb(".1.2.1", snmptype.Int(10, snmptype.V2c)),
			vb(".1.1.2", snmptype.Int(2, snmptype.V2c)),
			vb(".1.2.1", snmptype.EndOfMibViewVal(snmptype.V2c)),
			vb(".1.2.1", snmptype.Int(10, snmptype.V2c)),
		},
	}
	fp := &fakeProxy{getBulkResponses: []*wire.PDU{resp}}
	w := walker.New(fp, snmptype.V2c)

	type rec struct {
		root, leaf string
		value      int64
	}
	var got []rec
	_, err := w.Walk(context.Background(), []string{".1.1", ".1.2"}, func(root, leaf oid.OID, value snmptype.Value) {
		got = append(got, rec{root.String(), leaf.String(), value.Int64()})
	})

	assert.NoError(t, err)
	assert.Len(t, fp.getBulkCalls, 1, "the whole walk completes in a single round trip")
	assert.Equal(t, []rec{
		{".1.1", ".1.1.1", 1},
		{".1.2", ".1.2.1", 10},
		{".1.1", ".1.1.2", 2},
	}, got)
}

func TestWalkV1AdvancesCursorRoundByRound(t *testing.T) {
	fp := &fakeProxy{
		getNextResponses: []*wire.PDU{
			{ErrorStatus: wire.NoError, VarBinds: []wire.VarBind{vb(".1.1.1", snmptype.Int(1, snmptype.V1))}},
			{ErrorStatus: wire.NoError, VarBinds: []wire.VarBind{vb(".1.1.2", snmptype.Int(2, snmptype.V1))}},
			// v1 exhaustion: whole PDU fails noSuchName at the one binding, echoing the request.
			{ErrorStatus: wire.NoSuchName, ErrorIndex: 0, VarBinds: []wire.VarBind{vb(".1.1.2", snmptype.NullVal(snmptype.V1))}},
		},
	}
	w := walker.New(fp, snmptype.V1)

	var leaves []string
	_, err := w.Walk(context.Background(), []string{".1.1"}, func(root, leaf oid.OID, value snmptype.Value) {
		leaves = append(leaves, leaf.String())
	})

	assert.NoError(t, err)
	assert.Equal(t, []string{".1.1.1", ".1.1.2"}, leaves)
	assert.Len(t, fp.getNextCalls, 3)
	assert.Equal(t, []string{".1.1"}, fp.getNextCalls[0])
	assert.Equal(t, []string{".1.1.1"}, fp.getNextCalls[1])
	assert.Equal(t, []string{".1.1.2"}, fp.getNextCalls[2])
}

func TestWalkIncludeStartV1FetchesRootFirst(t *testing.T) {
	fp := &fakeProxy{
		getResponses: []*wire.PDU{
			{ErrorStatus: wire.NoError, VarBinds: []wire.VarBind{vb(".1.1", snmptype.Int(0, snmptype.V1))}},
		},
		getNextResponses: []*wire.PDU{
			{ErrorStatus: wire.NoSuchName, ErrorIndex: 0, VarBinds: []wire.VarBind{vb(".1.1", snmptype.NullVal(snmptype.V1))}},
		},
	}
	w := walker.New(fp, snmptype.V1, walker.IncludeStart(true))

	var leaves []string
	_, err := w.Walk(context.Background(), []string{".1.1"}, func(root, leaf oid.OID, value snmptype.Value) {
		leaves = append(leaves, leaf.String())
	})

	assert.NoError(t, err)
	assert.Equal(t, []string{".1.1"}, leaves, "includeStart records the root oid itself")
	assert.Len(t, fp.getCalls, 1)
	assert.Len(t, fp.getNextCalls, 1, "every iteration after the first uses GetNext")
}

func TestWalkV2cIgnoresIncludeStart(t *testing.T) {
	resp := &wire.PDU{
		ErrorStatus: wire.NoError,
		VarBinds:    []wire.VarBind{vb(".1.1.1", snmptype.EndOfMibViewVal(snmptype.V2c))},
	}
	fp := &fakeProxy{getBulkResponses: []*wire.PDU{resp}}
	w := walker.New(fp, snmptype.V2c, walker.IncludeStart(true))

	_, err := w.Walk(context.Background(), []string{".1.1"}, func(oid.OID, oid.OID, snmptype.Value) {})
	assert.NoError(t, err)
	assert.Empty(t, fp.getCalls, "includeStart has no effect under v2c")
	assert.Len(t, fp.getBulkCalls, 1)
}

func TestWalkContextCancelledMakesNoCall(t *testing.T) {
	fp := &fakeProxy{}
	w := walker.New(fp, snmptype.V2c)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := w.Walk(ctx, []string{".1.1"}, func(oid.OID, oid.OID, snmptype.Value) {})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, fp.getBulkCalls)
}

func TestWalkShortBulkResponseLeavesRemainingRootsActive(t *testing.T) {
	// Two active roots but only one varbind returned: root .1.2 gets
	// no binding this round and must be retried untouched, not treated
	// as a protocol error.
	fp := &fakeProxy{
		getBulkResponses: []*wire.PDU{
			{ErrorStatus: wire.NoError, VarBinds: []wire.VarBind{vb(".1.1.1", snmptype.Int(1, snmptype.V2c))}},
			{ErrorStatus: wire.NoError, VarBinds: []wire.VarBind{
				vb(".1.1.2", snmptype.EndOfMibViewVal(snmptype.V2c)),
				vb(".1.2.1", snmptype.Int(10, snmptype.V2c)),
			}},
			{ErrorStatus: wire.NoError, VarBinds: []wire.VarBind{
				vb(".1.2.2", snmptype.EndOfMibViewVal(snmptype.V2c)),
			}},
		},
	}
	w := walker.New(fp, snmptype.V2c)

	type rec struct {
		root, leaf string
	}
	var got []rec
	_, err := w.Walk(context.Background(), []string{".1.1", ".1.2"}, func(root, leaf oid.OID, value snmptype.Value) {
		got = append(got, rec{root.String(), leaf.String()})
	})

	assert.NoError(t, err)
	assert.Len(t, fp.getBulkCalls, 3)
	assert.Equal(t, []string{".1.1.1", ".1.2"}, fp.getBulkCalls[1], "root .1.2 is retried unchanged after the short response")
	assert.Equal(t, []rec{
		{".1.1", ".1.1.1"},
		{".1.2", ".1.2.1"},
	}, got)
}
