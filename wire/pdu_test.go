package wire_test

import (
	"testing"

	"github.com/netwatch/snmpcore/oid"
	"github.com/netwatch/snmpcore/snmptype"
	"github.com/netwatch/snmpcore/wire"
	assert "github.com/stretchr/testify/require"
)

func TestPDUValuesDropsEndOfMibView(t *testing.T) {
	resp := &wire.PDU{
		ErrorStatus: wire.NoError,
		VarBinds: []wire.VarBind{
			{OID: oid.MustParse(".1.3.6.1.2.1.1.1.0"), Value: snmptype.OctetStringVal([]byte("Hello world!"), snmptype.V2c)},
			{OID: oid.MustParse(".1.3.6.1.2.1.1.9.0"), Value: snmptype.EndOfMibViewVal(snmptype.V2c)},
		},
	}

	values := resp.Values()
	assert.Len(t, values, 1)
	assert.Equal(t, "Hello world!", values[".1.3.6.1.2.1.1.1.0"].String())
	assert.NotContains(t, values, ".1.3.6.1.2.1.1.9.0")
}

func TestPDUValuesKeepsNoSuchObjectAndNoSuchInstance(t *testing.T) {
	resp := &wire.PDU{
		ErrorStatus: wire.NoError,
		VarBinds: []wire.VarBind{
			{OID: oid.MustParse(".1.1"), Value: snmptype.NoSuchObjectVal(snmptype.V2c)},
			{OID: oid.MustParse(".1.2"), Value: snmptype.NoSuchInstanceVal(snmptype.V2c)},
		},
	}

	values := resp.Values()
	assert.Len(t, values, 2, "only endOfMibView is filtered, matching agentproxy.py's getResponseResults")
	assert.True(t, values[".1.1"].IsException())
	assert.True(t, values[".1.2"].IsException())
}

func TestPDUValuesEmptyOnErrorStatus(t *testing.T) {
	resp := &wire.PDU{
		ErrorStatus: wire.NoSuchName,
		ErrorIndex:  0,
		VarBinds: []wire.VarBind{
			{OID: oid.MustParse(".1.1"), Value: snmptype.NullVal(snmptype.V2c)},
		},
	}

	values := resp.Values()
	assert.Empty(t, values, "a failed response yields no values, matching getResponseResults' early return")
}
