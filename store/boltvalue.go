package store

import (
	"encoding/json"

	"github.com/netwatch/snmpcore/oid"
	"github.com/netwatch/snmpcore/snmptype"
)

// persistedValue is the JSON-serializable form of a snmptype.Value
// stored in a bbolt value slot. Mirrors the storage.RunRecord /
// json.Marshal pattern krisarmstrong-niac-go uses for its bbolt
// records.
type persistedValue struct {
	Kind    snmptype.Kind
	Version snmptype.Version
	I       int64  `json:",omitempty"`
	U       uint64 `json:",omitempty"`
	S       []byte `json:",omitempty"`
	OID     string `json:",omitempty"`
}

func encodeValue(v snmptype.Value) ([]byte, error) {
	p := persistedValue{Kind: v.Kind, Version: v.Version}
	switch v.Kind {
	case snmptype.Integer:
		p.I = v.Int64()
	case snmptype.Counter32, snmptype.Counter64, snmptype.Gauge32, snmptype.TimeTicks:
		p.U = v.Uint64()
	case snmptype.OctetString, snmptype.IPAddress, snmptype.Opaque:
		p.S = v.Bytes()
	case snmptype.ObjectID:
		p.OID = v.OID().String()
	}
	return json.Marshal(p)
}

func decodeValue(data []byte) (snmptype.Value, error) {
	var p persistedValue
	if err := json.Unmarshal(data, &p); err != nil {
		return snmptype.Value{}, err
	}
	switch p.Kind {
	case snmptype.Integer:
		return snmptype.Int(p.I, p.Version), nil
	case snmptype.Counter32:
		return snmptype.Counter32Val(uint32(p.U), p.Version), nil
	case snmptype.Counter64:
		return snmptype.Counter64Val(p.U, p.Version), nil
	case snmptype.Gauge32:
		return snmptype.Gauge32Val(uint32(p.U), p.Version), nil
	case snmptype.TimeTicks:
		return snmptype.TimeTicksVal(uint32(p.U), p.Version), nil
	case snmptype.OctetString:
		return snmptype.OctetStringVal(p.S, p.Version), nil
	case snmptype.Opaque:
		return snmptype.OpaqueVal(p.S, p.Version), nil
	case snmptype.IPAddress:
		var ip [4]byte
		copy(ip[:], p.S)
		return snmptype.IPAddressVal(ip, p.Version), nil
	case snmptype.ObjectID:
		o, err := oid.Parse(p.OID)
		if err != nil {
			return snmptype.Value{}, err
		}
		return snmptype.OIDVal(o, p.Version), nil
	case snmptype.Null:
		return snmptype.NullVal(p.Version), nil
	case snmptype.NoSuchObject:
		return snmptype.NoSuchObjectVal(p.Version), nil
	case snmptype.NoSuchInstance:
		return snmptype.NoSuchInstanceVal(p.Version), nil
	case snmptype.EndOfMibView:
		return snmptype.EndOfMibViewVal(p.Version), nil
	}
	return snmptype.Value{}, nil
}
