package wire

import (
	"encoding/asn1"

	"github.com/geoffgarside/ber"
	"github.com/pkg/errors"

	"github.com/netwatch/snmpcore/oid"
	"github.com/netwatch/snmpcore/snmptype"
)

// ErrProtocol wraps any BER/ASN.1 level decode mismatch, per spec §7's
// ProtocolError taxonomy entry. This package only owns wire-format
// mismatches; a GETBULK response that is merely short a few bindings
// is a walker-level concern, not a protocol error (see
// walker.TableWalker.integrate).
var ErrProtocol = errors.New("snmp: protocol error")

// packet is the outermost SNMP message envelope: version, community,
// and an opaque PDU. The PDU is initially decoded as a raw ASN.1
// value so its message-type tag can be swapped for the generic
// ASN.1 SEQUENCE tag before the PDU body is decoded.
type packet struct {
	Version   int
	Community []byte
	RawPDU    asn1.RawValue
}

// rawPDU mirrors the wire layout of every PDU kind: GETBULK reuses the
// Error/ErrorIndex wire slots for NonRepeaters/MaxRepetitions.
type rawPDU struct {
	RequestID   int32
	P1          int32
	P2          int32
	VarBindList []rawVarBind
}

type rawVarBind struct {
	OID   asn1.ObjectIdentifier
	Value asn1.RawValue
}

const sequenceTag = 0x30

// Encode renders a PDU to its BER wire form.
func Encode(p *PDU) ([]byte, error) {
	raw := rawPDU{
		RequestID:   p.RequestID,
		VarBindList: make([]rawVarBind, len(p.VarBinds)),
	}

	if p.Kind == GetBulkRequest {
		raw.P1 = int32(p.NonRepeaters)
		raw.P2 = int32(p.MaxRepetitions)
	} else {
		raw.P1 = int32(p.ErrorStatus)
		raw.P2 = int32(ToWireIndex(p.ErrorIndex))
	}

	for i, vb := range p.VarBinds {
		rv, err := marshalValue(vb.Value)
		if err != nil {
			return nil, errors.Wrapf(err, "encode varbind %d (%s)", i, vb.OID)
		}
		raw.VarBindList[i] = rawVarBind{OID: asn1.ObjectIdentifier(toInts(vb.OID)), Value: rv}
	}

	body, err := ber.Marshal(raw)
	if err != nil {
		return nil, errors.Wrap(err, "marshal pdu body")
	}
	body[0] = byte(p.Kind)

	pkt := packet{
		Version:   int(p.Version),
		Community: []byte(p.Community),
		RawPDU:    asn1.RawValue{FullBytes: body},
	}

	out, err := ber.Marshal(pkt)
	if err != nil {
		return nil, errors.Wrap(err, "marshal packet")
	}
	return out, nil
}

// Decode parses a BER wire message into a PDU.
func Decode(input []byte) (*PDU, error) {
	pkt := &packet{}
	if _, err := ber.Unmarshal(input, pkt); err != nil {
		return nil, errors.Wrap(ErrProtocol, err.Error())
	}
	if len(pkt.RawPDU.FullBytes) == 0 {
		return nil, errors.Wrap(ErrProtocol, "empty pdu")
	}

	kind := Kind(pkt.RawPDU.FullBytes[0])
	// Replace the SNMP message-type tag with the generic ASN.1
	// SEQUENCE tag so the body can be unmarshalled structurally.
	pkt.RawPDU.FullBytes[0] = sequenceTag

	raw := &rawPDU{}
	if _, err := ber.Unmarshal(pkt.RawPDU.FullBytes, raw); err != nil {
		return nil, errors.Wrap(ErrProtocol, err.Error())
	}

	version := snmptype.Version(pkt.Version)

	p := &PDU{
		Version:   version,
		Community: string(pkt.Community),
		Kind:      kind,
		RequestID: raw.RequestID,
		VarBinds:  make([]VarBind, len(raw.VarBindList)),
	}

	if kind == GetBulkRequest {
		p.NonRepeaters = int(raw.P1)
		p.MaxRepetitions = int(raw.P2)
		p.ErrorIndex = NoIndex
	} else {
		p.ErrorStatus = ErrorStatus(raw.P1)
		p.ErrorIndex = FromWireIndex(int(raw.P2))
	}

	for i := range raw.VarBindList {
		v, err := unmarshalValue(&raw.VarBindList[i].Value, version)
		if err != nil {
			return nil, errors.Wrapf(ErrProtocol, "varbind %d: %v", i, err)
		}
		p.VarBinds[i] = VarBind{
			OID:   oid.FromInts(intsOf(raw.VarBindList[i].OID)),
			Value: v,
		}
	}

	return p, nil
}

func toInts(o oid.OID) []int {
	out := make([]int, o.Len())
	for i := 0; i < o.Len(); i++ {
		out[i] = int(o.At(i))
	}
	return out
}

func intsOf(o asn1.ObjectIdentifier) []int { return []int(o) }

func fromAsn1OID(o asn1.ObjectIdentifier) oid.OID { return oid.FromInts([]int(o)) }
