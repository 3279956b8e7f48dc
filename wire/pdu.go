// Package wire implements the SNMPv1/v2c PDU model and its BER
// encoding (encoding/asn1 + github.com/geoffgarside/ber). A PDU codec
// is treated as an external collaborator at the boundary; this package
// is the concrete one the rest of snmpcore is built and tested
// against.
package wire

import (
	"github.com/netwatch/snmpcore/oid"
	"github.com/netwatch/snmpcore/snmptype"
)

// Kind identifies the SNMP message type carried by a PDU.
type Kind byte

// SNMP PDU type tags, as laid out on the wire (ASN.1 context-specific,
// constructed).
const (
	GetRequest     Kind = 0xA0
	GetNextRequest Kind = 0xA1
	GetResponse    Kind = 0xA2
	SetRequest     Kind = 0xA3
	GetBulkRequest Kind = 0xA5
)

// ErrorStatus is the SNMP error-status enumeration (spec §6). Values
// 6 and above are v2c extensions this package passes through
// unmodified.
type ErrorStatus int

const (
	NoError    ErrorStatus = 0
	TooBig     ErrorStatus = 1
	NoSuchName ErrorStatus = 2
	BadValue   ErrorStatus = 3
	ReadOnly   ErrorStatus = 4
	GenErr     ErrorStatus = 5
)

// NoIndex is the internal, 0-based sentinel meaning "no error index is
// set". It is distinct from index 0 (the first variable binding).
const NoIndex = -1

// VarBind is an (OID, value) pair. A Null-kind Value on the request
// side means "fetch this"; on the response side it is always replaced
// with the retrieved value or an exception sentinel.
type VarBind struct {
	OID   oid.OID
	Value snmptype.Value
}

// PDU is a request or response, fields per spec §3. ErrorIndex is
// 0-based internally (NoIndex when unset); it is converted to/from
// the wire's 1-based convention only at Encode/Decode.
type PDU struct {
	Version   snmptype.Version
	Community string
	Kind      Kind
	RequestID int32

	ErrorStatus ErrorStatus
	ErrorIndex  int

	// NonRepeaters and MaxRepetitions are only meaningful when
	// Kind == GetBulkRequest.
	NonRepeaters   int
	MaxRepetitions int

	VarBinds []VarBind
}

// Values returns the response's variable bindings as a map keyed by
// OID string, dropping endOfMibView bindings. Grounded on
// original_source/agentproxy.py's getResponseResults/asDictionary: a
// non-zero ErrorStatus yields an empty map (matching
// getResponseResults, which returns [] rather than raising on a
// failed response), and only endOfMibView is filtered out --
// noSuchObject/noSuchInstance values are passed through unchanged, the
// same as the Python original.
func (p *PDU) Values() map[string]snmptype.Value {
	out := make(map[string]snmptype.Value)
	if p.ErrorStatus != NoError {
		return out
	}
	for _, vb := range p.VarBinds {
		if vb.Value.Kind == snmptype.EndOfMibView {
			continue
		}
		out[vb.OID.String()] = vb.Value
	}
	return out
}

// ToWireIndex converts a 0-based internal index (or NoIndex) to the
// 1-based value placed on the wire.
func ToWireIndex(internal int) int {
	if internal < 0 {
		return 0
	}
	return internal + 1
}

// FromWireIndex converts a 1-based wire index (0 meaning "unset") to
// the 0-based internal convention.
func FromWireIndex(wire int) int {
	if wire <= 0 {
		return NoIndex
	}
	return wire - 1
}
