// Package snmptype defines the tagged SNMP value variant shared by the
// agent, manager, and walker packages, together with TypeCoerce which
// normalises a value between SNMPv1 and SNMPv2c wire representations.
package snmptype

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/netwatch/snmpcore/oid"
)

// Kind identifies the variant held by a Value.
type Kind int

// The SNMP type universe, plus the v2c exception sentinels that can
// appear in place of a value in a response variable binding.
const (
	Integer Kind = iota
	Unsigned
	Counter32
	Counter64
	Gauge32
	TimeTicks
	OctetString
	ObjectID
	IPAddress
	Opaque
	Null

	NoSuchObject
	NoSuchInstance
	EndOfMibView
)

// Version tags the SNMP protocol generation a Value was produced
// under, since TypeCoerce needs to know the direction of conversion.
type Version int

const (
	V1 Version = iota
	V2c
)

// Value is a tagged variant over the SNMP type universe. Every Value
// knows which protocol Version it was produced under.
type Value struct {
	Kind    Kind
	Version Version

	i   int64
	u   uint64
	s   []byte
	oid oid.OID
}

// Int constructs a signed Integer value.
func Int(v int64, ver Version) Value { return Value{Kind: Integer, Version: ver, i: v} }

// Counter32Val constructs a Counter32 value.
func Counter32Val(v uint32, ver Version) Value {
	return Value{Kind: Counter32, Version: ver, u: uint64(v)}
}

// Counter64Val constructs a Counter64 value. Counter64 only exists
// under v2c; constructing one tagged V1 is a caller error the coercion
// layer will surface as-is (pass-through), per spec §4.3.
func Counter64Val(v uint64, ver Version) Value {
	return Value{Kind: Counter64, Version: ver, u: v}
}

// Gauge32Val constructs a Gauge32 value.
func Gauge32Val(v uint32, ver Version) Value {
	return Value{Kind: Gauge32, Version: ver, u: uint64(v)}
}

// TimeTicksVal constructs a TimeTicks value, in hundredths of a second.
func TimeTicksVal(v uint32, ver Version) Value {
	return Value{Kind: TimeTicks, Version: ver, u: uint64(v)}
}

// OctetStringVal constructs an OctetString value.
func OctetStringVal(v []byte, ver Version) Value {
	return Value{Kind: OctetString, Version: ver, s: v}
}

// OIDVal constructs an ObjectID value.
func OIDVal(v oid.OID, ver Version) Value { return Value{Kind: ObjectID, Version: ver, oid: v} }

// IPAddressVal constructs an IPAddress value from its 4 network-order
// octets.
func IPAddressVal(v [4]byte, ver Version) Value {
	return Value{Kind: IPAddress, Version: ver, s: v[:]}
}

// OpaqueVal constructs an Opaque value.
func OpaqueVal(v []byte, ver Version) Value { return Value{Kind: Opaque, Version: ver, s: v} }

// NullVal constructs a Null value, used on the request side to mean
// "fetch this".
func NullVal(ver Version) Value { return Value{Kind: Null, Version: ver} }

// EndOfMibViewVal constructs the end-of-view exception sentinel.
func EndOfMibViewVal(ver Version) Value { return Value{Kind: EndOfMibView, Version: ver} }

// NoSuchObjectVal constructs the no-such-object exception sentinel.
func NoSuchObjectVal(ver Version) Value { return Value{Kind: NoSuchObject, Version: ver} }

// NoSuchInstanceVal constructs the no-such-instance exception
// sentinel.
func NoSuchInstanceVal(ver Version) Value { return Value{Kind: NoSuchInstance, Version: ver} }

// IsException reports whether v is one of the v2c exception values
// (noSuchObject, noSuchInstance, endOfMibView) rather than real data.
func (v Value) IsException() bool {
	switch v.Kind {
	case NoSuchObject, NoSuchInstance, EndOfMibView:
		return true
	}
	return false
}

// Int64 returns the value as an int64. Panics if Kind is not an
// integer-family kind.
func (v Value) Int64() int64 {
	switch v.Kind {
	case Integer:
		return v.i
	case Counter32, Gauge32, TimeTicks:
		return int64(v.u)
	case Counter64:
		return int64(v.u)
	}
	panic(fmt.Sprintf("snmptype: Int64 on non-integer kind %v", v.Kind))
}

// Uint64 returns the value as a uint64. Panics if Kind is not an
// unsigned integer-family kind.
func (v Value) Uint64() uint64 {
	switch v.Kind {
	case Counter32, Counter64, Gauge32, TimeTicks:
		return v.u
	}
	panic(fmt.Sprintf("snmptype: Uint64 on non-unsigned kind %v", v.Kind))
}

// Bytes returns the raw bytes backing an OctetString, IPAddress, or
// Opaque value.
func (v Value) Bytes() []byte { return v.s }

// OID returns the oid.OID backing an ObjectID value.
func (v Value) OID() oid.OID { return v.oid }

// String renders the value for diagnostics and trace logging.
func (v Value) String() string {
	switch v.Kind {
	case Integer:
		return strconv.FormatInt(v.i, 10)
	case Counter32, Gauge32:
		return strconv.FormatUint(v.u, 10)
	case Counter64:
		return strconv.FormatUint(v.u, 10)
	case TimeTicks:
		return strconv.FormatUint(v.u, 10) + "cs"
	case OctetString:
		return string(v.s)
	case ObjectID:
		return v.oid.String()
	case IPAddress:
		parts := make([]string, len(v.s))
		for i, b := range v.s {
			parts[i] = strconv.Itoa(int(b))
		}
		return strings.Join(parts, ".")
	case Opaque:
		return hex.EncodeToString(v.s)
	case Null:
		return "<null>"
	case NoSuchObject:
		return "noSuchObject"
	case NoSuchInstance:
		return "noSuchInstance"
	case EndOfMibView:
		return "endOfMibView"
	}
	return fmt.Sprintf("<unknown kind %d>", v.Kind)
}

// TypeCoerce normalises a value produced under one protocol version
// for use in a response encoded under target. This is the single
// place version-sensitive type narrowing happens (spec §4.3); unknown
// mappings fall through unchanged.
//
// The only coercion the agent engine needs today is Counter64, which
// does not exist in v1: a Counter64 value served to a v1 manager is
// down-cast to the low 32 bits as a Counter32, matching how
// RFC 2089-unaware v1 agents historically degraded 64-bit counters.
func TypeCoerce(v Value, target Version) Value {
	if v.Version == target {
		return v
	}
	out := v
	out.Version = target
	if target == V1 && v.Kind == Counter64 {
		out.Kind = Counter32
		out.u = v.u & 0xffffffff
	}
	return out
}
