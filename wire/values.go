package wire

import (
	"encoding/asn1"

	"github.com/geoffgarside/ber"
	"github.com/pkg/errors"

	"github.com/netwatch/snmpcore/snmptype"
)

// Application-class (0x40-range) and context-specific (0x80-range)
// SNMP data-type tags, and their class-stripped counterparts used to
// match a decoded asn1.RawValue.Tag.
const tagMask = 0x1f

const (
	ipTag        = 0x40
	counter32Tag = 0x41
	gauge32Tag   = 0x42
	timeTicksTag = 0x43
	opaqueTag    = 0x44
	counter64Tag = 0x46

	noSuchObjectTag   = 0x80
	noSuchInstanceTag = 0x81
	endOfMibViewTag   = 0x82
)

// marshalValue renders a Value to its ASN.1 raw encoding, tagged per
// the SNMP data-type conventions above.
func marshalValue(v snmptype.Value) (asn1.RawValue, error) {
	switch v.Kind {
	case snmptype.Null:
		return asn1.NullRawValue, nil

	case snmptype.Integer:
		return marshalWithTag(v.Int64(), 0)

	case snmptype.OctetString:
		return marshalWithTag(v.Bytes(), 0)

	case snmptype.ObjectID:
		return marshalWithTag(asn1.ObjectIdentifier(toInts(v.OID())), 0)

	case snmptype.IPAddress:
		return marshalWithTag(v.Bytes(), ipTag)

	case snmptype.Counter32:
		return marshalWithTag(v.Int64(), counter32Tag)

	case snmptype.Counter64:
		return marshalWithTag(v.Int64(), counter64Tag)

	case snmptype.Gauge32:
		return marshalWithTag(v.Int64(), gauge32Tag)

	case snmptype.TimeTicks:
		return marshalWithTag(v.Int64(), timeTicksTag)

	case snmptype.Opaque:
		return marshalWithTag(v.Bytes(), opaqueTag)

	case snmptype.NoSuchObject:
		return asn1.RawValue{FullBytes: []byte{noSuchObjectTag, 0x00}}, nil

	case snmptype.NoSuchInstance:
		return asn1.RawValue{FullBytes: []byte{noSuchInstanceTag, 0x00}}, nil

	case snmptype.EndOfMibView:
		return asn1.RawValue{FullBytes: []byte{endOfMibViewTag, 0x00}}, nil
	}
	return asn1.RawValue{}, errors.Errorf("unsupported value kind %d", v.Kind)
}

// marshalWithTag marshals value using the universal ASN.1 encoding for
// its Go type, then, when overrideTag is non-zero, overwrites the
// leading tag byte with overrideTag, the same tag-rewrite trick used
// elsewhere in this codec for message types.
func marshalWithTag(value interface{}, overrideTag byte) (asn1.RawValue, error) {
	b, err := ber.Marshal(value)
	if err != nil {
		return asn1.RawValue{}, err
	}
	if overrideTag != 0 {
		b[0] = overrideTag
	}
	return asn1.RawValue{FullBytes: b}, nil
}

// unmarshalValue decodes a raw ASN.1 variable-binding value into a
// Value tagged with ver.
func unmarshalValue(raw *asn1.RawValue, ver snmptype.Version) (snmptype.Value, error) {
	switch raw.Class {
	case asn1.ClassUniversal:
		switch raw.Tag {
		case asn1.TagInteger:
			i, err := decodeInt(raw, asn1.TagInteger)
			if err != nil {
				return snmptype.Value{}, err
			}
			return snmptype.Int(i, ver), nil
		case asn1.TagOctetString:
			s, err := decodeOctets(raw, asn1.TagOctetString)
			if err != nil {
				return snmptype.Value{}, err
			}
			return snmptype.OctetStringVal(s, ver), nil
		case asn1.TagOID:
			return decodeOID(raw, ver)
		case asn1.TagNull:
			return snmptype.NullVal(ver), nil
		}

	case asn1.ClassApplication:
		switch raw.Tag {
		case ipTag & tagMask:
			s, err := decodeOctets(raw, asn1.TagOctetString)
			if err != nil {
				return snmptype.Value{}, err
			}
			var ip [4]byte
			copy(ip[:], s)
			return snmptype.IPAddressVal(ip, ver), nil
		case counter32Tag & tagMask:
			i, err := decodeInt(raw, asn1.TagInteger)
			if err != nil {
				return snmptype.Value{}, err
			}
			return snmptype.Counter32Val(uint32(i), ver), nil
		case counter64Tag & tagMask:
			i, err := decodeInt(raw, asn1.TagInteger)
			if err != nil {
				return snmptype.Value{}, err
			}
			return snmptype.Counter64Val(uint64(i), ver), nil
		case gauge32Tag & tagMask:
			i, err := decodeInt(raw, asn1.TagInteger)
			if err != nil {
				return snmptype.Value{}, err
			}
			return snmptype.Gauge32Val(uint32(i), ver), nil
		case timeTicksTag & tagMask:
			i, err := decodeInt(raw, asn1.TagInteger)
			if err != nil {
				return snmptype.Value{}, err
			}
			return snmptype.TimeTicksVal(uint32(i), ver), nil
		case opaqueTag & tagMask:
			s, err := decodeOctets(raw, asn1.TagOctetString)
			if err != nil {
				return snmptype.Value{}, err
			}
			return snmptype.OpaqueVal(s, ver), nil
		}

	case asn1.ClassContextSpecific:
		switch raw.Tag {
		case noSuchObjectTag & tagMask:
			return snmptype.NoSuchObjectVal(ver), nil
		case noSuchInstanceTag & tagMask:
			return snmptype.NoSuchInstanceVal(ver), nil
		case endOfMibViewTag & tagMask:
			return snmptype.EndOfMibViewVal(ver), nil
		}
	}
	return snmptype.Value{}, errors.Errorf("unsupported class %d tag %d", raw.Class, raw.Tag)
}

func decodeInt(raw *asn1.RawValue, universalTag byte) (int64, error) {
	raw.FullBytes[0] = universalTag
	var v int64
	_, err := ber.Unmarshal(raw.FullBytes, &v)
	return v, err
}

func decodeOctets(raw *asn1.RawValue, universalTag byte) ([]byte, error) {
	raw.FullBytes[0] = universalTag
	var v []byte
	_, err := ber.Unmarshal(raw.FullBytes, &v)
	return v, err
}

func decodeOID(raw *asn1.RawValue, ver snmptype.Version) (snmptype.Value, error) {
	var v asn1.ObjectIdentifier
	_, err := ber.Unmarshal(raw.FullBytes, &v)
	if err != nil {
		return snmptype.Value{}, err
	}
	return snmptype.OIDVal(fromAsn1OID(v), ver), nil
}
