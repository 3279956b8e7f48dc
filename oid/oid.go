// Package oid implements the canonical Object Identifier value used
// throughout snmpcore: an immutable, totally ordered sequence of
// non-negative sub-identifiers.
package oid

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ErrMalformed is returned when a dotted-decimal string cannot be
// parsed into an OID.
var ErrMalformed = errors.New("malformed OID")

// OID is an immutable ordered sequence of sub-identifiers.
//
// Two OIDs compare component-wise; a shorter OID that is a prefix of a
// longer one sorts before it. The string form always carries a leading
// dot, e.g. ".1.3.6.1.2.1".
type OID []uint32

// Parse converts a dotted-decimal string, with or without a leading
// dot, into an OID. It rejects empty components and non-numeric
// components.
func Parse(s string) (OID, error) {
	trimmed := strings.TrimPrefix(s, ".")
	if trimmed == "" {
		return nil, errors.Wrapf(ErrMalformed, "empty OID %q", s)
	}

	parts := strings.Split(trimmed, ".")
	out := make(OID, len(parts))
	for i, p := range parts {
		if p == "" {
			return nil, errors.Wrapf(ErrMalformed, "empty component in %q", s)
		}
		v, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return nil, errors.Wrapf(ErrMalformed, "non-numeric component %q in %q", p, s)
		}
		out[i] = uint32(v)
	}
	return out, nil
}

// MustParse is like Parse but panics on error. Intended for tests and
// package-level OID literals.
func MustParse(s string) OID {
	o, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return o
}

// FromInts builds an OID from a vector of sub-identifiers.
func FromInts(vals []int) OID {
	out := make(OID, len(vals))
	for i, v := range vals {
		out[i] = uint32(v)
	}
	return out
}

// String renders the OID in canonical dotted-decimal form with a
// leading dot. Parse(o.String()) always reproduces o.
func (o OID) String() string {
	var b strings.Builder
	for _, v := range o {
		b.WriteByte('.')
		b.WriteString(strconv.FormatUint(uint64(v), 10))
	}
	return b.String()
}

// Len returns the number of sub-identifiers.
func (o OID) Len() int { return len(o) }

// At returns the sub-identifier at index i.
func (o OID) At(i int) uint32 { return o[i] }

// Clone returns an independent copy of o.
func (o OID) Clone() OID {
	out := make(OID, len(o))
	copy(out, o)
	return out
}

// Append returns a new OID with extra sub-identifiers appended. It
// never mutates o.
func (o OID) Append(extra ...uint32) OID {
	out := make(OID, 0, len(o)+len(extra))
	out = append(out, o...)
	out = append(out, extra...)
	return out
}

// Equal reports whether o and other have identical sub-identifiers.
func (o OID) Equal(other OID) bool {
	return o.Compare(other) == 0
}

// Compare returns -1, 0, or 1 as o is numerically less than, equal to,
// or greater than other. Comparison is purely lexicographic on
// sub-identifier values, not on the dotted string form: .1.3.6.1.2.2
// compares less than .1.3.6.1.2.12.
func (o OID) Compare(other OID) int {
	n := len(o)
	if len(other) < n {
		n = len(other)
	}
	for i := 0; i < n; i++ {
		switch {
		case o[i] < other[i]:
			return -1
		case o[i] > other[i]:
			return 1
		}
	}
	switch {
	case len(o) < len(other):
		return -1
	case len(o) > len(other):
		return 1
	}
	return 0
}

// Less reports whether o sorts strictly before other. Useful as a
// sort.Interface comparator.
func (o OID) Less(other OID) bool { return o.Compare(other) < 0 }

// IsPrefixOf reports whether o is a proper or equal prefix of other,
// i.e. other == o or other is a descendant of o in the MIB tree.
func (o OID) IsPrefixOf(other OID) bool {
	if len(o) > len(other) {
		return false
	}
	for i := range o {
		if o[i] != other[i] {
			return false
		}
	}
	return true
}

// IsStrictPrefixOf reports whether o is a proper prefix of other, i.e.
// other is a strict descendant of o (other != o).
func (o OID) IsStrictPrefixOf(other OID) bool {
	return len(other) > len(o) && o.IsPrefixOf(other)
}
