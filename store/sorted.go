package store

import (
	"sort"

	"github.com/netwatch/snmpcore/oid"
	"github.com/netwatch/snmpcore/snmptype"
	"github.com/netwatch/snmpcore/wire"
)

// record is a single slot in a Sorted store: either a static value or
// a dynamic producer, never both.
type record struct {
	OID      oid.OID
	Value    snmptype.Value
	Producer Producer
}

// Sorted is an in-memory OIDStore backed by a slice kept in OID order,
// using binary search for GetExact/Next. It is not durable and is
// intended for small data sets, tests, and mock agents -- the
// counterpart of original_source/bisectoidstore.py's BisectOIDStore.
type Sorted struct {
	entries         []record
	rejectUnknown   bool
	allowDynamicSet bool
}

// SortedOption configures a Sorted store at construction time.
type SortedOption func(*Sorted)

// RejectUnknownOIDs makes ValidateSet return noSuchName for a SET
// targeting an OID with no existing entry, instead of the default
// policy of permitting an implicit insert (spec §9 open question:
// "whether SET on an unknown OID should insert or fail").
func RejectUnknownOIDs(reject bool) SortedOption {
	return func(s *Sorted) { s.rejectUnknown = reject }
}

// AllowDynamicSet permits SET to overwrite a dynamic (producer-backed)
// entry with a static value. Default is false: dynamic entries are
// read-only via GET/GETNEXT and SET fails with badValue.
func AllowDynamicSet(allow bool) SortedOption {
	return func(s *Sorted) { s.allowDynamicSet = allow }
}

// NewSorted constructs an empty Sorted store.
func NewSorted(opts ...SortedOption) *Sorted {
	s := &Sorted{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetDynamic installs a producer-backed entry at o, evaluated at every
// read rather than stored statically.
func (s *Sorted) SetDynamic(o oid.OID, p Producer) {
	idx := s.search(o)
	rec := record{OID: o.Clone(), Producer: p}
	if idx < len(s.entries) && s.entries[idx].OID.Equal(o) {
		s.entries[idx] = rec
		return
	}
	s.insertAt(idx, rec)
}

// search returns the index of the first entry with OID >= o.
func (s *Sorted) search(o oid.OID) int {
	return sort.Search(len(s.entries), func(i int) bool {
		return s.entries[i].OID.Compare(o) >= 0
	})
}

func (s *Sorted) insertAt(idx int, r record) {
	s.entries = append(s.entries, record{})
	copy(s.entries[idx+1:], s.entries[idx:])
	s.entries[idx] = r
}

func resolve(r record, s OIDStore) Entry {
	if r.Producer != nil {
		return Entry{OID: r.OID, Value: r.Producer(r.OID, s)}
	}
	return Entry{OID: r.OID, Value: r.Value}
}

// GetExact implements OIDStore.
func (s *Sorted) GetExact(o oid.OID) (Entry, error) {
	idx := s.search(o)
	if idx < len(s.entries) && s.entries[idx].OID.Equal(o) {
		return resolve(s.entries[idx], s), nil
	}
	return Entry{}, ErrNotFound
}

// Next implements OIDStore. It returns the entry with the smallest
// key strictly greater than o, which -- because OID comparison treats
// a shorter prefix as smaller than its descendants -- automatically
// returns the correct descendant when o is an unstored prefix of some
// stored key (spec §4.2's "walk into a subtree" contract).
func (s *Sorted) Next(o oid.OID) (Entry, error) {
	idx := sort.Search(len(s.entries), func(i int) bool {
		return s.entries[i].OID.Compare(o) > 0
	})
	if idx < len(s.entries) {
		return resolve(s.entries[idx], s), nil
	}
	return Entry{}, ErrEndOfMibView
}

// Set implements OIDStore.
func (s *Sorted) Set(o oid.OID, v snmptype.Value) (*snmptype.Value, error) {
	idx := s.search(o)
	if idx < len(s.entries) && s.entries[idx].OID.Equal(o) {
		prev := resolve(s.entries[idx], s).Value
		s.entries[idx] = record{OID: o.Clone(), Value: v}
		return &prev, nil
	}
	s.insertAt(idx, record{OID: o.Clone(), Value: v})
	return nil, nil
}

// ValidateSet implements OIDStore.
func (s *Sorted) ValidateSet(o oid.OID, _ snmptype.Value, _ SetContext) wire.ErrorStatus {
	idx := s.search(o)
	if idx < len(s.entries) && s.entries[idx].OID.Equal(o) {
		if s.entries[idx].Producer != nil && !s.allowDynamicSet {
			return wire.BadValue
		}
		return wire.NoError
	}
	if s.rejectUnknown {
		return wire.NoSuchName
	}
	return wire.NoError
}

// Update implements OIDStore, bulk-loading entries in any order.
func (s *Sorted) Update(entries []Entry) {
	for _, e := range entries {
		_, _ = s.Set(e.OID, e.Value)
	}
}

// Close implements OIDStore. Idempotent no-op for an in-memory store.
func (s *Sorted) Close() error { return nil }
