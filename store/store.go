// Package store defines the abstract ordered OID key/value store
// (spec §4.2) and its two concrete implementations: an in-memory
// sorted store for small data sets and tests, and a persistent store
// backed by go.etcd.io/bbolt.
package store

import (
	"github.com/pkg/errors"

	"github.com/netwatch/snmpcore/oid"
	"github.com/netwatch/snmpcore/snmptype"
	"github.com/netwatch/snmpcore/wire"
)

// ErrNotFound is returned by GetExact when no entry has the requested
// key (spec's OIDNotFound).
var ErrNotFound = errors.New("snmp: OID not found")

// ErrEndOfMibView is returned by Next when no stored key is strictly
// greater than the requested key (spec's OIDEndOfMibView).
var ErrEndOfMibView = errors.New("snmp: end of MIB view")

// Entry is a single (OID, value) pair as exposed by a store read.
type Entry struct {
	OID   oid.OID
	Value snmptype.Value
}

// SetContext carries request-scoped information a store's ValidateSet
// implementation may need to make a policy decision (spec §4.2's
// "context" argument).
type SetContext struct {
	Version   snmptype.Version
	Community string
	PeerAddr  string
}

// Producer computes a dynamic entry's value at read time, given the
// OID being read and the owning store, per spec's
// "Value::Dynamic(producer_id)" design note.
type Producer func(o oid.OID, s OIDStore) snmptype.Value

// OIDStore is the ordered key/value abstraction the agent engine reads
// and writes through. Implementations must keep keys in lexicographic
// OID order at every observable operation.
type OIDStore interface {
	// GetExact returns the entry with key exactly o, or ErrNotFound.
	GetExact(o oid.OID) (Entry, error)

	// Next returns the entry with the smallest key strictly greater
	// than o, or ErrEndOfMibView. If no key equals o but some key has
	// o as a strict prefix, Next returns that descendant.
	Next(o oid.OID) (Entry, error)

	// Set inserts or replaces the value at o, returning the prior
	// value if one existed.
	Set(o oid.OID, v snmptype.Value) (prev *snmptype.Value, err error)

	// ValidateSet reports whether a Set of (o, v) should be permitted,
	// returning 0 (wire.NoError) when it is. Called before Set during
	// the agent's SET validation pass.
	ValidateSet(o oid.OID, v snmptype.Value, ctx SetContext) wire.ErrorStatus

	// Update bulk-loads entries, preserving order.
	Update(entries []Entry)

	// Close releases any underlying resources. Idempotent.
	Close() error
}
