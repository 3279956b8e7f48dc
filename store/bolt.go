package store

import (
	"bytes"
	"encoding/binary"
	"sync"
	"time"

	"go.etcd.io/bbolt"

	"github.com/pkg/errors"

	"github.com/netwatch/snmpcore/oid"
	"github.com/netwatch/snmpcore/snmptype"
	"github.com/netwatch/snmpcore/wire"
)

var oidBucket = []byte("oids")

// Bolt is a persistent OIDStore backed by a bbolt B-tree file. Keys
// are the fixed-width big-endian concatenation of the OID's
// sub-identifiers, so that byte-lexicographic order on the stored key
// equals numeric OID order -- this is the critical encoding decision
// spec §6 calls out, since sorting by the dotted string form gives the
// wrong order once a sub-identifier needs more than one digit.
//
// Grounded on original_source/bsdoidstore.py's struct.pack('>I', ...)
// key encoding and set_location-based nextOID, ported to
// bbolt.Cursor.Seek/Next; lifecycle management (Open/CreateBucketIfNotExists)
// follows krisarmstrong-niac-go's pkg/storage/storage.go.
type Bolt struct {
	db            *bbolt.DB
	rejectUnknown bool

	mu     sync.Mutex
	closed bool
}

// BoltOption configures a Bolt store at construction time.
type BoltOption func(*Bolt)

// RejectUnknownBoltOIDs is the Bolt-store counterpart of
// RejectUnknownOIDs.
func RejectUnknownBoltOIDs(reject bool) BoltOption {
	return func(b *Bolt) { b.rejectUnknown = reject }
}

// OpenBolt opens (creating if necessary) a persistent OID store at
// path.
func OpenBolt(path string, opts ...BoltOption) (*Bolt, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrap(err, "open bolt store")
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(oidBucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "create oid bucket")
	}

	b := &Bolt{db: db}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// encodeKey renders o as the fixed-width big-endian key format
// described in spec §6.
func encodeKey(o oid.OID) []byte {
	buf := make([]byte, 4*o.Len())
	for i := 0; i < o.Len(); i++ {
		binary.BigEndian.PutUint32(buf[i*4:], o.At(i))
	}
	return buf
}

func decodeKey(k []byte) oid.OID {
	out := make(oid.OID, len(k)/4)
	for i := range out {
		out[i] = binary.BigEndian.Uint32(k[i*4:])
	}
	return out
}

// GetExact implements OIDStore.
func (b *Bolt) GetExact(o oid.OID) (Entry, error) {
	var entry Entry
	err := b.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(oidBucket).Get(encodeKey(o))
		if v == nil {
			return ErrNotFound
		}
		val, err := decodeValue(v)
		if err != nil {
			return errors.Wrap(err, "decode stored value")
		}
		entry = Entry{OID: o.Clone(), Value: val}
		return nil
	})
	return entry, err
}

// Next implements OIDStore: position the cursor at the least key >=
// encoded(o); if it equals encoded(o), advance by one. End of cursor
// signals ErrEndOfMibView.
func (b *Bolt) Next(o oid.OID) (Entry, error) {
	var entry Entry
	target := encodeKey(o)
	err := b.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(oidBucket).Cursor()
		k, v := c.Seek(target)
		if k != nil && bytes.Equal(k, target) {
			k, v = c.Next()
		}
		if k == nil {
			return ErrEndOfMibView
		}
		val, err := decodeValue(v)
		if err != nil {
			return errors.Wrap(err, "decode stored value")
		}
		entry = Entry{OID: decodeKey(k), Value: val}
		return nil
	})
	return entry, err
}

// Set implements OIDStore. The mutation is flushed (bbolt commits and
// fsyncs on Update) before this call returns, satisfying spec §4.2's
// durability-before-acknowledgment requirement.
func (b *Bolt) Set(o oid.OID, v snmptype.Value) (*snmptype.Value, error) {
	key := encodeKey(o)
	data, err := encodeValue(v)
	if err != nil {
		return nil, errors.Wrap(err, "encode value")
	}

	var prev *snmptype.Value
	err = b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(oidBucket)
		if old := bucket.Get(key); old != nil {
			oldVal, err := decodeValue(old)
			if err != nil {
				return errors.Wrap(err, "decode previous value")
			}
			prev = &oldVal
		}
		return bucket.Put(key, data)
	})
	if err != nil {
		return nil, err
	}
	return prev, nil
}

// ValidateSet implements OIDStore.
func (b *Bolt) ValidateSet(o oid.OID, _ snmptype.Value, _ SetContext) wire.ErrorStatus {
	if !b.rejectUnknown {
		return wire.NoError
	}
	exists := false
	_ = b.db.View(func(tx *bbolt.Tx) error {
		exists = tx.Bucket(oidBucket).Get(encodeKey(o)) != nil
		return nil
	})
	if exists {
		return wire.NoError
	}
	return wire.NoSuchName
}

// Update implements OIDStore, loading all entries within one
// transaction.
func (b *Bolt) Update(entries []Entry) {
	_ = b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(oidBucket)
		for _, e := range entries {
			data, err := encodeValue(e.Value)
			if err != nil {
				return err
			}
			if err := bucket.Put(encodeKey(e.OID), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close implements OIDStore. Idempotent.
func (b *Bolt) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.db.Close()
}
