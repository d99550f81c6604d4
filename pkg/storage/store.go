package storage

import (
	"errors"

	"github.com/cuemby/beacon/pkg/types"
)

// ErrStopIteration can be returned from a RangeFunc to end a scan early.
// Range does not report it to the caller.
var ErrStopIteration = errors.New("stop iteration")

// RangeFunc receives each entry of a scan. Key and value are copies owned
// by the callee.
type RangeFunc func(key, value []byte) error

// KV is the ordered byte-keyed capability the registry is built on. It is
// always scoped to a single transaction.
type KV interface {
	// Get returns nil when the key is absent
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
	Delete(key []byte) error

	// Range visits keys in [start, end) in the given order. A nil start or
	// end is unbounded. Any order other than ascending scans descending.
	Range(start, end []byte, order types.Order, fn RangeFunc) error
}

// Entry is a raw key/value pair, used for snapshots
type Entry struct {
	Key   []byte `json:"k"`
	Value []byte `json:"v"`
}

// Store defines the interface for registry state storage
type Store interface {
	// View runs fn in a read-only transaction
	View(fn func(kv KV) error) error

	// Update runs fn in a read-write transaction. The transaction commits
	// only if fn returns nil.
	Update(fn func(kv KV) error) error

	// Entries returns every raw entry in key order
	Entries() ([]Entry, error)

	// Restore replaces the whole store contents with entries
	Restore(entries []Entry) error

	Close() error
}
