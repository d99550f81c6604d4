package storage

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/cuemby/beacon/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	// All registry records live in one bucket; record kinds are separated
	// by key namespaces.
	bucketState = []byte("state")
)

// DBFile is the name of the database file inside the data directory
const DBFile = "beacon.db"

// BoltStore implements Store interface using BoltDB
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore creates a new BoltDB-backed store in dataDir
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, DBFile)

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketState); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucketState, err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Path returns the database file path
func (s *BoltStore) Path() string {
	return s.db.Path()
}

func (s *BoltStore) View(fn func(kv KV) error) error {
	return s.db.View(func(tx *bolt.Tx) error {
		return fn(&boltKV{bucket: tx.Bucket(bucketState)})
	})
}

func (s *BoltStore) Update(fn func(kv KV) error) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return fn(&boltKV{bucket: tx.Bucket(bucketState)})
	})
}

func (s *BoltStore) Entries() ([]Entry, error) {
	var entries []Entry
	err := s.View(func(kv KV) error {
		return kv.Range(nil, nil, types.OrderAscending, func(k, v []byte) error {
			entries = append(entries, Entry{Key: k, Value: v})
			return nil
		})
	})
	return entries, err
}

func (s *BoltStore) Restore(entries []Entry) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketState); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
			return fmt.Errorf("failed to drop bucket %s: %w", bucketState, err)
		}
		b, err := tx.CreateBucket(bucketState)
		if err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucketState, err)
		}
		for _, e := range entries {
			if err := b.Put(e.Key, e.Value); err != nil {
				return fmt.Errorf("failed to restore key %x: %w", e.Key, err)
			}
		}
		return nil
	})
}

// boltKV is a KV bound to the state bucket of one transaction
type boltKV struct {
	bucket *bolt.Bucket
}

func (b *boltKV) Get(key []byte) ([]byte, error) {
	v := b.bucket.Get(key)
	if v == nil {
		return nil, nil
	}
	return clone(v), nil
}

func (b *boltKV) Set(key, value []byte) error {
	return b.bucket.Put(key, value)
}

func (b *boltKV) Delete(key []byte) error {
	return b.bucket.Delete(key)
}

func (b *boltKV) Range(start, end []byte, order types.Order, fn RangeFunc) error {
	c := b.bucket.Cursor()

	var k, v []byte
	var next func() ([]byte, []byte)
	var inRange func(k []byte) bool

	if order == types.OrderAscending {
		if start == nil {
			k, v = c.First()
		} else {
			k, v = c.Seek(start)
		}
		next = c.Next
		inRange = func(k []byte) bool {
			return end == nil || bytes.Compare(k, end) < 0
		}
	} else {
		if end == nil {
			k, v = c.Last()
		} else {
			// Seek lands on the first key >= end, which is excluded
			k, v = c.Seek(end)
			if k == nil {
				k, v = c.Last()
			} else {
				k, v = c.Prev()
			}
		}
		next = c.Prev
		inRange = func(k []byte) bool {
			return start == nil || bytes.Compare(k, start) >= 0
		}
	}

	for ; k != nil && inRange(k); k, v = next() {
		if err := fn(clone(k), clone(v)); err != nil {
			if errors.Is(err, ErrStopIteration) {
				return nil
			}
			return err
		}
	}
	return nil
}

// Values returned by bolt are only valid for the life of the transaction
func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
