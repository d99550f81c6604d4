package storage

import (
	"github.com/cuemby/beacon/pkg/types"
)

// PrefixedKV is a view of a KV restricted to keys under prefix. Keys passed
// in and handed out are relative to the prefix.
type PrefixedKV struct {
	kv     KV
	prefix []byte
}

// Prefixed returns a view of kv scoped to prefix
func Prefixed(kv KV, prefix []byte) *PrefixedKV {
	return &PrefixedKV{kv: kv, prefix: clone(prefix)}
}

func (p *PrefixedKV) key(k []byte) []byte {
	out := make([]byte, 0, len(p.prefix)+len(k))
	out = append(out, p.prefix...)
	return append(out, k...)
}

func (p *PrefixedKV) Get(key []byte) ([]byte, error) {
	return p.kv.Get(p.key(key))
}

func (p *PrefixedKV) Set(key, value []byte) error {
	return p.kv.Set(p.key(key), value)
}

func (p *PrefixedKV) Delete(key []byte) error {
	return p.kv.Delete(p.key(key))
}

// Range scans [start, end) relative to the prefix. Unbounded ends are
// clamped to the prefix range, so a scan never leaves the namespace.
func (p *PrefixedKV) Range(start, end []byte, order types.Order, fn RangeFunc) error {
	absStart := p.key(start)

	var absEnd []byte
	if end != nil {
		absEnd = p.key(end)
	} else {
		absEnd = PrefixEnd(p.prefix)
	}

	return p.kv.Range(absStart, absEnd, order, func(k, v []byte) error {
		return fn(k[len(p.prefix):], v)
	})
}

// PrefixEnd returns the smallest key greater than every key starting with
// prefix, or nil if no such key exists (prefix is empty or all 0xff).
func PrefixEnd(prefix []byte) []byte {
	end := clone(prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
