package registry

import (
	"encoding/json"

	"github.com/cuemby/beacon/pkg/keys"
	"github.com/cuemby/beacon/pkg/storage"
	"github.com/cuemby/beacon/pkg/types"
)

// Pagination settings
const (
	MaxLimit     = 30
	DefaultLimit = 10
)

// ClampLimit applies the default and the [1, MaxLimit] bounds
func ClampLimit(limit *uint32) int {
	if limit == nil {
		return DefaultLimit
	}
	l := *limit
	if l < 1 {
		return 1
	}
	if l > MaxLimit {
		return MaxLimit
	}
	return int(l)
}

// EffectiveOrder resolves the listing order; anything but ascending is
// descending.
func EffectiveOrder(order types.Order) types.Order {
	if order == types.OrderAscending {
		return types.OrderAscending
	}
	return types.OrderDescending
}

// listPage scans one page of JSON records out of a namespaced view
func listPage[T any](kv storage.KV, page types.PageRequest, op string) ([]*T, error) {
	order := EffectiveOrder(page.Order)
	limit := ClampLimit(page.Limit)

	var cursor []byte
	if page.StartAfter != nil {
		cursor = []byte(*page.StartAfter)
	}
	start, end := keys.RangeBounds(cursor, order)

	items := make([]*T, 0, limit)
	err := kv.Range(start, end, order, func(k, v []byte) error {
		item := new(T)
		if err := json.Unmarshal(v, item); err != nil {
			return storageErr("decode "+op+" "+string(k), err)
		}
		items = append(items, item)
		if len(items) >= limit {
			return storage.ErrStopIteration
		}
		return nil
	})
	if err != nil {
		return nil, storageErr("list "+op, err)
	}
	return items, nil
}

func count(kv storage.KV) (int, error) {
	n := 0
	err := kv.Range(nil, nil, types.OrderAscending, func(k, v []byte) error {
		n++
		return nil
	})
	return n, err
}
