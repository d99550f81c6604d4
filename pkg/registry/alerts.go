package registry

import (
	"encoding/json"
	"fmt"

	"github.com/cuemby/beacon/pkg/keys"
	"github.com/cuemby/beacon/pkg/storage"
	"github.com/cuemby/beacon/pkg/types"
)

// AlertStore persists alert definitions keyed by their derived alert key
type AlertStore struct {
	kv storage.KV
}

// NewAlertStore creates an AlertStore over the alert namespace of kv
func NewAlertStore(kv storage.KV) *AlertStore {
	return &AlertStore{kv: storage.Prefixed(kv, keys.AlertsNamespace())}
}

// Save writes alert under alert.Key, replacing any previous record
func (s *AlertStore) Save(alert *types.Alert) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return err
	}
	return storageErr("write alert", s.kv.Set([]byte(alert.Key), data))
}

// Get returns the alert stored under key
func (s *AlertStore) Get(key string) (*types.Alert, error) {
	data, err := s.kv.Get([]byte(key))
	if err != nil {
		return nil, storageErr("read alert", err)
	}
	if data == nil {
		return nil, fmt.Errorf("%w: alert %q does not exist", ErrNotFound, key)
	}

	var alert types.Alert
	if err := json.Unmarshal(data, &alert); err != nil {
		return nil, storageErr("decode alert "+key, err)
	}
	return &alert, nil
}

// List returns one page of alerts
func (s *AlertStore) List(page types.PageRequest) ([]*types.Alert, error) {
	return listPage[types.Alert](s.kv, page, "alerts")
}

// Count returns the number of stored alerts
func (s *AlertStore) Count() (int, error) {
	n, err := count(s.kv)
	return n, storageErr("count alerts", err)
}
