package registry

import (
	"encoding/json"
	"fmt"

	"github.com/cuemby/beacon/pkg/address"
	"github.com/cuemby/beacon/pkg/keys"
	"github.com/cuemby/beacon/pkg/storage"
	"github.com/cuemby/beacon/pkg/types"
)

// SubscriptionStore persists subscriptions nested under their subscriber
type SubscriptionStore struct {
	kv storage.KV
}

// NewSubscriptionStore creates a SubscriptionStore over kv
func NewSubscriptionStore(kv storage.KV) *SubscriptionStore {
	return &SubscriptionStore{kv: kv}
}

func (s *SubscriptionStore) bucket(subscriber address.Canonical) storage.KV {
	return storage.Prefixed(s.kv, keys.SubscriptionsNamespace(subscriber))
}

// Save writes sub, replacing any previous subscription of the same
// subscriber to the same alert
func (s *SubscriptionStore) Save(sub *types.Subscription) error {
	data, err := json.Marshal(sub)
	if err != nil {
		return err
	}
	return storageErr("write subscription", s.bucket(sub.Subscriber).Set([]byte(sub.AlertKey), data))
}

// Get returns the subscription of subscriber to alertKey
func (s *SubscriptionStore) Get(subscriber address.Canonical, alertKey string) (*types.Subscription, error) {
	data, err := s.bucket(subscriber).Get([]byte(alertKey))
	if err != nil {
		return nil, storageErr("read subscription", err)
	}
	if data == nil {
		return nil, fmt.Errorf("%w: %s is not subscribed to %q", ErrNotFound, subscriber, alertKey)
	}

	var sub types.Subscription
	if err := json.Unmarshal(data, &sub); err != nil {
		return nil, storageErr("decode subscription "+alertKey, err)
	}
	return &sub, nil
}

// Delete removes the subscription of subscriber to alertKey. Missing
// entries are not an error here.
func (s *SubscriptionStore) Delete(subscriber address.Canonical, alertKey string) error {
	return storageErr("delete subscription", s.bucket(subscriber).Delete([]byte(alertKey)))
}

// List returns one page of the subscriptions of subscriber
func (s *SubscriptionStore) List(subscriber address.Canonical, page types.PageRequest) ([]*types.Subscription, error) {
	return listPage[types.Subscription](s.bucket(subscriber), page, "subscriptions")
}

// Count returns the number of subscriptions across all subscribers
func (s *SubscriptionStore) Count() (int, error) {
	n, err := count(storage.Prefixed(s.kv, keys.AllSubscriptionsNamespace()))
	return n, storageErr("count subscriptions", err)
}
