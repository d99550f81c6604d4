package registry

import (
	"encoding/json"

	"github.com/cuemby/beacon/pkg/address"
	"github.com/cuemby/beacon/pkg/keys"
	"github.com/cuemby/beacon/pkg/storage"
	"github.com/cuemby/beacon/pkg/types"
)

// ConfigStore reads and writes the registry singleton
type ConfigStore struct {
	kv storage.KV
}

// NewConfigStore creates a ConfigStore over kv
func NewConfigStore(kv storage.KV) *ConfigStore {
	return &ConfigStore{kv: kv}
}

// Init writes the singleton. It succeeds once.
func (s *ConfigStore) Init(owner address.Canonical) error {
	existing, err := s.kv.Get(keys.ConfigKey)
	if err != nil {
		return storageErr("read config", err)
	}
	if existing != nil {
		return ErrAlreadyInitialized
	}

	data, err := json.Marshal(&types.Config{Owner: owner})
	if err != nil {
		return err
	}
	return storageErr("write config", s.kv.Set(keys.ConfigKey, data))
}

// Load returns the singleton
func (s *ConfigStore) Load() (*types.Config, error) {
	data, err := s.kv.Get(keys.ConfigKey)
	if err != nil {
		return nil, storageErr("read config", err)
	}
	if data == nil {
		return nil, ErrNotInitialized
	}

	var cfg types.Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, storageErr("decode config", err)
	}
	return &cfg, nil
}

// Owner returns the canonical address of the registry owner
func (s *ConfigStore) Owner() (address.Canonical, error) {
	cfg, err := s.Load()
	if err != nil {
		return address.Canonical{}, err
	}
	return cfg.Owner, nil
}
