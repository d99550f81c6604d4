package manager

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/cuemby/beacon/pkg/address"
	"github.com/cuemby/beacon/pkg/keys"
	"github.com/cuemby/beacon/pkg/log"
	"github.com/cuemby/beacon/pkg/metrics"
	"github.com/cuemby/beacon/pkg/registry"
	"github.com/cuemby/beacon/pkg/storage"
	"github.com/cuemby/beacon/pkg/types"
	"github.com/hashicorp/raft"
)

// Command operations understood by the FSM
const (
	OpInit             = "init"
	OpCreateAlert      = "create_alert"
	OpSubscribeAlert   = "subscribe_alert"
	OpUnsubscribeAlert = "unsubscribe_alert"
)

// Command represents a state change operation in the Raft log
type Command struct {
	Op   string          `json:"op"`
	Data json.RawMessage `json:"data"`
}

// initData is the payload of an init command
type initData struct {
	Owner address.Canonical `json:"owner"`
}

// createAlertData is the payload of a create_alert command
type createAlertData struct {
	Sender  address.Canonical         `json:"sender"`
	Request *types.CreateAlertRequest `json:"request"`
}

// subscribeAlertData is the payload of a subscribe_alert command
type subscribeAlertData struct {
	Sender  address.Canonical            `json:"sender"`
	Request *types.SubscribeAlertRequest `json:"request"`
}

// unsubscribeAlertData is the payload of an unsubscribe_alert command
type unsubscribeAlertData struct {
	Sender  address.Canonical              `json:"sender"`
	Request *types.UnsubscribeAlertRequest `json:"request"`
}

// newCommand encodes data as the payload of op
func newCommand(op string, data interface{}) (Command, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Command{}, fmt.Errorf("failed to marshal %s payload: %w", op, err)
	}
	return Command{Op: op, Data: raw}, nil
}

// BeaconFSM implements the Raft Finite State Machine for the alert registry.
// Every command runs inside a single storage transaction, so a command that
// fails leaves no trace in the store.
//
// The store outlives the raft log, so it also records the index of the
// last entry it has seen. Entries at or below that index are skipped when
// raft replays its log on restart: replaying them against the current
// state could turn a command that was rejected into one that succeeds.
type BeaconFSM struct {
	mu    sync.RWMutex
	store storage.Store
}

// NewBeaconFSM creates a new FSM instance
func NewBeaconFSM(store storage.Store) *BeaconFSM {
	return &BeaconFSM{
		store: store,
	}
}

// Apply applies a Raft log entry to the FSM.
// The returned value is either an error or the command's result. Entries
// already reflected in the store return nil.
func (f *BeaconFSM) Apply(entry *raft.Log) interface{} {
	var cmd Command
	if err := json.Unmarshal(entry.Data, &cmd); err != nil {
		return fmt.Errorf("failed to unmarshal command: %v", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	applied, err := f.appliedIndex()
	if err != nil {
		return err
	}
	if entry.Index <= applied {
		log.Logger.Debug().
			Uint64("index", entry.Index).
			Uint64("applied_index", applied).
			Str("op", cmd.Op).
			Msg("Skipping raft entry already in store")
		return nil
	}

	timer := metrics.NewTimer()
	result, err := f.apply(entry.Index, cmd)
	timer.ObserveDurationVec(metrics.CommandDuration, cmd.Op)
	metrics.CommandsTotal.WithLabelValues(cmd.Op, commandResult(err)).Inc()

	if err != nil {
		return err
	}
	return result
}

// apply runs cmd and records index in the same transaction. A rejected
// command rolls back, so its index is recorded on its own afterwards.
func (f *BeaconFSM) apply(index uint64, cmd Command) (interface{}, error) {
	result, err := f.run(index, cmd)
	if err == nil {
		return result, nil
	}

	if markErr := f.store.Update(func(kv storage.KV) error {
		return setAppliedIndex(kv, index)
	}); markErr != nil {
		log.Logger.Warn().Err(markErr).Uint64("index", index).Msg("Failed to record applied index")
	}
	return nil, err
}

func (f *BeaconFSM) run(index uint64, cmd Command) (result interface{}, err error) {
	err = f.store.Update(func(kv storage.KV) error {
		var err error
		if result, err = dispatch(registry.New(kv), cmd); err != nil {
			return err
		}
		return setAppliedIndex(kv, index)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func dispatch(reg *registry.Registry, cmd Command) (interface{}, error) {
	switch cmd.Op {
	case OpInit:
		var data initData
		if err := json.Unmarshal(cmd.Data, &data); err != nil {
			return nil, err
		}
		if err := reg.Init(data.Owner); err != nil {
			return nil, err
		}
		return &types.Config{Owner: data.Owner}, nil

	case OpCreateAlert:
		var data createAlertData
		if err := json.Unmarshal(cmd.Data, &data); err != nil {
			return nil, err
		}
		return reg.CreateAlert(data.Sender, data.Request)

	case OpSubscribeAlert:
		var data subscribeAlertData
		if err := json.Unmarshal(cmd.Data, &data); err != nil {
			return nil, err
		}
		return reg.SubscribeAlert(data.Sender, data.Request)

	case OpUnsubscribeAlert:
		var data unsubscribeAlertData
		if err := json.Unmarshal(cmd.Data, &data); err != nil {
			return nil, err
		}
		return nil, reg.UnsubscribeAlert(data.Sender, data.Request)

	default:
		return nil, fmt.Errorf("unknown command: %s", cmd.Op)
	}
}

// AppliedIndex returns the last raft index recorded in the store
func (f *BeaconFSM) AppliedIndex() (uint64, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.appliedIndex()
}

// ResetAppliedIndex forgets the recorded index. It is used when raft
// starts from an empty log, whose indexes begin again at 1.
func (f *BeaconFSM) ResetAppliedIndex() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.store.Update(func(kv storage.KV) error {
		return kv.Delete(keys.AppliedIndexKey)
	})
}

func (f *BeaconFSM) appliedIndex() (index uint64, err error) {
	err = f.store.View(func(kv storage.KV) error {
		v, err := kv.Get(keys.AppliedIndexKey)
		if err != nil || v == nil {
			return err
		}
		if len(v) != 8 {
			return fmt.Errorf("corrupt applied index: %d bytes", len(v))
		}
		index = binary.BigEndian.Uint64(v)
		return nil
	})
	return index, err
}

func setAppliedIndex(kv storage.KV, index uint64) error {
	v := make([]byte, 8)
	binary.BigEndian.PutUint64(v, index)
	return kv.Set(keys.AppliedIndexKey, v)
}

// commandResult labels a command outcome for metrics
func commandResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, registry.ErrUnauthorized),
		errors.Is(err, registry.ErrNotFound),
		errors.Is(err, registry.ErrNotInitialized),
		errors.Is(err, registry.ErrAlreadyInitialized),
		registry.IsValidation(err):
		return "rejected"
	default:
		return "error"
	}
}

// Snapshot creates a point-in-time snapshot of the FSM
// This is called periodically by Raft to compact the log
func (f *BeaconFSM) Snapshot() (raft.FSMSnapshot, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	entries, err := f.store.Entries()
	if err != nil {
		return nil, fmt.Errorf("failed to read entries: %v", err)
	}

	return &BeaconSnapshot{Entries: entries}, nil
}

// Restore replaces the FSM state with a snapshot
// This is called when a node restarts or joins the cluster
func (f *BeaconFSM) Restore(rc io.ReadCloser) error {
	defer rc.Close()

	var snapshot BeaconSnapshot
	if err := json.NewDecoder(rc).Decode(&snapshot); err != nil {
		return fmt.Errorf("failed to decode snapshot: %v", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.store.Restore(snapshot.Entries); err != nil {
		return fmt.Errorf("failed to restore entries: %v", err)
	}
	return nil
}

// BeaconSnapshot represents a point-in-time copy of every stored entry
type BeaconSnapshot struct {
	Entries []storage.Entry `json:"entries"`
}

// Persist writes the snapshot to the given SnapshotSink
func (s *BeaconSnapshot) Persist(sink raft.SnapshotSink) error {
	err := func() error {
		if err := json.NewEncoder(sink).Encode(s); err != nil {
			return err
		}
		return sink.Close()
	}()

	if err != nil {
		sink.Cancel()
	}

	return err
}

// Release releases the snapshot resources
func (s *BeaconSnapshot) Release() {}
