package manager

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/cuemby/beacon/pkg/address"
	"github.com/cuemby/beacon/pkg/registry"
	"github.com/cuemby/beacon/pkg/storage"
	"github.com/cuemby/beacon/pkg/types"
	"github.com/hashicorp/raft"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memorySink is a raft.SnapshotSink backed by a buffer
type memorySink struct {
	bytes.Buffer
	closed    bool
	cancelled bool
}

func (s *memorySink) ID() string    { return "test" }
func (s *memorySink) Close() error  { s.closed = true; return nil }
func (s *memorySink) Cancel() error { s.cancelled = true; return nil }

func newTestFSM(t *testing.T) (*BeaconFSM, *storage.BoltStore) {
	t.Helper()
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return NewBeaconFSM(store), store
}

// applyCommand applies op as the entry following the last applied one
func applyCommand(t *testing.T, fsm *BeaconFSM, op string, data interface{}) interface{} {
	t.Helper()
	applied, err := fsm.AppliedIndex()
	require.NoError(t, err)
	return applyAt(t, fsm, applied+1, op, data)
}

func applyAt(t *testing.T, fsm *BeaconFSM, index uint64, op string, data interface{}) interface{} {
	t.Helper()
	cmd, err := newCommand(op, data)
	require.NoError(t, err)
	raw, err := json.Marshal(cmd)
	require.NoError(t, err)
	return fsm.Apply(&raft.Log{Index: index, Data: raw})
}

func TestFSMApply(t *testing.T) {
	fsm, _ := newTestFSM(t)
	owner := mustRandom(t)

	resp := applyCommand(t, fsm, OpInit, initData{Owner: owner})
	cfg, ok := resp.(*types.Config)
	require.True(t, ok, "unexpected response %v", resp)
	assert.Equal(t, owner, cfg.Owner)

	resp = applyCommand(t, fsm, OpInit, initData{Owner: owner})
	err, ok := resp.(error)
	require.True(t, ok)
	assert.True(t, errors.Is(err, registry.ErrAlreadyInitialized))

	resp = applyCommand(t, fsm, OpCreateAlert, createAlertData{Sender: owner, Request: swapRequest()})
	alert, ok := resp.(*types.Alert)
	require.True(t, ok, "unexpected response %v", resp)
	assert.Equal(t, "eth.uniswap.swap", alert.Key)
}

func TestFSMApplyInvalidCommands(t *testing.T) {
	fsm, _ := newTestFSM(t)

	resp := fsm.Apply(&raft.Log{Data: []byte("not json")})
	_, ok := resp.(error)
	assert.True(t, ok)

	resp = applyCommand(t, fsm, "drop_everything", struct{}{})
	err, ok := resp.(error)
	require.True(t, ok)
	assert.Contains(t, err.Error(), "unknown command")
}

func TestFSMSnapshotRestore(t *testing.T) {
	fsm, store := newTestFSM(t)
	owner := mustRandom(t)
	alice := mustRandom(t)

	applyCommand(t, fsm, OpInit, initData{Owner: owner})
	applyCommand(t, fsm, OpCreateAlert, createAlertData{Sender: owner, Request: swapRequest()})
	applyCommand(t, fsm, OpSubscribeAlert, subscribeAlertData{
		Sender: alice,
		Request: &types.SubscribeAlertRequest{
			AlertKey:    "eth.uniswap.swap",
			FieldValues: []types.SubscriptionFieldValue{{Key: "token", Value: "DAI"}},
		},
	})

	snap, err := fsm.Snapshot()
	require.NoError(t, err)

	sink := &memorySink{}
	require.NoError(t, snap.Persist(sink))
	snap.Release()
	assert.True(t, sink.closed)
	assert.False(t, sink.cancelled)

	restored, restoredStore := newTestFSM(t)
	// Pre-existing state must be replaced, not merged
	applyCommand(t, restored, OpInit, initData{Owner: alice})
	require.NoError(t, restored.Restore(io.NopCloser(&sink.Buffer)))

	want, err := store.Entries()
	require.NoError(t, err)
	got, err := restoredStore.Entries()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	err = restoredStore.View(func(kv storage.KV) error {
		owner2, err := registry.New(kv).Config.Owner()
		require.NoError(t, err)
		assert.Equal(t, owner, owner2)
		return nil
	})
	require.NoError(t, err)
}

func TestFSMSkipsEntriesAlreadyApplied(t *testing.T) {
	fsm, _ := newTestFSM(t)
	owner := mustRandom(t)
	alice := mustRandom(t)

	subscribe := subscribeAlertData{
		Sender: alice,
		Request: &types.SubscribeAlertRequest{
			AlertKey:    "eth.uniswap.swap",
			FieldValues: []types.SubscriptionFieldValue{{Key: "token", Value: "DAI"}},
		},
	}

	applyAt(t, fsm, 1, OpInit, initData{Owner: owner})

	// Rejected: the alert does not exist yet
	resp := applyAt(t, fsm, 2, OpSubscribeAlert, subscribe)
	err, ok := resp.(error)
	require.True(t, ok, "unexpected response %v", resp)
	assert.True(t, errors.Is(err, registry.ErrNotFound))

	applied, err := fsm.AppliedIndex()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), applied, "rejected entries still advance the index")

	resp = applyAt(t, fsm, 3, OpCreateAlert, createAlertData{Sender: owner, Request: swapRequest()})
	_, ok = resp.(*types.Alert)
	require.True(t, ok, "unexpected response %v", resp)

	// Replaying the log must not re-run the rejected subscription against
	// the newer state
	for i, cmd := range []struct {
		op   string
		data interface{}
	}{
		{OpInit, initData{Owner: alice}},
		{OpSubscribeAlert, subscribe},
		{OpCreateAlert, createAlertData{Sender: owner, Request: swapRequest()}},
	} {
		assert.Nil(t, applyAt(t, fsm, uint64(i+1), cmd.op, cmd.data))
	}

	applied, err = fsm.AppliedIndex()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), applied)

	err = fsm.store.View(func(kv storage.KV) error {
		reg := registry.New(kv)
		subs, err := reg.ListSubscriptions(alice, types.PageRequest{})
		require.NoError(t, err)
		assert.Empty(t, subs)

		cfg, err := reg.Config.Load()
		require.NoError(t, err)
		assert.Equal(t, owner, cfg.Owner)
		return nil
	})
	require.NoError(t, err)
}

func TestFSMResetAppliedIndex(t *testing.T) {
	fsm, _ := newTestFSM(t)
	owner := mustRandom(t)

	applyAt(t, fsm, 7, OpInit, initData{Owner: owner})
	applied, err := fsm.AppliedIndex()
	require.NoError(t, err)
	assert.Equal(t, uint64(7), applied)

	require.NoError(t, fsm.ResetAppliedIndex())
	applied, err = fsm.AppliedIndex()
	require.NoError(t, err)
	assert.Zero(t, applied)

	resp := applyAt(t, fsm, 1, OpCreateAlert, createAlertData{Sender: owner, Request: swapRequest()})
	_, ok := resp.(*types.Alert)
	assert.True(t, ok, "unexpected response %v", resp)
}

func TestCommandResult(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"ok", nil, "ok"},
		{"unauthorized", registry.ErrUnauthorized, "rejected"},
		{"wrapped not found", fmt.Errorf("%w: alert", registry.ErrNotFound), "rejected"},
		{"validation", &registry.ValidationError{Msg: "missing field token"}, "rejected"},
		{"already initialized", registry.ErrAlreadyInitialized, "rejected"},
		{"storage", &registry.StorageError{Op: "get", Err: errors.New("disk")}, "error"},
		{"other", errors.New("boom"), "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, commandResult(tt.err))
		})
	}
}

func TestCommandPayloadUsesHumanAddresses(t *testing.T) {
	owner := address.MustParse("0x0102030405060708090a0b0c0d0e0f1011121314")
	cmd, err := newCommand(OpInit, initData{Owner: owner})
	require.NoError(t, err)
	assert.JSONEq(t, fmt.Sprintf(`{"owner":%q}`, owner.String()), string(cmd.Data))
}
