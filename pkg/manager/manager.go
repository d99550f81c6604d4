package manager

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/cuemby/beacon/pkg/address"
	"github.com/cuemby/beacon/pkg/events"
	"github.com/cuemby/beacon/pkg/keys"
	"github.com/cuemby/beacon/pkg/log"
	"github.com/cuemby/beacon/pkg/registry"
	"github.com/cuemby/beacon/pkg/storage"
	"github.com/cuemby/beacon/pkg/types"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"
	"github.com/rs/zerolog"
)

const (
	applyTimeout  = 5 * time.Second
	leaderTimeout = 10 * time.Second
)

// ErrNoLeader is returned by Bootstrap when no leader emerges in time
var ErrNoLeader = errors.New("timed out waiting for raft leadership")

// Manager represents a Beacon registry node
type Manager struct {
	nodeID   string
	bindAddr string
	dataDir  string
	inMemory bool

	raft        *raft.Raft
	fsm         *BeaconFSM
	store       *storage.BoltStore
	eventBroker *events.Broker
	raftClosers []io.Closer
	logger      zerolog.Logger
}

// Config holds configuration for creating a Manager
type Config struct {
	NodeID   string
	BindAddr string
	DataDir  string

	// InMemory keeps the raft log, stable store and snapshots in memory
	// and uses an in-process transport. The registry itself still lives
	// in DataDir.
	InMemory bool
}

// NewManager creates a new Manager instance
func NewManager(cfg *Config) (*Manager, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %v", err)
	}

	store, err := storage.NewBoltStore(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %v", err)
	}

	logger := log.WithComponent("manager")
	logger.Info().Str("path", store.Path()).Msg("Registry store opened")

	eventBroker := events.NewBroker()

	m := &Manager{
		nodeID:      cfg.NodeID,
		bindAddr:    cfg.BindAddr,
		dataDir:     cfg.DataDir,
		inMemory:    cfg.InMemory,
		fsm:         NewBeaconFSM(store),
		store:       store,
		eventBroker: eventBroker,
		logger:      logger,
	}

	return m, nil
}

// Bootstrap starts a single-node Raft cluster and makes sure the registry
// is initialized. owner is only used when the registry has no config yet;
// it may be zero when restarting an initialized node.
func (m *Manager) Bootstrap(owner address.Canonical) error {
	config := raft.DefaultConfig()
	config.LocalID = raft.ServerID(m.nodeID)
	config.Logger = hclog.New(&hclog.LoggerOptions{
		Name:   "raft",
		Level:  hclog.Warn,
		Output: log.WithComponent("raft"),
	})

	// Tuned for a LAN deployment: ~250ms heartbeats and sub-second elections
	config.HeartbeatTimeout = 500 * time.Millisecond
	config.ElectionTimeout = 500 * time.Millisecond
	config.CommitTimeout = 50 * time.Millisecond
	config.LeaderLeaseTimeout = 250 * time.Millisecond

	transport, logStore, stableStore, snapshotStore, err := m.raftBackends()
	if err != nil {
		return err
	}

	hasState, err := raft.HasExistingState(logStore, stableStore, snapshotStore)
	if err != nil {
		return fmt.Errorf("failed to inspect raft state: %v", err)
	}
	if !hasState {
		// A new log restarts indexes at 1; an index left in the registry
		// store by an earlier log would hide the new entries.
		if err := m.fsm.ResetAppliedIndex(); err != nil {
			return fmt.Errorf("failed to reset applied index: %v", err)
		}
	}

	r, err := raft.NewRaft(config, m.fsm, logStore, stableStore, snapshotStore, transport)
	if err != nil {
		return fmt.Errorf("failed to create raft: %v", err)
	}
	m.raft = r

	if !hasState {
		configuration := raft.Configuration{
			Servers: []raft.Server{
				{
					ID:      config.LocalID,
					Address: transport.LocalAddr(),
				},
			},
		}

		if err := m.raft.BootstrapCluster(configuration).Error(); err != nil {
			return fmt.Errorf("failed to bootstrap cluster: %v", err)
		}
	}

	if err := m.waitForLeader(leaderTimeout); err != nil {
		return err
	}

	// Replay anything still in the log before reading the registry
	if err := m.raft.Barrier(applyTimeout).Error(); err != nil {
		return fmt.Errorf("failed to apply pending log entries: %v", err)
	}

	return m.ensureInitialized(owner)
}

// raftBackends builds the transport and stores raft runs on
func (m *Manager) raftBackends() (raft.Transport, raft.LogStore, raft.StableStore, raft.SnapshotStore, error) {
	if m.inMemory {
		_, transport := raft.NewInmemTransport("")
		store := raft.NewInmemStore()
		return transport, store, store, raft.NewInmemSnapshotStore(), nil
	}

	raftLog := log.WithComponent("raft")

	addr, err := net.ResolveTCPAddr("tcp", m.bindAddr)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to resolve bind address: %v", err)
	}

	transport, err := raft.NewTCPTransport(m.bindAddr, addr, 3, 10*time.Second, raftLog)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to create transport: %v", err)
	}

	snapshotStore, err := raft.NewFileSnapshotStore(m.dataDir, 2, raftLog)
	if err != nil {
		transport.Close()
		return nil, nil, nil, nil, fmt.Errorf("failed to create snapshot store: %v", err)
	}

	logStore, err := raftboltdb.NewBoltStore(filepath.Join(m.dataDir, "raft-log.db"))
	if err != nil {
		transport.Close()
		return nil, nil, nil, nil, fmt.Errorf("failed to create log store: %v", err)
	}

	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(m.dataDir, "raft-stable.db"))
	if err != nil {
		logStore.Close()
		transport.Close()
		return nil, nil, nil, nil, fmt.Errorf("failed to create stable store: %v", err)
	}

	m.raftClosers = append(m.raftClosers, transport, logStore, stableStore)
	return transport, logStore, stableStore, snapshotStore, nil
}

func (m *Manager) waitForLeader(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for range ticker.C {
		if m.IsLeader() {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrNoLeader
		}
	}
	return ErrNoLeader
}

func (m *Manager) ensureInitialized(owner address.Canonical) error {
	cfg, err := m.Config()
	if err == nil {
		if !owner.IsZero() && cfg.Owner != owner {
			m.logger.Warn().
				Str("owner", cfg.Owner.String()).
				Str("requested_owner", owner.String()).
				Msg("Registry already initialized, ignoring requested owner")
		}
		return nil
	}
	if !errors.Is(err, registry.ErrNotInitialized) {
		return err
	}
	if owner.IsZero() {
		return fmt.Errorf("registry is not initialized: an owner address is required")
	}

	if _, err := m.Init(owner); err != nil {
		return fmt.Errorf("failed to initialize registry: %w", err)
	}
	return nil
}

// IsLeader returns true if this manager is the Raft leader
func (m *Manager) IsLeader() bool {
	if m.raft == nil {
		return false
	}
	return m.raft.State() == raft.Leader
}

// LeaderAddr returns the address of the current Raft leader
func (m *Manager) LeaderAddr() string {
	if m.raft == nil {
		return ""
	}
	addr, _ := m.raft.LeaderWithID()
	return string(addr)
}

// GetRaftStats returns Raft statistics
func (m *Manager) GetRaftStats() map[string]interface{} {
	if m.raft == nil {
		return nil
	}

	stats := make(map[string]interface{})
	stats["state"] = m.raft.State().String()
	stats["last_log_index"] = m.raft.LastIndex()
	stats["applied_index"] = m.raft.AppliedIndex()
	stats["leader"] = m.LeaderAddr()

	if future := m.raft.GetConfiguration(); future.Error() == nil {
		stats["peers"] = uint64(len(future.Configuration().Servers))
	}

	return stats
}

// GetEventBroker returns the event broker
func (m *Manager) GetEventBroker() *events.Broker {
	return m.eventBroker
}

// PublishEvent publishes an event to all subscribers
func (m *Manager) PublishEvent(event *events.Event) {
	if m.eventBroker != nil {
		m.eventBroker.Publish(event)
	}
}

// Apply submits a command to the Raft cluster and returns the FSM result
func (m *Manager) Apply(cmd Command) (interface{}, error) {
	if m.raft == nil {
		return nil, fmt.Errorf("raft not initialized")
	}

	data, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal command: %v", err)
	}

	future := m.raft.Apply(data, applyTimeout)
	if err := future.Error(); err != nil {
		return nil, fmt.Errorf("failed to apply command: %w", err)
	}

	resp := future.Response()
	if err, ok := resp.(error); ok && err != nil {
		return nil, err
	}

	return resp, nil
}

// applyAs submits op with data and type-asserts the FSM result
func applyAs[T any](m *Manager, op string, data interface{}) (*T, error) {
	cmd, err := newCommand(op, data)
	if err != nil {
		return nil, err
	}

	resp, err := m.Apply(cmd)
	if err != nil {
		return nil, err
	}

	result, ok := resp.(*T)
	if !ok {
		return nil, fmt.Errorf("unexpected %s result %T", op, resp)
	}
	return result, nil
}

// Init records owner as the registry owner
func (m *Manager) Init(owner address.Canonical) (*types.Config, error) {
	cfg, err := applyAs[types.Config](m, OpInit, initData{Owner: owner})
	if err != nil {
		return nil, err
	}

	m.logger.Info().Str("owner", owner.String()).Msg("Registry initialized")
	m.PublishEvent(events.NewEvent(events.EventRegistryInitialized, "registry initialized", map[string]string{
		"owner": owner.String(),
	}))
	return cfg, nil
}

// CreateAlert stores an alert definition on behalf of sender
func (m *Manager) CreateAlert(sender address.Canonical, req *types.CreateAlertRequest) (*types.Alert, error) {
	alert, err := applyAs[types.Alert](m, OpCreateAlert, createAlertData{Sender: sender, Request: req})
	if err != nil {
		return nil, err
	}

	logger := log.WithAlertKey(alert.Key)
	logger.Info().Str("sender", sender.String()).Msg("Alert created")
	m.PublishEvent(events.NewEvent(events.EventAlertCreated, fmt.Sprintf("alert %s created", alert.Key), map[string]string{
		"alert_key": alert.Key,
		"sender":    sender.String(),
	}))
	return alert, nil
}

// SubscribeAlert subscribes sender to an existing alert
func (m *Manager) SubscribeAlert(sender address.Canonical, req *types.SubscribeAlertRequest) (*types.Subscription, error) {
	sub, err := applyAs[types.Subscription](m, OpSubscribeAlert, subscribeAlertData{Sender: sender, Request: req})
	if err != nil {
		return nil, err
	}

	logger := log.WithSubscriber(sender.String())
	logger.Info().Str("alert_key", sub.AlertKey).Msg("Subscription created")
	m.PublishEvent(events.NewEvent(events.EventSubscriptionCreated, fmt.Sprintf("subscribed to %s", sub.AlertKey), map[string]string{
		"alert_key":  sub.AlertKey,
		"subscriber": sender.String(),
	}))
	return sub, nil
}

// UnsubscribeAlert removes sender's subscription to an alert
func (m *Manager) UnsubscribeAlert(sender address.Canonical, req *types.UnsubscribeAlertRequest) error {
	cmd, err := newCommand(OpUnsubscribeAlert, unsubscribeAlertData{Sender: sender, Request: req})
	if err != nil {
		return err
	}
	if _, err := m.Apply(cmd); err != nil {
		return err
	}

	logger := log.WithSubscriber(sender.String())
	logger.Info().Str("alert_key", req.AlertKey).Msg("Subscription deleted")
	m.PublishEvent(events.NewEvent(events.EventSubscriptionDeleted, fmt.Sprintf("unsubscribed from %s", req.AlertKey), map[string]string{
		"alert_key":  req.AlertKey,
		"subscriber": sender.String(),
	}))
	return nil
}

// view runs fn against a read-only registry (read from local store)
func (m *Manager) view(fn func(reg *registry.Registry) error) error {
	return m.store.View(func(kv storage.KV) error {
		return fn(registry.New(kv))
	})
}

// GetAlert retrieves an alert by key
func (m *Manager) GetAlert(key string) (*types.Alert, error) {
	var alert *types.Alert
	err := m.view(func(reg *registry.Registry) error {
		var err error
		alert, err = reg.GetAlert(key)
		return err
	})
	return alert, err
}

// ListAlerts returns one page of alerts
func (m *Manager) ListAlerts(page types.PageRequest) ([]*types.Alert, error) {
	var alerts []*types.Alert
	err := m.view(func(reg *registry.Registry) error {
		var err error
		alerts, err = reg.ListAlerts(page)
		return err
	})
	return alerts, err
}

// ListSubscriptions returns one page of subscriber's subscriptions
func (m *Manager) ListSubscriptions(subscriber address.Canonical, page types.PageRequest) ([]*types.Subscription, error) {
	var subs []*types.Subscription
	err := m.view(func(reg *registry.Registry) error {
		var err error
		subs, err = reg.ListSubscriptions(subscriber, page)
		return err
	})
	return subs, err
}

// Config returns the registry configuration
func (m *Manager) Config() (*types.Config, error) {
	var cfg *types.Config
	err := m.view(func(reg *registry.Registry) error {
		var err error
		cfg, err = reg.Config.Load()
		return err
	})
	return cfg, err
}

// Counts returns the number of stored alerts and subscriptions
func (m *Manager) Counts() (alerts, subscriptions int, err error) {
	err = m.view(func(reg *registry.Registry) error {
		var err error
		if alerts, err = reg.Alerts.Count(); err != nil {
			return err
		}
		subscriptions, err = reg.Subscriptions.Count()
		return err
	})
	return alerts, subscriptions, err
}

// CheckStorage verifies the registry store can serve reads
func (m *Manager) CheckStorage() error {
	return m.store.View(func(kv storage.KV) error {
		_, err := kv.Get(keys.ConfigKey)
		return err
	})
}

// Shutdown gracefully shuts down the manager
func (m *Manager) Shutdown() error {
	if m.eventBroker != nil {
		m.eventBroker.Stop()
	}

	if m.raft != nil {
		if err := m.raft.Shutdown().Error(); err != nil {
			return fmt.Errorf("failed to shutdown raft: %v", err)
		}
	}

	for _, c := range m.raftClosers {
		if err := c.Close(); err != nil {
			m.logger.Warn().Err(err).Msg("Failed to close raft backend")
		}
	}

	if m.store != nil {
		if err := m.store.Close(); err != nil {
			return fmt.Errorf("failed to close store: %v", err)
		}
	}

	return nil
}
