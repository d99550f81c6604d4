/*
Package manager runs the Beacon registry as a Raft-replicated state machine.

Every mutating operation is encoded as a Command, appended to the Raft log
and applied by BeaconFSM once committed. Reads go straight to the local
BoltDB store.

# Architecture

	┌──────────────────── MANAGER NODE ────────────────────┐
	│                                                        │
	│  gRPC API (pkg/api)                                    │
	│        │                                               │
	│        ▼                                               │
	│  Manager                                               │
	│   - encodes commands, waits for the FSM result         │
	│   - publishes events after each committed change       │
	│        │                                               │
	│        ▼                                               │
	│  Raft (hashicorp/raft, raft-boltdb log + stable store) │
	│        │                                               │
	│        ▼                                               │
	│  BeaconFSM                                             │
	│   - one storage.Update transaction per command         │
	│   - snapshot = every raw key/value entry               │
	│        │                                               │
	│        ▼                                               │
	│  storage.BoltStore (beacon.db)                         │
	└────────────────────────────────────────────────────────┘

# Commands

	init               {owner}
	create_alert       {sender, request}
	subscribe_alert    {sender, request}
	unsubscribe_alert  {sender, request}

The FSM returns either the registry error or the command's result
(*types.Config, *types.Alert, *types.Subscription). A rejected command
rolls back its transaction, so it never leaves partial state.

# Replay

The registry store survives restarts next to the raft log, so each
transaction also writes the entry's index under keys.AppliedIndexKey.
Rejected commands record their index in a transaction of their own.
When raft replays its log on restart, entries at or below that index are
skipped, so a replayed command never runs against state newer than the
state it first saw. A fresh raft log (no existing state) clears the
recorded index first, since its indexes restart at 1.

# Bootstrap

Bootstrap starts a single-node cluster, waits for leadership, drains the
log with a barrier and then initializes the registry with the given
owner if no config exists yet. Restarting a node skips BootstrapCluster
when Raft already has state.

	mgr, err := manager.NewManager(&manager.Config{
		NodeID:   "beacon-1",
		BindAddr: "127.0.0.1:7946",
		DataDir:  "/var/lib/beacon",
	})
	if err != nil {
		return err
	}
	defer mgr.Shutdown()

	if err := mgr.Bootstrap(owner); err != nil {
		return err
	}

	alert, err := mgr.CreateAlert(owner, &types.CreateAlertRequest{
		Blockchain: "ethereum",
		Protocol:   "uniswap",
		Method:     "swap",
	})

Tests set Config.InMemory to run Raft over an in-process transport.

# Metrics

MetricsCollector refreshes beacon_alerts_total, beacon_subscriptions_total
and the raft gauges every 15 seconds. The FSM itself records
beacon_commands_total and beacon_command_duration_seconds.
*/
package manager
