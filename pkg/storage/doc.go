/*
Package storage provides BoltDB-backed state persistence for Beacon's registry.

The registry is written against a small capability, KV, which exposes
get/put/delete and bounded range scans in either direction over an ordered
byte-keyed space. KV values are always scoped to one transaction. Store
hands them out through View (read-only) and Update (read-write, committed
only when the callback returns nil).

# Architecture

	┌──────────────────── BOLTDB STORAGE ─────────────────────┐
	│                                                          │
	│  BoltStore                                               │
	│   - File: <dataDir>/beacon.db                            │
	│   - One bucket: state                                    │
	│   - Keys ordered bytewise (B+tree)                       │
	│                                                          │
	│  View(fn)    read tx, concurrent snapshots               │
	│  Update(fn)  write tx, serialized, rollback on error     │
	│                                                          │
	│  PrefixedKV                                              │
	│   - relative keys under a namespace prefix               │
	│   - unbounded scans clamped to [prefix, PrefixEnd)       │
	└──────────────────────────────────────────────────────────┘

# Range Semantics

Range(start, end, order, fn) visits keys k with start <= k < end. A nil
bound is unbounded. Ascending scans seek to start and walk forward;
descending scans seek to end, step back once (end is exclusive), and walk
backward until a key below start. Returning ErrStopIteration from fn ends
the scan without error.

Keys and values passed to fn are copies, since bolt memory is only valid
for the life of the transaction.

# Snapshots

Entries returns every raw pair in key order and Restore replaces the bucket
contents wholesale. The manager's raft FSM uses both for log compaction.
*/
package storage
