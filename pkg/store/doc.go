// Package store persists warren's explorer state in Redis.
//
// # Overview
//
// Two independent channels are kept apart:
//
// Session records hold everything one operator sees: the orchestrator's
// population, the batch size, the viewport position, the selected history
// step and the full list of step snapshots. A record is created on first
// contact, rewritten atomically after every request and never deleted.
//
// The checkpoint is global and session independent. It is three slots
// (recycled genomes, the elite map and the archive history) written together
// and loaded together; a checkpoint with any slot missing is not loadable.
//
// # Namespacing
//
// All keys and channels are prefixed with warren:{namespace} so several
// explorers can share one Redis server.
//
//	Session:        warren:{ns}:session:{id}           (hash)
//	Session steps:  warren:{ns}:session:{id}:steps     (list)
//	Session lock:   warren:{ns}:session:{id}:lock      (string, PX ttl)
//	Session events: warren:{ns}:session:{id}:events    (pub/sub)
//	Checkpoint:     warren:{ns}:checkpoint:{slot}      (string)
//
// # Serialization
//
// Every blob is wrapped in a versioned envelope:
//
//	{"kind": "snapshot", "version": 1, "data": {...}}
//
// Readers reject envelopes of the wrong kind or a newer version with
// qd.ErrPersistence and ignore unknown fields inside data.
//
// # Concurrency
//
// A session is mutated by at most one request at a time, enforced by a
// per-session lock (SET NX PX with a random token, released by a
// compare-and-delete script). The Client itself is safe for concurrent use.
package store
