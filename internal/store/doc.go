// Package store provides the SQLite-backed injection ledger.
//
// The ledger is append-mostly:
//   - Attempts: one row per scheduled event the engine started on, updated
//     once with its terminal outcome
//   - Transitions: every state change, ordered by a monotonic seq
//   - Tracking entries and annotations: the local stand-in for the external
//     event-tracking service
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes (the history command reads
//     while a node is running)
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// The ledger is an audit trail only. The engine never reads it back to make
// decisions; the in-memory schedule is the single source of truth for a run.
package store
