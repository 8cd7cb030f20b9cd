// Package store provides SQLite-backed durable storage for the case
// register.
//
// The store owns three tables:
//   - cases: one row per legal matter, with an optimistic-lock version column
//   - case_counters: last issued sequence number per family (and year)
//   - settings: key/value configuration entries
//
// # Critical Patterns
//
// Single transaction per logical operation
//   - Every mutation path runs inside exactly one WithTx call
//   - No transaction is held open across network or file I/O
//
// Optimistic versioning
//   - Updates carry WHERE id = ? AND version = ?, so the engine itself
//     enforces the version check atomically
//
// Counter atomicity
//   - Counter rows advance only via single-statement increment-and-return
//     updates inside the transaction that consumes the number
//
// Constraint-backed uniqueness
//   - UNIQUE indexes on cases.reference and cases.external_ref are the
//     enforcement mechanism; application-level checks only improve error
//     messages
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//   - cache_size=-8192, temp_store=MEMORY: keep hot pages and temp
//     tables off disk
package store
