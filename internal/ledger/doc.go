// Package ledger is the system of record for cross-repository learnings.
//
// Each learning is keyed by its content fingerprint (see the fingerprint
// package) so the same advice recorded twice merges into one row. The
// ledger tracks which repositories have independently surfaced a
// fingerprint; when the set reaches the configured threshold, the
// learning becomes a candidate for promotion to the global knowledge
// file.
//
// # Lifecycle
//
// A learning starts pending. Counters and the repository set only grow.
// The pending -> promoted transition happens exactly once and never
// reverses; every MarkPromoted call, including repeats, appends an
// immutable Promotion audit record.
//
// # Storage
//
// State lives in an embedded SQLite database (modernc.org/sqlite, pure
// Go). Writers serialize through a single connection and the
// read-modify-write in RecordLearning runs inside a transaction, so
// concurrent invocations from different repositories cannot lose an
// increment or a repository insertion.
package ledger
