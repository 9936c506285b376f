// Package store provides SQLite-backed durable storage for the POS terminal.
//
// The store holds four record kinds:
//   - transactions: recorded sales, pending or synced
//   - carts: orders in progress
//   - customers: cached customer directory entries
//   - menu_snapshots: the single cached menu
//
// Each kind has one primary key (id) and zero or more secondary indexes:
// transactions by synced and captured_at, customers by phone and email,
// carts by updated_at. Put, Get, QueryByIndex and Delete work across all
// kinds; the typed helpers (PutTransaction, MarkSynced, SearchCustomers, ...)
// are thin wrappers over the same tables.
//
// # Records
//
// Every row stores the full record as JSON in a data column. Index columns
// mirror fields of that document and are written by the same statement, so
// they never disagree with it. Sync-state changes use json_set so the
// document stays the source of truth.
//
// # Transaction immutability
//
// A transaction's business content is written once. Later writes can only
// move synced from false to true (MarkSynced, or PutTransaction with
// Synced=true); nothing moves it back.
//
// # Schema versions
//
// Open is idempotent. The schema version lives in PRAGMA user_version and
// each migration step runs once, in its own transaction, when an older
// database is opened.
//
// # Errors
//
// Failures are *Error values with a Code: CodeUnavailable when the database
// cannot be opened or written (disk full, corrupt, read-only, closed),
// CodeNotFound for missing keys, CodeInvalid for rejected input. Use
// IsUnavailable and IsNotFound to branch.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - one open connection: writes are serialized
package store
