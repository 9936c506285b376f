// Package syncer uploads recorded transactions to the remote endpoint.
//
// A Manager drains the unsynced queue one transaction at a time, oldest
// first, and marks each synced only after the remote accepted it. Delivery
// is at-least-once: if the process dies, or the mark fails, between a
// successful send and MarkSynced, the transaction is sent again on the next
// cycle. Senders therefore pass the transaction id as a deduplication key
// (the Idempotency-Key header for HTTP, the message key for Kafka).
//
// Cycles are triggered by a ticker, by connectivity being restored, and by
// SyncNow. At most one cycle runs at a time; a trigger that arrives while a
// cycle is in flight is skipped, not queued.
//
// Send failures never stop a cycle. Each is logged as a *SendError, recorded
// on the transaction (attempt counter and last error), and retried on the
// next cycle.
package syncer
