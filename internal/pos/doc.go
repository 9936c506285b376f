// Package pos defines the records exchanged by the offline point-of-sale core.
//
// The types here are plain data. Pricing lives in internal/cart, persistence
// in internal/store, and the single write path for financial records in
// internal/recorder.
//
// # Ownership
//
//   - Cart derived fields (Subtotal, DiscountAmount, Tax, TipAmount, Total and
//     the per-line amounts) are only ever set by cart.ComputeTotals.
//   - OfflineTransaction is immutable after recording except for Synced, which
//     moves false → true exactly once.
//   - Customer and MenuSnapshot payloads are cached as supplied by the data
//     services; the core only inspects their timestamps.
//
// All monetary fields are money.Amount (minor currency units).
package pos
