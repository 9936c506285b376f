// Package recorder is the single write path for financial records.
//
// Record freezes a priced cart together with its payment result into an
// OfflineTransaction and persists it unsynced. Storage failures are returned
// to the caller: a sale that cannot be written durably must not be reported
// as recorded.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/possync/internal/cart"
	"github.com/roach88/possync/internal/money"
	"github.com/roach88/possync/internal/pos"
	"github.com/roach88/possync/internal/store"
)

// Errors returned by Record before anything is written.
var (
	ErrEmptyCart   = errors.New("cart has no items")
	ErrUnderpaid   = errors.New("payment amount is less than cart total")
	ErrNoPaymentID = errors.New("payment result has no transaction id")
)

// Store is the subset of store.Store the recorder writes to.
type Store interface {
	PutTransaction(ctx context.Context, tx pos.OfflineTransaction) error
	PutCustomer(ctx context.Context, c pos.Customer) error
	DeleteCart(ctx context.Context, id string) error
}

// Recorder persists completed sales.
type Recorder struct {
	store      Store
	taxRate    money.Rate
	terminalID string
	ids        IDGenerator
	now        func() time.Time
	logger     *slog.Logger
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithIDGenerator overrides the default UUIDv7 ids.
func WithIDGenerator(g IDGenerator) Option {
	return func(r *Recorder) { r.ids = g }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Recorder) { r.logger = l }
}

// WithTerminalID stamps recorded transactions with the terminal that took them.
func WithTerminalID(id string) Option {
	return func(r *Recorder) { r.terminalID = id }
}

// New creates a Recorder that verifies carts against taxRate.
func New(s Store, taxRate money.Rate, opts ...Option) *Recorder {
	r := &Recorder{
		store:   s,
		taxRate: taxRate,
		ids:     UUIDv7Generator{},
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// TaxRate is the rate carts must be priced at.
func (r *Recorder) TaxRate() money.Rate {
	return r.taxRate
}

// Record freezes c, payment and customer into a new unsynced transaction and
// persists it.
//
// The cart must already be priced with cart.ComputeTotals at the recorder's
// tax rate; a cart whose totals do not match its contents is rejected. The
// returned transaction shares no memory with the arguments.
//
// After the transaction is durable, the customer is cached and the cart in
// progress is deleted. Those follow-ups are best effort: their failures are
// logged, never returned, because the sale itself is already safe.
func (r *Recorder) Record(ctx context.Context, c pos.Cart, payment pos.PaymentResult, customer *pos.Customer) (pos.OfflineTransaction, error) {
	if len(c.Items) == 0 {
		return pos.OfflineTransaction{}, ErrEmptyCart
	}
	if err := cart.VerifyTotals(c, r.taxRate); err != nil {
		return pos.OfflineTransaction{}, err
	}
	if payment.TransactionID == "" {
		return pos.OfflineTransaction{}, ErrNoPaymentID
	}
	if payment.Amount < c.Total {
		return pos.OfflineTransaction{}, fmt.Errorf("%w: paid %s, total %s", ErrUnderpaid, payment.Amount, c.Total)
	}

	now := r.now().UTC()
	tx := pos.OfflineTransaction{
		ID:         r.ids.Generate(),
		TerminalID: r.terminalID,
		Cart:       c.Clone(),
		Payment:    payment,
		CapturedAt: now,
		Synced:     false,
	}
	if tx.Payment.ProcessedAt.IsZero() {
		tx.Payment.ProcessedAt = now
	}
	if customer != nil {
		snap := customer.Clone()
		tx.Customer = &snap
		if tx.Cart.CustomerID == "" {
			tx.Cart.CustomerID = snap.ID
		}
	}

	if err := r.store.PutTransaction(ctx, tx); err != nil {
		if store.IsUnavailable(err) {
			r.logger.Error("offline storage unavailable, sale not recorded",
				"cart_id", c.ID, "total", c.Total.String(), "error", err)
		}
		return pos.OfflineTransaction{}, fmt.Errorf("record transaction: %w", err)
	}

	r.logger.Info("transaction recorded",
		"id", tx.ID, "cart_id", c.ID, "total", c.Total.String(), "items", c.ItemCount())

	if tx.Customer != nil {
		r.cacheCustomer(ctx, *tx.Customer, c.Total, now)
	}
	if c.ID != "" {
		if err := r.store.DeleteCart(ctx, c.ID); err != nil && !store.IsNotFound(err) {
			r.logger.Warn("failed to clear cart after checkout", "cart_id", c.ID, "error", err)
		}
	}

	return tx, nil
}

// cacheCustomer refreshes the directory entry with this visit.
func (r *Recorder) cacheCustomer(ctx context.Context, c pos.Customer, spent money.Amount, at time.Time) {
	c.VisitCount++
	c.TotalSpent += spent
	c.LastVisit = &at
	c.UpdatedAt = at
	if err := r.store.PutCustomer(ctx, c); err != nil {
		r.logger.Warn("failed to cache customer", "customer_id", c.ID, "error", err)
	}
}
