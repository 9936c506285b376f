// Package retention deletes synced transactions once they age out.
//
// A transaction is eligible only when it is synced and was captured before
// now minus the retention window. Unsynced transactions are never touched,
// however old: the store refuses to delete them even if asked.
package retention

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/possync/internal/store"
)

// Defaults for Run.
const (
	DefaultWindow   = 30 * 24 * time.Hour
	DefaultInterval = 24 * time.Hour
)

// Store is the subset of store.Store the sweeper needs.
type Store interface {
	SweepCandidates(ctx context.Context, cutoff time.Time) ([]string, error)
	DeleteSyncedTransaction(ctx context.Context, id string) error
}

// SweepError is one transaction that could not be deleted.
// It is logged and collected; it never aborts a sweep.
type SweepError struct {
	TransactionID string
	Err           error
}

// Error implements the error interface.
func (e *SweepError) Error() string {
	return fmt.Sprintf("SWEEP_FAILED: transaction %s: %v", e.TransactionID, e.Err)
}

// Unwrap returns the underlying error.
func (e *SweepError) Unwrap() error {
	return e.Err
}

// IsSweepError returns true if err is, or wraps, a *SweepError.
func IsSweepError(err error) bool {
	var se *SweepError
	return errors.As(err, &se)
}

// Result summarizes one sweep.
type Result struct {
	Cutoff   time.Time     `json:"cutoff"`
	Deleted  int           `json:"deleted"`
	Failures []*SweepError `json:"-"`
}

// Sweeper runs retention sweeps.
type Sweeper struct {
	store    Store
	window   time.Duration
	interval time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithWindow sets the retention window used by Run.
func WithWindow(d time.Duration) Option {
	return func(s *Sweeper) {
		if d > 0 {
			s.window = d
		}
	}
}

// WithInterval sets how often Run sweeps.
func WithInterval(d time.Duration) Option {
	return func(s *Sweeper) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) { s.now = now }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Sweeper) { s.logger = l }
}

// New creates a Sweeper.
func New(st Store, opts ...Option) *Sweeper {
	s := &Sweeper{
		store:    st,
		window:   DefaultWindow,
		interval: DefaultInterval,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Window is the retention window Run uses.
func (s *Sweeper) Window() time.Duration {
	return s.window
}

// Sweep deletes every synced transaction captured before now - window.
//
// The returned error is non-nil only if the candidates could not be listed.
// Per-transaction failures are logged and returned in Result.Failures. A
// candidate that disappeared before its delete is not a failure.
func (s *Sweeper) Sweep(ctx context.Context, window time.Duration) (Result, error) {
	if window < 0 {
		return Result{}, fmt.Errorf("retention window must not be negative: %s", window)
	}
	res := Result{Cutoff: s.now().UTC().Add(-window)}

	ids, err := s.store.SweepCandidates(ctx, res.Cutoff)
	if err != nil {
		return res, fmt.Errorf("list sweep candidates: %w", err)
	}

	for _, id := range ids {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		err := s.store.DeleteSyncedTransaction(ctx, id)
		switch {
		case err == nil:
			res.Deleted++
		case store.IsNotFound(err):
		default:
			serr := &SweepError{TransactionID: id, Err: err}
			s.logger.Warn("retention sweep failed to delete transaction", "id", id, "error", err)
			res.Failures = append(res.Failures, serr)
		}
	}

	if res.Deleted > 0 || len(res.Failures) > 0 {
		s.logger.Info("retention sweep finished",
			"cutoff", res.Cutoff, "deleted", res.Deleted, "failed", len(res.Failures))
	}
	return res, nil
}

// Run sweeps once immediately and then once per interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Sweeper) runOnce(ctx context.Context) {
	if _, err := s.Sweep(ctx, s.window); err != nil && ctx.Err() == nil {
		s.logger.Error("retention sweep failed", "error", err)
	}
}
