package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/possync/internal/pos"
)

// DefaultInterval is the periodic sync interval.
const DefaultInterval = 30 * time.Second

// Queue is the transaction store as the sync manager sees it.
type Queue interface {
	UnsyncedTransactions(ctx context.Context) ([]pos.OfflineTransaction, error)
	MarkSynced(ctx context.Context, id string, at time.Time) error
	RecordSendFailure(ctx context.Context, id string, cause error) error
	CountUnsynced(ctx context.Context) (int, error)
}

// Sender delivers one transaction to the remote endpoint.
//
// Send must be safe to repeat for the same transaction: the remote is
// expected to deduplicate by transaction id.
type Sender interface {
	Send(ctx context.Context, tx pos.OfflineTransaction) error
}

// Connectivity reports whether the remote is believed reachable.
//
// Restored delivers a value on each offline-to-online transition.
type Connectivity interface {
	Online() bool
	Restored() <-chan struct{}
}

// SkipReason explains why a cycle sent nothing.
type SkipReason string

const (
	SkipNone    SkipReason = ""
	SkipOffline SkipReason = "offline"
	SkipBusy    SkipReason = "busy"
	SkipStopped SkipReason = "stopped"
)

// CycleResult summarizes one sync cycle.
type CycleResult struct {
	Skipped    SkipReason   `json:"skipped,omitempty"`
	Sent       int          `json:"sent"`
	Failed     int          `json:"failed"`
	Remaining  int          `json:"remaining"`
	Errors     []*SendError `json:"-"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
}

// Manager runs sync cycles against a Queue.
//
// Thread-safety: all methods are safe for concurrent use. Cycles are
// serialized; concurrent triggers observe SkipBusy.
type Manager struct {
	queue       Queue
	sender      Sender
	conn        Connectivity
	interval    time.Duration
	sendTimeout time.Duration
	now         func() time.Time
	logger      *slog.Logger

	// cycle is held for the duration of a cycle. TryLock gives the skip.
	cycle   sync.Mutex
	stopped atomic.Bool

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	last    CycleResult
	hasLast bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithInterval sets the periodic sync interval. Non-positive values keep
// the default.
func WithInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithSendTimeout bounds each individual send. Zero means no bound beyond
// what the Sender enforces itself.
func WithSendTimeout(d time.Duration) Option {
	return func(m *Manager) { m.sendTimeout = d }
}

// WithClock overrides time.Now for synced_at stamps and cycle timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates a stopped Manager.
func NewManager(q Queue, s Sender, c Connectivity, opts ...Option) *Manager {
	m := &Manager{
		queue:    q,
		sender:   s,
		conn:     c,
		interval: DefaultInterval,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start launches the background loop. It runs one cycle immediately, then
// one per interval tick and one per connectivity restoration, until ctx is
// cancelled or Stop is called.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done != nil {
		return ErrAlreadyStarted
	}
	m.stopped.Store(false)

	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.loop(loopCtx, m.done)

	m.logger.Info("sync manager starting", "interval", m.interval)
	return nil
}

// Stop ends the background loop and waits for it. A send already in flight
// is allowed to finish and be marked; no new send starts afterwards. Stop is
// idempotent.
func (m *Manager) Stop() {
	m.stopped.Store(true)

	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	// Wait out a cycle started through SyncNow rather than the loop.
	m.cycle.Lock()
	m.cycle.Unlock()

	if cancel != nil {
		m.logger.Info("sync manager stopped")
	}
}

func (m *Manager) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.runCycle(ctx, "start")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.runCycle(ctx, "tick")
		case <-m.conn.Restored():
			m.runCycle(ctx, "connectivity_restored")
		}
	}
}

func (m *Manager) runCycle(ctx context.Context, trigger string) {
	res, err := m.SyncNow(ctx)
	if err != nil {
		m.logger.Error("sync cycle failed", "trigger", trigger, "error", err)
		return
	}
	if res.Skipped != SkipNone {
		m.logger.Debug("sync cycle skipped", "trigger", trigger, "reason", string(res.Skipped))
		return
	}
	if res.Sent > 0 || res.Failed > 0 {
		m.logger.Info("sync cycle finished",
			"trigger", trigger, "sent", res.Sent, "failed", res.Failed, "remaining", res.Remaining)
	}
}

// SyncNow runs one cycle and reports what it did.
//
// It returns immediately with Skipped set if the manager is stopped, the
// remote is offline, or another cycle is in flight. The returned error is
// non-nil only when the pending queue could not be read; individual send
// failures are reported in CycleResult.Errors.
func (m *Manager) SyncNow(ctx context.Context) (CycleResult, error) {
	if m.stopped.Load() {
		return CycleResult{Skipped: SkipStopped}, nil
	}
	if !m.conn.Online() {
		return CycleResult{Skipped: SkipOffline}, nil
	}
	if !m.cycle.TryLock() {
		return CycleResult{Skipped: SkipBusy}, nil
	}
	defer m.cycle.Unlock()

	res := CycleResult{StartedAt: m.now()}
	txs, err := m.queue.UnsyncedTransactions(ctx)
	if err != nil {
		return res, fmt.Errorf("load pending transactions: %w", err)
	}

	for i, tx := range txs {
		if m.stopped.Load() || ctx.Err() != nil {
			res.Remaining += len(txs) - i
			break
		}
		if err := m.syncOne(ctx, tx); err != nil {
			res.Failed++
			res.Errors = append(res.Errors, err)
			res.Remaining++
			continue
		}
		res.Sent++
	}

	res.FinishedAt = m.now()
	m.mu.Lock()
	m.last, m.hasLast = res, true
	m.mu.Unlock()
	return res, nil
}

// syncOne sends tx and marks it synced. The send and the mark run on a
// context detached from cancellation so that Stop never abandons a
// transaction between a successful send and its mark.
func (m *Manager) syncOne(ctx context.Context, tx pos.OfflineTransaction) *SendError {
	opCtx := context.WithoutCancel(ctx)
	if m.sendTimeout > 0 {
		var cancel context.CancelFunc
		opCtx, cancel = context.WithTimeout(opCtx, m.sendTimeout)
		defer cancel()
	}

	if err := m.sender.Send(opCtx, tx); err != nil {
		serr := &SendError{TransactionID: tx.ID, Attempt: tx.Attempts + 1, Err: err}
		m.logger.Warn("transaction send failed", "id", tx.ID, "attempt", serr.Attempt, "error", err)
		if rerr := m.queue.RecordSendFailure(opCtx, tx.ID, err); rerr != nil {
			m.logger.Error("failed to record send failure", "id", tx.ID, "error", rerr)
		}
		return serr
	}

	if err := m.queue.MarkSynced(opCtx, tx.ID, m.now().UTC()); err != nil {
		// Delivered but still unsynced locally: the next cycle resends it
		// and the remote deduplicates by id.
		m.logger.Error("transaction sent but not marked synced, possible duplicate",
			"id", tx.ID, "error", err)
		return &SendError{TransactionID: tx.ID, Attempt: tx.Attempts + 1, Err: fmt.Errorf("mark synced: %w", err)}
	}

	m.logger.Debug("transaction synced", "id", tx.ID, "total", tx.Cart.Total.String())
	return nil
}

// Pending returns the number of unsynced transactions.
func (m *Manager) Pending(ctx context.Context) (int, error) {
	return m.queue.CountUnsynced(ctx)
}

// Online reports the connectivity signal the manager is using.
func (m *Manager) Online() bool {
	return m.conn.Online()
}

// LastCycle returns the most recent completed (not skipped) cycle.
func (m *Manager) LastCycle() (CycleResult, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last, m.hasLast
}
