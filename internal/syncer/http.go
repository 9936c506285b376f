package syncer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/roach88/possync/internal/pos"
)

// IdempotencyKeyHeader carries the transaction id on every upload.
const IdempotencyKeyHeader = "Idempotency-Key"

// HTTPSender POSTs transactions as JSON to a single endpoint.
//
// Calls go through a circuit breaker: after a run of consecutive failures
// the breaker opens and Send fails fast with gobreaker.ErrOpenState until
// the cooldown elapses. Fast failures are still send failures, so the
// transaction stays unsynced and is retried on a later cycle.
type HTTPSender struct {
	endpoint string
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker[struct{}]
}

// HTTPOption configures an HTTPSender.
type HTTPOption func(*httpConfig)

type httpConfig struct {
	client    *http.Client
	threshold uint32
	cooldown  time.Duration
	logger    *slog.Logger
}

// WithHTTPClient overrides the HTTP client. Default: 10s timeout.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(cfg *httpConfig) { cfg.client = c }
}

// WithBreaker sets how many consecutive failures open the breaker and how
// long it stays open. Defaults: 5 failures, 30s.
func WithBreaker(threshold uint32, cooldown time.Duration) HTTPOption {
	return func(cfg *httpConfig) {
		cfg.threshold = threshold
		cfg.cooldown = cooldown
	}
}

// WithBreakerLogger sets the logger for breaker state changes.
func WithBreakerLogger(l *slog.Logger) HTTPOption {
	return func(cfg *httpConfig) { cfg.logger = l }
}

// NewHTTPSender creates a sender for endpoint.
func NewHTTPSender(endpoint string, opts ...HTTPOption) *HTTPSender {
	cfg := httpConfig{
		client:    &http.Client{Timeout: 10 * time.Second},
		threshold: 5,
		cooldown:  30 * time.Second,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.threshold == 0 {
		cfg.threshold = 1
	}

	logger := cfg.logger
	threshold := cfg.threshold
	breaker := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "sync-endpoint",
		MaxRequests: 1,
		Timeout:     cfg.cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("sync endpoint circuit breaker state changed",
				"breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &HTTPSender{endpoint: endpoint, client: cfg.client, breaker: breaker}
}

// Send uploads tx. 2xx and 409 Conflict (already received) count as
// delivered; anything else is a *RemoteError.
func (s *HTTPSender) Send(ctx context.Context, tx pos.OfflineTransaction) error {
	_, err := s.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, s.post(ctx, tx)
	})
	return err
}

// State returns the breaker state, for status reporting.
func (s *HTTPSender) State() gobreaker.State {
	return s.breaker.State()
}

func (s *HTTPSender) post(ctx context.Context, tx pos.OfflineTransaction) error {
	body, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("encode transaction: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(IdempotencyKeyHeader, tx.ID)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 == 2 || resp.StatusCode == http.StatusConflict {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &RemoteError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
}
