// Package connectivity tracks whether the remote side is reachable.
//
// Both implementations satisfy syncer.Connectivity: Online reports the
// current belief, and Restored delivers one value per offline-to-online
// transition. Restored notifications coalesce; a reader that falls behind
// sees at most one pending edge.
package connectivity

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// signal is a coalescing edge notifier.
type signal struct {
	ch chan struct{}
}

func newSignal() signal {
	return signal{ch: make(chan struct{}, 1)}
}

func (s signal) fire() {
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

// Static is a manually driven connectivity source, for tests and for
// terminals configured without a health endpoint.
type Static struct {
	mu       sync.Mutex
	online   bool
	restored signal
}

// NewStatic creates a Static in the given state.
func NewStatic(online bool) *Static {
	return &Static{online: online, restored: newSignal()}
}

// Online reports the current state.
func (s *Static) Online() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online
}

// Restored fires on each Set(true) that follows an offline state.
func (s *Static) Restored() <-chan struct{} {
	return s.restored.ch
}

// Set changes the state.
func (s *Static) Set(online bool) {
	s.mu.Lock()
	was := s.online
	s.online = online
	s.mu.Unlock()
	if online && !was {
		s.restored.fire()
	}
}

// Prober decides connectivity by polling a health URL.
//
// A probe succeeds on any 2xx response. The prober starts offline and
// flips on the first successful probe, so a terminal that boots with the
// network up fires one Restored edge straight away.
type Prober struct {
	url      string
	client   *http.Client
	interval time.Duration
	logger   *slog.Logger

	mu       sync.Mutex
	online   bool
	lastErr  error
	restored signal
}

// ProberOption configures a Prober.
type ProberOption func(*Prober)

// WithProbeInterval sets the polling interval. Default: 10s.
func WithProbeInterval(d time.Duration) ProberOption {
	return func(p *Prober) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithProbeClient overrides the HTTP client. Default: 3s timeout.
func WithProbeClient(c *http.Client) ProberOption {
	return func(p *Prober) { p.client = c }
}

// WithProbeLogger sets the logger. Default: slog.Default().
func WithProbeLogger(l *slog.Logger) ProberOption {
	return func(p *Prober) { p.logger = l }
}

// NewProber creates a Prober for url. Call Run to start polling.
func NewProber(url string, opts ...ProberOption) *Prober {
	p := &Prober{
		url:      url,
		client:   &http.Client{Timeout: 3 * time.Second},
		interval: 10 * time.Second,
		logger:   slog.Default(),
		restored: newSignal(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Online reports the result of the latest probe.
func (p *Prober) Online() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.online
}

// LastError is the error from the latest failed probe, nil when online.
func (p *Prober) LastError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// Restored fires on each offline-to-online transition.
func (p *Prober) Restored() <-chan struct{} {
	return p.restored.ch
}

// Run probes immediately and then once per interval until ctx is done.
func (p *Prober) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Check(ctx)
		}
	}
}

// Check runs one probe, updates the state and returns it.
func (p *Prober) Check(ctx context.Context) bool {
	err := p.probe(ctx)
	if ctx.Err() != nil {
		// Shutting down; not evidence about the network.
		return p.Online()
	}

	p.mu.Lock()
	was := p.online
	p.online = err == nil
	p.lastErr = err
	p.mu.Unlock()

	switch {
	case err == nil && !was:
		p.logger.Info("connectivity restored", "url", p.url)
		p.restored.fire()
	case err != nil && was:
		p.logger.Warn("connectivity lost", "url", p.url, "error", err)
	}
	return err == nil
}

func (p *Prober) probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return &StatusError{StatusCode: resp.StatusCode}
	}
	return nil
}

// StatusError is a probe that reached the server but got a non-2xx reply.
type StatusError struct {
	StatusCode int
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return "health check returned " + http.StatusText(e.StatusCode)
}
