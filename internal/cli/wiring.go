package cli

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/roach88/possync/internal/config"
	"github.com/roach88/possync/internal/connectivity"
	"github.com/roach88/possync/internal/customers"
	"github.com/roach88/possync/internal/menucache"
	"github.com/roach88/possync/internal/recorder"
	"github.com/roach88/possync/internal/retention"
	"github.com/roach88/possync/internal/store"
	"github.com/roach88/possync/internal/syncer"
)

// terminal is every component built from one config. Manager, Prober and
// closeSender are nil when the corresponding feature is disabled.
type terminal struct {
	cfg       config.Config
	store     *store.Store
	conn      syncer.Connectivity
	prober    *connectivity.Prober
	manager   *syncer.Manager
	menu      *menucache.Cache
	customers *customers.Directory
	sweeper   *retention.Sweeper
	recorder  *recorder.Recorder

	closeSender func() error
}

// openTerminal loads config, opens the database and wires the components
// on top of it. The caller must Close the result.
func (o *RootOptions) openTerminal() (*terminal, error) {
	cfg, st, err := o.openStore()
	if err != nil {
		return nil, err
	}
	logger := o.log()
	t := &terminal{cfg: cfg, store: st}

	if cfg.Connectivity.HealthURL != "" {
		t.prober = connectivity.NewProber(cfg.Connectivity.HealthURL,
			connectivity.WithProbeInterval(cfg.Connectivity.Interval),
			connectivity.WithProbeLogger(logger))
		t.conn = t.prober
	} else {
		t.conn = connectivity.NewStatic(true)
	}

	var sender syncer.Sender
	switch cfg.Sync.Transport {
	case config.TransportHTTP:
		sender = syncer.NewHTTPSender(cfg.Sync.Endpoint,
			syncer.WithHTTPClient(&http.Client{Timeout: cfg.Sync.Timeout}),
			syncer.WithBreaker(cfg.Sync.BreakerThreshold, cfg.Sync.BreakerCooldown),
			syncer.WithBreakerLogger(logger))
	case config.TransportKafka:
		ks := syncer.NewKafkaSender(cfg.Sync.Brokers, cfg.Sync.Topic, cfg.Sync.Timeout)
		sender = ks
		t.closeSender = ks.Close
	}
	if sender != nil {
		t.manager = syncer.NewManager(st, sender, t.conn,
			syncer.WithInterval(cfg.Sync.Interval),
			syncer.WithSendTimeout(cfg.Sync.Timeout),
			syncer.WithClock(o.now),
			syncer.WithLogger(logger))
	}

	var menuFetcher menucache.Fetcher
	if cfg.Menu.URL != "" {
		menuFetcher = menucache.HTTPFetcher{URL: cfg.Menu.URL, Client: &http.Client{Timeout: cfg.Sync.Timeout}}
	}
	t.menu = menucache.New(st, menuFetcher,
		menucache.WithFreshness(cfg.Menu.Freshness),
		menucache.WithClock(o.now),
		menucache.WithLogger(logger))

	dirOpts := []customers.Option{customers.WithClock(o.now), customers.WithLogger(logger)}
	if cfg.Customers.URL != "" {
		dirOpts = append(dirOpts, customers.WithFetcher(
			customers.HTTPFetcher{URL: cfg.Customers.URL, Client: &http.Client{Timeout: cfg.Sync.Timeout}},
			t.conn))
	}
	t.customers = customers.New(st, dirOpts...)

	t.sweeper = retention.New(st,
		retention.WithWindow(cfg.Retention.Window),
		retention.WithInterval(cfg.Retention.Interval),
		retention.WithClock(o.now),
		retention.WithLogger(logger))

	recOpts := []recorder.Option{
		recorder.WithClock(o.now),
		recorder.WithLogger(logger),
		recorder.WithTerminalID(cfg.TerminalID),
	}
	if o.IDs != nil {
		recOpts = append(recOpts, recorder.WithIDGenerator(o.IDs))
	}
	t.recorder = recorder.New(st, cfg.TaxRate, recOpts...)

	return t, nil
}

// probeOnce settles the online state before a one-shot command. A Prober
// starts offline until its first check.
func (t *terminal) probeOnce(ctx context.Context) bool {
	if t.prober != nil {
		return t.prober.Check(ctx)
	}
	return t.conn.Online()
}

// Close stops the sync manager and releases the sender and database.
func (t *terminal) Close() {
	if t.manager != nil {
		t.manager.Stop()
	}
	if t.closeSender != nil {
		if err := t.closeSender(); err != nil {
			slog.Error("error closing sender", "error", err)
		}
	}
	closeStore(t.store)
}
