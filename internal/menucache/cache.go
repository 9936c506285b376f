// Package menucache keeps a local copy of the menu for offline use.
//
// The whole menu is cached as one snapshot and replaced wholesale on every
// refresh. A snapshot is fresh while its age is at most the freshness
// window (24h by default); an exactly 24h old snapshot is still fresh.
package menucache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/roach88/possync/internal/pos"
	"github.com/roach88/possync/internal/store"
)

// DefaultFreshness is how long a cached menu is served without refetching.
const DefaultFreshness = 24 * time.Hour

var (
	// ErrStale is returned alongside a stale snapshot when refreshing failed.
	ErrStale = errors.New("menu cache is stale")
	// ErrNoMenu means nothing is cached and the menu could not be fetched.
	ErrNoMenu = errors.New("no menu available")
	// ErrNoFetcher is the refresh error of a cache built without a Fetcher.
	ErrNoFetcher = errors.New("no menu source configured")
)

// Fetcher loads the current menu from the menu service.
type Fetcher interface {
	FetchMenu(ctx context.Context) ([]pos.MenuCategory, error)
}

// Store is the subset of store.Store the cache uses.
type Store interface {
	PutMenuSnapshot(ctx context.Context, snap pos.MenuSnapshot) error
	MenuSnapshot(ctx context.Context) (pos.MenuSnapshot, error)
}

// IsFresh reports whether snap is within window of now.
func IsFresh(snap pos.MenuSnapshot, now time.Time, window time.Duration) bool {
	if snap.CapturedAt.IsZero() {
		return false
	}
	return now.Sub(snap.CapturedAt) <= window
}

// Cache serves the menu from the local store and refreshes it on demand.
type Cache struct {
	store     Store
	fetcher   Fetcher
	freshness time.Duration
	now       func() time.Time
	logger    *slog.Logger

	// Concurrent refreshes share one fetch.
	sfg singleflight.Group
}

// Option configures a Cache.
type Option func(*Cache)

// WithFreshness overrides DefaultFreshness.
func WithFreshness(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.freshness = d
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// New creates a Cache. f may be nil for a terminal that only imports menus.
func New(st Store, f Fetcher, opts ...Option) *Cache {
	c := &Cache{
		store:     st,
		fetcher:   f,
		freshness: DefaultFreshness,
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached menu if it is fresh, otherwise refreshes it.
//
// If the refresh fails and a stale snapshot exists, Get returns that
// snapshot together with an error wrapping ErrStale, so a caller may keep
// selling from it. With nothing cached, the error wraps ErrNoMenu.
func (c *Cache) Get(ctx context.Context) (pos.MenuSnapshot, error) {
	cached, err := c.store.MenuSnapshot(ctx)
	haveCached := err == nil
	if err != nil && !store.IsNotFound(err) {
		return pos.MenuSnapshot{}, fmt.Errorf("read cached menu: %w", err)
	}
	if haveCached && IsFresh(cached, c.now(), c.freshness) {
		return cached, nil
	}

	fresh, ferr := c.Refresh(ctx)
	if ferr == nil {
		return fresh, nil
	}
	if haveCached {
		c.logger.Warn("serving stale menu", "captured_at", cached.CapturedAt, "error", ferr)
		return cached, fmt.Errorf("%w (captured %s): %w", ErrStale, cached.CapturedAt.Format(time.RFC3339), ferr)
	}
	return pos.MenuSnapshot{}, fmt.Errorf("%w: %w", ErrNoMenu, ferr)
}

// Refresh fetches the menu and replaces the cached snapshot.
func (c *Cache) Refresh(ctx context.Context) (pos.MenuSnapshot, error) {
	v, err, _ := c.sfg.Do("menu", func() (any, error) {
		if c.fetcher == nil {
			return nil, ErrNoFetcher
		}
		cats, err := c.fetcher.FetchMenu(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetch menu: %w", err)
		}
		return c.Replace(ctx, cats)
	})
	if err != nil {
		return pos.MenuSnapshot{}, err
	}
	return v.(pos.MenuSnapshot), nil
}

// Replace stores categories as the current menu, stamped now.
func (c *Cache) Replace(ctx context.Context, categories []pos.MenuCategory) (pos.MenuSnapshot, error) {
	snap := pos.MenuSnapshot{Categories: categories, CapturedAt: c.now().UTC()}
	if snap.Categories == nil {
		snap.Categories = []pos.MenuCategory{}
	}
	if err := c.store.PutMenuSnapshot(ctx, snap); err != nil {
		return pos.MenuSnapshot{}, fmt.Errorf("cache menu: %w", err)
	}
	c.logger.Info("menu cached", "categories", len(snap.Categories), "items", snap.ItemCount())
	return snap, nil
}

// HTTPFetcher loads the menu as a JSON array of categories from a URL.
type HTTPFetcher struct {
	URL    string
	Client *http.Client
}

// FetchMenu implements Fetcher.
func (f HTTPFetcher) FetchMenu(ctx context.Context) ([]pos.MenuCategory, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("menu service returned %s", resp.Status)
	}
	var cats []pos.MenuCategory
	if err := json.NewDecoder(resp.Body).Decode(&cats); err != nil {
		return nil, fmt.Errorf("decode menu: %w", err)
	}
	return cats, nil
}
