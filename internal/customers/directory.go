// Package customers is the offline-first customer directory.
//
// Lookups hit the local cache first and fall back to the remote customer
// service only when online. Search never leaves the terminal.
package customers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/roach88/possync/internal/pos"
	"github.com/roach88/possync/internal/store"
)

// ErrNotFound means neither the cache nor the remote knows the customer.
var ErrNotFound = errors.New("customer not found")

// DefaultSearchLimit caps Search results when the caller passes 0.
const DefaultSearchLimit = 20

// Fetcher looks a customer up on the remote customer service. It returns
// ErrNotFound for an unknown phone number.
type Fetcher interface {
	FetchByPhone(ctx context.Context, phone string) (pos.Customer, error)
}

// Store is the subset of store.Store the directory uses.
type Store interface {
	PutCustomer(ctx context.Context, c pos.Customer) error
	CustomerByPhone(ctx context.Context, phone string) (pos.Customer, error)
	SearchCustomers(ctx context.Context, query string, limit int) ([]pos.Customer, error)
}

// Online reports whether the remote may be called.
type Online interface {
	Online() bool
}

// Directory answers customer lookups at the register.
type Directory struct {
	store   Store
	fetcher Fetcher
	online  Online
	now     func() time.Time
	logger  *slog.Logger
}

// Option configures a Directory.
type Option func(*Directory)

// WithFetcher enables remote lookups, gated on online.
func WithFetcher(f Fetcher, online Online) Option {
	return func(d *Directory) {
		d.fetcher = f
		d.online = online
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(d *Directory) { d.now = now }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(d *Directory) { d.logger = l }
}

// New creates a cache-only Directory unless WithFetcher is given.
func New(st Store, opts ...Option) *Directory {
	d := &Directory{store: st, now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Lookup finds a customer by phone number in any format.
func (d *Directory) Lookup(ctx context.Context, phone string) (pos.Customer, error) {
	if store.PhoneKey(phone) == "" {
		return pos.Customer{}, fmt.Errorf("%w: %q is not a phone number", ErrNotFound, phone)
	}

	c, err := d.store.CustomerByPhone(ctx, phone)
	if err == nil {
		return c, nil
	}
	if !store.IsNotFound(err) {
		return pos.Customer{}, fmt.Errorf("read customer cache: %w", err)
	}

	if d.fetcher == nil || d.online == nil || !d.online.Online() {
		return pos.Customer{}, ErrNotFound
	}

	c, err = d.fetcher.FetchByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return pos.Customer{}, ErrNotFound
		}
		return pos.Customer{}, fmt.Errorf("fetch customer: %w", err)
	}

	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = d.now().UTC()
	}
	if err := d.store.PutCustomer(ctx, c); err != nil {
		d.logger.Warn("failed to cache fetched customer", "customer_id", c.ID, "error", err)
	}
	return c, nil
}

// Search matches query against cached phone numbers, emails and names.
// limit 0 means DefaultSearchLimit.
func (d *Directory) Search(ctx context.Context, query string, limit int) ([]pos.Customer, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	return d.store.SearchCustomers(ctx, query, limit)
}

// ImportResult counts an Import.
type ImportResult struct {
	Imported int
	Skipped  []error
}

// Import caches a batch of customers. Invalid entries are skipped and
// reported; a storage failure aborts the import. progress, if non-nil, is
// called after each entry.
func (d *Directory) Import(ctx context.Context, batch []pos.Customer, progress func()) (ImportResult, error) {
	var res ImportResult
	now := d.now().UTC()
	for _, c := range batch {
		if c.UpdatedAt.IsZero() {
			c.UpdatedAt = now
		}
		err := d.store.PutCustomer(ctx, c)
		switch {
		case err == nil:
			res.Imported++
		case store.IsInvalid(err):
			res.Skipped = append(res.Skipped, err)
		default:
			return res, fmt.Errorf("import customer %s: %w", c.ID, err)
		}
		if progress != nil {
			progress()
		}
	}
	return res, nil
}

// HTTPFetcher looks customers up with GET <URL>?phone=<digits>.
// A 404 response maps to ErrNotFound.
type HTTPFetcher struct {
	URL    string
	Client *http.Client
}

// FetchByPhone implements Fetcher.
func (f HTTPFetcher) FetchByPhone(ctx context.Context, phone string) (pos.Customer, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	u, err := url.Parse(f.URL)
	if err != nil {
		return pos.Customer{}, err
	}
	q := u.Query()
	q.Set("phone", store.PhoneKey(phone))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return pos.Customer{}, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return pos.Customer{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return pos.Customer{}, ErrNotFound
	default:
		return pos.Customer{}, fmt.Errorf("customer service returned %s", resp.Status)
	}

	var c pos.Customer
	if err := json.NewDecoder(resp.Body).Decode(&c); err != nil {
		return pos.Customer{}, fmt.Errorf("decode customer: %w", err)
	}
	return c, nil
}
