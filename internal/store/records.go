package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/possync/internal/pos"
)

// Kind names a record collection. Each kind has one primary key (`id`) and a
// fixed set of secondary indexes.
type Kind string

const (
	KindTransaction Kind = "transactions"
	KindCart        Kind = "carts"
	KindCustomer    Kind = "customers"
	KindMenu        Kind = "menu_snapshots"
)

// Index names accepted by QueryByIndex.
const (
	IndexSynced     = "synced"
	IndexCapturedAt = "captured_at"
	IndexUpdatedAt  = "updated_at"
	IndexPhone      = "phone"
	IndexEmail      = "email"
)

// MenuSnapshotKey is the primary key of the single cached menu.
const MenuSnapshotKey = "current"

// indexDef maps an index name onto its column and result ordering.
type indexDef struct {
	column  string
	orderBy string
	// normalize maps a lookup value onto the stored column form.
	normalize func(any) any
}

var indexes = map[Kind]map[string]indexDef{
	KindTransaction: {
		IndexSynced:     {column: "synced", orderBy: "synced ASC, captured_at ASC, id ASC"},
		IndexCapturedAt: {column: "captured_at", orderBy: "captured_at ASC, id ASC"},
	},
	KindCart: {
		IndexUpdatedAt: {column: "updated_at", orderBy: "updated_at ASC, id ASC"},
	},
	KindCustomer: {
		IndexPhone: {column: "phone", orderBy: "phone ASC, id ASC", normalize: stringArg(PhoneKey)},
		IndexEmail: {column: "email", orderBy: "email ASC, id ASC", normalize: stringArg(EmailKey)},
	},
	KindMenu: {},
}

// Row is one stored record as returned by Get and QueryByIndex.
type Row struct {
	Kind Kind
	Key  string
	Data []byte
}

// Decode unmarshals the record into dst.
func (r Row) Decode(dst any) error {
	if err := json.Unmarshal(r.Data, dst); err != nil {
		return fmt.Errorf("decode %s %q: %w", r.Kind, r.Key, err)
	}
	return nil
}

// IndexQuery selects rows by a secondary index.
//
// Set Eq for an equality match, or From and/or To for a range. From is
// inclusive, To is exclusive. Values may be bool (synced), time.Time
// (timestamp indexes) or string. Limit <= 0 means unlimited.
type IndexQuery struct {
	Eq    any
	From  any
	To    any
	Limit int
}

// Put inserts or replaces a record. rec must be one of pos.OfflineTransaction,
// pos.Cart, pos.Customer or pos.MenuSnapshot (value or pointer).
//
// Transactions are immutable: putting an existing transaction id leaves its
// business content untouched and can only move synced from false to true.
func (s *Store) Put(ctx context.Context, rec any) error {
	switch r := rec.(type) {
	case pos.OfflineTransaction:
		return s.PutTransaction(ctx, r)
	case *pos.OfflineTransaction:
		return s.PutTransaction(ctx, *r)
	case pos.Cart:
		return s.PutCart(ctx, r)
	case *pos.Cart:
		return s.PutCart(ctx, *r)
	case pos.Customer:
		return s.PutCustomer(ctx, r)
	case *pos.Customer:
		return s.PutCustomer(ctx, *r)
	case pos.MenuSnapshot:
		return s.PutMenuSnapshot(ctx, r)
	case *pos.MenuSnapshot:
		return s.PutMenuSnapshot(ctx, *r)
	default:
		return invalid("put", "", "", fmt.Errorf("unsupported record type %T", rec))
	}
}

// Get loads the record with the given primary key into dst.
// Returns a RecordNotFound *Error when no such record exists.
func (s *Store) Get(ctx context.Context, kind Kind, key string, dst any) error {
	row, err := s.getRow(ctx, kind, key)
	if err != nil {
		return err
	}
	return row.Decode(dst)
}

// QueryByIndex returns the rows of kind matching q on the named index,
// ordered by the index value and then by primary key.
func (s *Store) QueryByIndex(ctx context.Context, kind Kind, index string, q IndexQuery) ([]Row, error) {
	if err := s.ready("query"); err != nil {
		return nil, err
	}
	def, err := lookupIndex(kind, index)
	if err != nil {
		return nil, err
	}

	arg := func(v any) any {
		if def.normalize != nil {
			v = def.normalize(v)
		}
		return indexArg(v)
	}

	var (
		where []string
		args  []any
	)
	switch {
	case q.Eq != nil:
		where = append(where, def.column+" = ?")
		args = append(args, arg(q.Eq))
	case q.From != nil || q.To != nil:
		if q.From != nil {
			where = append(where, def.column+" >= ?")
			args = append(args, arg(q.From))
		}
		if q.To != nil {
			where = append(where, def.column+" < ?")
			args = append(args, arg(q.To))
		}
	default:
		return nil, invalid("query", kind, "", fmt.Errorf("index query on %q needs Eq, From or To", index))
	}

	query := fmt.Sprintf("SELECT id, data FROM %s WHERE %s ORDER BY %s",
		kind, strings.Join(where, " AND "), def.orderBy)
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", q.Limit)
	}

	return s.queryRows(ctx, "query", kind, query, args...)
}

// Delete removes the record with the given primary key.
// Returns a RecordNotFound *Error when no such record exists.
func (s *Store) Delete(ctx context.Context, kind Kind, key string) error {
	if err := s.ready("delete"); err != nil {
		return err
	}
	if _, ok := indexes[kind]; !ok {
		return invalid("delete", kind, key, fmt.Errorf("unknown kind"))
	}
	res, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", kind), key)
	if err != nil {
		return classify("delete", kind, key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return classify("delete", kind, key, err)
	}
	if n == 0 {
		return notFound("delete", kind, key)
	}
	return nil
}

func (s *Store) getRow(ctx context.Context, kind Kind, key string) (Row, error) {
	if err := s.ready("get"); err != nil {
		return Row{}, err
	}
	if _, ok := indexes[kind]; !ok {
		return Row{}, invalid("get", kind, key, fmt.Errorf("unknown kind"))
	}
	var data string
	err := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT data FROM %s WHERE id = ?", kind), key).Scan(&data)
	if err != nil {
		return Row{}, classify("get", kind, key, err)
	}
	return Row{Kind: kind, Key: key, Data: []byte(data)}, nil
}

// queryRows runs a SELECT id, data query and collects the rows.
// Returns an empty slice (not nil) when nothing matches.
func (s *Store) queryRows(ctx context.Context, op string, kind Kind, query string, args ...any) ([]Row, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(op, kind, "", err)
	}
	defer rows.Close()

	out := []Row{}
	for rows.Next() {
		var (
			key  string
			data string
		)
		if err := rows.Scan(&key, &data); err != nil {
			return nil, classify(op, kind, "", err)
		}
		out = append(out, Row{Kind: kind, Key: key, Data: []byte(data)})
	}
	if err := rows.Err(); err != nil {
		return nil, classify(op, kind, "", err)
	}
	return out, nil
}

func lookupIndex(kind Kind, index string) (indexDef, error) {
	byName, ok := indexes[kind]
	if !ok {
		return indexDef{}, invalid("query", kind, "", fmt.Errorf("unknown kind"))
	}
	def, ok := byName[index]
	if !ok {
		return indexDef{}, invalid("query", kind, "", fmt.Errorf("unknown index %q", index))
	}
	return def, nil
}

// indexArg converts a Go value into the representation stored in index
// columns.
func indexArg(v any) any {
	switch x := v.(type) {
	case bool:
		if x {
			return 1
		}
		return 0
	case time.Time:
		return nanos(x)
	case *time.Time:
		return nanos(*x)
	default:
		return v
	}
}

func stringArg(fn func(string) string) func(any) any {
	return func(v any) any {
		if str, ok := v.(string); ok {
			return fn(str)
		}
		return v
	}
}

func nanos(t time.Time) int64 {
	return t.UTC().UnixNano()
}

// nanosOrZero stores an unset time as 0 instead of an out-of-range value.
func nanosOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return nanos(t)
}

func marshalRecord(op string, kind Kind, key string, v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", invalid(op, kind, key, err)
	}
	return string(b), nil
}

// execWrite runs a single-record write and classifies its error.
func (s *Store) execWrite(ctx context.Context, op string, kind Kind, key, query string, args ...any) (sql.Result, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, classify(op, kind, key, err)
	}
	return res, nil
}
