package store

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/possync/internal/pos"
)

var folder = cases.Fold()

// PhoneKey reduces a phone number to its digits, the form stored in the
// phone index. "(555) 123-4567" and "555.123.4567" share a key.
func PhoneKey(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// EmailKey is the case-folded, trimmed email stored in the email index.
func EmailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NameKey is the NFC-normalized, case-folded name used for
// case-insensitive search.
func NameKey(name string) string {
	return folder.String(norm.NFC.String(strings.TrimSpace(name)))
}

// PutCustomer inserts or replaces a cached customer record.
// Customers are never removed by retention sweeps.
func (s *Store) PutCustomer(ctx context.Context, c pos.Customer) error {
	const op = "put"
	if err := s.ready(op); err != nil {
		return err
	}
	if c.ID == "" {
		return invalid(op, KindCustomer, "", errors.New("customer id is required"))
	}
	phone := PhoneKey(c.Phone)
	if phone == "" {
		return invalid(op, KindCustomer, c.ID, errors.New("customer phone is required"))
	}

	data, err := marshalRecord(op, KindCustomer, c.ID, c)
	if err != nil {
		return err
	}

	_, err = s.execWrite(ctx, op, KindCustomer, c.ID, `
		INSERT INTO customers (id, phone, email, name_key, data)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			phone    = excluded.phone,
			email    = excluded.email,
			name_key = excluded.name_key,
			data     = excluded.data
	`, c.ID, phone, EmailKey(c.Email), NameKey(c.Name), data)
	return err
}

// GetCustomer loads a customer by id.
func (s *Store) GetCustomer(ctx context.Context, id string) (pos.Customer, error) {
	var c pos.Customer
	if err := s.Get(ctx, KindCustomer, id, &c); err != nil {
		return pos.Customer{}, err
	}
	return c, nil
}

// CustomerByPhone finds the customer with exactly this phone number
// (compared digit-for-digit). Returns RecordNotFound when there is none.
func (s *Store) CustomerByPhone(ctx context.Context, phone string) (pos.Customer, error) {
	return s.customerByIndex(ctx, IndexPhone, phone)
}

// CustomerByEmail finds the customer with this email (case-insensitive).
// Returns RecordNotFound when there is none.
func (s *Store) CustomerByEmail(ctx context.Context, email string) (pos.Customer, error) {
	if EmailKey(email) == "" {
		return pos.Customer{}, notFound("get", KindCustomer, email)
	}
	return s.customerByIndex(ctx, IndexEmail, email)
}

func (s *Store) customerByIndex(ctx context.Context, index, value string) (pos.Customer, error) {
	rows, err := s.QueryByIndex(ctx, KindCustomer, index, IndexQuery{Eq: value, Limit: 1})
	if err != nil {
		return pos.Customer{}, err
	}
	if len(rows) == 0 {
		return pos.Customer{}, notFound("get", KindCustomer, value)
	}
	var c pos.Customer
	if err := rows[0].Decode(&c); err != nil {
		return pos.Customer{}, err
	}
	return c, nil
}

// SearchCustomers returns cached customers whose phone contains the query's
// digits, or whose name or email contains the query case-insensitively.
// Results are ordered by name. An empty query returns nothing.
func (s *Store) SearchCustomers(ctx context.Context, query string, limit int) ([]pos.Customer, error) {
	const op = "search"
	if err := s.ready(op); err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return []pos.Customer{}, nil
	}

	// Only treat the query as a phone fragment when it looks like one;
	// "Ann 2" should not match every phone containing a 2.
	phone := ""
	if looksLikePhone(query) {
		phone = PhoneKey(query)
	}

	sqlQuery := `
		SELECT id, data FROM customers
		WHERE (? <> '' AND phone LIKE ? ESCAPE '\')
		   OR name_key LIKE ? ESCAPE '\'
		   OR email LIKE ? ESCAPE '\'
		ORDER BY name_key ASC, id ASC`
	args := []any{
		phone, likePattern(phone),
		likePattern(NameKey(query)),
		likePattern(EmailKey(query)),
	}
	if limit > 0 {
		sqlQuery += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.queryRows(ctx, op, KindCustomer, sqlQuery, args...)
	if err != nil {
		return nil, err
	}
	out := make([]pos.Customer, 0, len(rows))
	for _, r := range rows {
		var c pos.Customer
		if err := r.Decode(&c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func looksLikePhone(q string) bool {
	digits := 0
	for _, r := range q {
		switch {
		case unicode.IsDigit(r):
			digits++
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '+' || r == '.':
		default:
			return false
		}
	}
	return digits > 0
}

// likePattern wraps s for a substring LIKE match, escaping wildcards.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}
