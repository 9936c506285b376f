package store

import (
	"context"
	"errors"

	"github.com/roach88/possync/internal/pos"
)

// PutCart saves a cart in progress, replacing any earlier version.
func (s *Store) PutCart(ctx context.Context, c pos.Cart) error {
	const op = "put"
	if err := s.ready(op); err != nil {
		return err
	}
	if c.ID == "" {
		return invalid(op, KindCart, "", errors.New("cart id is required"))
	}
	data, err := marshalRecord(op, KindCart, c.ID, c)
	if err != nil {
		return err
	}
	_, err = s.execWrite(ctx, op, KindCart, c.ID, `
		INSERT INTO carts (id, updated_at, data)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			updated_at = excluded.updated_at,
			data       = excluded.data
	`, c.ID, nanosOrZero(c.UpdatedAt), data)
	return err
}

// GetCart loads a cart in progress.
func (s *Store) GetCart(ctx context.Context, id string) (pos.Cart, error) {
	var c pos.Cart
	if err := s.Get(ctx, KindCart, id, &c); err != nil {
		return pos.Cart{}, err
	}
	return c, nil
}

// DeleteCart removes a cart in progress.
func (s *Store) DeleteCart(ctx context.Context, id string) error {
	return s.Delete(ctx, KindCart, id)
}

// ListCarts returns every cart in progress, least recently updated first.
func (s *Store) ListCarts(ctx context.Context) ([]pos.Cart, error) {
	rows, err := s.QueryByIndex(ctx, KindCart, IndexUpdatedAt, IndexQuery{From: int64(0)})
	if err != nil {
		return nil, err
	}
	out := make([]pos.Cart, 0, len(rows))
	for _, r := range rows {
		var c pos.Cart
		if err := r.Decode(&c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// PutMenuSnapshot replaces the cached menu wholesale.
func (s *Store) PutMenuSnapshot(ctx context.Context, snap pos.MenuSnapshot) error {
	const op = "put"
	if err := s.ready(op); err != nil {
		return err
	}
	if snap.CapturedAt.IsZero() {
		return invalid(op, KindMenu, MenuSnapshotKey, errors.New("captured_at is required"))
	}
	data, err := marshalRecord(op, KindMenu, MenuSnapshotKey, snap)
	if err != nil {
		return err
	}
	_, err = s.execWrite(ctx, op, KindMenu, MenuSnapshotKey, `
		INSERT INTO menu_snapshots (id, captured_at, data)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			captured_at = excluded.captured_at,
			data        = excluded.data
	`, MenuSnapshotKey, nanos(snap.CapturedAt), data)
	return err
}

// MenuSnapshot loads the cached menu regardless of age. Freshness is the
// caller's decision; see menucache.
func (s *Store) MenuSnapshot(ctx context.Context) (pos.MenuSnapshot, error) {
	var snap pos.MenuSnapshot
	if err := s.Get(ctx, KindMenu, MenuSnapshotKey, &snap); err != nil {
		return pos.MenuSnapshot{}, err
	}
	return snap, nil
}
