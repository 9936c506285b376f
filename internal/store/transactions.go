package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/possync/internal/pos"
)

// PutTransaction stores a recorded sale.
//
// Uses ON CONFLICT(id) DO UPDATE that only ever raises synced: re-putting an
// existing transaction never rewrites its business content and never moves
// synced back to false.
func (s *Store) PutTransaction(ctx context.Context, tx pos.OfflineTransaction) error {
	const op = "put"
	if err := s.ready(op); err != nil {
		return err
	}
	if tx.ID == "" {
		return invalid(op, KindTransaction, "", errors.New("transaction id is required"))
	}
	if tx.CapturedAt.IsZero() {
		return invalid(op, KindTransaction, tx.ID, errors.New("captured_at is required"))
	}

	data, err := marshalRecord(op, KindTransaction, tx.ID, tx)
	if err != nil {
		return err
	}

	var syncedAt any
	if tx.SyncedAt != nil {
		syncedAt = nanos(*tx.SyncedAt)
	}

	_, err = s.execWrite(ctx, op, KindTransaction, tx.ID, `
		INSERT INTO transactions (id, synced, captured_at, synced_at, data)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			synced    = 1,
			synced_at = COALESCE(transactions.synced_at, excluded.synced_at),
			data      = json_set(transactions.data,
			                     '$.synced', json('true'),
			                     '$.synced_at', json_extract(excluded.data, '$.synced_at'))
		WHERE excluded.synced = 1 AND transactions.synced = 0
	`, tx.ID, indexArg(tx.Synced), nanos(tx.CapturedAt), syncedAt, data)
	return err
}

// GetTransaction loads a transaction by id.
func (s *Store) GetTransaction(ctx context.Context, id string) (pos.OfflineTransaction, error) {
	var tx pos.OfflineTransaction
	if err := s.Get(ctx, KindTransaction, id, &tx); err != nil {
		return pos.OfflineTransaction{}, err
	}
	return tx, nil
}

// UnsyncedTransactions returns every unsynced transaction, oldest first
// (captured_at ASC, id ASC).
func (s *Store) UnsyncedTransactions(ctx context.Context) ([]pos.OfflineTransaction, error) {
	rows, err := s.QueryByIndex(ctx, KindTransaction, IndexSynced, IndexQuery{Eq: false})
	if err != nil {
		return nil, err
	}
	return decodeTransactions(rows)
}

// CountUnsynced returns the number of transactions awaiting sync.
func (s *Store) CountUnsynced(ctx context.Context) (int, error) {
	if err := s.ready("count"); err != nil {
		return 0, err
	}
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions WHERE synced = 0`).Scan(&n)
	if err != nil {
		return 0, classify("count", KindTransaction, "", err)
	}
	return n, nil
}

// MarkSynced flips a transaction's synced flag to true.
//
// The transition is one-way: the UPDATE only matches rows with synced = 0.
// Marking an already-synced transaction is a no-op and returns nil; marking
// an unknown id returns RecordNotFound.
func (s *Store) MarkSynced(ctx context.Context, id string, at time.Time) error {
	const op = "mark synced"
	if err := s.ready(op); err != nil {
		return err
	}
	res, err := s.execWrite(ctx, op, KindTransaction, id, `
		UPDATE transactions
		SET synced = 1,
		    synced_at = ?,
		    data = json_set(data, '$.synced', json('true'), '$.synced_at', ?)
		WHERE id = ? AND synced = 0
	`, nanos(at), at.UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return classify(op, KindTransaction, id, err)
	}
	if n == 0 {
		return s.existsOrNotFound(ctx, op, KindTransaction, id)
	}
	return nil
}

// RecordSendFailure notes a failed send attempt on an unsynced transaction.
// The record stays unsynced; only the diagnostic attempts/last_error fields
// inside the document change.
func (s *Store) RecordSendFailure(ctx context.Context, id string, cause error) error {
	const op = "record failure"
	if err := s.ready(op); err != nil {
		return err
	}
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	_, err := s.execWrite(ctx, op, KindTransaction, id, `
		UPDATE transactions
		SET data = json_set(data,
		                    '$.attempts', COALESCE(json_extract(data, '$.attempts'), 0) + 1,
		                    '$.last_error', ?)
		WHERE id = ? AND synced = 0
	`, msg, id)
	return err
}

// ListTransactions returns transactions captured in [from, to), oldest first.
// A zero from or to leaves that side of the range open.
func (s *Store) ListTransactions(ctx context.Context, from, to time.Time, limit int) ([]pos.OfflineTransaction, error) {
	q := IndexQuery{Limit: limit}
	if !from.IsZero() {
		q.From = from
	} else {
		q.From = time.Unix(0, 0)
	}
	if !to.IsZero() {
		q.To = to
	}
	rows, err := s.QueryByIndex(ctx, KindTransaction, IndexCapturedAt, q)
	if err != nil {
		return nil, err
	}
	return decodeTransactions(rows)
}

// SweepCandidates returns the ids of synced transactions captured strictly
// before cutoff, oldest first. Unsynced transactions are never returned.
func (s *Store) SweepCandidates(ctx context.Context, cutoff time.Time) ([]string, error) {
	const op = "sweep candidates"
	if err := s.ready(op); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM transactions
		WHERE synced = 1 AND captured_at < ?
		ORDER BY captured_at ASC, id ASC
	`, nanos(cutoff))
	if err != nil {
		return nil, classify(op, KindTransaction, "", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, classify(op, KindTransaction, "", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(op, KindTransaction, "", err)
	}
	return ids, nil
}

// DeleteSyncedTransaction removes a transaction only if it is synced.
// An unsynced transaction is reported as InvalidRecord and left in place.
func (s *Store) DeleteSyncedTransaction(ctx context.Context, id string) error {
	const op = "delete synced"
	if err := s.ready(op); err != nil {
		return err
	}
	res, err := s.execWrite(ctx, op, KindTransaction, id,
		`DELETE FROM transactions WHERE id = ? AND synced = 1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return classify(op, KindTransaction, id, err)
	}
	if n == 0 {
		if err := s.existsOrNotFound(ctx, op, KindTransaction, id); err != nil {
			return err
		}
		return invalid(op, KindTransaction, id, errors.New("transaction is not synced"))
	}
	return nil
}

// existsOrNotFound returns nil if the record exists, RecordNotFound otherwise.
func (s *Store) existsOrNotFound(ctx context.Context, op string, kind Kind, id string) error {
	var one int
	err := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT 1 FROM %s WHERE id = ?", kind), id).Scan(&one)
	if err != nil {
		return classify(op, kind, id, err)
	}
	return nil
}

func decodeTransactions(rows []Row) ([]pos.OfflineTransaction, error) {
	out := make([]pos.OfflineTransaction, 0, len(rows))
	for _, r := range rows {
		var tx pos.OfflineTransaction
		if err := r.Decode(&tx); err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, nil
}
