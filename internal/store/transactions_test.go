package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/possync/internal/pos"
)

func TestPutTransaction_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	tx := createTestTransaction("tx-1", 0)
	tx.Customer = &pos.Customer{ID: "cust-1", Name: "Ann", Phone: "5551234"}
	require.NoError(t, s.PutTransaction(ctx, tx))

	got, err := s.GetTransaction(ctx, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, tx.ID, got.ID)
	assert.Equal(t, tx.Cart.Total, got.Cart.Total)
	assert.Equal(t, tx.Payment.ReferenceNumber, got.Payment.ReferenceNumber)
	assert.True(t, tx.CapturedAt.Equal(got.CapturedAt))
	require.NotNil(t, got.Customer)
	assert.Equal(t, "Ann", got.Customer.Name)
	assert.False(t, got.Synced)
}

func TestPutTransaction_Validation(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	err := s.PutTransaction(ctx, pos.OfflineTransaction{CapturedAt: baseTime})
	assert.True(t, IsInvalid(err), "missing id: %v", err)

	err = s.PutTransaction(ctx, pos.OfflineTransaction{ID: "tx"})
	assert.True(t, IsInvalid(err), "missing captured_at: %v", err)
}

func TestPutTransaction_ContentIsImmutable(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	orig := createTestTransaction("tx-1", 0)
	require.NoError(t, s.PutTransaction(ctx, orig))

	tampered := orig
	tampered.Payment.ReferenceNumber = "CHANGED"
	require.NoError(t, s.PutTransaction(ctx, tampered))

	got, err := s.GetTransaction(ctx, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, orig.Payment.ReferenceNumber, got.Payment.ReferenceNumber)
}

func TestPutTransaction_SyncedNeverReverts(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	tx := createTestTransaction("tx-1", 0)
	require.NoError(t, s.PutTransaction(ctx, tx))

	syncedAt := baseTime.Add(time.Hour)
	synced := tx
	synced.Synced = true
	synced.SyncedAt = &syncedAt
	require.NoError(t, s.PutTransaction(ctx, synced))

	got, err := s.GetTransaction(ctx, "tx-1")
	require.NoError(t, err)
	assert.True(t, got.Synced)
	require.NotNil(t, got.SyncedAt)
	assert.True(t, syncedAt.Equal(*got.SyncedAt))

	// Putting the unsynced version again must not flip it back.
	require.NoError(t, s.PutTransaction(ctx, tx))
	got, err = s.GetTransaction(ctx, "tx-1")
	require.NoError(t, err)
	assert.True(t, got.Synced)

	n, err := s.CountUnsynced(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestUnsyncedTransactions_OldestFirst(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	// Insert out of order; ties on captured_at break by id.
	require.NoError(t, s.PutTransaction(ctx, createTestTransaction("tx-c", 2*time.Minute)))
	require.NoError(t, s.PutTransaction(ctx, createTestTransaction("tx-a", 0)))
	require.NoError(t, s.PutTransaction(ctx, createTestTransaction("tx-b2", time.Minute)))
	require.NoError(t, s.PutTransaction(ctx, createTestTransaction("tx-b1", time.Minute)))

	got, err := s.UnsyncedTransactions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"tx-a", "tx-b1", "tx-b2", "tx-c"}, txIDs(got))
}

func TestMarkSynced(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutTransaction(ctx, createTestTransaction("tx-1", 0)))
	require.NoError(t, s.PutTransaction(ctx, createTestTransaction("tx-2", time.Minute)))

	at := baseTime.Add(time.Hour)
	require.NoError(t, s.MarkSynced(ctx, "tx-1", at))

	got, err := s.GetTransaction(ctx, "tx-1")
	require.NoError(t, err)
	assert.True(t, got.Synced)
	require.NotNil(t, got.SyncedAt)
	assert.True(t, at.Equal(*got.SyncedAt))

	unsynced, err := s.UnsyncedTransactions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"tx-2"}, txIDs(unsynced))

	// Idempotent: marking again keeps the first timestamp.
	require.NoError(t, s.MarkSynced(ctx, "tx-1", at.Add(time.Hour)))
	got, err = s.GetTransaction(ctx, "tx-1")
	require.NoError(t, err)
	assert.True(t, at.Equal(*got.SyncedAt))

	err = s.MarkSynced(ctx, "missing", at)
	assert.True(t, IsNotFound(err), "got %v", err)
}

func TestRecordSendFailure(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.PutTransaction(ctx, createTestTransaction("tx-1", 0)))

	require.NoError(t, s.RecordSendFailure(ctx, "tx-1", errors.New("connection refused")))
	require.NoError(t, s.RecordSendFailure(ctx, "tx-1", errors.New("503 Service Unavailable")))

	got, err := s.GetTransaction(ctx, "tx-1")
	require.NoError(t, err)
	assert.False(t, got.Synced)
	assert.Equal(t, 2, got.Attempts)
	assert.Equal(t, "503 Service Unavailable", got.LastError)

	n, err := s.CountUnsynced(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestListTransactions_Range(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	for i, id := range []string{"tx-1", "tx-2", "tx-3", "tx-4"} {
		require.NoError(t, s.PutTransaction(ctx, createTestTransaction(id, time.Duration(i)*time.Hour)))
	}

	all, err := s.ListTransactions(ctx, time.Time{}, time.Time{}, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"tx-1", "tx-2", "tx-3", "tx-4"}, txIDs(all))

	mid, err := s.ListTransactions(ctx, baseTime.Add(time.Hour), baseTime.Add(3*time.Hour), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"tx-2", "tx-3"}, txIDs(mid))

	limited, err := s.ListTransactions(ctx, time.Time{}, time.Time{}, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"tx-1"}, txIDs(limited))
}

func TestSweepCandidates_OnlySyncedAndOld(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutTransaction(ctx, createTestTransaction("old-synced", 0)))
	require.NoError(t, s.PutTransaction(ctx, createTestTransaction("old-unsynced", time.Minute)))
	require.NoError(t, s.PutTransaction(ctx, createTestTransaction("new-synced", 48*time.Hour)))
	require.NoError(t, s.MarkSynced(ctx, "old-synced", baseTime))
	require.NoError(t, s.MarkSynced(ctx, "new-synced", baseTime))

	ids, err := s.SweepCandidates(ctx, baseTime.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []string{"old-synced"}, ids)
}

func TestDeleteSyncedTransaction(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutTransaction(ctx, createTestTransaction("synced", 0)))
	require.NoError(t, s.PutTransaction(ctx, createTestTransaction("unsynced", 0)))
	require.NoError(t, s.MarkSynced(ctx, "synced", baseTime))

	require.NoError(t, s.DeleteSyncedTransaction(ctx, "synced"))
	_, err := s.GetTransaction(ctx, "synced")
	assert.True(t, IsNotFound(err))

	err = s.DeleteSyncedTransaction(ctx, "unsynced")
	assert.True(t, IsInvalid(err), "got %v", err)
	_, err = s.GetTransaction(ctx, "unsynced")
	assert.NoError(t, err, "unsynced transaction must survive")

	err = s.DeleteSyncedTransaction(ctx, "missing")
	assert.True(t, IsNotFound(err), "got %v", err)
}

func txIDs(txs []pos.OfflineTransaction) []string {
	ids := make([]string, len(txs))
	for i, tx := range txs {
		ids[i] = tx.ID
	}
	return ids
}
