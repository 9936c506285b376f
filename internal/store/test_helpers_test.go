package store

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/possync/internal/money"
	"github.com/roach88/possync/internal/pos"
)

// baseTime anchors test timestamps.
var baseTime = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

// createTestStore creates a new temp-dir store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestTransaction creates an unsynced transaction with a priced
// one-line cart, captured at baseTime + offset.
func createTestTransaction(id string, offset time.Duration) pos.OfflineTransaction {
	captured := baseTime.Add(offset)
	return pos.OfflineTransaction{
		ID: id,
		Cart: pos.Cart{
			ID: "cart-" + id,
			Items: []pos.CartItem{{
				ID:       "line-1",
				Item:     pos.MenuItemRef{ID: "burger", Name: "Burger", UnitPrice: money.Dollars(10, 0)},
				Quantity: 1,
				Subtotal: money.Dollars(10, 0),
				Total:    money.Dollars(10, 0),
			}},
			OrderType: pos.OrderTakeout,
			Subtotal:  money.Dollars(10, 0),
			Total:     money.Dollars(10, 0),
			CreatedAt: captured,
			UpdatedAt: captured,
		},
		Payment: pos.PaymentResult{
			TransactionID:   "pay-" + id,
			ReferenceNumber: fmt.Sprintf("REF-%s", id),
			Method:          pos.PaymentCard,
			Amount:          money.Dollars(10, 0),
			ProcessedAt:     captured,
		},
		CapturedAt: captured,
	}
}

// createTestCustomer creates a customer with minimal required fields.
func createTestCustomer(id, name, phone, email string) pos.Customer {
	return pos.Customer{
		ID:        id,
		Name:      name,
		Phone:     phone,
		Email:     email,
		UpdatedAt: baseTime,
	}
}
