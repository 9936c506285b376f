package store

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/jaswdr/faker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/possync/internal/pos"
)

func TestPhoneKey(t *testing.T) {
	assert.Equal(t, "5550101234", PhoneKey("(555) 010-1234"))
	assert.Equal(t, "15550101234", PhoneKey("+1 555.010.1234"))
	assert.Equal(t, "", PhoneKey("n/a"))
}

func TestNameKey_FoldsCaseAndNormalizes(t *testing.T) {
	assert.Equal(t, NameKey("JOS\u00c9"), NameKey("jos\u00e9"))
	// Decomposed é (e + combining acute) matches the precomposed form.
	assert.Equal(t, NameKey("Jos\u00e9"), NameKey("Jose\u0301"))
	assert.Equal(t, NameKey("Strasse"), NameKey("STRASSE"))
}

func TestPutCustomer_Validation(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	assert.True(t, IsInvalid(s.PutCustomer(ctx, pos.Customer{Phone: "555"})))
	assert.True(t, IsInvalid(s.PutCustomer(ctx, pos.Customer{ID: "c1", Phone: "none"})))
}

func TestCustomerByPhoneAndEmail(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.PutCustomer(ctx, createTestCustomer("c1", "Ann Lee", "555-010-1234", "ann@example.com")))
	require.NoError(t, s.PutCustomer(ctx, createTestCustomer("c2", "Bob Ray", "555-020-9999", "")))

	got, err := s.CustomerByPhone(ctx, "(555) 010 1234")
	require.NoError(t, err)
	assert.Equal(t, "c1", got.ID)

	got, err = s.CustomerByEmail(ctx, "ANN@EXAMPLE.COM")
	require.NoError(t, err)
	assert.Equal(t, "c1", got.ID)

	_, err = s.CustomerByPhone(ctx, "000")
	assert.True(t, IsNotFound(err))

	_, err = s.CustomerByEmail(ctx, "")
	assert.True(t, IsNotFound(err), "blank email must not match customers without email")
}

func TestPutCustomer_RefreshReplacesIndexes(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.PutCustomer(ctx, createTestCustomer("c1", "Ann", "555-0001", "old@example.com")))

	updated := createTestCustomer("c1", "Ann", "555-0002", "new@example.com")
	updated.LoyaltyPoints = 120
	require.NoError(t, s.PutCustomer(ctx, updated))

	_, err := s.CustomerByPhone(ctx, "555-0001")
	assert.True(t, IsNotFound(err))
	got, err := s.CustomerByEmail(ctx, "new@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(120), got.LoyaltyPoints)
}

func TestSearchCustomers_PartialPhone(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.PutCustomer(ctx, createTestCustomer("c1", "Ann Lee", "555-010-1234", "")))
	require.NoError(t, s.PutCustomer(ctx, createTestCustomer("c2", "Bob Ray", "555-020-1234", "")))
	require.NoError(t, s.PutCustomer(ctx, createTestCustomer("c3", "Cy Doe", "555-999-0000", "")))

	got, err := s.SearchCustomers(ctx, "1234", 0)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"c1", "c2"}, customerIDs(got))

	got, err = s.SearchCustomers(ctx, "010-12", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, customerIDs(got))
}

func TestSearchCustomers_NameIsCaseInsensitive(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.PutCustomer(ctx, createTestCustomer("c1", "Ann Lee", "5550001", "")))
	require.NoError(t, s.PutCustomer(ctx, createTestCustomer("c2", "JOANNA Smith", "5550002", "")))
	require.NoError(t, s.PutCustomer(ctx, createTestCustomer("c3", "Bob", "5550003", "bob@ANN.example")))
	require.NoError(t, s.PutCustomer(ctx, createTestCustomer("c4", "Cy", "5550004", "")))

	got, err := s.SearchCustomers(ctx, "aNN", 0)
	require.NoError(t, err)
	// Ordered by folded name.
	assert.Equal(t, []string{"c1", "c3", "c2"}, customerIDs(got))

	got, err = s.SearchCustomers(ctx, "ann", 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = s.SearchCustomers(ctx, "   ", 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSearchCustomers_WildcardsAreLiteral(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.PutCustomer(ctx, createTestCustomer("c1", "Ann", "5550001", "")))

	got, err := s.SearchCustomers(ctx, "%", 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSearchCustomers_GeneratedDirectory(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	fake := faker.NewWithSeed(rand.NewSource(11))

	const n = 50
	for i := 0; i < n; i++ {
		c := pos.Customer{
			ID:    fmt.Sprintf("c%03d", i),
			Name:  fake.Person().Name(),
			Phone: fmt.Sprintf("555-%04d-%03d", i, fake.IntBetween(0, 999)),
			Email: fake.Internet().Email(),
		}
		require.NoError(t, s.PutCustomer(ctx, c))
	}

	// Every customer is reachable by its own phone fragment.
	for i := 0; i < n; i += 7 {
		got, err := s.SearchCustomers(ctx, fmt.Sprintf("555-%04d", i), 0)
		require.NoError(t, err)
		assert.Contains(t, customerIDs(got), fmt.Sprintf("c%03d", i))
	}
}

func customerIDs(cs []pos.Customer) []string {
	ids := make([]string, len(cs))
	for i, c := range cs {
		ids[i] = c.ID
	}
	return ids
}
