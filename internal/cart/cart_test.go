package cart

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/possync/internal/money"
	"github.com/roach88/possync/internal/pos"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func burger(qty int64) pos.CartItem {
	return pos.CartItem{
		Item:     pos.MenuItemRef{ID: "burger", Name: "Burger", UnitPrice: money.Dollars(10, 0)},
		Quantity: qty,
	}
}

func TestComputeTotals_ReferenceScenario(t *testing.T) {
	c := pos.Cart{
		ID:       "cart-1",
		Items:    []pos.CartItem{burger(2)},
		Discount: &pos.Discount{Type: pos.AdjustPercentage, Value: 1000},
		Tip:      &pos.Tip{Type: pos.AdjustPercentage, Value: 1800},
	}

	got := ComputeTotals(c, money.Percent(8))

	assert.Equal(t, money.Dollars(20, 0), got.Subtotal)
	assert.Equal(t, money.Dollars(2, 0), got.DiscountAmount)
	assert.Equal(t, money.Dollars(2, 0), got.Discount.AppliedAmount)
	assert.Equal(t, money.Dollars(1, 44), got.Tax)
	assert.Equal(t, money.Dollars(3, 24), got.TipAmount)
	assert.Equal(t, money.Dollars(3, 24), got.Tip.Amount)
	assert.Equal(t, money.Dollars(22, 68), got.Total)
	assert.Equal(t, "$22.68", got.Total.String())
}

func TestComputeTotals_DoesNotMutateInput(t *testing.T) {
	c := pos.Cart{Items: []pos.CartItem{burger(2)}, Discount: &pos.Discount{Type: pos.AdjustFixed, Value: 100}}
	_ = ComputeTotals(c, money.Percent(8))

	assert.Zero(t, c.Subtotal)
	assert.Zero(t, c.Items[0].Subtotal)
	assert.Zero(t, c.Discount.AppliedAmount)
}

func TestComputeTotals_Modifiers(t *testing.T) {
	line := burger(3)
	line.Modifiers = []pos.Modifier{
		{Group: "Extras", Options: []string{"Cheese"}, PriceDelta: money.Cents(125)},
		{Group: "Bun", Options: []string{"Lettuce wrap"}, PriceDelta: money.Cents(-50)},
	}
	got := ComputeTotals(pos.Cart{Items: []pos.CartItem{line}}, 0)

	assert.Equal(t, money.Cents(3225), got.Items[0].Subtotal)
	assert.Equal(t, money.Cents(3225), got.Subtotal)
	assert.Equal(t, got.Subtotal, got.Total)
}

func TestComputeTotals_DiscountClamped(t *testing.T) {
	tests := []struct {
		name     string
		discount pos.Discount
		want     money.Amount
	}{
		{"fixed above subtotal", pos.Discount{Type: pos.AdjustFixed, Value: 5000}, money.Dollars(20, 0)},
		{"percentage above 100", pos.Discount{Type: pos.AdjustPercentage, Value: 15000}, money.Dollars(20, 0)},
		{"negative fixed", pos.Discount{Type: pos.AdjustFixed, Value: -100}, 0},
		{"zero", pos.Discount{Type: pos.AdjustPercentage, Value: 0}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := tt.discount
			got := ComputeTotals(pos.Cart{Items: []pos.CartItem{burger(2)}, Discount: &d}, money.Percent(8))
			assert.Equal(t, tt.want, got.DiscountAmount)
			assert.GreaterOrEqual(t, got.Total, money.Amount(0))
		})
	}
}

func TestComputeTotals_TipOnPostDiscountPreTaxBase(t *testing.T) {
	c := pos.Cart{
		Items:    []pos.CartItem{burger(1)},
		Discount: &pos.Discount{Type: pos.AdjustFixed, Value: 500},
		Tip:      &pos.Tip{Type: pos.AdjustPercentage, Value: 2000},
	}
	got := ComputeTotals(c, money.Percent(10))

	// taxable base is 5.00; 20% tip is 1.00, not 20% of 10.00 or of 5.50.
	assert.Equal(t, money.Dollars(1, 0), got.TipAmount)
	assert.Equal(t, money.Cents(50), got.Tax)
	assert.Equal(t, money.Cents(650), got.Total)
}

func TestComputeTotals_EmptyCart(t *testing.T) {
	got := ComputeTotals(New("c", pos.OrderTakeout, testNow), money.Percent(8))
	assert.Zero(t, got.Subtotal)
	assert.Zero(t, got.Total)
}

func randomCart(r *rand.Rand) pos.Cart {
	c := pos.Cart{ID: "rand"}
	for i := 0; i < r.Intn(6); i++ {
		line := pos.CartItem{
			Item:     pos.MenuItemRef{ID: "item", UnitPrice: money.Cents(r.Int63n(5000) + 1)},
			Quantity: r.Int63n(5) + 1,
		}
		if r.Intn(2) == 0 {
			line.Modifiers = []pos.Modifier{{Group: "g", PriceDelta: money.Cents(r.Int63n(300))}}
		}
		c.Items = append(c.Items, line)
	}
	switch r.Intn(3) {
	case 1:
		c.Discount = &pos.Discount{Type: pos.AdjustPercentage, Value: r.Int63n(10001)}
	case 2:
		c.Discount = &pos.Discount{Type: pos.AdjustFixed, Value: r.Int63n(5000)}
	}
	switch r.Intn(3) {
	case 1:
		c.Tip = &pos.Tip{Type: pos.AdjustPercentage, Value: r.Int63n(3001)}
	case 2:
		c.Tip = &pos.Tip{Type: pos.AdjustFixed, Value: r.Int63n(2000)}
	}
	return c
}

func TestComputeTotals_InvariantHoldsForRandomCarts(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		c := randomCart(r)
		rate := money.Rate(r.Int63n(2500))
		got := ComputeTotals(c, rate)

		require.Equal(t, got.Subtotal-got.DiscountAmount+got.Tax+got.TipAmount, got.Total, "cart %d", i)
		require.NoError(t, VerifyTotals(got, rate), "cart %d", i)
	}
}

func TestComputeTotals_Idempotent(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		c := randomCart(r)
		rate := money.Rate(r.Int63n(2500))
		once := ComputeTotals(c, rate)
		twice := ComputeTotals(once, rate)
		require.Equal(t, once, twice, "cart %d", i)
	}
}

func TestVerifyTotals_DetectsStaleCart(t *testing.T) {
	priced := ComputeTotals(pos.Cart{Items: []pos.CartItem{burger(2)}}, money.Percent(8))
	require.NoError(t, VerifyTotals(priced, money.Percent(8)))

	edited := priced.Clone()
	edited.Items[0].Quantity = 3
	assert.ErrorIs(t, VerifyTotals(edited, money.Percent(8)), ErrStaleTotals)

	assert.ErrorIs(t, VerifyTotals(priced, money.Percent(10)), ErrStaleTotals)

	broken := priced
	broken.Total++
	assert.ErrorIs(t, VerifyTotals(broken, money.Percent(8)), ErrStaleTotals)
}

func TestAddItem_MergesIdenticalLines(t *testing.T) {
	c := New("c", pos.OrderDineIn, testNow)
	c, err := AddItem(c, burger(1), money.Percent(8), testNow)
	require.NoError(t, err)
	later := testNow.Add(time.Minute)
	c, err = AddItem(c, burger(2), money.Percent(8), later)
	require.NoError(t, err)

	require.Len(t, c.Items, 1)
	assert.Equal(t, int64(3), c.Items[0].Quantity)
	assert.Equal(t, "line-1", c.Items[0].ID)
	assert.Equal(t, money.Dollars(30, 0), c.Subtotal)
	assert.Equal(t, later, c.UpdatedAt)

	withNote := burger(1)
	withNote.Instructions = "no onions"
	c, err = AddItem(c, withNote, money.Percent(8), later)
	require.NoError(t, err)
	assert.Len(t, c.Items, 2)
	assert.Equal(t, "line-2", c.Items[1].ID)
}

func TestAddItem_DifferentUnitPriceIsSeparateLine(t *testing.T) {
	c := New("c", pos.OrderTakeout, testNow)
	c, err := AddItem(c, burger(1), 0, testNow)
	require.NoError(t, err)
	pricier := burger(1)
	pricier.Item.UnitPrice = money.Dollars(50, 0)
	c, err = AddItem(c, pricier, 0, testNow)
	require.NoError(t, err)

	require.Len(t, c.Items, 2)
	assert.Equal(t, int64(1), c.Items[0].Quantity)
	assert.Equal(t, money.Dollars(60, 0), c.Subtotal)
}

func TestAddItem_RejectsNonPositiveQuantity(t *testing.T) {
	_, err := AddItem(New("c", pos.OrderDineIn, testNow), burger(0), 0, testNow)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestUpdateQuantityAndRemove(t *testing.T) {
	rate := money.Percent(8)
	c, err := AddItem(New("c", pos.OrderDineIn, testNow), burger(1), rate, testNow)
	require.NoError(t, err)

	c, err = UpdateQuantity(c, "line-1", 4, rate, testNow)
	require.NoError(t, err)
	assert.Equal(t, money.Dollars(40, 0), c.Subtotal)
	assert.Equal(t, money.Dollars(43, 20), c.Total)

	_, err = UpdateQuantity(c, "missing", 1, rate, testNow)
	assert.ErrorIs(t, err, ErrLineNotFound)

	c, err = UpdateQuantity(c, "line-1", 0, rate, testNow)
	require.NoError(t, err)
	assert.Empty(t, c.Items)
	assert.Zero(t, c.Total)

	_, err = RemoveItem(c, "line-1", rate, testNow)
	assert.ErrorIs(t, err, ErrLineNotFound)
}

func TestDiscountAndTipMutators(t *testing.T) {
	rate := money.Percent(8)
	c, err := AddItem(New("c", pos.OrderDineIn, testNow), burger(2), rate, testNow)
	require.NoError(t, err)

	c, err = ApplyDiscount(c, pos.Discount{Type: pos.AdjustPercentage, Value: 1000}, rate, testNow)
	require.NoError(t, err)
	c, err = SetTip(c, pos.Tip{Type: pos.AdjustPercentage, Value: 1800}, rate, testNow)
	require.NoError(t, err)
	assert.Equal(t, money.Dollars(22, 68), c.Total)

	c = ClearTip(c, rate, testNow)
	assert.Equal(t, money.Dollars(19, 44), c.Total)

	c = ClearDiscount(c, rate, testNow)
	assert.Equal(t, money.Dollars(21, 60), c.Total)

	_, err = ApplyDiscount(c, pos.Discount{Type: "bogus", Value: 1}, rate, testNow)
	assert.ErrorIs(t, err, ErrInvalidAdjustment)
	_, err = SetTip(c, pos.Tip{Type: pos.AdjustFixed, Value: -1}, rate, testNow)
	assert.ErrorIs(t, err, ErrInvalidAdjustment)
}
