package pos

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/possync/internal/money"
)

func sampleCart() Cart {
	return Cart{
		ID: "cart-1",
		Items: []CartItem{{
			ID:       "line-1",
			Item:     MenuItemRef{ID: "burger", Name: "Burger", UnitPrice: money.Dollars(10, 0)},
			Quantity: 2,
			Modifiers: []Modifier{
				{Group: "Extras", Options: []string{"Cheese", "Bacon"}, PriceDelta: money.Cents(150)},
			},
		}},
		Discount:  &Discount{Type: AdjustPercentage, Value: 1000},
		Tip:       &Tip{Type: AdjustFixed, Value: 200},
		OrderType: OrderDineIn,
	}
}

func TestCartClone_IsDeep(t *testing.T) {
	orig := sampleCart()
	cp := orig.Clone()

	cp.Items[0].Quantity = 9
	cp.Items[0].Modifiers[0].Options[0] = "Onion"
	cp.Discount.Value = 5000
	cp.Tip.Value = 0
	cp.Items = append(cp.Items, CartItem{ID: "line-2"})

	assert.Equal(t, int64(2), orig.Items[0].Quantity)
	assert.Equal(t, "Cheese", orig.Items[0].Modifiers[0].Options[0])
	assert.Equal(t, int64(1000), orig.Discount.Value)
	assert.Equal(t, int64(200), orig.Tip.Value)
	assert.Len(t, orig.Items, 1)
}

func TestCartItem_UnitPriceIncludesModifiers(t *testing.T) {
	c := sampleCart()
	assert.Equal(t, money.Cents(1150), c.Items[0].UnitPrice())
}

func TestCustomerClone_CopiesLastVisit(t *testing.T) {
	lv := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	c := Customer{ID: "c1", LastVisit: &lv}
	cp := c.Clone()
	*cp.LastVisit = lv.Add(time.Hour)
	assert.Equal(t, lv, *c.LastVisit)
}

func TestOrderTypeValid(t *testing.T) {
	for _, ot := range []OrderType{OrderDineIn, OrderTakeout, OrderDelivery, OrderPickup} {
		assert.True(t, ot.Valid(), ot)
	}
	assert.False(t, OrderType("drive_thru").Valid())
}

func TestMenuSnapshot_FindItem(t *testing.T) {
	snap := MenuSnapshot{Categories: []MenuCategory{
		{ID: "mains", Name: "Mains", Items: []MenuItem{{ID: "burger", Name: "Burger", Price: money.Dollars(10, 0)}}},
		{ID: "drinks", Name: "Drinks", Items: []MenuItem{{ID: "cola", Name: "Cola", Price: money.Cents(250)}}},
	}}

	it, cat, err := snap.FindItem("cola")
	require.NoError(t, err)
	assert.Equal(t, "Drinks", cat)
	assert.Equal(t, money.Cents(250), it.Ref(cat).UnitPrice)
	assert.Equal(t, 2, snap.ItemCount())

	_, _, err = snap.FindItem("pizza")
	assert.Error(t, err)
}
