// Package cart prices carts.
//
// ComputeTotals is a pure function: it never performs I/O and never mutates
// its input. Every mutator in this package returns a new, fully recomputed
// cart so a caller can never observe a cart whose totals lag its contents.
package cart

import (
	"errors"
	"fmt"
	"time"

	"github.com/roach88/possync/internal/money"
	"github.com/roach88/possync/internal/pos"
)

// Errors returned by the mutators and VerifyTotals.
var (
	ErrInvalidQuantity   = errors.New("quantity must be positive")
	ErrLineNotFound      = errors.New("cart line not found")
	ErrInvalidAdjustment = errors.New("invalid discount or tip")
	ErrStaleTotals       = errors.New("cart totals do not match cart contents")
)

// ComputeTotals returns a copy of c with every derived monetary field set.
//
//	subtotal = Σ (unit price + modifier deltas) × quantity
//	discount = percentage of subtotal, or fixed; clamped to [0, subtotal]
//	taxable  = subtotal − discount
//	tax      = taxable × taxRate
//	tip      = percentage of taxable, or fixed
//	total    = taxable + tax + tip
//
// Each derived amount is rounded once, to the minor unit, from exact integer
// inputs, so ComputeTotals(ComputeTotals(c, r), r) == ComputeTotals(c, r).
func ComputeTotals(c pos.Cart, taxRate money.Rate) pos.Cart {
	out := c.Clone()

	var subtotal money.Amount
	for i := range out.Items {
		it := &out.Items[i]
		it.Subtotal = it.UnitPrice().Mul(it.Quantity)
		it.Tax = taxRate.Apply(it.Subtotal)
		it.Total = it.Subtotal + it.Tax
		subtotal += it.Subtotal
	}

	var discount money.Amount
	if out.Discount != nil {
		switch out.Discount.Type {
		case pos.AdjustPercentage:
			discount = money.Rate(out.Discount.Value).Apply(subtotal)
		case pos.AdjustFixed:
			discount = money.Amount(out.Discount.Value)
		}
		discount = discount.Clamp(0, max(subtotal, 0))
		out.Discount.AppliedAmount = discount
	}

	taxable := subtotal - discount
	tax := taxRate.Apply(taxable)

	var tip money.Amount
	if out.Tip != nil {
		switch out.Tip.Type {
		case pos.AdjustPercentage:
			tip = money.Rate(out.Tip.Value).Apply(taxable)
		case pos.AdjustFixed:
			tip = money.Amount(out.Tip.Value)
		}
		tip = max(tip, 0)
		out.Tip.Amount = tip
	}

	out.Subtotal = subtotal
	out.DiscountAmount = discount
	out.Tax = tax
	out.TipAmount = tip
	out.Total = taxable + tax + tip
	return out
}

// VerifyTotals checks that c carries the totals ComputeTotals would produce
// for taxRate. It guards persistence against carts priced at a stale rate or
// edited after pricing.
func VerifyTotals(c pos.Cart, taxRate money.Rate) error {
	want := ComputeTotals(c, taxRate)
	if c.Total != c.Subtotal-c.DiscountAmount+c.Tax+c.TipAmount {
		return fmt.Errorf("%w: total %s != subtotal %s - discount %s + tax %s + tip %s",
			ErrStaleTotals, c.Total, c.Subtotal, c.DiscountAmount, c.Tax, c.TipAmount)
	}
	if want.Subtotal != c.Subtotal || want.DiscountAmount != c.DiscountAmount ||
		want.Tax != c.Tax || want.TipAmount != c.TipAmount || want.Total != c.Total {
		return fmt.Errorf("%w: expected total %s, cart has %s", ErrStaleTotals, want.Total, c.Total)
	}
	return nil
}

// New returns an empty, priced cart.
func New(id string, orderType pos.OrderType, now time.Time) pos.Cart {
	return pos.Cart{
		ID:        id,
		Items:     []pos.CartItem{},
		OrderType: orderType,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AddItem appends a line, or bumps the quantity of an identical line (same
// item, modifiers and instructions).
func AddItem(c pos.Cart, line pos.CartItem, taxRate money.Rate, now time.Time) (pos.Cart, error) {
	if line.Quantity <= 0 {
		return c, ErrInvalidQuantity
	}
	out := c.Clone()
	for i := range out.Items {
		if sameLine(out.Items[i], line) {
			out.Items[i].Quantity += line.Quantity
			return touch(out, taxRate, now), nil
		}
	}
	if line.ID == "" {
		line.ID = nextLineID(out)
	}
	out.Items = append(out.Items, line.Clone())
	return touch(out, taxRate, now), nil
}

// UpdateQuantity sets a line's quantity. Zero removes the line.
func UpdateQuantity(c pos.Cart, lineID string, qty int64, taxRate money.Rate, now time.Time) (pos.Cart, error) {
	if qty < 0 {
		return c, ErrInvalidQuantity
	}
	if qty == 0 {
		return RemoveItem(c, lineID, taxRate, now)
	}
	out := c.Clone()
	for i := range out.Items {
		if out.Items[i].ID == lineID {
			out.Items[i].Quantity = qty
			return touch(out, taxRate, now), nil
		}
	}
	return c, fmt.Errorf("%w: %s", ErrLineNotFound, lineID)
}

// RemoveItem drops a line.
func RemoveItem(c pos.Cart, lineID string, taxRate money.Rate, now time.Time) (pos.Cart, error) {
	out := c.Clone()
	for i := range out.Items {
		if out.Items[i].ID == lineID {
			out.Items = append(out.Items[:i], out.Items[i+1:]...)
			return touch(out, taxRate, now), nil
		}
	}
	return c, fmt.Errorf("%w: %s", ErrLineNotFound, lineID)
}

// ApplyDiscount replaces the active discount.
func ApplyDiscount(c pos.Cart, d pos.Discount, taxRate money.Rate, now time.Time) (pos.Cart, error) {
	if !d.Type.Valid() || d.Value < 0 {
		return c, fmt.Errorf("%w: discount %s/%d", ErrInvalidAdjustment, d.Type, d.Value)
	}
	out := c.Clone()
	out.Discount = &d
	return touch(out, taxRate, now), nil
}

// ClearDiscount removes the active discount.
func ClearDiscount(c pos.Cart, taxRate money.Rate, now time.Time) pos.Cart {
	out := c.Clone()
	out.Discount = nil
	return touch(out, taxRate, now)
}

// SetTip replaces the tip.
func SetTip(c pos.Cart, tip pos.Tip, taxRate money.Rate, now time.Time) (pos.Cart, error) {
	if !tip.Type.Valid() || tip.Value < 0 {
		return c, fmt.Errorf("%w: tip %s/%d", ErrInvalidAdjustment, tip.Type, tip.Value)
	}
	out := c.Clone()
	out.Tip = &tip
	return touch(out, taxRate, now), nil
}

// ClearTip removes the tip.
func ClearTip(c pos.Cart, taxRate money.Rate, now time.Time) pos.Cart {
	out := c.Clone()
	out.Tip = nil
	return touch(out, taxRate, now)
}

func touch(c pos.Cart, taxRate money.Rate, now time.Time) pos.Cart {
	c.UpdatedAt = now
	return ComputeTotals(c, taxRate)
}

func nextLineID(c pos.Cart) string {
	used := make(map[string]bool, len(c.Items))
	for _, it := range c.Items {
		used[it.ID] = true
	}
	for n := len(c.Items) + 1; ; n++ {
		id := fmt.Sprintf("line-%d", n)
		if !used[id] {
			return id
		}
	}
}

func sameLine(a, b pos.CartItem) bool {
	if a.Item.ID != b.Item.ID || a.Item.UnitPrice != b.Item.UnitPrice || a.Instructions != b.Instructions || len(a.Modifiers) != len(b.Modifiers) {
		return false
	}
	for i := range a.Modifiers {
		ma, mb := a.Modifiers[i], b.Modifiers[i]
		if ma.Group != mb.Group || ma.PriceDelta != mb.PriceDelta || len(ma.Options) != len(mb.Options) {
			return false
		}
		for j := range ma.Options {
			if ma.Options[j] != mb.Options[j] {
				return false
			}
		}
	}
	return true
}
