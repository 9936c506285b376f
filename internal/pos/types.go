package pos

import (
	"fmt"
	"slices"
	"time"

	"github.com/roach88/possync/internal/money"
)

// OrderType is how the order leaves the restaurant.
type OrderType string

const (
	OrderDineIn   OrderType = "dine_in"
	OrderTakeout  OrderType = "takeout"
	OrderDelivery OrderType = "delivery"
	OrderPickup   OrderType = "pickup"
)

// Valid reports whether t is a known order type.
func (t OrderType) Valid() bool {
	switch t {
	case OrderDineIn, OrderTakeout, OrderDelivery, OrderPickup:
		return true
	}
	return false
}

// AdjustmentType selects how a Discount or Tip value is interpreted.
type AdjustmentType string

const (
	// AdjustPercentage interprets Value as basis points of the base amount.
	AdjustPercentage AdjustmentType = "percentage"
	// AdjustFixed interprets Value as minor currency units.
	AdjustFixed AdjustmentType = "fixed"
)

// Valid reports whether t is a known adjustment type.
func (t AdjustmentType) Valid() bool {
	return t == AdjustPercentage || t == AdjustFixed
}

// MenuItemRef is the slice of a menu item a cart line needs.
type MenuItemRef struct {
	ID        string       `json:"id" yaml:"id"`
	Name      string       `json:"name" yaml:"name"`
	UnitPrice money.Amount `json:"unit_price" yaml:"unit_price"`
	Category  string       `json:"category,omitempty" yaml:"category,omitempty"`
}

// Modifier is one option set chosen for a line, e.g. "Size: Large".
type Modifier struct {
	Group      string       `json:"group" yaml:"group"`
	Options    []string     `json:"options" yaml:"options"`
	PriceDelta money.Amount `json:"price_delta" yaml:"price_delta"`
}

// CartItem is a cart line. Subtotal, Tax and Total are derived.
type CartItem struct {
	ID           string      `json:"id" yaml:"id"`
	Item         MenuItemRef `json:"item" yaml:"item"`
	Quantity     int64       `json:"quantity" yaml:"quantity"`
	Modifiers    []Modifier  `json:"modifiers,omitempty" yaml:"modifiers,omitempty"`
	Instructions string      `json:"instructions,omitempty" yaml:"instructions,omitempty"`

	Subtotal money.Amount `json:"subtotal" yaml:"-"`
	Tax      money.Amount `json:"tax" yaml:"-"`
	Total    money.Amount `json:"total" yaml:"-"`
}

// UnitPrice is the item price plus every selected modifier delta.
func (ci CartItem) UnitPrice() money.Amount {
	p := ci.Item.UnitPrice
	for _, m := range ci.Modifiers {
		p += m.PriceDelta
	}
	return p
}

// Discount is the single active discount on a cart.
type Discount struct {
	Type AdjustmentType `json:"type" yaml:"type"`
	// Value is basis points for AdjustPercentage, minor units for AdjustFixed.
	Value         int64        `json:"value" yaml:"value"`
	Reason        string       `json:"reason,omitempty" yaml:"reason,omitempty"`
	AppliedAmount money.Amount `json:"applied_amount" yaml:"-"`
}

// Tip is the single tip on a cart.
type Tip struct {
	Type   AdjustmentType `json:"type" yaml:"type"`
	Value  int64          `json:"value" yaml:"value"`
	Amount money.Amount   `json:"amount" yaml:"-"`
}

// Cart is an order in progress.
type Cart struct {
	ID         string     `json:"id" yaml:"id"`
	Items      []CartItem `json:"items" yaml:"items"`
	Discount   *Discount  `json:"discount,omitempty" yaml:"discount,omitempty"`
	Tip        *Tip       `json:"tip,omitempty" yaml:"tip,omitempty"`
	OrderType  OrderType  `json:"order_type" yaml:"order_type"`
	CustomerID string     `json:"customer_id,omitempty" yaml:"customer_id,omitempty"`
	TableID    string     `json:"table_id,omitempty" yaml:"table_id,omitempty"`

	Subtotal       money.Amount `json:"subtotal" yaml:"-"`
	DiscountAmount money.Amount `json:"discount_amount" yaml:"-"`
	Tax            money.Amount `json:"tax" yaml:"-"`
	TipAmount      money.Amount `json:"tip_amount" yaml:"-"`
	Total          money.Amount `json:"total" yaml:"-"`

	CreatedAt time.Time `json:"created_at" yaml:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at,omitempty"`
}

// Clone returns a deep copy; mutating the copy never touches c.
func (c Cart) Clone() Cart {
	out := c
	if c.Items != nil {
		out.Items = make([]CartItem, len(c.Items))
		for i, it := range c.Items {
			out.Items[i] = it.Clone()
		}
	}
	if c.Discount != nil {
		d := *c.Discount
		out.Discount = &d
	}
	if c.Tip != nil {
		tp := *c.Tip
		out.Tip = &tp
	}
	return out
}

// Clone returns a deep copy of the line.
func (ci CartItem) Clone() CartItem {
	out := ci
	if ci.Modifiers != nil {
		out.Modifiers = make([]Modifier, len(ci.Modifiers))
		for i, m := range ci.Modifiers {
			m.Options = slices.Clone(m.Options)
			out.Modifiers[i] = m
		}
	}
	return out
}

// ItemCount is the total quantity across lines.
func (c Cart) ItemCount() int64 {
	var n int64
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}

// PaymentMethod is how a sale was tendered.
type PaymentMethod string

const (
	PaymentCash  PaymentMethod = "cash"
	PaymentCard  PaymentMethod = "card"
	PaymentOther PaymentMethod = "other"
)

// PaymentResult is what the payment step reports for a completed sale.
type PaymentResult struct {
	TransactionID   string        `json:"transaction_id" yaml:"transaction_id"`
	ReferenceNumber string        `json:"reference_number" yaml:"reference_number"`
	Method          PaymentMethod `json:"method,omitempty" yaml:"method,omitempty"`
	Amount          money.Amount  `json:"amount" yaml:"amount"`
	ProcessedAt     time.Time     `json:"processed_at" yaml:"processed_at"`
}

// Customer is a cached customer directory entry.
type Customer struct {
	ID            string       `json:"id" yaml:"id"`
	Name          string       `json:"name" yaml:"name"`
	Phone         string       `json:"phone" yaml:"phone"`
	Email         string       `json:"email,omitempty" yaml:"email,omitempty"`
	LoyaltyPoints int64        `json:"loyalty_points" yaml:"loyalty_points"`
	VisitCount    int64        `json:"visit_count" yaml:"visit_count"`
	TotalSpent    money.Amount `json:"total_spent" yaml:"total_spent"`
	LastVisit     *time.Time   `json:"last_visit,omitempty" yaml:"last_visit,omitempty"`
	UpdatedAt     time.Time    `json:"updated_at" yaml:"updated_at,omitempty"`
}

// Clone returns a deep copy of the customer.
func (c Customer) Clone() Customer {
	out := c
	if c.LastVisit != nil {
		lv := *c.LastVisit
		out.LastVisit = &lv
	}
	return out
}

// OfflineTransaction is a recorded sale awaiting or past synchronization.
//
// Everything except Synced/SyncedAt and the diagnostic Attempts/LastError
// fields is frozen at recording time.
type OfflineTransaction struct {
	ID         string        `json:"id"`
	TerminalID string        `json:"terminal_id,omitempty"`
	Cart       Cart          `json:"cart"`
	Payment    PaymentResult `json:"payment"`
	Customer   *Customer     `json:"customer,omitempty"`
	CapturedAt time.Time     `json:"captured_at"`
	Synced     bool          `json:"synced"`
	SyncedAt   *time.Time    `json:"synced_at,omitempty"`

	// Attempts and LastError describe failed sends. They are not a state:
	// a transaction with Attempts > 0 is still just unsynced.
	Attempts  int    `json:"attempts,omitempty"`
	LastError string `json:"last_error,omitempty"`
}

// MenuCategory groups menu items for display.
type MenuCategory struct {
	ID    string     `json:"id" yaml:"id"`
	Name  string     `json:"name" yaml:"name"`
	Items []MenuItem `json:"items" yaml:"items"`
}

// MenuItem is a full menu entry as supplied by the menu service.
type MenuItem struct {
	ID             string          `json:"id" yaml:"id"`
	Name           string          `json:"name" yaml:"name"`
	Description    string          `json:"description,omitempty" yaml:"description,omitempty"`
	Price          money.Amount    `json:"price" yaml:"price"`
	Available      bool            `json:"available" yaml:"available"`
	ModifierGroups []ModifierGroup `json:"modifier_groups,omitempty" yaml:"modifier_groups,omitempty"`
}

// Ref returns the cart-facing view of the item.
func (m MenuItem) Ref(category string) MenuItemRef {
	return MenuItemRef{ID: m.ID, Name: m.Name, UnitPrice: m.Price, Category: category}
}

// ModifierGroup is a set of options offered for a menu item.
type ModifierGroup struct {
	Name    string           `json:"name" yaml:"name"`
	Options []ModifierOption `json:"options" yaml:"options"`
}

// ModifierOption is one selectable option with its price delta.
type ModifierOption struct {
	Name       string       `json:"name" yaml:"name"`
	PriceDelta money.Amount `json:"price_delta" yaml:"price_delta"`
}

// MenuSnapshot is the cached full menu.
type MenuSnapshot struct {
	Categories []MenuCategory `json:"categories" yaml:"categories"`
	CapturedAt time.Time      `json:"captured_at" yaml:"captured_at,omitempty"`
}

// FindItem looks up a menu item by id.
func (s MenuSnapshot) FindItem(id string) (MenuItem, string, error) {
	for _, c := range s.Categories {
		for _, it := range c.Items {
			if it.ID == id {
				return it, c.Name, nil
			}
		}
	}
	return MenuItem{}, "", fmt.Errorf("menu item %q not found", id)
}

// ItemCount is the number of items across all categories.
func (s MenuSnapshot) ItemCount() int {
	n := 0
	for _, c := range s.Categories {
		n += len(c.Items)
	}
	return n
}
