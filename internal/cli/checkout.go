package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/lucsky/cuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/possync/internal/cart"
	"github.com/roach88/possync/internal/customers"
	"github.com/roach88/possync/internal/menucache"
	"github.com/roach88/possync/internal/money"
	"github.com/roach88/possync/internal/pos"
	"github.com/roach88/possync/internal/store"
)

// OrderFile is the YAML document accepted by checkout.
//
//	id: table-4
//	order_type: dine_in
//	items:
//	  - menu_item: burger
//	    quantity: 2
//	    modifiers: [{group: Size, options: [Large]}]
//	  - name: Corkage
//	    price: "5.00"
//	discount: {percent: "10", reason: happy hour}
//	tip: {amount: "3.00"}
//	customer_phone: 555-010-1234
//	payment: {method: card, reference: AUTH-77}
type OrderFile struct {
	ID            string       `yaml:"id"`
	OrderType     string       `yaml:"order_type"`
	TableID       string       `yaml:"table_id"`
	Items         []OrderLine  `yaml:"items"`
	Discount      *OrderAdjust `yaml:"discount"`
	Tip           *OrderAdjust `yaml:"tip"`
	CustomerPhone string       `yaml:"customer_phone"`
	Payment       OrderPayment `yaml:"payment"`
}

// OrderLine is one cart line. A line names either a cached menu item or an
// ad hoc name and price.
type OrderLine struct {
	MenuItem     string          `yaml:"menu_item"`
	Name         string          `yaml:"name"`
	Price        string          `yaml:"price"`
	Quantity     int64           `yaml:"quantity"`
	Modifiers    []OrderModifier `yaml:"modifiers"`
	Instructions string          `yaml:"instructions"`
}

// OrderModifier selects options from a modifier group. Price, if empty, is
// taken from the menu.
type OrderModifier struct {
	Group   string   `yaml:"group"`
	Options []string `yaml:"options"`
	Price   string   `yaml:"price"`
}

// OrderAdjust is a discount or tip: exactly one of Percent or Amount.
type OrderAdjust struct {
	Percent string `yaml:"percent"`
	Amount  string `yaml:"amount"`
	Reason  string `yaml:"reason"`
}

// OrderPayment describes how the sale was paid. Amount defaults to the
// cart total; TransactionID is generated if empty.
type OrderPayment struct {
	Method        string `yaml:"method"`
	Reference     string `yaml:"reference"`
	TransactionID string `yaml:"transaction_id"`
	Amount        string `yaml:"amount"`
}

// errBadOrder marks problems with the order file itself.
var errBadOrder = errors.New("invalid order")

// NewCheckoutCommand creates the checkout command.
func NewCheckoutCommand(rootOpts *RootOptions) *cobra.Command {
	var hold bool

	cmd := &cobra.Command{
		Use:   "checkout <order.yaml|->",
		Short: "Price an order and record the sale",
		Long: `Price the order described by a YAML file and record it as an offline
transaction. The transaction is durable before this command reports success
and is uploaded by the next sync.

Lines naming a menu_item are priced from the cached menu. With --hold the
priced cart is saved as an order in progress instead of being recorded.

Examples:
  possync checkout order.yaml
  possync checkout --hold order.yaml
  cat order.yaml | possync checkout -`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			order, err := readOrderFile(cmd.InOrStdin(), args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read order", err)
			}

			t, err := rootOpts.openTerminal()
			if err != nil {
				return err
			}
			defer t.Close()
			ctx := cmd.Context()
			f := rootOpts.formatter(cmd)

			c, err := buildCart(ctx, t.menu, order, t.cfg.TaxRate, rootOpts.now())
			if err != nil {
				return checkoutError(err)
			}

			if hold {
				if err := t.store.PutCart(ctx, c); err != nil {
					return WrapExitError(ExitCommandError, "failed to hold cart", err)
				}
				return f.Render(c, func(w io.Writer) error {
					return writeCartText(w, c)
				})
			}

			var customer *pos.Customer
			if order.CustomerPhone != "" {
				t.probeOnce(ctx)
				found, err := t.customers.Lookup(ctx, order.CustomerPhone)
				switch {
				case err == nil:
					customer = &found
				case errors.Is(err, customers.ErrNotFound):
					rootOpts.log().Warn("customer not found, recording as guest", "phone", order.CustomerPhone)
				default:
					rootOpts.log().Warn("customer lookup failed, recording as guest", "error", err)
				}
			}

			payment, err := buildPayment(order.Payment, c.Total)
			if err != nil {
				return checkoutError(err)
			}

			tx, err := t.recorder.Record(ctx, c, payment, customer)
			if err != nil {
				return checkoutError(err)
			}
			return f.Render(tx, func(w io.Writer) error {
				return WriteReceipt(w, tx)
			})
		},
	}

	cmd.Flags().BoolVar(&hold, "hold", false, "save the priced cart as an order in progress instead of recording it")

	return cmd
}

// checkoutError maps a failed checkout to an exit code. Bad input and
// storage problems are command errors; a rejected sale is a failure.
func checkoutError(err error) error {
	if errors.Is(err, errBadOrder) {
		return WrapExitError(ExitCommandError, "invalid order", err)
	}
	if store.IsUnavailable(err) {
		return WrapExitError(ExitCommandError, "sale not recorded: storage unavailable", err)
	}
	if errors.Is(err, menucache.ErrNoMenu) {
		return WrapExitError(ExitCommandError, "no menu cached; run 'possync menu import' first", err)
	}
	return WrapExitError(ExitFailure, "sale not recorded", err)
}

func readOrderFile(stdin io.Reader, path string) (OrderFile, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return OrderFile{}, err
	}

	var order OrderFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&order); err != nil {
		return OrderFile{}, fmt.Errorf("%w: %w", errBadOrder, err)
	}
	if len(order.Items) == 0 {
		return OrderFile{}, fmt.Errorf("%w: no items", errBadOrder)
	}
	return order, nil
}

// buildCart prices order at taxRate through the cart mutators, so every
// intermediate cart is consistent.
func buildCart(ctx context.Context, menu *menucache.Cache, order OrderFile, taxRate money.Rate, now time.Time) (pos.Cart, error) {
	orderType := pos.OrderType(order.OrderType)
	if orderType == "" {
		orderType = pos.OrderTakeout
	}
	if !orderType.Valid() {
		return pos.Cart{}, fmt.Errorf("%w: unknown order_type %q", errBadOrder, order.OrderType)
	}
	id := order.ID
	if id == "" {
		id = cuid.New()
	}

	var snap *pos.MenuSnapshot
	c := cart.New(id, orderType, now.UTC())
	c.TableID = order.TableID
	for i, l := range order.Items {
		if l.MenuItem != "" && snap == nil {
			s, err := menu.Get(ctx)
			if err != nil && !errors.Is(err, menucache.ErrStale) {
				return pos.Cart{}, err
			}
			snap = &s
		}
		line, err := cartLine(snap, l)
		if err != nil {
			return pos.Cart{}, fmt.Errorf("item %d: %w", i+1, err)
		}
		if c, err = cart.AddItem(c, line, taxRate, now.UTC()); err != nil {
			return pos.Cart{}, fmt.Errorf("item %d: %w", i+1, err)
		}
	}

	if order.Discount != nil {
		typ, value, err := adjustment(*order.Discount)
		if err != nil {
			return pos.Cart{}, fmt.Errorf("discount: %w", err)
		}
		c, err = cart.ApplyDiscount(c, pos.Discount{Type: typ, Value: value, Reason: order.Discount.Reason}, taxRate, now.UTC())
		if err != nil {
			return pos.Cart{}, err
		}
	}
	if order.Tip != nil {
		typ, value, err := adjustment(*order.Tip)
		if err != nil {
			return pos.Cart{}, fmt.Errorf("tip: %w", err)
		}
		if c, err = cart.SetTip(c, pos.Tip{Type: typ, Value: value}, taxRate, now.UTC()); err != nil {
			return pos.Cart{}, err
		}
	}
	return c, nil
}

func cartLine(snap *pos.MenuSnapshot, l OrderLine) (pos.CartItem, error) {
	qty := l.Quantity
	if qty == 0 {
		qty = 1
	}
	line := pos.CartItem{Quantity: qty, Instructions: l.Instructions}

	var menuItem *pos.MenuItem
	switch {
	case l.MenuItem != "":
		it, category, err := snap.FindItem(l.MenuItem)
		if err != nil {
			return pos.CartItem{}, fmt.Errorf("%w: %w", errBadOrder, err)
		}
		if !it.Available {
			return pos.CartItem{}, fmt.Errorf("%w: %s is not available", errBadOrder, it.Name)
		}
		line.Item = it.Ref(category)
		menuItem = &it
	case l.Name != "" && l.Price != "":
		price, err := money.Parse(l.Price)
		if err != nil {
			return pos.CartItem{}, fmt.Errorf("%w: %w", errBadOrder, err)
		}
		line.Item = pos.MenuItemRef{ID: "custom:" + strings.ToLower(l.Name), Name: l.Name, UnitPrice: price}
	default:
		return pos.CartItem{}, fmt.Errorf("%w: need menu_item, or name and price", errBadOrder)
	}

	for _, m := range l.Modifiers {
		mod := pos.Modifier{Group: m.Group, Options: m.Options}
		if m.Price != "" {
			delta, err := money.Parse(m.Price)
			if err != nil {
				return pos.CartItem{}, fmt.Errorf("%w: modifier %s: %w", errBadOrder, m.Group, err)
			}
			mod.PriceDelta = delta
		} else if menuItem != nil {
			delta, err := modifierDelta(*menuItem, m)
			if err != nil {
				return pos.CartItem{}, err
			}
			mod.PriceDelta = delta
		}
		line.Modifiers = append(line.Modifiers, mod)
	}
	return line, nil
}

// modifierDelta sums the menu's price deltas for the chosen options.
func modifierDelta(it pos.MenuItem, m OrderModifier) (money.Amount, error) {
	for _, g := range it.ModifierGroups {
		if !strings.EqualFold(g.Name, m.Group) {
			continue
		}
		var delta money.Amount
		for _, want := range m.Options {
			found := false
			for _, opt := range g.Options {
				if strings.EqualFold(opt.Name, want) {
					delta += opt.PriceDelta
					found = true
					break
				}
			}
			if !found {
				return 0, fmt.Errorf("%w: %s has no %s option %q", errBadOrder, it.Name, g.Name, want)
			}
		}
		return delta, nil
	}
	return 0, fmt.Errorf("%w: %s has no modifier group %q", errBadOrder, it.Name, m.Group)
}

// adjustment converts a percent ("8.25") to basis points or an amount to
// minor units. Both parse as two-decimal numbers, which is exactly that.
func adjustment(a OrderAdjust) (pos.AdjustmentType, int64, error) {
	switch {
	case a.Percent != "" && a.Amount != "":
		return "", 0, fmt.Errorf("%w: set percent or amount, not both", errBadOrder)
	case a.Percent != "":
		v, err := money.Parse(a.Percent)
		if err != nil {
			return "", 0, fmt.Errorf("%w: %w", errBadOrder, err)
		}
		return pos.AdjustPercentage, int64(v), nil
	case a.Amount != "":
		v, err := money.Parse(a.Amount)
		if err != nil {
			return "", 0, fmt.Errorf("%w: %w", errBadOrder, err)
		}
		return pos.AdjustFixed, int64(v), nil
	}
	return "", 0, fmt.Errorf("%w: percent or amount is required", errBadOrder)
}

func buildPayment(p OrderPayment, total money.Amount) (pos.PaymentResult, error) {
	res := pos.PaymentResult{
		TransactionID:   p.TransactionID,
		ReferenceNumber: p.Reference,
		Method:          pos.PaymentMethod(strings.ToLower(p.Method)),
		Amount:          total,
	}
	if res.TransactionID == "" {
		res.TransactionID = "pay_" + cuid.New()
	}
	switch res.Method {
	case "":
		res.Method = pos.PaymentCash
	case pos.PaymentCash, pos.PaymentCard, pos.PaymentOther:
	default:
		return pos.PaymentResult{}, fmt.Errorf("%w: unknown payment method %q", errBadOrder, p.Method)
	}
	if p.Amount != "" {
		amt, err := money.Parse(p.Amount)
		if err != nil {
			return pos.PaymentResult{}, fmt.Errorf("%w: payment amount: %w", errBadOrder, err)
		}
		res.Amount = amt
	}
	return res, nil
}
