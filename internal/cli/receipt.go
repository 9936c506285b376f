package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/roach88/possync/internal/money"
	"github.com/roach88/possync/internal/pos"
)

const receiptWidth = 40

// WriteReceipt renders tx as a plain-text receipt.
func WriteReceipt(w io.Writer, tx pos.OfflineTransaction) error {
	rule := strings.Repeat("-", receiptWidth)

	fmt.Fprintf(w, "Receipt %s\n", tx.ID)
	fmt.Fprintf(w, "Captured %s", tx.CapturedAt.UTC().Format(time.RFC3339))
	if tx.TerminalID != "" {
		fmt.Fprintf(w, " on %s", tx.TerminalID)
	}
	fmt.Fprintln(w)
	writeCartBody(w, tx.Cart, rule)

	paid := fmt.Sprintf("Paid (%s)", tx.Payment.Method)
	if tx.Payment.ReferenceNumber != "" {
		paid = fmt.Sprintf("Paid (%s, ref %s)", tx.Payment.Method, tx.Payment.ReferenceNumber)
	}
	writeAmountLine(w, paid, tx.Payment.Amount)
	if change := tx.Payment.Amount - tx.Cart.Total; change > 0 {
		writeAmountLine(w, "Change", change)
	}
	fmt.Fprintln(w, rule)

	if tx.Customer != nil {
		fmt.Fprintf(w, "Customer: %s (%s)\n", tx.Customer.Name, tx.Customer.Phone)
	}
	if tx.Synced && tx.SyncedAt != nil {
		fmt.Fprintf(w, "Status: synced %s\n", tx.SyncedAt.UTC().Format(time.RFC3339))
	} else if tx.Attempts > 0 {
		fmt.Fprintf(w, "Status: pending sync (%d failed attempts: %s)\n", tx.Attempts, tx.LastError)
	} else {
		fmt.Fprintln(w, "Status: pending sync")
	}
	return nil
}

// writeCartText renders a held cart.
func writeCartText(w io.Writer, c pos.Cart) error {
	rule := strings.Repeat("-", receiptWidth)
	fmt.Fprintf(w, "Cart %s (held)\n", c.ID)
	writeCartBody(w, c, rule)
	return nil
}

func writeCartBody(w io.Writer, c pos.Cart, rule string) {
	header := "Order: " + string(c.OrderType)
	if c.TableID != "" {
		header += "  Table: " + c.TableID
	}
	fmt.Fprintln(w, header)
	fmt.Fprintln(w, rule)

	for _, it := range c.Items {
		writeAmountLine(w, fmt.Sprintf("%d x %s", it.Quantity, it.Item.Name), it.Subtotal)
		for _, m := range it.Modifiers {
			mod := fmt.Sprintf("    %s: %s", m.Group, strings.Join(m.Options, ", "))
			if m.PriceDelta != 0 {
				mod += fmt.Sprintf(" (+%s)", m.PriceDelta)
			}
			fmt.Fprintln(w, mod)
		}
		if it.Instructions != "" {
			fmt.Fprintf(w, "    %q\n", it.Instructions)
		}
	}
	fmt.Fprintln(w, rule)

	writeAmountLine(w, "Subtotal", c.Subtotal)
	if c.Discount != nil {
		label := "Discount"
		if c.Discount.Type == pos.AdjustPercentage {
			label = fmt.Sprintf("Discount (%s)", money.Rate(c.Discount.Value))
		}
		if c.Discount.Reason != "" {
			label += " " + c.Discount.Reason
		}
		writeAmountLine(w, label, -c.DiscountAmount)
	}
	writeAmountLine(w, "Tax", c.Tax)
	if c.Tip != nil {
		label := "Tip"
		if c.Tip.Type == pos.AdjustPercentage {
			label = fmt.Sprintf("Tip (%s)", money.Rate(c.Tip.Value))
		}
		writeAmountLine(w, label, c.TipAmount)
	}
	writeAmountLine(w, "Total", c.Total)
}

// writeAmountLine right-aligns amount so the line is receiptWidth wide.
func writeAmountLine(w io.Writer, label string, amount money.Amount) {
	a := amount.String()
	pad := receiptWidth - len(label) - len(a)
	if pad < 1 {
		pad = 1
	}
	fmt.Fprintf(w, "%s%s%s\n", label, strings.Repeat(" ", pad), a)
}
