package journal

import (
	"fmt"
	"strings"
	"time"
)

// FormatTradeOrg renders a trade as an Org-mode entry. Facts go in the
// PROPERTIES drawer; the Rationale and Review headings are left for notes.
func FormatTradeOrg(t TradeRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "** %s %d %s (%s)\n", strings.ToUpper(string(t.Side)), t.Qty, t.Symbol, shortID(t.ID))
	b.WriteString(":PROPERTIES:\n")
	fmt.Fprintf(&b, ":ID: %s\n", t.ID)
	fmt.Fprintf(&b, ":TIME: %s\n", t.Timestamp.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, ":SYMBOL: %s\n", t.Symbol)
	fmt.Fprintf(&b, ":SIDE: %s\n", t.Side)
	fmt.Fprintf(&b, ":QTY: %d\n", t.Qty)
	fmt.Fprintf(&b, ":PRICE: %.2f\n", t.Price)
	fmt.Fprintf(&b, ":NOTIONAL: %.2f\n", t.Price*float64(t.Qty))
	fmt.Fprintf(&b, ":SOURCE: %s\n", t.Source)
	fmt.Fprintf(&b, ":MODE: %s\n", t.Mode)
	fmt.Fprintf(&b, ":BOOKS: %s\n", strings.Join(t.Books, " "))
	b.WriteString(":END:\n\n")
	b.WriteString("*** Rationale\n- \n\n")
	b.WriteString("*** Review\n- \n")
	return b.String()
}

// FormatTradesOrg renders multiple trades separated by blank lines.
func FormatTradesOrg(trades []TradeRecord) string {
	parts := make([]string, len(trades))
	for i, t := range trades {
		parts[i] = FormatTradeOrg(t)
	}
	return strings.Join(parts, "\n\n")
}

func shortID(full string) string {
	if len(full) <= 8 {
		return full
	}
	return full[len(full)-8:]
}
