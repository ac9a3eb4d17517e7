package cmd

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shreyanshxt/FinSight/broker"
	"github.com/spf13/cobra"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			Padding(0, 1)

	boxStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#3B82F6")).
			Padding(0, 2)

	gainStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	lossStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Show balances and positions for both books",
	Args:  cobra.NoArgs,
	RunE:  runAccount,
}

func init() {
	rootCmd.AddCommand(accountCmd)
}

func runAccount(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	snap, err := a.Broker.Snapshot(context.Background())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("FinSight account [%s]", a.Broker.Mode())))

	house := fmt.Sprintf("Equity        %12.2f %s\nCash          %12.2f\nBuying power  %12.2f",
		snap.Equity, snap.Currency, snap.Cash, snap.BuyingPower)
	fmt.Fprintln(out, boxStyle.Render("House\n"+house+"\n\n"+renderPositions(snap.Positions)))

	agent := fmt.Sprintf("Allocated     %12.2f\nCash          %12.2f\nEquity        %12.2f",
		snap.Agent.Allocated, snap.Agent.Cash, snap.Agent.Equity)
	fmt.Fprintln(out, boxStyle.Render("Agent\n"+agent+"\n\n"+renderPositions(snap.Agent.Positions)))
	return nil
}

func renderPositions(ps broker.Positions) string {
	if len(ps) == 0 {
		return dimStyle.Render("no positions")
	}
	syms := make([]string, 0, len(ps))
	for s := range ps {
		syms = append(syms, s)
	}
	sort.Strings(syms)

	var b strings.Builder
	fmt.Fprintf(&b, "%-8s %6s %10s %10s %12s", "SYMBOL", "QTY", "AVG", "LAST", "P/L")
	for _, s := range syms {
		p := ps[s]
		pl := fmt.Sprintf("%+12.2f", p.UnrealizedPL)
		if p.UnrealizedPL < 0 {
			pl = lossStyle.Render(pl)
		} else {
			pl = gainStyle.Render(pl)
		}
		fmt.Fprintf(&b, "\n%-8s %6d %10.2f %10.2f %s", s, p.Qty, p.AvgEntryPrice, p.CurrentPrice, pl)
		if p.StopLoss > 0 {
			b.WriteString(dimStyle.Render(fmt.Sprintf("  SL %.2f risk %d/10", p.StopLoss, p.RiskScore)))
		}
	}
	return b.String()
}
