package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/shreyanshxt/FinSight/broker"
	"github.com/spf13/cobra"
)

var tradeYes bool

var tradeCmd = &cobra.Command{
	Use:   "trade <buy|sell> <ticker> <qty>",
	Short: "Place a manual market order",
	Long: `Execute a manual trade against the configured broker.

Examples:
  finsight trade buy AAPL 10
  finsight trade sell NVDA 5 --yes`,
	Args: cobra.ExactArgs(3),
	RunE: runTrade,
}

var allocateCmd = &cobra.Command{
	Use:   "allocate <amount>",
	Short: "Set the capital allocated to the agent book",
	Long: `Reset the agent book's allocation and cash to amount. Positions the agent
already holds are kept.`,
	Args: cobra.ExactArgs(1),
	RunE: runAllocate,
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Re-mark every held position at the latest price",
	Args:  cobra.NoArgs,
	RunE:  runRefresh,
}

func init() {
	rootCmd.AddCommand(tradeCmd, allocateCmd, refreshCmd)
	tradeCmd.Flags().BoolVarP(&tradeYes, "yes", "y", false, "skip the confirmation prompt")
}

func parseOrder(args []string) (broker.Order, error) {
	side := broker.Side(strings.ToLower(args[0]))
	if !side.Valid() {
		return broker.Order{}, fmt.Errorf("side must be buy or sell, got %q", args[0])
	}
	qty, err := strconv.ParseInt(args[2], 10, 64)
	if err != nil || qty <= 0 {
		return broker.Order{}, fmt.Errorf("qty must be a positive integer, got %q", args[2])
	}
	return broker.Order{
		Symbol: strings.ToUpper(strings.TrimSpace(args[1])),
		Qty:    qty,
		Side:   side,
		Source: broker.SourceManual,
	}, nil
}

func runTrade(cmd *cobra.Command, args []string) error {
	o, err := parseOrder(args)
	if err != nil {
		return err
	}

	if !tradeYes {
		confirmed := false
		prompt := &survey.Confirm{
			Message: fmt.Sprintf("%s %d %s at market?", strings.ToUpper(string(o.Side)), o.Qty, o.Symbol),
		}
		if err := survey.AskOne(prompt, &confirmed); err != nil {
			return fmt.Errorf("confirm trade: %w", err)
		}
		if !confirmed {
			fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
			return nil
		}
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	fill, err := a.Broker.ExecuteTrade(context.Background(), o)
	if err != nil {
		return err
	}
	if !fill.Filled() {
		return fmt.Errorf("trade rejected (%s): %s", fill.Rejection.Kind, fill.Rejection.Reason)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ %s %d %s @ %.2f [%s] trade %s\n",
		fill.Side, fill.Qty, fill.Symbol, fill.Price, fill.Mode, fill.TradeID)
	return nil
}

func runAllocate(cmd *cobra.Command, args []string) error {
	amount, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("amount: %w", err)
	}
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	acct, err := a.Broker.SetAgentAllocation(context.Background(), amount)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Agent allocation %.2f (cash %.2f, equity %.2f)\n",
		acct.Allocated, acct.Cash, acct.Equity)
	return nil
}

func runRefresh(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Broker.RefreshPrices(context.Background()); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "✓ Prices refreshed")
	return nil
}
