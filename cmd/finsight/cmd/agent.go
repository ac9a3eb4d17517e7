package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/shreyanshxt/FinSight/agent"
	"github.com/spf13/cobra"
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run the autonomous decision loop",
	Long: `Run the decision engine against the watchlist in agent_config.json.

Subcommands:
  run   - Loop forever, sleeping interval_minutes between passes
  once  - Run a single pass and print the outcome per ticker

Examples:
  finsight agent run
  finsight agent once AAPL NVDA`,
}

var agentRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the decision loop until interrupted",
	Args:  cobra.NoArgs,
	RunE:  runAgentLoop,
}

var agentOnceCmd = &cobra.Command{
	Use:   "once [ticker...]",
	Short: "Run one pass over the watchlist or the given tickers",
	RunE:  runAgentOnce,
}

func init() {
	rootCmd.AddCommand(agentCmd)
	agentCmd.AddCommand(agentRunCmd)
	agentCmd.AddCommand(agentOnceCmd)
}

func runAgentLoop(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := a.Engine.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runAgentOnce(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	var outs []agent.Outcome
	if len(args) == 0 {
		outs = a.Engine.RunCycle(ctx)
	} else {
		for _, sym := range args {
			outs = append(outs, a.Engine.RunOnce(ctx, strings.ToUpper(sym)))
		}
	}

	out := cmd.OutOrStdout()
	for _, o := range outs {
		fmt.Fprintf(out, "%-8s %-10s %-4s risk %2d/10  SL %8.2f  %s\n",
			o.Symbol, o.Terminal, o.Recommendation.Signal, o.Recommendation.RiskScore,
			o.Recommendation.StopLoss, describe(o))
	}
	return nil
}

func describe(o agent.Outcome) string {
	switch {
	case o.Fill != nil && o.Fill.Filled():
		return fmt.Sprintf("%s %d @ %.2f", o.Side, o.Qty, o.Fill.Price)
	case o.Reason != "":
		return o.Reason
	}
	return ""
}
