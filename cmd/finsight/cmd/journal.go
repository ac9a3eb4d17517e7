package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/shreyanshxt/FinSight/journal"
	"github.com/spf13/cobra"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query trade and equity history",
	Long: `Display or export the trade and performance history.

Subcommands:
  trades  - List trades, optionally for one day
  equity  - List equity samples
  export  - Write trades or equity as CSV

Examples:
  finsight journal trades
  finsight journal trades --day 2024-01-15 --org
  finsight journal export --kind equity -o equity.csv`,
}

var journalTradesCmd = &cobra.Command{
	Use:   "trades",
	Short: "List recorded trades",
	Args:  cobra.NoArgs,
	RunE:  runJournalTrades,
}

var journalEquityCmd = &cobra.Command{
	Use:   "equity",
	Short: "List equity samples",
	Args:  cobra.NoArgs,
	RunE:  runJournalEquity,
}

var journalExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export history as CSV",
	Args:  cobra.NoArgs,
	RunE:  runJournalExport,
}

var (
	journalDay   string
	journalOrg   bool
	exportKind   string
	exportOutput string
)

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalTradesCmd, journalEquityCmd, journalExportCmd)

	journalTradesCmd.Flags().StringVar(&journalDay, "day", "", "only trades on this day (YYYY-MM-DD, local time)")
	journalTradesCmd.Flags().BoolVar(&journalOrg, "org", false, "print trades as Org-mode entries")
	journalExportCmd.Flags().StringVar(&exportKind, "kind", "trades", "what to export: trades|equity")
	journalExportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file (stdout when empty)")
}

// openJournal opens only the history store, without wiring the rest of
// the application.
func openJournal() (journal.Journal, error) {
	switch cfg.Journal.Type {
	case "sqlite":
		return journal.NewSQLite(cfg.Journal.DBPath)
	case "memory":
		return journal.NewMemory(), nil
	default:
		return journal.NewFile(cfg.Journal.TradesFile, cfg.Journal.EquityFile)
	}
}

type tradeRanger interface {
	ListTradesBetween(start, end time.Time) ([]journal.TradeRecord, error)
}

func runJournalTrades(cmd *cobra.Command, args []string) error {
	j, err := openJournal()
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer j.Close()

	var recs []journal.TradeRecord
	if journalDay == "" {
		recs, err = j.Trades()
	} else {
		recs, err = tradesOnDay(j, journalDay)
	}
	if err != nil {
		return fmt.Errorf("query trades: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(recs) == 0 {
		fmt.Fprintln(out, "No trades.")
		return nil
	}
	if journalOrg {
		fmt.Fprintln(out, journal.FormatTradesOrg(recs))
		return nil
	}
	fmt.Fprintf(out, "%-26s %-20s %-8s %-4s %6s %10s %-6s %s\n",
		"ID", "TIME", "SYMBOL", "SIDE", "QTY", "PRICE", "SOURCE", "MODE")
	for _, r := range recs {
		fmt.Fprintf(out, "%-26s %-20s %-8s %-4s %6d %10.2f %-6s %s\n",
			r.ID, r.Timestamp.Local().Format("2006-01-02 15:04:05"), r.Symbol, r.Side, r.Qty, r.Price, r.Source, r.Mode)
	}
	return nil
}

func tradesOnDay(j journal.Journal, day string) ([]journal.TradeRecord, error) {
	start, end, err := dayBounds(time.Local, day)
	if err != nil {
		return nil, fmt.Errorf("date: %w", err)
	}
	if r, ok := j.(tradeRanger); ok {
		return r.ListTradesBetween(start, end)
	}
	all, err := j.Trades()
	if err != nil {
		return nil, err
	}
	var out []journal.TradeRecord
	for _, t := range all {
		if !t.Timestamp.Before(start) && t.Timestamp.Before(end) {
			out = append(out, t)
		}
	}
	return out, nil
}

func dayBounds(loc *time.Location, day string) (time.Time, time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", day, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1), nil
}

func runJournalEquity(cmd *cobra.Command, args []string) error {
	j, err := openJournal()
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer j.Close()

	samples, err := j.Equity()
	if err != nil {
		return fmt.Errorf("query equity: %w", err)
	}
	out := cmd.OutOrStdout()
	if len(samples) == 0 {
		fmt.Fprintln(out, "No equity samples.")
		return nil
	}
	for _, s := range samples {
		fmt.Fprintf(out, "%s  %12.2f\n", s.Timestamp.Local().Format("2006-01-02 15:04:05"), s.Equity)
	}
	return nil
}

func runJournalExport(cmd *cobra.Command, args []string) error {
	j, err := openJournal()
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer j.Close()

	var w io.Writer = cmd.OutOrStdout()
	if exportOutput != "" {
		f, err := os.Create(exportOutput)
		if err != nil {
			return fmt.Errorf("create %s: %w", exportOutput, err)
		}
		defer f.Close()
		w = f
	}

	switch exportKind {
	case "trades":
		recs, err := j.Trades()
		if err != nil {
			return fmt.Errorf("query trades: %w", err)
		}
		err = journal.WriteTradesCSV(w, recs)
		if err == nil && exportOutput != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "✓ Exported %d trades to %s\n", len(recs), exportOutput)
		}
		return err
	case "equity":
		samples, err := j.Equity()
		if err != nil {
			return fmt.Errorf("query equity: %w", err)
		}
		err = journal.WriteEquityCSV(w, samples)
		if err == nil && exportOutput != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "✓ Exported %d samples to %s\n", len(samples), exportOutput)
		}
		return err
	default:
		return fmt.Errorf("unknown export kind %q (want trades or equity)", exportKind)
	}
}
