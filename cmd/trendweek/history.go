package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/newthinker/trendweek/internal/report"
	"github.com/newthinker/trendweek/internal/storage/history"
)

var (
	historyLimit   int
	historyRun     string
	historyArchive string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List stored backtest runs",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum runs to list")
	historyCmd.Flags().StringVar(&historyRun, "run", "", "show the trade ledger of this run")
	historyCmd.Flags().StringVar(&historyArchive, "archive", "", "list the archived runs of this ticker instead")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()
	if historyArchive != "" {
		a, err := newArchive(cfg)
		if err != nil {
			return err
		}
		summaries, err := a.Summaries(ctx, historyArchive)
		if err != nil {
			return fmt.Errorf("listing archive: %w", err)
		}
		return writeArchived(os.Stdout, summaries, historyLimit)
	}

	store, err := history.Open(cfg.Storage.History.Path)
	if err != nil {
		return fmt.Errorf("opening history: %w", err)
	}
	defer store.Close()

	if historyRun != "" {
		trades, err := store.Trades(ctx, historyRun)
		if err != nil {
			return err
		}
		return report.WriteTrades(os.Stdout, trades)
	}

	runs, err := store.List(ctx, historyLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN ID\tCREATED\tTICKER\tPERIOD\tFINAL\tP/L\tTRADES\tWIN RATE\t")
	fmt.Fprintln(w, "------\t-------\t------\t------\t-----\t---\t------\t--------\t")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%d\t%.1f%%\t\n",
			r.ID, r.CreatedAt.Format("2006-01-02 15:04"), r.Ticker, r.Period,
			report.Money(r.FinalBalance), report.Percent(r.TotalPLPercent), r.TradeCount, r.WinRate)
	}
	return w.Flush()
}

// writeArchived prints the newest limit summaries, newest first.
func writeArchived(out io.Writer, summaries []report.Summary, limit int) error {
	if len(summaries) == 0 {
		fmt.Fprintln(out, "No archived runs found.")
		return nil
	}
	if limit > 0 && len(summaries) > limit {
		summaries = summaries[len(summaries)-limit:]
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN ID\tARCHIVED\tTICKER\tPERIOD\tFINAL\tP/L\tTRADES\t")
	fmt.Fprintln(w, "------\t--------\t------\t------\t-----\t---\t------\t")
	for i := len(summaries) - 1; i >= 0; i-- {
		s := summaries[i]
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%d\t\n",
			s.RunID, s.ArchivedAt.Format("2006-01-02 15:04"), s.Ticker, s.Period,
			report.Money(s.FinalBalance), report.Percent(s.TotalPLPercent), s.TotalTrades)
	}
	return w.Flush()
}
