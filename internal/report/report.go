// Package report renders backtest results for people and for other tools.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/newthinker/trendweek/internal/backtest"
)

// WriteTable prints the run summary followed by the trade ledger.
func WriteTable(w io.Writer, res *backtest.Result) error {
	if err := WriteSummary(w, res); err != nil {
		return err
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "--- Trades ---")
	return WriteTrades(w, res.Trades)
}

// WriteSummary prints the cumulative results of a run
func WriteSummary(w io.Writer, res *backtest.Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "--- Backtest Summary ---")
	fmt.Fprintf(tw, "Ticker:\t%s\n", res.Ticker)
	fmt.Fprintf(tw, "Benchmark:\t%s\n", res.Benchmark)
	fmt.Fprintf(tw, "Period:\t%s\n", res.Period)
	fmt.Fprintf(tw, "Initial balance:\t%s $\n", Money(res.InitialBalance))
	fmt.Fprintf(tw, "Final balance:\t%s $\n", Money(res.FinalBalance))
	fmt.Fprintf(tw, "Total P/L:\t%s\n", Percent(res.TotalPLPercent))
	fmt.Fprintf(tw, "Total trades:\t%d\n", res.TradeCount)
	fmt.Fprintf(tw, "Win rate:\t%s\n", winRate(res.Stats))
	fmt.Fprintf(tw, "Max drawdown:\t%s\n", Percent(res.Stats.MaxDrawdown/100))
	fmt.Fprintf(tw, "Commission paid:\t%s $\n", Money(res.Stats.TotalCommission))
	fmt.Fprintf(tw, "Weeks analyzed/skipped:\t%d/%d\n", res.WeeksAnalyzed, res.WeeksSkipped)
	return tw.Flush()
}

// WriteTrades prints the ledger as an aligned table
func WriteTrades(w io.Writer, trades []backtest.TradeRecord) error {
	if len(trades) == 0 {
		_, err := fmt.Fprintln(w, "No trades.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tACTION\tREGIME\tBALANCE\tRAW\tADJUSTED\tCOMMISSION\tP/L\t")
	fmt.Fprintln(tw, "----\t------\t------\t-------\t---\t--------\t----------\t---\t")
	for _, t := range trades {
		pl := ""
		if t.Action == backtest.ActionClose {
			pl = Percent(t.PLPercent)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			t.Date.Format(time.DateOnly), t.Label(), t.Regime, Money(t.Balance),
			Price(t.RawPrice), Price(t.AdjustedPrice), Money(t.Commission), pl)
	}
	return tw.Flush()
}

// WriteCSV writes the ledger as CSV with a header row.
func WriteCSV(w io.Writer, trades []backtest.TradeRecord) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{
		"date", "action", "reason", "regime", "raw_price", "adjusted_price",
		"commission", "balance", "gross_pl", "pl_percent",
	}); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, t := range trades {
		if err := cw.Write([]string{
			t.Date.Format(time.DateOnly), string(t.Action), string(t.Reason), string(t.Regime),
			formatF(t.RawPrice), formatF(t.AdjustedPrice), formatF(t.Commission),
			formatF(t.Balance), formatF(t.GrossPL), formatF(t.PLPercent),
		}); err != nil {
			return fmt.Errorf("writing trade %s: %w", t.Date.Format(time.DateOnly), err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatF(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

func winRate(s backtest.Stats) string {
	if s.ClosedTrades == 0 {
		return "n/a"
	}
	return fmt.Sprintf("%s (%d/%d)", Percent(s.WinRate/100), s.WinningTrades, s.ClosedTrades)
}

// Summary is the machine-readable form of a run
type Summary struct {
	Ticker          string    `yaml:"ticker"`
	Benchmark       string    `yaml:"benchmark"`
	Period          string    `yaml:"test_period"`
	InitialBalance  float64   `yaml:"initial_balance"`
	FinalBalance    float64   `yaml:"final_balance"`
	TotalPLPercent  float64   `yaml:"total_profit_loss_percent"`
	TotalTrades     int       `yaml:"total_trades"`
	ClosedTrades    int       `yaml:"closed_trades"`
	WinRate         float64   `yaml:"win_rate"`
	MaxDrawdown     float64   `yaml:"max_drawdown"`
	TotalCommission float64   `yaml:"total_commission"`
	WeeksAnalyzed   int       `yaml:"weeks_analyzed"`
	WeeksSkipped    int       `yaml:"weeks_skipped"`
	RunID           string    `yaml:"run_id,omitempty"`
	ArchivedAt      time.Time `yaml:"archived_at,omitempty"`
}

// NewSummary extracts the summary of res
func NewSummary(res *backtest.Result) Summary {
	return Summary{
		Ticker:          res.Ticker,
		Benchmark:       res.Benchmark,
		Period:          res.Period,
		InitialBalance:  res.InitialBalance,
		FinalBalance:    res.FinalBalance,
		TotalPLPercent:  res.TotalPLPercent,
		TotalTrades:     res.TradeCount,
		ClosedTrades:    res.Stats.ClosedTrades,
		WinRate:         res.Stats.WinRate,
		MaxDrawdown:     res.Stats.MaxDrawdown,
		TotalCommission: res.Stats.TotalCommission,
		WeeksAnalyzed:   res.WeeksAnalyzed,
		WeeksSkipped:    res.WeeksSkipped,
	}
}

// WriteYAML writes s as a YAML document
func WriteYAML(w io.Writer, s Summary) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encoding summary: %w", err)
	}
	return enc.Close()
}

// ReadYAML parses a summary written by WriteYAML
func ReadYAML(r io.Reader) (Summary, error) {
	var s Summary
	if err := yaml.NewDecoder(r).Decode(&s); err != nil {
		return s, fmt.Errorf("decoding summary: %w", err)
	}
	return s, nil
}
