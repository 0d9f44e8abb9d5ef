package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/newthinker/trendweek/internal/backtest"
	"github.com/newthinker/trendweek/internal/config"
	"github.com/newthinker/trendweek/internal/metrics"
	"github.com/newthinker/trendweek/internal/report"
	"github.com/newthinker/trendweek/internal/storage/history"
)

var (
	backtestTicker    string
	backtestTickers   []string
	backtestBenchmark string
	backtestStartYear int
	backtestEndDate   string
	backtestCSV       string
	backtestYAML      string
	backtestMetrics   string
	backtestParallel  int
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Run the weekly strategy over historical data",
	Long: `Fetch daily history for the instrument and its benchmark, walk the test
period week by week and print the summary and trade ledger.`,
	Args: cobra.NoArgs,
	RunE: runBacktest,
}

func init() {
	f := backtestCmd.Flags()
	f.StringVar(&backtestTicker, "ticker", "", "instrument to backtest (overrides config)")
	f.StringSliceVar(&backtestTickers, "tickers", nil, "comma-separated instruments, run concurrently")
	f.StringVar(&backtestBenchmark, "benchmark", "", "benchmark symbol (overrides config)")
	f.IntVar(&backtestStartYear, "start-year", 0, "first year of the test period (overrides config)")
	f.StringVar(&backtestEndDate, "end-date", "", "last day of the test period, YYYY-MM-DD (overrides config)")
	f.StringVar(&backtestCSV, "csv", "", "write the trade ledger to this CSV file")
	f.StringVar(&backtestYAML, "yaml", "", "write the run summary to this YAML file")
	f.StringVar(&backtestMetrics, "metrics-file", "", "write Prometheus metrics to this textfile (overrides config)")
	f.IntVar(&backtestParallel, "parallel", 4, "maximum concurrent runs with --tickers")

	backtestCmd.MarkFlagsMutuallyExclusive("ticker", "tickers")

	rootCmd.AddCommand(backtestCmd)
}

// applyOverrides copies explicitly set flags over the file configuration
func applyOverrides(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("ticker") {
		cfg.Backtest.Ticker = backtestTicker
	}
	if flags.Changed("benchmark") {
		cfg.Backtest.Benchmark = backtestBenchmark
	}
	if flags.Changed("start-year") {
		cfg.Backtest.StartYear = backtestStartYear
	}
	if flags.Changed("end-date") {
		cfg.Backtest.EndDate = backtestEndDate
	}
	if flags.Changed("metrics-file") {
		cfg.Metrics.Textfile = backtestMetrics
	}
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyOverrides(cmd, cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	reg := metrics.NewRegistry()
	provider, err := newProvider(cfg, log, reg)
	if err != nil {
		return err
	}

	base, err := cfg.Params()
	if err != nil {
		return err
	}
	tickers := tickerList(backtestTickers, base.Ticker)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bt := backtest.New(provider, backtest.WithLogger(log), backtest.WithMetrics(reg))
	results, runErr := runAll(ctx, bt, base, tickers, backtestParallel)

	if cfg.Metrics.Textfile != "" {
		if err := reg.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			log.Warn("metrics not written", zap.Error(err))
		}
	}
	if runErr != nil {
		log.Error("backtest failed", zap.Error(runErr))
		return runErr
	}

	return publish(ctx, cfg, log, results)
}

// runAll runs one backtest per ticker, at most parallel at a time. Results
// keep the order of tickers; the first failure cancels the rest.
func runAll(ctx context.Context, bt *backtest.Backtester, base backtest.Params, tickers []string, parallel int) ([]*backtest.Result, error) {
	results := make([]*backtest.Result, len(tickers))

	g, gctx := errgroup.WithContext(ctx)
	if parallel > 0 {
		g.SetLimit(parallel)
	}
	for i, ticker := range tickers {
		g.Go(func() error {
			p := base
			p.Ticker = ticker
			res, err := bt.Run(gctx, p)
			if err != nil {
				return fmt.Errorf("%s: %w", ticker, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// publish prints each result and writes the configured exports and stores.
func publish(ctx context.Context, cfg *config.Config, log *zap.Logger, results []*backtest.Result) error {
	var store *history.Store
	if cfg.Storage.History.Enabled {
		s, err := history.Open(cfg.Storage.History.Path)
		if err != nil {
			return fmt.Errorf("opening history: %w", err)
		}
		defer s.Close()
		store = s
	}

	multi := len(results) > 1
	for i, res := range results {
		if i > 0 {
			fmt.Println()
		}
		if err := report.WriteTable(os.Stdout, res); err != nil {
			return err
		}

		runID := uuid.NewString()
		if store != nil {
			id, err := store.Save(ctx, res)
			if err != nil {
				return fmt.Errorf("saving run: %w", err)
			}
			runID = id
			log.Info("run saved", zap.String("run_id", runID), zap.String("ticker", res.Ticker))
		}

		if backtestCSV != "" {
			if err := writeFile(exportPath(backtestCSV, res.Ticker, multi), func(f *os.File) error {
				return report.WriteCSV(f, res.Trades)
			}); err != nil {
				return err
			}
		}
		if backtestYAML != "" {
			summary := report.NewSummary(res)
			summary.RunID = runID
			if err := writeFile(exportPath(backtestYAML, res.Ticker, multi), func(f *os.File) error {
				return report.WriteYAML(f, summary)
			}); err != nil {
				return err
			}
		}

		if cfg.Storage.Archive.Enabled {
			a, err := newArchive(cfg)
			if err != nil {
				return err
			}
			dir, err := a.Put(ctx, runID, res)
			if err != nil {
				return fmt.Errorf("archiving run: %w", err)
			}
			log.Info("run archived", zap.String("path", dir))
		}
	}
	return nil
}

// tickerList returns the --tickers values, or the configured ticker alone.
func tickerList(flagged []string, fallback string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, t := range flagged {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	if len(out) == 0 {
		return []string{fallback}
	}
	return out
}

func writeFile(path string, write func(f *os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}
