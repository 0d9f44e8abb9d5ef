package backtest

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/trendweek/internal/core"
	"github.com/newthinker/trendweek/internal/metrics"
	"github.com/newthinker/trendweek/internal/regime"
	"github.com/newthinker/trendweek/internal/risk"
	"github.com/newthinker/trendweek/internal/schedule"
)

// OHLCVProvider defines the interface for fetching daily price history
type OHLCVProvider interface {
	FetchHistory(ctx context.Context, symbol string, start, end time.Time) ([]core.Bar, error)
}

// Analyzer produces the risk metrics for one analysis date
type Analyzer interface {
	Analyze(company, benchmark core.Series, date time.Time) (*risk.Metrics, bool)
}

// AnalyzerFunc adapts a function to Analyzer
type AnalyzerFunc func(company, benchmark core.Series, date time.Time) (*risk.Metrics, bool)

// Analyze calls f
func (f AnalyzerFunc) Analyze(company, benchmark core.Series, date time.Time) (*risk.Metrics, bool) {
	return f(company, benchmark, date)
}

// Backtester runs the weekly strategy against historical data
type Backtester struct {
	provider OHLCVProvider
	analyzer Analyzer
	logger   *zap.Logger
	metrics  *metrics.Registry
	horizon  int
}

// Option configures a Backtester
type Option func(*Backtester)

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(b *Backtester) { b.logger = l }
}

// WithMetrics records run metrics into reg
func WithMetrics(reg *metrics.Registry) Option {
	return func(b *Backtester) { b.metrics = reg }
}

// WithAnalyzer replaces the risk calculator derived from Params.LookbackYears
func WithAnalyzer(a Analyzer) Option {
	return func(b *Backtester) { b.analyzer = a }
}

// New creates a new Backtester with the given OHLCV provider
func New(provider OHLCVProvider, opts ...Option) *Backtester {
	b := &Backtester{
		provider: provider,
		logger:   zap.NewNop(),
		horizon:  schedule.DefaultHorizonDays,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run executes one backtest. Fetch failures and empty histories abort the
// run; weeks without a trading day or without metrics are skipped.
func (b *Backtester) Run(ctx context.Context, p Params) (*Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	began := time.Now()
	res, err := b.run(ctx, p)
	if b.metrics != nil {
		status := "success"
		if err != nil {
			status = "failed"
		} else {
			b.metrics.SetTotalPL(p.Ticker, res.TotalPLPercent)
		}
		b.metrics.RecordBacktest(status, time.Since(began).Seconds())
	}
	return res, err
}

func (b *Backtester) run(ctx context.Context, p Params) (*Result, error) {
	log := b.logger.With(zap.String("ticker", p.Ticker))

	fetchStart, fetchEnd := p.FetchWindow()
	company, err := b.fetch(ctx, p.Ticker, fetchStart, fetchEnd)
	if err != nil {
		return nil, err
	}
	benchmark, err := b.fetch(ctx, p.Benchmark, fetchStart, fetchEnd)
	if err != nil {
		return nil, err
	}

	analyzer := b.analyzer
	if analyzer == nil {
		calc := risk.Calculator{LookbackYears: p.LookbackYears}
		analyzer = AnalyzerFunc(calc.Compute)
	}

	trend := regime.TrendLine(company, p.TrendFast, p.TrendSlow)
	end := core.Day(p.EndDate)
	weeks := schedule.WeeklyDates(company, p.RangeStart(), end)

	log.Info("starting backtest",
		zap.String("benchmark", p.Benchmark),
		zap.String("period", p.Period()),
		zap.Int("company_bars", company.Len()),
		zap.Int("benchmark_bars", benchmark.Len()),
		zap.Int("trend_points", len(trend)),
		zap.Int("weeks", len(weeks)),
	)

	state := NewState(p.InitialCapital)
	var trades []TradeRecord
	var analyzed, skipped int

	for _, week := range weeks {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		tradeDay, ok := schedule.NextTradingDay(company, week, b.horizon, end)
		if !ok {
			skipped++
			b.recordWeek("skipped")
			log.Debug("no trading day after analysis date", zap.Time("week", week))
			continue
		}
		idx, _ := company.Index(tradeDay)
		raw := company.Bar(idx).Open

		m, hasMetrics := analyzer.Analyze(company, benchmark, week)
		sig := regime.Classify(trend, week, currentClose(company, week, m))

		var rec *TradeRecord
		if state.Long() {
			state, rec = EvaluateExit(state, tradeDay, raw, sig.Regime, p.Exits, p.Costs)
		} else if hasMetrics {
			state, rec = EvaluateEntry(state, tradeDay, raw, m, sig.Regime, p.Entry, p.Costs)
		} else {
			log.Debug("risk metrics unavailable", zap.Time("week", week))
		}

		analyzed++
		b.recordWeek("analyzed")
		if rec != nil {
			trades = append(trades, *rec)
			b.recordTrade(*rec)
			log.Info("trade",
				zap.String("action", rec.Label()),
				zap.Time("date", rec.Date),
				zap.Float64("price", rec.AdjustedPrice),
				zap.Float64("balance", rec.Balance),
				zap.String("regime", string(rec.Regime)),
			)
		}
	}

	if state.Long() {
		i, ok := company.AtOrBefore(end)
		if !ok {
			return nil, core.WrapError(core.ErrNoData, fmt.Errorf("no %s bar on or before %s to liquidate", p.Ticker, end.Format("2006-01-02")))
		}
		last := company.Bar(i)
		sig := regime.Classify(trend, last.Date, last.Close)
		var rec TradeRecord
		state, rec, err = Liquidate(state, last.Date, last.Close, sig.Regime, p.Costs)
		if err != nil {
			return nil, err
		}
		trades = append(trades, rec)
		b.recordTrade(rec)
		log.Info("position liquidated at end of run", zap.Time("date", rec.Date), zap.Float64("balance", rec.Balance))
	}

	res := &Result{
		Ticker:         p.Ticker,
		Benchmark:      p.Benchmark,
		Period:         p.Period(),
		StartYear:      p.StartYear,
		EndDate:        end,
		InitialBalance: p.InitialCapital,
		FinalBalance:   state.Balance,
		TotalPLPercent: (state.Balance - p.InitialCapital) / p.InitialCapital,
		TradeCount:     len(trades),
		Trades:         trades,
		Stats:          CalculateStats(p.InitialCapital, trades),
		WeeksAnalyzed:  analyzed,
		WeeksSkipped:   skipped,
	}

	log.Info("backtest complete",
		zap.Float64("final_balance", res.FinalBalance),
		zap.Float64("total_pl", res.TotalPLPercent),
		zap.Int("trades", res.TradeCount),
		zap.Int("weeks_skipped", skipped),
	)
	return res, nil
}

// fetch loads and normalizes the history for symbol. Errors and empty
// results are fatal to the run.
func (b *Backtester) fetch(ctx context.Context, symbol string, start, end time.Time) (core.Series, error) {
	bars, err := b.provider.FetchHistory(ctx, symbol, start, end)
	if err != nil {
		return core.Series{}, core.WrapError(core.ErrCollectorFailed, fmt.Errorf("fetching %s: %w", symbol, err))
	}
	if len(bars) == 0 {
		return core.Series{}, core.WrapError(core.ErrNoData, fmt.Errorf("empty history for %s", symbol))
	}
	return core.NewSeries(symbol, bars), nil
}

// currentClose is the close the regime is judged against: the metrics'
// close when available, otherwise the last close on or before week.
func currentClose(company core.Series, week time.Time, m *risk.Metrics) float64 {
	if m != nil {
		return m.CurrentClose
	}
	if i, ok := company.AtOrBefore(week); ok {
		return company.Bar(i).Close
	}
	return 0
}

func (b *Backtester) recordWeek(outcome string) {
	if b.metrics != nil {
		b.metrics.RecordWeek(outcome)
	}
}

func (b *Backtester) recordTrade(rec TradeRecord) {
	if b.metrics != nil {
		b.metrics.RecordTrade(string(rec.Action), string(rec.Reason))
	}
}
