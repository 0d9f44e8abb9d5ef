package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	// Run metrics
	backtestsTotal   *prometheus.CounterVec
	backtestDuration prometheus.Histogram
	weeksTotal       *prometheus.CounterVec
	tradesTotal      *prometheus.CounterVec
	finalPLPercent   *prometheus.GaugeVec

	// Data metrics
	fetchesTotal  *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	barsFetched   *prometheus.CounterVec
	cacheLookups  *prometheus.CounterVec
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		backtestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trendweek_backtests_total",
				Help: "Total number of backtest runs",
			},
			[]string{"status"},
		),
		backtestDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "trendweek_backtest_duration_seconds",
				Help:    "Backtest run duration in seconds, including data fetch",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
			},
		),
		weeksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trendweek_weeks_total",
				Help: "Scheduled analysis weeks by outcome",
			},
			[]string{"outcome"},
		),
		tradesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trendweek_trades_total",
				Help: "Ledger entries by action and close reason",
			},
			[]string{"action", "reason"},
		),
		finalPLPercent: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "trendweek_total_pl_ratio",
				Help: "Total profit/loss of the last completed run per ticker, as a fraction of initial capital",
			},
			[]string{"ticker"},
		),
	}

	reg.MustRegister(r.backtestsTotal)
	reg.MustRegister(r.backtestDuration)
	reg.MustRegister(r.weeksTotal)
	reg.MustRegister(r.tradesTotal)
	reg.MustRegister(r.finalPLPercent)

	// Data metrics
	r.fetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trendweek_history_fetches_total",
			Help: "Price history fetches by provider and status",
		},
		[]string{"provider", "status"},
	)
	r.fetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trendweek_history_fetch_duration_seconds",
			Help:    "Price history fetch duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)
	r.barsFetched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trendweek_bars_fetched_total",
			Help: "Daily bars returned by providers",
		},
		[]string{"provider"},
	)
	r.cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trendweek_bar_cache_lookups_total",
			Help: "Bar cache lookups by result",
		},
		[]string{"result"},
	)

	reg.MustRegister(r.fetchesTotal)
	reg.MustRegister(r.fetchDuration)
	reg.MustRegister(r.barsFetched)
	reg.MustRegister(r.cacheLookups)

	return r
}

// RecordBacktest records a backtest completion.
func (r *Registry) RecordBacktest(status string, duration float64) {
	r.backtestsTotal.WithLabelValues(status).Inc()
	r.backtestDuration.Observe(duration)
}

// RecordWeek records the outcome of one scheduled week ("analyzed" or "skipped").
func (r *Registry) RecordWeek(outcome string) {
	r.weeksTotal.WithLabelValues(outcome).Inc()
}

// RecordTrade records a ledger entry.
func (r *Registry) RecordTrade(action, reason string) {
	r.tradesTotal.WithLabelValues(action, reason).Inc()
}

// SetTotalPL sets the total P/L of the last run for ticker.
func (r *Registry) SetTotalPL(ticker string, ratio float64) {
	r.finalPLPercent.WithLabelValues(ticker).Set(ratio)
}

// RecordFetch records a provider fetch.
func (r *Registry) RecordFetch(provider string, err error, bars int, duration float64) {
	r.fetchesTotal.WithLabelValues(provider, errorToStatus(err)).Inc()
	r.fetchDuration.WithLabelValues(provider).Observe(duration)
	if err == nil {
		r.barsFetched.WithLabelValues(provider).Add(float64(bars))
	}
}

// RecordCacheLookup records a bar cache hit or miss.
func (r *Registry) RecordCacheLookup(hit bool) {
	if hit {
		r.cacheLookups.WithLabelValues("hit").Inc()
		return
	}
	r.cacheLookups.WithLabelValues("miss").Inc()
}

// WriteTextfile writes the current metric values in the Prometheus text
// format, for pickup by a node exporter textfile collector.
func (r *Registry) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.Registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}

func errorToStatus(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
