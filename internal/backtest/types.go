package backtest

import (
	"fmt"
	"time"

	"github.com/newthinker/trendweek/internal/core"
	"github.com/newthinker/trendweek/internal/regime"
	"github.com/newthinker/trendweek/internal/risk"
)

// Action is the kind of ledger entry
type Action string

const (
	ActionOpen  Action = "open"
	ActionClose Action = "close"
)

// Reason explains why a position was closed
type Reason string

const (
	ReasonProfitTarget Reason = "profit target"
	ReasonStopLoss     Reason = "stop loss"
	ReasonEndOfRun     Reason = "end of run"
)

// TradeRecord is one immutable ledger entry
type TradeRecord struct {
	Date          time.Time
	Action        Action
	Reason        Reason // empty for opens
	RawPrice      float64
	AdjustedPrice float64 // after slippage
	Commission    float64
	Balance       float64 // balance after this entry
	Regime        regime.Regime

	// Close only
	GrossPL   float64
	PLPercent float64 // fractional, e.g. 0.05 for +5%
}

// Label renders the action the way the ledger table shows it
func (t TradeRecord) Label() string {
	if t.Action == ActionClose && t.Reason != "" {
		return fmt.Sprintf("%s (%s)", t.Action, t.Reason)
	}
	return string(t.Action)
}

// IsWin returns true if a close realized a profit before commission
func (t TradeRecord) IsWin() bool {
	return t.Action == ActionClose && t.PLPercent > 0
}

// Result holds the complete backtest output
type Result struct {
	Ticker         string
	Benchmark      string
	Period         string
	StartYear      int
	EndDate        time.Time
	InitialBalance float64
	FinalBalance   float64
	TotalPLPercent float64 // fractional
	TradeCount     int
	Trades         []TradeRecord
	Stats          Stats
	WeeksAnalyzed  int
	WeeksSkipped   int
}

// Stats holds performance statistics derived from the ledger
type Stats struct {
	ClosedTrades    int
	WinningTrades   int
	LosingTrades    int
	WinRate         float64 // percentage of profitable closes
	MaxDrawdown     float64 // largest peak-to-trough balance decline, percentage
	TotalGrossPL    float64
	TotalCommission float64
}

// Costs is the execution cost model applied on both legs
type Costs struct {
	SlippageRate   float64 // adverse fractional price adjustment
	CommissionRate float64 // fraction of post-transaction balance
}

// EntryRules are the thresholds a week's metrics must pass to open a position
type EntryRules struct {
	MaxVolatilityRatio float64
	MinMomentum1W      float64
	MinVolumeChange    float64
	VolumeWindow       risk.VolumeWindow
	RequireBull        bool
}

// Allows reports whether metrics m under regime r qualify for an entry.
// Undefined metrics never qualify.
func (e EntryRules) Allows(m *risk.Metrics, r regime.Regime) bool {
	if m == nil {
		return false
	}
	if e.RequireBull && r != regime.Bull {
		return false
	}
	return m.VolatilityRatio.Less(e.MaxVolatilityRatio) &&
		m.Momentum1W.Greater(e.MinMomentum1W) &&
		m.VolumeChangeAt(e.VolumeWindow).Greater(e.MinVolumeChange)
}

// Params fully describes one backtest run
type Params struct {
	Ticker         string
	Benchmark      string
	StartYear      int
	EndDate        time.Time
	LookbackYears  int
	InitialCapital float64
	Costs          Costs
	Entry          EntryRules
	Exits          regime.Exits
	TrendFast      int
	TrendSlow      int
}

const (
	fetchLeadDays  = 60
	fetchTrailDays = 7
)

// RangeStart is the first day of the simulated period
func (p Params) RangeStart() time.Time {
	return time.Date(p.StartYear, time.January, 1, 0, 0, 0, 0, time.UTC)
}

// FetchWindow is the span of history requested from the provider: the
// lookback years before the simulated period plus a lead and trail buffer.
func (p Params) FetchWindow() (start, end time.Time) {
	start = time.Date(p.StartYear-p.LookbackYears, time.January, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -fetchLeadDays)
	end = core.Day(p.EndDate).AddDate(0, 0, fetchTrailDays)
	return start, end
}

// Period renders the simulated period as "<start year>-<end date>"
func (p Params) Period() string {
	return fmt.Sprintf("%d-%s", p.StartYear, p.EndDate.Format("2006-01-02"))
}

// Validate checks that the run is well formed.
func (p Params) Validate() error {
	invalid := func(format string, args ...any) error {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf(format, args...))
	}
	switch {
	case p.Ticker == "":
		return core.WrapError(core.ErrConfigMissing, fmt.Errorf("ticker is required"))
	case p.Benchmark == "":
		return core.WrapError(core.ErrConfigMissing, fmt.Errorf("benchmark is required"))
	case p.EndDate.IsZero():
		return core.WrapError(core.ErrConfigMissing, fmt.Errorf("end date is required"))
	case p.EndDate.Before(p.RangeStart()):
		return invalid("end date %s is before start year %d", p.EndDate.Format("2006-01-02"), p.StartYear)
	case p.LookbackYears <= 0:
		return invalid("lookback years must be positive, got %d", p.LookbackYears)
	case p.InitialCapital <= 0:
		return invalid("initial capital must be positive, got %f", p.InitialCapital)
	case p.Costs.SlippageRate < 0 || p.Costs.SlippageRate >= 1:
		return invalid("slippage rate must be in [0, 1), got %f", p.Costs.SlippageRate)
	case p.Costs.CommissionRate < 0 || p.Costs.CommissionRate >= 1:
		return invalid("commission rate must be in [0, 1), got %f", p.Costs.CommissionRate)
	case p.TrendFast <= 0 || p.TrendSlow <= 0:
		return invalid("trend periods must be positive, got %d/%d", p.TrendFast, p.TrendSlow)
	}
	for _, t := range []regime.Targets{p.Exits.Bull, p.Exits.Bear} {
		if t.ProfitTarget <= 0 || t.StopLoss <= 0 || t.StopLoss >= 1 {
			return invalid("profit target must be positive and stop loss in (0, 1), got %f/%f", t.ProfitTarget, t.StopLoss)
		}
	}
	return nil
}
