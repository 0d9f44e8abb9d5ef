package backtest

import (
	"fmt"
	"time"

	"github.com/newthinker/trendweek/internal/core"
	"github.com/newthinker/trendweek/internal/regime"
	"github.com/newthinker/trendweek/internal/risk"
)

// Position is an open long position
type Position struct {
	EntryDate    time.Time
	EntryPrice   float64 // after slippage
	EntryBalance float64 // balance after entry commission, the basis for P/L
	Regime       regime.Regime
}

// State is the run-scoped ledger state. A nil Position means flat.
// Transitions return a new State and never modify their input.
type State struct {
	Balance  float64
	Position *Position
}

// NewState returns a flat state holding capital
func NewState(capital float64) State {
	return State{Balance: capital}
}

// Long reports whether a position is open
func (s State) Long() bool {
	return s.Position != nil
}

// Open enters a position at raw adjusted up by slippage. The commission is
// charged on the current balance before the entry balance is captured.
func Open(s State, date time.Time, raw float64, r regime.Regime, c Costs) (State, TradeRecord, error) {
	if s.Long() {
		return s, TradeRecord{}, core.WrapError(core.ErrInvalidTransition,
			fmt.Errorf("open on %s: position already open since %s", date.Format("2006-01-02"), s.Position.EntryDate.Format("2006-01-02")))
	}

	adjusted := raw * (1 + c.SlippageRate)
	commission := s.Balance * c.CommissionRate
	balance := s.Balance - commission

	next := State{
		Balance: balance,
		Position: &Position{
			EntryDate:    date,
			EntryPrice:   adjusted,
			EntryBalance: balance,
			Regime:       r,
		},
	}
	rec := TradeRecord{
		Date:          date,
		Action:        ActionOpen,
		RawPrice:      raw,
		AdjustedPrice: adjusted,
		Commission:    commission,
		Balance:       balance,
		Regime:        r,
	}
	return next, rec, nil
}

// Close exits the open position at raw adjusted down by slippage. P/L scales
// the entry balance by the price change; commission is charged on the
// balance after P/L.
func Close(s State, date time.Time, raw float64, reason Reason, r regime.Regime, c Costs) (State, TradeRecord, error) {
	if !s.Long() {
		return s, TradeRecord{}, core.WrapError(core.ErrInvalidTransition,
			fmt.Errorf("close on %s: no open position", date.Format("2006-01-02")))
	}

	pos := s.Position
	adjusted := raw * (1 - c.SlippageRate)
	plPct := (adjusted - pos.EntryPrice) / pos.EntryPrice
	gross := pos.EntryBalance * plPct

	balance := s.Balance + gross
	commission := balance * c.CommissionRate
	balance -= commission

	rec := TradeRecord{
		Date:          date,
		Action:        ActionClose,
		Reason:        reason,
		RawPrice:      raw,
		AdjustedPrice: adjusted,
		Commission:    commission,
		Balance:       balance,
		Regime:        r,
		GrossPL:       gross,
		PLPercent:     plPct,
	}
	return State{Balance: balance}, rec, nil
}

// EvaluateEntry opens a position when flat and the week's metrics pass the
// entry rules. A nil metrics snapshot never opens.
func EvaluateEntry(s State, date time.Time, raw float64, m *risk.Metrics, r regime.Regime, rules EntryRules, c Costs) (State, *TradeRecord) {
	if s.Long() || !rules.Allows(m, r) {
		return s, nil
	}
	next, rec, err := Open(s, date, raw, r, c)
	if err != nil {
		return s, nil
	}
	return next, &rec
}

// ExitReason reports which exit, if any, raw triggers for the open position
// under the thresholds of regime r. The profit target is checked first.
func ExitReason(pos *Position, raw float64, r regime.Regime, exits regime.Exits) (Reason, bool) {
	if pos == nil {
		return "", false
	}
	t := exits.For(r)
	switch {
	case raw >= pos.EntryPrice*(1+t.ProfitTarget):
		return ReasonProfitTarget, true
	case raw <= pos.EntryPrice*(1-t.StopLoss):
		return ReasonStopLoss, true
	}
	return "", false
}

// EvaluateExit closes the open position when raw reaches the profit target or
// stop loss of the current regime.
func EvaluateExit(s State, date time.Time, raw float64, r regime.Regime, exits regime.Exits, c Costs) (State, *TradeRecord) {
	reason, ok := ExitReason(s.Position, raw, r, exits)
	if !ok {
		return s, nil
	}
	next, rec, err := Close(s, date, raw, reason, r, c)
	if err != nil {
		return s, nil
	}
	return next, &rec
}

// Liquidate force-closes an open position at the end of the run.
func Liquidate(s State, date time.Time, close float64, r regime.Regime, c Costs) (State, TradeRecord, error) {
	return Close(s, date, close, ReasonEndOfRun, r, c)
}
