// Package schedule enumerates the weekly analysis dates of a backtest and
// maps each one to the trading day on which its decision executes.
package schedule

import (
	"time"

	"github.com/newthinker/trendweek/internal/core"
)

// DefaultHorizonDays is how far past an analysis date the next trading day is searched for
const DefaultHorizonDays = 7

// WeeklyDates returns the Sunday ending each week in which series has at
// least one bar, restricted to [start, end], ascending and without duplicates.
func WeeklyDates(series core.Series, start, end time.Time) []time.Time {
	lo, hi := core.Day(start), core.Day(end)
	var dates []time.Time
	for i := 0; i < series.Len(); i++ {
		week := core.WeekEnding(series.Bar(i).Date)
		if week.Before(lo) || week.After(hi) {
			continue
		}
		if n := len(dates); n > 0 && dates[n-1].Equal(week) {
			continue
		}
		dates = append(dates, week)
	}
	return dates
}

// NextTradingDay returns the earliest series date strictly after date and at
// most horizonDays later that does not exceed end. It reports false when the
// week has no such day and should be skipped.
func NextTradingDay(series core.Series, date time.Time, horizonDays int, end time.Time) (time.Time, bool) {
	i, ok := series.After(date)
	if !ok {
		return time.Time{}, false
	}
	next := series.Bar(i).Date
	limit := core.Day(date).AddDate(0, 0, horizonDays)
	if next.After(limit) || next.After(core.Day(end)) {
		return time.Time{}, false
	}
	return next, true
}
