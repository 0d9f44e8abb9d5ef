// Package regime classifies each trading day as Bull or Bear against a
// smoothed trend line built from six cascaded weighted moving averages.
package regime

import (
	"sort"
	"time"

	"github.com/newthinker/trendweek/internal/core"
	"github.com/newthinker/trendweek/internal/indicator"
)

// Regime is the market classification for a date
type Regime string

const (
	Bull Regime = "Bull"
	Bear Regime = "Bear"
)

// Stages is the number of cascaded moving averages in the trend line
const Stages = 6

// Point is one trend line value
type Point struct {
	Date  time.Time
	Value float64
}

// Signal is the classification at one analysis date
type Signal struct {
	Date   time.Time
	Trend  core.Value
	Close  float64
	Regime Regime
}

// Periods derives the six stage periods from the two base periods.
// Each stage period is the sum of the two before it.
func Periods(fast, slow int) [Stages]int {
	var p [Stages]int
	p[0], p[1] = fast, slow
	for i := 2; i < Stages; i++ {
		p[i] = p[i-1] + p[i-2]
	}
	return p
}

// TrendLine computes the cascaded trend line over the series closes.
// Dates before every stage has warmed up produce no point, so the output is
// shorter than the input by the combined warm-up of all stages.
func TrendLine(series core.Series, fast, slow int) []Point {
	periods := Periods(fast, slow)
	values := indicator.Cascade(series.Closes(), periods[:]...)
	if len(values) == 0 {
		return nil
	}

	offset := series.Len() - len(values)
	points := make([]Point, len(values))
	for i, v := range values {
		points[i] = Point{Date: series.Bar(offset + i).Date, Value: v}
	}
	return points
}

// Lookup returns the trend value on date, falling back to the most recent
// value before it.
func Lookup(trend []Point, date time.Time) core.Value {
	day := core.Day(date)
	i := sort.Search(len(trend), func(i int) bool {
		return trend[i].Date.After(day)
	})
	if i == 0 {
		return core.Undefined()
	}
	return core.Defined(trend[i-1].Value)
}

// Classify labels date as Bull when close is at or above the trend value and
// Bear otherwise, including when no trend value exists yet.
func Classify(trend []Point, date time.Time, close float64) Signal {
	tv := Lookup(trend, date)
	sig := Signal{Date: core.Day(date), Trend: tv, Close: close, Regime: Bear}
	if v, ok := tv.Get(); ok && close >= v {
		sig.Regime = Bull
	}
	return sig
}

// Targets is the profit-target / stop-loss pair for one regime
type Targets struct {
	ProfitTarget float64
	StopLoss     float64
}

// Exits holds the exit thresholds for both regimes
type Exits struct {
	Bull Targets
	Bear Targets
}

// For returns the pair that applies under r
func (e Exits) For(r Regime) Targets {
	if r == Bull {
		return e.Bull
	}
	return e.Bear
}
