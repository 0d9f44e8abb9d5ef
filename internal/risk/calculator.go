package risk

import (
	"math"
	"time"

	"github.com/newthinker/trendweek/internal/core"
)

const (
	lastWeekDays    = 5
	momentumShort   = 5
	momentumLong    = 20
	volumeWeeks     = 4
	windowExtraDays = 30
)

// Calculator computes Metrics over a trailing window of LookbackYears years
// (plus a 30 day margin) ending at the analysis date.
type Calculator struct {
	LookbackYears int
}

// dailyPoint is one daily return with the bar it was computed from
type dailyPoint struct {
	date   time.Time
	ret    float64
	close  float64
	volume float64
	noVol  bool
}

// Compute returns the metrics for date, or false when either series has no
// data in the window, the daily returns do not overlap, or fewer than two
// weekly returns are common to both series.
func (c Calculator) Compute(company, benchmark core.Series, date time.Time) (*Metrics, bool) {
	end := core.Day(date)
	start := end.AddDate(0, 0, -(c.LookbackYears*365 + windowExtraDays))

	comp := company.Slice(start, end)
	mkt := benchmark.Slice(start, end)
	if comp.Empty() || mkt.Empty() {
		return nil, false
	}

	compDaily := dailyReturns(comp, true)
	mktDaily := dailyReturns(mkt, false)

	cr, mr := alignDaily(compDaily, mktDaily)
	if len(cr) == 0 {
		return nil, false
	}

	weekly := commonWeekly(weeklyReturns(comp), weeklyReturns(mkt))
	if len(weekly) < 2 {
		return nil, false
	}

	m := &Metrics{
		Date:             end,
		CurrentClose:     compDaily[len(compDaily)-1].close,
		ExpectedReturn:   mean(weekly),
		WeeklyVolatility: sampleStd(weekly),
	}

	if len(cr) >= lastWeekDays {
		tail := make([]float64, lastWeekDays)
		for i, p := range cr[len(cr)-lastWeekDays:] {
			tail[i] = p.ret
		}
		m.LastWeekVolatility = sampleStd(tail).Scale(math.Sqrt(lastWeekDays))
	}
	m.VolatilityRatio = m.LastWeekVolatility.Div(m.WeeklyVolatility)

	closes := make([]float64, len(compDaily))
	for i, p := range compDaily {
		closes[i] = p.close
	}
	m.Momentum1W = momentum(closes, momentumShort)
	m.Momentum4W = momentum(closes, momentumLong)

	m.VolumeChange = volumeChanges(cr)

	compRets := make([]float64, len(cr))
	mktRets := make([]float64, len(mr))
	for i := range cr {
		compRets[i] = cr[i].ret
		mktRets[i] = mr[i].ret
	}
	m.Beta = covariance(compRets, mktRets).Div(covariance(mktRets, mktRets))

	return m, true
}

// dailyReturns computes close-to-close percentage changes, dropping the first
// bar and, when requireVolume is set, bars without a reported volume.
func dailyReturns(s core.Series, requireVolume bool) []dailyPoint {
	if s.Len() < 2 {
		return nil
	}
	out := make([]dailyPoint, 0, s.Len()-1)
	for i := 1; i < s.Len(); i++ {
		prev, cur := s.Bar(i-1), s.Bar(i)
		if prev.Close == 0 {
			continue
		}
		if requireVolume && cur.VolumeMissing {
			continue
		}
		out = append(out, dailyPoint{
			date:   cur.Date,
			ret:    (cur.Close - prev.Close) / prev.Close,
			close:  cur.Close,
			volume: float64(cur.Volume),
			noVol:  cur.VolumeMissing,
		})
	}
	return out
}

// alignDaily keeps the points whose dates appear in both inputs.
func alignDaily(a, b []dailyPoint) ([]dailyPoint, []dailyPoint) {
	var outA, outB []dailyPoint
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i].date.Before(b[j].date):
			i++
		case b[j].date.Before(a[i].date):
			j++
		default:
			outA = append(outA, a[i])
			outB = append(outB, b[j])
			i++
			j++
		}
	}
	return outA, outB
}

type weeklyPoint struct {
	week  time.Time
	value float64
}

// weeklyCloses takes the last close of each Sunday-ending week that has bars.
func weeklyCloses(s core.Series) []weeklyPoint {
	var out []weeklyPoint
	for i := 0; i < s.Len(); i++ {
		b := s.Bar(i)
		week := core.WeekEnding(b.Date)
		if n := len(out); n > 0 && out[n-1].week.Equal(week) {
			out[n-1].value = b.Close
			continue
		}
		out = append(out, weeklyPoint{week: week, value: b.Close})
	}
	return out
}

// weeklyReturns is the percentage change between consecutive weekly closes,
// labelled with the later week.
func weeklyReturns(s core.Series) []weeklyPoint {
	closes := weeklyCloses(s)
	if len(closes) < 2 {
		return nil
	}
	out := make([]weeklyPoint, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		prev := closes[i-1].value
		if prev == 0 {
			continue
		}
		out = append(out, weeklyPoint{
			week:  closes[i].week,
			value: (closes[i].value - prev) / prev,
		})
	}
	return out
}

// commonWeekly returns the company weekly returns for weeks present in both inputs.
func commonWeekly(company, market []weeklyPoint) []float64 {
	var out []float64
	i, j := 0, 0
	for i < len(company) && j < len(market) {
		switch {
		case company[i].week.Before(market[j].week):
			i++
		case market[j].week.Before(company[i].week):
			j++
		default:
			out = append(out, company[i].value)
			i++
			j++
		}
	}
	return out
}

func momentum(closes []float64, lookback int) core.Value {
	n := len(closes)
	if n < lookback {
		return core.Undefined()
	}
	base := core.Defined(closes[n-lookback])
	return core.Defined(closes[n-1] - closes[n-lookback]).Div(base)
}

// volumeChanges averages volume per week and compares the last four weeks
// pairwise, oldest pair first.
func volumeChanges(points []dailyPoint) [3]core.Value {
	var changes [3]core.Value

	type acc struct {
		week  time.Time
		sum   float64
		count int
	}
	var weeks []acc
	for _, p := range points {
		if p.noVol {
			continue
		}
		week := core.WeekEnding(p.date)
		if n := len(weeks); n > 0 && weeks[n-1].week.Equal(week) {
			weeks[n-1].sum += p.volume
			weeks[n-1].count++
			continue
		}
		weeks = append(weeks, acc{week: week, sum: p.volume, count: 1})
	}
	if len(weeks) < volumeWeeks {
		return changes
	}

	last := weeks[len(weeks)-volumeWeeks:]
	avg := make([]float64, volumeWeeks)
	for i, w := range last {
		avg[i] = w.sum / float64(w.count)
	}
	for i := 0; i < volumeWeeks-1; i++ {
		changes[i] = core.Defined(avg[i+1] - avg[i]).Div(core.Defined(avg[i]))
	}
	return changes
}

func mean(xs []float64) core.Value {
	if len(xs) == 0 {
		return core.Undefined()
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return core.Defined(sum / float64(len(xs)))
}

// sampleStd is the n-1 standard deviation
func sampleStd(xs []float64) core.Value {
	v := covariance(xs, xs)
	if f, ok := v.Get(); ok {
		return core.Defined(math.Sqrt(f))
	}
	return v
}

// covariance is the n-1 sample covariance of two equally long slices
func covariance(xs, ys []float64) core.Value {
	n := len(xs)
	if n < 2 || len(ys) != n {
		return core.Undefined()
	}
	mx, _ := mean(xs).Get()
	my, _ := mean(ys).Get()
	var sum float64
	for i := range xs {
		sum += (xs[i] - mx) * (ys[i] - my)
	}
	return core.Defined(sum / float64(n-1))
}
