package core

import (
	"sort"
	"time"
)

// Bar represents one daily candlestick
type Bar struct {
	Date          time.Time // calendar day, UTC midnight
	Open          float64
	High          float64
	Low           float64
	Close         float64
	Volume        int64
	VolumeMissing bool // provider reported no volume for this day
}

// Day truncates t to its calendar day, expressed as UTC midnight.
// The wall-clock date of t's own location is kept.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Series is a date-ascending, one-bar-per-day price history for a symbol.
// It is immutable once built; all accessors return copies or sub-views.
type Series struct {
	Symbol string
	bars   []Bar
}

// NewSeries sorts bars by date, normalizes each date to its calendar day
// and keeps one bar per day. When a day appears more than once the later
// bar in the input wins.
func NewSeries(symbol string, bars []Bar) Series {
	normalized := make([]Bar, len(bars))
	for i, b := range bars {
		b.Date = Day(b.Date)
		normalized[i] = b
	}
	sort.SliceStable(normalized, func(i, j int) bool {
		return normalized[i].Date.Before(normalized[j].Date)
	})

	out := normalized[:0]
	for _, b := range normalized {
		if n := len(out); n > 0 && out[n-1].Date.Equal(b.Date) {
			out[n-1] = b
			continue
		}
		out = append(out, b)
	}
	return Series{Symbol: symbol, bars: out}
}

// Len returns the number of bars
func (s Series) Len() int { return len(s.bars) }

// Empty reports whether the series has no bars
func (s Series) Empty() bool { return len(s.bars) == 0 }

// Bar returns the i-th bar
func (s Series) Bar(i int) Bar { return s.bars[i] }

// Bars returns a copy of the underlying bars
func (s Series) Bars() []Bar {
	out := make([]Bar, len(s.bars))
	copy(out, s.bars)
	return out
}

// First returns the earliest bar
func (s Series) First() (Bar, bool) {
	if len(s.bars) == 0 {
		return Bar{}, false
	}
	return s.bars[0], true
}

// Last returns the latest bar
func (s Series) Last() (Bar, bool) {
	if len(s.bars) == 0 {
		return Bar{}, false
	}
	return s.bars[len(s.bars)-1], true
}

// search returns the index of the first bar dated on or after day
func (s Series) search(day time.Time) int {
	return sort.Search(len(s.bars), func(i int) bool {
		return !s.bars[i].Date.Before(day)
	})
}

// Index returns the position of the bar dated exactly on date.
func (s Series) Index(date time.Time) (int, bool) {
	day := Day(date)
	i := s.search(day)
	if i < len(s.bars) && s.bars[i].Date.Equal(day) {
		return i, true
	}
	return -1, false
}

// AtOrBefore returns the position of the latest bar dated on or before date.
func (s Series) AtOrBefore(date time.Time) (int, bool) {
	day := Day(date)
	i := s.search(day)
	if i < len(s.bars) && s.bars[i].Date.Equal(day) {
		return i, true
	}
	if i == 0 {
		return -1, false
	}
	return i - 1, true
}

// After returns the position of the earliest bar dated strictly after date.
func (s Series) After(date time.Time) (int, bool) {
	day := Day(date).AddDate(0, 0, 1)
	i := s.search(day)
	if i < len(s.bars) {
		return i, true
	}
	return -1, false
}

// Slice returns the bars dated within [start, end], both inclusive.
func (s Series) Slice(start, end time.Time) Series {
	lo := s.search(Day(start))
	hi := s.search(Day(end).AddDate(0, 0, 1))
	if hi < lo {
		hi = lo
	}
	return Series{Symbol: s.Symbol, bars: s.bars[lo:hi:hi]}
}

// Closes returns the closing prices in date order
func (s Series) Closes() []float64 {
	out := make([]float64, len(s.bars))
	for i, b := range s.bars {
		out[i] = b.Close
	}
	return out
}

// Dates returns the bar dates in order
func (s Series) Dates() []time.Time {
	out := make([]time.Time, len(s.bars))
	for i, b := range s.bars {
		out[i] = b.Date
	}
	return out
}

// WeekEnding returns the Sunday that closes the calendar week containing date.
// Weeks run Monday through Sunday.
func WeekEnding(date time.Time) time.Time {
	day := Day(date)
	offset := (7 - int(day.Weekday())) % 7
	return day.AddDate(0, 0, offset)
}
