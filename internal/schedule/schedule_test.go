package schedule

import (
	"testing"
	"time"

	"github.com/newthinker/trendweek/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(y int, m time.Month, day int) time.Time {
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

func seriesOn(dates ...time.Time) core.Series {
	bars := make([]core.Bar, len(dates))
	for i, dt := range dates {
		bars[i] = core.Bar{Date: dt, Open: 100, Close: 100, Volume: 1}
	}
	return core.NewSeries("FN", bars)
}

func TestWeeklyDates(t *testing.T) {
	// Weeks ending 2023-12-31, 2024-01-07, 2024-01-14, 2024-01-28 and
	// 2024-02-11; the week ending 2024-01-21 has no bars.
	s := seriesOn(
		d(2023, 12, 29),
		d(2024, 1, 2), d(2024, 1, 5),
		d(2024, 1, 9),
		d(2024, 1, 22), d(2024, 1, 26),
		d(2024, 2, 5),
	)

	got := WeeklyDates(s, d(2024, 1, 1), d(2024, 2, 1))

	want := []time.Time{d(2024, 1, 7), d(2024, 1, 14), d(2024, 1, 28)}
	require.Equal(t, want, got)
	for _, w := range got {
		assert.Equal(t, time.Sunday, w.Weekday())
	}
}

func TestWeeklyDates_AscendingAndContained(t *testing.T) {
	var dates []time.Time
	for dt := d(2023, 6, 1); dt.Before(d(2024, 6, 1)); dt = dt.AddDate(0, 0, 1) {
		if dt.Weekday() != time.Saturday && dt.Weekday() != time.Sunday {
			dates = append(dates, dt)
		}
	}
	s := seriesOn(dates...)
	start, end := d(2024, 1, 1), d(2024, 3, 20)

	got := WeeklyDates(s, start, end)
	require.NotEmpty(t, got)
	for i, w := range got {
		assert.False(t, w.Before(start) || w.After(end), "date %s out of range", w)
		if i > 0 {
			assert.True(t, w.After(got[i-1]), "dates must be strictly ascending")
		}
	}
}

func TestWeeklyDates_Empty(t *testing.T) {
	assert.Empty(t, WeeklyDates(core.Series{}, d(2024, 1, 1), d(2024, 12, 31)))
}

func TestNextTradingDay(t *testing.T) {
	s := seriesOn(d(2024, 1, 5), d(2024, 1, 8), d(2024, 1, 9), d(2024, 1, 22))

	tests := []struct {
		name   string
		date   time.Time
		end    time.Time
		want   time.Time
		wantOK bool
	}{
		{"monday after sunday", d(2024, 1, 7), d(2024, 12, 31), d(2024, 1, 8), true},
		{"strictly after", d(2024, 1, 8), d(2024, 12, 31), d(2024, 1, 9), true},
		{"beyond horizon", d(2024, 1, 14), d(2024, 12, 31), time.Time{}, false},
		{"at horizon edge", d(2024, 1, 15), d(2024, 12, 31), d(2024, 1, 22), true},
		{"beyond range end", d(2024, 1, 7), d(2024, 1, 7), time.Time{}, false},
		{"no later data", d(2024, 1, 22), d(2024, 12, 31), time.Time{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NextTradingDay(s, tt.date, DefaultHorizonDays, tt.end)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
			if ok {
				assert.True(t, got.After(tt.date))
				assert.False(t, got.After(tt.end))
			}
		})
	}
}
