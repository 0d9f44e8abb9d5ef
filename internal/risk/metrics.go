// Package risk computes the trailing-window statistics consulted before each
// weekly decision: volatility, momentum, volume change and beta.
package risk

import (
	"fmt"
	"strings"
	"time"

	"github.com/newthinker/trendweek/internal/core"
)

// VolumeWindow selects one of the three consecutive weekly volume-change ratios
type VolumeWindow int

const (
	// H2H1 compares the third-to-last weekly average volume with the fourth-to-last
	H2H1 VolumeWindow = iota
	// H3H2 compares the second-to-last week with the third-to-last
	H3H2
	// H4H3 compares the last week with the second-to-last
	H4H3
)

// ParseVolumeWindow accepts "h2h1", "h3h2" or "h4h3" (case-insensitive, dashes allowed).
func ParseVolumeWindow(s string) (VolumeWindow, error) {
	switch strings.ReplaceAll(strings.ToLower(s), "-", "") {
	case "h2h1":
		return H2H1, nil
	case "h3h2", "":
		return H3H2, nil
	case "h4h3":
		return H4H3, nil
	}
	return H3H2, fmt.Errorf("unknown volume window %q", s)
}

func (w VolumeWindow) String() string {
	switch w {
	case H2H1:
		return "h2h1"
	case H4H3:
		return "h4h3"
	default:
		return "h3h2"
	}
}

// Metrics is the read-only snapshot for one analysis date.
// Any field may be undefined when its window is too short or a denominator is zero.
type Metrics struct {
	Date         time.Time
	CurrentClose float64 // last company close inside the window

	ExpectedReturn     core.Value // mean weekly return
	WeeklyVolatility   core.Value // sample std of weekly returns
	LastWeekVolatility core.Value // std of the last 5 daily returns, scaled by sqrt(5)
	VolatilityRatio    core.Value // LastWeekVolatility / WeeklyVolatility
	Momentum1W         core.Value
	Momentum4W         core.Value
	VolumeChange       [3]core.Value // indexed by VolumeWindow
	Beta               core.Value
}

// VolumeChangeAt returns the ratio selected by w
func (m Metrics) VolumeChangeAt(w VolumeWindow) core.Value {
	if w < H2H1 || w > H4H3 {
		return core.Undefined()
	}
	return m.VolumeChange[w]
}
