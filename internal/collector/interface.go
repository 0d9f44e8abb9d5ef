package collector

import (
	"context"
	"time"

	"github.com/newthinker/trendweek/internal/core"
)

// Config holds provider configuration
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	RawPrices bool   // yahoo only, skips the adjusted-close scaling
	Dir       string // csvfile only
}

// Provider fetches daily price history for a symbol
type Provider interface {
	// Name identifies the provider in logs and metrics
	Name() string

	// FetchHistory returns the daily bars in [start, end]. The bars need not
	// be sorted or unique; callers normalize them into a core.Series.
	FetchHistory(ctx context.Context, symbol string, start, end time.Time) ([]core.Bar, error)
}
