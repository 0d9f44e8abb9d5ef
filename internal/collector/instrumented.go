package collector

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/trendweek/internal/core"
	"github.com/newthinker/trendweek/internal/metrics"
)

// Instrumented wraps a Provider with fetch logging and metrics
type Instrumented struct {
	next    Provider
	metrics *metrics.Registry
	logger  *zap.Logger
}

// Instrument wraps p. A nil registry or logger disables that concern.
func Instrument(p Provider, reg *metrics.Registry, logger *zap.Logger) *Instrumented {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Instrumented{next: p, metrics: reg, logger: logger}
}

func (i *Instrumented) Name() string {
	return i.next.Name()
}

func (i *Instrumented) FetchHistory(ctx context.Context, symbol string, start, end time.Time) ([]core.Bar, error) {
	began := time.Now()
	bars, err := i.next.FetchHistory(ctx, symbol, start, end)
	elapsed := time.Since(began)

	if i.metrics != nil {
		i.metrics.RecordFetch(i.next.Name(), err, len(bars), elapsed.Seconds())
	}
	fields := []zap.Field{
		zap.String("provider", i.next.Name()),
		zap.String("symbol", symbol),
		zap.Duration("elapsed", elapsed),
	}
	if err != nil {
		i.logger.Warn("history fetch failed", append(fields, zap.Error(err))...)
		return nil, err
	}
	i.logger.Debug("history fetched", append(fields, zap.Int("bars", len(bars)))...)
	return bars, nil
}
