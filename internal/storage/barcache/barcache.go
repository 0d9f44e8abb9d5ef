// Package barcache is a read-through Parquet cache of daily bars in front of
// a price provider.
package barcache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"
	"go.uber.org/zap"

	"github.com/newthinker/trendweek/internal/collector"
	"github.com/newthinker/trendweek/internal/core"
	"github.com/newthinker/trendweek/internal/metrics"
)

// Compile-time interface check.
var _ collector.Provider = (*Cache)(nil)

const windowLayout = "20060102"

// BarRecord is the Parquet schema for cached daily bars.
type BarRecord struct {
	Timestamp     int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms, UTC midnight
	Open          float64 `parquet:"open"`
	High          float64 `parquet:"high"`
	Low           float64 `parquet:"low"`
	Close         float64 `parquet:"close"`
	Volume        int64   `parquet:"volume"`
	VolumeMissing bool    `parquet:"volume_missing"`
}

// Cache serves FetchHistory from Parquet files and falls through to the
// wrapped provider on a miss. Each file holds one fetched window:
//
//	<dir>/<provider>/<SYMBOL>/<YYYYMMDD>_<YYYYMMDD>.parquet
//
// A request is a hit when any cached window covers it. Windows reaching
// today or later are never written, since their last bars may still change.
type Cache struct {
	dir     string
	next    collector.Provider
	metrics *metrics.Registry
	logger  *zap.Logger
	now     func() time.Time
}

// Option configures a Cache
type Option func(*Cache)

// WithMetrics records hits and misses into reg
func WithMetrics(reg *metrics.Registry) Option {
	return func(c *Cache) { c.metrics = reg }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// New wraps next with a cache rooted at dir
func New(dir string, next collector.Provider, opts ...Option) *Cache {
	c := &Cache{
		dir:    dir,
		next:   next,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) Name() string {
	return c.next.Name()
}

func (c *Cache) FetchHistory(ctx context.Context, symbol string, start, end time.Time) ([]core.Bar, error) {
	lo, hi := core.Day(start), core.Day(end)

	if path, ok := c.lookup(symbol, lo, hi); ok {
		bars, err := readBars(path, lo, hi)
		if err == nil {
			c.record(true)
			c.logger.Debug("bar cache hit", zap.String("symbol", symbol), zap.String("file", path))
			return bars, nil
		}
		c.logger.Warn("unreadable cache file, refetching", zap.String("file", path), zap.Error(err))
	}
	c.record(false)

	bars, err := c.next.FetchHistory(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 || !hi.Before(core.Day(c.now())) {
		return bars, nil
	}

	path := c.windowPath(symbol, lo, hi)
	if err := writeBars(path, bars); err != nil {
		// A failed write only costs a refetch next time.
		c.logger.Warn("writing bar cache", zap.String("file", path), zap.Error(err))
	}
	return bars, nil
}

func (c *Cache) record(hit bool) {
	if c.metrics != nil {
		c.metrics.RecordCacheLookup(hit)
	}
}

func (c *Cache) symbolDir(symbol string) string {
	s := strings.ToUpper(strings.TrimPrefix(symbol, "^"))
	s = strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(s)
	return filepath.Join(c.dir, c.next.Name(), s)
}

func (c *Cache) windowPath(symbol string, lo, hi time.Time) string {
	name := fmt.Sprintf("%s_%s.parquet", lo.Format(windowLayout), hi.Format(windowLayout))
	return filepath.Join(c.symbolDir(symbol), name)
}

// lookup finds a cached window covering [lo, hi]
func (c *Cache) lookup(symbol string, lo, hi time.Time) (string, bool) {
	entries, err := os.ReadDir(c.symbolDir(symbol))
	if err != nil {
		return "", false
	}
	for _, e := range entries {
		from, to, ok := parseWindow(e.Name())
		if !ok || from.After(lo) || to.Before(hi) {
			continue
		}
		return filepath.Join(c.symbolDir(symbol), e.Name()), true
	}
	return "", false
}

func parseWindow(name string) (from, to time.Time, ok bool) {
	base, found := strings.CutSuffix(name, ".parquet")
	if !found {
		return from, to, false
	}
	a, b, found := strings.Cut(base, "_")
	if !found {
		return from, to, false
	}
	from, err1 := time.Parse(windowLayout, a)
	to, err2 := time.Parse(windowLayout, b)
	return from, to, err1 == nil && err2 == nil
}

func writeBars(path string, bars []core.Bar) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	records := make([]BarRecord, len(bars))
	for i, b := range bars {
		records[i] = BarRecord{
			Timestamp:     core.Day(b.Date).UnixMilli(),
			Open:          b.Open,
			High:          b.High,
			Low:           b.Low,
			Close:         b.Close,
			Volume:        b.Volume,
			VolumeMissing: b.VolumeMissing,
		}
	}
	// One temp file per writer; the last rename wins.
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if err := parquet.Write(f, records); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func readBars(path string, lo, hi time.Time) ([]core.Bar, error) {
	records, err := parquet.ReadFile[BarRecord](path)
	if err != nil {
		return nil, err
	}
	bars := make([]core.Bar, 0, len(records))
	for _, r := range records {
		date := time.UnixMilli(r.Timestamp).UTC()
		if date.Before(lo) || date.After(hi) {
			continue
		}
		bars = append(bars, core.Bar{
			Date:          date,
			Open:          r.Open,
			High:          r.High,
			Low:           r.Low,
			Close:         r.Close,
			Volume:        r.Volume,
			VolumeMissing: r.VolumeMissing,
		})
	}
	return bars, nil
}
