// Package csvfile serves price history from local CSV files, one file per
// symbol named <symbol>.csv, in the column layout Yahoo exports.
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/newthinker/trendweek/internal/core"
)

var required = []string{"date", "open", "high", "low", "close"}

// Provider reads <dir>/<symbol>.csv
type Provider struct {
	dir string
}

// New creates a provider rooted at dir
func New(dir string) *Provider {
	return &Provider{dir: dir}
}

func (p *Provider) Name() string {
	return "csv"
}

// Path returns the file backing symbol
func (p *Provider) Path(symbol string) string {
	return filepath.Join(p.dir, fileName(symbol))
}

// FetchHistory returns the bars of the symbol's file within [start, end].
func (p *Provider) FetchHistory(ctx context.Context, symbol string, start, end time.Time) ([]core.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(p.Path(symbol))
	if errors.Is(err, os.ErrNotExist) {
		return nil, core.WrapError(core.ErrSymbolNotFound, fmt.Errorf("no csv file for %s in %s", symbol, p.dir))
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	bars, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", f.Name(), err)
	}

	lo, hi := core.Day(start), core.Day(end)
	out := bars[:0]
	for _, b := range bars {
		if b.Date.Before(lo) || b.Date.After(hi) {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

// Read parses bars from r. The header row selects the columns by name,
// case-insensitively; a volume column is optional and empty cells mark the
// bar's volume as missing.
func Read(r io.Reader) ([]core.Bar, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}
	volCol, hasVol := cols["volume"]

	var bars []core.Bar
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		date, err := parseDate(rec[cols["date"]])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		var prices [4]float64
		for i, name := range required[1:] {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[cols[name]]), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: %s: %w", line, name, err)
			}
			prices[i] = v
		}
		bar := core.Bar{Date: date, Open: prices[0], High: prices[1], Low: prices[2], Close: prices[3], VolumeMissing: true}
		if hasVol {
			if s := strings.TrimSpace(rec[volCol]); s != "" {
				v, err := strconv.ParseFloat(s, 64)
				if err != nil {
					return nil, fmt.Errorf("line %d: volume: %w", line, err)
				}
				bar.Volume = int64(v)
				bar.VolumeMissing = false
			}
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

// Write stores bars in the layout Read accepts
func Write(w io.Writer, bars []core.Bar) error {
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"Date", "Open", "High", "Low", "Close", "Volume"})
	for _, b := range bars {
		vol := ""
		if !b.VolumeMissing {
			vol = strconv.FormatInt(b.Volume, 10)
		}
		_ = cw.Write([]string{
			b.Date.Format(time.DateOnly),
			formatF(b.Open), formatF(b.High), formatF(b.Low), formatF(b.Close),
			vol,
		})
	}
	cw.Flush()
	return cw.Error()
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) > len(time.DateOnly) {
		s = s[:len(time.DateOnly)]
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return t, nil
}

// fileName maps a symbol to a safe file name: ^GSPC -> GSPC.csv
func fileName(symbol string) string {
	s := strings.TrimPrefix(symbol, "^")
	s = strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(s)
	return s + ".csv"
}

func formatF(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
