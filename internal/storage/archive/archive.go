// internal/storage/archive/archive.go
package archive

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/newthinker/trendweek/internal/backtest"
	"github.com/newthinker/trendweek/internal/report"
)

const (
	summaryFile = "summary.yaml"
	tradesFile  = "trades.csv"
)

// Archive lays out backtest results on a Storage:
//
//	runs/<TICKER>/<YYYY-MM-DD>/<run id>/summary.yaml
//	runs/<TICKER>/<YYYY-MM-DD>/<run id>/trades.csv
type Archive struct {
	store Storage
	now   func() time.Time
}

// New creates an archive over store
func New(store Storage) *Archive {
	return &Archive{store: store, now: time.Now}
}

// Put stores the summary and ledger of res under runID and returns the
// directory they were written to.
func (a *Archive) Put(ctx context.Context, runID string, res *backtest.Result) (string, error) {
	now := a.now().UTC()
	dir := path.Join("runs", safeSegment(res.Ticker), now.Format(time.DateOnly), runID)

	summary := report.NewSummary(res)
	summary.RunID = runID
	summary.ArchivedAt = now
	var buf bytes.Buffer
	if err := report.WriteYAML(&buf, summary); err != nil {
		return "", err
	}
	if err := a.store.Write(ctx, path.Join(dir, summaryFile), buf.Bytes()); err != nil {
		return "", fmt.Errorf("writing summary: %w", err)
	}

	buf.Reset()
	if err := report.WriteCSV(&buf, res.Trades); err != nil {
		return "", err
	}
	if err := a.store.Write(ctx, path.Join(dir, tradesFile), buf.Bytes()); err != nil {
		return "", fmt.Errorf("writing trades: %w", err)
	}
	return dir, nil
}

// Summaries returns the archived summaries for ticker, oldest first by
// archive time.
func (a *Archive) Summaries(ctx context.Context, ticker string) ([]report.Summary, error) {
	paths, err := a.store.List(ctx, path.Join("runs", safeSegment(ticker)))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	var out []report.Summary
	for _, p := range paths {
		if path.Base(p) != summaryFile {
			continue
		}
		data, err := a.store.Read(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", p, err)
		}
		s, err := report.ReadYAML(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", p, err)
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ArchivedAt.Before(out[j].ArchivedAt)
	})
	return out, nil
}

// safeSegment maps a ticker to a single path segment: ^GSPC -> GSPC
func safeSegment(s string) string {
	s = strings.ToUpper(strings.TrimPrefix(s, "^"))
	return strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(s)
}
