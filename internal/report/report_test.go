package report

import (
	"bytes"
	"encoding/csv"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/trendweek/internal/backtest"
	"github.com/newthinker/trendweek/internal/regime"
)

func sampleResult() *backtest.Result {
	trades := []backtest.TradeRecord{
		{
			Date: time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC), Action: backtest.ActionOpen,
			RawPrice: 100, AdjustedPrice: 100.1, Commission: 250, Balance: 99750, Regime: regime.Bull,
		},
		{
			Date: time.Date(2024, 2, 5, 0, 0, 0, 0, time.UTC), Action: backtest.ActionClose, Reason: backtest.ReasonStopLoss,
			RawPrice: 90, AdjustedPrice: 89.91, Commission: 224.62, Balance: 89624.5, Regime: regime.Bear,
			GrossPL: -10050.5, PLPercent: -0.1008,
		},
	}
	return &backtest.Result{
		Ticker:         "FN",
		Benchmark:      "^GSPC",
		Period:         "2020-2025-06-25",
		InitialBalance: 100000,
		FinalBalance:   89624.5,
		TotalPLPercent: -0.103755,
		TradeCount:     2,
		Trades:         trades,
		Stats:          backtest.Stats{ClosedTrades: 1, LosingTrades: 1, MaxDrawdown: 10.3755, TotalCommission: 474.62},
		WeeksAnalyzed:  280,
		WeeksSkipped:   2,
	}
}

func TestMoney(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0.00"},
		{999.999, "1,000.00"},
		{100000, "100,000.00"},
		{1234567.891, "1,234,567.89"},
		{-1234.5, "-1,234.50"},
		{12.3, "12.30"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Money(tt.in), "Money(%v)", tt.in)
	}
}

func TestPercent(t *testing.T) {
	assert.Equal(t, "12.34%", Percent(0.1234))
	assert.Equal(t, "-5.00%", Percent(-0.05))
	assert.Equal(t, "0.00%", Percent(0))
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, sampleResult()))
	out := buf.String()

	for _, want := range []string{
		"Ticker:", "FN",
		"2020-2025-06-25",
		"100,000.00 $",
		"89,624.50 $",
		"-10.38%",
		"Total trades:",
		"Win rate:",
		"0.00% (0/1)",
		"close (stop loss)",
		"2024-02-05",
		"100.1000",
	} {
		assert.Contains(t, out, want)
	}
}

func TestWriteTrades_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTrades(&buf, nil))
	assert.Equal(t, "No trades.\n", buf.String())
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleResult().Trades))

	rows, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "date", rows[0][0])
	assert.Equal(t, []string{"2024-01-08", "open", "", "Bull", "100", "100.1", "250", "99750", "0", "0"}, rows[1])
	assert.Equal(t, "stop loss", rows[2][2])
	assert.Equal(t, "-0.1008", rows[2][9])
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) { return 0, errors.New("disk full") }

func TestWriteCSV_WriteError(t *testing.T) {
	trades := make([]backtest.TradeRecord, 200)
	for i := range trades {
		trades[i] = backtest.TradeRecord{Date: time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC), Action: backtest.ActionOpen, Balance: 100000}
	}
	err := WriteCSV(failingWriter{}, trades)
	assert.ErrorContains(t, err, "disk full")
}

func TestYAMLSummary(t *testing.T) {
	s := NewSummary(sampleResult())
	s.RunID = "abc"

	var buf bytes.Buffer
	require.NoError(t, WriteYAML(&buf, s))
	assert.Contains(t, buf.String(), "test_period:")
	assert.Contains(t, buf.String(), "total_trades: 2")

	got, err := ReadYAML(&buf)
	require.NoError(t, err)
	assert.Equal(t, s, got)
}
