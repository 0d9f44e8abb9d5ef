package csvfile

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/trendweek/internal/collector"
	"github.com/newthinker/trendweek/internal/core"
)

const sample = `Date,Open,High,Low,Close,Adj Close,Volume
2024-01-02,10,10.5,9.5,10,9.8,1000
2024-01-03,11,11.5,10.5,11,10.8,
2024-01-04 00:00:00-05:00,12,12.5,11.5,12,11.8,3000
`

func TestProvider_ImplementsProvider(t *testing.T) {
	var _ collector.Provider = (*Provider)(nil)
}

func TestRead(t *testing.T) {
	bars, err := Read(strings.NewReader(sample))
	require.NoError(t, err)
	require.Len(t, bars, 3)

	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), bars[0].Date)
	assert.Equal(t, 10.0, bars[0].Close, "close column, not adjusted close")
	assert.Equal(t, int64(1000), bars[0].Volume)
	assert.True(t, bars[1].VolumeMissing)
	assert.Equal(t, time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC), bars[2].Date)
}

func TestRead_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"missing close", "Date,Open,High,Low\n2024-01-02,1,1,1\n"},
		{"bad date", "Date,Open,High,Low,Close\n02/01/2024,1,1,1,1\n"},
		{"bad price", "Date,Open,High,Low,Close\n2024-01-02,x,1,1,1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(strings.NewReader(tt.in))
			assert.Error(t, err)
		})
	}
}

func TestWriteRead_PreservesMissingVolume(t *testing.T) {
	in := []core.Bar{
		{Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10},
		{Date: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), Open: 1.5, High: 2, Low: 1, Close: 1.75, VolumeMissing: true},
	}
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, in))

	out, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestProvider_FetchHistory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "GSPC.csv"), []byte(sample), 0o644))
	p := New(dir)

	bars, err := p.FetchHistory(context.Background(), "^GSPC",
		time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, 11.0, bars[0].Open)

	_, err = p.FetchHistory(context.Background(), "NOPE", time.Time{}, time.Now())
	assert.True(t, errors.Is(err, core.ErrSymbolNotFound), "got %v", err)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "GSPC.csv", fileName("^GSPC"))
	assert.Equal(t, "FN.csv", fileName("FN"))
	assert.Equal(t, "__etc_passwd.csv", fileName("../etc/passwd"))
}
