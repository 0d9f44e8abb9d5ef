package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/newthinker/trendweek/internal/core"
	"github.com/newthinker/trendweek/internal/risk"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return cfgPath
}

func TestLoad_FromFile(t *testing.T) {
	cfgPath := writeConfig(t, `
backtest:
  ticker: AAPL
  start_year: 2021
  end_date: 2024-12-31

entry:
  volume_change: h4h3
  require_bull: true

exits:
  bear:
    stop_loss: 0.05

storage:
  archive:
    enabled: true
    type: s3
    s3:
      bucket: results
`)

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Backtest.Ticker != "AAPL" {
		t.Errorf("expected ticker AAPL, got %s", cfg.Backtest.Ticker)
	}
	if cfg.Backtest.EndDate != "2024-12-31" {
		t.Errorf("expected end date 2024-12-31, got %s", cfg.Backtest.EndDate)
	}
	if cfg.Storage.Archive.S3.Bucket != "results" {
		t.Errorf("expected bucket results, got %s", cfg.Storage.Archive.S3.Bucket)
	}

	// Keys absent from the file keep their defaults
	if cfg.Backtest.Benchmark != "^GSPC" {
		t.Errorf("expected default benchmark, got %s", cfg.Backtest.Benchmark)
	}
	if cfg.Exits.Bear.ProfitTarget != 0.05 || cfg.Exits.Bear.StopLoss != 0.05 {
		t.Errorf("unexpected bear exits %+v", cfg.Exits.Bear)
	}
	if cfg.Data.Yahoo.Timeout != 10*time.Second {
		t.Errorf("expected default timeout, got %s", cfg.Data.Yahoo.Timeout)
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	p, err := cfg.Params()
	if err != nil {
		t.Fatalf("Params() error = %v", err)
	}
	if p.Entry.VolumeWindow != risk.H4H3 || !p.Entry.RequireBull {
		t.Errorf("unexpected entry rules %+v", p.Entry)
	}
	if !p.EndDate.Equal(time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected end date %s", p.EndDate)
	}
}

func TestLoad_EndDateForms(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unquoted", "backtest:\n  end_date: 2025-06-25\n"},
		{"quoted", "backtest:\n  end_date: \"2025-06-25\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, tt.yaml))
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if cfg.Backtest.EndDate != "2025-06-25" {
				t.Errorf("expected end date 2025-06-25, got %q", cfg.Backtest.EndDate)
			}
		})
	}
}

func TestLoad_YahooAdjusted(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.Data.Yahoo.Adjusted {
		t.Error("expected adjusted prices by default")
	}

	cfg, err = Load(writeConfig(t, `
data:
  yahoo:
    adjusted: false
    timeout: 3s
`))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Data.Yahoo.Adjusted {
		t.Error("expected adjusted: false to be honored")
	}
	if cfg.Data.Yahoo.Timeout != 3*time.Second {
		t.Errorf("expected 3s timeout, got %s", cfg.Data.Yahoo.Timeout)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TRENDWEEK_BACKTEST_TICKER", "MSFT")
	t.Setenv("TEST_S3_SECRET", "s3cr3t")
	cfgPath := writeConfig(t, `
storage:
  archive:
    s3:
      secret_key: "${TEST_S3_SECRET}"
`)

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Backtest.Ticker != "MSFT" {
		t.Errorf("expected env ticker MSFT, got %s", cfg.Backtest.Ticker)
	}
	if cfg.Storage.Archive.S3.SecretKey != "s3cr3t" {
		t.Errorf("expected expanded secret, got %q", cfg.Storage.Archive.S3.SecretKey)
	}
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Backtest.Ticker != "FN" || cfg.Backtest.StartYear != 2020 {
		t.Errorf("expected defaults, got %+v", cfg.Backtest)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if !errors.Is(err, core.ErrConfigInvalid) {
		t.Errorf("expected ErrConfigInvalid, got %v", err)
	}
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}

	p, err := cfg.Params()
	if err != nil {
		t.Fatalf("Params() error = %v", err)
	}
	if p.Costs.SlippageRate != 0.001 || p.Costs.CommissionRate != 0.0025 {
		t.Errorf("unexpected costs %+v", p.Costs)
	}
	if p.Exits.Bull.ProfitTarget != 0.40 || p.Exits.Bull.StopLoss != 0.10 {
		t.Errorf("unexpected bull exits %+v", p.Exits.Bull)
	}
	if p.Entry.VolumeWindow != risk.H3H2 {
		t.Errorf("expected h3h2, got %s", p.Entry.VolumeWindow)
	}
	if p.Period() != "2020-2025-06-25" {
		t.Errorf("unexpected period %s", p.Period())
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr error
	}{
		{"valid config", func(c *Config) {}, nil},
		{"unknown provider", func(c *Config) { c.Data.Provider = "bloomberg" }, core.ErrConfigInvalid},
		{"csv without dir", func(c *Config) { c.Data.Provider = "csv" }, core.ErrConfigMissing},
		{"cache without dir", func(c *Config) { c.Data.Cache = CacheConfig{Enabled: true} }, core.ErrConfigMissing},
		{"history without path", func(c *Config) { c.Storage.History = HistoryConfig{Enabled: true} }, core.ErrConfigMissing},
		{"s3 archive without bucket", func(c *Config) {
			c.Storage.Archive = ArchiveConfig{Enabled: true, Type: "s3"}
		}, core.ErrConfigMissing},
		{"unknown archive", func(c *Config) { c.Storage.Archive = ArchiveConfig{Enabled: true, Type: "ftp"} }, core.ErrConfigInvalid},
		{"bad end date", func(c *Config) { c.Backtest.EndDate = "06/25/2025" }, core.ErrConfigInvalid},
		{"bad volume window", func(c *Config) { c.Entry.VolumeChange = "h5h4" }, core.ErrConfigInvalid},
		{"missing ticker", func(c *Config) { c.Backtest.Ticker = "" }, core.ErrConfigMissing},
		{"negative commission", func(c *Config) { c.Costs.Commission = -0.1 }, core.ErrConfigInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
