package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/newthinker/trendweek/internal/backtest"
	"github.com/newthinker/trendweek/internal/core"
	"github.com/newthinker/trendweek/internal/regime"
	"github.com/newthinker/trendweek/internal/risk"
)

type Config struct {
	Backtest BacktestConfig `mapstructure:"backtest"`
	Costs    CostsConfig    `mapstructure:"costs"`
	Trend    TrendConfig    `mapstructure:"trend"`
	Entry    EntryConfig    `mapstructure:"entry"`
	Exits    ExitsConfig    `mapstructure:"exits"`
	Data     DataConfig     `mapstructure:"data"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Log      LogConfig      `mapstructure:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type BacktestConfig struct {
	Ticker         string  `mapstructure:"ticker"`
	Benchmark      string  `mapstructure:"benchmark"`
	StartYear      int     `mapstructure:"start_year"`
	EndDate        string  `mapstructure:"end_date"` // YYYY-MM-DD
	LookbackYears  int     `mapstructure:"lookback_years"`
	InitialCapital float64 `mapstructure:"initial_capital"`
}

type CostsConfig struct {
	Slippage   float64 `mapstructure:"slippage"`
	Commission float64 `mapstructure:"commission"`
}

// TrendConfig holds the first two periods of the cascaded trend line
type TrendConfig struct {
	Fast int `mapstructure:"fast"`
	Slow int `mapstructure:"slow"`
}

type EntryConfig struct {
	MaxVolatilityRatio float64 `mapstructure:"max_volatility_ratio"`
	MinMomentum1W      float64 `mapstructure:"min_momentum_1w"`
	MinVolumeChange    float64 `mapstructure:"min_volume_change"`
	VolumeChange       string  `mapstructure:"volume_change"` // h2h1, h3h2 or h4h3
	RequireBull        bool    `mapstructure:"require_bull"`
}

type ExitsConfig struct {
	Bull TargetsConfig `mapstructure:"bull"`
	Bear TargetsConfig `mapstructure:"bear"`
}

type TargetsConfig struct {
	ProfitTarget float64 `mapstructure:"profit_target"`
	StopLoss     float64 `mapstructure:"stop_loss"`
}

// DataConfig selects where price history comes from.
type DataConfig struct {
	Provider string      `mapstructure:"provider"` // "yahoo" or "csv"
	CSVDir   string      `mapstructure:"csv_dir"`
	Yahoo    YahooConfig `mapstructure:"yahoo"`
	Cache    CacheConfig `mapstructure:"cache"`
}

type YahooConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Adjusted bool          `mapstructure:"adjusted"` // false keeps raw quotes
}

type CacheConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
}

type StorageConfig struct {
	History HistoryConfig `mapstructure:"history"`
	Archive ArchiveConfig `mapstructure:"archive"`
}

type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type ArchiveConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Type    string   `mapstructure:"type"` // "local" or "s3"
	Path    string   `mapstructure:"path"` // For local
	S3      S3Config `mapstructure:"s3"`   // For S3
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// Load reads configuration from file over the defaults. An empty path
// loads the defaults with environment overrides only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Defaults())

	// Support environment variable overrides, e.g. TRENDWEEK_BACKTEST_TICKER
	v.SetEnvPrefix("trendweek")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("reading config: %w", err))
		}
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHook())); err != nil {
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unmarshaling config: %w", err))
	}

	return &cfg, nil
}

// decodeHook keeps viper's default hooks and renders YAML timestamps such
// as an unquoted end_date back into YYYY-MM-DD strings.
func decodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		timeToDateHook(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

func timeToDateHook() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to.Kind() != reflect.String {
			return data, nil
		}
		if t, ok := data.(time.Time); ok {
			return t.Format(time.DateOnly), nil
		}
		return data, nil
	}
}

// Defaults returns the configuration of the reference run
func Defaults() *Config {
	return &Config{
		Backtest: BacktestConfig{
			Ticker:         "FN",
			Benchmark:      "^GSPC",
			StartYear:      2020,
			EndDate:        "2025-06-25",
			LookbackYears:  5,
			InitialCapital: 100000,
		},
		Costs: CostsConfig{
			Slippage:   0.001,
			Commission: 0.0025,
		},
		Trend: TrendConfig{Fast: 3, Slow: 5},
		Entry: EntryConfig{
			MaxVolatilityRatio: 1.0,
			MinMomentum1W:      0,
			MinVolumeChange:    0,
			VolumeChange:       risk.H3H2.String(),
		},
		Exits: ExitsConfig{
			Bull: TargetsConfig{ProfitTarget: 0.40, StopLoss: 0.10},
			Bear: TargetsConfig{ProfitTarget: 0.05, StopLoss: 0.07},
		},
		Data: DataConfig{
			Provider: "yahoo",
			Yahoo:    YahooConfig{Timeout: 10 * time.Second, Adjusted: true},
			Cache:    CacheConfig{Dir: "data/cache"},
		},
		Storage: StorageConfig{
			History: HistoryConfig{Path: "data/history.db"},
			Archive: ArchiveConfig{Type: "local", Path: "data/archive"},
		},
		Log: LogConfig{Level: "info"},
	}
}

// setDefaults registers every key so that partial files and environment
// overrides resolve against the defaults.
func setDefaults(v *viper.Viper, d *Config) {
	defaults := map[string]any{
		"backtest.ticker":               d.Backtest.Ticker,
		"backtest.benchmark":            d.Backtest.Benchmark,
		"backtest.start_year":           d.Backtest.StartYear,
		"backtest.end_date":             d.Backtest.EndDate,
		"backtest.lookback_years":       d.Backtest.LookbackYears,
		"backtest.initial_capital":      d.Backtest.InitialCapital,
		"costs.slippage":                d.Costs.Slippage,
		"costs.commission":              d.Costs.Commission,
		"trend.fast":                    d.Trend.Fast,
		"trend.slow":                    d.Trend.Slow,
		"entry.max_volatility_ratio":    d.Entry.MaxVolatilityRatio,
		"entry.min_momentum_1w":         d.Entry.MinMomentum1W,
		"entry.min_volume_change":       d.Entry.MinVolumeChange,
		"entry.volume_change":           d.Entry.VolumeChange,
		"entry.require_bull":            d.Entry.RequireBull,
		"exits.bull.profit_target":      d.Exits.Bull.ProfitTarget,
		"exits.bull.stop_loss":          d.Exits.Bull.StopLoss,
		"exits.bear.profit_target":      d.Exits.Bear.ProfitTarget,
		"exits.bear.stop_loss":          d.Exits.Bear.StopLoss,
		"data.provider":                 d.Data.Provider,
		"data.csv_dir":                  d.Data.CSVDir,
		"data.yahoo.base_url":           d.Data.Yahoo.BaseURL,
		"data.yahoo.timeout":            d.Data.Yahoo.Timeout,
		"data.yahoo.adjusted":           d.Data.Yahoo.Adjusted,
		"data.cache.enabled":            d.Data.Cache.Enabled,
		"data.cache.dir":                d.Data.Cache.Dir,
		"storage.history.enabled":       d.Storage.History.Enabled,
		"storage.history.path":          d.Storage.History.Path,
		"storage.archive.enabled":       d.Storage.Archive.Enabled,
		"storage.archive.type":          d.Storage.Archive.Type,
		"storage.archive.path":          d.Storage.Archive.Path,
		"storage.archive.s3.bucket":     d.Storage.Archive.S3.Bucket,
		"storage.archive.s3.endpoint":   d.Storage.Archive.S3.Endpoint,
		"storage.archive.s3.region":     d.Storage.Archive.S3.Region,
		"storage.archive.s3.access_key": d.Storage.Archive.S3.AccessKey,
		"storage.archive.s3.secret_key": d.Storage.Archive.S3.SecretKey,
		"storage.archive.s3.prefix":     d.Storage.Archive.S3.Prefix,
		"log.level":                     d.Log.Level,
		"log.development":               d.Log.Development,
		"metrics.textfile":              d.Metrics.Textfile,
	}
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch c.Data.Provider {
	case "yahoo":
	case "csv":
		if c.Data.CSVDir == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("data.csv_dir required when provider is csv"))
		}
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown data provider %q", c.Data.Provider))
	}

	if c.Data.Cache.Enabled && c.Data.Cache.Dir == "" {
		return core.WrapError(core.ErrConfigMissing, fmt.Errorf("data.cache.dir required when the cache is enabled"))
	}
	if c.Storage.History.Enabled && c.Storage.History.Path == "" {
		return core.WrapError(core.ErrConfigMissing, fmt.Errorf("storage.history.path required when history is enabled"))
	}
	if c.Storage.Archive.Enabled {
		switch c.Storage.Archive.Type {
		case "local":
			if c.Storage.Archive.Path == "" {
				return core.WrapError(core.ErrConfigMissing, fmt.Errorf("storage.archive.path required for local archive"))
			}
		case "s3":
			if c.Storage.Archive.S3.Bucket == "" {
				return core.WrapError(core.ErrConfigMissing, fmt.Errorf("storage.archive.s3.bucket required for s3 archive"))
			}
		default:
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("unknown archive type %q", c.Storage.Archive.Type))
		}
	}

	p, err := c.Params()
	if err != nil {
		return err
	}
	return p.Validate()
}

// Params converts the run settings into engine parameters.
func (c *Config) Params() (backtest.Params, error) {
	end, err := time.Parse(time.DateOnly, c.Backtest.EndDate)
	if err != nil {
		return backtest.Params{}, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("backtest.end_date must be YYYY-MM-DD, got %q", c.Backtest.EndDate))
	}
	window, err := risk.ParseVolumeWindow(c.Entry.VolumeChange)
	if err != nil {
		return backtest.Params{}, core.WrapError(core.ErrConfigInvalid, err)
	}

	return backtest.Params{
		Ticker:         c.Backtest.Ticker,
		Benchmark:      c.Backtest.Benchmark,
		StartYear:      c.Backtest.StartYear,
		EndDate:        end,
		LookbackYears:  c.Backtest.LookbackYears,
		InitialCapital: c.Backtest.InitialCapital,
		Costs: backtest.Costs{
			SlippageRate:   c.Costs.Slippage,
			CommissionRate: c.Costs.Commission,
		},
		Entry: backtest.EntryRules{
			MaxVolatilityRatio: c.Entry.MaxVolatilityRatio,
			MinMomentum1W:      c.Entry.MinMomentum1W,
			MinVolumeChange:    c.Entry.MinVolumeChange,
			VolumeWindow:       window,
			RequireBull:        c.Entry.RequireBull,
		},
		Exits: regime.Exits{
			Bull: regime.Targets{ProfitTarget: c.Exits.Bull.ProfitTarget, StopLoss: c.Exits.Bull.StopLoss},
			Bear: regime.Targets{ProfitTarget: c.Exits.Bear.ProfitTarget, StopLoss: c.Exits.Bear.StopLoss},
		},
		TrendFast: c.Trend.Fast,
		TrendSlow: c.Trend.Slow,
	}, nil
}
