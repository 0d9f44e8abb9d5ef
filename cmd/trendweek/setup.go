package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/newthinker/trendweek/internal/collector"
	"github.com/newthinker/trendweek/internal/collector/csvfile"
	"github.com/newthinker/trendweek/internal/collector/yahoo"
	"github.com/newthinker/trendweek/internal/config"
	"github.com/newthinker/trendweek/internal/logger"
	"github.com/newthinker/trendweek/internal/metrics"
	"github.com/newthinker/trendweek/internal/storage/archive"
	"github.com/newthinker/trendweek/internal/storage/barcache"
)

// loadConfig reads --config over the defaults. It does not validate, so
// callers can apply flag overrides first.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level := cfg.Log.Level
	if debug {
		level = "debug"
	}
	return logger.New(debug || cfg.Log.Development, level)
}

// newProvider builds the configured price provider: the named source,
// instrumented, behind the bar cache when enabled.
func newProvider(cfg *config.Config, log *zap.Logger, reg *metrics.Registry) (collector.Provider, error) {
	sources := collector.NewRegistry()
	sources.Register(yahoo.NewFromConfig(collector.Config{
		BaseURL:   cfg.Data.Yahoo.BaseURL,
		Timeout:   cfg.Data.Yahoo.Timeout,
		RawPrices: !cfg.Data.Yahoo.Adjusted,
	}, log))
	if cfg.Data.CSVDir != "" {
		sources.Register(csvfile.New(cfg.Data.CSVDir))
	}

	source, ok := sources.Get(cfg.Data.Provider)
	if !ok {
		return nil, fmt.Errorf("data provider %q is not available (have %v)", cfg.Data.Provider, sources.Names())
	}

	var p collector.Provider = collector.Instrument(source, reg, log)
	if cfg.Data.Cache.Enabled {
		p = barcache.New(cfg.Data.Cache.Dir, p, barcache.WithMetrics(reg), barcache.WithLogger(log))
	}
	return p, nil
}

func newArchive(cfg *config.Config) (*archive.Archive, error) {
	a := cfg.Storage.Archive
	store, err := archive.NewStorage(archive.Config{
		Backend: a.Type,
		Path:    a.Path,
		S3: archive.S3Config{
			Bucket:    a.S3.Bucket,
			Endpoint:  a.S3.Endpoint,
			Region:    a.S3.Region,
			AccessKey: a.S3.AccessKey,
			SecretKey: a.S3.SecretKey,
			Prefix:    a.S3.Prefix,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("creating archive: %w", err)
	}
	return archive.New(store), nil
}
