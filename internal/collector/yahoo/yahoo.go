package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/trendweek/internal/collector"
	"github.com/newthinker/trendweek/internal/core"
)

const (
	defaultBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"
	userAgent      = "Mozilla/5.0 (compatible; trendweek/1.0)"
)

// validSymbol matches symbols like FN, AAPL, ^GSPC, BRK-B, 0700.HK, EURUSD=X
var validSymbol = regexp.MustCompile(`^\^?[A-Za-z0-9=\-]{1,12}(\.[A-Za-z]{1,4})?$`)

// validateSymbol checks if a symbol has valid format
func validateSymbol(symbol string) error {
	if symbol == "" {
		return fmt.Errorf("symbol cannot be empty")
	}
	if len(symbol) > 20 {
		return fmt.Errorf("symbol too long: %s", symbol)
	}
	if !validSymbol.MatchString(symbol) {
		return fmt.Errorf("invalid symbol format: %s", symbol)
	}
	return nil
}

// Yahoo fetches daily history from the Yahoo Finance chart API
type Yahoo struct {
	client   *http.Client
	baseURL  string
	adjusted bool
	logger   *zap.Logger
}

// Option configures a Yahoo provider
type Option func(*Yahoo)

// WithBaseURL points the provider at another chart endpoint
func WithBaseURL(u string) Option {
	return func(y *Yahoo) { y.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the default client
func WithHTTPClient(c *http.Client) Option {
	return func(y *Yahoo) { y.client = c }
}

// WithAdjusted controls whether prices are scaled by the adjusted close.
// Enabled by default.
func WithAdjusted(adjusted bool) Option {
	return func(y *Yahoo) { y.adjusted = adjusted }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(y *Yahoo) { y.logger = l }
}

// New creates a new Yahoo provider
func New(opts ...Option) *Yahoo {
	y := &Yahoo{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL:  defaultBaseURL,
		adjusted: true,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(y)
	}
	return y
}

// NewFromConfig creates a provider from collector configuration
func NewFromConfig(cfg collector.Config, logger *zap.Logger) *Yahoo {
	opts := []Option{WithLogger(logger)}
	if cfg.BaseURL != "" {
		opts = append(opts, WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))
	}
	if cfg.RawPrices {
		opts = append(opts, WithAdjusted(false))
	}
	return New(opts...)
}

func (y *Yahoo) Name() string {
	return "yahoo"
}

// FetchHistory fetches daily bars for [start, end]. Bars without an open or
// close are dropped; bars without a volume are kept and flagged.
func (y *Yahoo) FetchHistory(ctx context.Context, symbol string, start, end time.Time) ([]core.Bar, error) {
	if err := validateSymbol(symbol); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("interval", "1d")
	q.Set("period1", fmt.Sprint(core.Day(start).Unix()))
	// period2 is exclusive
	q.Set("period2", fmt.Sprint(core.Day(end).AddDate(0, 0, 1).Unix()))
	q.Set("events", "div,splits")
	reqURL := fmt.Sprintf("%s/%s?%s", y.baseURL, url.PathEscape(symbol), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := y.client.Do(req)
	if err != nil {
		var ne net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
			return nil, core.WrapError(core.ErrCollectorTimeout, fmt.Errorf("fetching %s: %w", symbol, err))
		}
		return nil, fmt.Errorf("fetching history: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, core.WrapError(core.ErrSymbolNotFound, fmt.Errorf("symbol %s", symbol))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var result chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	if result.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo error: %s", result.Chart.Error.Description)
	}

	if len(result.Chart.Result) == 0 {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("no data for symbol: %s", symbol))
	}

	r := result.Chart.Result[0]
	if len(r.Indicators.Quote) == 0 {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("no quotes for symbol: %s", symbol))
	}
	loc := r.Meta.location()
	quotes := r.Indicators.Quote[0]
	var adjclose []*float64
	if y.adjusted && len(r.Indicators.AdjClose) > 0 {
		adjclose = r.Indicators.AdjClose[0].AdjClose
	}

	data := make([]core.Bar, 0, len(r.Timestamp))
	var dropped int
	for i, ts := range r.Timestamp {
		open, high, low, cls := at(quotes.Open, i), at(quotes.High, i), at(quotes.Low, i), at(quotes.Close, i)
		if open == nil || cls == nil {
			dropped++
			continue
		}
		bar := core.Bar{
			Date:  core.Day(time.Unix(ts, 0).In(loc)),
			Open:  *open,
			High:  orDefault(high, *open),
			Low:   orDefault(low, *open),
			Close: *cls,
		}
		if v := at(quotes.Volume, i); v != nil {
			bar.Volume = int64(*v)
		} else {
			bar.VolumeMissing = true
		}
		if adj := at(adjclose, i); adj != nil && *cls != 0 {
			f := *adj / *cls
			bar.Open *= f
			bar.High *= f
			bar.Low *= f
			bar.Close = *adj
		}
		data = append(data, bar)
	}

	if dropped > 0 {
		y.logger.Debug("dropped incomplete bars", zap.String("symbol", symbol), zap.Int("count", dropped))
	}
	return data, nil
}

func at[T any](s []*T, i int) *T {
	if i < len(s) {
		return s[i]
	}
	return nil
}

func orDefault(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

// Yahoo API response types
type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta       chartMeta  `json:"meta"`
	Timestamp  []int64    `json:"timestamp"`
	Indicators indicators `json:"indicators"`
}

type chartMeta struct {
	Symbol               string `json:"symbol"`
	ExchangeTimezoneName string `json:"exchangeTimezoneName"`
	GMTOffset            int    `json:"gmtoffset"`
}

// location is the exchange time zone that bar timestamps are dated in
func (m chartMeta) location() *time.Location {
	if m.ExchangeTimezoneName != "" {
		if loc, err := time.LoadLocation(m.ExchangeTimezoneName); err == nil {
			return loc
		}
	}
	return time.FixedZone("exchange", m.GMTOffset)
}

type indicators struct {
	Quote    []quoteIndicator `json:"quote"`
	AdjClose []struct {
		AdjClose []*float64 `json:"adjclose"`
	} `json:"adjclose"`
}

type quoteIndicator struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*float64 `json:"volume"`
}
