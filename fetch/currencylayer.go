package fetch

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/dnldd/marketdata/normalize"
	"github.com/dnldd/marketdata/ratelimit"
	"github.com/dnldd/marketdata/shared"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

const (
	// currencyLayerName is the provider name for the currency layer client.
	currencyLayerName = "currencylayer"
	// currencyLayerBaseURL is the production currency layer api.
	currencyLayerBaseURL = "https://api.currencylayer.com"
	// currencyLayerBudget is the requests-per-minute ceiling for currency
	// layer.
	currencyLayerBudget = 10
	// currencyLayerTimeout is the per-request timeout for currency layer.
	currencyLayerTimeout = time.Second * 30

	// currencyLayerMaxDays caps the range served per fetch, since each day
	// costs one api call.
	currencyLayerMaxDays = 30
	// currencyLayerBandFactor is the synthetic high/low band applied around
	// daily close rates.
	currencyLayerBandFactor = 0.001
)

// CurrencyLayerConfig represents the configuration for the currency layer
// client.
type CurrencyLayerConfig struct {
	// APIKeys are the currency layer api keys, rotated per request to spread
	// quota usage. At least one key is required.
	APIKeys []string
	// BaseURL is the currency layer api base url.
	BaseURL string
	// Limiter is the shared provider rate limiter.
	Limiter *ratelimit.Limiter
	// MaxRetries is the maximum number of fetch retries.
	MaxRetries int
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// CurrencyLayerClient fetches daily forex close rates from the currency
// layer api and synthesizes candles from them. The api quotes every currency
// against USD, non-USD pairs are derived as cross rates.
type CurrencyLayerClient struct {
	cfg     *CurrencyLayerConfig
	httpc   *client
	baseURL string
	calls   atomic.Uint64
}

// Ensure the CurrencyLayerClient implements the SourceAdapter interface.
var _ shared.SourceAdapter = (*CurrencyLayerClient)(nil)

// NewCurrencyLayerClient initializes a new currency layer client.
func NewCurrencyLayerClient(cfg *CurrencyLayerConfig) *CurrencyLayerClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = currencyLayerBaseURL
	}

	cfg.Limiter.SetBudget(currencyLayerName, currencyLayerBudget)

	return &CurrencyLayerClient{
		cfg:     cfg,
		httpc:   newClient(currencyLayerName, currencyLayerTimeout, cfg.Limiter, cfg.MaxRetries, cfg.Logger),
		baseURL: baseURL,
	}
}

// Name returns the provider name.
func (c *CurrencyLayerClient) Name() string {
	return currencyLayerName
}

// Resolution returns the granularity served for the requested timeframe. The
// historical endpoint only serves daily close rates.
func (c *CurrencyLayerClient) Resolution(timeframe shared.Timeframe) shared.Timeframe {
	return shared.OneDay
}

// apiKey returns the key for the next request, rotating the configured keys
// on a request counter so sequential calls alternate quotas.
func (c *CurrencyLayerClient) apiKey() string {
	if len(c.cfg.APIKeys) == 0 {
		return ""
	}

	return c.cfg.APIKeys[int(c.calls.Add(1))%len(c.cfg.APIKeys)]
}

// crossRate derives the base/quote rate from the provided USD quotes.
func crossRate(quotes gjson.Result, base string, quote string) (float64, error) {
	if base == "USD" {
		rate := quotes.Get("USD" + quote)
		if !rate.Exists() {
			return 0, fmt.Errorf("missing USD quote for %s", quote)
		}

		return rate.Float(), nil
	}

	baseRate := quotes.Get("USD" + base)
	if !baseRate.Exists() || baseRate.Float() == 0 {
		return 0, fmt.Errorf("missing USD quote for %s", base)
	}

	if quote == "USD" {
		return 1 / baseRate.Float(), nil
	}

	quoteRate := quotes.Get("USD" + quote)
	if !quoteRate.Exists() {
		return 0, fmt.Errorf("missing USD quote for %s", quote)
	}

	return quoteRate.Float() / baseRate.Float(), nil
}

// fetchDayRate fetches the close rate of the provided pair for a single day.
func (c *CurrencyLayerClient) fetchDayRate(ctx context.Context, base string, quote string, day time.Time) (float64, error) {
	const historicalPath = "/historical"

	params := url.Values{}
	params.Add("access_key", c.apiKey())
	params.Add("date", day.Format(shared.DateLayout))
	params.Add("currencies", base+","+quote)

	body, err := c.httpc.getJSON(ctx, c.httpc.formURL(c.baseURL, historicalPath, params.Encode()))
	if err != nil {
		return 0, err
	}

	payload := gjson.ParseBytes(body)
	if !payload.Get("success").Bool() {
		return 0, fmt.Errorf("currency layer rejected the request: %s",
			payload.Get("error.info").String())
	}

	return crossRate(payload.Get("quotes"), base, quote)
}

// weekend asserts whether the provided day falls on a saturday or sunday,
// when forex markets are closed.
func weekend(day time.Time) bool {
	return day.Weekday() == time.Saturday || day.Weekday() == time.Sunday
}

// Fetch returns synthesized daily candles for the provided forex pair and
// range. Each candle opens at the previous day's close with a thin band
// around the body, since the api only serves point close rates.
func (c *CurrencyLayerClient) Fetch(ctx context.Context, symbol string, start time.Time, end time.Time, timeframe shared.Timeframe) ([]shared.Candle, error) {
	base, quote, err := normalize.SplitForexPair(symbol)
	if err != nil {
		return nil, fmt.Errorf("fetching currency layer data: %w", err)
	}

	// Cap the range, each requested day costs an api call.
	floor := end.AddDate(0, 0, -(currencyLayerMaxDays - 1))
	if start.Before(floor) {
		start = floor
	}

	startDay := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	endDay := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)

	candles := make([]shared.Candle, 0, currencyLayerMaxDays)
	prevClose := math.NaN()

	for day := startDay; !day.After(endDay); day = day.AddDate(0, 0, 1) {
		if weekend(day) {
			continue
		}

		rate, err := c.fetchDayRate(ctx, base, quote, day)
		if err != nil {
			return nil, fmt.Errorf("fetching currency layer rate for %s on %s: %w",
				symbol, day.Format(shared.DateLayout), err)
		}

		open := prevClose
		if math.IsNaN(open) {
			open = rate
		}

		candles = append(candles, shared.Candle{
			Timestamp: day,
			Open:      open,
			High:      math.Max(open, rate) * (1 + currencyLayerBandFactor),
			Low:       math.Min(open, rate) * (1 - currencyLayerBandFactor),
			Close:     rate,
			Volume:    0,
		})

		prevClose = rate
	}

	return candles, nil
}
