package fetch

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/dnldd/marketdata/normalize"
	"github.com/dnldd/marketdata/ratelimit"
	"github.com/dnldd/marketdata/shared"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

const (
	// alphaVantageName is the provider name for the alpha vantage client.
	alphaVantageName = "alphavantage"
	// alphaVantageBaseURL is the production alpha vantage api.
	alphaVantageBaseURL = "https://www.alphavantage.co"
	// alphaVantageBudget is the requests-per-minute ceiling for alpha vantage.
	alphaVantageBudget = 5
	// alphaVantageTimeout is the per-request timeout for alpha vantage.
	alphaVantageTimeout = time.Second * 30
)

// AlphaVantageConfig represents the configuration for the alpha vantage
// client.
type AlphaVantageConfig struct {
	// APIKey is the alpha vantage api key.
	APIKey string
	// BaseURL is the alpha vantage api base url.
	BaseURL string
	// Limiter is the shared provider rate limiter.
	Limiter *ratelimit.Limiter
	// MaxRetries is the maximum number of fetch retries.
	MaxRetries int
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// AlphaVantageClient fetches daily forex candles from the alpha vantage api.
type AlphaVantageClient struct {
	cfg     *AlphaVantageConfig
	httpc   *client
	baseURL string
}

// Ensure the AlphaVantageClient implements the SourceAdapter interface.
var _ shared.SourceAdapter = (*AlphaVantageClient)(nil)

// NewAlphaVantageClient initializes a new alpha vantage client.
func NewAlphaVantageClient(cfg *AlphaVantageConfig) *AlphaVantageClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = alphaVantageBaseURL
	}

	cfg.Limiter.SetBudget(alphaVantageName, alphaVantageBudget)

	return &AlphaVantageClient{
		cfg:     cfg,
		httpc:   newClient(alphaVantageName, alphaVantageTimeout, cfg.Limiter, cfg.MaxRetries, cfg.Logger),
		baseURL: baseURL,
	}
}

// Name returns the provider name.
func (c *AlphaVantageClient) Name() string {
	return alphaVantageName
}

// Resolution returns the granularity served for the requested timeframe. The
// forex endpoint only serves daily candles.
func (c *AlphaVantageClient) Resolution(timeframe shared.Timeframe) shared.Timeframe {
	return shared.OneDay
}

// parseDaily parses candles from the provided daily forex payload, keeping
// only rows within the requested range. Forex has no reported volume.
func (c *AlphaVantageClient) parseDaily(rows gjson.Result, start time.Time, end time.Time) ([]shared.Candle, error) {
	candles := make([]shared.Candle, 0, 64)

	startDay := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	endDay := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)

	var parseErr error
	rows.ForEach(func(key, value gjson.Result) bool {
		day, err := time.Parse(shared.DateLayout, key.String())
		if err != nil {
			parseErr = fmt.Errorf("parsing candle date: %w", err)
			return false
		}

		if day.Before(startDay) || day.After(endDay) {
			return true
		}

		candles = append(candles, shared.Candle{
			Timestamp: day.UTC(),
			Open:      numField(value, "1\\. open"),
			High:      numField(value, "2\\. high"),
			Low:       numField(value, "3\\. low"),
			Close:     numField(value, "4\\. close"),
			Volume:    0,
		})

		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}

	return candles, nil
}

// Fetch returns daily candles for the provided forex pair and range. Without
// a configured api key the source degrades to an empty result instead of
// spending a throttled call.
func (c *AlphaVantageClient) Fetch(ctx context.Context, symbol string, start time.Time, end time.Time, timeframe shared.Timeframe) ([]shared.Candle, error) {
	const queryPath = "/query"

	if c.cfg.APIKey == "" {
		c.cfg.Logger.Warn().Msgf("no alpha vantage api key configured, skipping fetch for %s", symbol)
		return []shared.Candle{}, nil
	}

	base, quote, err := normalize.SplitForexPair(symbol)
	if err != nil {
		return nil, fmt.Errorf("fetching alpha vantage daily data: %w", err)
	}

	params := url.Values{}
	params.Add("function", "FX_DAILY")
	params.Add("from_symbol", base)
	params.Add("to_symbol", quote)
	params.Add("outputsize", "full")
	params.Add("apikey", c.cfg.APIKey)

	body, err := c.httpc.getJSON(ctx, c.httpc.formURL(c.baseURL, queryPath, params.Encode()))
	if err != nil {
		return nil, fmt.Errorf("fetching alpha vantage daily data for %s: %w", symbol, err)
	}

	payload := gjson.ParseBytes(body)
	if msg := payload.Get("Error Message"); msg.Exists() {
		return nil, fmt.Errorf("alpha vantage rejected the %s request: %s", symbol, msg.String())
	}
	if note := payload.Get("Note"); note.Exists() {
		return nil, fmt.Errorf("alpha vantage throttled the %s request: %s", symbol, note.String())
	}

	rows := payload.Get("Time Series FX (Daily)")
	if !rows.Exists() {
		return nil, fmt.Errorf("alpha vantage daily data for %s has no series", symbol)
	}

	return c.parseDaily(rows, start, end)
}
