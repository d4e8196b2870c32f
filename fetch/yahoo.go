package fetch

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/dnldd/marketdata/ratelimit"
	"github.com/dnldd/marketdata/shared"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

const (
	// yahooName is the provider name for the yahoo finance client.
	yahooName = "yahoo"
	// yahooBaseURL is the production yahoo finance chart api.
	yahooBaseURL = "https://query1.finance.yahoo.com"
	// yahooBudget is the requests-per-minute ceiling for yahoo finance.
	yahooBudget = 200
	// yahooTimeout is the per-request timeout for yahoo finance.
	yahooTimeout = time.Second * 30
)

// YahooConfig represents the configuration for the yahoo finance client.
type YahooConfig struct {
	// BaseURL is the yahoo finance api base url.
	BaseURL string
	// Limiter is the shared provider rate limiter.
	Limiter *ratelimit.Limiter
	// MaxRetries is the maximum number of fetch retries.
	MaxRetries int
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// YahooClient fetches stock and forex candles from the yahoo finance chart
// api.
type YahooClient struct {
	cfg     *YahooConfig
	httpc   *client
	baseURL string
}

// Ensure the YahooClient implements the SourceAdapter interface.
var _ shared.SourceAdapter = (*YahooClient)(nil)

// NewYahooClient initializes a new yahoo finance client.
func NewYahooClient(cfg *YahooConfig) *YahooClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = yahooBaseURL
	}

	cfg.Limiter.SetBudget(yahooName, yahooBudget)

	return &YahooClient{
		cfg:     cfg,
		httpc:   newClient(yahooName, yahooTimeout, cfg.Limiter, cfg.MaxRetries, cfg.Logger),
		baseURL: baseURL,
	}
}

// Name returns the provider name.
func (c *YahooClient) Name() string {
	return yahooName
}

// Resolution returns the granularity served for the requested timeframe. The
// chart api has no four hour interval, those requests are served hourly for
// the caller to aggregate.
func (c *YahooClient) Resolution(timeframe shared.Timeframe) shared.Timeframe {
	if timeframe == shared.FourHour {
		return shared.OneHour
	}

	return timeframe
}

// yahooInterval maps a timeframe to the chart interval spelling yahoo
// expects.
func yahooInterval(timeframe shared.Timeframe) string {
	switch timeframe {
	case shared.OneHour, shared.FourHour:
		return "60m"
	case shared.OneWeek:
		return "1wk"
	default:
		return timeframe.String()
	}
}

// parseChart parses candles from the provided chart payload. Yahoo reports
// each field as a parallel array indexed by the timestamp array, with null
// entries for gaps.
func (c *YahooClient) parseChart(result gjson.Result) []shared.Candle {
	timestamps := result.Get("timestamp").Array()
	quote := result.Get("indicators.quote.0")

	opens := quote.Get("open").Array()
	highs := quote.Get("high").Array()
	lows := quote.Get("low").Array()
	closes := quote.Get("close").Array()
	volumes := quote.Get("volume").Array()

	candles := make([]shared.Candle, 0, len(timestamps))
	for idx := range timestamps {
		candles = append(candles, shared.Candle{
			Timestamp: time.Unix(timestamps[idx].Int(), 0).UTC(),
			Open:      numAt(opens, idx),
			High:      numAt(highs, idx),
			Low:       numAt(lows, idx),
			Close:     numAt(closes, idx),
			Volume:    numAt(volumes, idx),
		})
	}

	return candles
}

// Fetch returns chart candles for the provided symbol and range.
func (c *YahooClient) Fetch(ctx context.Context, symbol string, start time.Time, end time.Time, timeframe shared.Timeframe) ([]shared.Candle, error) {
	chartPath := fmt.Sprintf("/v8/finance/chart/%s", url.PathEscape(symbol))

	params := url.Values{}
	params.Add("period1", strconv.FormatInt(start.Unix(), 10))
	params.Add("period2", strconv.FormatInt(end.Unix(), 10))
	params.Add("interval", yahooInterval(c.Resolution(timeframe)))

	body, err := c.httpc.getJSON(ctx, c.httpc.formURL(c.baseURL, chartPath, params.Encode()))
	if err != nil {
		return nil, fmt.Errorf("fetching yahoo chart for %s: %w", symbol, err)
	}

	payload := gjson.ParseBytes(body)
	if chartErr := payload.Get("chart.error"); chartErr.Exists() && chartErr.Type != gjson.Null {
		return nil, fmt.Errorf("yahoo rejected the %s request: %s",
			symbol, chartErr.Get("description").String())
	}

	result := payload.Get("chart.result.0")
	if !result.Exists() {
		return nil, fmt.Errorf("yahoo chart for %s has no result", symbol)
	}

	return c.parseChart(result), nil
}
