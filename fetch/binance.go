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
	// binanceName is the provider name for the binance client.
	binanceName = "binance"
	// binanceBaseURL is the production binance spot api.
	binanceBaseURL = "https://api.binance.com"
	// binanceBudget is the requests-per-minute ceiling for binance.
	binanceBudget = 1200
	// binanceTimeout is the per-request timeout for binance.
	binanceTimeout = time.Second * 10
	// binanceMaxRows is the maximum klines rows binance returns per page.
	binanceMaxRows = 1000
)

// BinanceConfig represents the configuration for the binance client.
type BinanceConfig struct {
	// BaseURL is the binance api base url.
	BaseURL string
	// Limiter is the shared provider rate limiter.
	Limiter *ratelimit.Limiter
	// MaxRetries is the maximum number of fetch retries.
	MaxRetries int
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// BinanceClient fetches spot market klines from the binance public api.
type BinanceClient struct {
	cfg     *BinanceConfig
	httpc   *client
	baseURL string
}

// Ensure the BinanceClient implements the SourceAdapter interface.
var _ shared.SourceAdapter = (*BinanceClient)(nil)

// NewBinanceClient initializes a new binance client.
func NewBinanceClient(cfg *BinanceConfig) *BinanceClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = binanceBaseURL
	}

	cfg.Limiter.SetBudget(binanceName, binanceBudget)

	return &BinanceClient{
		cfg:     cfg,
		httpc:   newClient(binanceName, binanceTimeout, cfg.Limiter, cfg.MaxRetries, cfg.Logger),
		baseURL: baseURL,
	}
}

// Name returns the provider name.
func (c *BinanceClient) Name() string {
	return binanceName
}

// Resolution returns the granularity served for the requested timeframe.
// Binance serves every supported timeframe natively.
func (c *BinanceClient) Resolution(timeframe shared.Timeframe) shared.Timeframe {
	return timeframe
}

// binanceInterval maps a timeframe to the klines interval spelling binance
// expects.
func binanceInterval(timeframe shared.Timeframe) string {
	if timeframe == shared.OneMonth {
		return "1M"
	}

	return timeframe.String()
}

// parseKlines parses candles from the provided klines payload. Each row is a
// positional array of open time, open, high, low, close and volume.
func (c *BinanceClient) parseKlines(rows []gjson.Result) []shared.Candle {
	candles := make([]shared.Candle, 0, len(rows))
	for idx := range rows {
		row := rows[idx].Array()
		if len(row) == 0 {
			continue
		}

		candles = append(candles, shared.Candle{
			Timestamp: time.UnixMilli(row[0].Int()).UTC(),
			Open:      numAt(row, 1),
			High:      numAt(row, 2),
			Low:       numAt(row, 3),
			Close:     numAt(row, 4),
			Volume:    numAt(row, 5),
		})
	}

	return candles
}

// Fetch returns spot klines for the provided symbol and range, paging
// through the api in thousand row chunks.
func (c *BinanceClient) Fetch(ctx context.Context, symbol string, start time.Time, end time.Time, timeframe shared.Timeframe) ([]shared.Candle, error) {
	const klinesPath = "/api/v3/klines"

	interval := binanceInterval(timeframe)
	candles := make([]shared.Candle, 0, binanceMaxRows)
	cursor := start

	for !cursor.After(end) {
		params := url.Values{}
		params.Add("symbol", symbol)
		params.Add("interval", interval)
		params.Add("startTime", strconv.FormatInt(cursor.UnixMilli(), 10))
		params.Add("endTime", strconv.FormatInt(end.UnixMilli(), 10))
		params.Add("limit", strconv.Itoa(binanceMaxRows))

		body, err := c.httpc.getJSON(ctx, c.httpc.formURL(c.baseURL, klinesPath, params.Encode()))
		if err != nil {
			return nil, fmt.Errorf("fetching binance klines for %s: %w", symbol, err)
		}

		payload := gjson.ParseBytes(body)
		if payload.Get("code").Exists() {
			return nil, fmt.Errorf("binance rejected the %s request: %s",
				symbol, payload.Get("msg").String())
		}

		rows := payload.Array()
		if len(rows) == 0 {
			break
		}

		page := c.parseKlines(rows)
		candles = append(candles, page...)

		if len(rows) < binanceMaxRows || len(page) == 0 {
			break
		}

		next := page[len(page)-1].Timestamp.Add(timeframe.Duration())
		if !next.After(cursor) {
			break
		}
		cursor = next
	}

	return candles, nil
}
