package fetch

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/dnldd/marketdata/ratelimit"
	"github.com/dnldd/marketdata/series"
	"github.com/dnldd/marketdata/shared"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

const (
	// coinGeckoName is the provider name for the coingecko client.
	coinGeckoName = "coingecko"
	// coinGeckoBaseURL is the production coingecko api.
	coinGeckoBaseURL = "https://api.coingecko.com/api/v3"
	// coinGeckoBudget is the requests-per-minute ceiling for coingecko.
	coinGeckoBudget = 50
	// coinGeckoTimeout is the per-request timeout for coingecko.
	coinGeckoTimeout = time.Second * 30

	// coinGeckoBandFactor is the synthetic high/low band applied around point
	// prices, since the market chart endpoint has no true OHLC data.
	coinGeckoBandFactor = 0.001
)

// CoinGeckoConfig represents the configuration for the coingecko client.
type CoinGeckoConfig struct {
	// BaseURL is the coingecko api base url.
	BaseURL string
	// Limiter is the shared provider rate limiter.
	Limiter *ratelimit.Limiter
	// MaxRetries is the maximum number of fetch retries.
	MaxRetries int
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// CoinGeckoClient fetches crypto price points from the coingecko api and
// approximates candles from them. Point prices carry no intrabar range, the
// high and low are synthesized as a thin band around each price.
type CoinGeckoClient struct {
	cfg     *CoinGeckoConfig
	httpc   *client
	baseURL string
}

// Ensure the CoinGeckoClient implements the SourceAdapter interface.
var _ shared.SourceAdapter = (*CoinGeckoClient)(nil)

// NewCoinGeckoClient initializes a new coingecko client.
func NewCoinGeckoClient(cfg *CoinGeckoConfig) *CoinGeckoClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = coinGeckoBaseURL
	}

	cfg.Limiter.SetBudget(coinGeckoName, coinGeckoBudget)

	return &CoinGeckoClient{
		cfg:     cfg,
		httpc:   newClient(coinGeckoName, coinGeckoTimeout, cfg.Limiter, cfg.MaxRetries, cfg.Logger),
		baseURL: baseURL,
	}
}

// Name returns the provider name.
func (c *CoinGeckoClient) Name() string {
	return coinGeckoName
}

// Resolution returns the granularity served for the requested timeframe. The
// client aggregates its point prices to the requested timeframe itself.
func (c *CoinGeckoClient) Resolution(timeframe shared.Timeframe) shared.Timeframe {
	return timeframe
}

// parseChart approximates candles from the provided market chart payload.
// Each price point becomes a candle with a synthetic high/low band, with
// volumes matched to prices by their millisecond timestamps.
func (c *CoinGeckoClient) parseChart(payload gjson.Result) []shared.Candle {
	prices := payload.Get("prices").Array()
	volumes := payload.Get("total_volumes").Array()

	volumeAt := make(map[int64]float64, len(volumes))
	for idx := range volumes {
		point := volumes[idx].Array()
		if len(point) < 2 {
			continue
		}

		volumeAt[point[0].Int()] = point[1].Float()
	}

	candles := make([]shared.Candle, 0, len(prices))
	for idx := range prices {
		point := prices[idx].Array()
		if len(point) < 2 {
			continue
		}

		ms := point[0].Int()
		price := numAt(point, 1)

		candles = append(candles, shared.Candle{
			Timestamp: time.UnixMilli(ms).UTC(),
			Open:      price,
			High:      price * (1 + coinGeckoBandFactor),
			Low:       price * (1 - coinGeckoBandFactor),
			Close:     price,
			Volume:    volumeAt[ms],
		})
	}

	return candles
}

// Fetch returns approximated candles for the provided asset id and range,
// aggregated to the requested timeframe.
func (c *CoinGeckoClient) Fetch(ctx context.Context, symbol string, start time.Time, end time.Time, timeframe shared.Timeframe) ([]shared.Candle, error) {
	chartRangePath := fmt.Sprintf("/coins/%s/market_chart/range", symbol)

	params := url.Values{}
	params.Add("vs_currency", "usd")
	params.Add("from", strconv.FormatInt(start.Unix(), 10))
	params.Add("to", strconv.FormatInt(end.Unix(), 10))

	body, err := c.httpc.getJSON(ctx, c.httpc.formURL(c.baseURL, chartRangePath, params.Encode()))
	if err != nil {
		return nil, fmt.Errorf("fetching coingecko market chart for %s: %w", symbol, err)
	}

	payload := gjson.ParseBytes(body)
	if payload.Get("error").Exists() {
		return nil, fmt.Errorf("coingecko rejected the %s request: %s",
			symbol, payload.Get("error").String())
	}

	candles := c.parseChart(payload)
	if len(candles) == 0 {
		return candles, nil
	}

	return series.Resample(candles, timeframe), nil
}
