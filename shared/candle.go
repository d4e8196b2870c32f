package shared

import (
	"math"
	"time"
)

// OHLCTolerance is the absolute tolerance applied when checking the OHLC
// consistency invariant, absorbing floating point noise in provider data.
const OHLCTolerance = 0.01

// Candle represents a single OHLCV bar.
type Candle struct {
	// Timestamp is the UTC start of the candle's interval.
	Timestamp time.Time `json:"timestamp"`
	// Open is the opening price.
	Open float64 `json:"o"`
	// High is the highest traded price.
	High float64 `json:"h"`
	// Low is the lowest traded price.
	Low float64 `json:"l"`
	// Close is the closing price.
	Close float64 `json:"c"`
	// Volume is the traded volume, zero where the provider reports none.
	Volume float64 `json:"v"`
}

// HasNaN asserts whether any of the candle's value fields is not a number.
func (c *Candle) HasNaN() bool {
	return math.IsNaN(c.Open) || math.IsNaN(c.High) || math.IsNaN(c.Low) ||
		math.IsNaN(c.Close) || math.IsNaN(c.Volume)
}

// PositivePrices asserts all four price fields are strictly positive.
func (c *Candle) PositivePrices() bool {
	return c.Open > 0 && c.High > 0 && c.Low > 0 && c.Close > 0
}

// Consistent asserts the OHLC invariant holds within the provided absolute
// tolerance: the high is not below any other price and the low is not above
// any other price.
func (c *Candle) Consistent(tolerance float64) bool {
	maxPrice := math.Max(c.Open, math.Max(c.Low, c.Close))
	minPrice := math.Min(c.Open, math.Min(c.High, c.Close))

	return c.High >= maxPrice-tolerance && c.Low <= minPrice+tolerance
}

// CandleSeries represents a validated, chronologically ordered candle series
// for a single instrument and timeframe.
type CandleSeries struct {
	// Symbol is the canonical instrument symbol.
	Symbol string `json:"symbol"`
	// Market is the market type of the instrument.
	Market MarketType `json:"market"`
	// Timeframe is the candle timeframe of the series.
	Timeframe Timeframe `json:"timeframe"`
	// Candles are the series rows, ordered by timestamp.
	Candles []Candle `json:"candles"`
}

// Len returns the number of candles in the series.
func (s *CandleSeries) Len() int {
	return len(s.Candles)
}

// IsEmpty asserts whether the series has no candles.
func (s *CandleSeries) IsEmpty() bool {
	return len(s.Candles) == 0
}
