package series

import (
	"math"

	"github.com/dnldd/marketdata/shared"
)

// candleColumns is the number of value columns per candle used for the
// missing-cell ratio.
const candleColumns = 5

// Score computes a [0,1] confidence score for the provided candidate
// series. Callers score the pre-outlier-removal candidate so the score
// reflects the provider's raw fidelity rather than the cleaned result. An
// empty series scores 0.
func Score(candles []shared.Candle) float64 {
	if len(candles) == 0 {
		return 0
	}

	var missingCells, invalidRows, consistentRows int
	for idx := range candles {
		candle := candles[idx]

		for _, value := range []float64{candle.Open, candle.High, candle.Low,
			candle.Close, candle.Volume} {
			if math.IsNaN(value) {
				missingCells++
			}
		}

		// Missing prices are already counted above, invalid only covers
		// reported non-positive prices.
		for _, price := range []float64{candle.Open, candle.High, candle.Low,
			candle.Close} {
			if !math.IsNaN(price) && price <= 0 {
				invalidRows++
				break
			}
		}

		if candle.Consistent(0) {
			consistentRows++
		}
	}

	rows := float64(len(candles))
	missingRatio := float64(missingCells) / (rows * candleColumns)
	invalidRatio := float64(invalidRows) / rows
	consistencyRatio := float64(consistentRows) / rows

	score := 1.0 - 0.3*missingRatio - 0.3*invalidRatio + 0.4*consistencyRatio

	return math.Max(0, math.Min(1, score))
}
