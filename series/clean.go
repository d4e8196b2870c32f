package series

import (
	"math"
	"slices"

	"github.com/dnldd/marketdata/shared"
	"github.com/rs/zerolog"
)

// minOutlierSampleSize is the minimum series length for statistical outlier
// removal to be meaningful.
const minOutlierSampleSize = 10

// Clean runs the validation pipeline over the provided candles and returns
// the surviving rows in chronological order. An empty result is a valid
// terminal outcome, not an error. Each step logs its row-count delta.
func Clean(candles []shared.Candle, logger *zerolog.Logger) []shared.Candle {
	if len(candles) == 0 {
		return nil
	}

	cleaned := dropDuplicateTimestamps(candles, logger)
	cleaned = dropUncoercedRows(cleaned, logger)
	cleaned = dropNonPositiveRows(cleaned, logger)
	cleaned = dropInconsistentRows(cleaned, logger)
	cleaned = dropOutlierRows(cleaned, logger)

	slices.SortFunc(cleaned, func(a, b shared.Candle) int {
		return a.Timestamp.Compare(b.Timestamp)
	})

	return cleaned
}

// dropDuplicateTimestamps removes rows sharing a timestamp with an earlier
// row, keeping the first occurrence.
func dropDuplicateTimestamps(candles []shared.Candle, logger *zerolog.Logger) []shared.Candle {
	seen := make(map[int64]bool, len(candles))
	kept := make([]shared.Candle, 0, len(candles))

	for idx := range candles {
		key := candles[idx].Timestamp.UnixNano()
		if seen[key] {
			continue
		}

		seen[key] = true
		kept = append(kept, candles[idx])
	}

	if removed := len(candles) - len(kept); removed > 0 {
		logger.Debug().Msgf("removed %d duplicate timestamps", removed)
	}

	return kept
}

// dropUncoercedRows removes rows whose prices failed numeric coercion.
// Volume coercion failures zero the volume instead, since zero volume is
// permitted.
func dropUncoercedRows(candles []shared.Candle, logger *zerolog.Logger) []shared.Candle {
	kept := make([]shared.Candle, 0, len(candles))

	for idx := range candles {
		candle := candles[idx]
		if math.IsNaN(candle.Open) || math.IsNaN(candle.High) ||
			math.IsNaN(candle.Low) || math.IsNaN(candle.Close) {
			continue
		}

		if math.IsNaN(candle.Volume) {
			candle.Volume = 0
		}

		kept = append(kept, candle)
	}

	if removed := len(candles) - len(kept); removed > 0 {
		logger.Debug().Msgf("removed %d rows with non-numeric prices", removed)
	}

	return kept
}

// dropNonPositiveRows removes rows with any zero or negative price.
func dropNonPositiveRows(candles []shared.Candle, logger *zerolog.Logger) []shared.Candle {
	kept := make([]shared.Candle, 0, len(candles))

	for idx := range candles {
		if !candles[idx].PositivePrices() {
			continue
		}

		kept = append(kept, candles[idx])
	}

	if removed := len(candles) - len(kept); removed > 0 {
		logger.Debug().Msgf("removed %d rows with non-positive prices", removed)
	}

	return kept
}

// dropInconsistentRows removes rows violating the OHLC invariant beyond the
// permitted floating point tolerance.
func dropInconsistentRows(candles []shared.Candle, logger *zerolog.Logger) []shared.Candle {
	kept := make([]shared.Candle, 0, len(candles))

	for idx := range candles {
		if !candles[idx].Consistent(shared.OHLCTolerance) {
			continue
		}

		kept = append(kept, candles[idx])
	}

	if removed := len(candles) - len(kept); removed > 0 {
		logger.Debug().Msgf("removed %d rows with inconsistent ohlc", removed)
	}

	return kept
}

// dropOutlierRows removes rows whose close lies outside three standard
// deviations of the series' mean close. Short series are left untouched.
func dropOutlierRows(candles []shared.Candle, logger *zerolog.Logger) []shared.Candle {
	if len(candles) <= minOutlierSampleSize {
		return candles
	}

	var sum float64
	for idx := range candles {
		sum += candles[idx].Close
	}
	mean := sum / float64(len(candles))

	var variance float64
	for idx := range candles {
		diff := candles[idx].Close - mean
		variance += diff * diff
	}
	stddev := math.Sqrt(variance / float64(len(candles)))

	lower := mean - 3*stddev
	upper := mean + 3*stddev

	kept := make([]shared.Candle, 0, len(candles))
	for idx := range candles {
		if candles[idx].Close < lower || candles[idx].Close > upper {
			continue
		}

		kept = append(kept, candles[idx])
	}

	if removed := len(candles) - len(kept); removed > 0 {
		logger.Debug().Msgf("removed %d statistical outliers", removed)
	}

	return kept
}
