package series

import (
	"slices"
	"time"

	"github.com/dnldd/marketdata/shared"
)

// bucketStart returns the start of the aggregation bucket containing the
// provided timestamp for the target timeframe. Buckets are aligned to UTC.
func bucketStart(ts time.Time, target shared.Timeframe) time.Time {
	ts = ts.UTC()

	switch target {
	case shared.OneDay:
		return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
	case shared.OneWeek:
		day := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
		// Roll back to monday.
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case shared.OneMonth:
		return time.Date(ts.Year(), ts.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return ts.Truncate(target.Duration())
	}
}

// Resample aggregates the provided candles into the coarser target
// timeframe using financial aggregation rules: open is the first value in
// the bucket, high the maximum, low the minimum, close the last value and
// volume the sum. Buckets with no input rows are dropped, no synthetic
// candles are forward-filled.
func Resample(candles []shared.Candle, target shared.Timeframe) []shared.Candle {
	if len(candles) == 0 {
		return nil
	}

	ordered := slices.Clone(candles)
	slices.SortFunc(ordered, func(a, b shared.Candle) int {
		return a.Timestamp.Compare(b.Timestamp)
	})

	resampled := make([]shared.Candle, 0, len(ordered))
	var bucket shared.Candle
	var open bool

	for idx := range ordered {
		candle := ordered[idx]
		start := bucketStart(candle.Timestamp, target)

		if !open || !bucket.Timestamp.Equal(start) {
			if open {
				resampled = append(resampled, bucket)
			}

			bucket = shared.Candle{
				Timestamp: start,
				Open:      candle.Open,
				High:      candle.High,
				Low:       candle.Low,
				Close:     candle.Close,
				Volume:    candle.Volume,
			}
			open = true
			continue
		}

		if candle.High > bucket.High {
			bucket.High = candle.High
		}
		if candle.Low < bucket.Low {
			bucket.Low = candle.Low
		}
		bucket.Close = candle.Close
		bucket.Volume += candle.Volume
	}

	if open {
		resampled = append(resampled, bucket)
	}

	return resampled
}
