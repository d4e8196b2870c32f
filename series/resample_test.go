package series

import (
	"testing"
	"time"

	"github.com/dnldd/marketdata/shared"
	"github.com/peterldowns/testy/assert"
)

func TestResampleAggregates(t *testing.T) {
	base := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	minutes := []shared.Candle{
		{Timestamp: base, Open: 10, High: 12, Low: 9, Close: 11, Volume: 5},
		{Timestamp: base.Add(time.Minute), Open: 11, High: 15, Low: 10, Close: 14, Volume: 7},
		{Timestamp: base.Add(2 * time.Minute), Open: 14, High: 14.5, Low: 8, Close: 9, Volume: 3},
		{Timestamp: base.Add(3 * time.Minute), Open: 9, High: 10, Low: 8.5, Close: 9.5, Volume: 1},
		{Timestamp: base.Add(4 * time.Minute), Open: 9.5, High: 11, Low: 9, Close: 10.5, Volume: 4},
	}

	resampled := Resample(minutes, shared.FiveMinute)
	assert.Equal(t, len(resampled), 1)

	bucket := resampled[0]
	assert.Equal(t, bucket.Timestamp, base)
	assert.Equal(t, bucket.Open, float64(10))
	assert.Equal(t, bucket.High, float64(15))
	assert.Equal(t, bucket.Low, float64(8))
	assert.Equal(t, bucket.Close, float64(10.5))
	assert.Equal(t, bucket.Volume, float64(20))
}

func TestResampleDropsEmptyBuckets(t *testing.T) {
	base := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	candles := []shared.Candle{
		{Timestamp: base, Open: 10, High: 11, Low: 9, Close: 10, Volume: 1},
		// A two hour gap, no synthetic candles should appear in between.
		{Timestamp: base.Add(2 * time.Hour), Open: 12, High: 13, Low: 11, Close: 12, Volume: 1},
	}

	resampled := Resample(candles, shared.OneHour)
	assert.Equal(t, len(resampled), 2)
	assert.Equal(t, resampled[0].Timestamp, base)
	assert.Equal(t, resampled[1].Timestamp, base.Add(2*time.Hour))
}

func TestResampleCalendarBuckets(t *testing.T) {
	// Wednesday and thursday resolve to the same monday-aligned week.
	wednesday := time.Date(2024, 1, 3, 10, 0, 0, 0, time.UTC)
	thursday := time.Date(2024, 1, 4, 10, 0, 0, 0, time.UTC)
	candles := []shared.Candle{
		{Timestamp: wednesday, Open: 10, High: 12, Low: 9, Close: 11, Volume: 2},
		{Timestamp: thursday, Open: 11, High: 13, Low: 10, Close: 12, Volume: 3},
	}

	weekly := Resample(candles, shared.OneWeek)
	assert.Equal(t, len(weekly), 1)
	assert.Equal(t, weekly[0].Timestamp, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, weekly[0].Open, float64(10))
	assert.Equal(t, weekly[0].Close, float64(12))
	assert.Equal(t, weekly[0].Volume, float64(5))

	monthly := Resample(candles, shared.OneMonth)
	assert.Equal(t, len(monthly), 1)
	assert.Equal(t, monthly[0].Timestamp, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
}

func TestResampleUnsortedInput(t *testing.T) {
	base := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	candles := []shared.Candle{
		{Timestamp: base.Add(time.Minute), Open: 11, High: 15, Low: 10, Close: 14, Volume: 7},
		{Timestamp: base, Open: 10, High: 12, Low: 9, Close: 11, Volume: 5},
	}

	resampled := Resample(candles, shared.FiveMinute)
	assert.Equal(t, len(resampled), 1)
	assert.Equal(t, resampled[0].Open, float64(10))
	assert.Equal(t, resampled[0].Close, float64(14))
}

func TestResampleEmptyInput(t *testing.T) {
	assert.Equal(t, len(Resample(nil, shared.OneDay)), 0)
}
