package cache

import (
	"testing"
	"time"

	"github.com/dnldd/marketdata/shared"
	"github.com/google/go-cmp/cmp"
	"github.com/peterldowns/testy/assert"
)

func newTestFileStore(t *testing.T) *FileStore {
	t.Helper()

	store, err := NewFileStore(&FileStoreConfig{
		Dir:    t.TempDir(),
		Logger: testLogger(),
	})
	assert.NoError(t, err)

	return store
}

func TestFileStoreRoundTrip(t *testing.T) {
	store := newTestFileStore(t)
	series := testSeries()

	assert.NoError(t, store.Save(series, 0.93))

	got, quality, hit, err := store.Load(series.Symbol, series.Timeframe)
	assert.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, quality, 0.93)
	if diff := cmp.Diff(series, got); diff != "" {
		t.Errorf("mismatching processed series, got %v", diff)
	}
}

func TestFileStoreMiss(t *testing.T) {
	store := newTestFileStore(t)

	_, _, hit, err := store.Load("GBPUSD", shared.OneDay)
	assert.NoError(t, err)
	assert.False(t, hit)

	// A differing timeframe for a saved symbol is also a miss.
	assert.NoError(t, store.Save(testSeries(), 0.9))
	_, _, hit, err = store.Load("EURUSD", shared.OneHour)
	assert.NoError(t, err)
	assert.False(t, hit)
}

func TestFileStoreReplace(t *testing.T) {
	store := newTestFileStore(t)
	series := testSeries()

	assert.NoError(t, store.Save(series, 0.5))

	updated := testSeries()
	updated.Candles = append(updated.Candles, shared.Candle{
		Timestamp: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
		Open:      1.095, High: 1.1, Low: 1.092, Close: 1.097, Volume: 0,
	})
	assert.NoError(t, store.Save(updated, 0.9))

	got, quality, hit, err := store.Load(series.Symbol, series.Timeframe)
	assert.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, quality, 0.9)
	assert.Equal(t, got.Len(), 2)
}
