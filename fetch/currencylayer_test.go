package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dnldd/marketdata/shared"
	"github.com/peterldowns/testy/assert"
)

func newTestCurrencyLayerClient(baseURL string, keys ...string) *CurrencyLayerClient {
	return NewCurrencyLayerClient(&CurrencyLayerConfig{
		APIKeys:    keys,
		BaseURL:    baseURL,
		Limiter:    testLimiter(),
		MaxRetries: 1,
		Logger:     testLogger(),
	})
}

func TestCurrencyLayerFetch(t *testing.T) {
	var keysUsed []string
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		keysUsed = append(keysUsed, r.URL.Query().Get("access_key"))
		w.Write([]byte(`{"success":true,"quotes":{"USDEUR":0.92,"USDUSD":1}}`))
	}))
	defer svr.Close()

	cc := newTestCurrencyLayerClient(svr.URL, "key-even", "key-odd")
	assert.Equal(t, cc.Name(), "currencylayer")
	assert.Equal(t, cc.Resolution(shared.OneWeek), shared.OneDay)

	// Thursday through monday, spanning a weekend.
	start := time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)

	candles, err := cc.Fetch(context.Background(), "EURUSD", start, end, shared.OneDay)
	assert.NoError(t, err)

	// Saturday and sunday are skipped.
	assert.Equal(t, len(candles), 3)
	assert.Equal(t, candles[0].Timestamp, start)
	assert.Equal(t, candles[2].Timestamp, end)

	// EURUSD derives from the inverted USDEUR quote.
	usdeur := 0.92
	rate := 1 / usdeur
	assert.Equal(t, candles[0].Close, rate)

	// The first candle opens at its own close, later ones at the previous
	// close.
	assert.Equal(t, candles[0].Open, rate)
	assert.Equal(t, candles[1].Open, candles[0].Close)

	// Sequential requests alternate api keys.
	assert.Equal(t, len(keysUsed), 3)
	assert.NotEqual(t, keysUsed[0], keysUsed[1])
	assert.Equal(t, keysUsed[0], keysUsed[2])
}

func TestCurrencyLayerFetchCrossRate(t *testing.T) {
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"quotes":{"USDEUR":0.92,"USDGBP":0.79}}`))
	}))
	defer svr.Close()

	cc := newTestCurrencyLayerClient(svr.URL, "key")

	day := time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC)
	candles, err := cc.Fetch(context.Background(), "EURGBP", day, day, shared.OneDay)
	assert.NoError(t, err)
	usdgbp, usdeur := 0.79, 0.92
	assert.Equal(t, len(candles), 1)
	assert.Equal(t, candles[0].Close, usdgbp/usdeur)
}

func TestCurrencyLayerFetchCapsRange(t *testing.T) {
	var calls int
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"success":true,"quotes":{"USDEUR":0.92,"USDUSD":1}}`))
	}))
	defer svr.Close()

	cc := newTestCurrencyLayerClient(svr.URL, "key")

	end := time.Date(2024, 3, 29, 0, 0, 0, 0, time.UTC)
	candles, err := cc.Fetch(context.Background(), "EURUSD", end.AddDate(0, 0, -90), end, shared.OneDay)
	assert.NoError(t, err)

	// A quarter long range is clamped to the thirty day cap, minus weekends.
	if calls > 30 {
		t.Errorf("expected at most 30 api calls, got %d", calls)
	}
	assert.Equal(t, len(candles), calls)
}

func TestCurrencyLayerFetchRejection(t *testing.T) {
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"error":{"code":101,"info":"invalid access key"}}`))
	}))
	defer svr.Close()

	cc := newTestCurrencyLayerClient(svr.URL, "bad-key")

	day := time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC)
	_, err := cc.Fetch(context.Background(), "EURUSD", day, day, shared.OneDay)
	assert.Error(t, err)
}
