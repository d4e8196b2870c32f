package service

import (
	"context"
	"testing"
	"time"

	"github.com/dnldd/marketdata/gather"
	"github.com/dnldd/marketdata/ratelimit"
	"github.com/dnldd/marketdata/shared"
	"github.com/peterldowns/testy/assert"
	"github.com/rs/zerolog"
)

func TestMarketDataConfigValidate(t *testing.T) {
	cfg := &MarketDataConfig{}
	assert.Error(t, cfg.Validate())

	cfg = &MarketDataConfig{
		Symbols:   []string{"EURUSD"},
		Market:    shared.Forex,
		Start:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:       time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		Timeframe: shared.OneDay,
		DataDir:   t.TempDir(),
		CacheTTL:  time.Hour,
		Cancel:    func() {},
	}
	assert.NoError(t, cfg.Validate())
}

func TestRoutesPriorityOrder(t *testing.T) {
	logger := zerolog.Nop()
	limiter := ratelimit.NewLimiter(&ratelimit.LimiterConfig{Logger: &logger})
	table := routes(limiter, &MarketDataConfig{}, &logger)

	// Crypto keeps the best of both sources.
	crypto := table[shared.Crypto]
	assert.Equal(t, crypto.Policy, gather.BestOf)
	assert.Equal(t, len(crypto.Sources), 2)
	assert.Equal(t, crypto.Sources[0].Adapter.Name(), "binance")
	assert.Equal(t, crypto.Sources[1].Adapter.Name(), "coingecko")

	// Forex falls back from yahoo through currency layer to alpha vantage.
	forex := table[shared.Forex]
	assert.Equal(t, forex.Policy, gather.FirstAdequate)
	assert.Equal(t, len(forex.Sources), 3)
	assert.Equal(t, forex.Sources[0].Adapter.Name(), "yahoo")
	assert.Equal(t, forex.Sources[1].Adapter.Name(), "currencylayer")
	assert.Equal(t, forex.Sources[2].Adapter.Name(), "alphavantage")

	stocks := table[shared.Stocks]
	assert.Equal(t, stocks.Policy, gather.FirstAdequate)
	assert.Equal(t, len(stocks.Sources), 1)
	assert.Equal(t, stocks.Sources[0].Adapter.Name(), "yahoo")
}

func TestMarketDataGracefulShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := &MarketDataConfig{
		Symbols:   []string{"EURUSD"},
		Market:    shared.Forex,
		Start:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:       time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC),
		Timeframe: shared.OneDay,
		DataDir:   t.TempDir(),
		CacheTTL:  time.Hour,
		Cancel:    cancel,
	}

	svc, err := NewMarketData(cfg)
	assert.NoError(t, err)

	// Cancel before gathering starts so provider fetches fail fast instead
	// of reaching the network.
	cancel()

	// Ensure the service can be run and gracefully terminated.
	done := make(chan struct{})
	go func() {
		svc.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second * 10):
		t.Fatal("service did not shut down in time")
	}
}
