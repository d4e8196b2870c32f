package gather

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dnldd/marketdata/shared"
	"github.com/peterldowns/testy/assert"
)

func TestGatherBatchPreservesOrder(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	forex := &fakeAdapter{name: "forex", candles: dailyCandles(start, 30)}
	crypto := &fakeAdapter{name: "crypto", candles: dailyCandles(start, 15)}

	o := newTestOrchestrator(t, map[shared.MarketType]Route{
		shared.Forex:  {Sources: []Source{{Adapter: forex}}, Policy: FirstAdequate},
		shared.Crypto: {Sources: []Source{{Adapter: crypto}}, Policy: BestOf},
	})

	reqs := []shared.Request{
		testRequest("EURUSD", shared.Forex),
		testRequest("BTC", shared.Crypto),
		testRequest("GBPUSD", shared.Forex),
	}

	results := o.GatherBatch(context.Background(), reqs)
	assert.Equal(t, len(results), 3)
	assert.Equal(t, results[0].Series.Symbol, "EURUSD")
	assert.Equal(t, results[0].Series.Len(), 30)
	assert.Equal(t, results[1].Series.Symbol, "BTC")
	assert.Equal(t, results[1].Series.Len(), 15)
	assert.Equal(t, results[2].Series.Symbol, "GBPUSD")
}

func TestGatherBatchIsolatesFailures(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	adapter := &fakeAdapter{name: "only", candles: dailyCandles(start, 30)}

	o := newTestOrchestrator(t, map[shared.MarketType]Route{
		shared.Forex: {Sources: []Source{{Adapter: adapter}}, Policy: FirstAdequate},
	})

	reqs := []shared.Request{
		testRequest("EURUSD", shared.Forex),
		// An invalid request in the middle of the batch.
		testRequest("", shared.Forex),
		testRequest("GBPUSD", shared.Forex),
	}

	results := o.GatherBatch(context.Background(), reqs)
	assert.Equal(t, len(results), 3)

	// The invalid request fails alone, its siblings still gather.
	assert.NoError(t, results[0].Err)
	assert.Equal(t, results[0].Series.Len(), 30)
	assert.Error(t, results[1].Err)
	assert.True(t, results[1].Series.IsEmpty())
	assert.NoError(t, results[2].Err)
	assert.Equal(t, results[2].Series.Len(), 30)
}

func TestGatherBatchDegradedSourcesYieldEmptyResults(t *testing.T) {
	o := newTestOrchestrator(t, map[shared.MarketType]Route{
		shared.Forex: {
			Sources: []Source{{Adapter: &fakeAdapter{name: "down", err: errors.New("down")}}},
			Policy:  FirstAdequate,
		},
	})

	results := o.GatherBatch(context.Background(), []shared.Request{
		testRequest("EURUSD", shared.Forex),
	})

	// Exhausted sources are not a batch error, just an empty series.
	assert.Equal(t, len(results), 1)
	assert.NoError(t, results[0].Err)
	assert.True(t, results[0].Series.IsEmpty())
}

func TestGatherBatchEmpty(t *testing.T) {
	o := newTestOrchestrator(t, map[shared.MarketType]Route{})
	results := o.GatherBatch(context.Background(), nil)
	assert.Equal(t, len(results), 0)
}

func TestWorkerLimit(t *testing.T) {
	o := newTestOrchestrator(t, nil)
	assert.Equal(t, o.workerLimit(), 4)

	o.cfg.MaxWorkers = 0
	limit := o.workerLimit()
	assert.GreaterThan(t, limit, 0)
	assert.LessThanOrEqual(t, limit, maxBatchWorkers)
}
