package gather

import (
	"context"
	"runtime"

	"github.com/dnldd/marketdata/shared"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// maxBatchWorkers caps batch concurrency regardless of core count.
const maxBatchWorkers = 32

// workerLimit resolves the batch worker cap from the orchestrator's
// configuration, defaulting to a core derived limit.
func (o *Orchestrator) workerLimit() int {
	if o.cfg.MaxWorkers > 0 {
		return o.cfg.MaxWorkers
	}

	limit := runtime.NumCPU() + 4
	if limit > maxBatchWorkers {
		limit = maxBatchWorkers
	}

	return limit
}

// GatherBatch resolves the provided requests concurrently, preserving input
// order in the results. A failing request yields an empty series result and
// never aborts its siblings.
func (o *Orchestrator) GatherBatch(ctx context.Context, reqs []shared.Request) []shared.BatchResult {
	results := make([]shared.BatchResult, len(reqs))
	if len(reqs) == 0 {
		return results
	}

	batchID := uuid.New().String()[:8]
	logger := o.cfg.Logger
	logger.Info().Msgf("batch %s: gathering %d requests", batchID, len(reqs))

	var g errgroup.Group
	g.SetLimit(o.workerLimit())

	for idx := range reqs {
		idx := idx
		g.Go(func() error {
			res, err := o.Gather(ctx, &reqs[idx])
			if err != nil {
				logger.Error().Err(err).Msgf("batch %s: gathering %s failed",
					batchID, reqs[idx].Symbol)

				results[idx] = shared.BatchResult{
					Series: shared.CandleSeries{
						Symbol:    reqs[idx].Symbol,
						Market:    reqs[idx].Market,
						Timeframe: reqs[idx].Timeframe,
					},
					Err: err,
				}
				return nil
			}

			results[idx] = shared.BatchResult{Series: res.Series, Quality: res.Quality}
			return nil
		})
	}

	// Workers swallow their own errors, the wait only orders completion.
	_ = g.Wait()

	var gathered int
	for idx := range results {
		if results[idx].Err == nil && !results[idx].Series.IsEmpty() {
			gathered++
		}
	}
	logger.Info().Msgf("batch %s: %d/%d requests yielded data", batchID, gathered, len(reqs))

	return results
}
