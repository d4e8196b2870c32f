package shared

import (
	"context"
	"time"
)

// SourceAdapter defines the requirements for fetching provider-native candle
// data. Implementations apply their own request timeouts, consume their
// provider's rate limit budget, and fold expected failure modes (timeouts,
// HTTP errors, malformed bodies) into an empty result with the folded error
// returned for attempt bookkeeping. Callers pre-normalize symbols to the
// spelling each adapter expects.
type SourceAdapter interface {
	// Name returns the provider name.
	Name() string
	// Fetch returns provider rows for the symbol and range, or an empty
	// result.
	Fetch(ctx context.Context, symbol string, start time.Time, end time.Time, timeframe Timeframe) ([]Candle, error)
	// Resolution returns the granularity the adapter actually serves for the
	// requested timeframe. A resolution finer than the request means the
	// result needs resampling.
	Resolution(timeframe Timeframe) Timeframe
}
