package shared

import (
	"errors"
	"fmt"
	"time"
)

// Request represents a single market data request.
type Request struct {
	// Symbol is the instrument symbol, in any common spelling.
	Symbol string
	// Market is the market type of the instrument.
	Market MarketType
	// Start is the inclusive start of the requested range.
	Start time.Time
	// End is the inclusive end of the requested range.
	End time.Time
	// Timeframe is the requested candle timeframe.
	Timeframe Timeframe
}

// Validate asserts the request has sane inputs.
func (r *Request) Validate() error {
	var errs error

	if r.Symbol == "" {
		errs = errors.Join(errs, fmt.Errorf("request symbol cannot be an empty string"))
	}
	if r.Start.IsZero() || r.End.IsZero() {
		errs = errors.Join(errs, fmt.Errorf("request range cannot have a zero bound"))
	}
	if !r.Start.IsZero() && !r.End.IsZero() && r.End.Before(r.Start) {
		errs = errors.Join(errs, fmt.Errorf("request range end precedes its start"))
	}

	return errs
}

// SourceAttempt records the outcome of a single adapter invocation during
// orchestration. Attempts are ephemeral and never persisted.
type SourceAttempt struct {
	// Provider is the name of the invoked adapter.
	Provider string
	// RawCount is the number of rows the provider returned.
	RawCount int
	// CleanedCount is the number of rows surviving validation.
	CleanedCount int
	// Quality is the quality score of the attempt's candidate series.
	Quality float64
	// Err is the folded fetch error, if any.
	Err error
}

// BatchResult represents the outcome of a single request within a batch
// gather. A failed symbol carries an empty series, never a panic or an
// aborted batch.
type BatchResult struct {
	// Series is the gathered series, possibly empty.
	Series CandleSeries
	// Quality is the quality score of the gathered series.
	Quality float64
	// Err is the terminal gathering error, if any.
	Err error
}
