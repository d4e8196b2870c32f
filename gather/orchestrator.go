package gather

import (
	"context"
	"fmt"

	"github.com/dnldd/marketdata/cache"
	"github.com/dnldd/marketdata/normalize"
	"github.com/dnldd/marketdata/series"
	"github.com/dnldd/marketdata/shared"
	"github.com/rs/zerolog"
)

// minAdequateRows is the cleaned row count a source must exceed before the
// first-adequate policy stops trying further sources.
const minAdequateRows = 10

// Policy selects how a route's sources are tried.
type Policy int

const (
	// FirstAdequate tries sources in order and stops at the first one whose
	// cleaned series exceeds the adequacy threshold.
	FirstAdequate Policy = iota
	// BestOf tries every source and keeps the highest quality series.
	BestOf
)

// Source pairs an adapter with the symbol spelling it expects.
type Source struct {
	// Adapter is the provider adapter.
	Adapter shared.SourceAdapter
	// Spell maps a canonical symbol to the provider's spelling. A nil spell
	// passes the canonical symbol through unchanged.
	Spell func(symbol string) string
}

// Route lists the sources serving a market type, in priority order, and the
// policy used to pick among them.
type Route struct {
	// Sources are the route's provider sources.
	Sources []Source
	// Policy is the source selection policy.
	Policy Policy
}

// OrchestratorConfig represents the configuration for the gather
// orchestrator.
type OrchestratorConfig struct {
	// Routes maps each market type to its provider route.
	Routes map[shared.MarketType]Route
	// Store is the TTL cache for gathered series.
	Store *cache.Store
	// Files is the processed file store, consulted before any network fetch.
	Files *cache.FileStore
	// MaxWorkers caps concurrent requests within a batch.
	MaxWorkers int
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Result represents the outcome of gathering a single request.
type Result struct {
	// Series is the gathered series, possibly empty.
	Series shared.CandleSeries
	// Quality is the quality score of the gathered series.
	Quality float64
	// Attempts records the per-source outcomes, in invocation order.
	Attempts []shared.SourceAttempt
}

// attempt is a scored per-source candidate during orchestration.
type attempt struct {
	record  shared.SourceAttempt
	candles []shared.Candle
}

// Orchestrator gathers validated candle series by trying a market's sources
// in priority order, serving from the processed file and TTL cache tiers
// before touching the network. Source failures degrade to the next source,
// an empty series is a valid terminal result.
type Orchestrator struct {
	cfg *OrchestratorConfig
}

// NewOrchestrator initializes a new gather orchestrator.
func NewOrchestrator(cfg *OrchestratorConfig) *Orchestrator {
	return &Orchestrator{cfg: cfg}
}

// trySource fetches and scores a single source's candidate for the provided
// request, consulting the TTL cache before the network. Fetch failures are
// folded into the returned attempt record.
func (o *Orchestrator) trySource(ctx context.Context, src Source, req *shared.Request) attempt {
	adapter := src.Adapter
	logger := o.cfg.Logger

	att := attempt{record: shared.SourceAttempt{Provider: adapter.Name()}}

	key := cache.Fingerprint(req, adapter.Name())
	cached, quality, hit, err := o.cfg.Store.Get(key)
	if err != nil {
		logger.Error().Err(err).Msgf("reading cache for %s", req.Symbol)
	}
	if hit {
		logger.Debug().Msgf("cache hit for %s (%s) via %s", req.Symbol,
			req.Timeframe.String(), adapter.Name())

		att.candles = cached.Candles
		att.record.RawCount = len(cached.Candles)
		att.record.CleanedCount = len(cached.Candles)
		att.record.Quality = quality
		return att
	}

	spelled := req.Symbol
	if src.Spell != nil {
		spelled = src.Spell(req.Symbol)
	}

	raw, err := adapter.Fetch(ctx, spelled, req.Start, req.End, req.Timeframe)
	if err != nil {
		logger.Warn().Err(err).Msgf("source %s failed for %s, degrading to the next source",
			adapter.Name(), req.Symbol)

		att.record.Err = err
		return att
	}

	// The candidate is scored before cleaning so the score reflects the
	// provider's raw fidelity.
	att.record.RawCount = len(raw)
	att.record.Quality = series.Score(raw)

	cleaned := series.Clean(raw, logger)
	if resolution := adapter.Resolution(req.Timeframe); resolution != req.Timeframe {
		cleaned = series.Resample(cleaned, req.Timeframe)
	}

	att.candles = cleaned
	att.record.CleanedCount = len(cleaned)

	if len(cleaned) > 0 {
		entry := &shared.CandleSeries{
			Symbol:    req.Symbol,
			Market:    req.Market,
			Timeframe: req.Timeframe,
			Candles:   cleaned,
		}
		if err := o.cfg.Store.Put(key, entry, att.record.Quality); err != nil {
			logger.Error().Err(err).Msgf("caching %s series for %s", adapter.Name(), req.Symbol)
		}
	}

	return att
}

// pick selects the winning attempt index under the provided policy, or -1
// when every attempt came back empty.
func pick(attempts []attempt, policy Policy) int {
	winner := -1
	for idx := range attempts {
		if len(attempts[idx].candles) == 0 {
			continue
		}

		if policy == FirstAdequate && attempts[idx].record.CleanedCount > minAdequateRows {
			return idx
		}

		if winner == -1 || attempts[idx].record.Quality > attempts[winner].record.Quality {
			winner = idx
		}
	}

	return winner
}

// Gather resolves the provided request through the tiered pipeline:
// processed files, then the TTL cache, then the market's sources in priority
// order. The winning series is persisted to both storage tiers. An empty
// series with all attempts recorded is returned when every source fails.
func (o *Orchestrator) Gather(ctx context.Context, req *shared.Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("validating request: %w", err)
	}

	symbol, err := normalize.Symbol(req.Symbol, req.Market)
	if err != nil {
		return nil, fmt.Errorf("normalizing symbol %s: %w", req.Symbol, err)
	}

	canonical := *req
	canonical.Symbol = symbol

	logger := o.cfg.Logger

	// Processed files trump every other tier.
	processed, quality, hit, err := o.cfg.Files.Load(symbol, req.Timeframe)
	if err != nil {
		logger.Error().Err(err).Msgf("loading processed series for %s", symbol)
	}
	if hit {
		logger.Info().Msgf("serving %s (%s) from processed files", symbol,
			req.Timeframe.String())

		return &Result{Series: *processed, Quality: quality}, nil
	}

	route, ok := o.cfg.Routes[req.Market]
	if !ok {
		return nil, fmt.Errorf("no sources routed for %s market", req.Market.String())
	}

	attempts := make([]attempt, 0, len(route.Sources))
	for idx := range route.Sources {
		att := o.trySource(ctx, route.Sources[idx], &canonical)
		attempts = append(attempts, att)

		if route.Policy == FirstAdequate && att.record.CleanedCount > minAdequateRows {
			break
		}
	}

	records := make([]shared.SourceAttempt, 0, len(attempts))
	for idx := range attempts {
		records = append(records, attempts[idx].record)
	}

	winner := pick(attempts, route.Policy)
	if winner == -1 {
		logger.Warn().Msgf("all sources exhausted for %s (%s), returning an empty series",
			symbol, req.Timeframe.String())

		return &Result{
			Series: shared.CandleSeries{
				Symbol:    symbol,
				Market:    req.Market,
				Timeframe: req.Timeframe,
			},
			Attempts: records,
		}, nil
	}

	won := attempts[winner]
	result := &Result{
		Series: shared.CandleSeries{
			Symbol:    symbol,
			Market:    req.Market,
			Timeframe: req.Timeframe,
			Candles:   won.candles,
		},
		Quality:  won.record.Quality,
		Attempts: records,
	}

	logger.Info().Msgf("gathered %s (%s) via %s, %d candles at quality %.2f",
		symbol, req.Timeframe.String(), won.record.Provider,
		won.record.CleanedCount, won.record.Quality)

	if err := o.cfg.Files.Save(&result.Series, result.Quality); err != nil {
		logger.Error().Err(err).Msgf("saving processed series for %s", symbol)
	}

	return result, nil
}
