package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/dnldd/marketdata/cache"
	"github.com/dnldd/marketdata/fetch"
	"github.com/dnldd/marketdata/gather"
	"github.com/dnldd/marketdata/normalize"
	"github.com/dnldd/marketdata/ratelimit"
	"github.com/dnldd/marketdata/shared"
	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
)

// sweepInterval is the cadence of cache expiry sweeps.
const sweepInterval = time.Hour

// MarketDataConfig represents the configuration struct for the market data
// service.
type MarketDataConfig struct {
	// Symbols are the instrument symbols to gather.
	Symbols []string
	// Market is the market type of the tracked symbols.
	Market shared.MarketType
	// Start is the inclusive start of the requested range.
	Start time.Time
	// End is the inclusive end of the requested range.
	End time.Time
	// Timeframe is the requested candle timeframe.
	Timeframe shared.Timeframe
	// DataDir is the directory cache and processed data are kept in.
	DataDir string
	// CacheTTL is the lifetime of a cache entry.
	CacheTTL time.Duration
	// MaxRetries is the maximum number of fetch retries per provider call.
	MaxRetries int
	// MaxWorkers caps concurrent requests within a batch.
	MaxWorkers int
	// AlphaVantageAPIKey is the alpha vantage api key.
	AlphaVantageAPIKey string
	// CurrencyLayerAPIKeys are the currency layer api keys.
	CurrencyLayerAPIKeys []string
	// Cancel is the context cancellation function.
	Cancel context.CancelFunc
}

// Validate asserts the config has sane inputs.
func (cfg *MarketDataConfig) Validate() error {
	var errs error

	if len(cfg.Symbols) == 0 {
		errs = errors.Join(errs, fmt.Errorf("no symbols provided for market data service"))
	}
	if cfg.DataDir == "" {
		errs = errors.Join(errs, fmt.Errorf("data directory cannot be an empty string"))
	}
	if cfg.Start.IsZero() || cfg.End.IsZero() {
		errs = errors.Join(errs, fmt.Errorf("request range cannot have a zero bound"))
	}
	if cfg.Cancel == nil {
		errs = errors.Join(errs, fmt.Errorf("context cancellation function cannot be nil"))
	}

	return errs
}

// MarketData represents the market data acquisition service.
type MarketData struct {
	cfg          *MarketDataConfig
	store        *cache.Store
	files        *cache.FileStore
	orchestrator *gather.Orchestrator
	scheduler    gocron.Scheduler
	logger       *zerolog.Logger
	wg           sync.WaitGroup
}

// routes wires each market type to its provider sources in priority order.
// Crypto keeps the best of both of its sources, the other markets stop at
// the first source serving an adequate series.
func routes(limiter *ratelimit.Limiter, cfg *MarketDataConfig, logger *zerolog.Logger) map[shared.MarketType]gather.Route {
	binance := fetch.NewBinanceClient(&fetch.BinanceConfig{
		Limiter:    limiter,
		MaxRetries: cfg.MaxRetries,
		Logger:     logger,
	})
	coingecko := fetch.NewCoinGeckoClient(&fetch.CoinGeckoConfig{
		Limiter:    limiter,
		MaxRetries: cfg.MaxRetries,
		Logger:     logger,
	})
	yahoo := fetch.NewYahooClient(&fetch.YahooConfig{
		Limiter:    limiter,
		MaxRetries: cfg.MaxRetries,
		Logger:     logger,
	})
	alphavantage := fetch.NewAlphaVantageClient(&fetch.AlphaVantageConfig{
		APIKey:     cfg.AlphaVantageAPIKey,
		Limiter:    limiter,
		MaxRetries: cfg.MaxRetries,
		Logger:     logger,
	})
	currencylayer := fetch.NewCurrencyLayerClient(&fetch.CurrencyLayerConfig{
		APIKeys:    cfg.CurrencyLayerAPIKeys,
		Limiter:    limiter,
		MaxRetries: cfg.MaxRetries,
		Logger:     logger,
	})

	return map[shared.MarketType]gather.Route{
		shared.Crypto: {
			Sources: []gather.Source{
				{Adapter: binance, Spell: normalize.BinanceSymbol},
				{Adapter: coingecko, Spell: normalize.CoinGeckoID},
			},
			Policy: gather.BestOf,
		},
		shared.Forex: {
			Sources: []gather.Source{
				{Adapter: yahoo, Spell: normalize.YahooForexSymbol},
				{Adapter: currencylayer},
				{Adapter: alphavantage},
			},
			Policy: gather.FirstAdequate,
		},
		shared.Stocks: {
			Sources: []gather.Source{
				{Adapter: yahoo},
			},
			Policy: gather.FirstAdequate,
		},
	}
}

// NewMarketData initializes a new market data service.
func NewMarketData(cfg *MarketDataConfig) (*MarketData, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating market data config: %w", err)
	}

	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	logger := log.With().Str("service", "marketdata").Logger()

	limiterLogger := logger.With().Str("component", "ratelimit").Logger()
	limiter := ratelimit.NewLimiter(&ratelimit.LimiterConfig{Logger: &limiterLogger})

	storeLogger := logger.With().Str("component", "cache").Logger()
	store, err := cache.NewStore(&cache.StoreConfig{
		Path:   filepath.Join(cfg.DataDir, "cache.db"),
		TTL:    cfg.CacheTTL,
		Logger: &storeLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating cache store: %w", err)
	}

	files, err := cache.NewFileStore(&cache.FileStoreConfig{
		Dir:    filepath.Join(cfg.DataDir, "processed"),
		Logger: &storeLogger,
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("creating processed file store: %w", err)
	}

	fetchLogger := logger.With().Str("component", "fetch").Logger()
	gatherLogger := logger.With().Str("component", "gather").Logger()
	orchestrator := gather.NewOrchestrator(&gather.OrchestratorConfig{
		Routes:     routes(limiter, cfg, &fetchLogger),
		Store:      store,
		Files:      files,
		MaxWorkers: cfg.MaxWorkers,
		Logger:     &gatherLogger,
	})

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("creating job scheduler: %w", err)
	}

	service := &MarketData{
		cfg:          cfg,
		store:        store,
		files:        files,
		orchestrator: orchestrator,
		scheduler:    scheduler,
		logger:       &logger,
	}

	_, err = scheduler.NewJob(gocron.DurationJob(sweepInterval), gocron.NewTask(service.sweep))
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("creating sweep job: %w", err)
	}

	return service, nil
}

// sweep reclaims expired cache entries.
func (s *MarketData) sweep() {
	if _, err := s.store.Sweep(); err != nil {
		s.logger.Error().Msgf("sweeping cache: %v", err)
	}
}

// requests builds the batch requests for the configured symbols.
func (s *MarketData) requests() []shared.Request {
	reqs := make([]shared.Request, 0, len(s.cfg.Symbols))
	for _, symbol := range s.cfg.Symbols {
		reqs = append(reqs, shared.Request{
			Symbol:    symbol,
			Market:    s.cfg.Market,
			Start:     s.cfg.Start,
			End:       s.cfg.End,
			Timeframe: s.cfg.Timeframe,
		})
	}

	return reqs
}

// Run handles the lifecycle processes of the market data service.
func (s *MarketData) Run(ctx context.Context) {
	s.scheduler.Start()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		results := s.orchestrator.GatherBatch(ctx, s.requests())
		for idx := range results {
			result := &results[idx]
			switch {
			case result.Err != nil:
				s.logger.Error().Msgf("gathering %s: %v", result.Series.Symbol, result.Err)
			case result.Series.IsEmpty():
				s.logger.Warn().Msgf("no data gathered for %s (%s)", result.Series.Symbol,
					result.Series.Timeframe.String())
			default:
				s.logger.Info().Msgf("%s (%s): %d candles at quality %.2f",
					result.Series.Symbol, result.Series.Timeframe.String(),
					result.Series.Len(), result.Quality)
			}
		}

		stats, err := s.store.Stats()
		if err != nil {
			s.logger.Error().Msgf("reading cache stats: %v", err)
			return
		}
		s.logger.Info().Msgf("cache holds %d entries (%d expired)", stats.Entries, stats.Expired)
	}()

	<-ctx.Done()
	s.wg.Wait()

	if err := s.scheduler.Shutdown(); err != nil {
		s.logger.Error().Msgf("shutting down job scheduler: %v", err)
	}
	if err := s.store.Close(); err != nil {
		s.logger.Error().Msgf("closing cache store: %v", err)
	}
}
