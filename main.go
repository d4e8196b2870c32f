package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/dnldd/marketdata/service"
	"github.com/dnldd/marketdata/shared"
)

// handleTermination processes context cancellation signals or interrupt signals from the OS.
func handleTermination(ctx context.Context, cancel context.CancelFunc) {
	// Listen for interrupt signals.
	signals := []os.Signal{os.Interrupt}
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, signals...)

	// Wait for the context to be cancelled or an interrupt signal.
	for {
		select {
		case <-ctx.Done():
			return

		case <-interrupt:
			cancel()
		}
	}
}

func main() {
	var cfg Config
	err := loadConfig(&cfg, "")
	if err != nil {
		log.Printf("loading config: %v", err)
		return
	}

	market, _ := shared.ParseMarketType(cfg.Market)
	timeframe, _ := shared.ParseTimeframe(cfg.Timeframe)
	start, _ := time.Parse(shared.DateLayout, cfg.Start)
	end, _ := time.Parse(shared.DateLayout, cfg.End)

	var currencyLayerKeys []string
	for _, key := range []string{cfg.CurrencyLayerAPIKey1, cfg.CurrencyLayerAPIKey2} {
		if key != "" {
			currencyLayerKeys = append(currencyLayerKeys, key)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serviceCfg := service.MarketDataConfig{
		Symbols:              cfg.Symbols,
		Market:               market,
		Start:                start,
		End:                  end,
		Timeframe:            timeframe,
		DataDir:              cfg.DataDir,
		CacheTTL:             time.Duration(cfg.CacheTTLHours) * time.Hour,
		MaxRetries:           cfg.MaxRetries,
		MaxWorkers:           cfg.MaxWorkers,
		AlphaVantageAPIKey:   cfg.AlphaVantageAPIKey,
		CurrencyLayerAPIKeys: currencyLayerKeys,
		Cancel:               cancel,
	}
	marketData, err := service.NewMarketData(&serviceCfg)
	if err != nil {
		log.Printf("creating market data service: %v", err)
		return
	}

	go handleTermination(ctx, cancel)
	marketData.Run(ctx)
}
