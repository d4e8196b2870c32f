package normalize

import (
	"fmt"
	"strings"

	"github.com/dnldd/marketdata/shared"
)

// coinGeckoIDs maps common crypto tickers to their CoinGecko asset ids.
var coinGeckoIDs = map[string]string{
	"BTC":   "bitcoin",
	"ETH":   "ethereum",
	"ADA":   "cardano",
	"DOT":   "polkadot",
	"LINK":  "chainlink",
	"XRP":   "ripple",
	"LTC":   "litecoin",
	"BCH":   "bitcoin-cash",
	"BNB":   "binancecoin",
	"SOL":   "solana",
	"MATIC": "matic-network",
	"AVAX":  "avalanche-2",
	"ATOM":  "cosmos",
}

// Symbol normalizes the provided symbol to its canonical spelling for the
// provided market type.
func Symbol(symbol string, market shared.MarketType) (string, error) {
	switch market {
	case shared.Stocks:
		return StockSymbol(symbol), nil
	case shared.Forex:
		return ForexPair(symbol)
	case shared.Crypto:
		return CryptoSymbol(symbol), nil
	default:
		return "", fmt.Errorf("unknown market type: %d", market)
	}
}

// StockSymbol normalizes a stock symbol. Exchange suffixes (eg. .NS) are
// preserved.
func StockSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// ForexPair normalizes a forex pair to its bare 6-letter form, stripping
// separators and quote suffixes.
func ForexPair(symbol string) (string, error) {
	pair := strings.ToUpper(strings.TrimSpace(symbol))
	pair = strings.ReplaceAll(pair, "=X", "")
	pair = strings.ReplaceAll(pair, "/", "")
	pair = strings.ReplaceAll(pair, "-", "")
	pair = strings.ReplaceAll(pair, "_", "")

	if len(pair) != 6 {
		return pair, fmt.Errorf("unusual forex pair format: %s", pair)
	}

	return pair, nil
}

// SplitForexPair splits a normalized 6-letter forex pair into its base and
// quote currencies.
func SplitForexPair(pair string) (string, string, error) {
	if len(pair) != 6 {
		return "", "", fmt.Errorf("cannot split forex pair: %s", pair)
	}

	return pair[:3], pair[3:], nil
}

// CryptoSymbol normalizes a crypto symbol to its bare ticker, stripping the
// USDT then USD quote suffix and common separators.
func CryptoSymbol(symbol string) string {
	ticker := strings.ToUpper(strings.TrimSpace(symbol))
	ticker = strings.ReplaceAll(ticker, "-", "")
	ticker = strings.ReplaceAll(ticker, "_", "")

	switch {
	case strings.HasSuffix(ticker, "USDT"):
		ticker = strings.TrimSuffix(ticker, "USDT")
	case strings.HasSuffix(ticker, "USD"):
		ticker = strings.TrimSuffix(ticker, "USD")
	}

	return ticker
}

// BinanceSymbol maps a canonical crypto ticker to the spot pair spelling
// binance expects.
func BinanceSymbol(ticker string) string {
	ticker = strings.ToUpper(ticker)
	if strings.HasSuffix(ticker, "USDT") || strings.HasSuffix(ticker, "BTC") {
		return ticker
	}

	return ticker + "USDT"
}

// CoinGeckoID maps a canonical crypto ticker to the asset id coingecko
// expects. Unmapped tickers fall back to their lowercased form.
func CoinGeckoID(ticker string) string {
	id, ok := coinGeckoIDs[strings.ToUpper(ticker)]
	if !ok {
		return strings.ToLower(ticker)
	}

	return id
}

// YahooForexSymbol maps a canonical forex pair to the spelling yahoo
// finance expects.
func YahooForexSymbol(pair string) string {
	if strings.HasSuffix(pair, "=X") {
		return pair
	}

	return pair + "=X"
}
