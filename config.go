package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/dnldd/marketdata/shared"
	"github.com/joho/godotenv"
)

const (
	// defaultDataDir is the default directory for cache and processed data.
	defaultDataDir = "data"
	// defaultCacheTTLHours is the default cache entry lifetime in hours.
	defaultCacheTTLHours = 24
	// defaultMaxRetries is the default number of fetch retries per provider
	// call.
	defaultMaxRetries = 3
	// defaultTimeframe is the default candle timeframe.
	defaultTimeframe = "1d"
)

// Config is the configuration struct for the service.
type Config struct {
	// Symbols are the instrument symbols to gather.
	Symbols []string
	// Market is the market type of the tracked symbols.
	Market string
	// Start is the inclusive start date of the requested range.
	Start string
	// End is the inclusive end date of the requested range.
	End string
	// Timeframe is the requested candle timeframe.
	Timeframe string
	// DataDir is the directory cache and processed data are kept in.
	DataDir string
	// CacheTTLHours is the cache entry lifetime in hours.
	CacheTTLHours int
	// MaxRetries is the maximum number of fetch retries per provider call.
	MaxRetries int
	// MaxWorkers caps concurrent requests within a batch.
	MaxWorkers int
	// AlphaVantageAPIKey is the alpha vantage api key.
	AlphaVantageAPIKey string
	// CurrencyLayerAPIKey1 is the primary currency layer api key.
	CurrencyLayerAPIKey1 string
	// CurrencyLayerAPIKey2 is the secondary currency layer api key.
	CurrencyLayerAPIKey2 string

	registeredFlags map[string]bool
}

// Validate asserts the config has sane inputs.
func (cfg *Config) Validate() error {
	var errs error

	if len(cfg.Symbols) == 0 {
		errs = errors.Join(errs, fmt.Errorf("no symbols provided for market data service"))
	}
	if _, err := shared.ParseMarketType(cfg.Market); err != nil {
		errs = errors.Join(errs, err)
	}
	if _, err := shared.ParseTimeframe(cfg.Timeframe); err != nil {
		errs = errors.Join(errs, err)
	}

	start, err := time.Parse(shared.DateLayout, cfg.Start)
	if err != nil {
		errs = errors.Join(errs, fmt.Errorf("parsing start date: %w", err))
	}
	end, err := time.Parse(shared.DateLayout, cfg.End)
	if err != nil {
		errs = errors.Join(errs, fmt.Errorf("parsing end date: %w", err))
	}
	if err == nil && end.Before(start) {
		errs = errors.Join(errs, fmt.Errorf("request range end precedes its start"))
	}

	return errs
}

// registerFlag registers command line arguments of any type and tracks them to avoid reregistration.
func (cfg *Config) registerFlag(name string, value interface{}, usage string) error {
	if cfg.registeredFlags == nil {
		cfg.registeredFlags = make(map[string]bool)
	}

	if cfg.registeredFlags[name] {
		return nil
	}

	cfg.registeredFlags[name] = true

	defValue := os.Getenv(name)
	val := reflect.ValueOf(value)
	if val.Kind() != reflect.Ptr || val.IsNil() {
		return fmt.Errorf("%s: value must be a non-nil pointer", name)
	}

	switch val.Elem().Kind() {
	case reflect.String:
		flag.StringVar(value.(*string), name, defValue, usage)
	case reflect.Bool:
		var def bool
		if defValue != "" {
			def, _ = strconv.ParseBool(defValue)
		}
		flag.BoolVar(value.(*bool), name, def, usage)
	case reflect.Int:
		var def int
		if defValue != "" {
			def, _ = strconv.Atoi(defValue)
		}
		flag.IntVar(value.(*int), name, def, usage)
	case reflect.Slice:
		// Only handle []string
		if val.Elem().Type().Elem().Kind() == reflect.String {
			var def []string
			if defValue != "" {
				def = strings.Split(defValue, ",")
			}
			flag.Func(name, usage, func(s string) error {
				*value.(*[]string) = strings.Split(s, ",")
				return nil
			})
			// Set default if not provided via flag
			if len(def) > 0 {
				*value.(*[]string) = def
			}
		} else {
			return fmt.Errorf("%s: unsupported slice type", name)
		}
	default:
		return fmt.Errorf("%s: unsupported type", name)
	}

	return nil
}

// applyDefaults fills unset fields with their defaults.
func (cfg *Config) applyDefaults() {
	if cfg.DataDir == "" {
		cfg.DataDir = defaultDataDir
	}
	if cfg.CacheTTLHours == 0 {
		cfg.CacheTTLHours = defaultCacheTTLHours
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.Timeframe == "" {
		cfg.Timeframe = defaultTimeframe
	}
}

// loadConfig loads the configuration from environment variables and command line flags.
func loadConfig(cfg *Config, path string) error {
	if path == "" {
		path = ".env"
	}

	// Check if the expected .env file exists before loading it.
	_, err := os.Stat(path)
	if err == nil {
		err := godotenv.Load(path)
		if err != nil {
			return fmt.Errorf("loading .env file: %w", err)
		}
	}

	// Register command line arguments using loaded environment variables as defaults.
	for _, entry := range []struct {
		name  string
		value interface{}
		usage string
	}{
		{"symbols", &cfg.Symbols, "the instrument symbols to gather"},
		{"market", &cfg.Market, "the market type of the tracked symbols"},
		{"start", &cfg.Start, "the inclusive start date (yyyy-mm-dd)"},
		{"end", &cfg.End, "the inclusive end date (yyyy-mm-dd)"},
		{"timeframe", &cfg.Timeframe, "the candle timeframe"},
		{"datadir", &cfg.DataDir, "the cache and processed data directory"},
		{"cachettlhours", &cfg.CacheTTLHours, "the cache entry lifetime in hours"},
		{"maxretries", &cfg.MaxRetries, "the maximum fetch retries per provider call"},
		{"maxworkers", &cfg.MaxWorkers, "the maximum concurrent batch workers"},
		{"alphavantageapikey", &cfg.AlphaVantageAPIKey, "the alpha vantage api key"},
		{"currencylayerapikey1", &cfg.CurrencyLayerAPIKey1, "the primary currency layer api key"},
		{"currencylayerapikey2", &cfg.CurrencyLayerAPIKey2, "the secondary currency layer api key"},
	} {
		if err := cfg.registerFlag(entry.name, entry.value, entry.usage); err != nil {
			return err
		}
	}

	// Parse command-line flags.
	flag.Parse()

	cfg.applyDefaults()

	return cfg.Validate()
}
