package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dnldd/marketdata/shared"
	"github.com/rs/zerolog"
)

// FileStoreConfig represents the configuration for the processed file store.
type FileStoreConfig struct {
	// Dir is the directory processed series files are kept in.
	Dir string
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// fileEntry is the on-disk form of a processed series.
type fileEntry struct {
	// Series is the processed series.
	Series shared.CandleSeries `json:"series"`
	// Quality is the quality score of the series.
	Quality float64 `json:"quality"`
}

// FileStore persists processed series as per-instrument json files. Unlike
// the TTL cache, processed files never expire and are consulted before any
// network fetch.
type FileStore struct {
	cfg *FileStoreConfig
}

// NewFileStore initializes a new processed file store, creating its
// directory when absent.
func NewFileStore(cfg *FileStoreConfig) (*FileStore, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating processed data directory: %w", err)
	}

	return &FileStore{cfg: cfg}, nil
}

// path returns the file path for the provided symbol and timeframe.
func (f *FileStore) path(symbol string, timeframe shared.Timeframe) string {
	return filepath.Join(f.cfg.Dir, fmt.Sprintf("%s_%s.json", symbol, timeframe.String()))
}

// Save persists the provided processed series, replacing any previous file.
func (f *FileStore) Save(series *shared.CandleSeries, quality float64) error {
	payload, err := json.MarshalIndent(&fileEntry{Series: *series, Quality: quality}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding processed series: %w", err)
	}

	path := f.path(series.Symbol, series.Timeframe)
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return fmt.Errorf("writing processed series: %w", err)
	}

	if f.cfg.Logger != nil {
		f.cfg.Logger.Debug().Msgf("saved processed series for %s (%s), %d candles",
			series.Symbol, series.Timeframe.String(), series.Len())
	}

	return nil
}

// Load fetches the processed series for the provided symbol and timeframe,
// reporting a miss when no file exists.
func (f *FileStore) Load(symbol string, timeframe shared.Timeframe) (*shared.CandleSeries, float64, bool, error) {
	payload, err := os.ReadFile(f.path(symbol, timeframe))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, 0, false, nil
	case err != nil:
		return nil, 0, false, fmt.Errorf("reading processed series: %w", err)
	}

	var entry fileEntry
	if err := json.Unmarshal(payload, &entry); err != nil {
		return nil, 0, false, fmt.Errorf("decoding processed series: %w", err)
	}

	return &entry.Series, entry.Quality, true, nil
}
