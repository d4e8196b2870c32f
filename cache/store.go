package cache

import (
	"crypto/md5"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/dnldd/marketdata/shared"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

const (
	// createCacheTable creates the candle cache table if it does not exist.
	createCacheTable = `CREATE TABLE IF NOT EXISTS candle_cache (
		key        TEXT PRIMARY KEY,
		symbol     TEXT NOT NULL,
		market     TEXT NOT NULL,
		timeframe  TEXT NOT NULL,
		payload    TEXT NOT NULL,
		quality    REAL NOT NULL,
		created_at INTEGER NOT NULL
	)`
	// createCacheIndex indexes cache rows by creation time for sweeps.
	createCacheIndex = `CREATE INDEX IF NOT EXISTS idx_cache_created ON candle_cache(created_at)`
	// upsertCacheRow inserts or replaces a cache row.
	upsertCacheRow = `INSERT OR REPLACE INTO candle_cache
		(key, symbol, market, timeframe, payload, quality, created_at)
		VALUES (?,?,?,?,?,?,?)`
	// selectCacheRow fetches a cache row by key.
	selectCacheRow = `SELECT payload, quality, created_at FROM candle_cache WHERE key = ?`
	// deleteExpiredRows removes rows older than the provided cutoff.
	deleteExpiredRows = `DELETE FROM candle_cache WHERE created_at < ?`
	// deleteAllRows removes every cache row.
	deleteAllRows = `DELETE FROM candle_cache`
	// countRows counts all cache rows.
	countRows = `SELECT COUNT(*) FROM candle_cache`
	// countExpiredRows counts rows older than the provided cutoff.
	countExpiredRows = `SELECT COUNT(*) FROM candle_cache WHERE created_at < ?`
)

// StoreConfig represents the configuration for the candle cache store.
type StoreConfig struct {
	// Path is the sqlite database file path.
	Path string
	// TTL is the lifetime of a cache entry.
	TTL time.Duration
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// StoreStats summarizes the state of the cache store.
type StoreStats struct {
	// Entries is the total number of cached rows.
	Entries int
	// Expired is the number of rows past their lifetime awaiting a sweep.
	Expired int
}

// Store is a TTL cache for gathered candle series backed by sqlite. Entries
// are expired lazily at read time and reclaimed by periodic sweeps.
type Store struct {
	cfg *StoreConfig
	db  *sql.DB
	mtx sync.Mutex

	now func() time.Time
}

// NewStore opens (or creates) the cache database and runs migrations.
func NewStore(cfg *StoreConfig) (*Store, error) {
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}

	// WAL mode keeps concurrent batch reads from blocking writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting wal mode: %w", err)
	}

	for _, stmt := range []string{createCacheTable, createCacheIndex} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrating cache database: %w", err)
		}
	}

	return &Store{
		cfg: cfg,
		db:  db,
		now: time.Now,
	}, nil
}

// Fingerprint derives the deterministic cache key for the provided request
// and source. Identical requests always map to the same key.
func Fingerprint(req *shared.Request, source string) string {
	raw := fmt.Sprintf("%s_%s_%s_%s_%s_%s", req.Symbol, req.Market.String(),
		req.Start.UTC().Format(shared.DateLayout), req.End.UTC().Format(shared.DateLayout),
		req.Timeframe.String(), source)

	sum := md5.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Put caches the provided series under the provided key, replacing any
// previous entry.
func (s *Store) Put(key string, series *shared.CandleSeries, quality float64) error {
	payload, err := json.Marshal(series)
	if err != nil {
		return fmt.Errorf("encoding cache payload: %w", err)
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()

	_, err = s.db.Exec(upsertCacheRow, key, series.Symbol, series.Market.String(),
		series.Timeframe.String(), string(payload), quality, s.now().Unix())
	if err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}

	return nil
}

// Get fetches the series cached under the provided key. Entries past their
// lifetime are treated as misses and left for the next sweep.
func (s *Store) Get(key string) (*shared.CandleSeries, float64, bool, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	var payload string
	var quality float64
	var createdAt int64

	err := s.db.QueryRow(selectCacheRow, key).Scan(&payload, &quality, &createdAt)
	switch {
	case err == sql.ErrNoRows:
		return nil, 0, false, nil
	case err != nil:
		return nil, 0, false, fmt.Errorf("reading cache entry: %w", err)
	}

	if s.now().Sub(time.Unix(createdAt, 0)) >= s.cfg.TTL {
		return nil, 0, false, nil
	}

	var series shared.CandleSeries
	if err := json.Unmarshal([]byte(payload), &series); err != nil {
		return nil, 0, false, fmt.Errorf("decoding cache payload: %w", err)
	}

	return &series, quality, true, nil
}

// Sweep removes all entries past their lifetime and returns the number of
// rows reclaimed.
func (s *Store) Sweep() (int, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	cutoff := s.now().Add(-s.cfg.TTL).Unix()
	result, err := s.db.Exec(deleteExpiredRows, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweeping cache: %w", err)
	}

	swept, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting swept cache rows: %w", err)
	}

	if swept > 0 && s.cfg.Logger != nil {
		s.cfg.Logger.Info().Msgf("swept %d expired cache entries", swept)
	}

	return int(swept), nil
}

// Stats summarizes the cache store's current state.
func (s *Store) Stats() (StoreStats, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	var stats StoreStats
	if err := s.db.QueryRow(countRows).Scan(&stats.Entries); err != nil {
		return stats, fmt.Errorf("counting cache rows: %w", err)
	}

	cutoff := s.now().Add(-s.cfg.TTL).Unix()
	if err := s.db.QueryRow(countExpiredRows, cutoff).Scan(&stats.Expired); err != nil {
		return stats, fmt.Errorf("counting expired cache rows: %w", err)
	}

	return stats, nil
}

// Clear removes every cache entry.
func (s *Store) Clear() error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if _, err := s.db.Exec(deleteAllRows); err != nil {
		return fmt.Errorf("clearing cache: %w", err)
	}

	return nil
}

// Close closes the cache database.
func (s *Store) Close() error {
	return s.db.Close()
}
