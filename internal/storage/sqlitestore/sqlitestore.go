// Package sqlitestore stores correlation results in a local SQLite database,
// with the sample data msgpack-encoded into a blob column.
package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	_ "modernc.org/sqlite"

	"github.com/seismonet/noisecc/internal/types"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS daily_ccfs (
    pair        TEXT NOT NULL,
    components  TEXT NOT NULL,
    filter_id   INTEGER NOT NULL,
    day         TEXT NOT NULL,
    sample_rate REAL NOT NULL,
    ncorr       INTEGER NOT NULL,
    data        BLOB NOT NULL,
    PRIMARY KEY (pair, components, filter_id, day)
);
CREATE TABLE IF NOT EXISTS window_ccfs (
    pair         TEXT NOT NULL,
    components   TEXT NOT NULL,
    filter_id    INTEGER NOT NULL,
    day          TEXT NOT NULL,
    window_start TEXT NOT NULL,
    sample_rate  REAL NOT NULL,
    data         BLOB NOT NULL,
    PRIMARY KEY (pair, components, filter_id, window_start)
);
`

// Store writes results to an SQLite database file.
type Store struct {
	db *sql.DB
}

// New opens or creates the result database.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite result db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply pragma: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create result tables: %w", err)
	}
	return &Store{db: db}, nil
}

// StoreDailyStack upserts a daily stack.
func (s *Store) StoreDailyStack(ctx context.Context, stack *types.DailyStack) error {
	blob, err := msgpack.Marshal(stack.Data)
	if err != nil {
		return fmt.Errorf("encode daily stack: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO daily_ccfs (pair, components, filter_id, day, sample_rate, ncorr, data)
         VALUES (?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT (pair, components, filter_id, day)
         DO UPDATE SET sample_rate = excluded.sample_rate, ncorr = excluded.ncorr, data = excluded.data`,
		stack.Pair, stack.Components, stack.FilterID, stack.Day,
		stack.SampleRate, stack.NCorr, blob,
	)
	if err != nil {
		return fmt.Errorf("store daily stack: %w", err)
	}
	return nil
}

// StoreWindowCorrelation upserts a window-level CCF.
func (s *Store) StoreWindowCorrelation(ctx context.Context, w *types.WindowCorrelation) error {
	blob, err := msgpack.Marshal(w.Data)
	if err != nil {
		return fmt.Errorf("encode window correlation: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO window_ccfs (pair, components, filter_id, day, window_start, sample_rate, data)
         VALUES (?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT (pair, components, filter_id, window_start)
         DO UPDATE SET sample_rate = excluded.sample_rate, data = excluded.data`,
		w.Pair, w.Components, w.FilterID, w.Day,
		w.WindowStart.UTC().Format(time.RFC3339Nano), w.SampleRate, blob,
	)
	if err != nil {
		return fmt.Errorf("store window correlation: %w", err)
	}
	return nil
}

// GetDailyStack loads one daily stack, mainly for verification and tests.
func (s *Store) GetDailyStack(ctx context.Context, pair, components string, filterID int, day string) (*types.DailyStack, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT sample_rate, ncorr, data FROM daily_ccfs
         WHERE pair = ? AND components = ? AND filter_id = ? AND day = ?`,
		pair, components, filterID, day,
	)

	stack := &types.DailyStack{Pair: pair, Components: components, FilterID: filterID, Day: day}
	var blob []byte
	if err := row.Scan(&stack.SampleRate, &stack.NCorr, &blob); err != nil {
		return nil, fmt.Errorf("load daily stack: %w", err)
	}
	if err := msgpack.Unmarshal(blob, &stack.Data); err != nil {
		return nil, fmt.Errorf("decode daily stack: %w", err)
	}
	stack.SampleCount = len(stack.Data)
	return stack, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
