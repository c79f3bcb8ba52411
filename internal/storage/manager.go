package storage

import (
	"context"
	"fmt"

	"github.com/seismonet/noisecc/internal/log"
	"github.com/seismonet/noisecc/internal/storage/sqlitestore"
	"github.com/seismonet/noisecc/internal/storage/timescaledb"
	"github.com/seismonet/noisecc/internal/types"
)

// Manager fans results out to all configured storage backends. Writes are
// synchronous: a day's jobs are only marked Done after its results landed.
type Manager struct {
	stores []CorrelationStore
}

// NewManager creates a Manager populated with all configured backends.
func NewManager(ctx context.Context, cfg *types.StorageConfig) (*Manager, error) {
	m := &Manager{}

	if cfg.TimescaleDB != nil && cfg.TimescaleDB.ConnectionString != "" {
		store, err := timescaledb.New(ctx, cfg.TimescaleDB.ConnectionString)
		if err != nil {
			return nil, fmt.Errorf("could not add TimescaleDB storage backend: %w", err)
		}
		m.stores = append(m.stores, store)
		log.Info("TimescaleDB correlation storage enabled")
	}

	if cfg.SQLite != nil && cfg.SQLite.Path != "" {
		store, err := sqlitestore.New(cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("could not add SQLite storage backend: %w", err)
		}
		m.stores = append(m.stores, store)
		log.Info("SQLite correlation storage enabled")
	}

	// Zero backends is legal when neither keep flag is set (the config
	// validator enforces that); results are computed and discarded.
	if len(m.stores) == 0 {
		log.Warn("no correlation storage configured, results will be discarded")
	}

	return m, nil
}

// NewManagerWithStores builds a Manager over explicit backends (used by tests).
func NewManagerWithStores(stores ...CorrelationStore) *Manager {
	return &Manager{stores: stores}
}

// StoreDailyStack writes a daily stack to every backend.
func (m *Manager) StoreDailyStack(ctx context.Context, s *types.DailyStack) error {
	for _, store := range m.stores {
		if err := store.StoreDailyStack(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

// StoreWindowCorrelation writes a window-level CCF to every backend.
func (m *Manager) StoreWindowCorrelation(ctx context.Context, w *types.WindowCorrelation) error {
	for _, store := range m.stores {
		if err := store.StoreWindowCorrelation(ctx, w); err != nil {
			return err
		}
	}
	return nil
}

// Close closes all backends.
func (m *Manager) Close() error {
	var firstErr error
	for _, store := range m.stores {
		if err := store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
