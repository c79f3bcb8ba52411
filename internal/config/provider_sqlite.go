package config

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/seismonet/noisecc/internal/types"
)

// SQLiteProvider implements Provider for SQLite database configuration.
// The parameters live in a name/value "config" table and the passbands in a
// "filters" table, alongside the job table in the same database file.
type SQLiteProvider struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteProvider creates a new SQLite configuration provider
func NewSQLiteProvider(dbPath string) (*SQLiteProvider, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	return &SQLiteProvider{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// LoadConfig loads the complete configuration from the SQLite database
func (s *SQLiteProvider) LoadConfig() (*types.Config, error) {
	values, err := s.loadValues()
	if err != nil {
		return nil, fmt.Errorf("failed to load config table: %w", err)
	}

	cfg := &types.Config{Database: s.dbPath}
	if err := applyValues(cfg, values); err != nil {
		return nil, err
	}

	filters, err := s.loadFilters()
	if err != nil {
		return nil, fmt.Errorf("failed to load filters: %w", err)
	}
	cfg.Filters = filters

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Close closes the database connection
func (s *SQLiteProvider) Close() error {
	return s.db.Close()
}

func (s *SQLiteProvider) loadValues() (map[string]string, error) {
	rows, err := s.db.Query(`SELECT name, value FROM config`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		values[name] = value
	}
	return values, rows.Err()
}

func (s *SQLiteProvider) loadFilters() ([]types.FilterBand, error) {
	rows, err := s.db.Query(`SELECT ref, low, high FROM filters WHERE used = 1 ORDER BY ref`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var filters []types.FilterBand
	for rows.Next() {
		var f types.FilterBand
		if err := rows.Scan(&f.ID, &f.Low, &f.High); err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}
	return filters, rows.Err()
}

func applyValues(cfg *types.Config, values map[string]string) error {
	var err error

	getFloat := func(name string, dst *float64) {
		if err != nil {
			return
		}
		v, ok := values[name]
		if !ok {
			return
		}
		if *dst, err = strconv.ParseFloat(v, 64); err != nil {
			err = fmt.Errorf("config %s: %w", name, err)
		}
	}
	getBool := func(name string, dst *bool) {
		if err != nil {
			return
		}
		v, ok := values[name]
		if !ok {
			return
		}
		*dst = v == "Y" || v == "true" || v == "1"
	}

	p := &cfg.Params
	getFloat("cc_sampling_rate", &p.SamplingRate)
	getFloat("analysis_duration", &p.AnalysisDuration)
	getFloat("overlap", &p.Overlap)
	getFloat("maxlag", &p.MaxLag)
	getFloat("corr_duration", &p.CorrDuration)
	getFloat("windsorizing", &p.Windsorizing)
	getFloat("pws_timegate", &p.PWSTimegate)
	getFloat("pws_power", &p.PWSPower)
	getBool("keep_all", &p.KeepAll)
	getBool("keep_days", &p.KeepDays)
	getBool("autocorr", &p.AutoCorr)
	if err != nil {
		return err
	}

	if v, ok := values["whitening"]; ok {
		p.Whitening = v
	}
	if v, ok := values["stack_method"]; ok {
		p.StackMethod = v
	}
	if v, ok := values["components_to_compute"]; ok {
		for _, c := range strings.Split(v, ",") {
			if c = strings.TrimSpace(c); c != "" {
				p.Components = append(p.Components, c)
			}
		}
	}

	if v, ok := values["timescaledb_connection_string"]; ok && v != "" {
		cfg.Storage.TimescaleDB = &types.TimescaleDBConfig{ConnectionString: v}
	}
	if v, ok := values["sqlite_store_path"]; ok && v != "" {
		cfg.Storage.SQLite = &types.SQLiteStoreConfig{Path: v}
	}

	return nil
}
