// Package types defines configuration and result data shared across the application.
package types

import (
	"fmt"
)

// Whitening policy values
const (
	WhitenNone                = "none"
	WhitenAll                 = "all"
	WhitenComponentsDifferent = "components-different"
)

// Stack method values
const (
	StackLinear = "linear"
	StackPWS    = "pws"
)

// Config is the top-level configuration structure
type Config struct {
	// Database is the path to the SQLite database holding the job table
	// (and, for the SQLite config provider, the configuration tables).
	Database string        `yaml:"database"`
	Params   Params        `yaml:"params"`
	Filters  []FilterBand  `yaml:"filters"`
	Storage  StorageConfig `yaml:"storage,omitempty"`
}

// Params holds the cross-correlation processing parameters. It is loaded
// once per run and never mutated afterwards.
type Params struct {
	SamplingRate     float64  `yaml:"cc_sampling_rate"`
	AnalysisDuration float64  `yaml:"analysis_duration"`
	Overlap          float64  `yaml:"overlap"`
	MaxLag           float64  `yaml:"maxlag"`
	CorrDuration     float64  `yaml:"corr_duration"`
	Windsorizing     float64  `yaml:"windsorizing"`
	Whitening        string   `yaml:"whitening"`
	KeepAll          bool     `yaml:"keep_all"`
	KeepDays         bool     `yaml:"keep_days"`
	StackMethod      string   `yaml:"stack_method"`
	PWSTimegate      float64  `yaml:"pws_timegate"`
	PWSPower         float64  `yaml:"pws_power"`
	Components       []string `yaml:"components_to_compute"`
	AutoCorr         bool     `yaml:"autocorr"`
}

// FilterBand is a configured frequency passband. Each band is processed
// independently and produces separate CCFs.
type FilterBand struct {
	ID   int     `yaml:"id"`
	Low  float64 `yaml:"low"`
	High float64 `yaml:"high"`
}

// StorageConfig holds the configuration for the correlation storage backends
type StorageConfig struct {
	TimescaleDB *TimescaleDBConfig `yaml:"timescaledb,omitempty"`
	SQLite      *SQLiteStoreConfig `yaml:"sqlite,omitempty"`
}

// Enabled reports whether at least one storage backend is configured.
func (s *StorageConfig) Enabled() bool {
	if s.TimescaleDB != nil && s.TimescaleDB.ConnectionString != "" {
		return true
	}
	if s.SQLite != nil && s.SQLite.Path != "" {
		return true
	}
	return false
}

// TimescaleDBConfig describes a TimescaleDB correlation storage backend
type TimescaleDBConfig struct {
	ConnectionString string `yaml:"connection-string"`
}

// SQLiteStoreConfig describes an SQLite correlation storage backend
type SQLiteStoreConfig struct {
	Path string `yaml:"path"`
}

// Validate checks parameter ranges. It is called once at load time; a
// failure here is fatal for the run.
func (p *Params) Validate() error {
	if p.SamplingRate <= 0 {
		return fmt.Errorf("cc_sampling_rate must be positive, got %v", p.SamplingRate)
	}
	if p.CorrDuration <= 0 {
		return fmt.Errorf("corr_duration must be positive, got %v", p.CorrDuration)
	}
	if p.AnalysisDuration < p.CorrDuration {
		return fmt.Errorf("analysis_duration (%v) must be at least corr_duration (%v)",
			p.AnalysisDuration, p.CorrDuration)
	}
	if p.Overlap < 0 || p.Overlap >= 1 {
		return fmt.Errorf("overlap must be in [0,1), got %v", p.Overlap)
	}
	if p.MaxLag <= 0 {
		return fmt.Errorf("maxlag must be positive, got %v", p.MaxLag)
	}
	if p.Windsorizing < 0 && p.Windsorizing != -1 {
		return fmt.Errorf("windsorizing must be -1, 0 or positive, got %v", p.Windsorizing)
	}
	switch p.Whitening {
	case WhitenNone, WhitenAll, WhitenComponentsDifferent:
	default:
		return fmt.Errorf("whitening must be one of %q, %q, %q, got %q",
			WhitenNone, WhitenAll, WhitenComponentsDifferent, p.Whitening)
	}
	switch p.StackMethod {
	case StackLinear, StackPWS:
	default:
		return fmt.Errorf("stack_method must be %q or %q, got %q",
			StackLinear, StackPWS, p.StackMethod)
	}
	if p.StackMethod == StackPWS && p.PWSPower < 0 {
		return fmt.Errorf("pws_power must not be negative, got %v", p.PWSPower)
	}
	if len(p.Components) == 0 {
		return fmt.Errorf("components_to_compute must not be empty")
	}
	for _, c := range p.Components {
		if len(c) != 2 {
			return fmt.Errorf("component pair %q must be two letters", c)
		}
	}
	return nil
}
