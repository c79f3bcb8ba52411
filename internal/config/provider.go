// Package config provides configuration loading from YAML files and SQLite
// databases.
package config

import (
	"fmt"

	"github.com/seismonet/noisecc/internal/types"
)

// Provider defines the interface for configuration data sources
type Provider interface {
	// LoadConfig loads the complete configuration, validated and ready to
	// be shared read-only across all jobs.
	LoadConfig() (*types.Config, error)

	Close() error
}

// Load builds a provider for the given source and loads the configuration
// through it. Exactly one of yamlPath and dbPath must be set.
func Load(yamlPath, dbPath string) (*types.Config, error) {
	var provider Provider
	var err error

	switch {
	case yamlPath != "" && dbPath != "":
		return nil, fmt.Errorf("only one of -config and -db may be given")
	case yamlPath != "":
		provider = NewYAMLProvider(yamlPath)
	case dbPath != "":
		provider, err = NewSQLiteProvider(dbPath)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("no configuration source given")
	}
	defer provider.Close()

	return provider.LoadConfig()
}

func validate(cfg *types.Config) error {
	if cfg.Database == "" {
		return fmt.Errorf("no job database configured")
	}
	if err := cfg.Params.Validate(); err != nil {
		return fmt.Errorf("invalid parameters: %w", err)
	}
	// Both keep flags off is allowed (compute and discard); keeping
	// anything needs somewhere to put it.
	if (cfg.Params.KeepAll || cfg.Params.KeepDays) && !cfg.Storage.Enabled() {
		return fmt.Errorf("keep_all/keep_days set but no storage backend configured")
	}
	for _, f := range cfg.Filters {
		if f.Low <= 0 || f.High <= f.Low {
			return fmt.Errorf("filter %d: passband [%v, %v] is not a valid range", f.ID, f.Low, f.High)
		}
		if f.High > cfg.Params.SamplingRate/2 {
			return fmt.Errorf("filter %d: high corner %v exceeds Nyquist %v", f.ID, f.High, cfg.Params.SamplingRate/2)
		}
	}
	return nil
}
