package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/seismonet/noisecc/internal/types"
)

// YAMLProvider implements Provider for YAML file configuration
type YAMLProvider struct {
	path string
}

// NewYAMLProvider creates a new YAML file configuration provider
func NewYAMLProvider(path string) *YAMLProvider {
	return &YAMLProvider{path: path}
}

// LoadConfig reads and validates the configuration file
func (y *YAMLProvider) LoadConfig() (*types.Config, error) {
	data, err := os.ReadFile(y.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &types.Config{}
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Close is a no-op for file-based configuration
func (y *YAMLProvider) Close() error {
	return nil
}
