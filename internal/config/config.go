// Package config loads the optional .cmem/config.yaml tuning file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/causalmem/cmem/internal/edges"
	"github.com/causalmem/cmem/internal/retrieval"
)

// FileName is the config file inside the .cmem directory.
const FileName = "config.yaml"

// SearchDefaults are the per-query parameters callers may omit.
type SearchDefaults struct {
	TopK                int     `yaml:"topk"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	MaxDepth            int     `yaml:"max_depth"`
	KeywordLimit        int     `yaml:"keyword_limit"`
}

// Config is the full tuning surface. Every field has a working default;
// the file only needs the keys being overridden.
type Config struct {
	Retrieval retrieval.Config   `yaml:"retrieval"`
	Search    SearchDefaults     `yaml:"search"`
	Derive    edges.DeriveConfig `yaml:"derive"`
}

// Default returns the reference tuning.
func Default() Config {
	return Config{
		Retrieval: retrieval.DefaultConfig(),
		Search: SearchDefaults{
			TopK:                5,
			SimilarityThreshold: 0.5,
			MaxDepth:            2,
			KeywordLimit:        10,
		},
		Derive: edges.DefaultDeriveConfig(),
	}
}

// Load reads .cmem/config.yaml under root, falling back to Default when
// the file does not exist. A malformed file is an error, not a silent
// fallback.
func Load(root string) (Config, error) {
	cfg := Default()

	path := filepath.Join(root, ".cmem", FileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return cfg, nil
}

// Write saves cfg to .cmem/config.yaml under root.
func Write(root string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	path := filepath.Join(root, ".cmem", FileName)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
