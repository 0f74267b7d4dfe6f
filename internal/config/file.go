// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// LoadFileConfig loads a YAML config file without applying defaults or env overrides.
func LoadFileConfig(path string) (*FileConfig, error) {
	loader := NewLoader(path, "")
	return loader.loadFile(path)
}

// Dump renders the effective configuration as YAML with secrets masked.
func Dump(cfg AppConfig) ([]byte, error) {
	masked := cfg
	if masked.RemoteCache.Redis.Password != "" {
		masked.RemoteCache.Redis.Password = "***"
	}
	out, err := yaml.Marshal(masked)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return out, nil
}
