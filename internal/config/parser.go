package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Load reads connections.yaml from configDir into a GlobalConfig. A missing
// file yields an empty, valid GlobalConfig rather than an error, so a host
// that only ever passes connection details via flags never needs one.
func Load(configDir string) (*GlobalConfig, error) {
	cfg := &GlobalConfig{ConfigDir: configDir}

	path := filepath.Join(configDir, "connections.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.ConfigDir = configDir
	return cfg, nil
}

func (g *GlobalConfig) Save() error {
	if err := os.MkdirAll(g.ConfigDir, 0755); err != nil {
		return err
	}
	data, err := yaml.Marshal(g)
	if err != nil {
		return err
	}
	path := filepath.Join(g.ConfigDir, "connections.yaml")
	return os.WriteFile(path, data, 0644)
}
