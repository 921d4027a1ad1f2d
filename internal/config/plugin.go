package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// PluginConfig is the opaque per-plugin configuration object.
type PluginConfig map[string]any

// PluginConfigPath returns <etcDir>/<kind>-<name>.json.
func PluginConfigPath(etcDir, kind, name string) string {
	return filepath.Join(etcDir, fmt.Sprintf("%s-%s.json", kind, name))
}

// LoadPluginConfig reads a plugin's config. A missing or empty file is an
// empty object. Anything that is not a JSON object is an error.
func LoadPluginConfig(path string) (PluginConfig, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return PluginConfig{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read plugin config %s: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return PluginConfig{}, nil
	}

	var cfg PluginConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse plugin config %s: %w", path, err)
	}
	if cfg == nil {
		// literal null
		cfg = PluginConfig{}
	}
	return cfg, nil
}

// Decode copies the config into v, which should be a pointer to a struct
// with json tags.
func (c PluginConfig) Decode(v any) error {
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode plugin config: %w", err)
	}
	return nil
}
