package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFromPath reads a config file (YAML or JSON) and returns the parsed Config
// merged over Default. Format is detected by extension (.yaml/.yml → YAML,
// .json → JSON) or by content (first non-whitespace char).
func LoadFromPath(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Load(data, filepath.Ext(path))
}

// Load parses config from bytes over Default, so absent keys keep their
// defaults. ext is the file extension (e.g. ".json", ".yaml") for format hint;
// empty = detect from content.
func Load(data []byte, ext string) (Config, error) {
	cfg := Default()

	ext = strings.ToLower(ext)
	if ext == ".yml" {
		ext = ".yaml"
	}
	if ext == ".yaml" {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config yaml: %w", err)
		}
		return cfg, nil
	}
	if ext == ".json" {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config json: %w", err)
		}
		return cfg, nil
	}
	// Detect: try JSON first (starts with {), else YAML
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config json: %w", err)
		}
		return cfg, nil
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config yaml: %w", err)
	}
	return cfg, nil
}
