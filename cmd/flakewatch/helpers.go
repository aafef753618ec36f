package main

import (
	"fmt"

	"flakewatch/internal/config"
	"flakewatch/internal/engine"
	"flakewatch/internal/store"
)

// openEngine opens the SQLite store at dbPath and wires the engine with the
// config at cfgPath (defaults when empty). The caller owns Close on the
// returned store.
func openEngine(dbPath, cfgPath string) (*engine.Engine, *store.SqlStore, error) {
	cfg := config.Default()
	if cfgPath != "" {
		loaded, err := config.LoadFromPath(cfgPath)
		if err != nil {
			return nil, nil, err
		}
		cfg = loaded
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	return engine.New(st, cfg), st, nil
}
