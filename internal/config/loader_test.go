package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadFromPath_YAML(t *testing.T) {
	path := writeFile(t, "config.yaml",
		"history_limit: 100\nverification_window_days: 14\n")
	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if cfg.HistoryLimit != 100 {
		t.Errorf("history limit = %d, want 100", cfg.HistoryLimit)
	}
	if cfg.VerificationWindowDays != 14 {
		t.Errorf("verification window = %d, want 14", cfg.VerificationWindowDays)
	}
	// Keys absent from the file keep their defaults.
	if cfg.BaselineWindowDays != Default().BaselineWindowDays {
		t.Errorf("baseline window = %d, want default", cfg.BaselineWindowDays)
	}
}

func TestLoadFromPath_JSON(t *testing.T) {
	path := writeFile(t, "config.json",
		`{"cost_per_failure": 50, "reconcile_parallel": 8}`)
	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if cfg.CostPerFailure != 50 {
		t.Errorf("cost per failure = %v, want 50", cfg.CostPerFailure)
	}
	if cfg.ReconcileParallel != 8 {
		t.Errorf("reconcile parallel = %d, want 8", cfg.ReconcileParallel)
	}
	if cfg.ReportPeriodDays != Default().ReportPeriodDays {
		t.Errorf("report period = %d, want default", cfg.ReportPeriodDays)
	}
}

func TestLoadFromPath_Missing(t *testing.T) {
	if _, err := LoadFromPath(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_DetectJSON(t *testing.T) {
	cfg, err := Load([]byte(`{"history_limit": 25}`), "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HistoryLimit != 25 {
		t.Errorf("history limit = %d, want 25", cfg.HistoryLimit)
	}
}

func TestLoad_DetectYAML(t *testing.T) {
	cfg, err := Load([]byte("quarantine_confidence_gate: 85\n"), "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.QuarantineConfidenceGate != 85 {
		t.Errorf("confidence gate = %v, want 85", cfg.QuarantineConfidenceGate)
	}
}

func TestLoad_BadInput(t *testing.T) {
	if _, err := Load([]byte(`{"history_limit": `), ".json"); err == nil {
		t.Error("expected error for truncated json")
	}
	if _, err := Load([]byte(":\n-:::"), ".yaml"); err == nil {
		t.Error("expected error for malformed yaml")
	}
}
