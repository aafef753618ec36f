package config

// Config carries the engine tuning knobs. Zero values are never used
// directly; start from Default and override from a file.
type Config struct {
	// HistoryLimit caps the records per test fed to the classifier.
	HistoryLimit int `yaml:"history_limit" json:"history_limit"`

	// QuarantineConfidenceGate is the minimum classifier confidence for an
	// automatic quarantine. Verdicts below the gate are reported but the
	// test stays active.
	QuarantineConfidenceGate float64 `yaml:"quarantine_confidence_gate" json:"quarantine_confidence_gate"`

	// BaselineWindowDays is the pre-fix comparison window for verification.
	BaselineWindowDays int `yaml:"baseline_window_days" json:"baseline_window_days"`

	// VerificationWindowDays is the post-fix observation window before a
	// resolution can be verified.
	VerificationWindowDays int `yaml:"verification_window_days" json:"verification_window_days"`

	// CostPerFailure is the estimated cost of one CI failure, in the
	// organization's currency unit.
	CostPerFailure float64 `yaml:"cost_per_failure" json:"cost_per_failure"`

	// ReportPeriodDays is the default aggregation window for reports.
	ReportPeriodDays int `yaml:"report_period_days" json:"report_period_days"`

	// CostSavingsTarget drives the savings-vs-target recommendation.
	CostSavingsTarget float64 `yaml:"cost_savings_target" json:"cost_savings_target"`

	// ReconcileIntervalSeconds is the due-verification scan interval.
	ReconcileIntervalSeconds int `yaml:"reconcile_interval_seconds" json:"reconcile_interval_seconds"`

	// ReconcileParallel bounds concurrent verifications per scan.
	ReconcileParallel int `yaml:"reconcile_parallel" json:"reconcile_parallel"`
}

// Default returns the engine defaults.
func Default() Config {
	return Config{
		HistoryLimit:             50,
		QuarantineConfidenceGate: 70,
		BaselineWindowDays:       14,
		VerificationWindowDays:   7,
		CostPerFailure:           25,
		ReportPeriodDays:         30,
		CostSavingsTarget:        1000,
		ReconcileIntervalSeconds: 300,
		ReconcileParallel:        4,
	}
}
