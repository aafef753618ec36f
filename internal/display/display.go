// Package display provides human-readable names for machine codes.
//
// Rule: code is for machines, words are for humans.
// Use these functions in CLI output, markdown reports, logs, and docs.
// Keep raw codes for JSON fields, map keys, and equality comparisons.
package display

import "strings"

// --- Quarantine lifecycle ---

var quarantineStatuses = map[string]string{
	"active":      "Active",
	"quarantined": "Quarantined",
	"monitoring":  "Monitoring",
	"resolved":    "Resolved",
}

// QuarantineStatus returns the human-readable name for a lifecycle status.
// Unknown codes are returned as-is.
func QuarantineStatus(code string) string {
	if name, ok := quarantineStatuses[code]; ok {
		return name
	}
	return code
}

var actions = map[string]string{
	"detect":            "Detected",
	"approve":           "Approved",
	"reject":            "Rejected",
	"fix-recorded":      "Fix Recorded",
	"verify-pass":       "Verification Passed",
	"verify-fail":       "Verification Failed",
	"resolved-manually": "Resolved Manually",
}

// Action returns the human-readable name for a lifecycle action.
// "fix-recorded" -> "Fix Recorded".
func Action(code string) string {
	if name, ok := actions[code]; ok {
		return name
	}
	return code
}

// ActionWithCode returns "Fix Recorded (fix-recorded)" format for
// dual-audience contexts.
func ActionWithCode(code string) string {
	if name, ok := actions[code]; ok {
		return name + " (" + code + ")"
	}
	return code
}

// LifecyclePath converts a slice of status codes to a human-readable path.
// ["active", "quarantined", "monitoring"] -> "Active -> Quarantined -> Monitoring"
func LifecyclePath(codes []string) string {
	names := make([]string, len(codes))
	for i, c := range codes {
		names[i] = QuarantineStatus(c)
	}
	return strings.Join(names, " → ")
}

// --- Resolution strategies ---

var strategies = map[string]string{
	"quick-fix":              "Quick Fix",
	"systematic-change":      "Systematic Change",
	"process-improvement":    "Process Improvement",
	"infrastructure-upgrade": "Infrastructure Upgrade",
}

// Strategy returns the human-readable name for a resolution strategy.
// "quick-fix" -> "Quick Fix".
func Strategy(code string) string {
	if name, ok := strategies[code]; ok {
		return name
	}
	return code
}

// StrategyWithCode returns "Quick Fix (quick-fix)" format.
func StrategyWithCode(code string) string {
	if name, ok := strategies[code]; ok {
		return name + " (" + code + ")"
	}
	return code
}

// --- Verification ---

var verificationStatuses = map[string]string{
	"pending":             "Pending",
	"verified":            "Verified",
	"regression-detected": "Regression Detected",
}

// VerificationStatus returns the human-readable name for a verification status.
func VerificationStatus(code string) string {
	if name, ok := verificationStatuses[code]; ok {
		return name
	}
	return code
}

// --- Execution outcomes ---

var executionStatuses = map[string]string{
	"passed":  "Passed",
	"failed":  "Failed",
	"skipped": "Skipped",
}

// ExecutionStatus returns the human-readable name for an execution outcome.
func ExecutionStatus(code string) string {
	if name, ok := executionStatuses[code]; ok {
		return name
	}
	return code
}
