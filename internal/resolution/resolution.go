package resolution

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Strategy is the kind of remediation applied to a flaky-test pattern.
type Strategy string

const (
	// StrategyQuickFix is a targeted patch; inherently higher regression risk.
	StrategyQuickFix Strategy = "quick-fix"
	// StrategySystematicChange restructures the test or code under test.
	StrategySystematicChange Strategy = "systematic-change"
	// StrategyProcessImprovement changes how the team works (review gates,
	// retry policy, ownership).
	StrategyProcessImprovement Strategy = "process-improvement"
	// StrategyInfrastructureUpgrade addresses the environment (runners,
	// shared services, network).
	StrategyInfrastructureUpgrade Strategy = "infrastructure-upgrade"
)

// ParseStrategy validates a strategy name at the API boundary, before any
// record is created.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyQuickFix, StrategySystematicChange,
		StrategyProcessImprovement, StrategyInfrastructureUpgrade:
		return Strategy(s), nil
	}
	return "", fmt.Errorf("unknown resolution strategy %q", s)
}

// VerificationStatus tracks the single irreversible pending → verified or
// pending → regression-detected transition.
type VerificationStatus string

const (
	VerificationPending    VerificationStatus = "pending"
	VerificationVerified   VerificationStatus = "verified"
	VerificationRegression VerificationStatus = "regression-detected"
)

// EffectivenessMetrics is computed by the verifier; never supplied externally.
type EffectivenessMetrics struct {
	FailureReductionPercent float64 `json:"failure_reduction_percent"`
	StabilityImprovement    float64 `json:"stability_improvement"`
	CostSavings             float64 `json:"cost_savings"`
	// TimeToStabilizationDays is the first post-fix day whose failure rate
	// dropped to 10% or below (0 = stabilized on day one). -1 means the
	// window never stabilized.
	TimeToStabilizationDays int `json:"time_to_stabilization_days"`
}

// Record is one remediation claim against a detected pattern. Created once,
// mutated exactly once when verification completes, never deleted.
type Record struct {
	ID                 string               `json:"id"`
	PatternID          string               `json:"pattern_id"`
	OrganizationID     string               `json:"organization_id"`
	ResolvedBy         string               `json:"resolved_by"`
	Strategy           Strategy             `json:"resolution_strategy"`
	ActionsTaken       []string             `json:"actions_taken,omitempty"`
	EstimatedEffort    string               `json:"estimated_effort,omitempty"`
	ActualEffortHours  float64              `json:"actual_effort_hours"`
	ResolvedAt         time.Time            `json:"resolved_at"`
	VerifyAfter        time.Time            `json:"verify_after"`
	VerifiedAt         *time.Time           `json:"verified_at,omitempty"`
	VerificationStatus VerificationStatus   `json:"verification_status"`
	Effectiveness      *EffectivenessMetrics `json:"effectiveness,omitempty"`
	FollowUpRequired   bool                 `json:"follow_up_required"`
	FollowUpNotes      string               `json:"follow_up_notes,omitempty"`
	RelatedPatterns    []string             `json:"related_patterns,omitempty"`
}

// Request is the validated input to New.
type Request struct {
	PatternID         string
	OrganizationID    string
	ResolvedBy        string
	Strategy          string
	ActionsTaken      []string
	EstimatedEffort   string
	ActualEffortHours float64
	RelatedPatterns   []string
}

// New validates the request and builds a pending record. Quick fixes are
// always flagged for follow-up regardless of later verification outcome.
// verificationWindowDays sets VerifyAfter relative to now.
func New(req Request, now time.Time, verificationWindowDays int) (*Record, error) {
	if req.PatternID == "" {
		return nil, fmt.Errorf("resolution requires a pattern id")
	}
	if req.OrganizationID == "" {
		return nil, fmt.Errorf("resolution requires an organization id")
	}
	if req.ResolvedBy == "" {
		return nil, fmt.Errorf("resolution requires an actor identity")
	}
	strategy, err := ParseStrategy(req.Strategy)
	if err != nil {
		return nil, err
	}

	return &Record{
		ID:                 uuid.NewString(),
		PatternID:          req.PatternID,
		OrganizationID:     req.OrganizationID,
		ResolvedBy:         req.ResolvedBy,
		Strategy:           strategy,
		ActionsTaken:       req.ActionsTaken,
		EstimatedEffort:    req.EstimatedEffort,
		ActualEffortHours:  req.ActualEffortHours,
		ResolvedAt:         now,
		VerifyAfter:        now.AddDate(0, 0, verificationWindowDays),
		VerificationStatus: VerificationPending,
		FollowUpRequired:   strategy == StrategyQuickFix,
		RelatedPatterns:    req.RelatedPatterns,
	}, nil
}
