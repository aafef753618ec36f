package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"flakewatch/internal/classify"
	"flakewatch/internal/engine"
	"flakewatch/internal/quarantine"
	"flakewatch/internal/report"
	"flakewatch/internal/resolution"
	"flakewatch/internal/verify"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Server wraps the MCP SDK server and exposes the engine operations as tools
// so an agent (or the web console's backend) can drive the full detect →
// quarantine → resolve → verify → report loop over stdio.
type Server struct {
	MCPServer *sdkmcp.Server
	engine    *engine.Engine
}

// NewServer creates an MCP server over the given engine.
func NewServer(eng *engine.Engine) *Server {
	s := &Server{engine: eng}
	s.MCPServer = sdkmcp.NewServer(
		&sdkmcp.Implementation{Name: "flakewatch", Version: "dev"},
		nil,
	)
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "classify_test",
		Description: "Classify a test (or every test in a project) as flaky or stable from its stored execution history, with confidence and reasons.",
	}, s.handleClassify)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "transition_quarantine",
		Description: "Apply a quarantine lifecycle action (approve, reject, resolved-manually, ...) to a test with the acting operator recorded in the audit trail.",
	}, s.handleTransitionQuarantine)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "record_resolution",
		Description: "Record a fix against a detected flaky pattern. Schedules a delayed effectiveness verification and moves the pattern's tests to monitoring.",
	}, s.handleRecordResolution)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "verify_resolution",
		Description: "Run the before/after effectiveness verification for a resolution. No-ops if already finalized; fails with not-yet-due before the window elapses.",
	}, s.handleVerifyResolution)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "effectiveness_report",
		Description: "Aggregate an organization's resolutions over a period: success/regression rates, cost savings, per-strategy breakdown and recommendations.",
	}, s.handleEffectivenessReport)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "proactive_recommendations",
		Description: "Get immediate / preventive / strategic / tooling recommendations for an organization.",
	}, s.handleProactiveRecommendations)
}

// --- Tool input/output types ---

type classifyInput struct {
	ProjectID string `json:"project_id" jsonschema:"project whose execution history to analyze"`
	TestName  string `json:"test_name,omitempty" jsonschema:"single test to classify (omit for all tests in the project)"`
	Quarantine bool  `json:"quarantine,omitempty" jsonschema:"auto-quarantine flaky tests above the confidence gate"`
}

type classifyOutput struct {
	Verdicts    []verdictOutput `json:"verdicts"`
	Quarantined []string        `json:"quarantined,omitempty"`
}

type verdictOutput struct {
	TestName           string   `json:"test_name"`
	IsFlaky            bool     `json:"is_flaky"`
	Confidence         float64  `json:"confidence"`
	FailureRatePercent float64  `json:"failure_rate_percent"`
	TotalRuns          int      `json:"total_runs"`
	Reasons            []string `json:"reasons"`
	Recommendation     string   `json:"recommendation,omitempty"`
}

type transitionInput struct {
	ProjectID string `json:"project_id" jsonschema:"project the test belongs to"`
	TestID    string `json:"test_id" jsonschema:"test identifier"`
	Action    string `json:"action" jsonschema:"lifecycle action (detect, approve, reject, fix-recorded, verify-pass, verify-fail, resolved-manually)"`
	Actor     string `json:"actor" jsonschema:"operator identity for the audit trail"`
	Reason    string `json:"reason,omitempty" jsonschema:"free-form transition reason"`
}

type transitionOutput struct {
	Record quarantine.Record `json:"record"`
}

type recordResolutionInput struct {
	PatternID         string   `json:"pattern_id" jsonschema:"detected pattern the fix addresses"`
	OrganizationID    string   `json:"organization_id" jsonschema:"owning organization"`
	ResolvedBy        string   `json:"resolved_by" jsonschema:"actor identity"`
	Strategy          string   `json:"strategy" jsonschema:"resolution strategy (quick-fix, systematic-change, process-improvement, infrastructure-upgrade)"`
	ActionsTaken      []string `json:"actions_taken,omitempty" jsonschema:"steps performed"`
	EstimatedEffort   string   `json:"estimated_effort,omitempty" jsonschema:"effort estimate label"`
	ActualEffortHours float64  `json:"actual_effort_hours,omitempty" jsonschema:"hours actually spent"`
	RelatedPatterns   []string `json:"related_patterns,omitempty" jsonschema:"other pattern ids this fix may affect"`
}

type recordResolutionOutput struct {
	Resolution resolution.Record `json:"resolution"`
}

type verifyResolutionInput struct {
	ResolutionID string `json:"resolution_id" jsonschema:"resolution to verify"`
}

type verifyResolutionOutput struct {
	Resolution resolution.Record `json:"resolution"`
}

type effectivenessReportInput struct {
	OrganizationID string `json:"organization_id" jsonschema:"organization to aggregate"`
	PeriodDays     int    `json:"period_days,omitempty" jsonschema:"aggregation period in days (default 30)"`
}

type effectivenessReportOutput struct {
	Summary report.Summary `json:"summary"`
}

type proactiveInput struct {
	OrganizationID string `json:"organization_id" jsonschema:"organization to advise"`
}

type proactiveOutput struct {
	Recommendations report.Recommendations `json:"recommendations"`
}

func toVerdictOutput(v classify.Verdict) verdictOutput {
	return verdictOutput{
		TestName:           v.TestName,
		IsFlaky:            v.IsFlaky,
		Confidence:         v.Confidence,
		FailureRatePercent: v.FailureRatePercent,
		TotalRuns:          v.TotalRuns,
		Reasons:            v.Reasons,
		Recommendation:     v.Recommendation,
	}
}

// --- Tool handlers ---

func (s *Server) handleClassify(ctx context.Context, _ *sdkmcp.CallToolRequest, input classifyInput) (*sdkmcp.CallToolResult, classifyOutput, error) {
	if input.ProjectID == "" {
		return nil, classifyOutput{}, fmt.Errorf("project_id is required")
	}
	now := time.Now()

	var out classifyOutput
	if input.TestName != "" {
		v, err := s.engine.ClassifyTest(input.ProjectID, input.TestName, now)
		if err != nil {
			return nil, classifyOutput{}, fmt.Errorf("classify_test: %w", err)
		}
		out.Verdicts = append(out.Verdicts, toVerdictOutput(v))
		if input.Quarantine {
			quarantined, err := s.engine.QuarantineFlagged(input.ProjectID, []classify.Verdict{v}, now)
			if err != nil {
				return nil, classifyOutput{}, fmt.Errorf("classify_test: %w", err)
			}
			out.Quarantined = quarantined
		}
		return nil, out, nil
	}

	verdicts, err := s.engine.ClassifyProject(input.ProjectID)
	if err != nil {
		return nil, classifyOutput{}, fmt.Errorf("classify_test: %w", err)
	}
	for _, v := range verdicts {
		out.Verdicts = append(out.Verdicts, toVerdictOutput(v))
	}
	if input.Quarantine {
		quarantined, err := s.engine.QuarantineFlagged(input.ProjectID, verdicts, now)
		if err != nil {
			return nil, classifyOutput{}, fmt.Errorf("classify_test: %w", err)
		}
		out.Quarantined = quarantined
	}
	return nil, out, nil
}

func (s *Server) handleTransitionQuarantine(ctx context.Context, _ *sdkmcp.CallToolRequest, input transitionInput) (*sdkmcp.CallToolResult, transitionOutput, error) {
	if input.TestID == "" || input.ProjectID == "" {
		return nil, transitionOutput{}, fmt.Errorf("project_id and test_id are required")
	}
	if input.Actor == "" {
		return nil, transitionOutput{}, fmt.Errorf("actor is required")
	}
	action, err := quarantine.ParseAction(input.Action)
	if err != nil {
		return nil, transitionOutput{}, err
	}
	rec, err := s.engine.TransitionQuarantine(input.ProjectID, input.TestID, action, input.Actor, input.Reason, time.Now())
	if err != nil {
		return nil, transitionOutput{}, fmt.Errorf("transition_quarantine: %w", err)
	}
	return nil, transitionOutput{Record: *rec}, nil
}

func (s *Server) handleRecordResolution(ctx context.Context, _ *sdkmcp.CallToolRequest, input recordResolutionInput) (*sdkmcp.CallToolResult, recordResolutionOutput, error) {
	rec, err := s.engine.RecordResolution(resolution.Request{
		PatternID:         input.PatternID,
		OrganizationID:    input.OrganizationID,
		ResolvedBy:        input.ResolvedBy,
		Strategy:          input.Strategy,
		ActionsTaken:      input.ActionsTaken,
		EstimatedEffort:   input.EstimatedEffort,
		ActualEffortHours: input.ActualEffortHours,
		RelatedPatterns:   input.RelatedPatterns,
	}, time.Now())
	if err != nil {
		return nil, recordResolutionOutput{}, fmt.Errorf("record_resolution: %w", err)
	}
	return nil, recordResolutionOutput{Resolution: *rec}, nil
}

func (s *Server) handleVerifyResolution(ctx context.Context, _ *sdkmcp.CallToolRequest, input verifyResolutionInput) (*sdkmcp.CallToolResult, verifyResolutionOutput, error) {
	rec, err := s.engine.Verify(input.ResolutionID, time.Now())
	if err != nil {
		if errors.Is(err, verify.ErrNotFound) || errors.Is(err, verify.ErrNotDue) {
			return nil, verifyResolutionOutput{}, err
		}
		return nil, verifyResolutionOutput{}, fmt.Errorf("verify_resolution: %w", err)
	}
	return nil, verifyResolutionOutput{Resolution: *rec}, nil
}

func (s *Server) handleEffectivenessReport(ctx context.Context, _ *sdkmcp.CallToolRequest, input effectivenessReportInput) (*sdkmcp.CallToolResult, effectivenessReportOutput, error) {
	if input.OrganizationID == "" {
		return nil, effectivenessReportOutput{}, fmt.Errorf("organization_id is required")
	}
	summary, err := s.engine.EffectivenessSummary(input.OrganizationID, input.PeriodDays, time.Now())
	if err != nil {
		return nil, effectivenessReportOutput{}, fmt.Errorf("effectiveness_report: %w", err)
	}
	return nil, effectivenessReportOutput{Summary: *summary}, nil
}

func (s *Server) handleProactiveRecommendations(ctx context.Context, _ *sdkmcp.CallToolRequest, input proactiveInput) (*sdkmcp.CallToolResult, proactiveOutput, error) {
	if input.OrganizationID == "" {
		return nil, proactiveOutput{}, fmt.Errorf("organization_id is required")
	}
	recs, err := s.engine.ProactiveRecommendations(input.OrganizationID, time.Now())
	if err != nil {
		return nil, proactiveOutput{}, fmt.Errorf("proactive_recommendations: %w", err)
	}
	return nil, proactiveOutput{Recommendations: *recs}, nil
}
