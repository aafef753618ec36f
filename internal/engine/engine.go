package engine

import (
	"fmt"
	"log/slog"
	"time"

	"flakewatch/internal/classify"
	"flakewatch/internal/config"
	"flakewatch/internal/history"
	"flakewatch/internal/logging"
	"flakewatch/internal/quarantine"
	"flakewatch/internal/report"
	"flakewatch/internal/resolution"
	"flakewatch/internal/store"
	"flakewatch/internal/verify"
)

// Engine is the facade the CLI and MCP surfaces call. It composes the
// history aggregator, classifier, quarantine state machine, resolution
// tracker, verifier and reporter over one injected store. It holds no
// mutable state of its own; every call reads fresh from the store.
type Engine struct {
	store    store.Store
	cfg      config.Config
	verifier *verify.Verifier
	reporter *report.Reporter
	logger   *slog.Logger
}

// New wires the engine over a store with the given configuration.
func New(st store.Store, cfg config.Config) *Engine {
	return &Engine{
		store:    st,
		cfg:      cfg,
		verifier: verify.New(st, cfg),
		reporter: report.New(st, cfg),
		logger:   logging.New("engine"),
	}
}

// Store exposes the underlying store for ingestion surfaces.
func (e *Engine) Store() store.Store { return e.store }

// Config returns the engine configuration.
func (e *Engine) Config() config.Config { return e.cfg }

// ClassifyProject rebuilds per-test timelines from stored executions and
// classifies every test in the project.
func (e *Engine) ClassifyProject(projectID string) ([]classify.Verdict, error) {
	records, err := e.store.ListProjectExecutions(projectID)
	if err != nil {
		return nil, fmt.Errorf("load executions: %w", err)
	}
	timelines, err := history.Aggregate(projectID, records, e.cfg.HistoryLimit)
	if err != nil {
		return nil, err
	}
	verdicts := make([]classify.Verdict, 0, len(timelines))
	for _, tl := range timelines {
		verdicts = append(verdicts, classify.Classify(tl))
	}
	return verdicts, nil
}

// ClassifyTest classifies a single test from its stored history.
func (e *Engine) ClassifyTest(projectID, testName string, now time.Time) (classify.Verdict, error) {
	records, err := e.store.ListExecutions(projectID, testName, time.Time{}, now.Add(time.Second))
	if err != nil {
		return classify.Verdict{}, fmt.Errorf("load executions: %w", err)
	}
	timelines, err := history.Aggregate(projectID, records, e.cfg.HistoryLimit)
	if err != nil {
		return classify.Verdict{}, err
	}
	if len(timelines) == 0 {
		return classify.Verdict{TestName: testName, Reasons: []string{"Insufficient data (fewer than 2 runs)"}}, nil
	}
	return classify.Classify(timelines[0]), nil
}

// QuarantineFlagged applies the automatic detect transition for every flaky
// verdict whose confidence clears the configured gate. Returns the tests
// quarantined by this call.
func (e *Engine) QuarantineFlagged(projectID string, verdicts []classify.Verdict, now time.Time) ([]string, error) {
	var quarantined []string
	for _, v := range verdicts {
		if !v.IsFlaky || v.Confidence < e.cfg.QuarantineConfidenceGate {
			continue
		}
		reason := fmt.Sprintf("Flaky (confidence %.0f): %s", v.Confidence, v.Reasons[0])
		rec, err := e.TransitionQuarantine(projectID, v.TestName, quarantine.ActionDetect,
			quarantine.SystemActor, reason, now)
		if err != nil {
			// Already quarantined or mid-lifecycle; detection is a no-op then.
			e.logger.Debug("detect transition skipped", "test", v.TestName, "err", err)
			continue
		}
		if rec.Status == quarantine.StatusQuarantined {
			quarantined = append(quarantined, v.TestName)
		}
	}
	return quarantined, nil
}

// TransitionQuarantine applies one lifecycle action to a test, creating the
// default active record on first touch, and appends to the audit trail.
func (e *Engine) TransitionQuarantine(projectID, testID string, action quarantine.Action, actor, reason string, now time.Time) (*quarantine.Record, error) {
	rec, err := e.store.GetQuarantine(projectID, testID)
	if err != nil {
		return nil, fmt.Errorf("load quarantine: %w", err)
	}
	if rec == nil {
		rec = &quarantine.Record{TestID: testID, ProjectID: projectID, Status: quarantine.StatusActive}
	}

	ev, err := quarantine.Apply(rec, action, actor, reason, now)
	if err != nil {
		return nil, err
	}
	if err := e.store.SaveQuarantine(rec); err != nil {
		return nil, fmt.Errorf("save quarantine: %w", err)
	}
	if err := e.store.AppendQuarantineEvent(ev); err != nil {
		return nil, fmt.Errorf("append audit event: %w", err)
	}
	e.logger.Info("quarantine transition",
		"test", testID, "from", string(ev.From), "to", string(ev.To),
		"action", string(action), "actor", actor)
	return rec, nil
}

// QuarantineAudit returns the full audit trail for a test within a project.
func (e *Engine) QuarantineAudit(projectID, testID string) ([]quarantine.Event, error) {
	return e.store.ListQuarantineEvents(projectID, testID)
}

// RecordResolution validates and persists a remediation claim with a pending
// verification due after the configured window, and moves the pattern's
// quarantined tests into monitoring. The scheduler is not the source of
// truth: the pending check is re-derivable from resolved_at + window by the
// reconciliation scan.
func (e *Engine) RecordResolution(req resolution.Request, now time.Time) (*resolution.Record, error) {
	rec, err := resolution.New(req, now, e.cfg.VerificationWindowDays)
	if err != nil {
		return nil, err
	}
	if err := e.store.CreateResolution(rec); err != nil {
		return nil, fmt.Errorf("create resolution: %w", err)
	}
	e.logger.Info("resolution recorded",
		"resolution", rec.ID, "pattern", rec.PatternID,
		"strategy", string(rec.Strategy), "verify_after", rec.VerifyAfter)

	tests, err := e.store.ListPatternTests(rec.PatternID)
	if err != nil {
		return nil, fmt.Errorf("load pattern tests: %w", err)
	}
	for _, pt := range tests {
		q, err := e.store.GetQuarantine(pt.ProjectID, pt.TestName)
		if err != nil {
			return nil, fmt.Errorf("load quarantine: %w", err)
		}
		if q == nil || q.Status != quarantine.StatusQuarantined {
			continue
		}
		if _, err := e.TransitionQuarantine(pt.ProjectID, pt.TestName,
			quarantine.ActionFixRecorded, req.ResolvedBy,
			"Fix recorded for pattern "+rec.PatternID, now); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

// Verify runs the effectiveness verifier for one resolution.
func (e *Engine) Verify(resolutionID string, now time.Time) (*resolution.Record, error) {
	return e.verifier.Verify(resolutionID, now)
}

// Verifier exposes the verifier for the reconciler.
func (e *Engine) Verifier() *verify.Verifier { return e.verifier }

// EffectivenessSummary aggregates an organization's resolutions over a period.
func (e *Engine) EffectivenessSummary(orgID string, periodDays int, now time.Time) (*report.Summary, error) {
	return e.reporter.Summary(orgID, periodDays, now)
}

// ProactiveRecommendations derives forward-looking advice for an organization.
func (e *Engine) ProactiveRecommendations(orgID string, now time.Time) (*report.Recommendations, error) {
	return e.reporter.Proactive(orgID, now)
}
