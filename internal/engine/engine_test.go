package engine

import (
	"errors"
	"strings"
	"testing"
	"time"

	"flakewatch/internal/classify"
	"flakewatch/internal/config"
	"flakewatch/internal/history"
	"flakewatch/internal/quarantine"
	"flakewatch/internal/resolution"
	"flakewatch/internal/store"
)

var now = time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)

func newEngine(t *testing.T) (*Engine, *store.MemStore) {
	t.Helper()
	st := store.NewMemStore()
	return New(st, config.Default()), st
}

// seedAlternating stores an alternating pass/fail history for one test,
// which the classifier flags with high confidence.
func seedAlternating(t *testing.T, st store.Store, test string, runs int) {
	t.Helper()
	var recs []history.ExecutionRecord
	for i := 0; i < runs; i++ {
		status := history.StatusPassed
		if i%2 == 1 {
			status = history.StatusFailed
		}
		recs = append(recs, history.ExecutionRecord{
			ProjectID:      "proj-1",
			TestName:       test,
			Status:         status,
			DurationMillis: 100,
			Timestamp:      now.Add(time.Duration(i-runs) * time.Hour),
		})
	}
	if err := st.InsertExecutions(recs); err != nil {
		t.Fatalf("InsertExecutions: %v", err)
	}
}

func seedStable(t *testing.T, st store.Store, test string, runs int) {
	t.Helper()
	var recs []history.ExecutionRecord
	for i := 0; i < runs; i++ {
		recs = append(recs, history.ExecutionRecord{
			ProjectID:      "proj-1",
			TestName:       test,
			Status:         history.StatusPassed,
			DurationMillis: 100,
			Timestamp:      now.Add(time.Duration(i-runs) * time.Hour),
		})
	}
	if err := st.InsertExecutions(recs); err != nil {
		t.Fatalf("InsertExecutions: %v", err)
	}
}

func TestClassifyProject(t *testing.T) {
	eng, st := newEngine(t)
	seedAlternating(t, st, "flaky_test", 6)
	seedStable(t, st, "stable_test", 6)

	verdicts, err := eng.ClassifyProject("proj-1")
	if err != nil {
		t.Fatalf("ClassifyProject: %v", err)
	}
	if len(verdicts) != 2 {
		t.Fatalf("verdicts = %d, want 2", len(verdicts))
	}
	byName := map[string]classify.Verdict{}
	for _, v := range verdicts {
		byName[v.TestName] = v
	}
	if !byName["flaky_test"].IsFlaky {
		t.Errorf("flaky_test not flagged: %+v", byName["flaky_test"])
	}
	if byName["stable_test"].IsFlaky {
		t.Errorf("stable_test flagged: %+v", byName["stable_test"])
	}
}

func TestClassifyTest_UnknownTest(t *testing.T) {
	eng, _ := newEngine(t)
	v, err := eng.ClassifyTest("proj-1", "ghost_test", now)
	if err != nil {
		t.Fatalf("ClassifyTest: %v", err)
	}
	if v.IsFlaky {
		t.Fatal("unknown test flagged flaky")
	}
	if len(v.Reasons) != 1 || !strings.Contains(v.Reasons[0], "Insufficient data") {
		t.Errorf("reasons = %v", v.Reasons)
	}
}

func TestQuarantineFlagged(t *testing.T) {
	eng, st := newEngine(t)
	seedAlternating(t, st, "flaky_test", 6)

	verdicts, err := eng.ClassifyProject("proj-1")
	if err != nil {
		t.Fatalf("ClassifyProject: %v", err)
	}
	quarantined, err := eng.QuarantineFlagged("proj-1", verdicts, now)
	if err != nil {
		t.Fatalf("QuarantineFlagged: %v", err)
	}
	if len(quarantined) != 1 || quarantined[0] != "flaky_test" {
		t.Fatalf("quarantined = %v", quarantined)
	}

	rec, err := st.GetQuarantine("proj-1", "flaky_test")
	if err != nil {
		t.Fatalf("GetQuarantine: %v", err)
	}
	if rec.Status != quarantine.StatusQuarantined {
		t.Errorf("status = %s", rec.Status)
	}
	if rec.QuarantinedBy != quarantine.SystemActor {
		t.Errorf("actor = %q", rec.QuarantinedBy)
	}

	// A second detection on an already-quarantined test is a no-op.
	quarantined, err = eng.QuarantineFlagged("proj-1", verdicts, now)
	if err != nil {
		t.Fatalf("QuarantineFlagged (repeat): %v", err)
	}
	if len(quarantined) != 0 {
		t.Errorf("repeat detection quarantined %v", quarantined)
	}
}

func TestQuarantineFlagged_BelowGate(t *testing.T) {
	eng, _ := newEngine(t)
	verdicts := []classify.Verdict{
		{TestName: "weak_signal", IsFlaky: true, Confidence: 55, Reasons: []string{"Intermittent failures"}},
		{TestName: "healthy", IsFlaky: false},
	}
	quarantined, err := eng.QuarantineFlagged("proj-1", verdicts, now)
	if err != nil {
		t.Fatalf("QuarantineFlagged: %v", err)
	}
	if len(quarantined) != 0 {
		t.Errorf("quarantined = %v, want none below the gate", quarantined)
	}
}

func TestTransitionQuarantine_FirstTouchAndAudit(t *testing.T) {
	eng, _ := newEngine(t)

	rec, err := eng.TransitionQuarantine("proj-1", "t1", quarantine.ActionApprove, "alice", "manual", now)
	if err != nil {
		t.Fatalf("TransitionQuarantine: %v", err)
	}
	if rec.Status != quarantine.StatusQuarantined {
		t.Errorf("status = %s", rec.Status)
	}

	events, err := eng.QuarantineAudit("proj-1", "t1")
	if err != nil {
		t.Fatalf("QuarantineAudit: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	if events[0].From != quarantine.StatusActive || events[0].To != quarantine.StatusQuarantined {
		t.Errorf("event = %+v", events[0])
	}
	if events[0].ProjectID != "proj-1" {
		t.Errorf("event project = %q, want proj-1", events[0].ProjectID)
	}
}

func TestTransitionQuarantine_Invalid(t *testing.T) {
	eng, _ := newEngine(t)
	_, err := eng.TransitionQuarantine("proj-1", "t1", quarantine.ActionVerifyPass, "alice", "", now)
	if !errors.Is(err, quarantine.ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
	// A failed transition must not leave an audit entry behind.
	events, err := eng.QuarantineAudit("proj-1", "t1")
	if err != nil {
		t.Fatalf("QuarantineAudit: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("events = %v", events)
	}
}

func TestRecordResolution(t *testing.T) {
	eng, st := newEngine(t)

	if err := st.PutPatternTests([]store.PatternTest{
		{PatternID: "pat-1", ProjectID: "proj-1", TestName: "flaky_test"},
		{PatternID: "pat-1", ProjectID: "proj-1", TestName: "untouched_test"},
	}); err != nil {
		t.Fatalf("PutPatternTests: %v", err)
	}
	// flaky_test is quarantined; untouched_test has no lifecycle record.
	if _, err := eng.TransitionQuarantine("proj-1", "flaky_test",
		quarantine.ActionDetect, quarantine.SystemActor, "flaky", now.Add(-time.Hour)); err != nil {
		t.Fatalf("TransitionQuarantine: %v", err)
	}

	rec, err := eng.RecordResolution(resolution.Request{
		PatternID:      "pat-1",
		OrganizationID: "org-1",
		ResolvedBy:     "alice",
		Strategy:       "systematic-change",
	}, now)
	if err != nil {
		t.Fatalf("RecordResolution: %v", err)
	}

	if rec.VerificationStatus != resolution.VerificationPending {
		t.Errorf("status = %s", rec.VerificationStatus)
	}
	if want := now.AddDate(0, 0, eng.Config().VerificationWindowDays); !rec.VerifyAfter.Equal(want) {
		t.Errorf("verify after = %v, want %v", rec.VerifyAfter, want)
	}

	q, err := st.GetQuarantine("proj-1", "flaky_test")
	if err != nil {
		t.Fatalf("GetQuarantine: %v", err)
	}
	if q.Status != quarantine.StatusMonitoring {
		t.Errorf("quarantined test status = %s, want monitoring", q.Status)
	}
	other, err := st.GetQuarantine("proj-1", "untouched_test")
	if err != nil {
		t.Fatalf("GetQuarantine: %v", err)
	}
	if other != nil {
		t.Errorf("test without a lifecycle record was transitioned: %+v", other)
	}
}

func TestRecordResolution_InvalidRequest(t *testing.T) {
	eng, _ := newEngine(t)
	_, err := eng.RecordResolution(resolution.Request{Strategy: "quick-fix"}, now)
	if err == nil {
		t.Fatal("expected validation error")
	}
}
