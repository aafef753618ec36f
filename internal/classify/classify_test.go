package classify

import (
	"strings"
	"testing"
	"time"

	"flakewatch/internal/history"
)

func timeline(test string, statuses []history.Status, durations []int64) history.Timeline {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	tl := history.Timeline{ProjectID: "proj-1", TestName: test}
	for i, s := range statuses {
		var d int64 = 100
		if durations != nil {
			d = durations[i]
		}
		tl.Records = append(tl.Records, history.ExecutionRecord{
			ProjectID:      "proj-1",
			TestName:       test,
			Status:         s,
			DurationMillis: d,
			Timestamp:      base.Add(time.Duration(i) * time.Minute),
		})
	}
	return tl
}

func hasReason(v Verdict, substr string) bool {
	for _, r := range v.Reasons {
		if strings.Contains(r, substr) {
			return true
		}
	}
	return false
}

func TestClassify_AlternatingIsFlaky(t *testing.T) {
	tl := timeline("flaky_test", []history.Status{
		history.StatusPassed, history.StatusFailed,
		history.StatusPassed, history.StatusFailed,
		history.StatusPassed, history.StatusFailed,
	}, nil)

	v := Classify(tl)
	if !v.IsFlaky {
		t.Fatalf("expected flaky verdict, reasons=%v", v.Reasons)
	}
	if !hasReason(v, "Intermittent failures") {
		t.Errorf("missing intermittent reason: %v", v.Reasons)
	}
	if !hasReason(v, "Alternating pass/fail") {
		t.Errorf("missing alternating reason: %v", v.Reasons)
	}
	if v.FailureRatePercent != 50 {
		t.Errorf("failure rate = %.1f, want 50", v.FailureRatePercent)
	}
	if v.Confidence < ConfidenceFloor || v.Confidence > ConfidenceCap {
		t.Errorf("confidence %.1f outside [%d, %d]", v.Confidence, ConfidenceFloor, ConfidenceCap)
	}
	// Exactly half failing does not exceed the disable threshold.
	if v.Recommendation != "Enable automatic retry" {
		t.Errorf("recommendation = %q", v.Recommendation)
	}
}

func TestClassify_StablePassingIsNotFlaky(t *testing.T) {
	tl := timeline("stable_test", []history.Status{
		history.StatusPassed, history.StatusPassed, history.StatusPassed,
		history.StatusPassed, history.StatusPassed, history.StatusPassed,
	}, []int64{100, 100, 100, 100, 100, 100})

	v := Classify(tl)
	if v.IsFlaky {
		t.Fatalf("expected non-flaky verdict, reasons=%v", v.Reasons)
	}
	if len(v.Reasons) != 0 {
		t.Errorf("expected no reasons, got %v", v.Reasons)
	}
	if v.Confidence != 0 || v.Recommendation != "" {
		t.Errorf("non-flaky verdict should carry no confidence or recommendation: %+v", v)
	}
}

func TestClassify_AlwaysFailingIsNotFlaky(t *testing.T) {
	// A test that fails every run is broken, not flaky: the intermittent
	// band excludes it and there are no status transitions.
	tl := timeline("broken_test", []history.Status{
		history.StatusFailed, history.StatusFailed, history.StatusFailed,
		history.StatusFailed, history.StatusFailed,
	}, []int64{100, 100, 100, 100, 100})

	v := Classify(tl)
	if v.IsFlaky {
		t.Fatalf("expected non-flaky verdict for a 100%%-failing test, reasons=%v", v.Reasons)
	}
}

func TestClassify_DurationVarianceSignal(t *testing.T) {
	// All passing so the other two signals cannot fire; the spread alone
	// pushes the coefficient of variation past the threshold.
	tl := timeline("slow_test", []history.Status{
		history.StatusPassed, history.StatusPassed, history.StatusPassed,
		history.StatusPassed,
	}, []int64{10, 10, 10, 1000})

	v := Classify(tl)
	if !v.IsFlaky {
		t.Fatalf("expected flaky verdict from duration variance, reasons=%v", v.Reasons)
	}
	if !hasReason(v, "duration variance") {
		t.Errorf("missing variance reason: %v", v.Reasons)
	}
	if len(v.Reasons) != 1 {
		t.Errorf("expected variance to be the only reason, got %v", v.Reasons)
	}
}

func TestClassify_SingleBlipDoesNotAlternate(t *testing.T) {
	// [pass, fail, pass] has a 100% transition ratio but only one failure;
	// the failure-count guard keeps the alternating signal quiet. The
	// intermittent band still fires at 33%.
	tl := timeline("blip_test", []history.Status{
		history.StatusPassed, history.StatusFailed, history.StatusPassed,
	}, []int64{100, 100, 100})

	v := Classify(tl)
	if hasReason(v, "Alternating") {
		t.Errorf("alternating signal fired on a single failure: %v", v.Reasons)
	}
	if !hasReason(v, "Intermittent failures") {
		t.Errorf("expected intermittent reason: %v", v.Reasons)
	}
}

func TestClassify_InsufficientData(t *testing.T) {
	tl := timeline("new_test", []history.Status{history.StatusFailed}, nil)

	v := Classify(tl)
	if v.IsFlaky {
		t.Fatal("single run must not be flagged")
	}
	if len(v.Reasons) != 1 || !strings.Contains(v.Reasons[0], "Insufficient data") {
		t.Errorf("reasons = %v", v.Reasons)
	}
}

func TestClassify_DisableRecommendation(t *testing.T) {
	// Failures above half of total runs recommend disabling.
	tl := timeline("mostly_failing", []history.Status{
		history.StatusFailed, history.StatusFailed, history.StatusPassed,
		history.StatusFailed, history.StatusFailed, history.StatusPassed,
		history.StatusFailed, history.StatusFailed, history.StatusPassed,
		history.StatusFailed,
	}, nil)

	v := Classify(tl)
	if !v.IsFlaky {
		t.Fatalf("expected flaky verdict, reasons=%v", v.Reasons)
	}
	if v.Recommendation != "Disable test until fixed" {
		t.Errorf("recommendation = %q", v.Recommendation)
	}
}

func TestClassify_ConfidenceCapped(t *testing.T) {
	// Failure rate 0.5 plus a huge CV would exceed the cap uncapped.
	tl := timeline("wild_test", []history.Status{
		history.StatusPassed, history.StatusFailed,
		history.StatusPassed, history.StatusFailed,
	}, []int64{1, 1, 1, 10000})

	v := Classify(tl)
	if !v.IsFlaky {
		t.Fatalf("expected flaky verdict, reasons=%v", v.Reasons)
	}
	if v.Confidence != ConfidenceCap {
		t.Errorf("confidence = %.1f, want capped at %d", v.Confidence, ConfidenceCap)
	}
}

func TestClassify_ZeroDurations(t *testing.T) {
	// Zero mean duration must not panic or fire the variance signal.
	tl := timeline("no_durations", []history.Status{
		history.StatusPassed, history.StatusFailed,
		history.StatusPassed, history.StatusFailed,
	}, []int64{0, 0, 0, 0})

	v := Classify(tl)
	if hasReason(v, "duration variance") {
		t.Errorf("variance signal fired on zero durations: %v", v.Reasons)
	}
	if !v.IsFlaky {
		t.Fatalf("alternating/intermittent should still flag: %v", v.Reasons)
	}
}

func TestFailureRate(t *testing.T) {
	if got := FailureRate(nil); got != 0 {
		t.Errorf("FailureRate(nil) = %v, want 0", got)
	}
	records := []history.ExecutionRecord{
		{Status: history.StatusFailed},
		{Status: history.StatusPassed},
		{Status: history.StatusFailed},
		{Status: history.StatusSkipped},
	}
	if got := FailureRate(records); got != 0.5 {
		t.Errorf("FailureRate = %v, want 0.5", got)
	}
}
