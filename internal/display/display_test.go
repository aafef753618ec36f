package display

import "testing"

func TestQuarantineStatus(t *testing.T) {
	cases := []struct {
		code, want string
	}{
		{"active", "Active"},
		{"quarantined", "Quarantined"},
		{"monitoring", "Monitoring"},
		{"resolved", "Resolved"},
		{"unknown", "unknown"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := QuarantineStatus(tc.code); got != tc.want {
			t.Errorf("QuarantineStatus(%q) = %q, want %q", tc.code, got, tc.want)
		}
	}
}

func TestAction(t *testing.T) {
	cases := []struct {
		code, want string
	}{
		{"detect", "Detected"},
		{"approve", "Approved"},
		{"reject", "Rejected"},
		{"fix-recorded", "Fix Recorded"},
		{"verify-pass", "Verification Passed"},
		{"verify-fail", "Verification Failed"},
		{"resolved-manually", "Resolved Manually"},
		{"escalate", "escalate"},
	}
	for _, tc := range cases {
		if got := Action(tc.code); got != tc.want {
			t.Errorf("Action(%q) = %q, want %q", tc.code, got, tc.want)
		}
	}
}

func TestActionWithCode(t *testing.T) {
	if got := ActionWithCode("fix-recorded"); got != "Fix Recorded (fix-recorded)" {
		t.Errorf("got %q", got)
	}
	if got := ActionWithCode("escalate"); got != "escalate" {
		t.Errorf("got %q", got)
	}
}

func TestLifecyclePath(t *testing.T) {
	got := LifecyclePath([]string{"active", "quarantined", "monitoring", "resolved"})
	want := "Active → Quarantined → Monitoring → Resolved"
	if got != want {
		t.Errorf("LifecyclePath = %q, want %q", got, want)
	}
}

func TestStrategy(t *testing.T) {
	cases := []struct {
		code, want string
	}{
		{"quick-fix", "Quick Fix"},
		{"systematic-change", "Systematic Change"},
		{"process-improvement", "Process Improvement"},
		{"infrastructure-upgrade", "Infrastructure Upgrade"},
		{"rewrite", "rewrite"},
	}
	for _, tc := range cases {
		if got := Strategy(tc.code); got != tc.want {
			t.Errorf("Strategy(%q) = %q, want %q", tc.code, got, tc.want)
		}
	}
}

func TestStrategyWithCode(t *testing.T) {
	if got := StrategyWithCode("quick-fix"); got != "Quick Fix (quick-fix)" {
		t.Errorf("got %q", got)
	}
}

func TestVerificationStatus(t *testing.T) {
	cases := []struct {
		code, want string
	}{
		{"pending", "Pending"},
		{"verified", "Verified"},
		{"regression-detected", "Regression Detected"},
		{"other", "other"},
	}
	for _, tc := range cases {
		if got := VerificationStatus(tc.code); got != tc.want {
			t.Errorf("VerificationStatus(%q) = %q, want %q", tc.code, got, tc.want)
		}
	}
}

func TestExecutionStatus(t *testing.T) {
	if got := ExecutionStatus("passed"); got != "Passed" {
		t.Errorf("got %q", got)
	}
	if got := ExecutionStatus("errored"); got != "errored" {
		t.Errorf("got %q", got)
	}
}
