package resolution

import (
	"testing"
	"time"
)

var now = time.Date(2026, 8, 10, 9, 0, 0, 0, time.UTC)

func validRequest() Request {
	return Request{
		PatternID:      "pattern-1",
		OrganizationID: "org-1",
		ResolvedBy:     "alice",
		Strategy:       "systematic-change",
		ActionsTaken:   []string{"removed shared fixture"},
	}
}

func TestNew(t *testing.T) {
	rec, err := New(validRequest(), now, 7)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if rec.ID == "" {
		t.Error("record missing id")
	}
	if rec.VerificationStatus != VerificationPending {
		t.Errorf("verification status = %s, want pending", rec.VerificationStatus)
	}
	if !rec.ResolvedAt.Equal(now) {
		t.Errorf("resolved at = %v", rec.ResolvedAt)
	}
	if want := now.AddDate(0, 0, 7); !rec.VerifyAfter.Equal(want) {
		t.Errorf("verify after = %v, want %v", rec.VerifyAfter, want)
	}
	if rec.FollowUpRequired {
		t.Error("systematic change must not require follow-up at creation")
	}
	if rec.VerifiedAt != nil || rec.Effectiveness != nil {
		t.Error("fresh record must not carry verification output")
	}
}

func TestNew_QuickFixRequiresFollowUp(t *testing.T) {
	req := validRequest()
	req.Strategy = "quick-fix"
	rec, err := New(req, now, 7)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !rec.FollowUpRequired {
		t.Error("quick fix must be flagged for follow-up")
	}
}

func TestNew_Validation(t *testing.T) {
	cases := map[string]func(*Request){
		"missing pattern":  func(r *Request) { r.PatternID = "" },
		"missing org":      func(r *Request) { r.OrganizationID = "" },
		"missing actor":    func(r *Request) { r.ResolvedBy = "" },
		"unknown strategy": func(r *Request) { r.Strategy = "hope" },
	}
	for name, mutate := range cases {
		req := validRequest()
		mutate(&req)
		if _, err := New(req, now, 7); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestNew_UniqueIDs(t *testing.T) {
	a, err := New(validRequest(), now, 7)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	b, err := New(validRequest(), now, 7)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a.ID == b.ID {
		t.Errorf("two records share id %q", a.ID)
	}
}

func TestParseStrategy(t *testing.T) {
	for _, valid := range []string{
		"quick-fix", "systematic-change", "process-improvement", "infrastructure-upgrade",
	} {
		if _, err := ParseStrategy(valid); err != nil {
			t.Errorf("ParseStrategy(%q): %v", valid, err)
		}
	}
	if _, err := ParseStrategy("rewrite"); err == nil {
		t.Error("expected error for unknown strategy")
	}
}
