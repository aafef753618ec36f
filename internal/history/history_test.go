package history

import (
	"testing"
	"time"
)

func rec(test string, status Status, ts time.Time) ExecutionRecord {
	return ExecutionRecord{
		ProjectID: "proj-1",
		TestName:  test,
		Status:    status,
		Timestamp: ts,
	}
}

func TestAggregate_GroupsAndOrders(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	records := []ExecutionRecord{
		rec("b_test", StatusPassed, base),
		rec("a_test", StatusFailed, base.Add(2*time.Hour)),
		rec("a_test", StatusPassed, base),
		rec("a_test", StatusPassed, base.Add(time.Hour)),
	}

	timelines, err := Aggregate("proj-1", records, 50)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if len(timelines) != 2 {
		t.Fatalf("expected 2 timelines, got %d", len(timelines))
	}
	if timelines[0].TestName != "a_test" || timelines[1].TestName != "b_test" {
		t.Fatalf("timelines not sorted by name: %q, %q", timelines[0].TestName, timelines[1].TestName)
	}

	a := timelines[0]
	if len(a.Records) != 3 {
		t.Fatalf("a_test records = %d, want 3", len(a.Records))
	}
	for i := 1; i < len(a.Records); i++ {
		if a.Records[i].Timestamp.After(a.Records[i-1].Timestamp) {
			t.Errorf("records not newest-first at index %d", i)
		}
	}
	if a.Records[0].Status != StatusFailed {
		t.Errorf("newest record should be the failed one, got %s", a.Records[0].Status)
	}
}

func TestAggregate_TruncatesToLimit(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	var records []ExecutionRecord
	for i := 0; i < 80; i++ {
		records = append(records, rec("t", StatusPassed, base.Add(time.Duration(i)*time.Minute)))
	}

	timelines, err := Aggregate("proj-1", records, 0) // 0 → DefaultLimit
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if got := len(timelines[0].Records); got != DefaultLimit {
		t.Fatalf("records = %d, want %d", got, DefaultLimit)
	}
	// The cap keeps the most recent records.
	newest := base.Add(79 * time.Minute)
	if !timelines[0].Records[0].Timestamp.Equal(newest) {
		t.Errorf("newest record = %v, want %v", timelines[0].Records[0].Timestamp, newest)
	}
}

func TestAggregate_ProjectMismatch(t *testing.T) {
	records := []ExecutionRecord{
		rec("t", StatusPassed, time.Now()),
		{ProjectID: "other", TestName: "t", Status: StatusPassed, Timestamp: time.Now()},
	}
	if _, err := Aggregate("proj-1", records, 50); err == nil {
		t.Fatal("expected error for inconsistent project identifiers")
	}
}

func TestAggregate_Empty(t *testing.T) {
	timelines, err := Aggregate("proj-1", nil, 50)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if len(timelines) != 0 {
		t.Fatalf("expected no timelines, got %d", len(timelines))
	}
}

func TestParseStatus(t *testing.T) {
	for _, valid := range []string{"passed", "failed", "skipped"} {
		if _, err := ParseStatus(valid); err != nil {
			t.Errorf("ParseStatus(%q): %v", valid, err)
		}
	}
	if _, err := ParseStatus("errored"); err == nil {
		t.Error("expected error for unknown status")
	}
}

func TestValidate(t *testing.T) {
	good := ExecutionRecord{ProjectID: "p", TestName: "t", Status: StatusPassed}
	if err := good.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	cases := []ExecutionRecord{
		{TestName: "t", Status: StatusPassed},                                       // no project
		{ProjectID: "p", Status: StatusPassed},                                      // no test
		{ProjectID: "p", TestName: "t", Status: "broken"},                           // bad status
		{ProjectID: "p", TestName: "t", Status: StatusPassed, DurationMillis: -1},   // negative duration
		{ProjectID: "p", TestName: "t", Status: StatusPassed, RetryCount: -1},       // negative retries
	}
	for i, c := range cases {
		if err := c.Validate(); err == nil {
			t.Errorf("case %d: expected validation error", i)
		}
	}
}
