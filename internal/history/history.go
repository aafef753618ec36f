package history

import (
	"fmt"
	"sort"
	"time"
)

// Status is the outcome of one test execution.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// ParseStatus validates a raw status string from an ingestion source.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPassed, StatusFailed, StatusSkipped:
		return Status(s), nil
	}
	return "", fmt.Errorf("unknown execution status %q (expected passed, failed or skipped)", s)
}

// ExecutionRecord is one test's outcome within one run, already normalized
// by the ingestion layer. Immutable once stored.
type ExecutionRecord struct {
	ProjectID      string    `json:"project_id"`
	TestName       string    `json:"test_name"`
	SuiteName      string    `json:"suite_name"`
	Status         Status    `json:"status"`
	DurationMillis int64     `json:"duration_ms"`
	Timestamp      time.Time `json:"timestamp"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	StackTrace     string    `json:"stack_trace,omitempty"`
	RetryCount     int       `json:"retry_count"`
}

// Validate checks field constraints at the ingestion boundary.
func (r *ExecutionRecord) Validate() error {
	if r.ProjectID == "" {
		return fmt.Errorf("execution record missing project_id")
	}
	if r.TestName == "" {
		return fmt.Errorf("execution record missing test_name")
	}
	if _, err := ParseStatus(string(r.Status)); err != nil {
		return err
	}
	if r.DurationMillis < 0 {
		return fmt.Errorf("negative duration %d for test %q", r.DurationMillis, r.TestName)
	}
	if r.RetryCount < 0 {
		return fmt.Errorf("negative retry count %d for test %q", r.RetryCount, r.TestName)
	}
	return nil
}

// Timeline is the ordered (newest first) execution history for one test,
// capped to the analysis limit. Rebuilt on every analysis call; nothing
// derived from it outlives the call.
type Timeline struct {
	ProjectID string
	TestName  string
	Records   []ExecutionRecord
}

// DefaultLimit is the analysis cap on records per test.
const DefaultLimit = 50

// Aggregate groups records by test name into per-test timelines, newest
// first, truncated to limit (DefaultLimit if limit <= 0). All records must
// belong to projectID; a mismatch is a validation error. Timelines are
// returned sorted by test name for deterministic output.
func Aggregate(projectID string, records []ExecutionRecord, limit int) ([]Timeline, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	groups := make(map[string][]ExecutionRecord)
	for _, r := range records {
		if r.ProjectID != projectID {
			return nil, fmt.Errorf("record for test %q belongs to project %q, want %q",
				r.TestName, r.ProjectID, projectID)
		}
		groups[r.TestName] = append(groups[r.TestName], r)
	}

	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	timelines := make([]Timeline, 0, len(names))
	for _, name := range names {
		recs := groups[name]
		sort.SliceStable(recs, func(i, j int) bool {
			return recs[i].Timestamp.After(recs[j].Timestamp)
		})
		if len(recs) > limit {
			recs = recs[:limit]
		}
		timelines = append(timelines, Timeline{
			ProjectID: projectID,
			TestName:  name,
			Records:   recs,
		})
	}
	return timelines, nil
}
