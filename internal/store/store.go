package store

import (
	"time"

	"flakewatch/internal/history"
	"flakewatch/internal/quarantine"
	"flakewatch/internal/resolution"
)

// DefaultDBPath is the default relative path for the SQLite DB (per-workspace).
// Resolve against cwd; Open() creates the parent dir (e.g. .flakewatch).
const DefaultDBPath = ".flakewatch/flakewatch.db"

// PatternTest maps a detected flaky pattern to one test it covers. The
// verifier gathers executions for every test under the pattern.
type PatternTest struct {
	PatternID string `json:"pattern_id"`
	ProjectID string `json:"project_id"`
	TestName  string `json:"test_name"`
}

// Store is the persistence facade: execution records, quarantine lifecycle
// plus audit trail, pattern mapping, and the resolution audit log. Domain
// and CLI use only this interface; implementation is SQLite or in-memory.
//
// Get* methods return (nil, nil) when the entity does not exist.
type Store interface {
	// Executions (append-only)
	InsertExecutions(recs []history.ExecutionRecord) error
	ListExecutions(projectID, testName string, from, to time.Time) ([]history.ExecutionRecord, error)
	ListProjectExecutions(projectID string) ([]history.ExecutionRecord, error)

	// Quarantine lifecycle
	GetQuarantine(projectID, testID string) (*quarantine.Record, error)
	SaveQuarantine(rec *quarantine.Record) error
	AppendQuarantineEvent(ev quarantine.Event) error
	ListQuarantineEvents(projectID, testID string) ([]quarantine.Event, error)

	// Pattern → test mapping
	PutPatternTests(tests []PatternTest) error
	ListPatternTests(patternID string) ([]PatternTest, error)

	// Resolutions (append-only audit trail; mutated exactly once by
	// FinalizeVerification)
	CreateResolution(rec *resolution.Record) error
	GetResolution(id string) (*resolution.Record, error)
	ListResolutionsByOrg(orgID string, since time.Time) ([]*resolution.Record, error)

	// ListDueVerifications returns pending resolutions whose verification
	// window has elapsed at now. This scan is the durable source of truth
	// for scheduling; in-process timers are not.
	ListDueVerifications(now time.Time) ([]*resolution.Record, error)

	// FinalizeVerification applies the single pending → verified or
	// pending → regression-detected mutation. Returns false without
	// changing anything if the record is no longer pending, which makes
	// double verification a no-op.
	FinalizeVerification(id string, status resolution.VerificationStatus,
		verifiedAt time.Time, metrics resolution.EffectivenessMetrics,
		followUpRequired bool, followUpNotes string) (bool, error)

	Close() error
}
