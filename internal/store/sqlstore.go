package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"flakewatch/internal/history"
	"flakewatch/internal/quarantine"
	"flakewatch/internal/resolution"

	_ "modernc.org/sqlite"
)

// timeFormat is the stored timestamp layout. The fractional seconds are
// fixed-width: RFC3339Nano trims trailing zeros, which breaks the
// lexicographic ordering the window predicates and ORDER BY clauses rely on
// ("...T00:00:00.5Z" sorts before "...T00:00:00Z").
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// fmtTime converts a time to its stored string form (UTC).
func fmtTime(t time.Time) string { return t.UTC().Format(timeFormat) }

// parseTime converts a stored string back to a time. Empty strings map to
// the zero time.
func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored time %q: %w", s, err)
	}
	return t, nil
}

// nullStr converts a sql.NullString to a plain string (empty if null).
func nullStr(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// jsonList marshals a string slice for a TEXT column; nil slices store NULL.
func jsonList(list []string) (any, error) {
	if list == nil {
		return nil, nil
	}
	data, err := json.Marshal(list)
	if err != nil {
		return nil, fmt.Errorf("marshal list: %w", err)
	}
	return string(data), nil
}

// parseList unmarshals a TEXT column back into a string slice.
func parseList(ns sql.NullString) ([]string, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	var list []string
	if err := json.Unmarshal([]byte(ns.String), &list); err != nil {
		return nil, fmt.Errorf("unmarshal list: %w", err)
	}
	return list, nil
}

// SqlStore implements Store with SQLite.
type SqlStore struct {
	db *sql.DB
}

// Open opens or creates a SQLite DB at path and runs migrations.
// Creates the parent directory (e.g. .flakewatch) if it does not exist.
func Open(path string) (*SqlStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	s := &SqlStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SqlStore) migrate() error {
	var tableCount int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableCount)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableCount == 0 {
		if _, err := s.db.Exec(schemaV1); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_version(version) VALUES(?)", schemaVersionV1); err != nil {
			return fmt.Errorf("set schema version: %w", err)
		}
		return nil
	}

	var v int
	if err := s.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&v); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if v != schemaVersionV1 {
		return fmt.Errorf("unknown schema version %d", v)
	}
	return nil
}

// Close closes the database connection.
func (s *SqlStore) Close() error {
	return s.db.Close()
}

// --- Executions ---

// InsertExecutions appends execution records in one transaction.
func (s *SqlStore) InsertExecutions(recs []history.ExecutionRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(
		`INSERT INTO executions(project_id, test_name, suite_name, status, duration_ms,
		                        timestamp, error_message, stack_trace, retry_count)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range recs {
		if _, err := stmt.Exec(r.ProjectID, r.TestName, r.SuiteName, string(r.Status),
			r.DurationMillis, fmtTime(r.Timestamp), r.ErrorMessage, r.StackTrace, r.RetryCount); err != nil {
			return fmt.Errorf("insert execution: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func scanExecutions(rows *sql.Rows) ([]history.ExecutionRecord, error) {
	var list []history.ExecutionRecord
	for rows.Next() {
		var r history.ExecutionRecord
		var status, ts string
		var suite, errMsg, stack sql.NullString
		if err := rows.Scan(&r.ProjectID, &r.TestName, &suite, &status,
			&r.DurationMillis, &ts, &errMsg, &stack, &r.RetryCount); err != nil {
			return nil, fmt.Errorf("scan execution: %w", err)
		}
		r.SuiteName = nullStr(suite)
		r.Status = history.Status(status)
		r.ErrorMessage = nullStr(errMsg)
		r.StackTrace = nullStr(stack)
		t, err := parseTime(ts)
		if err != nil {
			return nil, err
		}
		r.Timestamp = t
		list = append(list, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	return list, nil
}

// ListExecutions returns records for one test within [from, to), newest first.
func (s *SqlStore) ListExecutions(projectID, testName string, from, to time.Time) ([]history.ExecutionRecord, error) {
	rows, err := s.db.Query(
		`SELECT project_id, test_name, suite_name, status, duration_ms,
		        timestamp, error_message, stack_trace, retry_count
		 FROM executions
		 WHERE project_id = ? AND test_name = ? AND timestamp >= ? AND timestamp < ?
		 ORDER BY timestamp DESC`,
		projectID, testName, fmtTime(from), fmtTime(to))
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	defer rows.Close()
	return scanExecutions(rows)
}

// ListProjectExecutions returns all records for a project, newest first.
// The history aggregator caps per-test depth downstream.
func (s *SqlStore) ListProjectExecutions(projectID string) ([]history.ExecutionRecord, error) {
	rows, err := s.db.Query(
		`SELECT project_id, test_name, suite_name, status, duration_ms,
		        timestamp, error_message, stack_trace, retry_count
		 FROM executions
		 WHERE project_id = ?
		 ORDER BY timestamp DESC`,
		projectID)
	if err != nil {
		return nil, fmt.Errorf("list project executions: %w", err)
	}
	defer rows.Close()
	return scanExecutions(rows)
}

// --- Quarantine ---

// GetQuarantine returns the lifecycle record for a test, or nil if none exists.
func (s *SqlStore) GetQuarantine(projectID, testID string) (*quarantine.Record, error) {
	var rec quarantine.Record
	var reason, at, by sql.NullString
	var status string
	err := s.db.QueryRow(
		`SELECT project_id, test_id, status, reason, quarantined_at, quarantined_by
		 FROM quarantines WHERE project_id = ? AND test_id = ?`,
		projectID, testID,
	).Scan(&rec.ProjectID, &rec.TestID, &status, &reason, &at, &by)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get quarantine: %w", err)
	}
	rec.Status = quarantine.Status(status)
	rec.Reason = nullStr(reason)
	rec.QuarantinedBy = nullStr(by)
	t, err := parseTime(nullStr(at))
	if err != nil {
		return nil, err
	}
	rec.QuarantinedAt = t
	return &rec, nil
}

// SaveQuarantine upserts the lifecycle record keyed by (project, test).
func (s *SqlStore) SaveQuarantine(rec *quarantine.Record) error {
	if rec == nil {
		return errors.New("quarantine record is nil")
	}
	var at any
	if !rec.QuarantinedAt.IsZero() {
		at = fmtTime(rec.QuarantinedAt)
	}
	_, err := s.db.Exec(
		`INSERT INTO quarantines(project_id, test_id, status, reason, quarantined_at, quarantined_by)
		 VALUES(?, ?, ?, ?, ?, ?)
		 ON CONFLICT(project_id, test_id) DO UPDATE SET
		   status = excluded.status,
		   reason = excluded.reason,
		   quarantined_at = excluded.quarantined_at,
		   quarantined_by = excluded.quarantined_by`,
		rec.ProjectID, rec.TestID, string(rec.Status), rec.Reason, at, rec.QuarantinedBy)
	if err != nil {
		return fmt.Errorf("save quarantine: %w", err)
	}
	return nil
}

// AppendQuarantineEvent appends one audit-trail entry.
func (s *SqlStore) AppendQuarantineEvent(ev quarantine.Event) error {
	_, err := s.db.Exec(
		`INSERT INTO quarantine_events(project_id, test_id, from_status, to_status, action, actor, reason, at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ProjectID, ev.TestID, string(ev.From), string(ev.To), string(ev.Action), ev.Actor, ev.Reason, fmtTime(ev.At))
	if err != nil {
		return fmt.Errorf("append quarantine event: %w", err)
	}
	return nil
}

// ListQuarantineEvents returns the audit trail for one test in one project,
// oldest first. Trails are keyed like quarantines, so a test name shared by
// two projects never interleaves.
func (s *SqlStore) ListQuarantineEvents(projectID, testID string) ([]quarantine.Event, error) {
	rows, err := s.db.Query(
		`SELECT project_id, test_id, from_status, to_status, action, actor, reason, at
		 FROM quarantine_events WHERE project_id = ? AND test_id = ? ORDER BY id`,
		projectID, testID)
	if err != nil {
		return nil, fmt.Errorf("list quarantine events: %w", err)
	}
	defer rows.Close()

	var list []quarantine.Event
	for rows.Next() {
		var ev quarantine.Event
		var from, to, action, at string
		var reason sql.NullString
		if err := rows.Scan(&ev.ProjectID, &ev.TestID, &from, &to, &action, &ev.Actor, &reason, &at); err != nil {
			return nil, fmt.Errorf("scan quarantine event: %w", err)
		}
		ev.From = quarantine.Status(from)
		ev.To = quarantine.Status(to)
		ev.Action = quarantine.Action(action)
		ev.Reason = nullStr(reason)
		t, err := parseTime(at)
		if err != nil {
			return nil, err
		}
		ev.At = t
		list = append(list, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list quarantine events: %w", err)
	}
	return list, nil
}

// --- Pattern mapping ---

// PutPatternTests records pattern → test mappings (idempotent).
func (s *SqlStore) PutPatternTests(tests []PatternTest) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	for _, pt := range tests {
		if _, err := tx.Exec(
			`INSERT INTO pattern_tests(pattern_id, project_id, test_name) VALUES(?, ?, ?)
			 ON CONFLICT(pattern_id, project_id, test_name) DO NOTHING`,
			pt.PatternID, pt.ProjectID, pt.TestName); err != nil {
			return fmt.Errorf("insert pattern test: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ListPatternTests returns the tests a pattern covers.
func (s *SqlStore) ListPatternTests(patternID string) ([]PatternTest, error) {
	rows, err := s.db.Query(
		"SELECT pattern_id, project_id, test_name FROM pattern_tests WHERE pattern_id = ? ORDER BY test_name",
		patternID)
	if err != nil {
		return nil, fmt.Errorf("list pattern tests: %w", err)
	}
	defer rows.Close()

	var list []PatternTest
	for rows.Next() {
		var pt PatternTest
		if err := rows.Scan(&pt.PatternID, &pt.ProjectID, &pt.TestName); err != nil {
			return nil, fmt.Errorf("scan pattern test: %w", err)
		}
		list = append(list, pt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list pattern tests: %w", err)
	}
	return list, nil
}

// --- Resolutions ---

// CreateResolution inserts a new pending resolution.
func (s *SqlStore) CreateResolution(rec *resolution.Record) error {
	if rec == nil {
		return errors.New("resolution is nil")
	}
	actions, err := jsonList(rec.ActionsTaken)
	if err != nil {
		return err
	}
	related, err := jsonList(rec.RelatedPatterns)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO resolutions(id, pattern_id, organization_id, resolved_by, strategy,
		                         actions_taken, estimated_effort, actual_effort_hours,
		                         resolved_at, verify_after, verification_status, follow_up_required,
		                         related_patterns)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.PatternID, rec.OrganizationID, rec.ResolvedBy, string(rec.Strategy),
		actions, rec.EstimatedEffort, rec.ActualEffortHours,
		fmtTime(rec.ResolvedAt), fmtTime(rec.VerifyAfter),
		string(rec.VerificationStatus), boolInt(rec.FollowUpRequired), related)
	if err != nil {
		return fmt.Errorf("insert resolution: %w", err)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

const resolutionColumns = `id, pattern_id, organization_id, resolved_by, strategy,
	actions_taken, estimated_effort, actual_effort_hours, resolved_at, verify_after,
	verified_at, verification_status, effectiveness, follow_up_required,
	follow_up_notes, related_patterns`

func scanResolution(row interface{ Scan(...any) error }) (*resolution.Record, error) {
	var rec resolution.Record
	var strategy, status, resolvedAt, verifyAfter string
	var actions, estEffort, verifiedAt, effectiveness, notes, related sql.NullString
	var followUp int
	err := row.Scan(&rec.ID, &rec.PatternID, &rec.OrganizationID, &rec.ResolvedBy, &strategy,
		&actions, &estEffort, &rec.ActualEffortHours, &resolvedAt, &verifyAfter,
		&verifiedAt, &status, &effectiveness, &followUp, &notes, &related)
	if err != nil {
		return nil, err
	}
	rec.Strategy = resolution.Strategy(strategy)
	rec.VerificationStatus = resolution.VerificationStatus(status)
	rec.EstimatedEffort = nullStr(estEffort)
	rec.FollowUpNotes = nullStr(notes)
	rec.FollowUpRequired = followUp == 1

	if rec.ActionsTaken, err = parseList(actions); err != nil {
		return nil, err
	}
	if rec.RelatedPatterns, err = parseList(related); err != nil {
		return nil, err
	}
	if rec.ResolvedAt, err = parseTime(resolvedAt); err != nil {
		return nil, err
	}
	if rec.VerifyAfter, err = parseTime(verifyAfter); err != nil {
		return nil, err
	}
	if verifiedAt.Valid {
		t, err := parseTime(verifiedAt.String)
		if err != nil {
			return nil, err
		}
		rec.VerifiedAt = &t
	}
	if effectiveness.Valid && effectiveness.String != "" {
		var m resolution.EffectivenessMetrics
		if err := json.Unmarshal([]byte(effectiveness.String), &m); err != nil {
			return nil, fmt.Errorf("unmarshal effectiveness: %w", err)
		}
		rec.Effectiveness = &m
	}
	return &rec, nil
}

// GetResolution returns the resolution by id, or nil if not found.
func (s *SqlStore) GetResolution(id string) (*resolution.Record, error) {
	rec, err := scanResolution(s.db.QueryRow(
		"SELECT "+resolutionColumns+" FROM resolutions WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get resolution: %w", err)
	}
	return rec, nil
}

func (s *SqlStore) listResolutions(query string, args ...any) ([]*resolution.Record, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list resolutions: %w", err)
	}
	defer rows.Close()

	var list []*resolution.Record
	for rows.Next() {
		rec, err := scanResolution(rows)
		if err != nil {
			return nil, fmt.Errorf("scan resolution: %w", err)
		}
		list = append(list, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list resolutions: %w", err)
	}
	return list, nil
}

// ListResolutionsByOrg returns an organization's resolutions recorded at or
// after since, newest first.
func (s *SqlStore) ListResolutionsByOrg(orgID string, since time.Time) ([]*resolution.Record, error) {
	return s.listResolutions(
		"SELECT "+resolutionColumns+` FROM resolutions
		 WHERE organization_id = ? AND resolved_at >= ?
		 ORDER BY resolved_at DESC`,
		orgID, fmtTime(since))
}

// ListDueVerifications returns pending resolutions whose window elapsed.
func (s *SqlStore) ListDueVerifications(now time.Time) ([]*resolution.Record, error) {
	return s.listResolutions(
		"SELECT "+resolutionColumns+` FROM resolutions
		 WHERE verification_status = ? AND verify_after <= ?
		 ORDER BY verify_after`,
		string(resolution.VerificationPending), fmtTime(now))
}

// FinalizeVerification applies the verdict iff the record is still pending.
func (s *SqlStore) FinalizeVerification(id string, status resolution.VerificationStatus,
	verifiedAt time.Time, metrics resolution.EffectivenessMetrics,
	followUpRequired bool, followUpNotes string) (bool, error) {

	payload, err := json.Marshal(metrics)
	if err != nil {
		return false, fmt.Errorf("marshal effectiveness: %w", err)
	}
	res, err := s.db.Exec(
		`UPDATE resolutions
		 SET verification_status = ?, verified_at = ?, effectiveness = ?,
		     follow_up_required = ?, follow_up_notes = ?
		 WHERE id = ? AND verification_status = ?`,
		string(status), fmtTime(verifiedAt), string(payload),
		boolInt(followUpRequired), followUpNotes,
		id, string(resolution.VerificationPending))
	if err != nil {
		return false, fmt.Errorf("finalize verification: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}
