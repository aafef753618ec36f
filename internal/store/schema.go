package store

// schemaVersionV1 is the initial schema.
const schemaVersionV1 = 1

// schemaV1 is the engine schema DDL (fresh install).
var schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL);

CREATE TABLE IF NOT EXISTS executions (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id    TEXT NOT NULL,
	test_name     TEXT NOT NULL,
	suite_name    TEXT,
	status        TEXT NOT NULL,
	duration_ms   INTEGER NOT NULL DEFAULT 0,
	timestamp     TEXT NOT NULL,
	error_message TEXT,
	stack_trace   TEXT,
	retry_count   INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS quarantines (
	project_id     TEXT NOT NULL,
	test_id        TEXT NOT NULL,
	status         TEXT NOT NULL,
	reason         TEXT,
	quarantined_at TEXT,
	quarantined_by TEXT,
	PRIMARY KEY (project_id, test_id)
);

CREATE TABLE IF NOT EXISTS quarantine_events (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id  TEXT NOT NULL,
	test_id     TEXT NOT NULL,
	from_status TEXT NOT NULL,
	to_status   TEXT NOT NULL,
	action      TEXT NOT NULL,
	actor       TEXT NOT NULL,
	reason      TEXT,
	at          TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS pattern_tests (
	pattern_id TEXT NOT NULL,
	project_id TEXT NOT NULL,
	test_name  TEXT NOT NULL,
	UNIQUE(pattern_id, project_id, test_name)
);

CREATE TABLE IF NOT EXISTS resolutions (
	id                  TEXT PRIMARY KEY,
	pattern_id          TEXT NOT NULL,
	organization_id     TEXT NOT NULL,
	resolved_by         TEXT NOT NULL,
	strategy            TEXT NOT NULL,
	actions_taken       TEXT,
	estimated_effort    TEXT,
	actual_effort_hours REAL NOT NULL DEFAULT 0,
	resolved_at         TEXT NOT NULL,
	verify_after        TEXT NOT NULL,
	verified_at         TEXT,
	verification_status TEXT NOT NULL DEFAULT 'pending',
	effectiveness       TEXT,
	follow_up_required  INTEGER NOT NULL DEFAULT 0,
	follow_up_notes     TEXT,
	related_patterns    TEXT
);

CREATE INDEX IF NOT EXISTS idx_executions_test ON executions(project_id, test_name, timestamp);
CREATE INDEX IF NOT EXISTS idx_quarantine_events_test ON quarantine_events(project_id, test_id);
CREATE INDEX IF NOT EXISTS idx_pattern_tests_pattern ON pattern_tests(pattern_id);
CREATE INDEX IF NOT EXISTS idx_resolutions_org ON resolutions(organization_id, resolved_at);
CREATE INDEX IF NOT EXISTS idx_resolutions_due ON resolutions(verification_status, verify_after);
`
