package quarantine

import (
	"errors"
	"fmt"
	"time"
)

// Status is the lifecycle state of a test under observation.
type Status string

const (
	// StatusActive means no issue is known; results count in the pipeline.
	StatusActive Status = "active"
	// StatusQuarantined means the test is excluded from pass/fail decisions.
	StatusQuarantined Status = "quarantined"
	// StatusMonitoring means a fix claim was recorded and verification is pending.
	StatusMonitoring Status = "monitoring"
	// StatusResolved means verification confirmed the fix held.
	StatusResolved Status = "resolved"
)

// Action is a lifecycle transition trigger, from the classifier, the
// resolution flow, or an operator.
type Action string

const (
	// ActionDetect is the automatic flaky-verdict path (system actor).
	ActionDetect Action = "detect"
	// ActionApprove is a manual force into quarantine.
	ActionApprove Action = "approve"
	// ActionReject is a manual release back to active.
	ActionReject Action = "reject"
	// ActionFixRecorded moves a quarantined test to monitoring once a
	// resolution is recorded against its pattern.
	ActionFixRecorded Action = "fix-recorded"
	// ActionVerifyPass closes the loop when verification succeeds.
	ActionVerifyPass Action = "verify-pass"
	// ActionVerifyFail re-quarantines when verification detects regression.
	ActionVerifyFail Action = "verify-fail"
	// ActionResolve is a manual operator override: quarantined → resolved
	// without passing through monitoring.
	ActionResolve Action = "resolved-manually"
)

// SystemActor identifies automatic transitions in the audit trail.
const SystemActor = "system"

// ErrInvalidTransition is returned when an action does not apply to the
// record's current status.
var ErrInvalidTransition = errors.New("invalid quarantine transition")

// Record is the per-test lifecycle object. Transitions via Apply are the
// only mutation path.
type Record struct {
	TestID        string    `json:"test_id"`
	ProjectID     string    `json:"project_id"`
	Status        Status    `json:"status"`
	Reason        string    `json:"reason"`
	QuarantinedAt time.Time `json:"quarantined_at"`
	QuarantinedBy string    `json:"quarantined_by"`
}

// Event is one audit-trail entry. Appended on every transition rather than
// overwriting prior state.
type Event struct {
	TestID    string    `json:"test_id"`
	ProjectID string    `json:"project_id"`
	From      Status    `json:"from"`
	To        Status    `json:"to"`
	Action    Action    `json:"action"`
	Actor     string    `json:"actor"`
	Reason    string    `json:"reason"`
	At        time.Time `json:"at"`
}

// transitions is the lifecycle table: current status → action → next status.
// The automatic flow is active → quarantined → monitoring → resolved, with
// verify-fail looping back to quarantined. Manual approve/reject/resolve may
// shortcut, recorded with the operator as actor.
var transitions = map[Status]map[Action]Status{
	StatusActive: {
		ActionDetect:  StatusQuarantined,
		ActionApprove: StatusQuarantined,
	},
	StatusQuarantined: {
		ActionReject:      StatusActive,
		ActionFixRecorded: StatusMonitoring,
		ActionResolve:     StatusResolved,
	},
	StatusMonitoring: {
		ActionVerifyPass: StatusResolved,
		ActionVerifyFail: StatusQuarantined,
	},
	StatusResolved: {
		ActionDetect:  StatusQuarantined,
		ActionApprove: StatusQuarantined,
	},
}

// Apply transitions the record per the lifecycle table and returns the audit
// event to append. The record is mutated in place; on error it is unchanged.
func Apply(rec *Record, action Action, actor, reason string, now time.Time) (Event, error) {
	next, ok := transitions[rec.Status][action]
	if !ok {
		return Event{}, fmt.Errorf("%w: %s → %s for test %q",
			ErrInvalidTransition, rec.Status, action, rec.TestID)
	}

	ev := Event{
		TestID:    rec.TestID,
		ProjectID: rec.ProjectID,
		From:      rec.Status,
		To:        next,
		Action:    action,
		Actor:     actor,
		Reason:    reason,
		At:        now,
	}

	rec.Status = next
	if next == StatusQuarantined {
		rec.Reason = reason
		rec.QuarantinedAt = now
		rec.QuarantinedBy = actor
	}
	return ev, nil
}

// ParseAction validates an action name at the API boundary.
func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case ActionDetect, ActionApprove, ActionReject, ActionFixRecorded,
		ActionVerifyPass, ActionVerifyFail, ActionResolve:
		return Action(s), nil
	}
	return "", fmt.Errorf("unknown quarantine action %q", s)
}
