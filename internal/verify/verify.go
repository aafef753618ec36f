package verify

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"flakewatch/internal/classify"
	"flakewatch/internal/config"
	"flakewatch/internal/history"
	"flakewatch/internal/logging"
	"flakewatch/internal/quarantine"
	"flakewatch/internal/resolution"
	"flakewatch/internal/store"
)

// ErrNotFound is returned when the resolution id is unknown.
var ErrNotFound = errors.New("resolution not found")

// ErrNotDue is returned when the post-fix window has not elapsed yet;
// verification is not finalized early.
var ErrNotDue = errors.New("verification window has not elapsed")

// RegressionThreshold is the coarse binary gate: a fix that reduced failures
// by less than this percentage is a regression. Do not weaken it without
// also changing the aggregate reporting semantics.
const RegressionThreshold = 20.0

// StabilizationRate is the per-day failure rate at or below which a post-fix
// day counts as stabilized.
const StabilizationRate = 0.1

// NeverStabilized is the TimeToStabilizationDays sentinel for a post-fix
// window that never reached StabilizationRate.
const NeverStabilized = -1

// Verifier re-runs classifier-style statistics on a post-fix window against
// a pre-fix baseline and finalizes the resolution verdict.
type Verifier struct {
	store  store.Store
	cfg    config.Config
	logger *slog.Logger
}

// New returns a Verifier over the given store.
func New(st store.Store, cfg config.Config) *Verifier {
	return &Verifier{store: st, cfg: cfg, logger: logging.New("verify")}
}

// Verify loads the resolution and, once due, compares the baseline window
// [resolvedAt - baselineDays, resolvedAt) with the post-fix window
// [resolvedAt, verifyAfter) and finalizes the verdict exactly once.
//
// Idempotent: an already-finalized resolution is returned unchanged (logged
// as an anomaly, not an error). Abortable: any store failure leaves the
// record pending for retry.
func (v *Verifier) Verify(id string, now time.Time) (*resolution.Record, error) {
	rec, err := v.store.GetResolution(id)
	if err != nil {
		return nil, fmt.Errorf("load resolution: %w", err)
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	if rec.VerificationStatus != resolution.VerificationPending {
		v.logger.Warn("verification already finalized, ignoring duplicate trigger",
			"resolution", rec.ID, "status", string(rec.VerificationStatus))
		return rec, nil
	}
	if now.Before(rec.VerifyAfter) {
		return rec, fmt.Errorf("%w: due at %s", ErrNotDue, rec.VerifyAfter.Format(time.RFC3339))
	}

	tests, err := v.store.ListPatternTests(rec.PatternID)
	if err != nil {
		return nil, fmt.Errorf("load pattern tests: %w", err)
	}

	baselineFrom := rec.ResolvedAt.AddDate(0, 0, -v.cfg.BaselineWindowDays)
	var baseline, postFix []history.ExecutionRecord
	for _, pt := range tests {
		b, err := v.store.ListExecutions(pt.ProjectID, pt.TestName, baselineFrom, rec.ResolvedAt)
		if err != nil {
			return nil, fmt.Errorf("load baseline executions: %w", err)
		}
		baseline = append(baseline, b...)

		p, err := v.store.ListExecutions(pt.ProjectID, pt.TestName, rec.ResolvedAt, rec.VerifyAfter)
		if err != nil {
			return nil, fmt.Errorf("load post-fix executions: %w", err)
		}
		postFix = append(postFix, p...)
	}

	metrics := computeMetrics(baseline, postFix, rec.ResolvedAt, v.cfg.CostPerFailure)

	status := resolution.VerificationVerified
	followUp := rec.FollowUpRequired
	notes := rec.FollowUpNotes
	if metrics.FailureReductionPercent < RegressionThreshold {
		status = resolution.VerificationRegression
		followUp = true
		notes = "Fix did not hold: failure reduction below threshold, re-investigate the pattern"
	}

	applied, err := v.store.FinalizeVerification(rec.ID, status, now, metrics, followUp, notes)
	if err != nil {
		return nil, fmt.Errorf("finalize verification: %w", err)
	}
	if !applied {
		// Lost the race to a concurrent trigger; the stored verdict wins.
		v.logger.Warn("verification raced a concurrent finalize, keeping stored verdict",
			"resolution", rec.ID)
		return v.store.GetResolution(rec.ID)
	}

	v.logger.Info("verification finalized",
		"resolution", rec.ID,
		"status", string(status),
		"failure_reduction_percent", metrics.FailureReductionPercent,
		"baseline_records", len(baseline),
		"post_fix_records", len(postFix))

	v.transitionQuarantines(tests, status, now)

	return v.store.GetResolution(rec.ID)
}

// transitionQuarantines closes the loop on the lifecycle of every test the
// pattern covers: verify-pass resolves monitoring tests, verify-fail sends
// them back to quarantine. Failures are logged, not fatal: the verdict is
// already durable.
func (v *Verifier) transitionQuarantines(tests []store.PatternTest, status resolution.VerificationStatus, now time.Time) {
	action := quarantine.ActionVerifyPass
	reason := "Fix verified effective"
	if status == resolution.VerificationRegression {
		action = quarantine.ActionVerifyFail
		reason = "Fix regression detected"
	}

	for _, pt := range tests {
		rec, err := v.store.GetQuarantine(pt.ProjectID, pt.TestName)
		if err != nil {
			v.logger.Warn("load quarantine failed", "test", pt.TestName, "err", err)
			continue
		}
		if rec == nil || rec.Status != quarantine.StatusMonitoring {
			continue
		}
		ev, err := quarantine.Apply(rec, action, quarantine.SystemActor, reason, now)
		if err != nil {
			v.logger.Warn("quarantine transition failed", "test", pt.TestName, "err", err)
			continue
		}
		if err := v.store.SaveQuarantine(rec); err != nil {
			v.logger.Warn("save quarantine failed", "test", pt.TestName, "err", err)
			continue
		}
		if err := v.store.AppendQuarantineEvent(ev); err != nil {
			v.logger.Warn("append quarantine event failed", "test", pt.TestName, "err", err)
		}
	}
}

// computeMetrics derives the effectiveness numbers from the two windows.
// Degenerate baselines (no failures, no variance) contribute 0 rather than
// dividing by zero.
func computeMetrics(baseline, postFix []history.ExecutionRecord, resolvedAt time.Time, costPerFailure float64) resolution.EffectivenessMetrics {
	baselineRate := classify.FailureRate(baseline)
	currentRate := classify.FailureRate(postFix)

	var reduction float64
	if baselineRate > 0 {
		reduction = math.Max(0, (baselineRate-currentRate)/baselineRate*100)
	}

	baselineVar := dailyRateVariance(baseline)
	currentVar := dailyRateVariance(postFix)
	var stability float64
	if baselineVar > 0 {
		stability = math.Max(0, (baselineVar-currentVar)/baselineVar)
	}

	// The *4 extrapolates the observed week to a monthly estimate.
	savings := (reduction / 100) * float64(len(postFix)*4) * costPerFailure

	return resolution.EffectivenessMetrics{
		FailureReductionPercent: reduction,
		StabilityImprovement:    stability,
		CostSavings:             savings,
		TimeToStabilizationDays: timeToStabilization(postFix, resolvedAt),
	}
}

// dailyRateVariance buckets records by UTC day, computes each day's failure
// rate, and returns the population variance of those daily rates.
func dailyRateVariance(records []history.ExecutionRecord) float64 {
	rates := dailyRates(records)
	if len(rates) == 0 {
		return 0
	}
	var sum float64
	for _, r := range rates {
		sum += r.rate
	}
	mean := sum / float64(len(rates))

	var sqDiff float64
	for _, r := range rates {
		d := r.rate - mean
		sqDiff += d * d
	}
	return sqDiff / float64(len(rates))
}

type dayRate struct {
	day  string
	rate float64
}

// dailyRates returns per-day failure rates in chronological day order.
// Days with no records are absent, not zero.
func dailyRates(records []history.ExecutionRecord) []dayRate {
	type tally struct{ total, failed int }
	byDay := make(map[string]*tally)
	for _, r := range records {
		day := r.Timestamp.UTC().Format("2006-01-02")
		t, ok := byDay[day]
		if !ok {
			t = &tally{}
			byDay[day] = t
		}
		t.total++
		if r.Status == history.StatusFailed {
			t.failed++
		}
	}

	days := make([]string, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Strings(days)

	out := make([]dayRate, 0, len(days))
	for _, day := range days {
		t := byDay[day]
		out = append(out, dayRate{day: day, rate: float64(t.failed) / float64(t.total)})
	}
	return out
}

// timeToStabilization scans the post-fix window day by day in chronological
// order and returns the offset in days from resolvedAt of the first day
// whose failure rate dropped to StabilizationRate or below. Returns
// NeverStabilized (-1) when no day qualifies.
func timeToStabilization(postFix []history.ExecutionRecord, resolvedAt time.Time) int {
	fixDay := resolvedAt.UTC().Truncate(24 * time.Hour)
	for _, r := range dailyRates(postFix) {
		if r.rate > StabilizationRate {
			continue
		}
		day, err := time.Parse("2006-01-02", r.day)
		if err != nil {
			continue
		}
		return int(day.Sub(fixDay).Hours() / 24)
	}
	return NeverStabilized
}
