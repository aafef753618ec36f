package classify

import (
	"fmt"
	"math"

	"flakewatch/internal/history"
)

// Signal thresholds. Signals are additive: any one firing marks the test flaky.
const (
	// MinRuns is the minimum timeline length for a meaningful verdict.
	MinRuns = 2

	// Intermittent-failure band: pure-failing and pure-passing tests are
	// excluded (a 100%-failing test is broken, not flaky).
	IntermittentLow  = 0.1
	IntermittentHigh = 0.9

	// VariationThreshold is the coefficient-of-variation bound on durations.
	VariationThreshold = 0.5

	// AlternatingThreshold is the adjacent-pair status-change ratio bound.
	AlternatingThreshold = 0.6

	// ConfidenceFloor and ConfidenceCap bound reported confidence when
	// flagged. The cap exists because the signals are heuristic: never
	// claim certainty.
	ConfidenceFloor = 50
	ConfidenceCap   = 95
)

// Verdict is the classifier output for one test. Recomputed fresh on every
// call; never mutated in place.
type Verdict struct {
	TestName             string   `json:"test_name"`
	FailureRatePercent   float64  `json:"failure_rate_percent"`
	AvgDurationMillis    float64  `json:"avg_duration_ms"`
	DurationStdDevMillis float64  `json:"duration_stddev_ms"`
	TotalRuns            int      `json:"total_runs"`
	FailureCount         int      `json:"failure_count"`
	Reasons              []string `json:"reasons"`
	Confidence           float64  `json:"confidence"`
	IsFlaky              bool     `json:"is_flaky"`
	Recommendation       string   `json:"recommendation"`
}

// Classify computes statistical signals over a timeline and emits a verdict.
// Fewer than MinRuns records yields a non-flaky verdict by definition.
// Degenerate input (zero mean duration, identical durations) never fails;
// the affected signal simply cannot fire.
func Classify(tl history.Timeline) Verdict {
	v := Verdict{TestName: tl.TestName, TotalRuns: len(tl.Records)}

	if len(tl.Records) < MinRuns {
		v.Reasons = []string{"Insufficient data (fewer than 2 runs)"}
		return v
	}

	for _, r := range tl.Records {
		if r.Status == history.StatusFailed {
			v.FailureCount++
		}
	}
	failureRate := float64(v.FailureCount) / float64(v.TotalRuns)
	v.FailureRatePercent = failureRate * 100

	mean, stddev := durationStats(tl.Records)
	v.AvgDurationMillis = mean
	v.DurationStdDevMillis = stddev

	// Coefficient of variation; short-circuits on zero mean to avoid
	// division by zero (treated as non-firing).
	var cv float64
	if mean > 0 {
		cv = stddev / mean
	}

	if failureRate > IntermittentLow && failureRate < IntermittentHigh {
		v.Reasons = append(v.Reasons,
			fmt.Sprintf("Intermittent failures (%.1f%% failure rate)", v.FailureRatePercent))
	}

	if cv > VariationThreshold {
		v.Reasons = append(v.Reasons,
			fmt.Sprintf("High duration variance (coefficient of variation %.2f)", cv))
	}

	// Alternating pattern: a single blip on a short timeline can produce a
	// high ratio, so require more than one failure.
	if v.TotalRuns > 1 {
		transitions := 0
		for i := 1; i < len(tl.Records); i++ {
			if tl.Records[i].Status != tl.Records[i-1].Status {
				transitions++
			}
		}
		alternatingRatio := float64(transitions) / float64(v.TotalRuns-1)
		if alternatingRatio > AlternatingThreshold && v.FailureCount > 1 {
			v.Reasons = append(v.Reasons,
				fmt.Sprintf("Alternating pass/fail pattern (%.0f%% of runs change status)", alternatingRatio*100))
		}
	}

	if len(v.Reasons) == 0 {
		return v
	}

	v.IsFlaky = true
	v.Confidence = math.Min(ConfidenceCap, ConfidenceFloor+failureRate*100+cv*50)
	if float64(v.FailureCount) > float64(v.TotalRuns)*0.5 {
		v.Recommendation = "Disable test until fixed"
	} else {
		v.Recommendation = "Enable automatic retry"
	}
	return v
}

// durationStats returns the population mean and standard deviation of record
// durations (divide by N, not N-1).
func durationStats(records []history.ExecutionRecord) (mean, stddev float64) {
	n := float64(len(records))
	if n == 0 {
		return 0, 0
	}
	var sum float64
	for _, r := range records {
		sum += float64(r.DurationMillis)
	}
	mean = sum / n

	var sqDiff float64
	for _, r := range records {
		d := float64(r.DurationMillis) - mean
		sqDiff += d * d
	}
	stddev = math.Sqrt(sqDiff / n)
	return mean, stddev
}

// FailureRate computes the failed fraction of a record set. Shared with the
// effectiveness verifier so both use identical semantics.
func FailureRate(records []history.ExecutionRecord) float64 {
	if len(records) == 0 {
		return 0
	}
	failed := 0
	for _, r := range records {
		if r.Status == history.StatusFailed {
			failed++
		}
	}
	return float64(failed) / float64(len(records))
}
