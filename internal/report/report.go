package report

import (
	"fmt"
	"sort"
	"time"

	"flakewatch/internal/config"
	"flakewatch/internal/resolution"
	"flakewatch/internal/store"
)

// Summary rolls up an organization's resolutions over a period.
type Summary struct {
	OrganizationID string `json:"organization_id"`
	PeriodDays     int    `json:"period_days"`

	TotalResolutions int `json:"total_resolutions"`
	Pending          int `json:"pending"`
	Verified         int `json:"verified"`
	Regressions      int `json:"regressions"`

	// RegressionRate counts finalized resolutions only; pending ones have
	// no verdict yet.
	RegressionRate float64 `json:"regression_rate"`

	AvgTimeToResolutionHours   float64 `json:"avg_time_to_resolution_hours"`
	AvgTimeToVerificationHours float64 `json:"avg_time_to_verification_hours"`

	// CostSavingsRealized sums verified resolutions only. Regressions
	// contribute zero even when a partial reduction was measured.
	CostSavingsRealized float64 `json:"cost_savings_realized"`

	Strategies      []StrategyStats `json:"strategies"`
	Recommendations []string        `json:"recommendations"`
}

// StrategyStats is the per-strategy rollup, sorted descending by success rate.
type StrategyStats struct {
	Strategy       resolution.Strategy `json:"strategy"`
	Total          int                 `json:"total"`
	Verified       int                 `json:"verified"`
	Regressions    int                 `json:"regressions"`
	SuccessRate    float64             `json:"success_rate"`
	AvgCostSavings float64             `json:"avg_cost_savings"`
}

// Recommendations groups proactive advice by horizon.
type Recommendations struct {
	Immediate  []string `json:"immediate"`
	Preventive []string `json:"preventive"`
	Strategic  []string `json:"strategic"`
	Tooling    []string `json:"tooling"`
}

// Reporter computes aggregate effectiveness over the resolution audit trail.
// Reads are snapshots; nothing is mutated.
type Reporter struct {
	store store.Store
	cfg   config.Config
}

// New returns a Reporter over the given store.
func New(st store.Store, cfg config.Config) *Reporter {
	return &Reporter{store: st, cfg: cfg}
}

// Summary aggregates the organization's resolutions recorded in the last
// periodDays (cfg.ReportPeriodDays if periodDays <= 0). An organization with
// no resolutions gets all-zero counts and a single recommendation to start
// resolving patterns.
func (rp *Reporter) Summary(orgID string, periodDays int, now time.Time) (*Summary, error) {
	if periodDays <= 0 {
		periodDays = rp.cfg.ReportPeriodDays
	}
	since := now.AddDate(0, 0, -periodDays)
	records, err := rp.store.ListResolutionsByOrg(orgID, since)
	if err != nil {
		return nil, fmt.Errorf("list resolutions: %w", err)
	}

	s := &Summary{OrganizationID: orgID, PeriodDays: periodDays}
	if len(records) == 0 {
		s.Recommendations = []string{"No resolutions recorded in this period — start resolving patterns to build effectiveness data"}
		return s, nil
	}

	s.TotalResolutions = len(records)

	type strategyTally struct {
		total, verified, regressions int
		savings                      float64
	}
	byStrategy := make(map[resolution.Strategy]*strategyTally)
	patternCounts := make(map[string]int)

	var effortSum, verifyHoursSum float64
	finalized := 0

	for _, rec := range records {
		patternCounts[rec.PatternID]++
		effortSum += rec.ActualEffortHours

		t, ok := byStrategy[rec.Strategy]
		if !ok {
			t = &strategyTally{}
			byStrategy[rec.Strategy] = t
		}
		t.total++

		switch rec.VerificationStatus {
		case resolution.VerificationVerified:
			s.Verified++
			t.verified++
			if rec.Effectiveness != nil {
				s.CostSavingsRealized += rec.Effectiveness.CostSavings
				t.savings += rec.Effectiveness.CostSavings
			}
		case resolution.VerificationRegression:
			s.Regressions++
			t.regressions++
		default:
			s.Pending++
		}

		if rec.VerifiedAt != nil {
			verifyHoursSum += rec.VerifiedAt.Sub(rec.ResolvedAt).Hours()
			finalized++
		}
	}

	s.AvgTimeToResolutionHours = effortSum / float64(len(records))
	if finalized > 0 {
		s.AvgTimeToVerificationHours = verifyHoursSum / float64(finalized)
	}
	if s.Verified+s.Regressions > 0 {
		s.RegressionRate = float64(s.Regressions) / float64(s.Verified+s.Regressions)
	}

	for strategy, t := range byStrategy {
		st := StrategyStats{
			Strategy:    strategy,
			Total:       t.total,
			Verified:    t.verified,
			Regressions: t.regressions,
		}
		if t.verified+t.regressions > 0 {
			st.SuccessRate = float64(t.verified) / float64(t.verified+t.regressions)
		}
		if t.verified > 0 {
			st.AvgCostSavings = t.savings / float64(t.verified)
		}
		s.Strategies = append(s.Strategies, st)
	}
	sort.Slice(s.Strategies, func(i, j int) bool {
		if s.Strategies[i].SuccessRate != s.Strategies[j].SuccessRate {
			return s.Strategies[i].SuccessRate > s.Strategies[j].SuccessRate
		}
		return s.Strategies[i].Strategy < s.Strategies[j].Strategy
	})

	s.Recommendations = rp.recommendations(s, topPattern(patternCounts))
	return s, nil
}

// recommendations applies the fixed advisory rules. These strings are not
// inputs to further computation.
func (rp *Reporter) recommendations(s *Summary, topPattern string) []string {
	var recs []string

	if s.RegressionRate > 0.3 {
		recs = append(recs, fmt.Sprintf(
			"Regression rate is %.0f%% — review the verification process and fix quality gates",
			s.RegressionRate*100))
	}
	if topPattern != "" {
		recs = append(recs, fmt.Sprintf(
			"Pattern %q recurs most often — apply its preventive measures across the suite", topPattern))
	}
	if s.CostSavingsRealized > rp.cfg.CostSavingsTarget {
		recs = append(recs, fmt.Sprintf(
			"Realized savings of %.0f exceed target — expand the resolution program", s.CostSavingsRealized))
	} else {
		recs = append(recs, "Savings below target — refocus effort on high-impact patterns")
	}
	if len(s.Strategies) > 0 && s.Strategies[0].Strategy == resolution.StrategyInfrastructureUpgrade {
		recs = append(recs, "Infrastructure upgrades are the most successful strategy — invest in automating them")
	}
	return recs
}

func topPattern(counts map[string]int) string {
	best, bestCount := "", 1
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if counts[k] > bestCount {
			best, bestCount = k, counts[k]
		}
	}
	return best
}

// Proactive derives forward-looking recommendations for an organization from
// its current resolution backlog and effectiveness summary.
func (rp *Reporter) Proactive(orgID string, now time.Time) (*Recommendations, error) {
	summary, err := rp.Summary(orgID, 0, now)
	if err != nil {
		return nil, err
	}
	due, err := rp.store.ListDueVerifications(now)
	if err != nil {
		return nil, fmt.Errorf("list due verifications: %w", err)
	}

	out := &Recommendations{}

	orgDue := 0
	for _, rec := range due {
		if rec.OrganizationID == orgID {
			orgDue++
		}
	}
	if orgDue > 0 {
		out.Immediate = append(out.Immediate,
			fmt.Sprintf("%d resolution(s) have elapsed verification windows — run reconciliation now", orgDue))
	}
	if summary.Regressions > 0 {
		out.Immediate = append(out.Immediate,
			fmt.Sprintf("%d fix(es) regressed — re-quarantine and re-investigate the affected patterns", summary.Regressions))
	}

	if summary.RegressionRate > 0.3 {
		out.Preventive = append(out.Preventive,
			"High regression rate: prefer systematic changes over quick fixes for recurring patterns")
	}
	for _, st := range summary.Strategies {
		if st.Strategy == resolution.StrategyQuickFix && st.Regressions > st.Verified {
			out.Preventive = append(out.Preventive,
				"Quick fixes regress more often than they hold — schedule follow-up reviews for each one")
		}
	}

	if summary.CostSavingsRealized > rp.cfg.CostSavingsTarget {
		out.Strategic = append(out.Strategic,
			"Resolution program is paying for itself — budget for broader flaky-test coverage")
	} else if summary.TotalResolutions > 0 {
		out.Strategic = append(out.Strategic,
			"Savings below target — prioritize the patterns with the highest failure counts")
	} else {
		out.Strategic = append(out.Strategic,
			"No resolution history yet — start resolving detected patterns to build a baseline")
	}

	if len(summary.Strategies) > 0 && summary.Strategies[0].Strategy == resolution.StrategyInfrastructureUpgrade {
		out.Tooling = append(out.Tooling,
			"Infrastructure upgrades succeed most often — automate environment provisioning in CI")
	}
	if summary.Pending > summary.Verified+summary.Regressions {
		out.Tooling = append(out.Tooling,
			"Most resolutions are still unverified — shorten the reconciliation interval or verify manually")
	}
	return out, nil
}
