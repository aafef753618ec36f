package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"flakewatch/internal/display"
	"flakewatch/internal/format"
	"flakewatch/internal/report"
	"flakewatch/internal/store"
)

var reportFlags struct {
	dbPath    string
	cfgPath   string
	org       string
	days      int
	proactive bool
	asJSON    bool
	markdown  bool
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Aggregate resolution effectiveness for an organization",
	Long: `Roll up an organization's resolutions over a period: success and
regression rates, realized cost savings, per-strategy breakdown and
recommendations. With --proactive, print forward-looking recommendations
grouped by horizon instead.`,
	RunE: runReport,
}

func init() {
	f := reportCmd.Flags()
	f.StringVar(&reportFlags.dbPath, "db", store.DefaultDBPath, "Store DB path")
	f.StringVar(&reportFlags.cfgPath, "config", "", "Engine config file (YAML/JSON)")
	f.StringVar(&reportFlags.org, "org", "", "Organization to aggregate (required)")
	f.IntVar(&reportFlags.days, "days", 0, "Aggregation period in days (default from config: 30)")
	f.BoolVar(&reportFlags.proactive, "proactive", false, "Print proactive recommendations instead")
	f.BoolVar(&reportFlags.asJSON, "json", false, "Emit JSON")
	f.BoolVar(&reportFlags.markdown, "markdown", false, "Render tables as GitHub-flavoured Markdown")
	_ = reportCmd.MarkFlagRequired("org")
}

func runReport(cmd *cobra.Command, _ []string) error {
	eng, st, err := openEngine(reportFlags.dbPath, reportFlags.cfgPath)
	if err != nil {
		return err
	}
	defer st.Close()

	now := time.Now()
	if reportFlags.proactive {
		recs, err := eng.ProactiveRecommendations(reportFlags.org, now)
		if err != nil {
			return err
		}
		if reportFlags.asJSON {
			return printJSON(cmd, recs)
		}
		fmt.Fprint(cmd.OutOrStdout(), formatProactive(recs))
		return nil
	}

	summary, err := eng.EffectivenessSummary(reportFlags.org, reportFlags.days, now)
	if err != nil {
		return err
	}
	if reportFlags.asJSON {
		return printJSON(cmd, summary)
	}
	fmt.Fprint(cmd.OutOrStdout(), formatSummary(summary))
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

func tableMode() format.Mode {
	if reportFlags.markdown {
		return format.Markdown
	}
	return format.ASCII
}

func formatSummary(s *report.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Organization %s — last %d day(s)\n\n", s.OrganizationID, s.PeriodDays)
	fmt.Fprintf(&b, "Resolutions: %d total  (%d verified, %d regressed, %d pending)\n",
		s.TotalResolutions, s.Verified, s.Regressions, s.Pending)
	fmt.Fprintf(&b, "Regression rate:      %s\n", format.FmtPercent(s.RegressionRate))
	fmt.Fprintf(&b, "Avg effort:           %s\n", format.FmtHours(s.AvgTimeToResolutionHours))
	fmt.Fprintf(&b, "Avg time to verify:   %s\n", format.FmtHours(s.AvgTimeToVerificationHours))
	fmt.Fprintf(&b, "Cost savings realized: %s\n", format.FmtMoney(s.CostSavingsRealized))

	if len(s.Strategies) > 0 {
		tb := format.NewTable(tableMode())
		tb.Header("Strategy", "Success", "Verified", "Regressed", "Total", "Avg Savings")
		tb.Columns(
			format.ColumnConfig{Number: 2, Align: format.AlignRight},
			format.ColumnConfig{Number: 6, Align: format.AlignRight},
		)
		for _, st := range s.Strategies {
			tb.Row(display.Strategy(string(st.Strategy)), format.FmtPercent(st.SuccessRate),
				st.Verified, st.Regressions, st.Total, format.FmtMoney(st.AvgCostSavings))
		}
		tb.Footer("", "", s.Verified, s.Regressions, s.TotalResolutions, format.FmtMoney(s.CostSavingsRealized))
		fmt.Fprintf(&b, "\n%s\n", tb.String())
	}
	if len(s.Recommendations) > 0 {
		fmt.Fprintf(&b, "\nRecommendations:\n")
		for _, r := range s.Recommendations {
			fmt.Fprintf(&b, "  - %s\n", r)
		}
	}
	return b.String()
}

func formatProactive(r *report.Recommendations) string {
	var b strings.Builder
	section := func(name string, items []string) {
		if len(items) == 0 {
			return
		}
		fmt.Fprintf(&b, "%s:\n", name)
		for _, item := range items {
			fmt.Fprintf(&b, "  - %s\n", item)
		}
	}
	section("Immediate", r.Immediate)
	section("Preventive", r.Preventive)
	section("Strategic", r.Strategic)
	section("Tooling", r.Tooling)
	if b.Len() == 0 {
		return "no recommendations\n"
	}
	return b.String()
}
