package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"flakewatch/internal/classify"
	"flakewatch/internal/format"
	"flakewatch/internal/store"
)

var classifyFlags struct {
	dbPath     string
	cfgPath    string
	project    string
	test       string
	quarantine bool
	asJSON     bool
}

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify stored tests as flaky or stable",
	Long: `Rebuild per-test timelines from the stored execution history and run the
flakiness classifier over each. With --quarantine, flaky tests whose
confidence clears the configured gate are quarantined automatically.`,
	RunE: runClassify,
}

func init() {
	f := classifyCmd.Flags()
	f.StringVar(&classifyFlags.dbPath, "db", store.DefaultDBPath, "Store DB path")
	f.StringVar(&classifyFlags.cfgPath, "config", "", "Engine config file (YAML/JSON)")
	f.StringVar(&classifyFlags.project, "project", "", "Project to analyze (required)")
	f.StringVar(&classifyFlags.test, "test", "", "Single test to classify (default: all)")
	f.BoolVar(&classifyFlags.quarantine, "quarantine", false, "Quarantine flaky tests above the confidence gate")
	f.BoolVar(&classifyFlags.asJSON, "json", false, "Emit verdicts as JSON")
	_ = classifyCmd.MarkFlagRequired("project")
}

func runClassify(cmd *cobra.Command, _ []string) error {
	eng, st, err := openEngine(classifyFlags.dbPath, classifyFlags.cfgPath)
	if err != nil {
		return err
	}
	defer st.Close()

	now := time.Now()
	var verdicts []classify.Verdict
	if classifyFlags.test != "" {
		v, err := eng.ClassifyTest(classifyFlags.project, classifyFlags.test, now)
		if err != nil {
			return err
		}
		verdicts = []classify.Verdict{v}
	} else {
		verdicts, err = eng.ClassifyProject(classifyFlags.project)
		if err != nil {
			return err
		}
	}

	if classifyFlags.asJSON {
		data, err := json.MarshalIndent(verdicts, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal verdicts: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
	} else {
		fmt.Fprint(cmd.OutOrStdout(), formatVerdicts(verdicts))
	}

	if classifyFlags.quarantine {
		quarantined, err := eng.QuarantineFlagged(classifyFlags.project, verdicts, now)
		if err != nil {
			return err
		}
		if len(quarantined) > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "\nQuarantined: %s\n", strings.Join(quarantined, ", "))
		}
	}
	return nil
}

func formatVerdicts(verdicts []classify.Verdict) string {
	tb := format.NewTable(format.ASCII)
	tb.Header("Test", "Flaky", "Confidence", "Failure Rate", "Runs", "Reasons")
	tb.Columns(format.ColumnConfig{Number: 6, Align: format.AlignLeft, MaxWidth: 60})

	flaky := 0
	for _, v := range verdicts {
		if v.IsFlaky {
			flaky++
		}
		tb.Row(v.TestName, format.BoolMark(v.IsFlaky), fmt.Sprintf("%.0f", v.Confidence),
			fmt.Sprintf("%.1f%%", v.FailureRatePercent), v.TotalRuns,
			strings.Join(v.Reasons, "; "))
	}

	var b strings.Builder
	b.WriteString(tb.String())
	b.WriteString("\n")
	for _, v := range verdicts {
		if v.IsFlaky && v.Recommendation != "" {
			fmt.Fprintf(&b, "%s → %s\n", v.TestName, v.Recommendation)
		}
	}
	fmt.Fprintf(&b, "\n%d test(s) analyzed, %d flaky\n", len(verdicts), flaky)
	return b.String()
}
