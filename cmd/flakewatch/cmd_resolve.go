package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"flakewatch/internal/resolution"
	"flakewatch/internal/store"
)

var resolveFlags struct {
	dbPath       string
	cfgPath      string
	pattern      string
	org          string
	actor        string
	strategy     string
	actions      []string
	estimated    string
	effortHours  float64
	related      []string
}

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Record a fix against a detected flaky pattern",
	Long: `Record a remediation claim for a pattern. The resolution starts pending
and is verified automatically once its verification window elapses (see
the reconcile command). Quick fixes are always flagged for follow-up.`,
	RunE: runResolve,
}

func init() {
	f := resolveCmd.Flags()
	f.StringVar(&resolveFlags.dbPath, "db", store.DefaultDBPath, "Store DB path")
	f.StringVar(&resolveFlags.cfgPath, "config", "", "Engine config file (YAML/JSON)")
	f.StringVar(&resolveFlags.pattern, "pattern", "", "Pattern the fix addresses (required)")
	f.StringVar(&resolveFlags.org, "org", "", "Owning organization (required)")
	f.StringVar(&resolveFlags.actor, "actor", "", "Actor identity (required)")
	f.StringVar(&resolveFlags.strategy, "strategy", "", "Resolution strategy: quick-fix, systematic-change, process-improvement, infrastructure-upgrade")
	f.StringSliceVar(&resolveFlags.actions, "action-taken", nil, "Step performed (repeatable)")
	f.StringVar(&resolveFlags.estimated, "estimated-effort", "", "Effort estimate label")
	f.Float64Var(&resolveFlags.effortHours, "effort-hours", 0, "Hours actually spent")
	f.StringSliceVar(&resolveFlags.related, "related-pattern", nil, "Related pattern id (repeatable)")
	_ = resolveCmd.MarkFlagRequired("pattern")
	_ = resolveCmd.MarkFlagRequired("org")
	_ = resolveCmd.MarkFlagRequired("actor")
	_ = resolveCmd.MarkFlagRequired("strategy")
}

func runResolve(cmd *cobra.Command, _ []string) error {
	eng, st, err := openEngine(resolveFlags.dbPath, resolveFlags.cfgPath)
	if err != nil {
		return err
	}
	defer st.Close()

	rec, err := eng.RecordResolution(resolution.Request{
		PatternID:         resolveFlags.pattern,
		OrganizationID:    resolveFlags.org,
		ResolvedBy:        resolveFlags.actor,
		Strategy:          resolveFlags.strategy,
		ActionsTaken:      resolveFlags.actions,
		EstimatedEffort:   resolveFlags.estimated,
		ActualEffortHours: resolveFlags.effortHours,
		RelatedPatterns:   resolveFlags.related,
	}, time.Now())
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Resolution %s recorded (strategy %s)\n", rec.ID, rec.Strategy)
	fmt.Fprintf(cmd.OutOrStdout(), "Verification due after %s\n", rec.VerifyAfter.Format(time.RFC3339))
	if rec.FollowUpRequired {
		fmt.Fprintln(cmd.OutOrStdout(), "Follow-up required (quick fixes always are)")
	}
	return nil
}
