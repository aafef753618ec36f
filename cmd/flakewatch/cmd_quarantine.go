package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"flakewatch/internal/display"
	"flakewatch/internal/format"
	"flakewatch/internal/quarantine"
	"flakewatch/internal/store"
)

var quarantineFlags struct {
	dbPath  string
	cfgPath string
	project string
	action  string
	actor   string
	reason  string
	audit   bool
}

var quarantineCmd = &cobra.Command{
	Use:   "quarantine <test-id>",
	Short: "Apply a quarantine lifecycle action to a test",
	Long: `Apply a lifecycle action to a test's quarantine record. Manual actions
(approve, reject, resolved-manually) are recorded with the acting operator
in the audit trail; automatic transitions use the system actor.

Use --audit to print the test's transition history instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runQuarantine,
}

func init() {
	f := quarantineCmd.Flags()
	f.StringVar(&quarantineFlags.dbPath, "db", store.DefaultDBPath, "Store DB path")
	f.StringVar(&quarantineFlags.cfgPath, "config", "", "Engine config file (YAML/JSON)")
	f.StringVar(&quarantineFlags.project, "project", "", "Project the test belongs to (required)")
	f.StringVar(&quarantineFlags.action, "action", "", "Lifecycle action (approve, reject, resolved-manually, ...)")
	f.StringVar(&quarantineFlags.actor, "actor", "", "Operator identity for the audit trail")
	f.StringVar(&quarantineFlags.reason, "reason", "", "Transition reason")
	f.BoolVar(&quarantineFlags.audit, "audit", false, "Print the audit trail and exit")
	_ = quarantineCmd.MarkFlagRequired("project")
}

func runQuarantine(cmd *cobra.Command, args []string) error {
	testID := args[0]

	eng, st, err := openEngine(quarantineFlags.dbPath, quarantineFlags.cfgPath)
	if err != nil {
		return err
	}
	defer st.Close()

	if quarantineFlags.audit {
		events, err := eng.QuarantineAudit(quarantineFlags.project, testID)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "no transitions recorded for %s\n", testID)
			return nil
		}
		tb := format.NewTable(format.ASCII)
		tb.Header("When", "From", "To", "Action", "Actor", "Reason")
		tb.Columns(format.ColumnConfig{Number: 6, Align: format.AlignLeft, MaxWidth: 50})
		for _, ev := range events {
			tb.Row(ev.At.Format(time.RFC3339),
				display.QuarantineStatus(string(ev.From)),
				display.QuarantineStatus(string(ev.To)),
				display.Action(string(ev.Action)),
				ev.Actor, ev.Reason)
		}
		fmt.Fprintln(cmd.OutOrStdout(), tb.String())
		return nil
	}

	if quarantineFlags.action == "" {
		return fmt.Errorf("--action is required (or use --audit)")
	}
	if quarantineFlags.actor == "" {
		return fmt.Errorf("--actor is required for manual transitions")
	}
	action, err := quarantine.ParseAction(quarantineFlags.action)
	if err != nil {
		return err
	}

	rec, err := eng.TransitionQuarantine(quarantineFlags.project, testID,
		action, quarantineFlags.actor, quarantineFlags.reason, time.Now())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", rec.TestID, display.QuarantineStatus(string(rec.Status)))
	return nil
}
