package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"flakewatch/internal/reconcile"
	"flakewatch/internal/store"
)

var reconcileFlags struct {
	dbPath  string
	cfgPath string
	loop    bool
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Verify resolutions whose verification window has elapsed",
	Long: `Scan for pending resolutions past their verification window and run the
effectiveness verifier on each. The scan is the durable scheduling
mechanism: it recovers checks that an in-process timer would have lost
across restarts. With --loop, keep scanning on the configured interval.`,
	RunE: runReconcile,
}

func init() {
	f := reconcileCmd.Flags()
	f.StringVar(&reconcileFlags.dbPath, "db", store.DefaultDBPath, "Store DB path")
	f.StringVar(&reconcileFlags.cfgPath, "config", "", "Engine config file (YAML/JSON)")
	f.BoolVar(&reconcileFlags.loop, "loop", false, "Keep scanning on the configured interval")
}

func runReconcile(cmd *cobra.Command, _ []string) error {
	eng, st, err := openEngine(reconcileFlags.dbPath, reconcileFlags.cfgPath)
	if err != nil {
		return err
	}
	defer st.Close()

	cfg := eng.Config()
	rec := reconcile.New(st, eng.Verifier(),
		time.Duration(cfg.ReconcileIntervalSeconds)*time.Second, cfg.ReconcileParallel)

	if reconcileFlags.loop {
		return rec.Run(cmd.Context())
	}

	done, err := rec.RunOnce(cmd.Context(), time.Now())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d verification(s) finalized\n", done)
	return nil
}
