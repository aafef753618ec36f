package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"flakewatch/internal/display"
	"flakewatch/internal/store"
	"flakewatch/internal/verify"
)

var verifyFlags struct {
	dbPath  string
	cfgPath string
}

var verifyCmd = &cobra.Command{
	Use:   "verify <resolution-id>",
	Short: "Run the effectiveness verification for one resolution",
	Long: `Compare the pattern's failure statistics before and after the recorded
fix and finalize the resolution verdict. Already-finalized resolutions are
returned unchanged; verification refuses to finalize before the post-fix
window has elapsed.`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func init() {
	f := verifyCmd.Flags()
	f.StringVar(&verifyFlags.dbPath, "db", store.DefaultDBPath, "Store DB path")
	f.StringVar(&verifyFlags.cfgPath, "config", "", "Engine config file (YAML/JSON)")
}

func runVerify(cmd *cobra.Command, args []string) error {
	eng, st, err := openEngine(verifyFlags.dbPath, verifyFlags.cfgPath)
	if err != nil {
		return err
	}
	defer st.Close()

	rec, err := eng.Verify(args[0], time.Now())
	if errors.Is(err, verify.ErrNotDue) {
		fmt.Fprintf(cmd.OutOrStdout(), "not yet due: verification opens at %s\n",
			rec.VerifyAfter.Format(time.RFC3339))
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", rec.ID,
		display.VerificationStatus(string(rec.VerificationStatus)))
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal resolution: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
