package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"flakewatch/internal/logging"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	logLevel  string
	logFormat string
}

var rootCmd = &cobra.Command{
	Use:   "flakewatch",
	Short: "Flaky test detection and resolution-effectiveness engine",
	Long: "Flakewatch classifies tests as flaky from their execution history,\n" +
		"drives a quarantine lifecycle for flagged tests, and verifies whether\n" +
		"recorded fixes actually reduced failures.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logging.Init(logging.ParseLevel(rootFlags.logLevel), rootFlags.logFormat)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootFlags.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	pf.StringVar(&rootFlags.logFormat, "log-format", "text", "Log format (text, json)")

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(quarantineCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
