// Package cli implements the Vitals command-line interface using Cobra.
// Each subcommand maps to an engine capability (serve, check, strategies, config).
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tutu-network/vitals/internal/api"
)

var rootCmd = &cobra.Command{
	Use:   "vitals",
	Short: "Vitals — autonomous incident response",
	Long: `Vitals watches a platform's health signals, detects incidents, finds
their likely root cause and runs recovery strategies on its own.

Run 'vitals serve' for the API and autonomous loop, or 'vitals check' for a
one-shot assessment.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version
	api.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
