package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
)

// rootCmd represents the base command when called without any
// subcommands.
var rootCmd = &cobra.Command{
	Use:   "horizon",
	Short: "Horizon - business time-series forecasting service",
	Long: `Horizon backend CLI

Upload tabular data, train multiple AutoML forecasting engines per
session, poll status, and serve predictions.

Usage:
  go run ./cmd/horizon [command]

Examples:
  go run ./cmd/horizon api
  go run ./cmd/horizon train --file sales.csv --date-column Date --target-column Sales
  go run ./cmd/horizon status <session-id>
  go run ./cmd/horizon cleanup`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. Called by main.main().
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
