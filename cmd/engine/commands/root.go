package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	strategyFile string
	verbose      bool
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "engine",
	Short: "IgniteX - crypto trade signal engine",
	Long: `IgniteX signal engine

Evaluates a crypto symbol universe through a multi-detector quality
pipeline, releases signals per subscription tier, tracks outcomes against
triple barriers and feeds them back into the scoring weights.

Examples:
  go run ./cmd/engine start
  go run ./cmd/engine api --port 8090
  go run ./cmd/engine tick
  go run ./cmd/engine signals active`,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&strategyFile, "strategy", "", "strategy YAML (overrides STRATEGY_FILE)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
