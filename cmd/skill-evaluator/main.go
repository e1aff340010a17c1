package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
	version = "dev" // set by build flags
)

var rootCmd = &cobra.Command{
	Use:   "skill-evaluator",
	Short: "Parallel container orchestration engine for AI code-review skills",
	Long: `skill-evaluator runs AI code-review skills inside isolated containers
across a set of scenarios, collects their output, and scores it against
per-scenario ground truth using deterministic overlap matching plus an
LLM fallback.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./skill-evaluator.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(evaluateCmd)
}

// Commands are defined in separate files:
// - runCmd in run.go
// - evaluateCmd in evaluate.go

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
