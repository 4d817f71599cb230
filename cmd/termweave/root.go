package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "termweave",
	Short: "Capability-aware command orchestration",
	Long: `Termweave schedules capability-tagged commands across a pool of
agents and bounded terminal slots.

Commands are queued with dependency sets and an approval gate, matched
to agents by capability, and executed under configurable concurrency
ceilings. Plans are described in YAML and driven by 'termweave run'.`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}
