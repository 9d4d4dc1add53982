package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "terminal",
	Short: "Multi-broker trading terminal core",
	Long: `Terminal is the core engine of a multi-broker trading terminal.

It provides tools for:
  - Replaying historical tick files through the simulated matching engine
  - Running strategies identically against the simulator and live brokers
  - Auditing every deal and equity change to CSV or SQLite journals`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}
