package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "papertrader",
	Short: "A paper-trading execution engine for signal-driven strategies",
	Long: `Papertrader is a live execution engine that trades external signal
feeds against a simulated broker with realistic fills.

It provides tools for:
  - Running a session against NDJSON tick and signal feeds
  - Filtering signals by confidence, expected edge and cooldown
  - Risk-based position sizing with per-position caps
  - Persistent account state across sessions
  - Trade and equity journals in JSONL or SQLite`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}
