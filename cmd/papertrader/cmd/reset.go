package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tickhouse/papertrader/account"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset the persisted account to a fresh state",
	Long: `Overwrite the account snapshot with a fresh account: full cash, no
positions, counters cleared.

Example:
  papertrader reset --state account_state.json --cash 100000`,
	RunE: runReset,
}

var (
	resetStatePath string
	resetCash      float64
)

func init() {
	rootCmd.AddCommand(resetCmd)

	resetCmd.Flags().StringVar(&resetStatePath, "state", "", "path to account state file (required)")
	resetCmd.Flags().Float64Var(&resetCash, "cash", 100000, "initial cash for the fresh account")
	resetCmd.MarkFlagRequired("state")
}

func runReset(cmd *cobra.Command, args []string) error {
	if resetCash <= 0 {
		return fmt.Errorf("cash must be positive")
	}

	snap, err := account.NewStore(resetStatePath).Reset(resetCash, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("reset account: %w", err)
	}

	fmt.Printf("✓ Account reset: %s\n", resetStatePath)
	fmt.Printf("  Cash: $%.2f\n", snap.Cash)
	return nil
}
