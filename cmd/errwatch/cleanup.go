package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete errors and summaries past the retention period",
	Long: `Delete records older than the retention period and flush the
repositories.

Examples:
  # Use the configured retention period
  errwatch cleanup

  # Delete everything older than a week
  errwatch cleanup --days 7`,
	Run: func(cmd *cobra.Command, args []string) {
		days, _ := cmd.Flags().GetInt("days")
		if days <= 0 {
			days = cfg.Storage.RetentionDays
		}

		errs, sums, err := openStores(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		errorIDs := errs.CleanupOlderThan(days)
		for _, id := range errorIDs {
			sums.RemoveErrorRef(id)
		}
		summariesDeleted := sums.CleanupOlderThan(days)

		if err := errors.Join(errs.Flush(), sums.Flush()); err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to flush after cleanup: %v\n", err)
			os.Exit(1)
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Deleted %d errors and %d summaries older than %d days\n",
			green("✓"), len(errorIDs), summariesDeleted, days)
	},
}

func init() {
	cleanupCmd.Flags().Int("days", 0, "retention period override in days")
	rootCmd.AddCommand(cleanupCmd)
}
