package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/errwatch/errwatch/internal/store"
	"github.com/errwatch/errwatch/internal/types"
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "List collected errors",
	Long: `Query the error repository with optional filters.

Examples:
  # Most recent 20 errors
  errwatch query

  # Browser runtime errors from the last hour
  errwatch query --source browser --category runtime --since 1h

  # Critical and high severity errors
  errwatch query --severity critical --severity high`,
	Run: func(cmd *cobra.Command, args []string) {
		sources, _ := cmd.Flags().GetStringSlice("source")
		categories, _ := cmd.Flags().GetStringSlice("category")
		severities, _ := cmd.Flags().GetStringSlice("severity")
		since, _ := cmd.Flags().GetDuration("since")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		filters := store.ErrorFilters{Offset: offset, Limit: limit}
		var err error
		if filters.Sources, err = parseSources(sources); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if filters.Categories, err = parseCategories(categories); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if filters.Severities, err = parseSeverities(severities); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if since > 0 {
			filters.Start = time.Now().UTC().Add(-since)
		}

		errs, _, err := openStores(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		records := errs.Query(filters)
		if len(records) == 0 {
			gray := color.New(color.FgHiBlack).SprintFunc()
			fmt.Printf("%s\n", gray("No matching errors"))
			return
		}

		for _, rec := range records {
			printRecord(rec)
		}
		fmt.Printf("\n%d error(s)\n", len(records))
	},
}

func init() {
	queryCmd.Flags().StringSlice("source", nil, "filter by source (browser, terminal, unknown)")
	queryCmd.Flags().StringSlice("category", nil, "filter by category (syntax, runtime, network, ...)")
	queryCmd.Flags().StringSlice("severity", nil, "filter by severity (low, medium, high, critical)")
	queryCmd.Flags().Duration("since", 0, "only errors newer than this (e.g. 1h, 30m)")
	queryCmd.Flags().Int("limit", 20, "maximum number of errors to show (0 = all)")
	queryCmd.Flags().Int("offset", 0, "number of errors to skip")
	rootCmd.AddCommand(queryCmd)
}

func printRecord(rec *types.ErrorRecord) {
	gray := color.New(color.FgHiBlack).SprintFunc()
	sevColor := severityColor(rec.Severity)

	fmt.Printf("%s %s %s %s\n",
		sevColor(fmt.Sprintf("[%s]", rec.Severity)),
		rec.Timestamp.Format("2006-01-02 15:04:05"),
		gray(fmt.Sprintf("%s/%s", rec.Source, rec.Category)),
		gray(rec.ID))
	fmt.Printf("  %s\n", rec.Message)
	switch rec.Kind {
	case types.KindBrowser:
		fmt.Printf("  %s\n", gray(rec.Location()))
	case types.KindTerminal:
		fmt.Printf("  %s %s\n", gray("$"), gray(rec.CommandSummary()))
	}
}
