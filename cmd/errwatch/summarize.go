package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/errwatch/errwatch/internal/store"
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize [error-id ...]",
	Short: "Generate an AI summary for a set of errors",
	Long: `Request a root-cause analysis for the given error IDs, or for the
most recent errors when no IDs are supplied.

Examples:
  # Summarize specific errors
  errwatch summarize 3f2a... 9c1b...

  # Summarize the 5 most recent errors
  errwatch summarize --last 5

  # Include solution suggestions
  errwatch summarize --last 5 --solutions`,
	Run: func(cmd *cobra.Command, args []string) {
		last, _ := cmd.Flags().GetInt("last")
		solutions, _ := cmd.Flags().GetBool("solutions")

		if err := runSummarize(args, last, solutions); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	summarizeCmd.Flags().Int("last", 5, "summarize this many recent errors when no IDs are given")
	summarizeCmd.Flags().Bool("solutions", false, "also request solution suggestions")
	rootCmd.AddCommand(summarizeCmd)
}

func runSummarize(ids []string, last int, solutions bool) error {
	m, err := buildManager(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := m.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = m.Stop() }()

	if len(ids) == 0 {
		records := m.QueryErrors(store.ErrorFilters{Limit: last})
		if len(records) == 0 {
			return fmt.Errorf("no errors to summarize")
		}
		for _, rec := range records {
			ids = append(ids, rec.ID)
		}
	}

	fmt.Printf("Summarizing %d error(s)...\n\n", len(ids))

	summaryID, err := m.RequestSummary(ctx, ids)
	if err != nil {
		return err
	}
	summary, err := m.GetSummary(summaryID)
	if err != nil {
		return err
	}
	printSummarySection(summary)

	if solutions {
		suggestions, err := m.SolutionSuggestions(ctx, summaryID)
		if err != nil {
			return err
		}
		yellow := color.New(color.FgYellow).SprintFunc()
		fmt.Printf("\n  %s\n", yellow("Additional Suggestions:"))
		if len(suggestions) == 0 {
			gray := color.New(color.FgHiBlack).SprintFunc()
			fmt.Printf("    %s\n", gray("none available"))
		}
		for i, s := range suggestions {
			fmt.Printf("    %d. %s\n", i+1, s)
		}
	}
	return nil
}
