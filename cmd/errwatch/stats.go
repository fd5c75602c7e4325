package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show repository statistics",
	Long:  `Display error and summary repository statistics: totals, breakdowns by source, category, and severity, and summary confidence distribution.`,
	Run: func(cmd *cobra.Command, args []string) {
		errs, sums, err := openStores(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		fmt.Printf("\n%s\n\n", cyan("=== errwatch Statistics ==="))

		es := errs.Statistics()
		fmt.Printf("%s\n", yellow("Errors:"))
		fmt.Printf("  Total: %d\n", es.Total)
		printBreakdown("By source", es.BySource)
		printBreakdown("By category", es.ByCategory)
		printBreakdown("By severity", es.BySeverity)
		if es.Oldest != nil {
			fmt.Printf("  Oldest: %s\n", es.Oldest.Format("2006-01-02 15:04:05"))
		}
		if es.Newest != nil {
			fmt.Printf("  Newest: %s\n", es.Newest.Format("2006-01-02 15:04:05"))
		}

		fmt.Println()

		ss := sums.Statistics()
		fmt.Printf("%s\n", yellow("Summaries:"))
		fmt.Printf("  Total: %d\n", ss.Total)
		if ss.Total > 0 {
			fmt.Printf("  Average confidence: %.2f\n", ss.AverageConfidence)
			fmt.Printf("  High confidence (>= 0.8): %d\n", ss.HighConfidence)
			fmt.Printf("  Errors covered: %d\n", ss.TotalErrorsSummarized)
			printBreakdown("Confidence", ss.ConfidenceHistogram)
		} else {
			fmt.Printf("  %s\n", gray("No summaries generated yet"))
		}
		fmt.Println()
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func printBreakdown(label string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Printf("  %s:\n", label)
	for _, k := range keys {
		fmt.Printf("    %-12s %d\n", k, counts[k])
	}
}
