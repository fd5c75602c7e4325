package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check service health",
	Long:  `Verify that the data directory is usable, both repositories load and flush cleanly, and the AI endpoint is configured.`,
	Run: func(cmd *cobra.Command, args []string) {
		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()

		fmt.Printf("\n%s\n\n", cyan("=== errwatch Health ==="))

		healthy := true
		check := func(name string, ok bool, detail string) {
			if ok {
				fmt.Printf("  %s %s\n", green("✓"), name)
			} else {
				healthy = false
				fmt.Printf("  %s %s: %s\n", red("✗"), name, detail)
			}
		}

		if err := cfg.Validate(); err != nil {
			check("configuration", false, err.Error())
		} else {
			check("configuration", true, "")
		}

		errs, sums, err := openStores(cfg)
		if err != nil {
			check("repositories", false, err.Error())
		} else {
			check("repositories", true, "")
			check("error store flush", errs.Flush() == nil, "flush failed")
			check("summary store flush", sums.Flush() == nil, "flush failed")
			fmt.Printf("    %d errors, %d summaries on disk\n", errs.Total(), sums.Total())
		}

		if cfg.API.APIKey == "" {
			healthy = false
			fmt.Printf("  %s ai endpoint: no API key configured\n", yellow("⚠"))
			fmt.Printf("    Set ERRWATCH_API_KEY or api.api_key in the config file\n")
		} else {
			check("ai endpoint", true, "")
		}

		fmt.Println()
		if healthy {
			fmt.Printf("%s\n", green("All checks passed"))
		} else {
			fmt.Printf("%s\n", red("One or more checks failed"))
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
