package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/errwatch/errwatch/internal/config"
	"github.com/errwatch/errwatch/internal/logging"
)

var (
	cfgPath  string
	jsonLogs bool
	logLevel string

	cfg config.Config
)

var rootCmd = &cobra.Command{
	Use:   "errwatch",
	Short: "Error collection and AI summarization service",
	Long: `errwatch collects error events from browser and terminal sessions,
deduplicates and indexes them, and batches related errors for AI-powered
root-cause analysis.

Run 'errwatch serve' to start the collection service, or use the query
commands against an existing data directory.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}
		return logging.Setup(logging.Options{
			Level:  cfg.LogLevel,
			JSON:   jsonLogs,
			Output: os.Stderr,
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", defaultConfigPath(), "path to the configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "emit logs as JSON instead of text")
}

func defaultConfigPath() string {
	if env := os.Getenv("ERRWATCH_CONFIG"); env != "" {
		return env
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "errwatch.yaml"
	}
	return home + "/.errwatch/config.yaml"
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
