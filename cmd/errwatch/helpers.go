package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/errwatch/errwatch/internal/config"
	"github.com/errwatch/errwatch/internal/manager"
	"github.com/errwatch/errwatch/internal/store"
	"github.com/errwatch/errwatch/internal/summarizer"
	"github.com/errwatch/errwatch/internal/types"
)

// openStores opens both repositories from the configured data directory.
func openStores(cfg config.Config) (*store.ErrorStore, *store.SummaryStore, error) {
	errs, err := store.OpenErrorStore(store.ErrorStoreConfig{
		DataDir:             cfg.Storage.DataDirectory,
		MaxErrors:           cfg.Storage.MaxErrors,
		DedupUnknownSources: cfg.Storage.DedupUnknownSources,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open error store: %w", err)
	}
	sums, err := store.OpenSummaryStore(store.SummaryStoreConfig{
		DataDir:      cfg.Storage.DataDirectory,
		MaxSummaries: cfg.Storage.MaxSummaries,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open summary store: %w", err)
	}
	return errs, sums, nil
}

// buildManager wires the full coordination stack: stores, LLM client,
// worker, and manager. The caller still has to Start it.
func buildManager(cfg config.Config) (*manager.Manager, error) {
	errs, sums, err := openStores(cfg)
	if err != nil {
		return nil, err
	}

	client, err := summarizer.NewAnthropicClient(cfg.API.APIKey, cfg.API.Model, cfg.API.Timeout.Std())
	if err != nil {
		return nil, fmt.Errorf("failed to create summarization client: %w", err)
	}

	worker := summarizer.NewWorker(client, summarizer.Config{
		Model:             cfg.API.Model,
		MaxTokens:         cfg.API.MaxTokens,
		Temperature:       cfg.API.Temperature,
		RequestsPerMinute: cfg.API.RequestsPerMinute,
	})

	return manager.New(errs, sums, worker, manager.Config{
		AutoSummarize:      cfg.Collection.AutoSummarize,
		GroupThreshold:     cfg.Collection.GroupThreshold,
		GroupDebounce:      cfg.Collection.GroupDebounce.Std(),
		MaxErrorsPerMinute: cfg.Collection.MaxErrorsPerMinute,
		IgnoredPatterns:    cfg.Collection.IgnoredPatterns,
		IgnoredDomains:     cfg.Collection.IgnoredDomains,
		RetentionDays:      cfg.Storage.RetentionDays,
		SummaryTimeout:     cfg.API.Timeout.Std() * 2,
		FlushInterval:      cfg.Storage.FlushInterval.Std(),
	})
}

// severityColor picks a display color for a severity level.
func severityColor(sev types.Severity) func(a ...interface{}) string {
	switch sev {
	case types.SeverityCritical:
		return color.New(color.FgRed, color.Bold).SprintFunc()
	case types.SeverityHigh:
		return color.New(color.FgRed).SprintFunc()
	case types.SeverityMedium:
		return color.New(color.FgYellow).SprintFunc()
	default:
		return color.New(color.FgHiBlack).SprintFunc()
	}
}

// printSummarySection renders one summary in the shared display format.
func printSummarySection(s *types.SummarySection) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	fmt.Printf("%s %s\n", cyan("Summary"), gray(s.ID))
	fmt.Printf("  Generated:  %s\n", s.GeneratedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("  Confidence: %.2f\n", s.ConfidenceScore)
	fmt.Printf("  Errors:     %d\n", len(s.ErrorIDs))
	if s.ModelUsed != "" {
		fmt.Printf("  Model:      %s\n", s.ModelUsed)
	}
	fmt.Println()
	fmt.Printf("  %s\n    %s\n", yellow("Root Cause:"), s.RootCause)
	fmt.Printf("  %s\n    %s\n", yellow("Impact:"), s.ImpactAssessment)
	if len(s.SuggestedSolutions) > 0 {
		fmt.Printf("  %s\n", yellow("Suggested Solutions:"))
		for i, sol := range s.SuggestedSolutions {
			fmt.Printf("    %d. %s\n", i+1, sol)
		}
	}
}

func parseSources(values []string) ([]types.Source, error) {
	var out []types.Source
	for _, v := range values {
		switch s := types.Source(strings.ToLower(v)); s {
		case types.SourceBrowser, types.SourceTerminal, types.SourceUnknown:
			out = append(out, s)
		default:
			return nil, fmt.Errorf("unknown source %q (want browser, terminal, or unknown)", v)
		}
	}
	return out, nil
}

func parseCategories(values []string) ([]types.Category, error) {
	var out []types.Category
	for _, v := range values {
		switch c := types.Category(strings.ToLower(v)); c {
		case types.CategorySyntax, types.CategoryRuntime, types.CategoryNetwork,
			types.CategoryPermission, types.CategoryResource, types.CategoryLogic,
			types.CategoryUnknown:
			out = append(out, c)
		default:
			return nil, fmt.Errorf("unknown category %q", v)
		}
	}
	return out, nil
}

func parseSeverities(values []string) ([]types.Severity, error) {
	var out []types.Severity
	for _, v := range values {
		switch s := types.Severity(strings.ToLower(v)); s {
		case types.SeverityLow, types.SeverityMedium, types.SeverityHigh, types.SeverityCritical:
			out = append(out, s)
		default:
			return nil, fmt.Errorf("unknown severity %q", v)
		}
	}
	return out, nil
}
