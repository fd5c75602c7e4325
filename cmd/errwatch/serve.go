package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/errwatch/errwatch/internal/collector"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the error collection service",
	Long: `Start the coordinator and read error events from stdin.

Events arrive as newline-delimited JSON, one event per line, tagged with
a "source" field:

  {"source": "browser", "level": "error", "message": "TypeError: x is null", "url": "https://..."}
  {"source": "terminal", "command": "npm test", "exit_code": 1, "stderr": "..."}

Collected errors are deduplicated, indexed, and grouped; groups of similar
errors are automatically summarized through the configured AI endpoint.
The service flushes and shuts down on SIGINT/SIGTERM or stdin EOF.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runServe(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe() error {
	m, err := buildManager(cfg)
	if err != nil {
		return err
	}

	browser := collector.NewBrowserCollector(m.RegisterError)
	terminal := collector.NewTerminalCollector(m.RegisterError)
	if err := m.RegisterCollector(browser); err != nil {
		return err
	}
	if err := m.RegisterCollector(terminal); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := m.Start(ctx); err != nil {
		return err
	}
	if err := m.StartCollection(ctx, cfg.Collection.EnabledSources...); err != nil {
		_ = m.Stop()
		return err
	}

	green := color.New(color.FgGreen).SprintFunc()
	fmt.Printf("%s errwatch collecting from %s (data: %s)\n",
		green("●"), strings.Join(cfg.Collection.EnabledSources, ", "), cfg.Storage.DataDirectory)

	done := make(chan struct{})
	go func() {
		defer close(done)
		readEvents(ctx, browser, terminal)
	}()

	select {
	case <-ctx.Done():
	case <-done:
	}

	fmt.Println("\nShutting down...")
	return m.Stop()
}

// readEvents consumes newline-delimited JSON events from stdin until EOF
// or cancellation.
func readEvents(ctx context.Context, browser *collector.BrowserCollector, terminal *collector.TerminalCollector) {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		dispatchEvent([]byte(line), browser, terminal)
	}
	if err := scanner.Err(); err != nil {
		slog.Error("stdin read failed", "error", err)
	}
}

func dispatchEvent(line []byte, browser *collector.BrowserCollector, terminal *collector.TerminalCollector) {
	var envelope struct {
		Source string `json:"source"`
	}
	if err := json.Unmarshal(line, &envelope); err != nil {
		slog.Warn("dropping malformed event", "error", err)
		return
	}

	switch envelope.Source {
	case "browser":
		var event collector.ConsoleEvent
		if err := json.Unmarshal(line, &event); err != nil {
			slog.Warn("dropping malformed console event", "error", err)
			return
		}
		if _, err := browser.CollectConsoleEvent(event); err != nil {
			slog.Error("failed to collect console event", "error", err)
		}
	case "terminal":
		var result collector.CommandResult
		if err := json.Unmarshal(line, &result); err != nil {
			slog.Warn("dropping malformed command result", "error", err)
			return
		}
		if _, err := terminal.CollectCommandResult(result); err != nil {
			slog.Error("failed to collect command result", "error", err)
		}
	default:
		slog.Warn("dropping event with unknown source", "source", envelope.Source)
	}
}
