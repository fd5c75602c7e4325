package collector

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/errwatch/errwatch/internal/types"
)

// CommandResult is one finished shell command as reported by a shell hook or
// wrapper.
type CommandResult struct {
	Command          string            `json:"command"`
	ExitCode         int               `json:"exit_code"`
	Stdout           string            `json:"stdout,omitempty"`
	Stderr           string            `json:"stderr,omitempty"`
	WorkingDirectory string            `json:"working_directory,omitempty"`
	Environment      map[string]string `json:"environment,omitempty"`
}

// TerminalCollector normalizes failed command results into terminal error
// records. Successful commands with clean stderr and interactive programs
// are skipped.
type TerminalCollector struct {
	base
}

// NewTerminalCollector builds a terminal collector delivering to register.
func NewTerminalCollector(register RegisterFunc) *TerminalCollector {
	return &TerminalCollector{base: base{name: "terminal", register: register}}
}

// interactiveCommands never produce records: their exit codes reflect user
// interaction, not failures worth analyzing.
var interactiveCommands = map[string]bool{
	"vim": true, "vi": true, "nano": true, "emacs": true,
	"less": true, "more": true, "man": true,
	"top": true, "htop": true, "watch": true,
	"ssh": true, "tmux": true, "screen": true,
}

// stderrErrorPatterns flag a command as failed even when it exited zero.
var stderrErrorPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)error[:\s]`),
	regexp.MustCompile(`(?i)fatal`),
	regexp.MustCompile(`(?i)panic`),
	regexp.MustCompile(`(?i)exception`),
	regexp.MustCompile(`(?i)command not found`),
	regexp.MustCompile(`(?i)permission denied`),
	regexp.MustCompile(`(?i)segmentation fault`),
	regexp.MustCompile(`(?i)compilation failed`),
	regexp.MustCompile(`(?i)build failed`),
	regexp.MustCompile(`(?i)test(s)? failed`),
}

// CollectCommandResult normalizes one command result. Clean exits,
// interactive commands, and output-free failures are skipped with an empty
// ID and no error.
func (c *TerminalCollector) CollectCommandResult(result CommandResult) (string, error) {
	if !c.isFailure(result) {
		c.skip()
		return "", nil
	}

	var message string
	if strings.TrimSpace(result.Stderr) == "" && result.ExitCode != 0 {
		message = fmt.Sprintf("Command failed with exit code %d", result.ExitCode)
	}

	rec, err := types.NewTerminalError(types.TerminalErrorInput{
		Message:          message,
		Command:          result.Command,
		ExitCode:         result.ExitCode,
		WorkingDirectory: result.WorkingDirectory,
		Environment:      result.Environment,
		Stdout:           result.Stdout,
		Stderr:           result.Stderr,
	})
	if err != nil {
		c.skip()
		return "", nil
	}

	id, err := c.deliver(rec)
	if err != nil {
		slog.Error("failed to register terminal error", "command", rec.CommandSummary(), "error", err)
		return "", err
	}
	return id, nil
}

func (c *TerminalCollector) isFailure(result CommandResult) bool {
	fields := strings.Fields(result.Command)
	if len(fields) > 0 && interactiveCommands[fields[0]] {
		return false
	}
	if result.ExitCode != 0 {
		return true
	}
	for _, pattern := range stderrErrorPatterns {
		if pattern.MatchString(result.Stderr) {
			return true
		}
	}
	return false
}
