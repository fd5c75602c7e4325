// Package types defines the core data model: error records collected from
// producers and the AI-generated summaries that analyze them.
package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Source identifies where an error record came from.
type Source string

const (
	SourceBrowser  Source = "browser"
	SourceTerminal Source = "terminal"
	SourceUnknown  Source = "unknown"
)

// IsValid checks if the source value is valid
func (s Source) IsValid() bool {
	switch s {
	case SourceBrowser, SourceTerminal, SourceUnknown:
		return true
	}
	return false
}

// Severity represents how serious an error is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// IsValid checks if the severity value is valid
func (s Severity) IsValid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// Category classifies the failure mode of an error.
type Category string

const (
	CategorySyntax     Category = "syntax"
	CategoryRuntime    Category = "runtime"
	CategoryNetwork    Category = "network"
	CategoryPermission Category = "permission"
	CategoryResource   Category = "resource"
	CategoryLogic      Category = "logic"
	CategoryUnknown    Category = "unknown"
)

// IsValid checks if the category value is valid
func (c Category) IsValid() bool {
	switch c {
	case CategorySyntax, CategoryRuntime, CategoryNetwork, CategoryPermission,
		CategoryResource, CategoryLogic, CategoryUnknown:
		return true
	}
	return false
}

// Kind discriminates the record variants. Kind-specific fields are only
// meaningful for the matching kind.
type Kind string

const (
	KindGeneric  Kind = "generic"
	KindBrowser  Kind = "browser"
	KindTerminal Kind = "terminal"
)

// ErrorRecord is one normalized error event from a producer. Records are
// immutable after creation: intake appends them and only retention cleanup or
// explicit deletion removes them.
type ErrorRecord struct {
	ID         string            `json:"id"`
	Timestamp  time.Time         `json:"timestamp"`
	Source     Source            `json:"source"`
	Kind       Kind              `json:"kind"`
	Message    string            `json:"message"`
	StackTrace string            `json:"stack_trace,omitempty"`
	Context    map[string]string `json:"context,omitempty"`
	Severity   Severity          `json:"severity"`
	Category   Category          `json:"category"`

	// Browser fields (Kind == KindBrowser)
	URL          string `json:"url,omitempty"`
	UserAgent    string `json:"user_agent,omitempty"`
	PageTitle    string `json:"page_title,omitempty"`
	LineNumber   int    `json:"line_number,omitempty"`
	ColumnNumber int    `json:"column_number,omitempty"`
	ErrorType    string `json:"error_type,omitempty"`

	// Terminal fields (Kind == KindTerminal)
	Command          string            `json:"command,omitempty"`
	ExitCode         int               `json:"exit_code,omitempty"`
	WorkingDirectory string            `json:"working_directory,omitempty"`
	Environment      map[string]string `json:"environment,omitempty"`
	Stdout           string            `json:"stdout,omitempty"`
	Stderr           string            `json:"stderr,omitempty"`
}

// Validate checks if the record has valid field values
func (e *ErrorRecord) Validate() error {
	if strings.TrimSpace(e.Message) == "" {
		return fmt.Errorf("%w: error message cannot be empty", ErrValidation)
	}
	if !e.Source.IsValid() {
		return fmt.Errorf("%w: invalid source %q", ErrValidation, e.Source)
	}
	if !e.Severity.IsValid() {
		return fmt.Errorf("%w: invalid severity %q", ErrValidation, e.Severity)
	}
	if !e.Category.IsValid() {
		return fmt.Errorf("%w: invalid category %q", ErrValidation, e.Category)
	}
	return nil
}

// NewGenericError creates an error record with no kind-specific fields.
// Category and severity default to the rule-based classification over the
// message when not supplied (zero value).
func NewGenericError(message string) (*ErrorRecord, error) {
	rec := &ErrorRecord{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		Source:    SourceUnknown,
		Kind:      KindGeneric,
		Message:   message,
	}
	return finishRecord(rec)
}

// BrowserErrorInput carries the producer-supplied fields for a browser error.
type BrowserErrorInput struct {
	Message      string
	StackTrace   string
	URL          string
	UserAgent    string
	PageTitle    string
	LineNumber   int
	ColumnNumber int
	ErrorType    string
}

// NewBrowserError creates a browser-sourced error record. The JavaScript
// error type is extracted from the message when not supplied.
func NewBrowserError(in BrowserErrorInput) (*ErrorRecord, error) {
	rec := &ErrorRecord{
		ID:           uuid.New().String(),
		Timestamp:    time.Now().UTC(),
		Source:       SourceBrowser,
		Kind:         KindBrowser,
		Message:      in.Message,
		StackTrace:   in.StackTrace,
		URL:          in.URL,
		UserAgent:    in.UserAgent,
		PageTitle:    in.PageTitle,
		LineNumber:   in.LineNumber,
		ColumnNumber: in.ColumnNumber,
		ErrorType:    in.ErrorType,
	}
	if rec.ErrorType == "" {
		rec.ErrorType = ExtractJSErrorType(rec.Message)
	}
	return finishRecord(rec)
}

// TerminalErrorInput carries the producer-supplied fields for a terminal error.
type TerminalErrorInput struct {
	Message          string
	Command          string
	ExitCode         int
	WorkingDirectory string
	Environment      map[string]string
	Stdout           string
	Stderr           string
}

// NewTerminalError creates a terminal-sourced error record. An empty message
// falls back to the trimmed stderr output. Categorization uses the terminal
// decision table (command token plus output keywords) before the generic one.
func NewTerminalError(in TerminalErrorInput) (*ErrorRecord, error) {
	message := in.Message
	if strings.TrimSpace(message) == "" && in.Stderr != "" {
		message = strings.TrimSpace(in.Stderr)
	}
	rec := &ErrorRecord{
		ID:               uuid.New().String(),
		Timestamp:        time.Now().UTC(),
		Source:           SourceTerminal,
		Kind:             KindTerminal,
		Message:          message,
		Command:          in.Command,
		ExitCode:         in.ExitCode,
		WorkingDirectory: in.WorkingDirectory,
		Environment:      in.Environment,
		Stdout:           in.Stdout,
		Stderr:           in.Stderr,
	}
	return finishRecord(rec)
}

// finishRecord applies default classification and validates. Explicitly
// supplied category/severity values are left alone.
func finishRecord(rec *ErrorRecord) (*ErrorRecord, error) {
	if rec.Category == "" {
		if rec.Kind == KindTerminal {
			rec.Category = ClassifyTerminal(rec.Command, rec.Stderr+" "+rec.Message, rec.ExitCode)
		} else {
			rec.Category = ClassifyCategory(rec.Message)
		}
	}
	if rec.Severity == "" {
		rec.Severity = ClassifySeverity(rec.Message, rec.Category)
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return rec, nil
}

// Location returns a human-readable location string for a browser record.
func (e *ErrorRecord) Location() string {
	var parts []string
	if e.URL != "" {
		parts = append(parts, e.URL)
	}
	switch {
	case e.LineNumber > 0 && e.ColumnNumber > 0:
		parts = append(parts, fmt.Sprintf("line %d, column %d", e.LineNumber, e.ColumnNumber))
	case e.LineNumber > 0:
		parts = append(parts, fmt.Sprintf("line %d", e.LineNumber))
	}
	if len(parts) == 0 {
		return "unknown location"
	}
	return strings.Join(parts, " at ")
}

// CommandSummary returns the failed command, truncated for display.
func (e *ErrorRecord) CommandSummary() string {
	if e.Command == "" {
		return "unknown command"
	}
	if len(e.Command) > 100 {
		return e.Command[:97] + "..."
	}
	return e.Command
}

// CommandToken returns the first token of the command, used in grouping keys.
func (e *ErrorRecord) CommandToken() string {
	fields := strings.Fields(e.Command)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

var jsErrorTypes = []string{
	"TypeError", "ReferenceError", "SyntaxError", "RangeError",
	"EvalError", "URIError", "InternalError", "Error",
}

// ExtractJSErrorType pulls the JavaScript error type from a console message.
// Handles both bare messages ("TypeError: x is not a function") and the
// "Uncaught TypeError: ..." form. Falls back to "Error".
func ExtractJSErrorType(message string) string {
	message = strings.TrimSpace(message)
	for _, t := range jsErrorTypes {
		if strings.HasPrefix(message, t) {
			return t
		}
	}
	if strings.Contains(message, "Uncaught") {
		if head, _, ok := strings.Cut(message, ":"); ok {
			if fields := strings.Fields(head); len(fields) > 0 {
				candidate := fields[len(fields)-1]
				for _, t := range jsErrorTypes {
					if candidate == t {
						return t
					}
				}
			}
		}
	}
	return "Error"
}
