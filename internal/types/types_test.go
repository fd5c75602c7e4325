package types

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGenericErrorValidation(t *testing.T) {
	rec, err := NewGenericError("ReferenceError: foo is not defined")
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, SourceUnknown, rec.Source)
	assert.Equal(t, KindGeneric, rec.Kind)
	assert.False(t, rec.Timestamp.IsZero())

	_, err = NewGenericError("")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = NewGenericError("   \t  ")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestNewBrowserError(t *testing.T) {
	rec, err := NewBrowserError(BrowserErrorInput{
		Message:      "TypeError: Cannot read property 'x' of null",
		URL:          "https://example.com/app",
		LineNumber:   42,
		ColumnNumber: 13,
	})
	require.NoError(t, err)
	assert.Equal(t, SourceBrowser, rec.Source)
	assert.Equal(t, KindBrowser, rec.Kind)
	assert.Equal(t, "TypeError", rec.ErrorType)
	assert.Equal(t, CategoryRuntime, rec.Category)
	assert.Equal(t, "https://example.com/app at line 42, column 13", rec.Location())
}

func TestNewTerminalErrorStderrFallback(t *testing.T) {
	rec, err := NewTerminalError(TerminalErrorInput{
		Command:  "npm install",
		ExitCode: 1,
		Stderr:   "  npm ERR! network request failed  \n",
	})
	require.NoError(t, err)
	assert.Equal(t, "npm ERR! network request failed", rec.Message)
	assert.Equal(t, SourceTerminal, rec.Source)
	assert.Equal(t, CategoryNetwork, rec.Category)

	// No message and no stderr fails validation
	_, err = NewTerminalError(TerminalErrorInput{Command: "true", ExitCode: 1})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestExplicitClassificationWins(t *testing.T) {
	rec := &ErrorRecord{
		Message:  "network timeout",
		Source:   SourceUnknown,
		Kind:     KindGeneric,
		Category: CategoryLogic,
		Severity: SeverityLow,
	}
	out, err := finishRecord(rec)
	require.NoError(t, err)
	assert.Equal(t, CategoryLogic, out.Category, "supplied category must not be overwritten")
	assert.Equal(t, SeverityLow, out.Severity, "supplied severity must not be overwritten")
}

func TestExtractJSErrorType(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		expected string
	}{
		{"bare type prefix", "TypeError: x is not a function", "TypeError"},
		{"reference error", "ReferenceError: y is not defined", "ReferenceError"},
		{"uncaught form", "Uncaught TypeError: Cannot read property", "TypeError"},
		{"uncaught range", "Uncaught RangeError: Maximum call stack", "RangeError"},
		{"uncaught syntax", "Uncaught SyntaxError: Unexpected token", "SyntaxError"},
		{"plain message", "something went wrong", "Error"},
		{"empty", "", "Error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractJSErrorType(tt.message))
		})
	}
}

func TestCommandSummaryTruncation(t *testing.T) {
	rec := &ErrorRecord{Command: strings.Repeat("x", 150)}
	sum := rec.CommandSummary()
	assert.Len(t, sum, 100)
	assert.True(t, strings.HasSuffix(sum, "..."))

	rec = &ErrorRecord{}
	assert.Equal(t, "unknown command", rec.CommandSummary())
}

func TestCommandToken(t *testing.T) {
	rec := &ErrorRecord{Command: "git push origin main"}
	assert.Equal(t, "git", rec.CommandToken())

	rec = &ErrorRecord{}
	assert.Equal(t, "", rec.CommandToken())
}
