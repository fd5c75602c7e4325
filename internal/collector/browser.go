package collector

import (
	"log/slog"
	"strings"

	"github.com/errwatch/errwatch/internal/types"
)

// ConsoleEvent is one raw browser console entry as delivered by a browser
// shim (extension, bookmarklet, devtools forwarder).
type ConsoleEvent struct {
	Level        string            `json:"level"`
	Message      string            `json:"message"`
	StackTrace   string            `json:"stack_trace,omitempty"`
	URL          string            `json:"url,omitempty"`
	UserAgent    string            `json:"user_agent,omitempty"`
	PageTitle    string            `json:"page_title,omitempty"`
	LineNumber   int               `json:"line_number,omitempty"`
	ColumnNumber int               `json:"column_number,omitempty"`
	ErrorType    string            `json:"error_type,omitempty"`
	Extra        map[string]string `json:"extra,omitempty"`
}

// BrowserCollector normalizes console events into browser error records.
// Only error-level entries become records; log/info/debug entries are
// skipped.
type BrowserCollector struct {
	base
}

// NewBrowserCollector builds a browser collector delivering to register.
func NewBrowserCollector(register RegisterFunc) *BrowserCollector {
	return &BrowserCollector{base: base{name: "browser", register: register}}
}

// collectedLevels are the console levels worth recording.
var collectedLevels = map[string]bool{
	"error":     true,
	"exception": true,
	"warn":      true,
	"warning":   true,
}

// CollectConsoleEvent normalizes one console event. Skipped events (level
// below the bar, empty message) return an empty ID and no error.
func (c *BrowserCollector) CollectConsoleEvent(event ConsoleEvent) (string, error) {
	if !collectedLevels[strings.ToLower(event.Level)] || strings.TrimSpace(event.Message) == "" {
		c.skip()
		return "", nil
	}

	rec, err := types.NewBrowserError(types.BrowserErrorInput{
		Message:      event.Message,
		StackTrace:   event.StackTrace,
		URL:          event.URL,
		UserAgent:    event.UserAgent,
		PageTitle:    event.PageTitle,
		LineNumber:   event.LineNumber,
		ColumnNumber: event.ColumnNumber,
		ErrorType:    event.ErrorType,
	})
	if err != nil {
		return "", err
	}
	if len(event.Extra) > 0 {
		rec.Context = event.Extra
	}
	if strings.EqualFold(event.Level, "warn") || strings.EqualFold(event.Level, "warning") {
		rec.Severity = types.SeverityLow
	}

	id, err := c.deliver(rec)
	if err != nil {
		slog.Error("failed to register browser error", "url", event.URL, "error", err)
		return "", err
	}
	return id, nil
}
