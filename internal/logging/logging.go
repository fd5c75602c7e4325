// Package logging configures the process-wide structured logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Options selects the handler installed by Setup.
type Options struct {
	// Level is one of debug, info, warn, error. Empty means info.
	Level string
	// JSON switches from the human-readable text handler to JSON output.
	JSON bool
	// Output receives log lines. Nil panics; callers pass os.Stderr or a file.
	Output io.Writer
}

// Setup installs the default slog logger. Everything in the process logs
// through slog.Default after this runs.
func Setup(opts Options) error {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return err
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if opts.JSON {
		handler = slog.NewJSONHandler(opts.Output, handlerOpts)
	} else {
		handler = slog.NewTextHandler(opts.Output, handlerOpts)
	}

	slog.SetDefault(slog.New(handler))
	return nil
}

// ParseLevel maps a config string to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q (want debug, info, warn, or error)", s)
	}
}
