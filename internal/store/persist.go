// Package store implements the deduplicated error repository and the summary
// repository. Both keep all state in memory, mirror it to one JSON document
// on disk, and flush dirty state on a fixed cycle with an atomic
// temp-file-then-rename protocol.
package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

const fileVersion = "1.0"

// flushInterval is the default period between dirty-state flushes.
const flushInterval = 60 * time.Second

// saveAtomic writes payload as indented JSON to path. The previous file is
// kept as a .backup during the write and removed only after the rename
// succeeds, so a crash mid-write leaves either the old file or the new file
// intact, never a half-written one. On failure the backup is restored and
// in-memory state remains authoritative.
func saveAtomic(path string, payload any) error {
	backup := path + ".backup"
	hadExisting := false
	if _, err := os.Stat(path); err == nil {
		if err := os.Rename(path, backup); err != nil {
			return fmt.Errorf("failed to create backup: %w", err)
		}
		hadExisting = true
	}

	restore := func() {
		if hadExisting {
			if err := os.Rename(backup, path); err != nil {
				slog.Error("failed to restore backup after write failure", "path", path, "error", err)
			}
		}
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		restore()
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		restore()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		restore()
		return fmt.Errorf("failed to replace %s: %w", filepath.Base(path), err)
	}

	if hadExisting {
		os.Remove(backup)
	}
	return nil
}

// loadJSON reads the durable file into out. If the main file is missing but
// a .backup exists, the previous save's rename did not complete; the backup
// is restored and loaded instead. A missing store is not an error: the
// repository starts empty.
func loadJSON(path string, out any) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		backup := path + ".backup"
		if _, berr := os.Stat(backup); berr != nil {
			return nil
		}
		if err := os.Rename(backup, path); err != nil {
			return fmt.Errorf("failed to restore backup: %w", err)
		}
		slog.Warn("restored repository file from backup", "path", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return nil
}
