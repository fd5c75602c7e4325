package manager

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/errwatch/errwatch/internal/types"
)

// groupKeyMessageChars bounds how much of the message participates in the
// similarity key.
const groupKeyMessageChars = 50

// group accumulates same-key error IDs until the count threshold is reached
// or the debounce timer fires. gen guards against a stale timer from an
// earlier cycle of the same key firing into a fresh group.
type group struct {
	ids   []string
	timer *time.Timer
	gen   uint64
}

// groupKey derives the similarity key batching errors for auto-summarization:
// source, category, a message prefix, and the browser error type or the first
// command token.
func groupKey(rec *types.ErrorRecord) string {
	message := rec.Message
	if len(message) > groupKeyMessageChars {
		message = message[:groupKeyMessageChars]
	}
	parts := []string{string(rec.Source), string(rec.Category), message}
	switch rec.Kind {
	case types.KindBrowser:
		parts = append(parts, rec.ErrorType)
	case types.KindTerminal:
		parts = append(parts, rec.CommandToken())
	}
	return strings.Join(parts, "|")
}

// observeForGrouping feeds one newly stored record into the grouping state
// machine. The first member of a key starts the debounce timer; reaching the
// threshold triggers summarization immediately and cancels the timer.
func (m *Manager) observeForGrouping(rec *types.ErrorRecord) {
	key := groupKey(rec)

	m.mu.Lock()
	g, ok := m.groups[key]
	if !ok {
		m.groupGen++
		gen := m.groupGen
		g = &group{gen: gen}
		g.timer = time.AfterFunc(m.groupDebounce, func() {
			m.fireGroup(key, gen)
		})
		m.groups[key] = g
	}
	g.ids = append(g.ids, rec.ID)

	if len(g.ids) < m.groupThreshold {
		m.mu.Unlock()
		return
	}

	// Threshold reached: trigger now, before the timer.
	g.timer.Stop()
	ids := g.ids
	delete(m.groups, key)
	m.mu.Unlock()

	slog.Debug("group reached threshold", "key", key, "errors", len(ids))
	go m.summarizeGroup(key, ids)
}

// fireGroup is the debounce timer callback. A group cleared by an early
// trigger, or replaced by a newer cycle of the same key, is left alone.
func (m *Manager) fireGroup(key string, gen uint64) {
	m.mu.Lock()
	g, ok := m.groups[key]
	if !ok || g.gen != gen {
		m.mu.Unlock()
		return
	}
	ids := g.ids
	delete(m.groups, key)
	m.mu.Unlock()

	slog.Debug("group debounce elapsed", "key", key, "errors", len(ids))
	m.summarizeGroup(key, ids)
}

// summarizeGroup runs one summarization for a triggered group.
func (m *Manager) summarizeGroup(key string, ids []string) {
	ctx, cancel := context.WithTimeout(m.baseCtx(), m.summaryTimeout)
	defer cancel()

	summaryID, err := m.RequestSummary(ctx, ids)
	if err != nil {
		slog.Error("auto-summarization failed", "key", key, "errors", len(ids), "error", err)
		return
	}

	m.mu.Lock()
	m.stats.AutoSummaries++
	m.mu.Unlock()
	slog.Info("auto-generated summary", "summary_id", summaryID, "errors", len(ids))
}

// stopGroupTimers cancels every pending debounce timer. Called on shutdown.
func (m *Manager) stopGroupTimers() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, g := range m.groups {
		g.timer.Stop()
		delete(m.groups, key)
	}
}
