// Package manager implements the coordination core: error intake with
// ignore filtering and throttling, similarity grouping with debounce timers,
// auto-summarization, and the query/health/cleanup surface over both
// repositories.
package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/errwatch/errwatch/internal/collector"
	"github.com/errwatch/errwatch/internal/store"
	"github.com/errwatch/errwatch/internal/summarizer"
	"github.com/errwatch/errwatch/internal/types"
)

// Config configures a Manager. Zero values take the defaults noted per
// field.
type Config struct {
	AutoSummarize      bool
	GroupThreshold     int           // default 5
	GroupDebounce      time.Duration // default 5m
	MaxErrorsPerMinute int           // default 100
	IgnoredPatterns    []string      // regexps over the message
	IgnoredDomains     []string      // substrings of a browser record's URL
	RetentionDays      int           // default 30
	SummaryTimeout     time.Duration // default 60s
	FlushInterval      time.Duration // default 60s
	CleanupInterval    time.Duration // default 24h
}

// Observer is notified of each newly stored error. Observers run
// synchronously in registration order; a panicking observer is isolated.
type Observer func(*types.ErrorRecord)

// Stats are the manager's own counters, separate from store statistics.
type Stats struct {
	ErrorsProcessed      int            `json:"errors_processed"`
	ErrorsBySource       map[string]int `json:"errors_by_source"`
	ErrorsIgnored        int            `json:"errors_ignored"`
	ErrorsThrottled      int            `json:"errors_throttled"`
	DuplicatesSuppressed int            `json:"duplicates_suppressed"`
	SummariesGenerated   int            `json:"summaries_generated"`
	AutoSummaries        int            `json:"auto_summaries"`
	SummaryFailures      int            `json:"summary_failures"`
	PendingGroups        int            `json:"pending_groups"`
	CollectorsActive     int            `json:"collectors_active"`
	LastErrorTime        *time.Time     `json:"last_error_time,omitempty"`
	LastSummaryTime      *time.Time     `json:"last_summary_time,omitempty"`
}

// Statistics aggregates manager counters with both repositories' numbers.
type Statistics struct {
	Manager   Stats                   `json:"manager"`
	Errors    store.ErrorStatistics   `json:"errors"`
	Summaries store.SummaryStatistics `json:"summaries"`
}

// Health is the outcome of a component-by-component health check.
type Health struct {
	Overall    bool            `json:"overall"`
	Components map[string]bool `json:"components"`
}

// CleanupResult counts what a retention pass deleted.
type CleanupResult struct {
	ErrorsDeleted    int `json:"errors_deleted"`
	SummariesDeleted int `json:"summaries_deleted"`
}

// Manager owns both repositories, the summarization worker, and the
// registered collectors.
type Manager struct {
	errors    *store.ErrorStore
	summaries *store.SummaryStore
	worker    *summarizer.Worker

	ignoredPatterns []*regexp.Regexp
	ignoredDomains  []string
	intake          *rate.Limiter

	autoSummarize   bool
	groupThreshold  int
	groupDebounce   time.Duration
	summaryTimeout  time.Duration
	retentionDays   int
	flushInterval   time.Duration
	cleanupInterval time.Duration

	mu         sync.Mutex
	groups     map[string]*group
	groupGen   uint64
	observers  []Observer
	collectors map[string]collector.Collector
	stats      Stats
	running    bool

	runCtx context.Context
	cancel context.CancelFunc
	eg     *errgroup.Group
}

// New wires a manager around opened repositories and a worker.
func New(errs *store.ErrorStore, summaries *store.SummaryStore, worker *summarizer.Worker, cfg Config) (*Manager, error) {
	patterns := make([]*regexp.Regexp, 0, len(cfg.IgnoredPatterns))
	for _, p := range cfg.IgnoredPatterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("invalid ignored pattern %q: %w", p, err)
		}
		patterns = append(patterns, re)
	}

	if cfg.GroupThreshold <= 0 {
		cfg.GroupThreshold = 5
	}
	if cfg.GroupDebounce <= 0 {
		cfg.GroupDebounce = 5 * time.Minute
	}
	if cfg.MaxErrorsPerMinute <= 0 {
		cfg.MaxErrorsPerMinute = 100
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 30
	}
	if cfg.SummaryTimeout <= 0 {
		cfg.SummaryTimeout = 60 * time.Second
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 60 * time.Second
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 24 * time.Hour
	}

	return &Manager{
		errors:          errs,
		summaries:       summaries,
		worker:          worker,
		ignoredPatterns: patterns,
		ignoredDomains:  cfg.IgnoredDomains,
		intake:          rate.NewLimiter(rate.Limit(float64(cfg.MaxErrorsPerMinute)/60.0), cfg.MaxErrorsPerMinute),
		autoSummarize:   cfg.AutoSummarize,
		groupThreshold:  cfg.GroupThreshold,
		groupDebounce:   cfg.GroupDebounce,
		summaryTimeout:  cfg.SummaryTimeout,
		retentionDays:   cfg.RetentionDays,
		flushInterval:   cfg.FlushInterval,
		cleanupInterval: cfg.CleanupInterval,
		groups:          make(map[string]*group),
		collectors:      make(map[string]collector.Collector),
		stats:           Stats{ErrorsBySource: make(map[string]int)},
	}, nil
}

// Start launches the worker loop, the flush loops, and the periodic cleanup.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		slog.Warn("manager is already running")
		return nil
	}
	m.running = true
	m.runCtx, m.cancel = context.WithCancel(ctx)
	m.eg, _ = errgroup.WithContext(m.runCtx)
	runCtx := m.runCtx
	m.mu.Unlock()

	m.eg.Go(func() error {
		if err := m.worker.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	m.eg.Go(func() error {
		m.errors.FlushLoop(runCtx, m.flushInterval)
		return nil
	})
	m.eg.Go(func() error {
		m.summaries.FlushLoop(runCtx, m.flushInterval)
		return nil
	})
	m.eg.Go(func() error {
		m.cleanupLoop(runCtx)
		return nil
	})

	slog.Info("error manager started")
	return nil
}

// Stop cancels all background work, stops collectors and pending debounce
// timers, and flushes both repositories so no accepted write is lost.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	cancel := m.cancel
	eg := m.eg
	collectors := make([]collector.Collector, 0, len(m.collectors))
	for _, c := range m.collectors {
		collectors = append(collectors, c)
	}
	m.mu.Unlock()

	for _, c := range collectors {
		if c.Active() {
			if err := c.Stop(); err != nil {
				slog.Error("failed to stop collector", "collector", c.Name(), "error", err)
			}
		}
	}

	m.stopGroupTimers()
	cancel()
	err := eg.Wait()

	if ferr := m.errors.Flush(); ferr != nil {
		err = errors.Join(err, ferr)
	}
	if ferr := m.summaries.Flush(); ferr != nil {
		err = errors.Join(err, ferr)
	}

	slog.Info("error manager stopped")
	return err
}

// baseCtx is the context background work should derive from; it falls back
// to Background when the manager was never started (tests, direct calls).
func (m *Manager) baseCtx() context.Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.runCtx != nil {
		return m.runCtx
	}
	return context.Background()
}

// RegisterObserver adds a new-error observer. Not removable; register for
// the manager's lifetime.
func (m *Manager) RegisterObserver(fn Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, fn)
}

// RegisterCollector attaches a collector for lifecycle and health tracking.
func (m *Manager) RegisterCollector(c collector.Collector) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.collectors[c.Name()]; ok {
		return fmt.Errorf("collector %s is already registered", c.Name())
	}
	m.collectors[c.Name()] = c
	slog.Info("registered collector", "collector", c.Name())
	return nil
}

// StartCollection starts the named collectors, or all of them.
func (m *Manager) StartCollection(ctx context.Context, names ...string) error {
	for _, c := range m.selectCollectors(names) {
		if c.Active() {
			continue
		}
		if err := c.Start(ctx); err != nil {
			return fmt.Errorf("failed to start collector %s: %w", c.Name(), err)
		}
		slog.Info("started collection", "collector", c.Name())
	}
	return nil
}

// StopCollection stops the named collectors, or all of them.
func (m *Manager) StopCollection(names ...string) error {
	for _, c := range m.selectCollectors(names) {
		if !c.Active() {
			continue
		}
		if err := c.Stop(); err != nil {
			return fmt.Errorf("failed to stop collector %s: %w", c.Name(), err)
		}
		slog.Info("stopped collection", "collector", c.Name())
	}
	return nil
}

func (m *Manager) selectCollectors(names []string) []collector.Collector {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []collector.Collector
	if len(names) == 0 {
		for _, c := range m.collectors {
			out = append(out, c)
		}
		return out
	}
	for _, name := range names {
		if c, ok := m.collectors[name]; ok {
			out = append(out, c)
		} else {
			slog.Warn("collector not found", "collector", name)
		}
	}
	return out
}

// RegisterError is the intake path. Ignored records return their own ID
// without storage or grouping; throttled records likewise; duplicates return
// the existing ID without re-triggering grouping or observers.
func (m *Manager) RegisterError(rec *types.ErrorRecord) (string, error) {
	if m.shouldIgnore(rec) {
		m.mu.Lock()
		m.stats.ErrorsIgnored++
		m.mu.Unlock()
		slog.Debug("ignoring error", "message", firstChars(rec.Message, 50))
		return rec.ID, nil
	}

	if !m.intake.Allow() {
		m.mu.Lock()
		m.stats.ErrorsThrottled++
		m.mu.Unlock()
		slog.Warn("intake throttled, dropping error", "source", rec.Source)
		return rec.ID, nil
	}

	id, err := m.errors.Store(rec)
	if err != nil {
		return "", err
	}

	if id != rec.ID {
		m.mu.Lock()
		m.stats.DuplicatesSuppressed++
		m.mu.Unlock()
		return id, nil
	}

	now := time.Now().UTC()
	m.mu.Lock()
	m.stats.ErrorsProcessed++
	m.stats.ErrorsBySource[string(rec.Source)]++
	m.stats.LastErrorTime = &now
	observers := append([]Observer(nil), m.observers...)
	m.mu.Unlock()

	for _, fn := range observers {
		notifyObserver(fn, rec)
	}

	if m.autoSummarize {
		m.observeForGrouping(rec)
	}

	slog.Debug("registered error", "id", id, "source", rec.Source, "category", rec.Category)
	return id, nil
}

func notifyObserver(fn Observer, rec *types.ErrorRecord) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("error observer panicked", "panic", r)
		}
	}()
	fn(rec)
}

func (m *Manager) shouldIgnore(rec *types.ErrorRecord) bool {
	for _, re := range m.ignoredPatterns {
		if re.MatchString(rec.Message) {
			return true
		}
	}
	if rec.Kind == types.KindBrowser && rec.URL != "" {
		for _, domain := range m.ignoredDomains {
			if strings.Contains(rec.URL, domain) {
				return true
			}
		}
	}
	return false
}

// RequestSummary loads the given records and runs one summarization,
// persisting the result. The wait is bounded by the configured summary
// timeout unless ctx ends sooner.
func (m *Manager) RequestSummary(ctx context.Context, errorIDs []string) (string, error) {
	if len(errorIDs) == 0 {
		return "", fmt.Errorf("%w: no error IDs given", types.ErrValidation)
	}

	records := make([]*types.ErrorRecord, 0, len(errorIDs))
	for _, id := range errorIDs {
		rec, err := m.errors.Get(id)
		if err != nil {
			slog.Warn("skipping unknown error in summary request", "id", id)
			continue
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		return "", fmt.Errorf("no errors found for summarization: %w", types.ErrNotFound)
	}

	// The caller's wait is bounded, but the summarization itself runs
	// against the manager's lifetime: a result arriving after the caller
	// gave up is still persisted.
	type summarized struct {
		id  string
		err error
	}
	done := make(chan summarized, 1)
	go func() {
		summary, err := m.worker.Summarize(m.baseCtx(), records)
		if err != nil {
			m.mu.Lock()
			m.stats.SummaryFailures++
			m.mu.Unlock()
			done <- summarized{err: err}
			return
		}

		summaryID, err := m.summaries.Store(summary)
		if err != nil {
			done <- summarized{err: err}
			return
		}

		now := time.Now().UTC()
		m.mu.Lock()
		m.stats.SummariesGenerated++
		m.stats.LastSummaryTime = &now
		m.mu.Unlock()
		slog.Info("generated summary", "summary_id", summaryID, "errors", len(records))
		done <- summarized{id: summaryID}
	}()

	ctx, cancel := context.WithTimeout(ctx, m.summaryTimeout)
	defer cancel()

	select {
	case out := <-done:
		return out.id, out.err
	case <-ctx.Done():
		return "", fmt.Errorf("summary request abandoned after %s: %w", m.summaryTimeout, types.ErrTimeout)
	}
}

// SolutionSuggestions asks the worker for extra solutions for a stored
// summary. Endpoint failures surface as an empty list.
func (m *Manager) SolutionSuggestions(ctx context.Context, summaryID string) ([]string, error) {
	summary, err := m.summaries.Get(summaryID)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, m.summaryTimeout)
	defer cancel()
	return m.worker.SolutionSuggestions(ctx, summary), nil
}

// QueryErrors returns errors matching the filters.
func (m *Manager) QueryErrors(f store.ErrorFilters) []*types.ErrorRecord {
	return m.errors.Query(f)
}

// GetError returns one error record by ID.
func (m *Manager) GetError(id string) (*types.ErrorRecord, error) {
	return m.errors.Get(id)
}

// DeleteError removes one error record. The deletion cascades to the
// summary back-reference index; generated summary content keeps the ID.
func (m *Manager) DeleteError(id string) bool {
	if !m.errors.Delete(id) {
		return false
	}
	m.summaries.RemoveErrorRef(id)
	return true
}

// QuerySummaries returns summaries matching the filters.
func (m *Manager) QuerySummaries(f store.SummaryFilters) []*types.SummarySection {
	return m.summaries.Query(f)
}

// GetSummary returns one summary by ID.
func (m *Manager) GetSummary(id string) (*types.SummarySection, error) {
	return m.summaries.Get(id)
}

// GetSummariesForError returns every summary covering the error, highest
// confidence first.
func (m *Manager) GetSummariesForError(errorID string) []*types.SummarySection {
	return m.summaries.GetForError(errorID)
}

// Statistics aggregates manager counters and repository statistics.
func (m *Manager) Statistics() Statistics {
	m.mu.Lock()
	stats := m.stats
	stats.ErrorsBySource = make(map[string]int, len(m.stats.ErrorsBySource))
	for k, v := range m.stats.ErrorsBySource {
		stats.ErrorsBySource[k] = v
	}
	stats.PendingGroups = len(m.groups)
	stats.CollectorsActive = 0
	for _, c := range m.collectors {
		if c.Active() {
			stats.CollectorsActive++
		}
	}
	m.mu.Unlock()

	return Statistics{
		Manager:   stats,
		Errors:    m.errors.Statistics(),
		Summaries: m.summaries.Statistics(),
	}
}

// HealthCheck probes each component. Overall is true only when every
// component reports healthy.
func (m *Manager) HealthCheck(ctx context.Context) Health {
	health := Health{Overall: true, Components: make(map[string]bool)}

	health.Components["error_store"] = m.errors.Flush() == nil
	health.Components["summary_store"] = m.summaries.Flush() == nil

	m.mu.Lock()
	running := m.running
	collectors := make(map[string]collector.Collector, len(m.collectors))
	for name, c := range m.collectors {
		collectors[name] = c
	}
	m.mu.Unlock()

	health.Components["summarizer"] = running
	for name, c := range collectors {
		health.Components["collector:"+name] = c.Healthy(ctx)
	}

	for _, ok := range health.Components {
		if !ok {
			health.Overall = false
			break
		}
	}
	return health
}

// Cleanup deletes errors and summaries older than the retention period.
// Zero days uses the configured retention.
func (m *Manager) Cleanup(days int) CleanupResult {
	if days <= 0 {
		days = m.retentionDays
	}
	deleted := m.errors.CleanupOlderThan(days)
	for _, id := range deleted {
		m.summaries.RemoveErrorRef(id)
	}
	result := CleanupResult{
		ErrorsDeleted:    len(deleted),
		SummariesDeleted: m.summaries.CleanupOlderThan(days),
	}
	slog.Info("cleanup finished", "errors_deleted", result.ErrorsDeleted, "summaries_deleted", result.SummariesDeleted)
	return result
}

func (m *Manager) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(m.cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Cleanup(0)
		}
	}
}

func firstChars(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
