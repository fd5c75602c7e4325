package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/errwatch/errwatch/internal/types"
)

// ErrorStoreConfig configures an ErrorStore.
type ErrorStoreConfig struct {
	// DataDir is the repository's data directory; the durable file lives at
	// <DataDir>/errors/errors.json.
	DataDir string

	// MaxErrors caps the stored record count. When an insert pushes the
	// total past the cap, the oldest records by timestamp are evicted.
	// Default: 10000.
	MaxErrors int

	// DedupUnknownSources controls whether records from sources other than
	// browser and terminal participate in deduplication (using the generic
	// message|source|category key). Default: true.
	DedupUnknownSources bool
}

// ErrorStore is the deduplicated, indexed error repository. All reads and
// writes go through an exclusive section; index structures are never
// observable half-mutated.
type ErrorStore struct {
	mu sync.Mutex

	path                string
	maxErrors           int
	dedupUnknownSources bool

	records    map[string]*types.ErrorRecord
	hashes     map[string]string // duplicate-key hash -> record ID
	bySource   map[types.Source]map[string]struct{}
	byCategory map[types.Category]map[string]struct{}
	bySeverity map[types.Severity]map[string]struct{}

	dirty bool
}

// ErrorFilters are optional conjunctive constraints for Query and Count.
// Zero times mean unbounded; the time range is half-open [Start, End).
type ErrorFilters struct {
	Start      time.Time
	End        time.Time
	Sources    []types.Source
	Categories []types.Category
	Severities []types.Severity
	Offset     int
	Limit      int // 0 = no limit
}

// ErrorStatistics summarizes repository contents.
type ErrorStatistics struct {
	Total      int            `json:"total"`
	BySource   map[string]int `json:"by_source"`
	ByCategory map[string]int `json:"by_category"`
	BySeverity map[string]int `json:"by_severity"`
	Oldest     *time.Time     `json:"oldest,omitempty"`
	Newest     *time.Time     `json:"newest,omitempty"`
}

type errorsFile struct {
	Version    string               `json:"version"`
	SavedAt    time.Time            `json:"saved_at"`
	TotalCount int                  `json:"total_count"`
	Records    []*types.ErrorRecord `json:"records"`
}

// OpenErrorStore creates the data directory if needed and loads existing
// records from durable storage before accepting writes.
func OpenErrorStore(cfg ErrorStoreConfig) (*ErrorStore, error) {
	if cfg.MaxErrors <= 0 {
		cfg.MaxErrors = 10000
	}
	dir := filepath.Join(cfg.DataDir, "errors")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create errors directory: %w", err)
	}

	s := &ErrorStore{
		path:                filepath.Join(dir, "errors.json"),
		maxErrors:           cfg.MaxErrors,
		dedupUnknownSources: cfg.DedupUnknownSources,
		records:             make(map[string]*types.ErrorRecord),
		hashes:              make(map[string]string),
		bySource:            make(map[types.Source]map[string]struct{}),
		byCategory:          make(map[types.Category]map[string]struct{}),
		bySeverity:          make(map[types.Severity]map[string]struct{}),
	}

	var file errorsFile
	if err := loadJSON(s.path, &file); err != nil {
		return nil, err
	}
	for _, rec := range file.Records {
		if err := rec.Validate(); err != nil {
			slog.Warn("skipping invalid record from durable store", "id", rec.ID, "error", err)
			continue
		}
		s.index(rec)
	}
	if len(s.records) > 0 {
		slog.Info("error store loaded", "records", len(s.records))
	}
	return s, nil
}

// DuplicateKey computes the stable content hash used for at-most-once
// storage: sha256 over (message, source, category) plus the URL for browser
// records and the command for terminal records.
func DuplicateKey(rec *types.ErrorRecord) string {
	content := rec.Message + "|" + string(rec.Source) + "|" + string(rec.Category)
	switch rec.Kind {
	case types.KindBrowser:
		if rec.URL != "" {
			content += "|" + rec.URL
		}
	case types.KindTerminal:
		if rec.Command != "" {
			content += "|" + rec.Command
		}
	}
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Store inserts a record, deduplicating by content hash. If a stored record
// shares the duplicate key, the existing ID is returned and nothing changes
// (idempotent write). Inserting past the size cap evicts the oldest records.
func (s *ErrorStore) Store(rec *types.ErrorRecord) (string, error) {
	if err := rec.Validate(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dedup := s.dedupUnknownSources || rec.Source == types.SourceBrowser || rec.Source == types.SourceTerminal
	key := DuplicateKey(rec)
	if dedup {
		if existing, ok := s.hashes[key]; ok {
			return existing, nil
		}
	}

	s.index(rec)
	s.dirty = true
	s.enforceMaxLocked()
	return rec.ID, nil
}

// index adds a record to the primary map, hash table, and secondary indexes.
// Caller holds the lock (or is still single-threaded in OpenErrorStore).
func (s *ErrorStore) index(rec *types.ErrorRecord) {
	s.records[rec.ID] = rec
	s.hashes[DuplicateKey(rec)] = rec.ID
	addToIndex(s.bySource, rec.Source, rec.ID)
	addToIndex(s.byCategory, rec.Category, rec.ID)
	addToIndex(s.bySeverity, rec.Severity, rec.ID)
}

// Get returns the record with the given ID, or types.ErrNotFound.
func (s *ErrorStore) Get(id string) (*types.ErrorRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("error %s: %w", id, types.ErrNotFound)
	}
	return rec, nil
}

// Query returns records matching every filter, sorted by timestamp
// descending, then paginated.
func (s *ErrorStore) Query(f ErrorFilters) []*types.ErrorRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	matched := s.queryLocked(f)

	start := f.Offset
	if start > len(matched) {
		start = len(matched)
	}
	end := len(matched)
	if f.Limit > 0 && start+f.Limit < end {
		end = start + f.Limit
	}
	return matched[start:end]
}

// Count returns the number of records matching the filters, ignoring
// pagination.
func (s *ErrorStore) Count(f ErrorFilters) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queryLocked(f))
}

// Total returns the total stored record count.
func (s *ErrorStore) Total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func (s *ErrorStore) queryLocked(f ErrorFilters) []*types.ErrorRecord {
	// Intersect candidate ID sets from the secondary indexes first; the
	// time filter runs over the survivors.
	candidates := s.candidateIDs(f)

	matched := make([]*types.ErrorRecord, 0, len(candidates))
	for id := range candidates {
		rec := s.records[id]
		if !f.Start.IsZero() && rec.Timestamp.Before(f.Start) {
			continue
		}
		if !f.End.IsZero() && !rec.Timestamp.Before(f.End) {
			continue
		}
		matched = append(matched, rec)
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].Timestamp.Equal(matched[j].Timestamp) {
			return matched[i].Timestamp.After(matched[j].Timestamp)
		}
		return matched[i].ID < matched[j].ID
	})
	return matched
}

func (s *ErrorStore) candidateIDs(f ErrorFilters) map[string]struct{} {
	candidates := make(map[string]struct{}, len(s.records))
	for id := range s.records {
		candidates[id] = struct{}{}
	}
	if len(f.Sources) > 0 {
		candidates = intersect(candidates, union(s.bySource, f.Sources))
	}
	if len(f.Categories) > 0 {
		candidates = intersect(candidates, union(s.byCategory, f.Categories))
	}
	if len(f.Severities) > 0 {
		candidates = intersect(candidates, union(s.bySeverity, f.Severities))
	}
	return candidates
}

// Delete removes a record and all index entries for it. Returns false if the
// ID is unknown.
func (s *ErrorStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteLocked(id)
}

func (s *ErrorStore) deleteLocked(id string) bool {
	rec, ok := s.records[id]
	if !ok {
		return false
	}
	delete(s.records, id)
	key := DuplicateKey(rec)
	if s.hashes[key] == id {
		delete(s.hashes, key)
	}
	removeFromIndex(s.bySource, rec.Source, id)
	removeFromIndex(s.byCategory, rec.Category, id)
	removeFromIndex(s.bySeverity, rec.Severity, id)
	s.dirty = true
	return true
}

// CleanupOlderThan deletes records older than the retention period and
// returns the deleted IDs so callers can cascade index removal.
func (s *ErrorStore) CleanupOlderThan(days int) []string {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	s.mu.Lock()
	defer s.mu.Unlock()

	var old []string
	for id, rec := range s.records {
		if rec.Timestamp.Before(cutoff) {
			old = append(old, id)
		}
	}
	for _, id := range old {
		s.deleteLocked(id)
	}
	if len(old) > 0 {
		slog.Info("cleaned up old errors", "deleted", len(old), "retention_days", days)
	}
	return old
}

// Statistics returns aggregate counts for the repository.
func (s *ErrorStore) Statistics() ErrorStatistics {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := ErrorStatistics{
		Total:      len(s.records),
		BySource:   countIndex(s.bySource),
		ByCategory: countIndex(s.byCategory),
		BySeverity: countIndex(s.bySeverity),
	}
	for _, rec := range s.records {
		ts := rec.Timestamp
		if stats.Oldest == nil || ts.Before(*stats.Oldest) {
			t := ts
			stats.Oldest = &t
		}
		if stats.Newest == nil || ts.After(*stats.Newest) {
			t := ts
			stats.Newest = &t
		}
	}
	return stats
}

// enforceMaxLocked evicts the oldest records by timestamp until the total is
// back under the cap. Caller holds the lock.
func (s *ErrorStore) enforceMaxLocked() {
	excess := len(s.records) - s.maxErrors
	if excess <= 0 {
		return
	}
	all := make([]*types.ErrorRecord, 0, len(s.records))
	for _, rec := range s.records {
		all = append(all, rec)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].Timestamp.Equal(all[j].Timestamp) {
			return all[i].Timestamp.Before(all[j].Timestamp)
		}
		return all[i].ID < all[j].ID
	})
	for _, rec := range all[:excess] {
		s.deleteLocked(rec.ID)
	}
	slog.Info("evicted oldest errors to enforce cap", "evicted", excess, "max", s.maxErrors)
}

// Flush writes the repository to durable storage if anything changed since
// the last flush. A write failure leaves the previous durable file intact
// and the dirty flag set, so the next cycle retries.
func (s *ErrorStore) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return nil
	}

	file := errorsFile{
		Version:    fileVersion,
		SavedAt:    time.Now().UTC(),
		TotalCount: len(s.records),
		Records:    make([]*types.ErrorRecord, 0, len(s.records)),
	}
	for _, rec := range s.records {
		file.Records = append(file.Records, rec)
	}
	sort.Slice(file.Records, func(i, j int) bool {
		return file.Records[i].Timestamp.Before(file.Records[j].Timestamp)
	})

	if err := saveAtomic(s.path, &file); err != nil {
		slog.Error("error store flush failed", "error", err)
		return err
	}
	s.dirty = false
	return nil
}

// FlushLoop flushes dirty state every interval until ctx is cancelled, then
// performs a final flush so no accepted write is lost on shutdown.
func (s *ErrorStore) FlushLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = flushInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if err := s.Flush(); err != nil {
				slog.Error("final error store flush failed", "error", err)
			}
			return
		case <-ticker.C:
			if err := s.Flush(); err != nil {
				slog.Error("periodic error store flush failed", "error", err)
			}
		}
	}
}

func addToIndex[K comparable](idx map[K]map[string]struct{}, key K, id string) {
	set, ok := idx[key]
	if !ok {
		set = make(map[string]struct{})
		idx[key] = set
	}
	set[id] = struct{}{}
}

func removeFromIndex[K comparable](idx map[K]map[string]struct{}, key K, id string) {
	if set, ok := idx[key]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(idx, key)
		}
	}
}

func union[K comparable](idx map[K]map[string]struct{}, keys []K) map[string]struct{} {
	out := make(map[string]struct{})
	for _, k := range keys {
		for id := range idx[k] {
			out[id] = struct{}{}
		}
	}
	return out
}

func intersect(a, b map[string]struct{}) map[string]struct{} {
	if len(b) < len(a) {
		a, b = b, a
	}
	out := make(map[string]struct{}, len(a))
	for id := range a {
		if _, ok := b[id]; ok {
			out[id] = struct{}{}
		}
	}
	return out
}

func countIndex[K comparable](idx map[K]map[string]struct{}) map[string]int {
	out := make(map[string]int, len(idx))
	for k, set := range idx {
		out[fmt.Sprint(k)] = len(set)
	}
	return out
}
