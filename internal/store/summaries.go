package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/errwatch/errwatch/internal/types"
)

// SummaryStoreConfig configures a SummaryStore.
type SummaryStoreConfig struct {
	// DataDir is the repository's data directory; the durable file lives at
	// <DataDir>/summaries/summaries.json.
	DataDir string

	// MaxSummaries caps the stored summary count. When an insert pushes the
	// total past the cap, the oldest summaries by generation time are
	// evicted. Default: 5000.
	MaxSummaries int
}

// SummaryStore holds generated summaries with a reverse index from error ID
// to the summaries that analyze it.
type SummaryStore struct {
	mu sync.Mutex

	path         string
	maxSummaries int

	summaries map[string]*types.SummarySection
	byError   map[string]map[string]struct{} // error ID -> summary IDs

	dirty bool
}

// SummaryFilters are optional conjunctive constraints for Query and Count.
// Zero times mean unbounded; the time range is half-open [Start, End).
type SummaryFilters struct {
	Start         time.Time
	End           time.Time
	MinConfidence float64
	ErrorIDs      []string // match summaries covering any of these errors
	Offset        int
	Limit         int // 0 = no limit
}

// SummaryStatistics summarizes repository contents.
type SummaryStatistics struct {
	Total                 int            `json:"total"`
	AverageConfidence     float64        `json:"average_confidence"`
	HighConfidence        int            `json:"high_confidence"`
	ConfidenceHistogram   map[string]int `json:"confidence_histogram"`
	TotalErrorsSummarized int            `json:"total_errors_summarized"`
	Oldest                *time.Time     `json:"oldest,omitempty"`
	Newest                *time.Time     `json:"newest,omitempty"`
}

type summariesFile struct {
	Version    string                  `json:"version"`
	SavedAt    time.Time               `json:"saved_at"`
	TotalCount int                     `json:"total_count"`
	Summaries  []*types.SummarySection `json:"summaries"`
}

// OpenSummaryStore creates the data directory if needed and loads existing
// summaries from durable storage before accepting writes.
func OpenSummaryStore(cfg SummaryStoreConfig) (*SummaryStore, error) {
	if cfg.MaxSummaries <= 0 {
		cfg.MaxSummaries = 5000
	}
	dir := filepath.Join(cfg.DataDir, "summaries")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create summaries directory: %w", err)
	}

	s := &SummaryStore{
		path:         filepath.Join(dir, "summaries.json"),
		maxSummaries: cfg.MaxSummaries,
		summaries:    make(map[string]*types.SummarySection),
		byError:      make(map[string]map[string]struct{}),
	}

	var file summariesFile
	if err := loadJSON(s.path, &file); err != nil {
		return nil, err
	}
	for _, sum := range file.Summaries {
		if err := sum.Validate(); err != nil {
			slog.Warn("skipping invalid summary from durable store", "id", sum.ID, "error", err)
			continue
		}
		s.index(sum)
	}
	if len(s.summaries) > 0 {
		slog.Info("summary store loaded", "summaries", len(s.summaries))
	}
	return s, nil
}

// Store inserts a summary. Inserting past the size cap evicts the oldest
// summaries by generation time.
func (s *SummaryStore) Store(sum *types.SummarySection) (string, error) {
	if err := sum.Validate(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.index(sum)
	s.dirty = true
	s.enforceMaxLocked()
	return sum.ID, nil
}

func (s *SummaryStore) index(sum *types.SummarySection) {
	s.summaries[sum.ID] = sum
	for _, errID := range sum.ErrorIDs {
		addToIndex(s.byError, errID, sum.ID)
	}
}

// Get returns the summary with the given ID, or types.ErrNotFound.
func (s *SummaryStore) Get(id string) (*types.SummarySection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum, ok := s.summaries[id]
	if !ok {
		return nil, fmt.Errorf("summary %s: %w", id, types.ErrNotFound)
	}
	return sum, nil
}

// GetForError returns every summary covering the given error ID, highest
// confidence first.
func (s *SummaryStore) GetForError(errorID string) []*types.SummarySection {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, ok := s.byError[errorID]
	if !ok {
		return nil
	}
	out := make([]*types.SummarySection, 0, len(ids))
	for id := range ids {
		out = append(out, s.summaries[id])
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ConfidenceScore != out[j].ConfidenceScore {
			return out[i].ConfidenceScore > out[j].ConfidenceScore
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// RemoveErrorRef drops a deleted error's entry from the back-reference
// index. Summary content is untouched: an already-generated analysis keeps
// listing the error it covered.
func (s *SummaryStore) RemoveErrorRef(errorID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byError, errorID)
}

// Query returns summaries matching every filter, ordered by priority score
// descending with generation time descending as the tiebreak, then paginated.
func (s *SummaryStore) Query(f SummaryFilters) []*types.SummarySection {
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

// Count returns the number of summaries matching the filters, ignoring
// pagination.
func (s *SummaryStore) Count(f SummaryFilters) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queryLocked(f))
}

// Total returns the total stored summary count.
func (s *SummaryStore) Total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.summaries)
}

func (s *SummaryStore) queryLocked(f SummaryFilters) []*types.SummarySection {
	var candidates map[string]struct{}
	if len(f.ErrorIDs) > 0 {
		candidates = union(s.byError, f.ErrorIDs)
	} else {
		candidates = make(map[string]struct{}, len(s.summaries))
		for id := range s.summaries {
			candidates[id] = struct{}{}
		}
	}

	matched := make([]*types.SummarySection, 0, len(candidates))
	for id := range candidates {
		sum := s.summaries[id]
		if sum.ConfidenceScore < f.MinConfidence {
			continue
		}
		if !f.Start.IsZero() && sum.GeneratedAt.Before(f.Start) {
			continue
		}
		if !f.End.IsZero() && !sum.GeneratedAt.Before(f.End) {
			continue
		}
		matched = append(matched, sum)
	}

	sort.Slice(matched, func(i, j int) bool {
		pi, pj := matched[i].PriorityScore(), matched[j].PriorityScore()
		if pi != pj {
			return pi > pj
		}
		if !matched[i].GeneratedAt.Equal(matched[j].GeneratedAt) {
			return matched[i].GeneratedAt.After(matched[j].GeneratedAt)
		}
		return matched[i].ID < matched[j].ID
	})
	return matched
}

// Delete removes a summary and its reverse-index entries. Returns false if
// the ID is unknown.
func (s *SummaryStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteLocked(id)
}

func (s *SummaryStore) deleteLocked(id string) bool {
	sum, ok := s.summaries[id]
	if !ok {
		return false
	}
	delete(s.summaries, id)
	for _, errID := range sum.ErrorIDs {
		removeFromIndex(s.byError, errID, id)
	}
	s.dirty = true
	return true
}

// CleanupOlderThan deletes summaries generated before the retention period
// and returns how many were removed.
func (s *SummaryStore) CleanupOlderThan(days int) int {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	s.mu.Lock()
	defer s.mu.Unlock()

	var old []string
	for id, sum := range s.summaries {
		if sum.GeneratedAt.Before(cutoff) {
			old = append(old, id)
		}
	}
	for _, id := range old {
		s.deleteLocked(id)
	}
	if len(old) > 0 {
		slog.Info("cleaned up old summaries", "deleted", len(old), "retention_days", days)
	}
	return len(old)
}

// Statistics returns aggregate confidence metrics for the repository. The
// histogram buckets confidence into five 0.2-wide ranges.
func (s *SummaryStore) Statistics() SummaryStatistics {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := SummaryStatistics{
		Total: len(s.summaries),
		ConfidenceHistogram: map[string]int{
			"0.0-0.2": 0,
			"0.2-0.4": 0,
			"0.4-0.6": 0,
			"0.6-0.8": 0,
			"0.8-1.0": 0,
		},
	}

	var confidenceSum float64
	for _, sum := range s.summaries {
		confidenceSum += sum.ConfidenceScore
		if sum.IsHighConfidence() {
			stats.HighConfidence++
		}
		stats.TotalErrorsSummarized += len(sum.ErrorIDs)
		stats.ConfidenceHistogram[confidenceBucket(sum.ConfidenceScore)]++

		ts := sum.GeneratedAt
		if stats.Oldest == nil || ts.Before(*stats.Oldest) {
			t := ts
			stats.Oldest = &t
		}
		if stats.Newest == nil || ts.After(*stats.Newest) {
			t := ts
			stats.Newest = &t
		}
	}
	if stats.Total > 0 {
		stats.AverageConfidence = confidenceSum / float64(stats.Total)
	}
	return stats
}

func confidenceBucket(score float64) string {
	switch {
	case score < 0.2:
		return "0.0-0.2"
	case score < 0.4:
		return "0.2-0.4"
	case score < 0.6:
		return "0.4-0.6"
	case score < 0.8:
		return "0.6-0.8"
	default:
		return "0.8-1.0"
	}
}

// enforceMaxLocked evicts the oldest summaries by generation time until the
// total is back under the cap. Caller holds the lock.
func (s *SummaryStore) enforceMaxLocked() {
	excess := len(s.summaries) - s.maxSummaries
	if excess <= 0 {
		return
	}
	all := make([]*types.SummarySection, 0, len(s.summaries))
	for _, sum := range s.summaries {
		all = append(all, sum)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].GeneratedAt.Equal(all[j].GeneratedAt) {
			return all[i].GeneratedAt.Before(all[j].GeneratedAt)
		}
		return all[i].ID < all[j].ID
	})
	for _, sum := range all[:excess] {
		s.deleteLocked(sum.ID)
	}
	slog.Info("evicted oldest summaries to enforce cap", "evicted", excess, "max", s.maxSummaries)
}

// Flush writes the repository to durable storage if anything changed since
// the last flush.
func (s *SummaryStore) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return nil
	}

	file := summariesFile{
		Version:    fileVersion,
		SavedAt:    time.Now().UTC(),
		TotalCount: len(s.summaries),
		Summaries:  make([]*types.SummarySection, 0, len(s.summaries)),
	}
	for _, sum := range s.summaries {
		file.Summaries = append(file.Summaries, sum)
	}
	sort.Slice(file.Summaries, func(i, j int) bool {
		return file.Summaries[i].GeneratedAt.Before(file.Summaries[j].GeneratedAt)
	})

	if err := saveAtomic(s.path, &file); err != nil {
		slog.Error("summary store flush failed", "error", err)
		return err
	}
	s.dirty = false
	return nil
}

// FlushLoop flushes dirty state every interval until ctx is cancelled, then
// performs a final flush so no accepted write is lost on shutdown.
func (s *SummaryStore) FlushLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = flushInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if err := s.Flush(); err != nil {
				slog.Error("final summary store flush failed", "error", err)
			}
			return
		case <-ticker.C:
			if err := s.Flush(); err != nil {
				slog.Error("periodic summary store flush failed", "error", err)
			}
		}
	}
}
