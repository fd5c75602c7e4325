package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/errwatch/errwatch/internal/store"
	"github.com/errwatch/errwatch/internal/summarizer"
	"github.com/errwatch/errwatch/internal/types"
)

// scriptedLLM returns a canned analysis and counts calls.
type scriptedLLM struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (s *scriptedLLM) Complete(context.Context, summarizer.CompletionRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return `{"root_cause": "shared null dereference", "impact_assessment": "widget fails to render", "suggested_solutions": ["guard the access"], "confidence_score": 0.9}`, nil
}

func (s *scriptedLLM) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type testEnv struct {
	manager *Manager
	errors  *store.ErrorStore
	sums    *store.SummaryStore
	llm     *scriptedLLM
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()
	dir := t.TempDir()

	errs, err := store.OpenErrorStore(store.ErrorStoreConfig{DataDir: dir, DedupUnknownSources: true})
	require.NoError(t, err)
	sums, err := store.OpenSummaryStore(store.SummaryStoreConfig{DataDir: dir})
	require.NoError(t, err)

	llm := &scriptedLLM{}
	worker := summarizer.NewWorker(llm, summarizer.Config{Model: "claude-sonnet-4-5", MaxTokens: 1000})

	m, err := New(errs, sums, worker, cfg)
	require.NoError(t, err)
	require.NoError(t, m.Start(context.Background()))
	t.Cleanup(func() { m.Stop() })

	return &testEnv{manager: m, errors: errs, sums: sums, llm: llm}
}

// groupedBrowserError builds a browser record whose message shares a long
// common prefix so group keys match while duplicate keys do not.
func groupedBrowserError(t *testing.T, suffix string) *types.ErrorRecord {
	t.Helper()
	rec, err := types.NewBrowserError(types.BrowserErrorInput{
		Message: "TypeError: cannot read properties of null while rendering widget " + suffix,
		URL:     "https://example.com/app",
	})
	require.NoError(t, err)
	return rec
}

func TestGroupKey(t *testing.T) {
	a := groupedBrowserError(t, "alpha")
	b := groupedBrowserError(t, "beta")
	assert.Equal(t, groupKey(a), groupKey(b))

	terminal, err := types.NewTerminalError(types.TerminalErrorInput{
		Command: "make build",
		Stderr:  "compilation failed: undefined symbol",
	})
	require.NoError(t, err)
	assert.NotEqual(t, groupKey(a), groupKey(terminal))
	assert.Contains(t, groupKey(terminal), "make")
	assert.Contains(t, groupKey(a), "TypeError")
}

func TestRegisterErrorStoresAndCounts(t *testing.T) {
	env := newTestEnv(t, Config{})

	rec := groupedBrowserError(t, "stored")
	id, err := env.manager.RegisterError(rec)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, id)

	got, err := env.manager.GetError(id)
	require.NoError(t, err)
	assert.Equal(t, rec.Message, got.Message)

	stats := env.manager.Statistics()
	assert.Equal(t, 1, stats.Manager.ErrorsProcessed)
	assert.Equal(t, 1, stats.Manager.ErrorsBySource["browser"])
	assert.NotNil(t, stats.Manager.LastErrorTime)
	assert.Equal(t, 1, stats.Errors.Total)
}

func TestRegisterErrorIgnorePredicate(t *testing.T) {
	env := newTestEnv(t, Config{
		IgnoredPatterns: []string{`favicon\.ico`},
		IgnoredDomains:  []string{"chrome-extension://"},
	})

	byPattern, err := types.NewGenericError("GET favicon.ico returned 404 not found")
	require.NoError(t, err)
	id, err := env.manager.RegisterError(byPattern)
	require.NoError(t, err)
	assert.Equal(t, byPattern.ID, id)

	byDomain, err := types.NewBrowserError(types.BrowserErrorInput{
		Message: "TypeError: extension glitch",
		URL:     "chrome-extension://abcdef/content.js",
	})
	require.NoError(t, err)
	_, err = env.manager.RegisterError(byDomain)
	require.NoError(t, err)

	assert.Equal(t, 0, env.errors.Total())
	stats := env.manager.Statistics()
	assert.Equal(t, 2, stats.Manager.ErrorsIgnored)
	assert.Equal(t, 0, stats.Manager.ErrorsProcessed)
}

func TestRegisterErrorDuplicateSuppressed(t *testing.T) {
	env := newTestEnv(t, Config{AutoSummarize: true, GroupThreshold: 2, GroupDebounce: time.Hour})

	first := groupedBrowserError(t, "same")
	firstID, err := env.manager.RegisterError(first)
	require.NoError(t, err)

	// Identical content: suppressed, returns the existing ID, and does not
	// advance the group toward its threshold.
	dup := groupedBrowserError(t, "same")
	dupID, err := env.manager.RegisterError(dup)
	require.NoError(t, err)
	assert.Equal(t, firstID, dupID)

	stats := env.manager.Statistics()
	assert.Equal(t, 1, stats.Manager.ErrorsProcessed)
	assert.Equal(t, 1, stats.Manager.DuplicatesSuppressed)
	assert.Equal(t, 0, env.llm.callCount())
	assert.Equal(t, 1, stats.Manager.PendingGroups)
}

func TestRegisterErrorThrottled(t *testing.T) {
	env := newTestEnv(t, Config{MaxErrorsPerMinute: 1})

	first, err := types.NewGenericError("first failure to arrive")
	require.NoError(t, err)
	_, err = env.manager.RegisterError(first)
	require.NoError(t, err)

	second, err := types.NewGenericError("second failure to arrive")
	require.NoError(t, err)
	id, err := env.manager.RegisterError(second)
	require.NoError(t, err)
	assert.Equal(t, second.ID, id)

	assert.Equal(t, 1, env.errors.Total())
	assert.Equal(t, 1, env.manager.Statistics().Manager.ErrorsThrottled)
}

func TestObserversRunInOrderAndSurvivePanic(t *testing.T) {
	env := newTestEnv(t, Config{})

	var mu sync.Mutex
	var order []string
	env.manager.RegisterObserver(func(*types.ErrorRecord) {
		mu.Lock()
		order = append(order, "first")
		mu.Unlock()
	})
	env.manager.RegisterObserver(func(*types.ErrorRecord) {
		panic("observer bug")
	})
	env.manager.RegisterObserver(func(rec *types.ErrorRecord) {
		mu.Lock()
		order = append(order, "third:"+string(rec.Source))
		mu.Unlock()
	})

	rec, err := types.NewGenericError("observable failure")
	require.NoError(t, err)
	_, err = env.manager.RegisterError(rec)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"first", "third:unknown"}, order)
}

func TestGroupThresholdTriggersSummary(t *testing.T) {
	env := newTestEnv(t, Config{AutoSummarize: true, GroupThreshold: 5, GroupDebounce: time.Hour})

	var ids []string
	for i := 0; i < 4; i++ {
		id, err := env.manager.RegisterError(groupedBrowserError(t, fmt.Sprintf("variant %d", i)))
		require.NoError(t, err)
		ids = append(ids, id)
	}
	// Below threshold, before the debounce: nothing yet.
	assert.Equal(t, 0, env.llm.callCount())

	id, err := env.manager.RegisterError(groupedBrowserError(t, "variant 4"))
	require.NoError(t, err)
	ids = append(ids, id)

	require.Eventually(t, func() bool {
		return env.sums.Total() == 1
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, 1, env.llm.callCount())
	summaries := env.manager.QuerySummaries(store.SummaryFilters{})
	require.Len(t, summaries, 1)
	assert.ElementsMatch(t, ids, summaries[0].ErrorIDs)

	// The group was cleared on trigger.
	assert.Equal(t, 0, env.manager.Statistics().Manager.PendingGroups)
	assert.Equal(t, 1, env.manager.Statistics().Manager.AutoSummaries)
}

func TestGroupDebounceTriggersSummary(t *testing.T) {
	env := newTestEnv(t, Config{AutoSummarize: true, GroupThreshold: 5, GroupDebounce: 50 * time.Millisecond})

	id, err := env.manager.RegisterError(groupedBrowserError(t, "lonely"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return env.sums.Total() == 1
	}, 5*time.Second, 10*time.Millisecond)

	summaries := env.manager.QuerySummaries(store.SummaryFilters{})
	require.Len(t, summaries, 1)
	assert.Equal(t, []string{id}, summaries[0].ErrorIDs)
	assert.Equal(t, 0, env.manager.Statistics().Manager.PendingGroups)
}

func TestAutoSummarizeDisabled(t *testing.T) {
	env := newTestEnv(t, Config{AutoSummarize: false, GroupThreshold: 1, GroupDebounce: 20 * time.Millisecond})

	_, err := env.manager.RegisterError(groupedBrowserError(t, "unsummarized"))
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, env.llm.callCount())
	assert.Equal(t, 0, env.sums.Total())
}

func TestRequestSummaryManual(t *testing.T) {
	env := newTestEnv(t, Config{})

	rec := groupedBrowserError(t, "manual")
	id, err := env.manager.RegisterError(rec)
	require.NoError(t, err)

	summaryID, err := env.manager.RequestSummary(context.Background(), []string{id, "unknown-id"})
	require.NoError(t, err)

	summary, err := env.manager.GetSummary(summaryID)
	require.NoError(t, err)
	assert.Equal(t, []string{id}, summary.ErrorIDs)
	assert.Equal(t, "shared null dereference", summary.RootCause)

	forError := env.manager.GetSummariesForError(id)
	require.Len(t, forError, 1)
	assert.Equal(t, summaryID, forError[0].ID)

	assert.Equal(t, 1, env.manager.Statistics().Manager.SummariesGenerated)
}

func TestRequestSummaryValidation(t *testing.T) {
	env := newTestEnv(t, Config{})

	_, err := env.manager.RequestSummary(context.Background(), nil)
	assert.ErrorIs(t, err, types.ErrValidation)

	_, err = env.manager.RequestSummary(context.Background(), []string{"missing"})
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestRequestSummaryEndpointFailure(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.llm.err = errors.New("model unavailable")

	rec := groupedBrowserError(t, "doomed")
	id, err := env.manager.RegisterError(rec)
	require.NoError(t, err)

	_, err = env.manager.RequestSummary(context.Background(), []string{id})
	assert.ErrorIs(t, err, types.ErrEndpoint)
	assert.Equal(t, 0, env.sums.Total())
	assert.Equal(t, 1, env.manager.Statistics().Manager.SummaryFailures)
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t, Config{})

	health := env.manager.HealthCheck(context.Background())
	assert.True(t, health.Overall)
	assert.True(t, health.Components["error_store"])
	assert.True(t, health.Components["summary_store"])
	assert.True(t, health.Components["summarizer"])
}

func TestCleanup(t *testing.T) {
	env := newTestEnv(t, Config{})

	old, err := types.NewGenericError("long forgotten failure")
	require.NoError(t, err)
	old.Timestamp = time.Now().UTC().AddDate(0, 0, -60)
	_, err = env.errors.Store(old)
	require.NoError(t, err)

	fresh, err := types.NewGenericError("recent failure to keep")
	require.NoError(t, err)
	_, err = env.errors.Store(fresh)
	require.NoError(t, err)

	covering, err := types.NewSummarySection([]string{old.ID}, "stale root cause", "none", nil, 0.8)
	require.NoError(t, err)
	_, err = env.sums.Store(covering)
	require.NoError(t, err)

	result := env.manager.Cleanup(30)
	assert.Equal(t, 1, result.ErrorsDeleted)
	assert.Equal(t, 0, result.SummariesDeleted)
	assert.Equal(t, 1, env.errors.Total())

	// The back-reference index no longer resolves the deleted error, but
	// the generated summary keeps its content.
	assert.Empty(t, env.manager.GetSummariesForError(old.ID))
	kept, err := env.manager.GetSummary(covering.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{old.ID}, kept.ErrorIDs)
}

func TestDeleteErrorCascadesToSummaryIndex(t *testing.T) {
	env := newTestEnv(t, Config{})

	rec := groupedBrowserError(t, "doomed record")
	id, err := env.manager.RegisterError(rec)
	require.NoError(t, err)

	covering, err := types.NewSummarySection([]string{id}, "null widget state", "widget blank", nil, 0.9)
	require.NoError(t, err)
	_, err = env.sums.Store(covering)
	require.NoError(t, err)

	assert.False(t, env.manager.DeleteError("missing"))
	assert.True(t, env.manager.DeleteError(id))

	_, err = env.manager.GetError(id)
	assert.ErrorIs(t, err, types.ErrNotFound)
	assert.Empty(t, env.manager.GetSummariesForError(id))

	kept, err := env.manager.GetSummary(covering.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{id}, kept.ErrorIDs)
}

func TestScenarioFiveSimilarBrowserErrors(t *testing.T) {
	env := newTestEnv(t, Config{AutoSummarize: true, GroupThreshold: 5, GroupDebounce: 5 * time.Minute})

	var ids []string
	for i := 0; i < 3; i++ {
		id, err := env.manager.RegisterError(groupedBrowserError(t, fmt.Sprintf("occurrence %d", i)))
		require.NoError(t, err)
		ids = append(ids, id)
	}
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, env.llm.callCount(), "no auto-summary below the threshold")

	for i := 3; i < 5; i++ {
		id, err := env.manager.RegisterError(groupedBrowserError(t, fmt.Sprintf("occurrence %d", i)))
		require.NoError(t, err)
		ids = append(ids, id)
	}

	require.Eventually(t, func() bool {
		return env.sums.Total() == 1
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, 1, env.llm.callCount(), "exactly one summarization request")
	summaries := env.manager.QuerySummaries(store.SummaryFilters{})
	require.Len(t, summaries, 1)
	assert.ElementsMatch(t, ids, summaries[0].ErrorIDs)
}
