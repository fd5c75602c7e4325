package summarizer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/errwatch/errwatch/internal/types"
)

const (
	// maxErrorsPerSummary caps the group size per model call; larger groups
	// are truncated.
	maxErrorsPerSummary = 10

	// defaultRequestsPerMinute is the sliding-window cap on model calls.
	defaultRequestsPerMinute = 15

	queueSize = 128
)

// Config configures a Worker.
type Config struct {
	Model             string
	MaxTokens         int
	Temperature       float64
	RequestsPerMinute int
}

// request is one queued job: a summarization when records is set, a
// solution-suggestion call when summary is set. The worker answers result
// exactly once. The queue is strictly FIFO; priority is carried as
// diagnostic metadata for logging, not for reordering.
type request struct {
	id       string
	records  []*types.ErrorRecord
	summary  *types.SummarySection
	priority int
	created  time.Time
	result   chan outcome
}

type outcome struct {
	summary   *types.SummarySection
	solutions []string
	err       error
}

// Worker serializes summarization requests through a single consumer
// goroutine so the rate limiter sees every model call in order.
type Worker struct {
	client    Client
	model     string
	maxTokens int
	temp      float64
	limiter   *RateLimiter
	queue     chan *request
}

// NewWorker builds a worker around the given model client.
func NewWorker(client Client, cfg Config) *Worker {
	perMinute := cfg.RequestsPerMinute
	if perMinute <= 0 {
		perMinute = defaultRequestsPerMinute
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1000
	}
	return &Worker{
		client:    client,
		model:     cfg.Model,
		maxTokens: maxTokens,
		temp:      cfg.Temperature,
		limiter:   NewRateLimiter(perMinute),
		queue:     make(chan *request, queueSize),
	}
}

// Run drains the queue until ctx is cancelled. Requests still queued at
// shutdown are answered with the context error.
func (w *Worker) Run(ctx context.Context) error {
	slog.Info("summarization worker started", "model", w.model)
	for {
		select {
		case <-ctx.Done():
			w.drainQueue(ctx.Err())
			slog.Info("summarization worker stopped")
			return ctx.Err()
		case req := <-w.queue:
			if req.summary != nil {
				req.result <- outcome{solutions: w.processSolutions(ctx, req)}
			} else {
				summary, err := w.process(ctx, req)
				req.result <- outcome{summary: summary, err: err}
			}
		}
	}
}

func (w *Worker) drainQueue(err error) {
	for {
		select {
		case req := <-w.queue:
			req.result <- outcome{err: err}
		default:
			return
		}
	}
}

// Summarize queues the group and waits for its summary. Groups larger than
// the per-summary cap are truncated. The wait is bounded by ctx; a deadline
// hit during the wait reports ErrTimeout while an endpoint failure reports
// ErrEndpoint.
func (w *Worker) Summarize(ctx context.Context, records []*types.ErrorRecord) (*types.SummarySection, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: cannot summarize an empty group", types.ErrValidation)
	}
	if len(records) > maxErrorsPerSummary {
		slog.Warn("truncating error group for summarization", "group_size", len(records), "max", maxErrorsPerSummary)
		records = records[:maxErrorsPerSummary]
	}

	req := &request{
		id:       requestID(records),
		records:  records,
		priority: requestPriority(records),
		created:  time.Now().UTC(),
		result:   make(chan outcome, 1),
	}

	select {
	case w.queue <- req:
	case <-ctx.Done():
		return nil, fmt.Errorf("summarization request %s: %w", req.id, types.ErrTimeout)
	}

	select {
	case out := <-req.result:
		return out.summary, out.err
	case <-ctx.Done():
		return nil, fmt.Errorf("summarization request %s: %w", req.id, types.ErrTimeout)
	}
}

// process makes one rate-limited model call for the request.
func (w *Worker) process(ctx context.Context, req *request) (*types.SummarySection, error) {
	slog.Debug("processing summarization request", "request", req.id, "priority", req.priority, "queued", time.Since(req.created))
	if err := w.acquire(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	content, err := w.client.Complete(ctx, CompletionRequest{
		System:      systemPrompt,
		Prompt:      summarizationPrompt(req.records),
		MaxTokens:   w.maxTokens,
		Temperature: w.temp,
	})
	elapsed := time.Since(start)
	if err != nil {
		w.limiter.SetBackoff(0)
		return nil, fmt.Errorf("%w: %v", types.ErrEndpoint, err)
	}

	parsed := parseAnalysis(content)
	ids := make([]string, 0, len(req.records))
	for _, rec := range req.records {
		ids = append(ids, rec.ID)
	}
	summary, err := types.NewSummarySection(ids, parsed.RootCause, parsed.ImpactAssessment, parsed.SuggestedSolutions, parsed.ConfidenceScore)
	if err != nil {
		w.limiter.SetBackoff(0)
		return nil, fmt.Errorf("%w: unusable analysis: %v", types.ErrEndpoint, err)
	}
	summary.ModelUsed = w.model
	summary.ProcessingTimeMs = elapsed.Milliseconds()

	w.limiter.ResetBackoff()
	slog.Debug("generated summary", "request", req.id, "errors", len(ids), "confidence", summary.ConfidenceScore, "elapsed", elapsed)
	return summary, nil
}

// SolutionSuggestions queues a request for solutions beyond those already
// in the summary and waits for it behind any in-flight summarizations.
// Failures are not fatal to the caller; an empty slice comes back instead.
func (w *Worker) SolutionSuggestions(ctx context.Context, summary *types.SummarySection) []string {
	req := &request{
		id:      summary.ID,
		summary: summary,
		created: time.Now().UTC(),
		result:  make(chan outcome, 1),
	}

	select {
	case w.queue <- req:
	case <-ctx.Done():
		return nil
	}

	select {
	case out := <-req.result:
		return out.solutions
	case <-ctx.Done():
		return nil
	}
}

// processSolutions makes one rate-limited solution-suggestion call.
func (w *Worker) processSolutions(ctx context.Context, req *request) []string {
	summary := req.summary
	if err := w.acquire(ctx); err != nil {
		return nil
	}

	maxTokens := w.maxTokens
	if maxTokens > 500 {
		maxTokens = 500
	}
	content, err := w.client.Complete(ctx, CompletionRequest{
		System:      solutionSystemPrompt,
		Prompt:      solutionPrompt(summary),
		MaxTokens:   maxTokens,
		Temperature: 0.3,
	})
	if err != nil {
		slog.Error("failed to generate additional solutions", "error", err)
		w.limiter.SetBackoff(0)
		return nil
	}

	w.limiter.ResetBackoff()
	return parseSolutions(content)
}

// acquire loops on the rate limiter until a slot is claimed or ctx ends.
func (w *Worker) acquire(ctx context.Context) error {
	for {
		ok, err := w.limiter.Acquire(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
}

// requestID is a stable short hash of the sorted member IDs.
func requestID(records []*types.ErrorRecord) string {
	ids := make([]string, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.ID)
	}
	sort.Strings(ids)
	sum := sha256.Sum256([]byte(strings.Join(ids, "|")))
	return hex.EncodeToString(sum[:])[:16]
}

// requestPriority weights a group by size and member severity.
func requestPriority(records []*types.ErrorRecord) int {
	priority := len(records)
	for _, rec := range records {
		switch rec.Severity {
		case types.SeverityCritical:
			priority += 10
		case types.SeverityHigh:
			priority += 5
		case types.SeverityMedium:
			priority += 2
		}
	}
	return priority
}
