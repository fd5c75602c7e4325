package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// HighConfidenceThreshold is the confidence score at or above which a
// summary counts as high confidence in statistics and display.
const HighConfidenceThreshold = 0.8

// SummarySection is one AI-generated root-cause analysis covering one or
// more error records. Immutable after creation.
type SummarySection struct {
	ID                 string    `json:"id"`
	ErrorIDs           []string  `json:"error_ids"`
	RootCause          string    `json:"root_cause"`
	ImpactAssessment   string    `json:"impact_assessment"`
	SuggestedSolutions []string  `json:"suggested_solutions"`
	RelatedErrors      []string  `json:"related_errors,omitempty"`
	ConfidenceScore    float64   `json:"confidence_score"`
	GeneratedAt        time.Time `json:"generated_at"`
	ModelUsed          string    `json:"model_used,omitempty"`
	ProcessingTimeMs   int64     `json:"processing_time_ms"`
}

// NewSummarySection builds and validates a summary. Suggested solutions are
// trimmed and empty entries dropped; related errors already covered by
// ErrorIDs are dropped.
func NewSummarySection(errorIDs []string, rootCause, impact string, solutions []string, confidence float64) (*SummarySection, error) {
	s := &SummarySection{
		ID:                 uuid.New().String(),
		ErrorIDs:           errorIDs,
		RootCause:          rootCause,
		ImpactAssessment:   impact,
		SuggestedSolutions: cleanSolutions(solutions),
		ConfidenceScore:    confidence,
		GeneratedAt:        time.Now().UTC(),
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks if the summary has valid field values
func (s *SummarySection) Validate() error {
	if len(s.ErrorIDs) == 0 {
		return fmt.Errorf("%w: summary must reference at least one error", ErrValidation)
	}
	if strings.TrimSpace(s.RootCause) == "" {
		return fmt.Errorf("%w: root cause cannot be empty", ErrValidation)
	}
	if s.ConfidenceScore < 0.0 || s.ConfidenceScore > 1.0 {
		return fmt.Errorf("%w: confidence score must be between 0.0 and 1.0 (got %.2f)", ErrValidation, s.ConfidenceScore)
	}
	return nil
}

// AddRelatedError records an error ID the analysis found relevant but did
// not cover. IDs already in ErrorIDs or RelatedErrors are ignored.
func (s *SummarySection) AddRelatedError(errorID string) {
	for _, id := range s.ErrorIDs {
		if id == errorID {
			return
		}
	}
	for _, id := range s.RelatedErrors {
		if id == errorID {
			return
		}
	}
	s.RelatedErrors = append(s.RelatedErrors, errorID)
}

// IsHighConfidence reports whether the summary meets the high-confidence
// threshold.
func (s *SummarySection) IsHighConfidence() bool {
	return s.ConfidenceScore >= HighConfidenceThreshold
}

// PriorityScore combines error count (capped at 10) and confidence into a
// [0,1] ranking used to order summaries. More errors and higher confidence
// rank first.
func (s *SummarySection) PriorityScore() float64 {
	errorWeight := float64(len(s.ErrorIDs)) / 10.0
	if errorWeight > 1.0 {
		errorWeight = 1.0
	}
	return (errorWeight + s.ConfidenceScore) / 2.0
}

// Format renders the summary for human-readable display.
func (s *SummarySection) Format() string {
	var b strings.Builder
	id := s.ID
	if len(id) > 8 {
		id = id[:8] + "..."
	}
	fmt.Fprintf(&b, "Summary %s\n", id)
	fmt.Fprintf(&b, "Errors analyzed: %d\n", len(s.ErrorIDs))
	fmt.Fprintf(&b, "Confidence: %.0f%%\n\n", s.ConfidenceScore*100)
	fmt.Fprintf(&b, "Root cause:\n  %s\n\n", s.RootCause)
	if s.ImpactAssessment != "" {
		fmt.Fprintf(&b, "Impact:\n  %s\n\n", s.ImpactAssessment)
	}
	if len(s.SuggestedSolutions) > 0 {
		b.WriteString("Suggested solutions:\n")
		for i, sol := range s.SuggestedSolutions {
			fmt.Fprintf(&b, "  %d. %s\n", i+1, sol)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Generated: %s", s.GeneratedAt.Format("2006-01-02 15:04:05 UTC"))
	if s.ModelUsed != "" {
		fmt.Fprintf(&b, "\nModel: %s", s.ModelUsed)
	}
	return b.String()
}

func cleanSolutions(solutions []string) []string {
	out := make([]string, 0, len(solutions))
	for _, sol := range solutions {
		sol = strings.TrimSpace(sol)
		if sol != "" {
			out = append(out, sol)
		}
	}
	return out
}
