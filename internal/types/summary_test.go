package types

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSummarySectionValidation(t *testing.T) {
	tests := []struct {
		name       string
		errorIDs   []string
		rootCause  string
		confidence float64
		wantErr    bool
	}{
		{"valid", []string{"e1"}, "null dereference in handler", 0.9, false},
		{"empty error ids", nil, "cause", 0.9, true},
		{"empty root cause", []string{"e1"}, "  ", 0.9, true},
		{"confidence below range", []string{"e1"}, "cause", -0.1, true},
		{"confidence above range", []string{"e1"}, "cause", 1.1, true},
		{"confidence boundary zero", []string{"e1"}, "cause", 0.0, false},
		{"confidence boundary one", []string{"e1"}, "cause", 1.0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewSummarySection(tt.errorIDs, tt.rootCause, "impact", nil, tt.confidence)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrValidation)
			} else {
				require.NoError(t, err)
				assert.NotEmpty(t, s.ID)
				assert.False(t, s.GeneratedAt.IsZero())
			}
		})
	}
}

func TestSolutionsCleaned(t *testing.T) {
	s, err := NewSummarySection([]string{"e1"}, "cause", "", []string{"  fix imports  ", "", "\t", "add null check"}, 0.5)
	require.NoError(t, err)
	assert.Equal(t, []string{"fix imports", "add null check"}, s.SuggestedSolutions)
}

func TestAddRelatedError(t *testing.T) {
	s, err := NewSummarySection([]string{"e1", "e2"}, "cause", "", nil, 0.5)
	require.NoError(t, err)

	s.AddRelatedError("e1") // already covered, ignored
	s.AddRelatedError("e3")
	s.AddRelatedError("e3") // duplicate, ignored
	assert.Equal(t, []string{"e3"}, s.RelatedErrors)
}

func TestPriorityScoreMonotonic(t *testing.T) {
	ids := func(n int) []string {
		out := make([]string, n)
		for i := range out {
			out[i] = fmt.Sprintf("e%d", i)
		}
		return out
	}

	// Non-decreasing in error count up to the cap of 10
	prev := -1.0
	for n := 1; n <= 15; n++ {
		s, err := NewSummarySection(ids(n), "cause", "", nil, 0.5)
		require.NoError(t, err)
		score := s.PriorityScore()
		assert.GreaterOrEqual(t, score, prev, "score must not decrease with more errors (n=%d)", n)
		prev = score
	}

	// Count 10 and 15 score identically (cap)
	s10, _ := NewSummarySection(ids(10), "cause", "", nil, 0.5)
	s15, _ := NewSummarySection(ids(15), "cause", "", nil, 0.5)
	assert.Equal(t, s10.PriorityScore(), s15.PriorityScore())

	// Non-decreasing in confidence
	prev = -1.0
	for _, conf := range []float64{0.0, 0.2, 0.5, 0.8, 1.0} {
		s, err := NewSummarySection(ids(3), "cause", "", nil, conf)
		require.NoError(t, err)
		score := s.PriorityScore()
		assert.GreaterOrEqual(t, score, prev)
		prev = score
	}

	// Bounds
	sMax, _ := NewSummarySection(ids(10), "cause", "", nil, 1.0)
	assert.InDelta(t, 1.0, sMax.PriorityScore(), 1e-9)
	sMin, _ := NewSummarySection(ids(1), "cause", "", nil, 0.0)
	assert.InDelta(t, 0.05, sMin.PriorityScore(), 1e-9)
}

func TestIsHighConfidence(t *testing.T) {
	s, _ := NewSummarySection([]string{"e1"}, "cause", "", nil, 0.8)
	assert.True(t, s.IsHighConfidence())
	s, _ = NewSummarySection([]string{"e1"}, "cause", "", nil, 0.79)
	assert.False(t, s.IsHighConfidence())
}
