package summarizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAnalysisJSON(t *testing.T) {
	content := `{
		"root_cause": "Null reference in event handler",
		"impact_assessment": "Page becomes unresponsive",
		"suggested_solutions": ["Add a null check", "Initialize state before binding"],
		"confidence_score": 0.85
	}`

	out := parseAnalysis(content)
	assert.Equal(t, "Null reference in event handler", out.RootCause)
	assert.Equal(t, "Page becomes unresponsive", out.ImpactAssessment)
	assert.Len(t, out.SuggestedSolutions, 2)
	assert.Equal(t, 0.85, out.ConfidenceScore)
}

func TestParseAnalysisJSONMissingFields(t *testing.T) {
	out := parseAnalysis(`{"suggested_solutions": ["Fix it"]}`)
	assert.Equal(t, "Unknown error cause", out.RootCause)
	assert.Equal(t, "Impact unclear", out.ImpactAssessment)
	assert.Equal(t, 0.5, out.ConfidenceScore)
}

func TestParseAnalysisHeuristic(t *testing.T) {
	content := `Root Cause:
The API endpoint moved without a redirect.

Impact:
All fetches from the dashboard fail.

Solutions:
- Update the endpoint URL in the client config
- Add a redirect on the server
• Monitor 404 rates`

	out := parseAnalysis(content)
	assert.Equal(t, "The API endpoint moved without a redirect.", out.RootCause)
	assert.Equal(t, "All fetches from the dashboard fail.", out.ImpactAssessment)
	assert.Equal(t, []string{
		"Update the endpoint URL in the client config",
		"Add a redirect on the server",
		"Monitor 404 rates",
	}, out.SuggestedSolutions)
	assert.Equal(t, 0.7, out.ConfidenceScore)
}

func TestParseAnalysisHeuristicDefaults(t *testing.T) {
	out := parseAnalysis("The model rambled without any structure.")
	assert.Equal(t, "Error analysis provided", out.RootCause)
	assert.Equal(t, "Impact assessment provided", out.ImpactAssessment)
	assert.Empty(t, out.SuggestedSolutions)
	assert.Equal(t, 0.7, out.ConfidenceScore)
}

func TestParseAnalysisBrokenJSONFallsBack(t *testing.T) {
	long := "{not json " + strings.Repeat("x", 300)
	out := parseAnalysis(long)
	assert.Equal(t, long[:200]+"...", out.RootCause)
	assert.Equal(t, "Unable to assess impact from response", out.ImpactAssessment)
	assert.Equal(t, []string{"Review the error details and consult documentation"}, out.SuggestedSolutions)
	assert.Equal(t, 0.3, out.ConfidenceScore)
}

func TestParseSolutions(t *testing.T) {
	content := `Here are more ideas:
- Add retry logic with exponential backoff to the client
- ok
- Use a circuit breaker around the flaky dependency
• Capture request IDs in logs for correlation
- Cache successful responses for five minutes
- Validate configuration at startup instead of first use
- This sixth solution is past the cap and must be dropped`

	solutions := parseSolutions(content)
	assert.Len(t, solutions, 5)
	assert.NotContains(t, solutions, "ok")
	assert.Equal(t, "Add retry logic with exponential backoff to the client", solutions[0])
}

func TestParseSolutionsNoBullets(t *testing.T) {
	assert.Empty(t, parseSolutions("Nothing here is a list item."))
}
