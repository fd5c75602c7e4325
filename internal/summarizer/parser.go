package summarizer

import (
	"encoding/json"
	"log/slog"
	"strings"
)

const (
	maxSolutions      = 5
	minSolutionLength = 10
)

// analysis is the structured form of a model response.
type analysis struct {
	RootCause          string   `json:"root_cause"`
	ImpactAssessment   string   `json:"impact_assessment"`
	SuggestedSolutions []string `json:"suggested_solutions"`
	ConfidenceScore    float64  `json:"confidence_score"`
}

// parseAnalysis turns a model response into structured summary data. A JSON
// object is preferred; a plain-text response goes through a line-oriented
// heuristic keyed on section headers and bullet lists; unparseable JSON falls
// back to wrapping the raw text at a fixed low confidence.
func parseAnalysis(content string) analysis {
	trimmed := strings.TrimSpace(content)

	if strings.HasPrefix(trimmed, "{") {
		var out analysis
		if err := json.Unmarshal([]byte(trimmed), &out); err != nil {
			slog.Warn("model response is not valid JSON, using fallback", "error", err)
			return fallbackAnalysis(trimmed)
		}
		if out.RootCause == "" {
			out.RootCause = "Unknown error cause"
		}
		if out.ImpactAssessment == "" {
			out.ImpactAssessment = "Impact unclear"
		}
		if out.ConfidenceScore == 0 {
			out.ConfidenceScore = 0.5
		}
		return out
	}

	return heuristicAnalysis(trimmed)
}

// heuristicAnalysis extracts sections from a prose response. Lines naming a
// section ("root cause", "impact", "solution") switch the target; bullets
// under the solutions section become solution entries; other non-bullet lines
// replace the current section's text.
func heuristicAnalysis(content string) analysis {
	out := analysis{
		RootCause:        "Error analysis provided",
		ImpactAssessment: "Impact assessment provided",
		ConfidenceScore:  0.7,
	}

	section := ""
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)
		switch {
		case strings.Contains(lower, "root cause"):
			section = "root_cause"
		case strings.Contains(lower, "impact"):
			section = "impact_assessment"
		case strings.Contains(lower, "solution"):
			section = "suggested_solutions"
		case strings.HasPrefix(line, "-") || strings.HasPrefix(line, "•"):
			if section == "suggested_solutions" {
				if solution := trimBullet(line); solution != "" {
					out.SuggestedSolutions = append(out.SuggestedSolutions, solution)
				}
			}
		default:
			switch section {
			case "root_cause":
				out.RootCause = line
			case "impact_assessment":
				out.ImpactAssessment = line
			}
		}
	}
	return out
}

func fallbackAnalysis(content string) analysis {
	rootCause := content
	if len(rootCause) > 200 {
		rootCause = rootCause[:200] + "..."
	}
	return analysis{
		RootCause:          rootCause,
		ImpactAssessment:   "Unable to assess impact from response",
		SuggestedSolutions: []string{"Review the error details and consult documentation"},
		ConfidenceScore:    0.3,
	}
}

// parseSolutions pulls bullet-list solutions out of a response, dropping
// trivial entries and capping the list.
func parseSolutions(content string) []string {
	var solutions []string
	for _, line := range strings.Split(strings.TrimSpace(content), "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "-") && !strings.HasPrefix(line, "•") {
			continue
		}
		solution := trimBullet(line)
		if len(solution) > minSolutionLength {
			solutions = append(solutions, solution)
		}
		if len(solutions) == maxSolutions {
			break
		}
	}
	return solutions
}

func trimBullet(line string) string {
	return strings.TrimSpace(strings.TrimLeft(line, "-• \t"))
}
