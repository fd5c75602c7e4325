package summarizer

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/errwatch/errwatch/internal/types"
)

// systemPrompt frames every summarization call.
const systemPrompt = `You are an expert software developer and debugging assistant with deep knowledge of:
- JavaScript/TypeScript and web development
- Command-line tools and system administration
- Common programming patterns and anti-patterns
- Error handling best practices
- Debugging methodologies

Your task is to analyze programming errors and provide helpful, actionable summaries.

When analyzing errors, focus on:
1. **Root Cause**: Identify the fundamental issue causing the error
2. **Impact Assessment**: Evaluate how this affects the application/system
3. **Solutions**: Provide specific, implementable fixes
4. **Prevention**: Suggest ways to avoid similar issues

Always respond with a JSON object containing:
- "root_cause": Clear explanation of what caused the error
- "impact_assessment": How this error affects the application
- "suggested_solutions": Array of specific, actionable solutions (3-5 items)
- "confidence_score": Your confidence in the analysis (0.0 to 1.0)

Be concise but thorough. Prioritize practical solutions that developers can implement immediately.`

// solutionSystemPrompt frames the follow-up solution enhancement call.
const solutionSystemPrompt = `You are an expert software developer who provides practical, actionable solutions to programming errors. Focus on specific, implementable fixes.`

const (
	maxStackTraceChars = 1000
	maxStderrChars     = 1500
	maxStdoutChars     = 500
	maxEnvValueChars   = 50
)

// relevantEnvKeys are the environment variables worth including in terminal
// error prompts.
var relevantEnvKeys = []string{"PATH", "NODE_ENV", "PYTHON_PATH", "JAVA_HOME", "HOME"}

// summarizationPrompt selects the right template for the group: a
// kind-specific single-error prompt, a category-focused group prompt when
// every record shares one category, or the generic multi-error prompt.
func summarizationPrompt(records []*types.ErrorRecord) string {
	if len(records) == 1 {
		return singleErrorPrompt(records[0])
	}
	categories := make(map[types.Category]struct{})
	for _, rec := range records {
		categories[rec.Category] = struct{}{}
	}
	if len(categories) == 1 {
		return categoryPrompt(records[0].Category, records)
	}
	return multiErrorPrompt(records)
}

func singleErrorPrompt(rec *types.ErrorRecord) string {
	switch rec.Kind {
	case types.KindBrowser:
		return browserErrorPrompt(rec)
	case types.KindTerminal:
		return terminalErrorPrompt(rec)
	default:
		return genericErrorPrompt(rec)
	}
}

func browserErrorPrompt(rec *types.ErrorRecord) string {
	var context []string
	if rec.URL != "" {
		context = append(context, "Page URL: "+rec.URL)
	}
	if rec.UserAgent != "" {
		context = append(context, "Browser: "+rec.UserAgent)
	}
	if rec.PageTitle != "" {
		context = append(context, "Page Title: "+rec.PageTitle)
	}
	contextInfo := "No additional context available"
	if len(context) > 0 {
		contextInfo = strings.Join(context, "\n")
	}

	var location string
	switch {
	case rec.LineNumber > 0 && rec.ColumnNumber > 0:
		location = fmt.Sprintf("Location: Line %d, Column %d\n", rec.LineNumber, rec.ColumnNumber)
	case rec.LineNumber > 0:
		location = fmt.Sprintf("Location: Line %d\n", rec.LineNumber)
	}

	var stackInfo string
	if rec.StackTrace != "" {
		stackInfo = "Stack Trace:\n" + truncate(rec.StackTrace, maxStackTraceChars)
	}

	return fmt.Sprintf(`Analyze this JavaScript/Browser error:

**Error Details:**
- Type: %s
- Message: %s
- Category: %s
- Severity: %s
%s
**Context:**
%s

%s

**Analysis Focus:**
- Is this a common JavaScript error pattern?
- What browser compatibility issues might be involved?
- Are there modern JavaScript features that could prevent this?
- What debugging tools would help identify the issue?

Provide your analysis as a JSON object.`,
		rec.ErrorType, rec.Message, rec.Category, rec.Severity,
		location, contextInfo, stackInfo)
}

func terminalErrorPrompt(rec *types.ErrorRecord) string {
	var context strings.Builder
	if rec.WorkingDirectory != "" {
		fmt.Fprintf(&context, "Working Directory: %s\n", rec.WorkingDirectory)
	}
	if env := relevantEnv(rec.Environment); env != "" {
		fmt.Fprintf(&context, "Environment: %s\n", env)
	}
	contextInfo := strings.TrimSpace(context.String())
	if contextInfo == "" {
		contextInfo = "No additional context available"
	}

	var output strings.Builder
	if rec.Stderr != "" {
		fmt.Fprintf(&output, "Error Output:\n%s\n", truncate(rec.Stderr, maxStderrChars))
	}
	if strings.TrimSpace(rec.Stdout) != "" {
		fmt.Fprintf(&output, "Standard Output:\n%s\n", truncate(rec.Stdout, maxStdoutChars))
	}
	outputInfo := strings.TrimSpace(output.String())
	if outputInfo == "" {
		outputInfo = "No output captured"
	}

	return fmt.Sprintf(`Analyze this command-line/terminal error:

**Command Details:**
- Command: %s
- Exit Code: %d
- Category: %s
- Severity: %s

**Context:**
%s

**Output:**
%s

**Analysis Focus:**
- What does this exit code typically indicate?
- Are there permission or dependency issues?
- What are common causes for this type of command failure?
- What diagnostic steps would help identify the root cause?

Provide your analysis as a JSON object.`,
		rec.Command, rec.ExitCode, rec.Category, rec.Severity,
		contextInfo, outputInfo)
}

func genericErrorPrompt(rec *types.ErrorRecord) string {
	contextInfo := "No additional context available"
	if len(rec.Context) > 0 {
		if data, err := json.MarshalIndent(rec.Context, "", "  "); err == nil {
			contextInfo = string(data)
		}
	}
	stackInfo := "No stack trace available"
	if rec.StackTrace != "" {
		stackInfo = rec.StackTrace
	}

	return fmt.Sprintf(`Analyze this error:

**Error Details:**
- Source: %s
- Category: %s
- Severity: %s
- Message: %s
- Timestamp: %s

**Context:**
%s

**Stack Trace:**
%s

**Analysis Focus:**
- What type of error is this and what typically causes it?
- What are the immediate and long-term impacts?
- What debugging approaches would be most effective?
- What preventive measures can be implemented?

Provide your analysis as a JSON object.`,
		rec.Source, rec.Category, rec.Severity, rec.Message,
		rec.Timestamp.Format(time.RFC3339), contextInfo, stackInfo)
}

func multiErrorPrompt(records []*types.ErrorRecord) string {
	summaries := make([]string, 0, len(records))
	for i, rec := range records {
		var b strings.Builder
		fmt.Fprintf(&b, "**Error %d:**\n", i+1)
		fmt.Fprintf(&b, "- Source: %s\n", rec.Source)
		fmt.Fprintf(&b, "- Category: %s\n", rec.Category)
		fmt.Fprintf(&b, "- Severity: %s\n", rec.Severity)
		fmt.Fprintf(&b, "- Message: %s\n", rec.Message)
		switch rec.Kind {
		case types.KindBrowser:
			fmt.Fprintf(&b, "- Type: %s\n", rec.ErrorType)
			if rec.URL != "" {
				fmt.Fprintf(&b, "- URL: %s\n", rec.URL)
			}
			if rec.LineNumber > 0 {
				fmt.Fprintf(&b, "- Line: %d\n", rec.LineNumber)
			}
		case types.KindTerminal:
			fmt.Fprintf(&b, "- Command: %s\n", rec.Command)
			fmt.Fprintf(&b, "- Exit Code: %d\n", rec.ExitCode)
			if rec.WorkingDirectory != "" {
				fmt.Fprintf(&b, "- Directory: %s\n", rec.WorkingDirectory)
			}
		}
		fmt.Fprintf(&b, "- Timestamp: %s\n", rec.Timestamp.Format(time.RFC3339))
		summaries = append(summaries, b.String())
	}

	oldest, newest := records[0].Timestamp, records[0].Timestamp
	for _, rec := range records[1:] {
		if rec.Timestamp.Before(oldest) {
			oldest = rec.Timestamp
		}
		if rec.Timestamp.After(newest) {
			newest = rec.Timestamp
		}
	}
	pattern := fmt.Sprintf(`**Pattern Analysis:**
- Sources: %s
- Categories: %s
- Severities: %s
- Time Range: %s to %s`,
		distinct(records, func(r *types.ErrorRecord) string { return string(r.Source) }),
		distinct(records, func(r *types.ErrorRecord) string { return string(r.Category) }),
		distinct(records, func(r *types.ErrorRecord) string { return string(r.Severity) }),
		oldest.Format(time.RFC3339), newest.Format(time.RFC3339))

	return fmt.Sprintf(`Analyze these %d related errors that occurred in sequence:

%s

%s

**Analysis Focus:**
- What is the common root cause linking these errors?
- Is this a cascading failure or independent issues?
- What is the likely sequence of events that led to these errors?
- Which error should be addressed first to resolve the others?
- Are there systemic issues indicated by this error pattern?

Provide a comprehensive analysis as a JSON object that addresses the collective impact and provides solutions that tackle the root cause.`,
		len(records), strings.Join(summaries, "\n"), pattern)
}

// categoryFocus narrows the group analysis to patterns of one category.
var categoryFocus = map[types.Category]string{
	types.CategorySyntax: `**Syntax Error Analysis Focus:**
- What syntax rules are being violated?
- Is this due to language version compatibility?
- Are there linting rules that would catch this?
- What IDE/editor features would prevent this error?`,
	types.CategoryRuntime: `**Runtime Error Analysis Focus:**
- What runtime conditions trigger this error?
- Are there type checking or validation gaps?
- What defensive programming techniques would help?
- How can this be caught earlier in the development cycle?`,
	types.CategoryNetwork: `**Network Error Analysis Focus:**
- Is this a connectivity, configuration, or protocol issue?
- Are there timeout or retry mechanisms needed?
- What network debugging tools would help diagnose this?
- Are there fallback or offline strategies to implement?`,
	types.CategoryPermission: `**Permission Error Analysis Focus:**
- What specific permissions are missing?
- Is this a file system, API, or system-level permission issue?
- How can permissions be properly configured?
- What security best practices should be followed?`,
	types.CategoryResource: `**Resource Error Analysis Focus:**
- What resource is being exhausted (memory, disk, CPU, network)?
- Are there resource leaks or inefficient usage patterns?
- What monitoring and alerting should be in place?
- How can resource usage be optimized?`,
	types.CategoryLogic: `**Logic Error Analysis Focus:**
- What business logic or algorithmic assumptions are incorrect?
- Are there edge cases not being handled?
- What testing strategies would catch these issues?
- How can the logic be made more robust and predictable?`,
}

func categoryPrompt(category types.Category, records []*types.ErrorRecord) string {
	base := multiErrorPrompt(records)
	if len(records) == 1 {
		base = singleErrorPrompt(records[0])
	}
	if focus, ok := categoryFocus[category]; ok {
		return base + "\n" + focus
	}
	return base
}

// solutionPrompt asks for additional solutions beyond an existing summary.
func solutionPrompt(summary *types.SummarySection) string {
	return fmt.Sprintf(`Based on this error analysis, provide additional specific solutions:

**Current Analysis:**
- Root Cause: %s
- Impact: %s
- Current Solutions: %s

**Request:**
Provide 3-5 additional specific, actionable solutions focusing on:

1. **Prevention Strategies**: How to avoid this error in the future
2. **Alternative Approaches**: Different ways to implement the same functionality
3. **Debugging Techniques**: Tools and methods to diagnose similar issues
4. **Best Practices**: Industry standards that would prevent this class of errors
5. **Monitoring & Alerting**: How to detect and respond to similar issues quickly

**Format:**
Return as a simple list, one solution per line, starting with "- "
Each solution should be specific and implementable within a reasonable timeframe.
Focus on practical, real-world solutions that developers can act on immediately.`,
		summary.RootCause, summary.ImpactAssessment,
		strings.Join(summary.SuggestedSolutions, ", "))
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "... [truncated]"
}

func relevantEnv(env map[string]string) string {
	var parts []string
	for _, key := range relevantEnvKeys {
		value, ok := env[key]
		if !ok {
			continue
		}
		if len(value) > maxEnvValueChars {
			value = value[:maxEnvValueChars] + "..."
		}
		parts = append(parts, key+"="+value)
	}
	return strings.Join(parts, ", ")
}

func distinct(records []*types.ErrorRecord, key func(*types.ErrorRecord) string) string {
	seen := make(map[string]struct{})
	for _, rec := range records {
		seen[key(rec)] = struct{}{}
	}
	values := make([]string, 0, len(seen))
	for v := range seen {
		values = append(values, v)
	}
	sort.Strings(values)
	return strings.Join(values, ", ")
}
