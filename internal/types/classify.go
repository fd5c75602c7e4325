package types

import "strings"

// Rule-based classification. Each table is an ordered list of
// (keywords, outcome) pairs evaluated top to bottom, first match wins, so
// tests can enumerate the rules directly.

type categoryRule struct {
	Keywords []string
	Category Category
}

// CategoryRules is the generic message-keyword table. Order matters: a
// message mentioning both "syntax error" and "network" classifies as syntax.
var CategoryRules = []categoryRule{
	{[]string{"syntax error", "syntaxerror", "unexpected token", "parse error"}, CategorySyntax},
	{[]string{"network", "fetch", "cors", "connection", "timeout", "404", "500"}, CategoryNetwork},
	{[]string{"permission", "access denied", "unauthorized", "forbidden"}, CategoryPermission},
	{[]string{"out of memory", "disk space", "resource", "quota"}, CategoryResource},
	{[]string{"runtime", "reference", "type", "null", "undefined"}, CategoryRuntime},
}

// ClassifyCategory maps a message to a category via the keyword table.
func ClassifyCategory(message string) Category {
	lower := strings.ToLower(message)
	for _, rule := range CategoryRules {
		for _, kw := range rule.Keywords {
			if strings.Contains(lower, kw) {
				return rule.Category
			}
		}
	}
	return CategoryUnknown
}

type severityRule struct {
	Keywords []string
	Severity Severity
}

// SeverityRules is the message-keyword severity table. The high rule also
// fires for syntax and permission categories regardless of keywords.
var SeverityRules = []severityRule{
	{[]string{"critical", "fatal", "crash", "segmentation fault", "out of memory"}, SeverityCritical},
	{[]string{"error", "exception", "failed", "cannot", "unable"}, SeverityHigh},
	{[]string{"warning", "deprecated", "notice"}, SeverityLow},
}

// ClassifySeverity maps a message and its category to a severity.
func ClassifySeverity(message string, category Category) Severity {
	lower := strings.ToLower(message)
	for _, rule := range SeverityRules {
		matched := false
		for _, kw := range rule.Keywords {
			if strings.Contains(lower, kw) {
				matched = true
				break
			}
		}
		// Syntax and permission failures block work outright, so they rate
		// high even without a keyword hit.
		if rule.Severity == SeverityHigh && !matched {
			matched = category == CategorySyntax || category == CategoryPermission
		}
		if matched {
			return rule.Severity
		}
	}
	return SeverityMedium
}

// Terminal classification looks at the command first, then the combined
// stderr+message output, then the exit code, before falling back to the
// generic table.

var (
	compilerCommands = []string{"gcc", "g++", "clang", "javac", "tsc", "rustc"}
	packageCommands  = []string{"npm", "pip", "cargo", "apt", "brew"}
	fileCommands     = []string{"ls", "cd", "mkdir", "rm", "cp", "mv"}
	networkCommands  = []string{"curl", "wget", "ping", "ssh"}
)

func containsAny(s string, keywords ...string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// ClassifyTerminal categorizes a terminal error from its command, output,
// and exit code.
func ClassifyTerminal(command, output string, exitCode int) Category {
	cmd := strings.ToLower(command)
	out := strings.ToLower(output)

	if containsAny(cmd, compilerCommands...) {
		if containsAny(out, "syntax error", "parse error") {
			return CategorySyntax
		}
		return CategoryRuntime
	}

	if containsAny(cmd, packageCommands...) {
		switch {
		case containsAny(out, "permission denied", "access"):
			return CategoryPermission
		case containsAny(out, "network", "connection", "timeout"):
			return CategoryNetwork
		}
		return CategoryResource
	}

	if strings.Contains(cmd, "git") {
		switch {
		case containsAny(out, "permission", "access", "authentication"):
			return CategoryPermission
		case containsAny(out, "network", "connection", "remote"):
			return CategoryNetwork
		}
		return CategoryLogic
	}

	if containsAny(cmd, fileCommands...) {
		switch {
		case containsAny(out, "permission denied", "access"):
			return CategoryPermission
		case containsAny(out, "no such file", "not found"):
			return CategoryResource
		}
		return CategoryLogic
	}

	if containsAny(cmd, networkCommands...) {
		return CategoryNetwork
	}

	// Shell exit-code conventions: 126/127 mean not-executable/not-found,
	// 130 is SIGINT, anything above 128 is signal termination.
	switch {
	case exitCode == 126 || exitCode == 127:
		return CategoryPermission
	case exitCode == 130:
		return CategoryLogic
	case exitCode > 128:
		return CategoryRuntime
	}

	return ClassifyCategory(output)
}
