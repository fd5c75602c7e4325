package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyCategory(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		expected Category
	}{
		{"syntax error", "SyntaxError: unexpected token '}'", CategorySyntax},
		{"parse error", "parse error near line 3", CategorySyntax},
		{"network fetch", "Failed to fetch resource", CategoryNetwork},
		{"cors", "blocked by CORS policy", CategoryNetwork},
		{"http status", "server returned 404", CategoryNetwork},
		{"permission", "EACCES: permission denied", CategoryPermission},
		{"unauthorized", "request was unauthorized", CategoryPermission},
		{"oom", "process ran out of memory", CategoryResource},
		{"quota", "storage quota exceeded", CategoryResource},
		{"null deref", "Cannot read property of null", CategoryRuntime},
		{"undefined", "foo is undefined", CategoryRuntime},
		{"no match", "something odd happened", CategoryUnknown},
		{"first rule wins", "syntax error while parsing network response", CategorySyntax},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ClassifyCategory(tt.message))
		})
	}
}

func TestClassifySeverity(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		category Category
		expected Severity
	}{
		{"fatal", "fatal: repository corrupt", CategoryUnknown, SeverityCritical},
		{"segfault", "segmentation fault (core dumped)", CategoryRuntime, SeverityCritical},
		{"oom outranks high", "out of memory error", CategoryResource, SeverityCritical},
		{"generic error", "error connecting to host", CategoryNetwork, SeverityHigh},
		{"cannot", "cannot open file", CategoryUnknown, SeverityHigh},
		{"syntax category without keyword", "bad token", CategorySyntax, SeverityHigh},
		{"permission category without keyword", "denied", CategoryPermission, SeverityHigh},
		{"warning", "warning: deprecated API", CategoryUnknown, SeverityLow},
		{"default", "things look strange", CategoryUnknown, SeverityMedium},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ClassifySeverity(tt.message, tt.category))
		})
	}
}

func TestClassifyTerminal(t *testing.T) {
	tests := []struct {
		name     string
		command  string
		output   string
		exitCode int
		expected Category
	}{
		{"compiler syntax", "gcc main.c", "main.c:4: syntax error before ';'", 1, CategorySyntax},
		{"compiler other", "rustc lib.rs", "borrow checker failure", 1, CategoryRuntime},
		{"npm permission", "npm install -g pkg", "EACCES permission denied", 1, CategoryPermission},
		{"pip network", "pip install requests", "connection timed out", 1, CategoryNetwork},
		{"cargo default", "cargo build", "could not compile crate", 101, CategoryResource},
		{"git auth", "git push", "authentication failed for remote", 128, CategoryPermission},
		{"git remote", "git fetch", "could not resolve remote host", 128, CategoryNetwork},
		{"git other", "git rebase", "could not apply commit", 1, CategoryLogic},
		{"rm permission", "rm -rf /var/log", "permission denied", 1, CategoryPermission},
		{"ls missing", "ls /nope", "no such file or directory", 2, CategoryResource},
		{"mv other", "mv a b", "invalid argument", 1, CategoryLogic},
		{"curl", "curl https://example.com", "anything at all", 6, CategoryNetwork},
		{"exit 127", "unknowncmd", "unknowncmd: nope", 127, CategoryPermission},
		{"exit 130", "sleep 100", "", 130, CategoryLogic},
		{"signal exit", "myproc", "", 139, CategoryRuntime},
		{"fallback to generic", "make", "undefined reference to main", 2, CategoryRuntime},
		{"fallback unknown", "make", "stopped for no reason", 2, CategoryUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ClassifyTerminal(tt.command, tt.output, tt.exitCode))
		})
	}
}
