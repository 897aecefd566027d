package scheduler

import "regexp"

// ErrorAnalysis is the classifier output of spec.md §4.10 step 7, fed back
// to the AI in a retry prompt.
type ErrorAnalysis struct {
	Kind         string
	File         string
	Line         string
	Message      string
	RootCause    string
	SuggestedFix string
}

var (
	tracebackFileLineRE = regexp.MustCompile(`File "([^"]+)", line (\d+)`)
	goPanicRE           = regexp.MustCompile(`panic: (.+)`)
	compilerDiagRE      = regexp.MustCompile(`([^\s:]+\.go):(\d+):\d+: (.+)`)
	testFailureRE       = regexp.MustCompile(`(?m)^--- FAIL: (\S+)`)
	assertionRE         = regexp.MustCompile(`(?i)assert(ion)? (error|failed)`)
)

// AnalyzeError classifies a task's failure output with a small regex-based
// classifier over tracebacks, compiler diagnostics, and test-runner
// summaries, producing a structured analysis to feed back to the AI.
func AnalyzeError(output string) ErrorAnalysis {
	if m := compilerDiagRE.FindStringSubmatch(output); m != nil {
		return ErrorAnalysis{
			Kind:         "compile_error",
			File:         m[1],
			Line:         m[2],
			Message:      m[3],
			RootCause:    "compilation failed: " + m[3],
			SuggestedFix: "fix the reported compiler diagnostic at " + m[1] + ":" + m[2],
		}
	}
	if m := tracebackFileLineRE.FindStringSubmatch(output); m != nil {
		return ErrorAnalysis{
			Kind:         "runtime_traceback",
			File:         m[1],
			Line:         m[2],
			Message:      lastNonEmptyLine(output),
			RootCause:    "unhandled exception during execution",
			SuggestedFix: "inspect " + m[1] + " around line " + m[2] + " for the failing call",
		}
	}
	if m := goPanicRE.FindStringSubmatch(output); m != nil {
		return ErrorAnalysis{
			Kind:         "runtime_panic",
			Message:      m[1],
			RootCause:    "unrecovered panic: " + m[1],
			SuggestedFix: "add error handling or fix the invariant that produced the panic",
		}
	}
	if m := testFailureRE.FindStringSubmatch(output); m != nil {
		return ErrorAnalysis{
			Kind:         "test_failure",
			Message:      "test " + m[1] + " failed",
			RootCause:    "one or more assertions did not hold",
			SuggestedFix: "review the failing test's expectations against the implementation",
		}
	}
	if assertionRE.MatchString(output) {
		return ErrorAnalysis{
			Kind:         "assertion_failure",
			Message:      lastNonEmptyLine(output),
			RootCause:    "an assertion did not hold",
			SuggestedFix: "review the assertion and the value that violated it",
		}
	}
	return ErrorAnalysis{
		Kind:         "unknown",
		Message:      lastNonEmptyLine(output),
		RootCause:    "unclassified failure",
		SuggestedFix: "inspect the full task output for details",
	}
}

func lastNonEmptyLine(s string) string {
	lines := splitNonEmpty(s)
	if len(lines) == 0 {
		return ""
	}
	return lines[len(lines)-1]
}

func splitNonEmpty(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == '\n' {
			line := s[start:i]
			if trimmed := trimSpace(line); trimmed != "" {
				out = append(out, trimmed)
			}
			start = i + 1
		}
	}
	return out
}

func trimSpace(s string) string {
	start, end := 0, len(s)
	for start < end && isSpace(s[start]) {
		start++
	}
	for end > start && isSpace(s[end-1]) {
		end--
	}
	return s[start:end]
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\r' || b == '\n'
}
