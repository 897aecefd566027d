package scheduler

import "strings"

// inferPatterns derives short pattern labels from a TaskMemory's modified
// files and diff content (spec.md §4.10 step 3), used to build cross-task
// context for later task prompts.
func inferPatterns(files []string, diff string) []string {
	var patterns []string
	seen := map[string]bool{}
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			patterns = append(patterns, p)
		}
	}

	if strings.Contains(diff, "async def") || strings.Contains(diff, "async func") {
		add("async pattern")
	}
	for _, f := range files {
		lower := strings.ToLower(f)
		if strings.Contains(lower, "test") {
			add("test suite structure")
			break
		}
	}
	if strings.Contains(diff, "interface{") || strings.Contains(diff, "interface {") {
		add("interface-based abstraction")
	}
	if strings.Contains(diff, "sql.DB") || strings.Contains(diff, "database/sql") {
		add("database access layer")
	}
	return patterns
}
