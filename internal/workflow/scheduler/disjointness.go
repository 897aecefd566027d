package scheduler

import (
	"fmt"
	"regexp"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/kilroy-tickets/kilroy/internal/workflow/tasklist"
)

// fileMentionRE extracts path-like tokens from a task description: a run of
// word/path characters ending in a dotted extension, e.g. internal/foo/bar.go.
var fileMentionRE = regexp.MustCompile(`[\w][\w./-]*\.[A-Za-z0-9]{1,8}\b`)

// DisjointnessViolation records two same-wave independent tasks whose
// descriptions mention the same file.
type DisjointnessViolation struct {
	TaskA, TaskB string
	File         string
}

func (v DisjointnessViolation) String() string {
	return fmt.Sprintf("%q and %q both mention %s", v.TaskA, v.TaskB, v.File)
}

// extractFileMentions pulls path-like tokens out of a task's name.
func extractFileMentions(name string) []string {
	return fileMentionRE.FindAllString(name, -1)
}

func matchesAnyGlob(file string, globs []string) bool {
	for _, g := range globs {
		if ok, err := doublestar.Match(g, file); err == nil && ok {
			return true
		}
	}
	return false
}

// checkWaveDisjointness is the opt-in pre-scan for spec.md §4.10's
// documented-not-enforced file-disjointness invariant: it compares the file
// mentions of every pair of tasks in an independent wave and reports any
// exact overlaps, skipping mentions that match one of ignoreGlobs (a
// .kilroyignore-style exclusion list for generated or shared files that are
// expected to be touched by more than one task).
func checkWaveDisjointness(wave []tasklist.Task, ignoreGlobs []string) []DisjointnessViolation {
	if len(wave) < 2 {
		return nil
	}
	mentions := make([][]string, len(wave))
	for i, t := range wave {
		for _, f := range extractFileMentions(t.Name) {
			if matchesAnyGlob(f, ignoreGlobs) {
				continue
			}
			mentions[i] = append(mentions[i], f)
		}
	}
	var violations []DisjointnessViolation
	for i := 0; i < len(wave); i++ {
		for j := i + 1; j < len(wave); j++ {
			for _, a := range mentions[i] {
				for _, b := range mentions[j] {
					if a == b {
						violations = append(violations, DisjointnessViolation{
							TaskA: wave[i].Name,
							TaskB: wave[j].Name,
							File:  a,
						})
					}
				}
			}
		}
	}
	return violations
}
