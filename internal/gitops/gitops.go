// Package gitops adapts the teacher's git shell-out helpers
// (internal/attractor/gitutil) to the Workflow Runner/Scheduler's needs:
// dirty-worktree detection, feature-branch setup, checkpoint commits, and
// diffing for TaskMemory capture. Git plumbing itself is out of scope for
// the specification (spec.md §1); this package exists only because the
// runner and scheduler need a concrete collaborator to call.
package gitops

import (
	"bytes"
	"fmt"
	"os/exec"
	"strings"
)

// CommandError wraps a failed git invocation with its arguments and
// captured stderr, mirroring the teacher's CommandError shape.
type CommandError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("git %s: %v", strings.Join(e.Args, " "), e.Err)
	if e.Stderr != "" {
		msg += ": " + strings.TrimSpace(e.Stderr)
	}
	return msg
}

func (e *CommandError) Unwrap() error { return e.Err }

func run(dir string, args ...string) (string, error) {
	base := []string{"-C", dir, "-c", "maintenance.auto=0", "-c", "gc.auto=0"}
	cmd := exec.Command("git", append(base, args...)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return stdout.String(), &CommandError{Args: args, Stderr: stderr.String(), Err: err}
	}
	return stdout.String(), nil
}

// Repo is a thin handle on a working directory under git control.
type Repo struct {
	Dir string
}

func New(dir string) *Repo { return &Repo{Dir: dir} }

// IsDirty reports whether the worktree has uncommitted changes.
func (r *Repo) IsDirty() (bool, error) {
	out, err := run(r.Dir, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) != "", nil
}

// HeadSHA returns the current HEAD commit hash.
func (r *Repo) HeadSHA() (string, error) {
	out, err := run(r.Dir, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// CurrentBranch returns the checked-out branch name.
func (r *Repo) CurrentBranch() (string, error) {
	out, err := run(r.Dir, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Stash stashes all changes including untracked files, for the
// dirty-worktree "stash" remediation choice of spec.md §4.9.
func (r *Repo) Stash(message string) error {
	_, err := run(r.Dir, "stash", "push", "-u", "-m", message)
	return err
}

// CommitAll stages and commits all working-tree changes with the given
// message; it returns only an error, not the new commit's hash. Used both for
// the "commit" dirty-tree remediation choice and for the "rescue commit"
// variant used ad hoc.
func (r *Repo) CommitAll(message string) error {
	if _, err := run(r.Dir, "add", "-A"); err != nil {
		return err
	}
	_, err := run(r.Dir, "commit", "-m", message)
	return err
}

// EnsureBranch creates branch if it does not already exist, or switches to
// it if it does (create-or-reuse per spec.md §4.9 Entry (d)).
func (r *Repo) EnsureBranch(branch string) error {
	if _, err := run(r.Dir, "rev-parse", "--verify", branch); err == nil {
		_, err := run(r.Dir, "switch", branch)
		return err
	}
	_, err := run(r.Dir, "switch", "-c", branch)
	return err
}

// CheckpointCommit stages everything and commits, allowing an empty commit
// when a task made no file changes, and returns the short hash appended to
// WorkflowState.CheckpointCommits (spec.md §4.10 step 6).
func (r *Repo) CheckpointCommit(message string) (string, error) {
	if _, err := run(r.Dir, "add", "-A"); err != nil {
		return "", err
	}
	if _, err := run(r.Dir, "commit", "--allow-empty", "-m", message); err != nil {
		if isMissingIdentity(err) {
			if _, err2 := run(r.Dir,
				"-c", "user.name=kilroy-tickets",
				"-c", "user.email=kilroy-tickets@local",
				"commit", "--allow-empty", "-m", message,
			); err2 != nil {
				return "", err2
			}
		} else {
			return "", err
		}
	}
	out, err := run(r.Dir, "rev-parse", "--short", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func isMissingIdentity(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "Author identity unknown") ||
		strings.Contains(msg, "Please tell me who you are") ||
		strings.Contains(msg, "unable to auto-detect email address")
}

// DiffNameOnly returns file paths changed between baseRef and the working
// tree (including uncommitted changes), used by the scheduler to build a
// TaskMemory's FilesModified list.
func (r *Repo) DiffNameOnly(baseRef string) ([]string, error) {
	out, err := run(r.Dir, "diff", "--name-only", baseRef)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, line := range strings.Split(out, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			files = append(files, trimmed)
		}
	}
	return files, nil
}

// DiffContent returns the unified diff text between baseRef and the working
// tree, used to infer patterns (spec.md §4.10 step 3).
func (r *Repo) DiffContent(baseRef string) (string, error) {
	return run(r.Dir, "diff", baseRef)
}
