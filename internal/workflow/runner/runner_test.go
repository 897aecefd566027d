package runner

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kilroy-tickets/kilroy/internal/workflow/events"
	"github.com/kilroy-tickets/kilroy/internal/workflow/tasklist"
)

type fakeBackend struct {
	planResponse     string
	tasklistResponse string
	implResponse     string
	tasklistCalls    int
}

func (b *fakeBackend) Name() string { return "fake" }

func (b *fakeBackend) RunPrintQuiet(ctx context.Context, prompt string, model string) (string, error) {
	switch {
	case strings.Contains(prompt, "implementation plan for the following ticket"):
		return b.planResponse, nil
	case strings.Contains(prompt, "produce a task list"):
		b.tasklistCalls++
		return b.tasklistResponse, nil
	default:
		return b.implResponse, nil
	}
}

type autoApprovePrompter struct {
	editCalls int
}

func (p *autoApprovePrompter) ResolveDirtyWorktree(context.Context) (DirtyChoice, error) {
	return DirtyCommit, nil
}
func (p *autoApprovePrompter) GatherUserContext(context.Context) (string, error) {
	return "", nil
}
func (p *autoApprovePrompter) ReviewTasklist(context.Context, []tasklist.Task, string) (Decision, error) {
	return DecisionApprove, nil
}
func (p *autoApprovePrompter) OpenEditor(context.Context, string) error {
	p.editCalls++
	return nil
}

func initRepo(t *testing.T) string {
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v: %s", args, err, out)
		}
	}
	run("init")
	run("-c", "user.name=test", "-c", "user.email=test@test.com", "commit", "--allow-empty", "-m", "init")
	return dir
}

func TestRun_HappyPath(t *testing.T) {
	dir := initRepo(t)
	backend := &fakeBackend{
		planResponse:     "# Plan\ndo the thing",
		tasklistResponse: "- [ ] implement the feature\n",
		implResponse:     "done, all good",
	}
	bus := events.New(64)
	r := New(backend, nil, &autoApprovePrompter{}, bus, Config{
		WorkDir:  dir,
		SpecsDir: filepath.Join(dir, "specs"),
		RunsDir:  filepath.Join(dir, "runs"),
	}, nil)

	result, err := r.Run(context.Background(), "TICKET-1")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Summary.Success != 1 {
		t.Fatalf("got summary %+v", result.Summary)
	}

	planPath := filepath.Join(dir, "specs", "TICKET-1-plan.md")
	data, err := os.ReadFile(planPath)
	if err != nil {
		t.Fatalf("expected plan file: %v", err)
	}
	if string(data) != backend.planResponse {
		t.Fatalf("got plan %q", data)
	}
}

func TestRun_EditDecisionNeverRegenerates(t *testing.T) {
	dir := initRepo(t)
	backend := &fakeBackend{
		planResponse:     "# Plan",
		tasklistResponse: "- [ ] first draft\n",
		implResponse:     "done",
	}
	bus := events.New(64)

	calls := 0
	var path string
	prompter := &editThenApprovePrompter{
		onEdit: func(p string) {
			path = p
			calls++
			os.WriteFile(p, []byte("- [ ] edited by hand\n"), 0o644)
		},
	}

	r := New(backend, nil, prompter, bus, Config{
		WorkDir:  dir,
		SpecsDir: filepath.Join(dir, "specs"),
		RunsDir:  filepath.Join(dir, "runs"),
	}, nil)

	result, err := r.Run(context.Background(), "TICKET-2")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected exactly one editor invocation, got %d", calls)
	}
	if path == "" {
		t.Fatal("editor was never invoked with a path")
	}
	if backend.tasklistCalls != 1 {
		t.Fatalf("expected exactly one tasklist generation call, got %d", backend.tasklistCalls)
	}
	if result.Summary.Total != 1 {
		t.Fatalf("expected the edited single-task list to run, got %+v", result.Summary)
	}
}

// editThenApprovePrompter approves the dirty-worktree/user-context prompts,
// requests one Edit, then approves — verifying Edit never triggers a second
// AI call (the tasklistResponse is only ever returned once).
type editThenApprovePrompter struct {
	reviewed int
	onEdit   func(path string)
}

func (p *editThenApprovePrompter) ResolveDirtyWorktree(context.Context) (DirtyChoice, error) {
	return DirtyCommit, nil
}
func (p *editThenApprovePrompter) GatherUserContext(context.Context) (string, error) {
	return "", nil
}
func (p *editThenApprovePrompter) ReviewTasklist(_ context.Context, _ []tasklist.Task, path string) (Decision, error) {
	p.reviewed++
	if p.reviewed == 1 {
		return DecisionEdit, nil
	}
	return DecisionApprove, nil
}
func (p *editThenApprovePrompter) OpenEditor(_ context.Context, path string) error {
	p.onEdit(path)
	return nil
}

func TestRun_AbortDuringTasklistReview(t *testing.T) {
	dir := initRepo(t)
	backend := &fakeBackend{planResponse: "# Plan", tasklistResponse: "- [ ] x\n"}
	bus := events.New(64)
	prompter := &abortingPrompter{}

	r := New(backend, nil, prompter, bus, Config{
		WorkDir:  dir,
		SpecsDir: filepath.Join(dir, "specs"),
		RunsDir:  filepath.Join(dir, "runs"),
	}, nil)

	_, err := r.Run(context.Background(), "TICKET-3")
	if err == nil {
		t.Fatal("expected abort to return an error")
	}
}

type abortingPrompter struct{}

func (abortingPrompter) ResolveDirtyWorktree(context.Context) (DirtyChoice, error) {
	return DirtyCommit, nil
}
func (abortingPrompter) GatherUserContext(context.Context) (string, error) { return "", nil }
func (abortingPrompter) ReviewTasklist(context.Context, []tasklist.Task, string) (Decision, error) {
	return DecisionAbort, nil
}
func (abortingPrompter) OpenEditor(context.Context, string) error { return nil }
