// Package runner implements the Workflow Runner (spec.md §4.9, C9): the
// three-phase (plan, tasklist, execute) state machine tying together the
// Ticket Service, the AI oracle, and the Task Scheduler. Grounded on the
// teacher's registry-injected UserInteraction pattern
// (internal/ticket/provider.UserInteraction) for the runner's interactive
// surfaces, generalized from yes/no/select to the workflow's richer
// dirty-worktree and tasklist-approval prompts.
package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/kilroy-tickets/kilroy/internal/gitops"
	"github.com/kilroy-tickets/kilroy/internal/oracle"
	"github.com/kilroy-tickets/kilroy/internal/ticket/ferrors"
	"github.com/kilroy-tickets/kilroy/internal/ticket/model"
	"github.com/kilroy-tickets/kilroy/internal/ticket/service"
	"github.com/kilroy-tickets/kilroy/internal/workflow/events"
	"github.com/kilroy-tickets/kilroy/internal/workflow/scheduler"
	"github.com/kilroy-tickets/kilroy/internal/workflow/state"
	"github.com/kilroy-tickets/kilroy/internal/workflow/tasklist"
)

// DirtyChoice is the user's resolution of a dirty worktree at Entry (a).
type DirtyChoice int

const (
	DirtyStash DirtyChoice = iota
	DirtyCommit
	DirtyAbort
)

// Decision is the tasklist approval loop's outcome (spec.md §4.9 Phase 2).
type Decision int

const (
	DecisionApprove Decision = iota
	DecisionRegenerate
	DecisionEdit
	DecisionAbort
)

// Prompter is the runner's interactive surface, injected the same way the
// Provider Registry injects provider.UserInteraction.
type Prompter interface {
	ResolveDirtyWorktree(ctx context.Context) (DirtyChoice, error)
	GatherUserContext(ctx context.Context) (string, error)
	ReviewTasklist(ctx context.Context, tasks []tasklist.Task, path string) (Decision, error)
	OpenEditor(ctx context.Context, path string) error
}

// NonInteractivePrompter never blocks: it always aborts on a dirty worktree,
// supplies no user context, and always approves a generated tasklist. It
// mirrors provider.NonInteractiveUI's "never block" contract for headless
// runs.
type NonInteractivePrompter struct{}

func (NonInteractivePrompter) ResolveDirtyWorktree(context.Context) (DirtyChoice, error) {
	return DirtyAbort, nil
}
func (NonInteractivePrompter) GatherUserContext(context.Context) (string, error) { return "", nil }
func (NonInteractivePrompter) ReviewTasklist(context.Context, []tasklist.Task, string) (Decision, error) {
	return DecisionApprove, nil
}
func (NonInteractivePrompter) OpenEditor(context.Context, string) error { return nil }

// Config controls a Runner.
type Config struct {
	WorkDir             string
	SpecsDir            string // default "specs"
	RunsDir             string // default "runs"
	PlanningModel       string
	ImplementationModel string
	SkipClarification   bool
	SquashAtEnd         bool
	FailFast            bool
	MaxRetries          int
	MaxWorkers          int
	Verifier            scheduler.Verifier

	CheckDisjointness bool
	IgnoreGlobs       []string
}

func (c Config) normalized() Config {
	if c.SpecsDir == "" {
		c.SpecsDir = "specs"
	}
	if c.RunsDir == "" {
		c.RunsDir = "runs"
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	return c
}

// Result is what Run reports on success.
type Result struct {
	Summary    scheduler.Summary
	BranchName string
	RunDir     string
}

// Runner ties the Ticket Service, AI oracle, and Task Scheduler together
// into the three-phase workflow of spec.md §4.9.
type Runner struct {
	backend  oracle.Backend
	svc      *service.Service
	prompter Prompter
	bus      *events.Bus
	cfg      Config
	log      *zap.SugaredLogger
}

// New builds a Runner. svc may be nil when ticket enrichment isn't wanted;
// the runner then proceeds with a bare-id ticket. log defaults to a no-op
// logger when nil.
func New(backend oracle.Backend, svc *service.Service, prompter Prompter, bus *events.Bus, cfg Config, log *zap.SugaredLogger) *Runner {
	if prompter == nil {
		prompter = NonInteractivePrompter{}
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Runner{backend: backend, svc: svc, prompter: prompter, bus: bus, cfg: cfg.normalized(), log: log}
}

// Run executes the full plan -> tasklist -> execute state machine for a
// ticket reference, per spec.md §4.9.
func (r *Runner) Run(ctx context.Context, ticketInput string) (result Result, err error) {
	repo := gitops.New(r.cfg.WorkDir)
	originalBranch, _ := repo.CurrentBranch()

	st, cleanupErr := r.entry(ctx, repo, ticketInput)
	defer func() {
		if err != nil {
			r.cleanup(st, repo, originalBranch, err)
		}
	}()
	if cleanupErr != nil {
		err = cleanupErr
		return result, err
	}

	planPath, planText, err := r.runPlanPhase(ctx, st)
	if err != nil {
		return result, err
	}
	st.PlanPath = planPath
	if err = st.Advance(state.StepTasklist); err != nil {
		return result, err
	}

	tasklistPath := filepath.Join(r.cfg.SpecsDir, fmt.Sprintf("%s-tasklist.md", st.Ticket.ID()))
	tasks, err := r.runTasklistPhase(ctx, st, planText, tasklistPath)
	if err != nil {
		return result, err
	}
	st.TasklistPath = tasklistPath
	if err = st.Advance(state.StepExecute); err != nil {
		return result, err
	}

	runDir := filepath.Join(r.cfg.RunsDir, ulid.Make().String())
	if mkErr := os.MkdirAll(runDir, 0o755); mkErr != nil {
		err = mkErr
		return result, err
	}
	_ = SaveSnapshot(runDir, RunSnapshot{
		TicketID:            st.Ticket.ID(),
		BranchName:          st.BranchName,
		BaseCommit:          st.BaseCommit,
		TasklistPath:        tasklistPath,
		PlanPath:            st.PlanPath,
		PlanningModel:       r.cfg.PlanningModel,
		ImplementationModel: r.cfg.ImplementationModel,
		MaxWorkers:          r.cfg.MaxWorkers,
		FailFast:            r.cfg.FailFast,
		CreatedAt:           time.Now(),
	})

	sched := scheduler.New(r.backend, r.bus, st, repo, scheduler.Config{
		RunDir:       runDir,
		TasklistPath: tasklistPath,
		Model:        r.cfg.ImplementationModel,
		MaxWorkers:   r.cfg.MaxWorkers,
		MaxRetries:   r.cfg.MaxRetries,
		FailFast:     r.cfg.FailFast,
		Verifier:     r.cfg.Verifier,

		CheckDisjointness: r.cfg.CheckDisjointness,
		IgnoreGlobs:       r.cfg.IgnoreGlobs,
	})
	summary, schedErr := sched.Run(ctx, tasks)
	if schedErr != nil {
		err = schedErr
		return result, err
	}
	if summary.Failed > 0 {
		err = fmt.Errorf("workflow run completed with %d failed task(s)", summary.Failed)
		return result, err
	}

	result = Result{Summary: summary, BranchName: st.BranchName, RunDir: runDir}
	return result, nil
}

// entry implements spec.md §4.9 Entry (a)-(e).
func (r *Runner) entry(ctx context.Context, repo *gitops.Repo, ticketInput string) (*state.WorkflowState, error) {
	dirty, err := repo.IsDirty()
	if err != nil {
		r.log.Warnw("could not determine worktree dirtiness", "error", err)
	}
	if dirty {
		choice, err := r.prompter.ResolveDirtyWorktree(ctx)
		if err != nil {
			return nil, err
		}
		switch choice {
		case DirtyStash:
			if err := repo.Stash("workflow auto-stash"); err != nil {
				return nil, err
			}
		case DirtyCommit:
			if err := repo.CommitAll("workflow auto-commit before run"); err != nil {
				return nil, err
			}
		case DirtyAbort:
			return nil, &ferrors.UserCancelled{}
		}
	}

	ticket := r.fetchTicketBestEffort(ctx, ticketInput)

	var userContext string
	if !r.cfg.SkipClarification {
		userContext, err = r.prompter.GatherUserContext(ctx)
		if err != nil {
			return nil, err
		}
	}

	branch := "workflow/" + ticket.BranchSummary()
	if branch == "workflow/" {
		branch = "workflow/" + model.Slugify(ticket.ID())
	}
	if err := repo.EnsureBranch(branch); err != nil {
		return nil, err
	}

	baseCommit, err := repo.HeadSHA()
	if err != nil {
		r.log.Warnw("could not record base commit", "error", err)
	}

	st := state.New(ticket, branch, r.cfg.MaxRetries)
	st.BaseCommit = baseCommit
	st.UserContext = userContext
	st.PlanningModel = r.cfg.PlanningModel
	st.ImplementationModel = r.cfg.ImplementationModel
	st.SkipClarification = r.cfg.SkipClarification
	st.SquashAtEnd = r.cfg.SquashAtEnd
	st.FailFast = r.cfg.FailFast
	return st, nil
}

// fetchTicketBestEffort tries the Ticket Service; any failure is logged as
// a warning and the runner continues with a bare-id ticket (spec.md §4.9
// Entry (b)).
func (r *Runner) fetchTicketBestEffort(ctx context.Context, ticketInput string) model.GenericTicket {
	if r.svc == nil {
		return model.NewGenericTicket(model.TicketInput{ID: ticketInput})
	}
	ticket, err := r.svc.GetTicket(ctx, service.GetTicketInput{Input: ticketInput})
	if err != nil {
		r.log.Warnw("best-effort ticket fetch failed, continuing with bare id", "input", ticketInput, "error", err)
		return model.NewGenericTicket(model.TicketInput{ID: ticketInput})
	}
	return ticket
}

// runPlanPhase implements spec.md §4.9 Phase 1: build the planning prompt,
// call the oracle, and persist the plan itself (never assuming the AI wrote
// the file).
func (r *Runner) runPlanPhase(ctx context.Context, st *state.WorkflowState) (path, text string, err error) {
	prompt := buildPlanPrompt(st)
	text, err = r.backend.RunPrintQuiet(ctx, prompt, r.cfg.PlanningModel)
	if err != nil {
		return "", "", err
	}
	if err := os.MkdirAll(r.cfg.SpecsDir, 0o755); err != nil {
		return "", "", err
	}
	path = filepath.Join(r.cfg.SpecsDir, fmt.Sprintf("%s-plan.md", st.Ticket.ID()))
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", "", err
	}
	return path, text, nil
}

// runTasklistPhase implements spec.md §4.9 Phase 2's generate/approve loop.
// The critical invariant enforced here: DecisionEdit never re-invokes the
// AI, it only re-reads the file the user's editor left behind.
func (r *Runner) runTasklistPhase(ctx context.Context, st *state.WorkflowState, planText, path string) ([]tasklist.Task, error) {
	tasks, err := r.generateTasklist(ctx, st, planText, path)
	if err != nil {
		return nil, err
	}

	for {
		decision, err := r.prompter.ReviewTasklist(ctx, tasks, path)
		if err != nil {
			return nil, err
		}
		switch decision {
		case DecisionApprove:
			return tasks, nil
		case DecisionRegenerate:
			tasks, err = r.generateTasklist(ctx, st, planText, path)
			if err != nil {
				return nil, err
			}
		case DecisionEdit:
			if err := r.prompter.OpenEditor(ctx, path); err != nil {
				return nil, err
			}
			tasks, err = reloadTasklist(path)
			if err != nil {
				return nil, err
			}
		case DecisionAbort:
			return nil, &ferrors.UserCancelled{}
		}
	}
}

// generateTasklist calls the AI oracle and writes the resulting tasklist,
// falling back to the default template when the response has no
// parseable checkboxes (spec.md §4.9 "Robust extraction").
func (r *Runner) generateTasklist(ctx context.Context, st *state.WorkflowState, planText, path string) ([]tasklist.Task, error) {
	prompt := buildTasklistPrompt(st, planText)
	text, err := r.backend.RunPrintQuiet(ctx, prompt, r.cfg.PlanningModel)
	if err != nil {
		return nil, err
	}
	tasks := tasklist.Parse(text)
	if len(tasks) == 0 {
		text = tasklist.DefaultTemplate()
		tasks = tasklist.Parse(text)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return nil, err
	}
	return tasks, nil
}

// reloadTasklist re-reads a user-edited tasklist file, overwriting it with
// the default template if editing left it with no parseable tasks.
func reloadTasklist(path string) ([]tasklist.Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	tasks := tasklist.Parse(string(data))
	if len(tasks) == 0 {
		text := tasklist.DefaultTemplate()
		if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
			return nil, err
		}
		tasks = tasklist.Parse(text)
	}
	return tasks, nil
}

// cleanup is the scoped "workflow_cleanup" resource of spec.md §4.9: on any
// non-success exit it reports remediation context and leaves the worktree
// untouched — no auto-revert.
func (r *Runner) cleanup(st *state.WorkflowState, repo *gitops.Repo, originalBranch string, cause error) {
	checkpoints := 0
	currentBranch := originalBranch
	if st != nil {
		checkpoints = len(st.CheckpointCommits)
		currentBranch = st.BranchName
	}
	if b, err := repo.CurrentBranch(); err == nil {
		currentBranch = b
	}
	r.log.Infow("workflow run did not complete normally",
		"cause", cause,
		"checkpoint_commits", checkpoints,
		"current_branch", currentBranch,
		"original_branch", originalBranch,
	)
}

func buildPlanPrompt(st *state.WorkflowState) string {
	var userContext string
	if st.UserContext != "" {
		userContext = "\nAdditional context from the user:\n" + st.UserContext + "\n"
	}
	return fmt.Sprintf(
		"Write an implementation plan for the following ticket.\n\nTitle: %s\nDescription: %s\n%s\nRespond with the plan as markdown.",
		st.Ticket.Title(), st.Ticket.Description(), userContext,
	)
}

func buildTasklistPrompt(st *state.WorkflowState, planText string) string {
	return fmt.Sprintf(
		"Given the following implementation plan, produce a task list as markdown checkboxes "+
			"(`- [ ] task`), annotating fundamental (sequential) tasks with "+
			"`<!-- category: fundamental, order: N -->` and independent (parallelizable) "+
			"tasks sharing a group with `<!-- category: independent, group: TAG -->`.\n\nPlan:\n%s",
		planText,
	)
}
