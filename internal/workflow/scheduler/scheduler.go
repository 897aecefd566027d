// Package scheduler implements the Task Scheduler (spec.md §4.10, C10):
// wave-based execution of a parsed tasklist, grounded on the cross-task
// TaskMemory and event-lifecycle model of spec.md §3/§4.12, with the
// per-stage status classification style of the teacher's
// internal/attractor/runtime/status.go.
package scheduler

import (
	"context"
	"fmt"
	"math/rand"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/kilroy-tickets/kilroy/internal/gitops"
	"github.com/kilroy-tickets/kilroy/internal/oracle"
	"github.com/kilroy-tickets/kilroy/internal/workflow/events"
	"github.com/kilroy-tickets/kilroy/internal/workflow/logbuffer"
	"github.com/kilroy-tickets/kilroy/internal/workflow/state"
	"github.com/kilroy-tickets/kilroy/internal/workflow/tasklist"
)

const (
	defaultMaxWorkers = 3
	maxMaxWorkers     = 5
	defaultBaseDelay  = 2 * time.Second
)

// Config controls a Scheduler run.
type Config struct {
	RunDir       string
	TasklistPath string
	Model        string
	MaxWorkers   int
	MaxRetries   int
	BaseDelay    time.Duration
	FailFast     bool
	Verifier     Verifier

	// CheckDisjointness opts into the file-mention pre-scan of spec.md
	// §4.10's documented-not-enforced disjointness invariant. Off by
	// default since the invariant is the task-list author's
	// responsibility, not the scheduler's.
	CheckDisjointness bool
	IgnoreGlobs       []string
}

func (c Config) normalized() Config {
	if c.MaxWorkers <= 0 {
		c.MaxWorkers = defaultMaxWorkers
	}
	if c.MaxWorkers > maxMaxWorkers {
		c.MaxWorkers = maxMaxWorkers
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = defaultBaseDelay
	}
	if c.Verifier == nil {
		c.Verifier = NoopVerifier{}
	}
	return c
}

// Summary is the Scheduler's run(tasks) → summary contract.
type Summary struct {
	Total   int
	Success int
	Failed  int
	Skipped int
}

// Scheduler executes a tasklist wave by wave, posting lifecycle events and
// mutating WorkflowState under a single mutex (spec.md §4.10:
// "writes to WorkflowState...are mutex-guarded").
type Scheduler struct {
	backend oracle.Backend
	bus     *events.Bus
	state   *state.WorkflowState
	repo    *gitops.Repo
	cfg     Config

	mu sync.Mutex
}

// New builds a Scheduler. repo may be nil in tests that don't exercise
// checkpoint commits; diffing/checkpointing is then skipped.
func New(backend oracle.Backend, bus *events.Bus, st *state.WorkflowState, repo *gitops.Repo, cfg Config) *Scheduler {
	return &Scheduler{
		backend: backend,
		bus:     bus,
		state:   st,
		repo:    repo,
		cfg:     cfg.normalized(),
	}
}

// Run executes tasks wave by wave and returns the final summary.
func (s *Scheduler) Run(ctx context.Context, tasks []tasklist.Task) (Summary, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.bus.Post(events.TaskEvent{Kind: events.RunStarted, Total: len(tasks)})

	var summary Summary
	summary.Total = len(tasks)

	waves := buildWaves(tasks)
	idx := 0
	failFast := false

	for _, wave := range waves {
		if failFast {
			break
		}

		if len(wave) == 1 {
			status := s.runTask(ctx, idx, wave[0])
			s.tally(&summary, status)
			if status == events.TaskFailed && s.cfg.FailFast {
				failFast = true
				cancel()
			}
			idx++
			continue
		}

		if s.cfg.CheckDisjointness {
			for _, v := range checkWaveDisjointness(wave, s.cfg.IgnoreGlobs) {
				s.bus.Post(events.TaskEvent{Kind: events.TaskOutput, Index: -1,
					Line: fmt.Sprintf("disjointness warning: %s", v)})
			}
		}

		statuses := s.runWaveParallel(ctx, idx, wave)
		for _, st := range statuses {
			s.tally(&summary, st)
			if st == events.TaskFailed && s.cfg.FailFast {
				failFast = true
			}
		}
		if failFast {
			cancel()
		}
		idx += len(wave)
	}

	if failFast {
		for ; idx < len(tasks); idx++ {
			summary.Skipped++
			s.bus.Post(events.TaskEvent{Kind: events.TaskFinished, Index: idx, Status: events.TaskSkipped})
		}
	}

	s.bus.Post(events.TaskEvent{
		Kind:      events.RunFinished,
		Total:     summary.Total,
		Successes: summary.Success,
		Failures:  summary.Failed,
		Skipped:   summary.Skipped,
	})
	return summary, nil
}

// runWaveParallel runs an Independent wave with bounded concurrency. Under
// fail_fast, the first TaskFinished{failed} cancels a wave-scoped context:
// tasks already running observe it on their next retry-loop check (and
// finish as failed, per runTask's ctx.Done() branch), while tasks that have
// not yet started are skipped outright and never launched (spec.md §4.10).
func (s *Scheduler) runWaveParallel(ctx context.Context, baseIdx int, wave []tasklist.Task) []events.TaskStatus {
	waveCtx, waveCancel := context.WithCancel(ctx)
	defer waveCancel()

	sem := make(chan struct{}, s.cfg.MaxWorkers)
	var wg sync.WaitGroup
	statuses := make([]events.TaskStatus, len(wave))

	skip := func(i int) {
		statuses[i] = events.TaskSkipped
		s.bus.Post(events.TaskEvent{Kind: events.TaskFinished, Index: baseIdx + i, Status: events.TaskSkipped})
	}

	for i, t := range wave {
		select {
		case <-waveCtx.Done():
			skip(i)
			continue
		default:
		}

		sem <- struct{}{}

		select {
		case <-waveCtx.Done():
			<-sem
			skip(i)
			continue
		default:
		}

		wg.Add(1)
		go func(i int, t tasklist.Task) {
			defer wg.Done()
			defer func() { <-sem }()
			status := s.runTask(waveCtx, baseIdx+i, t)
			statuses[i] = status
			if status == events.TaskFailed && s.cfg.FailFast {
				waveCancel()
			}
		}(i, t)
	}
	wg.Wait()
	return statuses
}

func (s *Scheduler) tally(sum *Summary, status events.TaskStatus) {
	switch status {
	case events.TaskSuccess:
		sum.Success++
	case events.TaskFailed:
		sum.Failed++
	case events.TaskSkipped:
		sum.Skipped++
	}
}

// buildWaves partitions an ordered task list into waves: a lone Fundamental
// task, or a contiguous run of Independent tasks sharing a group tag
// (spec.md §4.10 Grouping).
func buildWaves(tasks []tasklist.Task) [][]tasklist.Task {
	var waves [][]tasklist.Task
	i := 0
	for i < len(tasks) {
		t := tasks[i]
		if t.Category == tasklist.Independent {
			group := []tasklist.Task{t}
			j := i + 1
			for j < len(tasks) && tasks[j].Category == tasklist.Independent && tasks[j].GroupTag == t.GroupTag {
				group = append(group, tasks[j])
				j++
			}
			waves = append(waves, group)
			i = j
			continue
		}
		waves = append(waves, []tasklist.Task{t})
		i++
	}
	return waves
}

func (s *Scheduler) runTask(ctx context.Context, idx int, task tasklist.Task) events.TaskStatus {
	logPath := filepath.Join(s.cfg.RunDir, fmt.Sprintf("task_%03d_%s.log", idx+1, slugify(task.Name)))
	buf := logbuffer.New(logPath, 100)
	defer buf.Close()

	s.bus.Post(events.TaskEvent{Kind: events.TaskStarted, Index: idx, Name: task.Name})
	start := time.Now()

	onLine := func(line string) {
		buf.Write(line)
		s.bus.Post(events.TaskEvent{Kind: events.TaskOutput, Index: idx, Line: line})
	}

	var lastAnalysis *ErrorAnalysis
	rateLimitAttempt := 0
	errorAttempt := 0
	maxRetries := s.cfg.MaxRetries

	for {
		select {
		case <-ctx.Done():
			s.bus.Post(events.TaskEvent{
				Kind: events.TaskFinished, Index: idx, Status: events.TaskFailed,
				Duration: time.Since(start), Error: ctx.Err().Error(),
			})
			return events.TaskFailed
		default:
		}

		prompt := s.buildPrompt(task, lastAnalysis)
		output, err := s.invoke(ctx, prompt, onLine)

		if isRateLimited(output) {
			rateLimitAttempt++
			if rateLimitAttempt > maxRetries {
				s.bus.Post(events.TaskEvent{
					Kind: events.TaskFinished, Index: idx, Status: events.TaskFailed,
					Duration: time.Since(start), Error: "rate limit retries exhausted",
				})
				return events.TaskFailed
			}
			if !sleepWithJitter(ctx, s.cfg.BaseDelay, rateLimitAttempt) {
				s.bus.Post(events.TaskEvent{
					Kind: events.TaskFinished, Index: idx, Status: events.TaskFailed,
					Duration: time.Since(start), Error: ctx.Err().Error(),
				})
				return events.TaskFailed
			}
			continue
		}

		if err == nil {
			if verr := s.cfg.Verifier.Verify(ctx, task); verr == nil {
				s.mu.Lock()
				memory := s.captureMemory(task)
				s.state.AddTaskMemory(memory)
				s.state.MarkTaskComplete(task.Name)
				s.state.ResetRetries()
				if s.repo != nil {
					if hash, cerr := s.repo.CheckpointCommit("checkpoint: " + task.Name); cerr == nil {
						s.state.AddCheckpoint(hash)
					}
				}
				s.mu.Unlock()
				tasklist.MarkTaskComplete(s.cfg.TasklistPath, task.Name)
				s.bus.Post(events.TaskEvent{
					Kind: events.TaskFinished, Index: idx, Status: events.TaskSuccess,
					Duration: time.Since(start),
				})
				return events.TaskSuccess
			}
			output += "\n" + verr.Error()
		}

		analysis := AnalyzeError(output)
		lastAnalysis = &analysis
		errorAttempt++
		if errorAttempt > maxRetries {
			s.bus.Post(events.TaskEvent{
				Kind: events.TaskFinished, Index: idx, Status: events.TaskFailed,
				Duration: time.Since(start), Error: analysis.Message,
			})
			return events.TaskFailed
		}
	}
}

// captureMemory diffs the working tree against BaseCommit to build a
// TaskMemory; called with s.mu held. A nil repo (tests) yields an empty
// diff, which still produces a usable (if pattern-less) memory entry.
func (s *Scheduler) captureMemory(task tasklist.Task) state.TaskMemory {
	var files []string
	var diff string
	if s.repo != nil {
		files, _ = s.repo.DiffNameOnly(s.state.BaseCommit)
		diff, _ = s.repo.DiffContent(s.state.BaseCommit)
	}
	return state.TaskMemory{
		TaskName:      task.Name,
		FilesModified: files,
		PatternsUsed:  inferPatterns(files, diff),
	}
}

// buildPrompt incorporates prior TaskMemory pattern context and, on retry,
// the previous ErrorAnalysis (spec.md §4.10 steps 3 and 7).
func (s *Scheduler) buildPrompt(task tasklist.Task, retry *ErrorAnalysis) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Task: %s\n", task.Name)

	s.mu.Lock()
	memories := s.state.TaskMemories
	s.mu.Unlock()
	if len(memories) > 0 {
		sb.WriteString("\nContext from prior tasks:\n")
		seen := map[string]bool{}
		for _, m := range memories {
			for _, p := range m.PatternsUsed {
				if !seen[p] {
					seen[p] = true
					fmt.Fprintf(&sb, "- %s (seen in %s)\n", p, m.TaskName)
				}
			}
		}
	}

	if retry != nil {
		fmt.Fprintf(&sb, "\nThe previous attempt failed (%s): %s\n", retry.Kind, retry.Message)
		if retry.File != "" {
			fmt.Fprintf(&sb, "Location: %s:%s\n", retry.File, retry.Line)
		}
		fmt.Fprintf(&sb, "Root cause: %s\nSuggested fix: %s\n", retry.RootCause, retry.SuggestedFix)
	}

	return sb.String()
}

func (s *Scheduler) invoke(ctx context.Context, prompt string, onLine func(string)) (string, error) {
	if sb, ok := s.backend.(oracle.StreamingBackend); ok {
		return sb.StreamPrintQuiet(ctx, prompt, s.cfg.Model, onLine)
	}
	out, err := s.backend.RunPrintQuiet(ctx, prompt, s.cfg.Model)
	for _, line := range strings.Split(out, "\n") {
		if line != "" {
			onLine(line)
		}
	}
	return out, err
}

func isRateLimited(output string) bool {
	return strings.Contains(output, "429") || strings.Contains(strings.ToLower(output), "rate limit")
}

func sleepWithJitter(ctx context.Context, base time.Duration, attempt int) bool {
	delay := base * time.Duration(int64(1)<<uint(attempt))
	jitter := time.Duration(rand.Int63n(int64(base)/10 + 1))
	select {
	case <-time.After(delay + jitter):
		return true
	case <-ctx.Done():
		return false
	}
}

func slugify(name string) string {
	var sb strings.Builder
	lastDash := false
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
			lastDash = false
			continue
		}
		if !lastDash && sb.Len() > 0 {
			sb.WriteByte('-')
			lastDash = true
		}
	}
	s := strings.Trim(sb.String(), "-")
	if s == "" {
		s = "task"
	}
	if len(s) > 40 {
		s = s[:40]
	}
	return s
}
