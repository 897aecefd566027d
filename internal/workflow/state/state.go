// Package state implements Workflow State (spec.md §4.8, C8): the shared,
// single-owner record threaded through the three workflow phases.
package state

import (
	"fmt"

	"github.com/kilroy-tickets/kilroy/internal/ticket/model"
)

// Step is the workflow's three-phase position.
type Step int

const (
	StepPlan     Step = 1
	StepTasklist Step = 2
	StepExecute  Step = 3
)

// TaskMemory captures what a completed task did, consulted when prompting
// later tasks for cross-task pattern context (spec.md §4.10).
type TaskMemory struct {
	TaskName     string
	FilesModified []string
	PatternsUsed  []string
	KeyDecisions  []string
	TestCommands  []string
}

// WorkflowState is the plain record of spec.md §3. This type does no
// locking; the scheduler serializes its writes from parallel workers with
// its own mutex (see internal/workflow/scheduler/scheduler.go).
type WorkflowState struct {
	Ticket                model.GenericTicket
	BranchName            string
	BaseCommit            string
	PlanningModel         string
	ImplementationModel   string
	SkipClarification     bool
	SquashAtEnd           bool
	FailFast              bool
	UserContext           string
	PlanPath              string
	TasklistPath          string
	CompletedTasks        []string
	CheckpointCommits     []string
	CurrentStep           Step
	RetryCount            int
	MaxRetries            int
	TaskMemories          []TaskMemory
}

// New builds a fresh WorkflowState at Step 1 with zeroed counters.
func New(ticket model.GenericTicket, branchName string, maxRetries int) *WorkflowState {
	return &WorkflowState{
		Ticket:      ticket,
		BranchName:  branchName,
		CurrentStep: StepPlan,
		MaxRetries:  maxRetries,
	}
}

// MarkTaskComplete appends name to CompletedTasks iff not already present
// (idempotent append).
func (s *WorkflowState) MarkTaskComplete(name string) {
	for _, n := range s.CompletedTasks {
		if n == name {
			return
		}
	}
	s.CompletedTasks = append(s.CompletedTasks, name)
}

// AddCheckpoint appends a commit hash to the checkpoint log. Plain append;
// no dedup (distinct commits are never equal).
func (s *WorkflowState) AddCheckpoint(hash string) {
	s.CheckpointCommits = append(s.CheckpointCommits, hash)
}

// IncrementRetries increments the retry counter and reports whether it is
// still under MaxRetries.
func (s *WorkflowState) IncrementRetries() bool {
	s.RetryCount++
	return s.RetryCount < s.MaxRetries
}

// ResetRetries zeroes the retry counter, called between tasks.
func (s *WorkflowState) ResetRetries() {
	s.RetryCount = 0
}

// AddTaskMemory appends a captured TaskMemory. Monotonic; never rewritten.
func (s *WorkflowState) AddTaskMemory(m TaskMemory) {
	s.TaskMemories = append(s.TaskMemories, m)
}

// Advance moves CurrentStep forward, enforcing the monotonic-non-decreasing
// invariant of spec.md §3.
func (s *WorkflowState) Advance(to Step) error {
	if to < s.CurrentStep {
		return fmt.Errorf("workflow step cannot move backward: %d -> %d", s.CurrentStep, to)
	}
	s.CurrentStep = to
	return nil
}

func (s *WorkflowState) GetPlanPath() string     { return s.PlanPath }
func (s *WorkflowState) GetTasklistPath() string { return s.TasklistPath }
