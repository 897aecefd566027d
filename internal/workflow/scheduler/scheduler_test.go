package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kilroy-tickets/kilroy/internal/ticket/model"
	"github.com/kilroy-tickets/kilroy/internal/workflow/events"
	"github.com/kilroy-tickets/kilroy/internal/workflow/state"
	"github.com/kilroy-tickets/kilroy/internal/workflow/tasklist"
)

// scriptedBackend returns successive canned responses per task, keyed by
// matching the task name embedded in the prompt. A response prefixed with
// "ERR:" is returned as an error (simulating the oracle CLI itself failing);
// anything else is returned as successful output text, letting rate-limit
// detection (which inspects output text regardless of error) be tested
// separately from error-retry (which is triggered by a non-nil error).
type scriptedBackend struct {
	mu        sync.Mutex
	responses map[string][]string
	calls     map[string]int
}

func newScriptedBackend() *scriptedBackend {
	return &scriptedBackend{responses: map[string][]string{}, calls: map[string]int{}}
}

func (b *scriptedBackend) Name() string { return "scripted" }

func (b *scriptedBackend) RunPrintQuiet(ctx context.Context, prompt string, model string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var task string
	for k := range b.responses {
		if strings.Contains(prompt, "Task: "+k) {
			task = k
			break
		}
	}
	n := b.calls[task]
	b.calls[task] = n + 1
	resp := b.responses[task]
	entry := resp[len(resp)-1]
	if n < len(resp) {
		entry = resp[n]
	}
	if strings.HasPrefix(entry, "ERR:") {
		msg := strings.TrimPrefix(entry, "ERR:")
		return msg, errors.New(msg)
	}
	return entry, nil
}

func newRunDir(t *testing.T) string {
	return t.TempDir()
}

func TestRun_SingleTaskSuccess(t *testing.T) {
	backend := newScriptedBackend()
	backend.responses["do the thing"] = []string{"done, all good"}

	bus := events.New(64)
	st := state.New(ticketStub(), "feature/x", 3)
	sched := New(backend, bus, st, nil, Config{RunDir: newRunDir(t), TasklistPath: t.TempDir() + "/tasks.md", MaxRetries: 2})

	tasks := []tasklist.Task{{Name: "do the thing", Category: tasklist.Fundamental, GroupTag: "auto-0"}}
	summary, err := sched.Run(context.Background(), tasks)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Success != 1 || summary.Failed != 0 {
		t.Fatalf("got %+v", summary)
	}

	evs := bus.Drain()
	var sawStart, sawFinish bool
	for _, e := range evs {
		if e.Kind == events.TaskStarted {
			sawStart = true
		}
		if e.Kind == events.TaskFinished && e.Status == events.TaskSuccess {
			sawFinish = true
		}
	}
	if !sawStart || !sawFinish {
		t.Fatalf("missing expected events: %+v", evs)
	}
}

func TestRun_RetriesThenSucceeds(t *testing.T) {
	backend := newScriptedBackend()
	backend.responses["flaky task"] = []string{"ERR:Traceback: File \"x.py\", line 10\nerror", "fixed it, done"}

	bus := events.New(64)
	st := state.New(ticketStub(), "feature/x", 3)
	sched := New(backend, bus, st, nil, Config{RunDir: newRunDir(t), TasklistPath: t.TempDir() + "/tasks.md", MaxRetries: 2})

	tasks := []tasklist.Task{{Name: "flaky task", Category: tasklist.Fundamental, GroupTag: "auto-0"}}
	summary, err := sched.Run(context.Background(), tasks)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Success != 1 {
		t.Fatalf("expected eventual success, got %+v", summary)
	}
}

func TestRun_ExhaustsRetriesAndFails(t *testing.T) {
	backend := newScriptedBackend()
	backend.responses["doomed"] = []string{"ERR:panic: boom", "ERR:panic: boom", "ERR:panic: boom"}

	bus := events.New(64)
	st := state.New(ticketStub(), "feature/x", 3)
	sched := New(backend, bus, st, nil, Config{RunDir: newRunDir(t), TasklistPath: t.TempDir() + "/tasks.md", MaxRetries: 1})

	tasks := []tasklist.Task{{Name: "doomed", Category: tasklist.Fundamental, GroupTag: "auto-0"}}
	summary, err := sched.Run(context.Background(), tasks)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Failed != 1 || summary.Success != 0 {
		t.Fatalf("got %+v", summary)
	}
}

func TestRun_IndependentWaveRunsInParallel(t *testing.T) {
	backend := newScriptedBackend()
	backend.responses["a"] = []string{"done a"}
	backend.responses["b"] = []string{"done b"}

	bus := events.New(64)
	st := state.New(ticketStub(), "feature/x", 3)
	sched := New(backend, bus, st, nil, Config{RunDir: newRunDir(t), TasklistPath: t.TempDir() + "/tasks.md", MaxRetries: 1, MaxWorkers: 2})

	tasks := []tasklist.Task{
		{Name: "a", Category: tasklist.Independent, GroupTag: "g1"},
		{Name: "b", Category: tasklist.Independent, GroupTag: "g1"},
	}
	summary, err := sched.Run(context.Background(), tasks)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Success != 2 {
		t.Fatalf("got %+v", summary)
	}
}

func TestRun_FailFastSkipsRemainingWaves(t *testing.T) {
	backend := newScriptedBackend()
	backend.responses["first"] = []string{"ERR:panic: dead"}
	backend.responses["second"] = []string{"done"}

	bus := events.New(64)
	st := state.New(ticketStub(), "feature/x", 3)
	sched := New(backend, bus, st, nil, Config{RunDir: newRunDir(t), TasklistPath: t.TempDir() + "/tasks.md", MaxRetries: 0, FailFast: true})

	tasks := []tasklist.Task{
		{Name: "first", Category: tasklist.Fundamental, GroupTag: "auto-0"},
		{Name: "second", Category: tasklist.Fundamental, GroupTag: "auto-1"},
	}
	summary, err := sched.Run(context.Background(), tasks)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Failed != 1 || summary.Skipped != 1 {
		t.Fatalf("got %+v", summary)
	}
}

// TestRun_FailFastSkipsUnstartedTasksWithinWave covers the named scenario
// (fundamental T0, then independent {T1,T2,T3} as one wave, fail_fast=true):
// the first TaskFinished{failed} inside the wave must cancel the tasks that
// have not yet started, not just subsequent whole waves. MaxWorkers: 1
// forces T1/T2/T3 to launch strictly in order so the outcome is
// deterministic: T1 fails, T2 and T3 never start.
func TestRun_FailFastSkipsUnstartedTasksWithinWave(t *testing.T) {
	backend := newScriptedBackend()
	backend.responses["t0"] = []string{"done"}
	backend.responses["t1"] = []string{"ERR:panic: dead"}
	backend.responses["t2"] = []string{"done t2"}
	backend.responses["t3"] = []string{"done t3"}

	bus := events.New(64)
	st := state.New(ticketStub(), "feature/x", 3)
	sched := New(backend, bus, st, nil, Config{
		RunDir: newRunDir(t), TasklistPath: t.TempDir() + "/tasks.md",
		MaxRetries: 0, MaxWorkers: 1, FailFast: true,
	})

	tasks := []tasklist.Task{
		{Name: "t0", Category: tasklist.Fundamental, GroupTag: "auto-0"},
		{Name: "t1", Category: tasklist.Independent, GroupTag: "g1"},
		{Name: "t2", Category: tasklist.Independent, GroupTag: "g1"},
		{Name: "t3", Category: tasklist.Independent, GroupTag: "g1"},
	}
	summary, err := sched.Run(context.Background(), tasks)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Success != 1 || summary.Failed != 1 || summary.Skipped != 2 {
		t.Fatalf("got %+v", summary)
	}

	var sawT2Started, sawT3Started bool
	for _, e := range bus.Drain() {
		if e.Kind == events.TaskStarted && (e.Name == "t2" || e.Name == "t3") {
			if e.Name == "t2" {
				sawT2Started = true
			} else {
				sawT3Started = true
			}
		}
	}
	if sawT2Started || sawT3Started {
		t.Fatal("expected t2/t3 to never start once t1 failed under fail-fast")
	}
}

func TestRun_RateLimitRetriesThenSucceeds(t *testing.T) {
	backend := newScriptedBackend()
	backend.responses["limited"] = []string{"429 Too Many Requests", "all good now"}

	bus := events.New(64)
	st := state.New(ticketStub(), "feature/x", 3)
	sched := New(backend, bus, st, nil, Config{
		RunDir: newRunDir(t), TasklistPath: t.TempDir() + "/tasks.md",
		MaxRetries: 1, BaseDelay: 5 * time.Millisecond,
	})

	tasks := []tasklist.Task{{Name: "limited", Category: tasklist.Fundamental, GroupTag: "auto-0"}}
	summary, err := sched.Run(context.Background(), tasks)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Success != 1 {
		t.Fatalf("got %+v", summary)
	}
}

func TestAnalyzeError_ClassifiesCompilerDiagnostic(t *testing.T) {
	a := AnalyzeError("main.go:10:2: undefined: foo")
	if a.Kind != "compile_error" || a.File != "main.go" || a.Line != "10" {
		t.Fatalf("got %+v", a)
	}
}

func TestAnalyzeError_ClassifiesPanic(t *testing.T) {
	a := AnalyzeError("panic: runtime error: index out of range")
	if a.Kind != "runtime_panic" {
		t.Fatalf("got %+v", a)
	}
}

func ticketStub() model.GenericTicket {
	return model.NewGenericTicket(model.TicketInput{ID: "TEST-1", Title: "test ticket"})
}
