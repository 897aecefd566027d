package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/kilroy-tickets/kilroy/internal/config"
	"github.com/kilroy-tickets/kilroy/internal/gitops"
	"github.com/kilroy-tickets/kilroy/internal/ingotlog"
	"github.com/kilroy-tickets/kilroy/internal/oracle"
	"github.com/kilroy-tickets/kilroy/internal/ticket/cache"
	"github.com/kilroy-tickets/kilroy/internal/ticket/model"
	"github.com/kilroy-tickets/kilroy/internal/ticket/provider"
	"github.com/kilroy-tickets/kilroy/internal/ticket/registry"
	"github.com/kilroy-tickets/kilroy/internal/ticket/service"
	"github.com/kilroy-tickets/kilroy/internal/workflow/events"
	"github.com/kilroy-tickets/kilroy/internal/workflow/logbuffer"
	"github.com/kilroy-tickets/kilroy/internal/workflow/runner"
	"github.com/kilroy-tickets/kilroy/internal/workflow/scheduler"
	"github.com/kilroy-tickets/kilroy/internal/workflow/state"
	"github.com/kilroy-tickets/kilroy/internal/workflow/tasklist"
)

func workflowCmd(args []string) {
	if len(args) < 1 {
		usage()
		os.Exit(1)
	}
	switch args[0] {
	case "run":
		workflowRun(args[1:])
	case "resume":
		workflowResume(args[1:])
	default:
		usage()
		os.Exit(1)
	}
}

func workflowRun(args []string) {
	if len(args) < 1 {
		usage()
		os.Exit(1)
	}
	ticketInput := args[0]
	var failFast, parallel bool
	maxParallel := 0
	for i := 1; i < len(args); i++ {
		switch args[i] {
		case "--fail-fast":
			failFast = true
		case "--parallel":
			parallel = true
		case "--max-parallel":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--max-parallel requires a value")
				os.Exit(1)
			}
			n, err := strconv.Atoi(args[i])
			if err != nil {
				exitWithErr(fmt.Errorf("--max-parallel: %w", err))
			}
			maxParallel = n
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		exitWithErr(err)
	}
	raw, err := config.Load(cwd)
	if err != nil {
		exitWithErr(err)
	}
	typed, err := config.New(raw)
	if err != nil {
		exitWithErr(err)
	}
	log := ingotlog.New(ingotlog.Options{Enabled: typed.LogEnabled(), File: typed.LogFile()})

	if !parallel {
		parallel = typed.ParallelExecutionEnabled
	}
	if maxParallel <= 0 {
		maxParallel = typed.MaxParallelTasks
	}
	if !failFast {
		failFast = typed.FailFast
	}
	workers := 1
	if parallel {
		workers = maxParallel
	}

	reg := registry.New(log)
	registry.RegisterBuiltins(reg)
	reg.SetUserInteraction(provider.NonInteractiveUI{})

	fileCache, err := cache.NewFileCache(filepath.Join(cwd, ".kilroy-cache"), 500,
		time.Duration(typed.FetchCacheDurationHours)*time.Hour)
	if err != nil {
		exitWithErr(err)
	}

	kind := oracle.Kind(typed.Backend)
	var backend oracle.Backend
	if kind != "manual" {
		backend = oracle.NewCLIBackend(kind, string(kind))
	}
	svc := service.NewForBackend(reg, fileCache, backend, kind, typed.DefaultModel, raw)
	defer svc.Close()

	bus := events.New(1024)
	r := runner.New(backend, svc, runner.NonInteractivePrompter{}, bus, runner.Config{
		WorkDir:             cwd,
		PlanningModel:       typed.PlanningModel,
		ImplementationModel: typed.ImplementationModel,
		SkipClarification:   typed.SkipClarification,
		SquashAtEnd:         typed.SquashAtEnd,
		FailFast:            failFast,
		MaxWorkers:          workers,
		CheckDisjointness:   typed.CheckFileDisjointness,
		IgnoreGlobs:         typed.DisjointnessIgnoreGlobs(),
	}, log)

	ctx, cleanup := signalCancelContext()
	defer cleanup()

	go logTaskEvents(bus)

	result, err := r.Run(ctx, ticketInput)
	if err != nil {
		exitWithErr(err)
	}
	fmt.Printf("workflow complete: %d succeeded, %d failed, %d skipped (branch %s, run dir %s)\n",
		result.Summary.Success, result.Summary.Failed, result.Summary.Skipped, result.BranchName, result.RunDir)
}

func workflowResume(args []string) {
	var tasklistPath, runDir string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--tasklist":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--tasklist requires a value")
				os.Exit(1)
			}
			tasklistPath = args[i]
		case "--run-dir", "--logs-root":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--run-dir requires a value")
				os.Exit(1)
			}
			runDir = args[i]
		}
	}
	if runDir == "" {
		usage()
		os.Exit(1)
	}
	if tasklistPath == "" {
		snap, snapErr := runner.LoadSnapshot(runDir)
		if snapErr != nil {
			exitWithErr(fmt.Errorf("no --tasklist given and no run-config.yaml snapshot found in %s: %w", runDir, snapErr))
		}
		tasklistPath = snap.TasklistPath
	}

	content, err := os.ReadFile(tasklistPath)
	if err != nil {
		exitWithErr(err)
	}
	tasks := tasklist.Parse(string(content))
	pending := tasklist.GetPendingTasks(tasks)
	if len(pending) == 0 {
		fmt.Println("nothing to resume: no pending tasks")
		return
	}

	if changed, tailErr := logbuffer.TailUnseenLogs(runDir, 15); tailErr == nil {
		for name, lines := range changed {
			fmt.Printf("--- %s (since last resume) ---\n", name)
			for _, line := range lines {
				fmt.Println(line)
			}
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		exitWithErr(err)
	}
	raw, err := config.Load(cwd)
	if err != nil {
		exitWithErr(err)
	}
	typed, err := config.New(raw)
	if err != nil {
		exitWithErr(err)
	}

	kind := oracle.Kind(typed.Backend)
	var backend oracle.Backend
	if kind != "manual" {
		backend = oracle.NewCLIBackend(kind, string(kind))
	}

	bus := events.New(1024)
	repo := gitops.New(cwd)
	branch, err := repo.CurrentBranch()
	if err != nil {
		exitWithErr(err)
	}
	baseCommit, err := repo.HeadSHA()
	if err != nil {
		exitWithErr(err)
	}
	st := state.New(model.NewGenericTicket(model.TicketInput{ID: filepath.Base(tasklistPath)}), branch, 3)
	st.BaseCommit = baseCommit
	sched := scheduler.New(backend, bus, st, repo, scheduler.Config{
		RunDir:       runDir,
		TasklistPath: tasklistPath,
		Model:        typed.ImplementationModel,
		MaxWorkers:   typed.MaxParallelTasks,
		FailFast:     typed.FailFast,

		CheckDisjointness: typed.CheckFileDisjointness,
		IgnoreGlobs:       typed.DisjointnessIgnoreGlobs(),
	})

	ctx, cleanup := signalCancelContext()
	defer cleanup()

	go logTaskEvents(bus)

	summary, err := sched.Run(ctx, pending)
	if err != nil {
		exitWithErr(err)
	}
	fmt.Printf("resume complete: %d succeeded, %d failed, %d skipped\n", summary.Success, summary.Failed, summary.Skipped)
}

// logTaskEvents drains the bus and prints one line per task lifecycle
// event. Used as the plain-output fallback when stdout isn't interactive
// enough for the full TUI (internal/tui), which a future front-end command
// can attach to the same bus instead.
func logTaskEvents(bus *events.Bus) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for range ticker.C {
		for _, ev := range bus.Drain() {
			switch ev.Kind {
			case events.TaskStarted:
				fmt.Printf("[%d] started: %s\n", ev.Index, ev.Name)
			case events.TaskFinished:
				fmt.Printf("[%d] %s (%s)\n", ev.Index, ev.Status, ev.Duration)
			}
		}
	}
}
