// Package tui implements the Event-Driven TUI Renderer (spec.md §4.13,
// C13): a Bubble Tea-style model fed by the Event Bus on a fixed-cadence
// refresh loop, grounded on the teacher's Elm-architecture chat UI
// (cmd/alex/tui_bubbletea.go's bubbleChatUI) narrowed to the task-dashboard
// shape this system needs, with bubbles/spinner supplying per-task
// animation and the critical spinner-instance-cache invariant of spec.md §9.
package tui

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/spinner"

	"github.com/kilroy-tickets/kilroy/internal/workflow/events"
)

// Status is a task run record's lifecycle state for rendering.
type Status int

const (
	StatusPending Status = iota
	StatusRunning
	StatusSuccess
	StatusFailed
	StatusSkipped
)

const (
	logTailNormal  = 15
	logTailVerbose = 60
	maxBufferedLog = 500
)

// TaskRunRecord is one row of the task list panel.
type TaskRunRecord struct {
	Name      string
	Status    Status
	StartTime time.Time
	EndTime   time.Time
	Error     string
	Lines     []string
}

func (r *TaskRunRecord) appendLine(line string) {
	r.Lines = append(r.Lines, line)
	if len(r.Lines) > maxBufferedLog {
		r.Lines = r.Lines[len(r.Lines)-maxBufferedLog:]
	}
}

func (r *TaskRunRecord) tail(n int) []string {
	if n <= 0 || n >= len(r.Lines) {
		out := make([]string, len(r.Lines))
		copy(out, r.Lines)
		return out
	}
	out := make([]string, n)
	copy(out, r.Lines[len(r.Lines)-n:])
	return out
}

// Model owns the dashboard's full render state. A single mutex guards all
// fields except quitRequested, which is atomic (spec.md §4.13 "Thread
// safety").
type Model struct {
	mu sync.Mutex

	bus      *events.Bus
	records  []TaskRunRecord
	selected int
	follow   bool
	verbose  bool
	parallel bool
	running  map[int]bool
	spinners map[int]spinner.Model

	total      int
	successes  int
	failures   int
	skipped    int
	runStarted bool
	runDone    bool

	quitRequested atomic.Bool
}

// New builds a Model seeded with one pending record per task name.
func New(bus *events.Bus, taskNames []string, parallel bool) *Model {
	records := make([]TaskRunRecord, len(taskNames))
	for i, name := range taskNames {
		records[i] = TaskRunRecord{Name: name, Status: StatusPending}
	}
	return &Model{
		bus:      bus,
		records:  records,
		follow:   true,
		parallel: parallel,
		running:  map[int]bool{},
		spinners: map[int]spinner.Model{},
	}
}

// Tick applies every currently-queued event then returns. Intended to be
// called by the owning loop at a fixed cadence (target 10 Hz, spec.md
// §4.13 "Refresh loop").
func (m *Model) Tick() {
	evs := m.bus.Drain()
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ev := range evs {
		m.applyLocked(ev)
	}
	m.advanceSpinnersLocked()
}

func (m *Model) applyLocked(ev events.TaskEvent) {
	switch ev.Kind {
	case events.RunStarted:
		m.runStarted = true
		m.total = ev.Total
	case events.TaskStarted:
		if ev.Index < 0 || ev.Index >= len(m.records) {
			return
		}
		rec := &m.records[ev.Index]
		rec.Status = StatusRunning
		rec.StartTime = ev.Timestamp
		m.running[ev.Index] = true
		m.spinners[ev.Index] = newSpinner()
		if m.follow && !m.hasSelectedRunningLocked() {
			m.selected = ev.Index
		}
	case events.TaskOutput:
		if ev.Index < 0 || ev.Index >= len(m.records) {
			return
		}
		m.records[ev.Index].appendLine(ev.Line)
	case events.TaskFinished:
		if ev.Index < 0 || ev.Index >= len(m.records) {
			return
		}
		rec := &m.records[ev.Index]
		rec.Status = statusFromEvent(ev.Status)
		rec.EndTime = ev.Timestamp
		rec.Error = ev.Error
		delete(m.spinners, ev.Index)
		delete(m.running, ev.Index)
		if m.follow && m.selected == ev.Index {
			m.autoSwitchLocked(ev.Index)
		}
	case events.RunFinished:
		m.runDone = true
		m.successes = ev.Successes
		m.failures = ev.Failures
		m.skipped = ev.Skipped
	}
}

func statusFromEvent(s events.TaskStatus) Status {
	switch s {
	case events.TaskSuccess:
		return StatusSuccess
	case events.TaskFailed:
		return StatusFailed
	case events.TaskSkipped:
		return StatusSkipped
	default:
		return StatusPending
	}
}

func (m *Model) hasSelectedRunningLocked() bool {
	return m.running[m.selected]
}

// autoSwitchLocked implements the "next neighbor with wrap" rule of
// spec.md §4.13: among still-running tasks, pick the smallest index
// strictly greater than finishedIdx, wrapping to the smallest running
// index if none is greater. A no-op when nothing else is running.
func (m *Model) autoSwitchLocked(finishedIdx int) {
	if len(m.running) == 0 {
		return
	}
	best := -1
	smallest := -1
	for idx := range m.running {
		if smallest == -1 || idx < smallest {
			smallest = idx
		}
		if idx > finishedIdx && (best == -1 || idx < best) {
			best = idx
		}
	}
	if best != -1 {
		m.selected = best
		return
	}
	m.selected = smallest
}

func newSpinner() spinner.Model {
	return spinner.New(spinner.WithSpinner(spinner.Dot))
}

func (m *Model) advanceSpinnersLocked() {
	for i, sp := range m.spinners {
		next, _ := sp.Update(spinner.TickMsg{Time: time.Now()})
		m.spinners[i] = next
	}
}
