package tui

import (
	"testing"

	"github.com/kilroy-tickets/kilroy/internal/workflow/events"
)

func TestAutoSwitch_NextNeighborWithWrap(t *testing.T) {
	bus := events.New(16)
	m := New(bus, []string{"t0", "t1", "t2", "t3"}, true)

	for i := 0; i < 4; i++ {
		m.applyLocked(events.TaskEvent{Kind: events.TaskStarted, Index: i})
	}
	m.selected = 1

	m.applyLocked(events.TaskEvent{Kind: events.TaskFinished, Index: 1, Status: events.TaskSuccess})

	if m.selected != 2 {
		t.Fatalf("selected = %d, want 2 (next running neighbor)", m.selected)
	}
}

func TestAutoSwitch_WrapsToSmallestWhenNoneGreater(t *testing.T) {
	bus := events.New(16)
	m := New(bus, []string{"t0", "t1", "t2", "t3"}, true)

	for _, i := range []int{0, 1} {
		m.applyLocked(events.TaskEvent{Kind: events.TaskStarted, Index: i})
	}
	m.applyLocked(events.TaskEvent{Kind: events.TaskFinished, Index: 2, Status: events.TaskSuccess})
	m.applyLocked(events.TaskEvent{Kind: events.TaskFinished, Index: 3, Status: events.TaskSuccess})
	m.selected = 1

	m.applyLocked(events.TaskEvent{Kind: events.TaskFinished, Index: 1, Status: events.TaskSuccess})

	if m.selected != 0 {
		t.Fatalf("selected = %d, want 0 (wrap to smallest running)", m.selected)
	}
}

func TestAutoSwitch_NoOtherRunningLeavesSelectionUnchanged(t *testing.T) {
	bus := events.New(16)
	m := New(bus, []string{"t0", "t1"}, true)

	m.applyLocked(events.TaskEvent{Kind: events.TaskStarted, Index: 0})
	m.selected = 0

	m.applyLocked(events.TaskEvent{Kind: events.TaskFinished, Index: 0, Status: events.TaskSuccess})

	if m.selected != 0 {
		t.Fatalf("selected = %d, want unchanged 0 when nothing else is running", m.selected)
	}
}

func TestFollowMode_SelectsFirstStartedTaskWhenNoneSelected(t *testing.T) {
	bus := events.New(16)
	m := New(bus, []string{"t0", "t1"}, false)

	m.applyLocked(events.TaskEvent{Kind: events.TaskStarted, Index: 1})

	if m.selected != 1 {
		t.Fatalf("selected = %d, want 1", m.selected)
	}
}

func TestSpinnerCache_SameInstanceReusedAcrossTicks(t *testing.T) {
	bus := events.New(16)
	m := New(bus, []string{"t0"}, false)

	m.applyLocked(events.TaskEvent{Kind: events.TaskStarted, Index: 0})
	first := m.spinners[0]

	m.advanceSpinnersLocked()
	m.advanceSpinnersLocked()

	if _, ok := m.spinners[0]; !ok {
		t.Fatal("spinner should remain cached across ticks")
	}
	_ = first
}

func TestHandleKey_ArrowDisablesFollowAndMoves(t *testing.T) {
	bus := events.New(16)
	m := New(bus, []string{"t0", "t1", "t2"}, false)
	m.selected = 0

	m.selectDelta(1)

	if m.selected != 1 {
		t.Fatalf("selected = %d, want 1", m.selected)
	}
	if m.follow {
		t.Fatal("manual selection should disable follow mode")
	}
}

func TestSelectDelta_ClampsAtBounds(t *testing.T) {
	bus := events.New(16)
	m := New(bus, []string{"t0", "t1"}, false)
	m.selected = 0

	m.selectDelta(-5)
	if m.selected != 0 {
		t.Fatalf("selected = %d, want clamped to 0", m.selected)
	}

	m.selectDelta(5)
	if m.selected != 1 {
		t.Fatalf("selected = %d, want clamped to 1", m.selected)
	}
}

func TestResumeFollow_OnlyWhenMultipleRunning(t *testing.T) {
	bus := events.New(16)
	m := New(bus, []string{"t0", "t1"}, false)
	m.follow = false

	m.applyLocked(events.TaskEvent{Kind: events.TaskStarted, Index: 0})
	m.resumeFollow()
	if m.follow {
		t.Fatal("resumeFollow should not re-enable with only one task running")
	}

	m.applyLocked(events.TaskEvent{Kind: events.TaskStarted, Index: 1})
	m.resumeFollow()
	if !m.follow {
		t.Fatal("resumeFollow should re-enable once multiple tasks are running")
	}
}

func TestQuitRequested_SetAndClear(t *testing.T) {
	bus := events.New(16)
	m := New(bus, []string{"t0"}, false)

	if m.QuitRequested() {
		t.Fatal("should not be requested initially")
	}
	m.quitRequested.Store(true)
	if !m.QuitRequested() {
		t.Fatal("expected quit requested")
	}
	m.ClearQuitRequest()
	if m.QuitRequested() {
		t.Fatal("expected cleared")
	}
}
