// Package events implements the Event Bus (spec.md §4.12, C12): a bounded,
// thread-safe queue of immutable TaskEvent values, grounded on the
// teacher's Broadcaster (internal/server/sse.go) fan-out pattern, narrowed
// here to the single-consumer (TUI) case spec.md requires.
package events

import (
	"sync"
	"time"
)

// Kind is the closed TaskEvent tag set of spec.md §3.
type Kind string

const (
	RunStarted   Kind = "run_started"
	TaskStarted  Kind = "task_started"
	TaskOutput   Kind = "task_output"
	TaskFinished Kind = "task_finished"
	RunFinished  Kind = "run_finished"
)

// TaskStatus is the terminal (or running) status carried by TaskFinished.
type TaskStatus string

const (
	TaskSuccess TaskStatus = "success"
	TaskFailed  TaskStatus = "failed"
	TaskSkipped TaskStatus = "skipped"
)

// TaskEvent is the immutable tagged union of spec.md §3. Only the fields
// relevant to Kind are populated; callers switch on Kind.
type TaskEvent struct {
	Kind      Kind
	Timestamp time.Time

	Total int // RunStarted, RunFinished

	Index int    // TaskStarted, TaskOutput, TaskFinished
	Name  string // TaskStarted

	Line string // TaskOutput

	Status   TaskStatus    // TaskFinished
	Duration time.Duration // TaskFinished
	Error    string        // TaskFinished, empty when none

	Successes int // RunFinished
	Failures  int // RunFinished
	Skipped   int // RunFinished
}

// Bus is a bounded multi-producer, single-consumer queue. Post never blocks
// the caller past the channel's buffer; Drain empties whatever is currently
// queued without blocking for more.
type Bus struct {
	mu     sync.Mutex
	ch     chan TaskEvent
	closed bool
}

// New builds a Bus with the given buffer capacity. capacity<=0 defaults to
// 1024, generous enough that a scheduler wave never blocks on a slow TUI
// tick under normal operation.
func New(capacity int) *Bus {
	if capacity <= 0 {
		capacity = 1024
	}
	return &Bus{ch: make(chan TaskEvent, capacity)}
}

// Post enqueues an event. If the buffer is full, Post blocks until space is
// available or the bus is closed — producers (scheduler workers) are
// expected to keep pace with a draining consumer; there is no drop policy
// here because task lifecycle events must not be lost.
func (b *Bus) Post(ev TaskEvent) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return
	}
	b.ch <- ev
}

// Drain empties whatever events are currently queued, without blocking for
// more to arrive. Called by the TUI consumer once per refresh tick.
func (b *Bus) Drain() []TaskEvent {
	var out []TaskEvent
	for {
		select {
		case ev, ok := <-b.ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		default:
			return out
		}
	}
}

// Close signals no more events will be posted and unblocks any pending
// Drain-adjacent readers. Idempotent.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.ch)
}
