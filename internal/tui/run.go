package tui

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/kilroy-tickets/kilroy/internal/tui/keyboard"
	"github.com/kilroy-tickets/kilroy/internal/workflow/events"
)

const refreshInterval = 100 * time.Millisecond // 10 Hz, spec.md §4.13 "Refresh loop"

const ansiClearHome = "\x1b[H\x1b[2J"

// Run drives the dashboard until the run finishes or the user quits. It
// owns the keyboard reader's lifecycle (Start on entry, Stop on exit) and
// writes successive full-screen frames to out.
func Run(ctx context.Context, out io.Writer, bus *events.Bus, taskNames []string, parallel bool) *Model {
	m := New(bus, taskNames, parallel)

	kb := keyboard.New()
	_ = kb.Start()
	defer kb.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if k, ok := kb.ReadKey(); ok {
				m.HandleKey(k)
			} else {
				time.Sleep(10 * time.Millisecond)
			}
		}
	}()

	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return m
		case <-ticker.C:
			m.Tick()
			fmt.Fprint(out, ansiClearHome)
			fmt.Fprintln(out, m.View())
			if m.Done() || m.QuitRequested() {
				return m
			}
		}
	}
}
