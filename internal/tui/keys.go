package tui

import "github.com/kilroy-tickets/kilroy/internal/tui/keyboard"

// HandleKey applies one decoded keypress to the model. Called from the
// goroutine pumping keyboard.Reader.ReadKey, never from Tick's goroutine,
// so it takes the mutex independently.
func (m *Model) HandleKey(k keyboard.Key) {
	switch k.Kind {
	case keyboard.Up:
		m.selectDelta(-1)
	case keyboard.Down:
		m.selectDelta(1)
	case keyboard.Enter:
		m.resumeFollow()
	case keyboard.Escape:
		m.quitRequested.Store(true)
	case keyboard.Rune:
		switch k.Rune {
		case 'k':
			m.selectDelta(-1)
		case 'j':
			m.selectDelta(1)
		case 'f':
			m.toggleFollow()
		case 'v':
			m.toggleVerbose()
		case 'q':
			m.quitRequested.Store(true)
		}
	}
}

func (m *Model) selectDelta(delta int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.records) == 0 {
		return
	}
	m.follow = false
	next := m.selected + delta
	if next < 0 {
		next = 0
	}
	if next >= len(m.records) {
		next = len(m.records) - 1
	}
	m.selected = next
}

// resumeFollow re-enables follow mode if more than one task is currently
// running; otherwise leaves the current selection alone (spec.md §4.13
// "Enter: resume following, but only when there's something to follow").
func (m *Model) resumeFollow() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.running) > 1 {
		m.follow = true
	}
}

func (m *Model) toggleFollow() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.follow = !m.follow
}

func (m *Model) toggleVerbose() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verbose = !m.verbose
}

// QuitRequested reports whether the user has asked to exit. Lock-free by
// design (spec.md §4.13 "Thread safety").
func (m *Model) QuitRequested() bool {
	return m.quitRequested.Load()
}

// ClearQuitRequest resets the quit flag, used by tests and by callers that
// intercept quit to confirm before actually tearing down.
func (m *Model) ClearQuitRequest() {
	m.quitRequested.Store(false)
}

// Done reports whether the run has finished (RunFinished event applied).
func (m *Model) Done() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runDone
}
