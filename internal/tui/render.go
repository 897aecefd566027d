package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	styleHeader  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	styleFooter  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	styleSel     = lipgloss.NewStyle().Background(lipgloss.Color("237")).Bold(true)
	styleSuccess = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	styleFailed  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	styleSkipped = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	styleRunning = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	styleLog     = lipgloss.NewStyle().Foreground(lipgloss.Color("7")).PaddingLeft(2)
)

func statusGlyph(s Status) string {
	switch s {
	case StatusRunning:
		return "⟳"
	case StatusSuccess:
		return "✓"
	case StatusFailed:
		return "✗"
	case StatusSkipped:
		return "⊘"
	default:
		return "○"
	}
}

// View renders the current dashboard as a single string. Safe to call at
// any point; acquires the model's mutex for the duration of the snapshot.
func (m *Model) View() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeaderLocked(),
		m.renderTaskListLocked(),
		m.renderLogPanelLocked(),
		m.renderFooterLocked(),
	)
}

func (m *Model) renderHeaderLocked() string {
	mode := "sequential"
	if m.parallel {
		mode = "parallel"
	}
	return styleHeader.Render(fmt.Sprintf("tasks: %d/%d  mode: %s", m.successes+m.failures+m.skipped, m.total, mode))
}

func (m *Model) renderTaskListLocked() string {
	var b strings.Builder
	for i, rec := range m.records {
		glyph := m.glyphForLocked(i, rec.Status)
		dur := durationStringLocked(rec)
		line := fmt.Sprintf("%s %-40s %s", glyph, rec.Name, dur)
		switch rec.Status {
		case StatusSuccess:
			line = styleSuccess.Render(line)
		case StatusFailed:
			line = styleFailed.Render(line)
		case StatusSkipped:
			line = styleSkipped.Render(line)
		case StatusRunning:
			line = styleRunning.Render(line)
		}
		if i == m.selected {
			line = styleSel.Render(line)
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

func (m *Model) glyphForLocked(idx int, status Status) string {
	if status != StatusRunning {
		return statusGlyph(status)
	}
	sp, ok := m.spinners[idx]
	if !ok {
		return "⟳"
	}
	view := sp.View()
	if view == "" {
		return "⟳"
	}
	return view
}

func durationStringLocked(rec TaskRunRecord) string {
	switch rec.Status {
	case StatusPending:
		return ""
	case StatusRunning:
		return time.Since(rec.StartTime).Round(time.Second).String()
	default:
		if rec.EndTime.IsZero() || rec.StartTime.IsZero() {
			return ""
		}
		return rec.EndTime.Sub(rec.StartTime).Round(time.Second).String()
	}
}

func (m *Model) renderLogPanelLocked() string {
	if m.selected < 0 || m.selected >= len(m.records) {
		return ""
	}
	n := logTailNormal
	if m.verbose {
		n = logTailVerbose
	}
	rec := m.records[m.selected]
	lines := rec.tail(n)
	return styleLog.Render(strings.Join(lines, "\n"))
}

func (m *Model) renderFooterLocked() string {
	running := len(m.running)
	follow := "on"
	if !m.follow {
		follow = "off"
	}
	verbose := ""
	if m.verbose {
		verbose = " verbose"
	}
	return styleFooter.Render(fmt.Sprintf(
		"running=%d follow=%s%s  ↑/k ↓/j select  enter resume-follow  f follow  v verbose  q quit",
		running, follow, verbose,
	))
}
