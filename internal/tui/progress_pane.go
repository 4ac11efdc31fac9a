package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/kiln/internal/events"
)

// ProgressPaneModel shows the run's target, plan and counters.
type ProgressPaneModel struct {
	target   string
	plan     []string
	counts   events.RunProgressEvent
	finished bool
	runErr   error
	duration time.Duration
	bar      progress.Model
	width    int
	height   int
	focused  bool
}

// NewProgressPaneModel creates an empty progress pane.
func NewProgressPaneModel() ProgressPaneModel {
	return ProgressPaneModel{
		bar: progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
	}
}

// Update handles messages for the progress pane.
func (m ProgressPaneModel) Update(msg tea.Msg) (ProgressPaneModel, tea.Cmd) {
	switch msg := msg.(type) {
	case events.RunStartedEvent:
		m.target = msg.Target
		m.plan = msg.Plan
		m.counts = events.RunProgressEvent{Total: len(msg.Plan), Pending: len(msg.Plan)}
	case events.RunProgressEvent:
		m.counts = msg
	case events.RunFinishedEvent:
		m.finished = true
		m.runErr = msg.Err
		m.duration = msg.Duration
	}
	return m, nil
}

// Done reports whether the run has finished.
func (m ProgressPaneModel) Done() bool { return m.finished }

// Percent returns the share of the plan that has finished.
func (m ProgressPaneModel) Percent() float64 {
	if m.counts.Total == 0 {
		return 0
	}
	done := m.counts.Completed + m.counts.Failed + m.counts.Skipped
	return float64(done) / float64(m.counts.Total)
}

// View renders the pane.
func (m ProgressPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	var b strings.Builder
	title := StyleTitle.Render("Run " + m.target)
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", lipgloss.Width(title)))
	b.WriteString("\n\n")

	c := m.counts
	fmt.Fprintf(&b, "Total:     %d\n", c.Total)
	fmt.Fprintf(&b, "Completed: %s\n", StyleStatusComplete.Render(fmt.Sprint(c.Completed)))
	fmt.Fprintf(&b, "Running:   %s\n", StyleStatusRunning.Render(fmt.Sprint(c.Running)))
	fmt.Fprintf(&b, "Skipped:   %s\n", StyleStatusSkipped.Render(fmt.Sprint(c.Skipped)))
	fmt.Fprintf(&b, "Failed:    %s\n", StyleStatusFailed.Render(fmt.Sprint(c.Failed)))
	fmt.Fprintf(&b, "Pending:   %s\n\n", StyleStatusPending.Render(fmt.Sprint(c.Pending)))

	m.bar.Width = min(m.width-6, 50)
	fmt.Fprintf(&b, "%s  %d/%d\n", m.bar.ViewAs(m.Percent()), c.Total-c.Pending-c.Running, c.Total)

	switch {
	case m.finished && m.runErr != nil:
		fmt.Fprintf(&b, "\n%s %v\n", StyleStatusFailed.Render("Failed:"), m.runErr)
	case m.finished:
		fmt.Fprintf(&b, "\n%s in %v\n", StyleStatusComplete.Render("Succeeded"), m.duration.Round(time.Millisecond))
	case len(m.plan) > 0:
		fmt.Fprintf(&b, "\nPlan: %s\n", strings.Join(m.plan, " → "))
	}

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}
	return style.Width(m.width - 2).Height(m.height - 2).Render(b.String())
}

// SetSize updates the pane dimensions.
func (m *ProgressPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// SetFocused updates the focus state.
func (m *ProgressPaneModel) SetFocused(focused bool) {
	m.focused = focused
}
