package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/kiln/internal/events"
)

const listWidth = 28

// TaskState is what the pane knows about one task.
type TaskState struct {
	ID       string
	Name     string
	Status   string // "running", "completed", "delegated", "skipped", "failed"
	Output   []string
	Started  time.Time
	Duration time.Duration
}

// TaskPaneModel lists tasks as they start and shows the selected task's output.
type TaskPaneModel struct {
	tasks       map[string]*TaskState
	order       []string
	selectedIdx int
	follow      bool // Selection tracks the newest task until the user moves it
	viewport    viewport.Model
	width       int
	height      int
	focused     bool
	updateTag   int
}

// NewTaskPaneModel creates an empty task pane.
func NewTaskPaneModel() TaskPaneModel {
	return TaskPaneModel{
		tasks:    make(map[string]*TaskState),
		follow:   true,
		viewport: viewport.New(0, 0),
	}
}

// tickMsg debounces viewport refreshes while output streams in.
type tickMsg struct {
	tag int
}

// Update handles messages for the task pane.
func (m TaskPaneModel) Update(msg tea.Msg) (TaskPaneModel, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if !m.focused {
			break
		}
		switch msg.String() {
		case KeyJ, KeyDown:
			if m.selectedIdx < len(m.order)-1 {
				m.selectedIdx++
				m.follow = m.selectedIdx == len(m.order)-1
				m.updateViewportContent()
			}
		case KeyK, KeyUp:
			if m.selectedIdx > 0 {
				m.selectedIdx--
				m.follow = false
				m.updateViewportContent()
			}
		default:
			m.viewport, cmd = m.viewport.Update(msg)
		}

	case events.TaskStartedEvent:
		if _, exists := m.tasks[msg.ID]; !exists {
			m.tasks[msg.ID] = &TaskState{
				ID:      msg.ID,
				Name:    msg.Name,
				Status:  "running",
				Started: msg.Timestamp,
			}
			m.order = append(m.order, msg.ID)
			if m.follow {
				m.selectedIdx = len(m.order) - 1
				m.updateViewportContent()
			}
		}

	case events.TaskOutputEvent:
		if task, exists := m.tasks[msg.ID]; exists {
			task.Output = append(task.Output, msg.Line)
			if m.SelectedID() == msg.ID {
				m.updateTag++
				tag := m.updateTag
				return m, tea.Tick(50*time.Millisecond, func(time.Time) tea.Msg {
					return tickMsg{tag: tag}
				})
			}
		}

	case events.TaskCompletedEvent:
		status, note := "completed", fmt.Sprintf("[completed in %v]", msg.Duration.Round(time.Millisecond))
		if msg.Delegated {
			status, note = "delegated", "[no actions]"
		}
		m.finish(msg.ID, status, msg.Duration, note)

	case events.TaskSkippedEvent:
		m.ensure(msg.ID)
		m.finish(msg.ID, "skipped", 0, "[skipped: "+msg.Reason+"]")

	case events.TaskFailedEvent:
		note := fmt.Sprintf("[failed: %v]", msg.Err)
		if msg.Continued {
			note += " (continuing)"
		}
		m.finish(msg.ID, "failed", msg.Duration, note)

	case tickMsg:
		if msg.tag == m.updateTag {
			m.updateViewportContent()
		}
	}

	return m, cmd
}

// ensure adds a task that finished without a start event.
func (m *TaskPaneModel) ensure(id string) {
	if _, exists := m.tasks[id]; exists {
		return
	}
	m.tasks[id] = &TaskState{ID: id, Name: id}
	m.order = append(m.order, id)
	if m.follow {
		m.selectedIdx = len(m.order) - 1
	}
}

func (m *TaskPaneModel) finish(id, status string, d time.Duration, note string) {
	task, exists := m.tasks[id]
	if !exists {
		return
	}
	task.Status = status
	task.Duration = d
	task.Output = append(task.Output, "", note)
	if m.SelectedID() == id {
		m.updateViewportContent()
	}
}

// Task returns the state of a task seen by the pane.
func (m TaskPaneModel) Task(id string) (TaskState, bool) {
	task, ok := m.tasks[id]
	if !ok {
		return TaskState{}, false
	}
	return *task, true
}

// View renders the pane.
func (m TaskPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	content := lipgloss.JoinHorizontal(
		lipgloss.Top,
		m.renderList(),
		lipgloss.NewStyle().
			Width(m.width-listWidth-4).
			Height(m.height-2).
			Render(m.viewport.View()),
	)

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}
	return style.Width(m.width - 2).Height(m.height - 2).Render(content)
}

func (m TaskPaneModel) renderList() string {
	var b strings.Builder

	title := StyleTitle.Render("Tasks")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", min(listWidth, lipgloss.Width(title))))
	b.WriteString("\n\n")

	if len(m.order) == 0 {
		b.WriteString(StyleStatusPending.Render("Waiting..."))
	}
	for i, id := range m.order {
		task := m.tasks[id]
		name := task.Name
		if len(name) > listWidth-4 {
			name = name[:listWidth-7] + "..."
		}
		line := StatusIcon(task.Status) + " " + name
		if i == m.selectedIdx {
			line = StyleSelected.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	return lipgloss.NewStyle().Width(listWidth).Height(m.height - 2).Render(b.String())
}

// StatusIcon returns a styled indicator for a task status.
func StatusIcon(status string) string {
	switch status {
	case "running":
		return StyleStatusRunning.Render("●")
	case "completed", "delegated":
		return StyleStatusComplete.Render("✓")
	case "skipped":
		return StyleStatusSkipped.Render("»")
	case "failed":
		return StyleStatusFailed.Render("✗")
	default:
		return StyleStatusPending.Render("○")
	}
}

// SelectedID returns the id of the selected task, or "".
func (m TaskPaneModel) SelectedID() string {
	if m.selectedIdx >= 0 && m.selectedIdx < len(m.order) {
		return m.order[m.selectedIdx]
	}
	return ""
}

func (m *TaskPaneModel) updateViewportContent() {
	task, ok := m.tasks[m.SelectedID()]
	if !ok {
		m.viewport.SetContent("Waiting for tasks...")
		return
	}
	m.viewport.SetContent(strings.Join(task.Output, "\n"))
	m.viewport.GotoBottom()
}

func (m *TaskPaneModel) resizeViewport() {
	m.viewport.Width = max(m.width-listWidth-4, 10)
	m.viewport.Height = max(m.height-4, 5)
}

// SetSize updates the pane dimensions.
func (m *TaskPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.resizeViewport()
}

// SetFocused updates the focus state.
func (m *TaskPaneModel) SetFocused(focused bool) {
	m.focused = focused
}
