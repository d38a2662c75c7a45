package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"zetrace/internal/stress"
)

type progressModel struct {
	title      string
	events     <-chan stress.Event
	spinner    spinner.Model
	prog       progress.Model
	items      []workerItem
	total      int
	stageLabel string
	width      int
	done       bool
}

type workerItem struct {
	name   string
	done   int
	status stress.Status
}

type eventMsg stress.Event
type doneMsg struct{}

// NewProgressModel returns a Bubble Tea model that renders stress progress
// for workers issuing callsPerWorker calls each. It quits when events is
// closed.
func NewProgressModel(title string, workers, callsPerWorker int, events <-chan stress.Event) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 76

	items := make([]workerItem, workers)
	for i := range items {
		items[i] = workerItem{name: fmt.Sprintf("worker %d", i)}
	}
	return &progressModel{
		title:   title,
		events:  events,
		spinner: sp,
		prog:    prog,
		items:   items,
		total:   callsPerWorker,
		width:   80,
	}
}

func (m *progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listenForEvent())
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		cmd := m.applyEvent(stress.Event(msg))
		return m, tea.Batch(cmd, m.listenForEvent())
	case doneMsg:
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
			m.prog.Width = msg.Width - 4
		}
		return m, nil
	case progress.FrameMsg:
		progressModel, cmd := m.prog.Update(msg)
		m.prog = progressModel.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *progressModel) View() string {
	if len(m.items) == 0 {
		return ""
	}
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	header := m.title
	if m.stageLabel != "" {
		header = fmt.Sprintf("%s (%s)", header, m.stageLabel)
	}
	if m.done {
		header = fmt.Sprintf("done: %s", header)
	} else {
		header = fmt.Sprintf("%s %s", m.spinner.View(), header)
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n\n")

	statusWidth := 12
	nameWidth := max(m.width-statusWidth-4, 20)

	for _, item := range m.items {
		label := statusLabel(item.status)
		statusStyled := styleStatus(item.status).Render(fmt.Sprintf("%12s", label))
		line := fmt.Sprintf("%s  %d/%d", item.name, item.done, m.total)
		b.WriteString("  " + statusStyled + " " + truncate(line, nameWidth) + "\n")
	}

	b.WriteString("\n")
	if m.done {
		b.WriteString(m.prog.ViewAs(1.0))
	} else {
		b.WriteString(m.prog.View())
	}
	b.WriteString("\n")
	return b.String()
}

func (m *progressModel) listenForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return doneMsg{}
		}
		return eventMsg(ev)
	}
}

func (m *progressModel) applyEvent(ev stress.Event) tea.Cmd {
	if ev.Worker == stress.ControllerWorker {
		if ev.Note != "" {
			m.stageLabel = ev.Note
		}
		return nil
	}
	if ev.Worker < 0 || ev.Worker >= len(m.items) {
		return nil
	}
	item := &m.items[ev.Worker]
	item.status = ev.Status
	item.done = ev.Done
	return m.prog.SetPercent(m.fraction())
}

func (m *progressModel) fraction() float64 {
	if len(m.items) == 0 {
		return 0
	}
	sum := 0.0
	for _, item := range m.items {
		switch {
		case item.status == stress.StatusDone || item.status == stress.StatusError:
			sum += 1.0
		case m.total > 0:
			sum += min(float64(item.done)/float64(m.total), 1.0)
		}
	}
	return sum / float64(len(m.items))
}

func statusLabel(s stress.Status) string {
	switch s {
	case stress.StatusRunning:
		return "running"
	case stress.StatusDone:
		return "done"
	case stress.StatusError:
		return "error"
	default:
		return "queued"
	}
}

func styleStatus(s stress.Status) lipgloss.Style {
	switch s {
	case stress.StatusDone:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	case stress.StatusError:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	case stress.StatusRunning:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	}
}

func truncate(value string, width int) string {
	if width <= 0 {
		return value
	}
	if runewidth.StringWidth(value) <= width {
		return value
	}
	if width <= 3 {
		return runewidth.Truncate(value, width, "")
	}
	return runewidth.Truncate(value, width, "...")
}
