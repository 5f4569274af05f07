package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// defaultRows is the file list height before the terminal size is known.
const defaultRows = 12

type fileItem struct {
	path     string
	status   Status
	findings int
}

type eventMsg Event
type doneMsg struct{}

type progressModel struct {
	title   string
	events  <-chan Event
	spinner spinner.Model
	bar     progress.Model

	items  []fileItem
	byPath map[string]int
	// recent holds indexes of finished items, oldest first.
	recent []int

	width int
	rows  int
	done  bool
}

// NewProgressModel returns a Bubble Tea model showing per-file analysis
// state. It quits once events is closed. Long file lists are windowed to the
// running and most recently finished files.
func NewProgressModel(title string, files []string, events <-chan Event) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = 76

	m := &progressModel{
		title:   title,
		events:  events,
		spinner: sp,
		bar:     bar,
		items:   make([]fileItem, len(files)),
		byPath:  make(map[string]int, len(files)),
		width:   80,
		rows:    defaultRows,
	}
	for i, file := range files {
		m.items[i] = fileItem{path: file}
		m.byPath[file] = i
	}
	return m
}

func (m *progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.next())
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		return m, tea.Batch(m.apply(Event(msg)), m.next())
	case doneMsg:
		m.done = true
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
			m.bar.Width = max(msg.Width-4, 10)
		}
		if msg.Height > 0 {
			m.rows = max(msg.Height-8, 3)
		}
	case spinner.TickMsg:
		if !m.done {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
	case progress.FrameMsg:
		bar, cmd := m.bar.Update(msg)
		m.bar = bar.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *progressModel) View() string {
	if len(m.items) == 0 {
		return ""
	}
	header := fmt.Sprintf("%s (%d/%d)", m.title, len(m.recent), len(m.items))
	if m.done {
		header = "done: " + header
	} else {
		header = m.spinner.View() + " " + header
	}

	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Bold(true).Render(header))
	b.WriteString("\n\n")

	visible := m.visible()
	nameWidth := max(m.width-17, 20)
	for _, i := range visible {
		item := m.items[i]
		label := statusStyle(item.status).Render(fmt.Sprintf("%12s", statusLabel(item)))
		fmt.Fprintf(&b, "  %s %s\n", label, truncate(item.path, nameWidth))
	}
	if hidden := len(m.items) - len(visible); hidden > 0 {
		fmt.Fprintf(&b, "  %12s %d more\n", "", hidden)
	}

	b.WriteString("\n")
	if m.done {
		b.WriteString(m.bar.ViewAs(1))
	} else {
		b.WriteString(m.bar.View())
	}
	b.WriteString("\n")
	if tally := m.tally(); tally != "" {
		b.WriteString(lipgloss.NewStyle().Faint(true).Render(tally))
		b.WriteString("\n")
	}
	return b.String()
}

func (m *progressModel) next() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return doneMsg{}
		}
		return eventMsg(ev)
	}
}

func (m *progressModel) apply(ev Event) tea.Cmd {
	i, ok := m.byPath[ev.File]
	if !ok {
		return nil
	}
	item := &m.items[i]
	if ev.Status.finished() && !item.status.finished() {
		m.recent = append(m.recent, i)
	}
	item.status = ev.Status
	item.findings = ev.Findings
	return m.bar.SetPercent(float64(len(m.recent)) / float64(len(m.items)))
}

// visible picks the rows to draw: every file when they fit, otherwise the
// running files, then the most recently finished, then the next queued, in
// list order.
func (m *progressModel) visible() []int {
	if len(m.items) <= m.rows {
		out := make([]int, len(m.items))
		for i := range out {
			out[i] = i
		}
		return out
	}
	picked := make(map[int]bool, m.rows)
	add := func(i int) {
		if len(picked) < m.rows {
			picked[i] = true
		}
	}
	for i, item := range m.items {
		if item.status == StatusRunning {
			add(i)
		}
	}
	for j := len(m.recent) - 1; j >= 0; j-- {
		add(m.recent[j])
	}
	for i, item := range m.items {
		if item.status == StatusQueued {
			add(i)
		}
	}
	out := make([]int, 0, len(picked))
	for i := range m.items {
		if picked[i] {
			out = append(out, i)
		}
	}
	return out
}

func (m *progressModel) tally() string {
	var clean, flagged, skipped, failed int
	for _, item := range m.items {
		switch item.status {
		case StatusDone:
			if item.findings > 0 {
				flagged++
			} else {
				clean++
			}
		case StatusSkipped:
			skipped++
		case StatusError:
			failed++
		}
	}
	var parts []string
	for _, c := range []struct {
		n     int
		label string
	}{{clean, "clean"}, {flagged, "with findings"}, {skipped, "skipped"}, {failed, "failed"}} {
		if c.n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", c.n, c.label))
		}
	}
	return strings.Join(parts, " · ")
}

func statusLabel(item fileItem) string {
	switch item.status {
	case StatusQueued:
		return "queued"
	case StatusRunning:
		return "analyzing"
	case StatusSkipped:
		return "skipped"
	case StatusError:
		return "error"
	case StatusDone:
		switch item.findings {
		case 0:
			return "clean"
		case 1:
			return "1 finding"
		default:
			return fmt.Sprintf("%d findings", item.findings)
		}
	}
	return ""
}

func statusStyle(status Status) lipgloss.Style {
	style := lipgloss.NewStyle()
	switch status {
	case StatusDone:
		return style.Foreground(lipgloss.Color("2"))
	case StatusError:
		return style.Foreground(lipgloss.Color("1"))
	case StatusRunning:
		return style.Foreground(lipgloss.Color("6"))
	case StatusSkipped:
		return style.Foreground(lipgloss.Color("3"))
	}
	return style.Faint(true)
}

func truncate(value string, width int) string {
	if width <= 0 || runewidth.StringWidth(value) <= width {
		return value
	}
	if width <= 3 {
		return runewidth.Truncate(value, width, "")
	}
	return runewidth.Truncate(value, width, "...")
}
