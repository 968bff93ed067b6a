package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/plugin-tracker/dispatch"
	"github.com/wippyai/plugin-tracker/tracker"
)

const maxLogLines = 12

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	eventStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// eventLog collects tracker events. Events arrive on the queue worker.
type eventLog struct {
	lines []string
	mu    sync.Mutex
}

func (l *eventLog) OnTrackerEvent(e tracker.Event) {
	var target string
	switch {
	case e.Resource != 0:
		target = fmt.Sprintf("r%d", e.Resource)
	case e.Var != 0:
		target = fmt.Sprintf("v%d", e.Var)
	case e.Instance != 0:
		target = fmt.Sprintf("i%d", e.Instance)
	case e.Module != 0:
		target = fmt.Sprintf("m%d", e.Module)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprintf("%-24s %s", e.Type, target))
	if len(l.lines) > maxLogLines {
		l.lines = l.lines[len(l.lines)-maxLogLines:]
	}
}

func (l *eventLog) tail() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.lines...)
}

type interactiveModel struct {
	err     error
	session *session
	events  *eventLog
	result  string
	stats   tracker.Stats
	input   textinput.Model
	table   table.Model
}

type commandResultMsg struct {
	err    error
	result string
	rows   []instanceRow
	stats  tracker.Stats
}

func newInteractiveModel(q *dispatch.Queue, events *eventLog) *interactiveModel {
	ti := textinput.New()
	ti.Placeholder = "module"
	ti.Prompt = "> "
	ti.Width = 50
	ti.Focus()

	tbl := table.New(
		table.WithColumns([]table.Column{
			{Title: "Instance", Width: 9},
			{Title: "Module", Width: 7},
			{Title: "State", Width: 8},
			{Title: "Resources", Width: 10},
			{Title: "Vars", Width: 5},
		}),
		table.WithHeight(8),
	)

	return &interactiveModel{
		session: newSession(q),
		events:  events,
		input:   ti,
		table:   tbl,
	}
}

func (m *interactiveModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.run(""))
}

// run executes line and refreshes the table.
func (m *interactiveModel) run(line string) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		result, err := m.session.execute(ctx, line)
		rows, stats, snapErr := m.session.snapshot(ctx)
		if err == nil {
			err = snapErr
		}
		return commandResultMsg{result: result, err: err, rows: rows, stats: stats}
	}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit

		case "enter":
			line := strings.TrimSpace(m.input.Value())
			m.input.SetValue("")
			if line == "quit" || line == "exit" {
				return m, tea.Quit
			}
			return m, m.run(line)
		}

	case commandResultMsg:
		m.result = msg.result
		m.err = msg.err
		m.stats = msg.stats
		m.table.SetRows(tableRows(msg.rows))
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func tableRows(rows []instanceRow) []table.Row {
	out := make([]table.Row, len(rows))
	for i, r := range rows {
		out[i] = table.Row{
			fmt.Sprintf("i%d", r.instance),
			fmt.Sprintf("m%d", r.module),
			r.state,
			strconv.Itoa(r.resources),
			strconv.Itoa(r.vars),
		}
	}
	return out
}

func (m *interactiveModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Tracker"))
	fmt.Fprintf(&b, " modules=%d instances=%d resources=%d vars=%d bridges=%d\n\n",
		m.stats.Modules, m.stats.Instances, m.stats.Resources, m.stats.Vars, m.stats.Bridges)

	b.WriteString(m.table.View())
	b.WriteString("\n\n")

	for _, line := range m.events.tail() {
		b.WriteString(eventStyle.Render(line))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if m.err != nil {
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
	} else if m.result != "" {
		b.WriteString(resultStyle.Render(m.result))
	}
	b.WriteString("\n")

	b.WriteString(m.input.View())
	b.WriteString("\n\n")
	b.WriteString(helpStyle.Render(m.session.usage() + " • esc quit"))

	return b.String()
}

func runInteractive(ctx context.Context, opts tracker.Options) error {
	events := &eventLog{}
	opts.Observers = append(opts.Observers, events)

	q := dispatch.New(tracker.New(opts), dispatch.Options{Logger: opts.Logger})
	q.Start(ctx)
	defer q.Close()

	p := tea.NewProgram(newInteractiveModel(q, events), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
