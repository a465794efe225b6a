package main

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/wasm-devhost/lifecycle"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	locationStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	readyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	pendingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD700"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

const historyLimit = 10

type devModel struct {
	mgr      *lifecycle.Manager
	location string
	spin     spinner.Model

	status  lifecycle.Status
	history []string
	lastKey string
}

type tickMsg time.Time

type reloadDoneMsg struct {
	err error
}

func newDevModel(mgr *lifecycle.Manager, location string) *devModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = pendingStyle
	return &devModel{
		mgr:      mgr,
		location: location,
		spin:     sp,
		status:   mgr.Status(),
	}
}

func tick() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *devModel) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, tick())
}

func (m *devModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = m.mgr.Release(ctx)
			return m, tea.Quit

		case "r":
			m.append(mutedStyle.Render("manual reload requested"))
			return m, func() tea.Msg {
				return reloadDoneMsg{err: m.mgr.Reload(context.Background())}
			}
		}

	case tickMsg:
		m.observe(m.mgr.Status())
		return m, tick()

	case reloadDoneMsg:
		if msg.err != nil {
			m.append(errorStyle.Render(fmt.Sprintf("reload: %v", msg.err)))
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	return m, nil
}

// observe folds a status snapshot into the history when it changes.
func (m *devModel) observe(st lifecycle.Status) {
	m.status = st
	key := fmt.Sprintf("%d/%s", st.Seq, st.State)
	if key == m.lastKey {
		return
	}
	m.lastKey = key

	switch st.State {
	case lifecycle.StateReady:
		m.append(readyStyle.Render(fmt.Sprintf("generation %d ready (%s)", st.Seq, shortID(st.Generation))))
	case lifecycle.StateFailed:
		m.append(errorStyle.Render(fmt.Sprintf("generation %d failed: %v", st.Seq, st.Err)))
	case lifecycle.StateDisposed:
		if st.Err != nil {
			m.append(errorStyle.Render(fmt.Sprintf("generation %d dispose failed: %v", st.Seq, st.Err)))
		} else {
			m.append(mutedStyle.Render(fmt.Sprintf("generation %d disposed", st.Seq)))
		}
	}
}

func (m *devModel) append(line string) {
	m.history = append(m.history, line)
	if len(m.history) > historyLimit {
		m.history = m.history[len(m.history)-historyLimit:]
	}
}

func (m *devModel) View() string {
	s := titleStyle.Render("wasm-devhost") + "\n\n"
	s += "module: " + locationStyle.Render(m.location) + "\n"

	switch m.status.State {
	case lifecycle.StateUnloaded:
		s += "status: " + mutedStyle.Render("unloaded") + "\n"
	case lifecycle.StatePending:
		s += "status: " + m.spin.View() + pendingStyle.Render(" loading") + "\n"
	case lifecycle.StateReady:
		s += "status: " + readyStyle.Render("ready") + mutedStyle.Render(" "+shortID(m.status.Generation)) + "\n"
	case lifecycle.StateFailed:
		s += "status: " + errorStyle.Render("failed") + "\n"
	case lifecycle.StateDisposed:
		s += "status: " + mutedStyle.Render("disposed") + "\n"
	}

	if len(m.history) > 0 {
		s += "\n"
		for _, line := range m.history {
			s += "  " + line + "\n"
		}
	}

	s += "\n" + mutedStyle.Render("r: reload • q: quit") + "\n"
	return s
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func runInteractive(mgr *lifecycle.Manager, location string) error {
	p := tea.NewProgram(newDevModel(mgr, location))
	_, err := p.Run()
	return err
}
