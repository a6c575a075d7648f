package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/flowrt/flow-runtime/config"
	"github.com/flowrt/flow-runtime/dfb"
	"github.com/flowrt/flow-runtime/driver"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	funcStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type modelState int

const (
	stateSelectFunc modelState = iota
	stateRunning
	stateShowResult
)

type interactiveModel struct {
	cfg      *config.Config
	session  *driver.Session
	funcs    []*dfb.Function
	err      error
	result   string
	selected int
	state    modelState
	spin     spinner.Model
	output   viewport.Model
	ready    bool
}

func newInteractiveModel(cfg *config.Config) *interactiveModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return &interactiveModel{
		cfg:   cfg,
		state: stateSelectFunc,
		spin:  sp,
	}
}

type sessionMsg struct {
	err     error
	session *driver.Session
	funcs   []*dfb.Function
}

type runDoneMsg struct {
	err    error
	output string
}

func (m *interactiveModel) Init() tea.Cmd {
	return tea.Batch(m.openSession, m.spin.Tick)
}

func (m *interactiveModel) openSession() tea.Msg {
	s, err := driver.NewSession(context.Background(), m.cfg)
	if err != nil {
		return sessionMsg{err: err}
	}
	return sessionMsg{session: s, funcs: s.Functions()}
}

func (m *interactiveModel) runSelected() tea.Cmd {
	fn := m.funcs[m.selected]
	return func() tea.Msg {
		out, err := m.session.Run(fn.Name())
		return runDoneMsg{output: out, err: err}
	}
}

// runnable reports whether the selected function can run from the TUI:
// it must be named and take no arguments.
func runnable(fn *dfb.Function) bool {
	return fn.Name() != "" && len(fn.ArgTypes()) == 0
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.session != nil {
				m.session.Close(context.Background())
			}
			return m, tea.Quit

		case "up", "k":
			if m.state == stateSelectFunc && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateSelectFunc && m.selected < len(m.funcs)-1 {
				m.selected++
			}

		case "enter":
			switch m.state {
			case stateSelectFunc:
				if len(m.funcs) > 0 && runnable(m.funcs[m.selected]) {
					m.state = stateRunning
					return m, tea.Batch(m.runSelected(), m.spin.Tick)
				}
			case stateShowResult:
				m.state = stateSelectFunc
				m.result = ""
				m.err = nil
			}

		case "esc":
			if m.state == stateShowResult {
				m.state = stateSelectFunc
				m.result = ""
				m.err = nil
			}
		}

	case tea.WindowSizeMsg:
		m.output = viewport.New(msg.Width-2, msg.Height-8)
		m.ready = true

	case sessionMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.session = msg.session
		m.funcs = msg.funcs

	case runDoneMsg:
		m.result = msg.output
		m.err = msg.err
		m.state = stateShowResult
		if m.ready {
			m.output.SetContent(m.result)
			m.output.GotoTop()
		}

	case spinner.TickMsg:
		if m.state == stateRunning {
			var cmd tea.Cmd
			m.spin, cmd = m.spin.Update(msg)
			return m, cmd
		}
	}

	if m.state == stateShowResult && m.ready {
		var cmd tea.Cmd
		m.output, cmd = m.output.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *interactiveModel) View() string {
	if m.err != nil && m.state != stateShowResult {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}

	if m.session == nil {
		return "Loading program..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Flow Executor"))
	b.WriteString(" ")
	b.WriteString(m.cfg.Input)
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectFunc:
		if len(m.funcs) == 0 {
			b.WriteString("The program declares no functions.\n")
			b.WriteString(helpStyle.Render("q quit"))
			break
		}
		b.WriteString("Select a function to run:\n\n")
		for i, fn := range m.funcs {
			line := formatSignature(fn)
			if !runnable(fn) {
				line = dimStyle.Render(line + "  (not runnable)")
			}
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + line))
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter run • q quit"))

	case stateRunning:
		fn := m.funcs[m.selected]
		b.WriteString(m.spin.View())
		b.WriteString(" Running ")
		b.WriteString(funcStyle.Render(fn.Name()))
		b.WriteString("...")

	case stateShowResult:
		fn := m.funcs[m.selected]
		b.WriteString(fmt.Sprintf("Output of %s:\n\n", funcStyle.Render(fn.Name())))
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
			b.WriteString("\n")
		}
		if m.ready {
			b.WriteString(m.output.View())
		} else {
			b.WriteString(m.result)
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ scroll • enter continue • q quit"))
	}

	return b.String()
}

func formatSignature(fn *dfb.Function) string {
	name := fn.Name()
	if name == "" {
		name = "(anonymous)"
	}
	var args []string
	for _, t := range fn.ArgTypes() {
		args = append(args, typeStyle.Render(string(t)))
	}
	sig := funcStyle.Render(name) + "(" + strings.Join(args, ", ") + ")"
	if results := fn.ResultTypes(); len(results) > 0 {
		var rs []string
		for _, t := range results {
			rs = append(rs, typeStyle.Render(string(t)))
		}
		sig += " -> " + strings.Join(rs, ", ")
	}
	return sig
}

func runInteractive(cfg *config.Config) error {
	p := tea.NewProgram(newInteractiveModel(cfg), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
