package main

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	orchestration "github.com/koscakluka/ema-speechbot/core"
	"github.com/muesli/reflow/wordwrap"
)

const statusPollInterval = 200 * time.Millisecond

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	captionStyle = lipgloss.NewStyle().Padding(1, 2)
	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	readyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

type captionMsg string

type typingMsg struct{}

type pollStatusMsg struct{}

// programSink relays orchestrator captions into the running program.
type programSink struct {
	mu      sync.Mutex
	program *tea.Program
}

func (s *programSink) attach(program *tea.Program) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.program = program
}

func (s *programSink) send(msg tea.Msg) {
	s.mu.Lock()
	program := s.program
	s.mu.Unlock()

	if program != nil {
		program.Send(msg)
	}
}

func (s *programSink) ShowCaption(text string) { s.send(captionMsg(text)) }

func (s *programSink) ShowTyping() { s.send(typingMsg{}) }

type controller interface {
	FocusAcquired(target string)
	FocusLost()
	Stop()
	Snapshot() orchestration.Status
}

type model struct {
	orchestrator controller
	target       string
	spinner      spinner.Model
	caption      string
	typing       bool
	status       orchestration.Status
	width        int
}

func newModel(o controller, target string) model {
	return model{
		orchestrator: o,
		target:       target,
		spinner:      spinner.New(spinner.WithSpinner(spinner.Dot)),
		width:        80,
	}
}

func pollStatus() tea.Cmd {
	return tea.Tick(statusPollInterval, func(time.Time) tea.Msg { return pollStatusMsg{} })
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, pollStatus())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "f":
			m.orchestrator.FocusAcquired(m.target)
		case "b":
			m.orchestrator.FocusLost()
		case "s":
			m.orchestrator.Stop()
		case "q", "ctrl+c":
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case captionMsg:
		m.caption = string(msg)
		m.typing = false
	case typingMsg:
		m.typing = true
	case pollStatusMsg:
		m.status = m.orchestrator.Snapshot()
		return m, pollStatus()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("speechbot"))
	b.WriteString("\n")

	caption := wordwrap.String(m.caption, max(m.width-4, 10))
	if m.typing {
		caption = m.spinner.View() + " thinking"
	}
	b.WriteString(captionStyle.Render(caption))
	b.WriteString("\n")

	b.WriteString(statusStyle.Render(fmt.Sprintf("%s  speech %s  bot %s  queued %d",
		m.status.State, flag(m.status.SpeechReady), flag(m.status.BotReady), m.status.Queued)))
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("f focus  b look away  s stop  q quit"))

	return b.String()
}

func flag(ready bool) string {
	if ready {
		return readyStyle.Render("ready")
	}
	return "waiting"
}
