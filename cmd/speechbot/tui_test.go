package main

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	orchestration "github.com/koscakluka/ema-speechbot/core"
)

func TestKeysPostOrchestratorIntents(t *testing.T) {
	testCases := []struct {
		key      string
		expected string
	}{
		{key: "f", expected: "focus:bot"},
		{key: "b", expected: "lost"},
		{key: "s", expected: "stop"},
	}

	for _, testCase := range testCases {
		t.Run(testCase.key, func(t *testing.T) {
			controller := &stubController{}
			m := newModel(controller, "bot")

			m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(testCase.key)})

			if len(controller.calls) != 1 || controller.calls[0] != testCase.expected {
				t.Fatalf("expected %q, got %v", testCase.expected, controller.calls)
			}
		})
	}
}

func TestQuitKeyQuits(t *testing.T) {
	m := newModel(&stubController{}, "bot")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected quit message")
	}
}

func TestCaptionReplacesTypingIndicator(t *testing.T) {
	m := newModel(&stubController{}, "bot")

	updated, _ := m.Update(typingMsg{})
	m = updated.(model)
	if !strings.Contains(m.View(), "thinking") {
		t.Fatalf("expected typing indicator in view")
	}

	updated, _ = m.Update(captionMsg("hello there"))
	m = updated.(model)
	view := m.View()
	if strings.Contains(view, "thinking") || !strings.Contains(view, "hello there") {
		t.Fatalf("expected caption to replace typing indicator, got %q", view)
	}
}

func TestStatusPollRefreshesSnapshot(t *testing.T) {
	controller := &stubController{status: orchestration.Status{State: orchestration.StateRunning, Queued: 2}}
	m := newModel(controller, "bot")

	updated, cmd := m.Update(pollStatusMsg{})
	m = updated.(model)
	if cmd == nil {
		t.Fatalf("expected the next poll to be scheduled")
	}
	if m.status.State != orchestration.StateRunning || !strings.Contains(m.View(), "queued 2") {
		t.Fatalf("expected running status in view, got %q", m.View())
	}
}

type stubController struct {
	calls  []string
	status orchestration.Status
}

func (c *stubController) FocusAcquired(target string) { c.calls = append(c.calls, "focus:"+target) }
func (c *stubController) FocusLost()                  { c.calls = append(c.calls, "lost") }
func (c *stubController) Stop()                       { c.calls = append(c.calls, "stop") }

func (c *stubController) Snapshot() orchestration.Status { return c.status }
