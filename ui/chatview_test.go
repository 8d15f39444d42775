package ui

import (
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-runewidth"
	"github.com/rustyorb/auto-chat/config"
	"github.com/rustyorb/auto-chat/engine"
	"github.com/rustyorb/auto-chat/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type injection struct {
	role    model.Role
	content string
}

type fakeController struct {
	mu       sync.Mutex
	state    engine.State
	calls    []string
	injected []injection
	messages []model.Message
}

func (f *fakeController) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeController) Pause() {
	f.record("pause")
	f.state = engine.StatePaused
}

func (f *fakeController) Resume() {
	f.record("resume")
	f.state = engine.StateRunning
}

func (f *fakeController) Stop() { f.record("stop") }

func (f *fakeController) State() engine.State { return f.state }

func (f *fakeController) InjectMessage(role model.Role, content string) error {
	f.injected = append(f.injected, injection{role: role, content: content})
	return nil
}

func (f *fakeController) Transcript() model.Transcript {
	return model.Transcript{Messages: f.messages}
}

func newTestView(t *testing.T) (chatView, *fakeController) {
	t.Helper()
	ctrl := &fakeController{state: engine.StateRunning}
	m := newChatView(Options{
		Topic:    "rain",
		MaxTurns: 4,
		Participants: []model.ParticipantInfo{
			{Persona: "Alice", Provider: "ollama", Model: "llama3.1"},
			{Persona: "Bob", Provider: "openai", Model: "gpt-4o-mini"},
		},
		Controller: ctrl,
	})
	m = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 24})
	return m, ctrl
}

func update(t *testing.T, m chatView, msg tea.Msg) chatView {
	t.Helper()
	next, _ := m.Update(msg)
	view, ok := next.(chatView)
	require.True(t, ok)
	return view
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func messageEvent(name string, role model.Role, content string) eventMsg {
	return eventMsg(engine.Event{
		Type:    engine.EventMessage,
		Turn:    1,
		Message: model.Message{Role: role, SpeakerName: name, Content: content, Timestamp: time.Now()},
	})
}

func TestChatViewShowsMessages(t *testing.T) {
	m, _ := newTestView(t)
	assert.Contains(t, m.transcriptView(), "Waiting for the first turn")

	m = update(t, m, messageEvent("Alice", model.RoleSpeakerA, "Hello there."))
	m = update(t, m, messageEvent(model.NarratorSpeaker, model.RoleNarrator, "Thunder rolls."))

	require.Len(t, m.entries, 2)
	view := m.transcriptView()
	assert.Contains(t, view, "Alice")
	assert.Contains(t, view, "Hello there.")
	assert.Contains(t, view, "Thunder rolls.")
	assert.Contains(t, m.View(), "autochat | Alice (ollama:llama3.1) vs Bob (openai:gpt-4o-mini) | rain")
}

func TestChatViewStreaming(t *testing.T) {
	m, _ := newTestView(t)

	for _, chunk := range []string{"Hel", "lo"} {
		m = update(t, m, eventMsg(engine.Event{Type: engine.EventChunk, Turn: 2, Chunk: chunk, Message: model.Message{SpeakerName: "Bob"}}))
	}
	assert.Equal(t, "Bob", m.streamFrom)
	assert.Equal(t, "Hello", m.streamText)
	assert.Contains(t, m.transcriptView(), "Hello▋")
	assert.Equal(t, 2, m.turn)

	m = update(t, m, messageEvent("Bob", model.RoleSpeakerB, "Hello"))
	assert.Empty(t, m.streamFrom)
	assert.NotContains(t, m.transcriptView(), "▋")
	assert.Len(t, m.entries, 1)
}

func TestChatViewNotices(t *testing.T) {
	m, _ := newTestView(t)
	m = update(t, m, eventMsg(engine.Event{Type: engine.EventTurnSkipped, Turn: 3, Status: "Skipped Bob's turn"}))
	m = update(t, m, eventMsg(engine.Event{Type: engine.EventFinished, Turn: 4, Status: "Conversation completed"}))

	assert.Contains(t, m.transcriptView(), "Skipped Bob's turn")
	assert.True(t, m.finished)
	assert.Contains(t, m.statusLine(), "press q to quit")
}

func TestChatViewPauseToggle(t *testing.T) {
	m, ctrl := newTestView(t)

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	require.NotNil(t, cmd)
	assert.Nil(t, cmd())
	assert.Equal(t, []string{"pause"}, ctrl.calls)

	m = update(t, next.(chatView), eventMsg(engine.Event{Type: engine.EventPaused, Turn: 1, Status: "Conversation paused"}))
	assert.True(t, m.paused)
	assert.Contains(t, m.View(), "Resume")
	assert.Contains(t, m.statusLine(), "PAUSED")

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	require.NotNil(t, cmd)
	cmd()
	assert.Equal(t, []string{"pause", "resume"}, ctrl.calls)
}

func TestChatViewInject(t *testing.T) {
	tests := []struct {
		key  string
		role model.Role
	}{
		{key: "n", role: model.RoleNarrator},
		{key: "s", role: model.RoleSystem},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			m, ctrl := newTestView(t)
			m = update(t, m, runes(tt.key))
			require.Equal(t, tt.role, m.composing)

			m.input.SetValue("A storm arrives.")
			next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
			require.NotNil(t, cmd)
			assert.Empty(t, next.(chatView).composing)

			assert.Equal(t, injectedMsg{}, cmd())
			assert.Equal(t, []injection{{role: tt.role, content: "A storm arrives."}}, ctrl.injected)
		})
	}

	t.Run("escape cancels", func(t *testing.T) {
		m, ctrl := newTestView(t)
		m = update(t, m, runes("n"))
		m.input.SetValue("never sent")
		m = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
		assert.Empty(t, m.composing)
		assert.Empty(t, ctrl.injected)
	})

	t.Run("blank input is ignored", func(t *testing.T) {
		m, ctrl := newTestView(t)
		m = update(t, m, runes("s"))
		m.input.SetValue("   ")
		_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		assert.Nil(t, cmd)
		assert.Empty(t, ctrl.injected)
	})

	t.Run("keys are typed while composing", func(t *testing.T) {
		m, ctrl := newTestView(t)
		m = update(t, m, runes("n"))
		m = update(t, m, runes("q"))
		assert.Equal(t, model.RoleNarrator, m.composing)
		assert.Empty(t, ctrl.calls, "q must not quit while typing")
	})
}

func TestChatViewQuit(t *testing.T) {
	m, ctrl := newTestView(t)
	_, cmd := m.Update(runes("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
	assert.Equal(t, []string{"stop"}, ctrl.calls)
}

func TestChatViewCustomKeys(t *testing.T) {
	ctrl := &fakeController{state: engine.StateRunning}
	m := newChatView(Options{
		MaxTurns:   2,
		Controller: ctrl,
		Keys:       &config.KeyBindingsConfig{Actions: map[string]string{"quit": "ctrl+q", "pause": "p"}},
	})
	m = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 24})

	_, cmd := m.Update(runes("q"))
	assert.Nil(t, cmd, "q is unbound")
	assert.Empty(t, ctrl.calls)

	_, cmd = m.Update(runes("p"))
	require.NotNil(t, cmd)
	cmd()
	assert.Equal(t, []string{"pause"}, ctrl.calls)

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyCtrlQ})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
	assert.Contains(t, m.View(), "Ctrl+Q")
}

func TestChatViewStartFailure(t *testing.T) {
	m, _ := newTestView(t)
	m = update(t, m, startedMsg{err: engine.ErrTooFewParticipants})
	assert.True(t, m.finished)
	assert.Equal(t, engine.ErrTooFewParticipants, m.err)
	assert.Contains(t, m.statusLine(), "Failed to start")
}

func TestTranscriptText(t *testing.T) {
	messages := []model.Message{
		{SpeakerName: "Alice", Content: "Hi."},
		{SpeakerName: "Bob", Content: "Hello."},
	}
	assert.Equal(t, "Alice: Hi.\n\nBob: Hello.", transcriptText(messages))
	assert.Empty(t, transcriptText(nil))
}

func TestFitWidth(t *testing.T) {
	assert.Equal(t, "short", fitWidth("short", 20))
	assert.Equal(t, "anything", fitWidth("anything", 0))

	cut := fitWidth(strings.Repeat("界", 10), 7)
	assert.LessOrEqual(t, runewidth.StringWidth(cut), 7)
	assert.True(t, strings.HasSuffix(cut, "…"))
}

func TestRenderMarkdown(t *testing.T) {
	out := renderMarkdown("I **wave** at you.", 40)
	assert.Contains(t, out, "wave")
	assert.NotContains(t, out, "**")
}
