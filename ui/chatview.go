package ui

import (
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rustyorb/auto-chat/config"
	"github.com/rustyorb/auto-chat/engine"
	"github.com/rustyorb/auto-chat/model"
)

type (
	eventMsg    engine.Event
	startedMsg  struct{ err error }
	injectedMsg struct{ err error }
	copiedMsg   struct{ err error }
)

// entry is one line group in the transcript pane: a committed message or a
// notice about a skipped turn or a fallback.
type entry struct {
	msg      model.Message
	notice   string
	rendered string
}

type chatView struct {
	opts    Options
	ctrl    Controller
	keys    *config.KeyBindingsConfig
	speaker map[string]int

	viewport viewport.Model
	input    textinput.Model
	// composing is the role being typed for, empty when the input is closed.
	composing model.Role

	entries []entry
	// streamFrom and streamText hold the reply being streamed, uncommitted.
	streamFrom string
	streamText string

	status   string
	turn     int
	paused   bool
	finished bool
	err      error
	flash    string
	width    int
	height   int
	ready    bool
}

func newChatView(opts Options) chatView {
	speaker := make(map[string]int, len(opts.Participants))
	for i, p := range opts.Participants {
		speaker[p.Persona] = i
	}

	input := textinput.New()
	input.CharLimit = 2000

	keys := opts.Keys
	if keys == nil {
		keys = config.DefaultKeybindings()
	}

	return chatView{
		opts:     opts,
		ctrl:     opts.Controller,
		keys:     keys,
		speaker:  speaker,
		viewport: viewport.New(0, 0),
		input:    input,
		status:   "Starting...",
	}
}

func (m chatView) Init() tea.Cmd {
	if m.opts.Start == nil {
		return nil
	}
	start := m.opts.Start
	return func() tea.Msg {
		return startedMsg{err: start()}
	}
}

func (m chatView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		// Title, footer and status bar take one line each.
		m.viewport.Width = m.width
		m.viewport.Height = max(m.height-3, 1)
		m.input.Width = max(m.width-12, 10)
		m.ready = true
		m.rerender()
		m.refresh()
		return m, nil

	case eventMsg:
		m.handleEvent(engine.Event(msg))
		m.refresh()
		return m, nil

	case startedMsg:
		if msg.err != nil {
			m.err = msg.err
			m.status = "Failed to start"
			m.finished = true
		}
		return m, nil

	case injectedMsg:
		if msg.err != nil {
			m.flash = msg.err.Error()
		}
		return m, nil

	case copiedMsg:
		if msg.err != nil {
			m.flash = "Copy failed: " + msg.err.Error()
		} else {
			m.flash = "Transcript copied to clipboard"
		}
		return m, nil

	case tea.KeyMsg:
		if m.composing != "" {
			return m.updateComposing(msg)
		}
		return m.updateKeys(msg)
	}

	return m, nil
}

// pressed reports whether msg is the key bound to action.
func (m chatView) pressed(msg tea.KeyMsg, action string) bool {
	key := msg.String()
	if key == " " {
		key = "space"
	}
	return key == m.keys.GetActionKey(action)
}

func (m chatView) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.flash = ""
	switch {
	case msg.Type == tea.KeyCtrlC, m.pressed(msg, "quit"):
		m.ctrl.Stop()
		return m, tea.Quit

	case m.pressed(msg, "pause"):
		if m.finished {
			return m, nil
		}
		ctrl := m.ctrl
		return m, func() tea.Msg {
			if ctrl.State() == engine.StatePaused {
				ctrl.Resume()
			} else {
				ctrl.Pause()
			}
			return nil
		}

	case m.pressed(msg, "narrator"):
		return m.openInput(model.RoleNarrator)

	case m.pressed(msg, "system"):
		return m.openInput(model.RoleSystem)

	case m.pressed(msg, "copy"):
		text := transcriptText(m.ctrl.Transcript().Messages)
		return m, func() tea.Msg {
			return copiedMsg{err: clipboard.WriteAll(text)}
		}

	case m.pressed(msg, "scroll_top"):
		m.viewport.GotoTop()
		return m, nil

	case m.pressed(msg, "scroll_bottom"):
		m.viewport.GotoBottom()
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m chatView) openInput(role model.Role) (tea.Model, tea.Cmd) {
	m.composing = role
	m.input.Reset()
	if role == model.RoleNarrator {
		m.input.Placeholder = "Describe the scene..."
	} else {
		m.input.Placeholder = "Instruction for every persona..."
	}
	return m, m.input.Focus()
}

func (m chatView) updateComposing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.composing = ""
		m.input.Blur()
		return m, nil

	case tea.KeyEnter:
		role, content := m.composing, m.input.Value()
		m.composing = ""
		m.input.Blur()
		m.input.Reset()
		if strings.TrimSpace(content) == "" {
			return m, nil
		}
		ctrl := m.ctrl
		return m, func() tea.Msg {
			return injectedMsg{err: ctrl.InjectMessage(role, content)}
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *chatView) handleEvent(ev engine.Event) {
	if ev.Turn > 0 {
		m.turn = ev.Turn
	}

	switch ev.Type {
	case engine.EventChunk:
		if m.streamFrom != ev.Message.SpeakerName {
			m.streamFrom = ev.Message.SpeakerName
			m.streamText = ""
		}
		m.streamText += ev.Chunk
		return

	case engine.EventMessage:
		m.clearStream()
		m.entries = append(m.entries, m.renderEntry(entry{msg: ev.Message}))

	case engine.EventTurnSkipped, engine.EventFallback:
		m.clearStream()
		m.entries = append(m.entries, entry{notice: ev.Status})

	case engine.EventPaused:
		m.paused = true
	case engine.EventResumed:
		m.paused = false

	case engine.EventError:
		m.err = ev.Err
	case engine.EventFinished:
		m.clearStream()
		m.finished = true
		m.paused = false
		if ev.Err != nil {
			m.err = ev.Err
		}
	}

	if ev.Status != "" {
		m.status = ev.Status
	}
}

func (m *chatView) clearStream() {
	m.streamFrom = ""
	m.streamText = ""
}

func (m *chatView) renderEntry(e entry) entry {
	if e.notice == "" && m.ready {
		e.rendered = renderMarkdown(e.msg.Content, m.width-2)
	}
	return e
}

// rerender redoes markdown after a resize.
func (m *chatView) rerender() {
	for i := range m.entries {
		m.entries[i] = m.renderEntry(m.entries[i])
	}
}

func (m *chatView) refresh() {
	if !m.ready {
		return
	}
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.transcriptView())
	if atBottom || m.streamFrom != "" {
		m.viewport.GotoBottom()
	}
}

func (m chatView) transcriptView() string {
	if len(m.entries) == 0 && m.streamFrom == "" {
		return DimStyle.Render("Waiting for the first turn...")
	}

	var sb strings.Builder
	for _, e := range m.entries {
		if e.notice != "" {
			sb.WriteString(DimStyle.Render("  " + e.notice))
			sb.WriteString("\n\n")
			continue
		}
		timestamp := DimStyle.Render(e.msg.Timestamp.Format("[15:04]"))
		name := speakerStyle(e.msg, m.speaker).Render(e.msg.SpeakerName)
		body := e.rendered
		if body == "" {
			body = e.msg.Content
		}
		fmt.Fprintf(&sb, "%s %s\n%s\n\n", timestamp, name, body)
	}

	if m.streamFrom != "" {
		name := speakerStyle(model.Message{SpeakerName: m.streamFrom}, m.speaker).Render(m.streamFrom)
		fmt.Fprintf(&sb, "%s %s\n%s▋\n", DimStyle.Render("[....]"), name, m.streamText)
	}
	return sb.String()
}

func (m chatView) View() string {
	if !m.ready {
		return "Loading..."
	}

	var bottom string
	switch {
	case m.composing == model.RoleNarrator:
		bottom = NarratorStyle.Render("Narrator> ") + m.input.View()
	case m.composing == model.RoleSystem:
		bottom = SystemStyle.Render("System> ") + m.input.View()
	case m.flash != "":
		bottom = DimStyle.Render(m.flash)
	default:
		pauseLabel := "Pause"
		if m.paused {
			pauseLabel = "Resume"
		}
		bottom = StatusStyle.Render(FormatFooter(
			m.keys.DisplayActionKey("pause"), pauseLabel,
			m.keys.DisplayActionKey("narrator"), "Narrator",
			m.keys.DisplayActionKey("system"), "System",
			m.keys.DisplayActionKey("copy"), "Copy",
			"↑/↓", "Scroll",
			m.keys.DisplayActionKey("quit"), "Quit",
		))
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		TitleStyle.Render(fitWidth(m.title(), m.width)),
		m.viewport.View(),
		bottom,
		m.statusLine(),
	)
}

func (m chatView) title() string {
	names := make([]string, len(m.opts.Participants))
	for i, p := range m.opts.Participants {
		names[i] = fmt.Sprintf("%s (%s:%s)", p.Persona, p.Provider, p.Model)
	}
	title := "autochat | " + strings.Join(names, " vs ")
	if m.opts.Topic != "" {
		title += " | " + m.opts.Topic
	}
	return title
}

func (m chatView) statusLine() string {
	state := fmt.Sprintf("Turn %d/%d", m.turn, m.opts.MaxTurns)
	line := state + " | " + m.status

	switch {
	case m.err != nil:
		return ErrorStyle.Render(fitWidth(line+" | "+m.err.Error(), m.width))
	case m.paused:
		return PausedStyle.Render(fitWidth("PAUSED | "+line, m.width))
	case m.finished:
		return StatusStyle.Render(fitWidth(line+" | press q to quit", m.width))
	}
	return StatusStyle.Render(fitWidth(line, m.width))
}

// transcriptText is the plain "Name: text" form used for the clipboard.
func transcriptText(messages []model.Message) string {
	var sb strings.Builder
	for _, msg := range messages {
		fmt.Fprintf(&sb, "%s: %s\n\n", msg.SpeakerName, msg.Content)
	}
	return strings.TrimRight(sb.String(), "\n")
}
