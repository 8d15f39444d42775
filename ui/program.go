// Package ui is the interactive terminal front end for a running conversation.
//
// The view never blocks on the engine: engine events arrive through
// Program.Send, and every control call that can emit an event (pause, resume,
// inject) runs as a tea.Cmd off the update loop.
package ui

import (
	"context"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"github.com/rustyorb/auto-chat/config"
	"github.com/rustyorb/auto-chat/engine"
	"github.com/rustyorb/auto-chat/model"
)

// Controller is the part of the engine the UI drives.
type Controller interface {
	Pause()
	Resume()
	Stop()
	State() engine.State
	InjectMessage(role model.Role, content string) error
	Transcript() model.Transcript
}

type Options struct {
	Topic        string
	MaxTurns     int
	Participants []model.ParticipantInfo
	Controller   Controller
	// Start launches the conversation once the program is reading events.
	Start func() error
	// Keys overrides the default key map. Nil uses the defaults.
	Keys *config.KeyBindingsConfig

	// Input and Output replace the terminal, mainly for tests. A nil Output
	// uses the alternate screen.
	Input  io.Reader
	Output io.Writer
}

type Program struct {
	tea *tea.Program
}

func New(ctx context.Context, opts Options) *Program {
	teaOpts := []tea.ProgramOption{tea.WithContext(ctx)}
	if opts.Input != nil {
		teaOpts = append(teaOpts, tea.WithInput(opts.Input))
	}
	if opts.Output != nil {
		teaOpts = append(teaOpts, tea.WithOutput(opts.Output))
	} else {
		teaOpts = append(teaOpts, tea.WithAltScreen())
	}
	return &Program{tea: tea.NewProgram(newChatView(opts), teaOpts...)}
}

// Send forwards an engine event. It may be used as an engine.Listener once
// Run has been called; after the program exits it returns immediately.
func (p *Program) Send(ev engine.Event) {
	p.tea.Send(eventMsg(ev))
}

// Run blocks until the user quits or the context is cancelled.
func (p *Program) Run() error {
	_, err := p.tea.Run()
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}
