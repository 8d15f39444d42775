package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/rustyorb/auto-chat/config"
	"github.com/rustyorb/auto-chat/engine"
	"github.com/rustyorb/auto-chat/model"
	"github.com/rustyorb/auto-chat/provider"
	"github.com/rustyorb/auto-chat/ui"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type chatSettings struct {
	personas     []string
	models       []string
	turns        int
	topic        string
	order        engine.TurnOrder
	streaming    bool
	interactive  bool
	historyLimit int
	delay        time.Duration
}

func newChatCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Run a conversation between personas",
		Long: `Run a conversation between two or more personas.

Each --persona is voiced by the --model at the same position, written as
provider:model, for example:

  autochat chat --persona Alice --model ollama:llama3.1 \
                --persona Bob --model openai:gpt-4o-mini --turns 10`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := a.chatSettings(cmd)
			if err != nil {
				return err
			}
			return a.runChat(cmd, settings)
		},
	}

	cmd.Flags().StringArrayP("persona", "p", nil, "Persona name (repeat for each participant)")
	cmd.Flags().StringArrayP("model", "m", nil, "provider:model for the persona at the same position")
	cmd.Flags().IntP("turns", "n", 0, "Number of turns (default from config)")
	cmd.Flags().StringP("topic", "t", "", "Conversation topic (default from config)")
	cmd.Flags().Bool("random", false, "Pick each speaker at random instead of round-robin")
	cmd.Flags().Bool("stream", false, "Stream replies as they are generated")
	cmd.Flags().BoolP("interactive", "i", false, "Open the terminal UI")
	cmd.Flags().Int("history-limit", 0, "Messages of history sent with each turn (default from config)")
	cmd.Flags().Duration("delay", 0, "Pause between turns (default from config)")

	return cmd
}

// chatSettings merges flags and AUTOCHAT_* variables over the [conversation]
// config section.
func (a *app) chatSettings(cmd *cobra.Command) (chatSettings, error) {
	conv := a.cfg.Conversation
	s := chatSettings{
		turns:        conv.MaxTurns,
		topic:        conv.Topic,
		order:        engine.TurnOrder(conv.TurnOrder),
		streaming:    conv.Streaming || a.v.GetBool("stream"),
		interactive:  a.v.GetBool("interactive"),
		historyLimit: conv.HistoryLimit,
		delay:        conv.TurnDelay,
	}

	var err error
	if s.personas, err = cmd.Flags().GetStringArray("persona"); err != nil {
		return s, err
	}
	if s.models, err = cmd.Flags().GetStringArray("model"); err != nil {
		return s, err
	}
	if a.v.IsSet("turns") {
		s.turns = a.v.GetInt("turns")
	}
	if a.v.IsSet("topic") {
		s.topic = a.v.GetString("topic")
	}
	if a.v.GetBool("random") {
		s.order = engine.Random
	}
	if a.v.IsSet("history-limit") {
		s.historyLimit = a.v.GetInt("history-limit")
	}
	if a.v.IsSet("delay") {
		s.delay = a.v.GetDuration("delay")
	}

	switch {
	case len(s.personas) < 2:
		return s, errors.New("at least two --persona flags are required")
	case len(s.models) != len(s.personas):
		return s, errors.Errorf("got %d personas but %d models; give one --model per --persona", len(s.personas), len(s.models))
	case s.turns <= 0:
		return s, errors.Errorf("--turns must be positive, got %d", s.turns)
	}
	return s, nil
}

// participants resolves persona names and model references.
func (a *app) participants(ctx context.Context, s chatSettings) ([]engine.Participant, error) {
	personas, err := a.Personas()
	if err != nil {
		return nil, err
	}
	registry := a.Registry()

	result := make([]engine.Participant, 0, len(s.personas))
	for i, name := range s.personas {
		persona, err := personas.Get(name)
		if err != nil {
			return nil, err
		}
		ref, err := provider.ParseModelRef(s.models[i])
		if err != nil {
			return nil, err
		}
		p, err := provider.Resolve(registry, ref)
		if err != nil {
			return nil, err
		}
		// Listing is advisory; an unlisted model is still tried.
		provider.CheckModel(ctx, p, ref.Model)
		result = append(result, engine.Participant{Persona: persona, Provider: p, Model: ref.Model})
	}
	return result, nil
}

func (a *app) runChat(cmd *cobra.Command, s chatSettings) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	participants, err := a.participants(ctx, s)
	if err != nil {
		return err
	}

	history, err := a.History()
	if err != nil {
		return err
	}
	snapshots, err := a.Snapshots()
	if err != nil {
		return err
	}

	opts := engine.Options{
		HistoryLimit:  s.historyLimit,
		TurnDelay:     s.delay,
		Streaming:     s.streaming,
		Registry:      a.Registry(),
		Persister:     history,
		Autosaver:     snapshots,
		AutosaveEvery: a.cfg.Conversation.AutosaveEvery,
	}

	var eng *engine.Engine
	if s.interactive {
		keys, kerr := config.LoadKeybindings(a.cfg.DataDir())
		if kerr != nil {
			return kerr
		}
		eng, err = runInteractive(ctx, opts, participants, s, keys)
	} else {
		printer := newConsolePrinter(cmd.OutOrStdout(), cmd.ErrOrStderr())
		opts.Listener = printer.Handle
		eng = engine.New(opts)
		if err = eng.Start(ctx, participants, s.turns, s.topic, s.order); err == nil {
			eng.Wait()
		}
	}
	if err != nil {
		return err
	}

	res := eng.Result()
	out := cmd.OutOrStdout()
	fmt.Fprintln(out)
	fmt.Fprintln(out, model.Summarize(eng.Messages()))
	if len(eng.Messages()) > 0 {
		fmt.Fprintf(out, "Saved conversation %s\n", eng.ID())
	}
	if res.Err != nil {
		return errors.Wrap(res.Err, "conversation failed")
	}
	return nil
}

// runInteractive drives the engine from the terminal UI. The UI and the
// engine worker run side by side; quitting the UI stops the conversation.
func runInteractive(ctx context.Context, opts engine.Options, participants []engine.Participant, s chatSettings, keys *config.KeyBindingsConfig) (*engine.Engine, error) {
	g, gctx := errgroup.WithContext(ctx)

	var prog *ui.Program
	opts.Listener = func(ev engine.Event) { prog.Send(ev) }
	eng := engine.New(opts)

	info := make([]model.ParticipantInfo, len(participants))
	for i, p := range participants {
		info[i] = model.ParticipantInfo{Persona: p.Persona.Name, Provider: p.Provider.Name(), Model: p.Model}
	}

	started := make(chan struct{})
	prog = ui.New(gctx, ui.Options{
		Topic:        s.topic,
		MaxTurns:     s.turns,
		Participants: info,
		Controller:   eng,
		Keys:         keys,
		Start: func() error {
			defer close(started)
			return eng.Start(gctx, participants, s.turns, s.topic, s.order)
		},
	})

	g.Go(func() error {
		defer eng.Stop()
		return prog.Run()
	})
	g.Go(func() error {
		select {
		case <-started:
		case <-gctx.Done():
			return nil
		}
		eng.Wait()
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, "terminal UI failed")
	}
	// The UI may have quit before the worker was started.
	eng.Wait()
	return eng, nil
}

// consolePrinter writes conversation events as "Name: text" lines.
type consolePrinter struct {
	mu       sync.Mutex
	out      io.Writer
	errOut   io.Writer
	streamed strings.Builder
	open     bool
}

func newConsolePrinter(out, errOut io.Writer) *consolePrinter {
	return &consolePrinter{out: out, errOut: errOut}
}

func (p *consolePrinter) Handle(ev engine.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch ev.Type {
	case engine.EventChunk:
		if !p.open {
			fmt.Fprintf(p.out, "%s: ", ev.Message.SpeakerName)
			p.open = true
			p.streamed.Reset()
		}
		fmt.Fprint(p.out, ev.Chunk)
		p.streamed.WriteString(ev.Chunk)

	case engine.EventMessage:
		if p.open {
			p.endStream()
			if strings.TrimSpace(p.streamed.String()) == ev.Message.Content {
				return
			}
		}
		fmt.Fprintf(p.out, "%s: %s\n", ev.Message.SpeakerName, ev.Message.Content)

	case engine.EventFallback, engine.EventTurnSkipped, engine.EventError:
		p.endStream()
		fmt.Fprintln(p.errOut, ev.Status)
	}
}

func (p *consolePrinter) endStream() {
	if p.open {
		fmt.Fprintln(p.out)
		p.open = false
	}
}
