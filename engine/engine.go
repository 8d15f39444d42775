// Package engine runs turn-based conversations between personas.
//
// An Engine is a single-use state machine:
//
//	idle -> running <-> paused -> stopping -> stopped
//
// Start launches one worker goroutine that owns the turn loop. The worker is
// the only writer of generated messages; callers read through Messages and
// InFlight and steer the run with Pause, Resume, Stop and InjectMessage. Every
// method is safe for concurrent use.
//
// Per-turn failures are dispatched on the model error taxonomy: configuration
// errors end the conversation, request and response-format errors try the
// persona's fallback model once and otherwise skip the turn, anything else
// ends the conversation.
package engine

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/rustyorb/auto-chat/model"
)

var (
	ErrNotIdle             = errors.New("engine has already been started")
	ErrTooFewParticipants  = errors.New("at least two participants are required")
	ErrDuplicatePersona    = errors.New("participants must have distinct persona names")
	ErrNilProvider         = errors.New("participant has no provider")
	ErrInvalidMaxTurns     = errors.New("max turns must be positive")
	ErrUnknownTurnOrder    = errors.New("unknown turn order")
	ErrInvalidInjectedRole = errors.New("only system and narrator messages can be injected")
)

const (
	DefaultHistoryLimit = 20
	DefaultPollInterval = 100 * time.Millisecond
)

type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StatePaused   State = "paused"
	StateStopping State = "stopping"
	StateStopped  State = "stopped"
)

// TurnOrder picks the speaker for each turn.
type TurnOrder string

const (
	RoundRobin TurnOrder = "round-robin"
	Random     TurnOrder = "random"
)

// Participant is one persona bound to the provider and model that voice it.
// An empty Model keeps whatever the provider has selected.
type Participant struct {
	Persona  model.Persona
	Provider model.Provider
	Model    string
}

// Persister receives the final transcript when a conversation ends.
type Persister interface {
	SaveConversation(ctx context.Context, t model.Transcript) error
}

// Autosaver receives periodic snapshots while a conversation runs.
type Autosaver interface {
	SaveSnapshot(t model.Transcript) error
}

type Options struct {
	// HistoryLimit is the number of trailing messages sent as context.
	HistoryLimit int
	// TurnDelay paces accepted turns. Zero disables pacing.
	TurnDelay time.Duration
	// PollInterval is how often a paused worker re-checks its state.
	PollInterval time.Duration
	Streaming    bool

	// Registry resolves persona fallback providers by id.
	Registry map[string]model.Provider

	Listener      Listener
	Persister     Persister
	Autosaver     Autosaver
	AutosaveEvery int

	// Rand drives the random turn order. Nil uses the global source.
	Rand *rand.Rand
}

// Result is the outcome of a finished conversation.
type Result struct {
	Status model.ConversationStatus
	Err    error
}

type Engine struct {
	opts Options

	mu           sync.Mutex
	state        State
	id           string
	participants []Participant
	info         []model.ParticipantInfo
	maxTurns     int
	topic        string
	order        TurnOrder
	startedAt    time.Time
	endedAt      time.Time
	messages     []model.Message
	inFlight     *model.Message
	turnIndex    int
	result       Result
	cancel       context.CancelFunc
	done         chan struct{}
}

func New(opts Options) *Engine {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = DefaultHistoryLimit
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.TurnDelay < 0 {
		opts.TurnDelay = 0
	}
	return &Engine{opts: opts, state: StateIdle}
}

func validateParticipants(participants []Participant) error {
	if len(participants) < 2 {
		return ErrTooFewParticipants
	}
	seen := make(map[string]bool, len(participants))
	for i, p := range participants {
		if p.Provider == nil {
			return errors.Wrapf(ErrNilProvider, "participant %d (%s)", i+1, p.Persona.Name)
		}
		if err := p.Persona.Validate(); err != nil {
			return errors.Wrapf(err, "participant %d", i+1)
		}
		key := strings.ToLower(p.Persona.Name)
		if seen[key] {
			return errors.Wrapf(ErrDuplicatePersona, "%q appears twice", p.Persona.Name)
		}
		seen[key] = true
	}
	return nil
}

// Start validates the participants and launches the turn loop. Cancelling ctx
// stops the conversation like Stop does.
func (e *Engine) Start(ctx context.Context, participants []Participant, maxTurns int, topic string, order TurnOrder) error {
	if err := validateParticipants(participants); err != nil {
		return err
	}
	if maxTurns <= 0 {
		return ErrInvalidMaxTurns
	}
	switch order {
	case "":
		order = RoundRobin
	case RoundRobin, Random:
	default:
		return errors.Wrapf(ErrUnknownTurnOrder, "%q", order)
	}

	e.mu.Lock()
	if e.state != StateIdle {
		e.mu.Unlock()
		return ErrNotIdle
	}

	runCtx, cancel := context.WithCancel(ctx)
	e.id = uuid.NewString()
	e.participants = append([]Participant(nil), participants...)
	e.info = make([]model.ParticipantInfo, len(participants))
	for i, p := range participants {
		modelName := p.Model
		if modelName == "" {
			modelName = p.Provider.GetModel()
		}
		e.info[i] = model.ParticipantInfo{Persona: p.Persona.Name, Provider: p.Provider.Name(), Model: modelName}
	}
	e.maxTurns = maxTurns
	e.topic = topic
	e.order = order
	e.startedAt = time.Now()
	e.messages = nil
	e.turnIndex = 0
	e.state = StateRunning
	e.cancel = cancel
	e.done = make(chan struct{})
	e.mu.Unlock()

	log.Info().
		Str("conversation", e.id).
		Str("topic", topic).
		Int("max_turns", maxTurns).
		Str("order", string(order)).
		Int("participants", len(participants)).
		Msg("Starting conversation")
	for _, info := range e.info {
		log.Info().Str("persona", info.Persona).Str("provider", info.Provider).Str("model", info.Model).Msg("Participant")
	}

	e.emit(Event{Type: EventStarted, MaxTurns: maxTurns, Status: "Conversation starting..."})

	go e.run(runCtx)
	return nil
}

func (e *Engine) Pause() {
	e.mu.Lock()
	if e.state != StateRunning {
		e.mu.Unlock()
		return
	}
	e.state = StatePaused
	turn, maxTurns := e.turnIndex+1, e.maxTurns
	e.mu.Unlock()

	log.Debug().Msg("Conversation paused")
	e.emit(Event{Type: EventPaused, Turn: turn, MaxTurns: maxTurns, Status: "Conversation paused"})
}

func (e *Engine) Resume() {
	e.mu.Lock()
	if e.state != StatePaused {
		e.mu.Unlock()
		return
	}
	e.state = StateRunning
	turn, maxTurns := e.turnIndex+1, e.maxTurns
	e.mu.Unlock()

	log.Debug().Msg("Conversation resumed")
	e.emit(Event{Type: EventResumed, Turn: turn, MaxTurns: maxTurns, Status: "Conversation resumed"})
}

// Stop asks the worker to exit. Unlike a cooperative stop that lets the
// current request resolve, the in-flight request's context is cancelled so
// Ctrl+C does not wait out a slow model; whatever it returns is discarded.
// Use Wait to block until the worker is gone.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateRunning && e.state != StatePaused {
		return
	}
	e.state = StateStopping
	e.cancel()
}

// Wait blocks until the worker has exited and returns the outcome. It returns
// immediately for an engine that was never started.
func (e *Engine) Wait() Result {
	e.mu.Lock()
	done := e.done
	e.mu.Unlock()
	if done != nil {
		<-done
	}
	return e.Result()
}

// InjectMessage appends a system instruction or narrator scene description.
// It is allowed in any state; a turn already in flight does not see it.
func (e *Engine) InjectMessage(role model.Role, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}

	var speaker string
	switch role {
	case model.RoleSystem:
		speaker = model.SystemSpeaker
	case model.RoleNarrator:
		speaker = model.NarratorSpeaker
	default:
		return errors.Wrapf(ErrInvalidInjectedRole, "%q", role)
	}

	msg := model.Message{Role: role, SpeakerName: speaker, Content: content, Timestamp: time.Now()}
	e.mu.Lock()
	e.messages = append(e.messages, msg)
	turn, maxTurns := e.turnIndex+1, e.maxTurns
	e.mu.Unlock()

	log.Info().Str("role", string(role)).Str("content", content).Msg("Message injected")
	e.emit(Event{Type: EventMessage, Turn: turn, MaxTurns: maxTurns, Message: msg})
	return nil
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) ID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.id
}

// Messages returns a copy of the committed messages.
func (e *Engine) Messages() []model.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]model.Message(nil), e.messages...)
}

// InFlight returns the message currently being streamed.
func (e *Engine) InFlight() (model.Message, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inFlight == nil {
		return model.Message{}, false
	}
	return *e.inFlight, true
}

func (e *Engine) TurnIndex() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.turnIndex
}

func (e *Engine) Result() Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.result
}

// Transcript returns the conversation so far with its metadata.
func (e *Engine) Transcript() model.Transcript {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.transcriptLocked()
}

func (e *Engine) transcriptLocked() model.Transcript {
	status := e.result.Status
	if status == "" {
		status = model.StatusRunning
	}
	return model.Transcript{
		ID:           e.id,
		Topic:        e.topic,
		Participants: append([]model.ParticipantInfo(nil), e.info...),
		Messages:     append([]model.Message(nil), e.messages...),
		TurnOrder:    string(e.order),
		MaxTurns:     e.maxTurns,
		Status:       status,
		StartedAt:    e.startedAt,
		EndedAt:      e.endedAt,
	}
}

func (e *Engine) emit(ev Event) {
	if e.opts.Listener != nil {
		e.opts.Listener(ev)
	}
}

func (e *Engine) status(turn int, format string, args ...any) {
	e.emit(Event{Type: EventStatus, Turn: turn, MaxTurns: e.maxTurns, Status: fmt.Sprintf(format, args...)})
}

// running reports whether the worker should keep going.
func (e *Engine) running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state == StateRunning || e.state == StatePaused
}

// waitWhilePaused blocks while paused and returns false once the worker
// should exit.
func (e *Engine) waitWhilePaused(ctx context.Context) bool {
	ticker := time.NewTicker(e.opts.PollInterval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			return false
		}
		switch e.State() {
		case StateRunning:
			return true
		case StatePaused:
		default:
			return false
		}

		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}

// pace sleeps for the turn delay unless the run is cancelled first.
func (e *Engine) pace(ctx context.Context) {
	if e.opts.TurnDelay <= 0 {
		return
	}
	timer := time.NewTimer(e.opts.TurnDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (e *Engine) nextSpeaker(turn int) int {
	n := len(e.participants)
	if e.order == Random {
		if e.opts.Rand != nil {
			return e.opts.Rand.IntN(n)
		}
		return rand.IntN(n)
	}
	return turn % n
}
