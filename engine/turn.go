package engine

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/rustyorb/auto-chat/model"
)

// errStopped marks a turn abandoned because the conversation is stopping.
var errStopped = errors.New("conversation stopped")

func (e *Engine) run(ctx context.Context) {
	defer close(e.done)

	prompt := openingPrompt
	var fatal error

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Conversation worker panicked")
			e.finish(ctx, errors.Errorf("conversation worker panicked: %v", r))
			return
		}
		e.finish(ctx, fatal)
	}()

	for {
		if !e.waitWhilePaused(ctx) {
			return
		}

		turn := e.TurnIndex()
		if turn >= e.maxTurns {
			return
		}

		idx := e.nextSpeaker(turn)
		p := e.participants[idx]
		e.status(turn+1, "Turn %d/%d: %s is thinking...", turn+1, e.maxTurns, p.Persona.Name)

		req := BuildRequest(p.Persona, e.topic, e.Messages(), e.opts.HistoryLimit, prompt)
		log.Debug().
			Int("turn", turn+1).
			Str("persona", p.Persona.Name).
			Int("history", len(req.History)).
			Str("prompt", clip(req.Prompt, 100)).
			Msg("Sending turn request")

		started := time.Now()
		reply, err := e.generate(ctx, idx, p, req)
		if !e.active(ctx) {
			return
		}

		switch {
		case err == nil:
			log.Debug().Str("persona", p.Persona.Name).Dur("elapsed", time.Since(started)).Msg("Turn generated")
			prompt = e.accept(idx, p, reply)
			e.status(turn+1, "Turn %d/%d: Waiting...", turn+1, e.maxTurns)
			if turn+1 < e.maxTurns {
				e.pace(ctx)
			}

		case model.IsConfigurationError(err):
			log.Error().Err(err).Int("turn", turn+1).Msg("Configuration error, stopping conversation")
			fatal = err
			return

		case model.IsRecoverable(err):
			log.Error().Err(err).Int("turn", turn+1).Str("persona", p.Persona.Name).Msg("Turn request failed")
			reply, ferr := e.fallback(ctx, p, req)
			if !e.active(ctx) {
				return
			}
			if ferr == nil {
				prompt = e.accept(idx, p, reply)
				e.status(turn+1, "Turn %d/%d: Completed with fallback model", turn+1, e.maxTurns)
				continue
			}
			if model.IsConfigurationError(ferr) {
				log.Warn().Err(ferr).Msg("Fallback provider is misconfigured")
			}
			e.skip(turn, p, err)

		default:
			log.Error().Err(err).Int("turn", turn+1).Msg("Unexpected error, stopping conversation")
			fatal = errors.Wrapf(err, "unexpected error during %s's turn", p.Persona.Name)
			return
		}
	}
}

// generate runs one turn on the participant's own provider with its model
// selected for the duration of the call.
func (e *Engine) generate(ctx context.Context, idx int, p Participant, req model.Request) (string, error) {
	var reply string
	err := withModel(p.Provider, p.Model, func() error {
		var err error
		if e.opts.Streaming {
			reply, err = e.stream(ctx, idx, p, req)
		} else {
			reply, err = p.Provider.Generate(ctx, req)
		}
		return err
	})
	return reply, err
}

// stream consumes a streaming reply, publishing chunks as they arrive. The
// message is only committed by the caller once the stream has completed.
func (e *Engine) stream(ctx context.Context, idx int, p Participant, req model.Request) (string, error) {
	chunks, err := p.Provider.GenerateStream(ctx, req)
	if err != nil {
		return "", err
	}
	defer chunks.Close()

	turn := e.TurnIndex() + 1
	var sb strings.Builder
	partial := &model.Message{Role: model.SpeakerRole(idx), SpeakerName: p.Persona.Name, Timestamp: time.Now()}

	e.mu.Lock()
	e.inFlight = partial
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.inFlight = nil
		e.mu.Unlock()
	}()

	for chunks.Next() {
		if !e.running() {
			return "", errStopped
		}
		chunk := chunks.Chunk()
		sb.WriteString(chunk)

		e.mu.Lock()
		partial.Content = sb.String()
		e.mu.Unlock()

		e.emit(Event{Type: EventChunk, Turn: turn, MaxTurns: e.maxTurns, Chunk: chunk, Message: model.Message{
			Role:        partial.Role,
			SpeakerName: partial.SpeakerName,
			Content:     sb.String(),
			Timestamp:   partial.Timestamp,
		}})
	}
	if err := chunks.Err(); err != nil {
		return "", err
	}

	return strings.TrimSpace(sb.String()), nil
}

// fallback retries the turn once on the persona's fallback provider and model.
func (e *Engine) fallback(ctx context.Context, p Participant, req model.Request) (string, error) {
	persona := p.Persona
	if !persona.HasFallback() {
		return "", errors.New("no fallback configured")
	}

	providerID := strings.ToLower(persona.FallbackProvider)
	provider, ok := e.opts.Registry[providerID]
	if !ok || provider == nil {
		log.Error().Str("provider", providerID).Str("persona", persona.Name).Msg("Fallback provider not found")
		return "", errors.Errorf("fallback provider %q not found", providerID)
	}

	turn := e.TurnIndex() + 1
	log.Info().Str("provider", providerID).Str("model", persona.FallbackModel).Msg("Attempting fallback model")
	e.emit(Event{
		Type:     EventFallback,
		Turn:     turn,
		MaxTurns: e.maxTurns,
		Status:   "Primary model failed. Trying fallback model...",
	})

	var reply string
	err := withModel(provider, persona.FallbackModel, func() error {
		var err error
		reply, err = provider.Generate(ctx, req)
		return err
	})
	if err != nil {
		log.Error().Err(err).Str("persona", persona.Name).Msg("Fallback model also failed")
		e.status(turn, "Both primary and fallback models failed for %s", persona.Name)
		return "", err
	}
	return reply, nil
}

// withModel selects modelName on provider while fn runs and restores the
// previous selection afterwards.
func withModel(provider model.Provider, modelName string, fn func() error) error {
	previous := provider.GetModel()
	if modelName == "" || modelName == previous {
		return fn()
	}
	provider.SetModel(modelName)
	defer provider.SetModel(previous)
	return fn()
}

// accept commits a generated reply and returns the continuation prompt for
// the next turn.
func (e *Engine) accept(idx int, p Participant, reply string) string {
	msg := model.Message{
		Role:        model.SpeakerRole(idx),
		SpeakerName: p.Persona.Name,
		Content:     CleanResponse(reply),
		Timestamp:   time.Now(),
	}

	e.mu.Lock()
	e.messages = append(e.messages, msg)
	turn := e.turnIndex + 1
	e.turnIndex++
	var snapshot *model.Transcript
	if e.opts.Autosaver != nil && e.opts.AutosaveEvery > 0 && e.turnIndex%e.opts.AutosaveEvery == 0 {
		t := e.transcriptLocked()
		snapshot = &t
	}
	e.mu.Unlock()

	log.Info().Str("persona", msg.SpeakerName).Str("content", clip(msg.Content, 200)).Msg("Message")
	e.emit(Event{Type: EventMessage, Turn: turn, MaxTurns: e.maxTurns, Message: msg})

	if snapshot != nil {
		if err := e.opts.Autosaver.SaveSnapshot(*snapshot); err != nil {
			log.Warn().Err(err).Str("conversation", snapshot.ID).Msg("Failed to save snapshot")
		}
	}
	return msg.Content
}

// skip gives up on the current turn; the conversation moves on.
func (e *Engine) skip(turn int, p Participant, cause error) {
	e.mu.Lock()
	e.turnIndex++
	e.mu.Unlock()

	e.emit(Event{
		Type:     EventTurnSkipped,
		Turn:     turn + 1,
		MaxTurns: e.maxTurns,
		Status:   "API Request Error during " + p.Persona.Name + "'s turn: " + cause.Error(),
		Err:      cause,
	})
}

func (e *Engine) finish(ctx context.Context, fatal error) {
	e.mu.Lock()
	status := model.StatusStopped
	switch {
	case fatal != nil:
		status = model.StatusFailed
	case e.turnIndex >= e.maxTurns:
		status = model.StatusCompleted
	}
	e.result = Result{Status: status, Err: fatal}
	e.endedAt = time.Now()
	e.inFlight = nil
	transcript := e.transcriptLocked()
	e.mu.Unlock()

	finalStatus := "Conversation stopped."
	switch status {
	case model.StatusCompleted:
		finalStatus = "Conversation finished (Max turns reached)."
	case model.StatusFailed:
		finalStatus = "Conversation failed: " + fatal.Error()
	}
	log.Info().Str("conversation", transcript.ID).Str("status", string(status)).Msg(finalStatus)
	log.Info().Msg("Conversation summary:\n" + model.Summarize(transcript.Messages))

	if len(transcript.Messages) > 0 {
		e.persist(context.WithoutCancel(ctx), transcript)
	}

	e.mu.Lock()
	e.state = StateStopped
	e.cancel()
	e.mu.Unlock()

	if fatal != nil {
		e.emit(Event{Type: EventError, Turn: transcript.TurnCount(), MaxTurns: transcript.MaxTurns, Status: finalStatus, Err: fatal})
	}
	e.emit(Event{Type: EventFinished, Turn: transcript.TurnCount(), MaxTurns: transcript.MaxTurns, Status: finalStatus, Err: fatal})
}

func (e *Engine) persist(ctx context.Context, transcript model.Transcript) {
	if e.opts.Autosaver != nil {
		if err := e.opts.Autosaver.SaveSnapshot(transcript); err != nil {
			log.Warn().Err(err).Msg("Failed to save final snapshot")
		}
	}
	if e.opts.Persister == nil {
		return
	}

	saveCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := e.opts.Persister.SaveConversation(saveCtx, transcript); err != nil {
		log.Error().Err(err).Str("conversation", transcript.ID).Msg("Failed to save conversation to history")
		return
	}
	log.Info().Str("conversation", transcript.ID).Msg("Conversation saved to history")
}

// active reports whether the turn loop should continue after a provider call.
func (e *Engine) active(ctx context.Context) bool {
	return ctx.Err() == nil && e.running()
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
