package engine

import "github.com/rustyorb/auto-chat/model"

type EventType string

const (
	EventStarted     EventType = "started"
	EventStatus      EventType = "status"
	EventMessage     EventType = "message"
	EventChunk       EventType = "chunk"
	EventPaused      EventType = "paused"
	EventResumed     EventType = "resumed"
	EventTurnSkipped EventType = "turn-skipped"
	EventFallback    EventType = "fallback"
	EventFinished    EventType = "finished"
	EventError       EventType = "error"
)

// Event is a notification for the presentation layer.
//
// Turn is 1-based and refers to the turn the event concerns. Message is set
// for EventMessage, Chunk for EventChunk, Err for EventError and for a failed
// EventFinished.
type Event struct {
	Type     EventType
	Turn     int
	MaxTurns int
	Status   string
	Message  model.Message
	Chunk    string
	Err      error
}

// Listener receives events. It is called synchronously from the engine's
// worker, and from the caller of InjectMessage, so it must be safe for
// concurrent use and should not block.
type Listener func(Event)
