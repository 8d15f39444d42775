package model

import (
	"fmt"
	"strings"
	"time"
)

// ConversationStatus describes how a conversation ended.
type ConversationStatus string

const (
	StatusRunning   ConversationStatus = "running"
	StatusCompleted ConversationStatus = "completed"
	StatusStopped   ConversationStatus = "stopped"
	StatusFailed    ConversationStatus = "failed"
)

// ParticipantInfo is the persisted description of one participant.
type ParticipantInfo struct {
	Persona  string `json:"persona"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// Transcript is the hand-off from the engine to persistence: a copy of the
// message list plus conversation metadata.
type Transcript struct {
	ID           string             `json:"id"`
	Topic        string             `json:"topic"`
	Participants []ParticipantInfo  `json:"participants"`
	Messages     []Message          `json:"messages"`
	TurnOrder    string             `json:"turn_order"`
	MaxTurns     int                `json:"max_turns"`
	Status       ConversationStatus `json:"status"`
	StartedAt    time.Time          `json:"started_at"`
	EndedAt      time.Time          `json:"ended_at,omitempty"`
}

// TurnCount counts the messages produced by participants.
func (t Transcript) TurnCount() int {
	return CountTurns(t.Messages)
}

// CountTurns counts speaker messages, ignoring injected system and narrator entries.
func CountTurns(messages []Message) int {
	n := 0
	for _, msg := range messages {
		if !msg.Role.IsInjected() {
			n++
		}
	}
	return n
}

// Summarize reports the message total and per-speaker counts in first-seen order.
func Summarize(messages []Message) string {
	counts := make(map[string]int)
	var order []string
	for _, msg := range messages {
		name := msg.SpeakerName
		if name == "" {
			name = "?"
		}
		if _, seen := counts[name]; !seen {
			order = append(order, name)
		}
		counts[name]++
	}

	lines := []string{fmt.Sprintf("Total turns: %d", len(messages))}
	for _, name := range order {
		lines = append(lines, fmt.Sprintf("%s: %d turns", name, counts[name]))
	}
	return strings.Join(lines, "\n")
}
