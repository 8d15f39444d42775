package model

import "time"

// Role identifies who produced a message in a conversation.
//
// The two speaker channels exist only so each backend's user/assistant
// vocabulary can be derived; participants beyond the second alternate
// between them by index parity.
type Role string

const (
	RoleSystem   Role = "system"
	RoleNarrator Role = "narrator"
	RoleSpeakerA Role = "speaker-a"
	RoleSpeakerB Role = "speaker-b"
)

const (
	SystemSpeaker   = "System"
	NarratorSpeaker = "Narrator"
)

// IsInjected reports whether the role belongs to a message added from outside
// the turn loop (system instructions and narrator scene changes).
func (r Role) IsInjected() bool {
	return r == RoleSystem || r == RoleNarrator
}

// SpeakerRole returns the speaker channel for the participant at index.
func SpeakerRole(index int) Role {
	if index%2 == 0 {
		return RoleSpeakerA
	}
	return RoleSpeakerB
}

// Message represents one produced utterance in the conversation
type Message struct {
	Role        Role      `json:"role"`
	SpeakerName string    `json:"speaker_name"`
	Content     string    `json:"content"`
	Timestamp   time.Time `json:"timestamp"`
}

// ChatMessage is a history entry in the two-party vocabulary every backend
// understands ("system", "user", "assistant").
type ChatMessage struct {
	Role    string
	Content string
}

const (
	ChatRoleSystem    = "system"
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)
