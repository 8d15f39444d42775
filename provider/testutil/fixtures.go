package testutil

import (
	"time"

	"github.com/rustyorb/auto-chat/model"
)

// TestPersonas returns two valid personas with distinct names.
func TestPersonas() []model.Persona {
	return []model.Persona{
		{Name: "Alice", Personality: "Curious and upbeat", Age: 30, Gender: "female"},
		{Name: "Bob", Personality: "Dry and skeptical", Age: 45, Gender: "male"},
	}
}

// TestConversation returns a short alternating exchange between Alice and Bob.
func TestConversation() []model.Message {
	now := time.Now()
	return []model.Message{
		{Role: model.RoleSpeakerA, SpeakerName: "Alice", Content: "Hello, Bob.", Timestamp: now},
		{Role: model.RoleSpeakerB, SpeakerName: "Bob", Content: "Hello, Alice.", Timestamp: now},
		{Role: model.RoleNarrator, SpeakerName: model.NarratorSpeaker, Content: "It starts to rain.", Timestamp: now},
		{Role: model.RoleSpeakerA, SpeakerName: "Alice", Content: "Did you bring an umbrella?", Timestamp: now},
	}
}

// SimpleRequest returns a request with only a prompt.
func SimpleRequest(prompt string) model.Request {
	return model.Request{Prompt: prompt}
}
