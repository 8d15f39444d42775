package model

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Persona is a named character profile. Participants in one conversation must
// have distinct names: the engine frames history as "assistant" or "user" by
// comparing speaker names to the active persona.
type Persona struct {
	Name             string `yaml:"name" json:"name"`
	Personality      string `yaml:"personality" json:"personality"`
	Age              int    `yaml:"age" json:"age"`
	Gender           string `yaml:"gender" json:"gender"`
	FallbackProvider string `yaml:"fallback_provider,omitempty" json:"fallback_provider,omitempty"`
	FallbackModel    string `yaml:"fallback_model,omitempty" json:"fallback_model,omitempty"`
}

// HasFallback reports whether both fallback fields are set.
func (p Persona) HasFallback() bool {
	return p.FallbackProvider != "" && p.FallbackModel != ""
}

// Validate checks the fields every persona record must carry.
func (p Persona) Validate() error {
	switch {
	case strings.TrimSpace(p.Name) == "":
		return errors.New("persona name is required")
	case strings.TrimSpace(p.Personality) == "":
		return errors.Errorf("persona %q: personality is required", p.Name)
	case p.Age <= 0:
		return errors.Errorf("persona %q: invalid age %d", p.Name, p.Age)
	case strings.TrimSpace(p.Gender) == "":
		return errors.Errorf("persona %q: gender is required", p.Name)
	}
	if (p.FallbackProvider == "") != (p.FallbackModel == "") {
		return errors.Errorf("persona %q: fallback_provider and fallback_model must be set together", p.Name)
	}
	return nil
}

// SystemPrompt renders the role-play instructions for the given topic.
func (p Persona) SystemPrompt(topic string) string {
	if topic == "" {
		topic = "free conversation"
	}
	lines := []string{
		fmt.Sprintf("You are role-playing as the character '%s', in a conversation with other characters.", p.Name),
		fmt.Sprintf("Your response MUST be ONLY the words spoken by '%s' in the first person (I, me, my), with your actions placed between asterisks *like this*.", p.Name),
		fmt.Sprintf("Your primary focus is discussing the topic: '%s'.", topic),
		fmt.Sprintf("Engage with the previous messages (shown as User/Assistant turns in history) but speak ONLY as '%s'.", p.Name),
		"The 'User' role in the history may represent other characters. When you see messages labeled as from 'Narrator', treat these as scene descriptions or background information - NOT as a character speaking to you.",
		"",
		fmt.Sprintf("--- Character Profile: %s ---", p.Name),
		fmt.Sprintf("Age: %d", p.Age),
		fmt.Sprintf("Gender: %s", p.Gender),
		fmt.Sprintf("Personality: %s", p.Personality),
		"",
		"--- VERY STRICT RULES ---",
		fmt.Sprintf("1. NEVER break character. You are '%s'.", p.Name),
		"2. NEVER BECOME REPETITIVE. Always be pushing the conversation forward.",
		"3. NEVER write instructions, commentary, or discuss being an AI.",
		fmt.Sprintf("4. NEVER generate text for any persona other than '%s'.", p.Name),
		"5. NEVER output control tokens like '<|im_end|>', '<|im_start|>', or similar.",
		"6. Respond naturally *within your character role* based on the conversation flow, always aiming to **continue and develop** the interaction.",
		"7. AVOID repeating sentences or phrases from your own previous turns or the immediately preceding message. Introduce new points or reactions.",
		"8. Actively try to ADVANCE the conversation based on the topic and your character's perspective.",
		"9. DO NOT use phrases that suggest ending the conversation (e.g., 'Nice talking to you', 'Maybe later', 'Goodbye'). Your interaction is ongoing until the session ends.",
		"10. ACTIVELY PUSH the interaction forward. Introduce new plot points, character motivations, conflicts, questions, or escalate the situation. Do not let the conversation stagnate.",
		"11. Use double markdown asterisks (`**action or emphasis**`) for brief physical actions or emphasis integrated with your dialogue. DO NOT use parentheses `()` for this.",
		"12. NEVER directly reference the 'Narrator' in your responses. Treat narrator messages as scene descriptions your character experiences or reacts to naturally.",
		"13. When the Narrator describes a scenario, setting, or situation, respond to it as if it's happening in your world.",
		"--- EXCEPTIONS ---",
		"1. If the character is an AI Entity, depending on its personality or function it may not engage in conversation. It may instead use its responses like a canvas.",
		fmt.Sprintf("You are '%s'. Now, continue the conversation naturally, pushing it forward:", p.Name),
	}
	return strings.Join(lines, "\n")
}
