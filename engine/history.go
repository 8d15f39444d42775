package engine

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/rustyorb/auto-chat/model"
)

const (
	openingPrompt = "Let's start the conversation."

	systemEmphasis   = "IMPORTANT - MUST ACKNOWLEDGE AND REACT TO THIS IMMEDIATELY: "
	narratorEmphasis = "URGENT SCENE CHANGE - REACT TO THIS IMMEDIATELY: "

	// injected messages this close to the end of the list override the prompt
	emergencyWindow = 3

	emergencyPrompt = "EMERGENCY ALERT - %s\n\n" +
		"You MUST acknowledge and react to this situation immediately before continuing any previous conversation. " +
		"How do you respond to this urgent situation?"

	emergencyInstructions = "\n\nCRITICAL INSTRUCTION: When you receive an emergency alert or system message, you MUST:\n" +
		"1. Immediately acknowledge and react to the situation\n" +
		"2. Show appropriate urgency and emotion in your response\n" +
		"3. Take appropriate action based on the emergency\n" +
		"4. Temporarily pause any ongoing conversation topics\n" +
		"5. Focus entirely on the current situation until it is resolved"
)

// BuildHistory maps the last limit messages into the two-party vocabulary as
// seen by the persona called active: its own turns become "assistant", every
// other speaker "user", and injected messages emphasised system entries.
func BuildHistory(messages []model.Message, active string, limit int) []model.ChatMessage {
	if limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}

	history := make([]model.ChatMessage, 0, len(messages))
	for _, msg := range messages {
		switch {
		case msg.Role == model.RoleSystem:
			history = append(history, model.ChatMessage{Role: model.ChatRoleSystem, Content: systemEmphasis + msg.Content})
		case msg.Role == model.RoleNarrator:
			history = append(history, model.ChatMessage{Role: model.ChatRoleSystem, Content: narratorEmphasis + msg.Content})
		case msg.SpeakerName == active:
			history = append(history, model.ChatMessage{Role: model.ChatRoleAssistant, Content: msg.Content})
		default:
			history = append(history, model.ChatMessage{Role: model.ChatRoleUser, Content: msg.Content})
		}
	}
	return history
}

// BuildRequest assembles the request for persona's turn. continuation is the
// previous accepted turn's output; it is replaced by an emergency prompt when a
// system or narrator message is among the last few messages.
func BuildRequest(persona model.Persona, topic string, messages []model.Message, limit int, continuation string) model.Request {
	req := model.Request{
		Prompt:  continuation,
		System:  persona.SystemPrompt(topic),
		History: BuildHistory(messages, persona.Name, limit),
	}

	if injected, ok := recentInjected(messages); ok {
		req.Prompt = fmt.Sprintf(emergencyPrompt, injected.Content)
		req.System += emergencyInstructions
	}
	return req
}

func recentInjected(messages []model.Message) (model.Message, bool) {
	start := max(0, len(messages)-emergencyWindow)
	for i := len(messages) - 1; i >= start; i-- {
		if messages[i].Role.IsInjected() {
			return messages[i], true
		}
	}
	return model.Message{}, false
}

// UI instructions models sometimes echo from chat front ends they were trained on.
var artifactPhrases = []string{
	"Click reply or enter to continue",
	"Click reply or enter after each message",
	"Press Enter to continue",
	"Type your response below",
	"Click to respond",
	"Please respond to continue our conversation",
	"Your turn to respond",
	"Click below to respond",
}

var artifactPattern = func() *regexp.Regexp {
	quoted := make([]string, len(artifactPhrases))
	for i, phrase := range artifactPhrases {
		quoted[i] = regexp.QuoteMeta(phrase)
	}
	return regexp.MustCompile(`(?i)(?:` + strings.Join(quoted, "|") + `)[.!,]?`)
}()

// CleanResponse strips echoed UI artifacts and surrounding whitespace.
func CleanResponse(text string) string {
	return strings.TrimSpace(artifactPattern.ReplaceAllString(text, ""))
}
