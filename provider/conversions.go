package provider

import (
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/ollama/ollama/api"
	"github.com/openai/openai-go/v3"
	"github.com/rustyorb/auto-chat/model"
)

// ConvertToOllamaMessages converts chat messages to Ollama api.Message.
//
// Both types carry compatible Role and Content fields, so this is a plain
// field mapping.
//
// Example:
//
//	msgs := []model.ChatMessage{
//	    {Role: "user", Content: "Hello"},
//	    {Role: "assistant", Content: "Hi there!"},
//	}
//	ollamaMessages := ConvertToOllamaMessages(msgs)
func ConvertToOllamaMessages(messages []model.ChatMessage) []api.Message {
	result := make([]api.Message, len(messages))
	for i, msg := range messages {
		result[i] = api.Message{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}
	return result
}

// ConvertToOpenAIMessages converts chat messages to openai-go message params.
// Unknown roles are sent as user messages.
func ConvertToOpenAIMessages(messages []model.ChatMessage) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case model.ChatRoleSystem:
			result = append(result, openai.SystemMessage(msg.Content))
		case model.ChatRoleAssistant:
			result = append(result, openai.AssistantMessage(msg.Content))
		default:
			result = append(result, openai.UserMessage(msg.Content))
		}
	}
	return result
}

// compatMessage is the wire shape of one message in a raw
// /chat/completions request.
type compatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func convertToCompatMessages(messages []model.ChatMessage) []compatMessage {
	result := make([]compatMessage, len(messages))
	for i, msg := range messages {
		result[i] = compatMessage{Role: msg.Role, Content: msg.Content}
	}
	return result
}

// anthropicContinuation opens a transcript whose first entry came from the
// assistant side; the Messages API requires the first turn to be the user's.
const anthropicContinuation = "(The conversation continues.)"

// ConvertToAnthropicMessages splits chat messages into Anthropic system
// blocks and alternating user/assistant turns. System-role messages anywhere
// in the list become system blocks. Consecutive messages with the same role
// are merged.
func ConvertToAnthropicMessages(messages []model.ChatMessage) ([]anthropic.MessageParam, []anthropic.TextBlockParam) {
	var system []anthropic.TextBlockParam
	type turn struct {
		role  string
		parts []string
	}
	var turns []turn

	for _, msg := range messages {
		if msg.Role == model.ChatRoleSystem {
			system = append(system, anthropic.TextBlockParam{Text: msg.Content})
			continue
		}
		role := model.ChatRoleUser
		if msg.Role == model.ChatRoleAssistant {
			role = model.ChatRoleAssistant
		}
		if n := len(turns); n > 0 && turns[n-1].role == role {
			turns[n-1].parts = append(turns[n-1].parts, msg.Content)
			continue
		}
		turns = append(turns, turn{role: role, parts: []string{msg.Content}})
	}

	if len(turns) > 0 && turns[0].role == model.ChatRoleAssistant {
		turns = append([]turn{{role: model.ChatRoleUser, parts: []string{anthropicContinuation}}}, turns...)
	}

	result := make([]anthropic.MessageParam, 0, len(turns))
	for _, t := range turns {
		block := anthropic.NewTextBlock(strings.Join(t.parts, "\n\n"))
		if t.role == model.ChatRoleAssistant {
			result = append(result, anthropic.NewAssistantMessage(block))
		} else {
			result = append(result, anthropic.NewUserMessage(block))
		}
	}
	return result, system
}
