package engine

import (
	"strings"
	"testing"
	"time"

	"github.com/rustyorb/auto-chat/model"
	"github.com/rustyorb/auto-chat/provider/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildHistoryRoleMapping(t *testing.T) {
	history := BuildHistory(testutil.TestConversation(), "Alice", 20)

	require.Len(t, history, 4)
	assert.Equal(t, model.ChatMessage{Role: model.ChatRoleAssistant, Content: "Hello, Bob."}, history[0])
	assert.Equal(t, model.ChatMessage{Role: model.ChatRoleUser, Content: "Hello, Alice."}, history[1])
	assert.Equal(t, model.ChatRoleSystem, history[2].Role)
	assert.Equal(t, narratorEmphasis+"It starts to rain.", history[2].Content)
	assert.Equal(t, model.ChatRoleAssistant, history[3].Role)

	fromBob := BuildHistory(testutil.TestConversation(), "Bob", 20)
	assert.Equal(t, model.ChatRoleUser, fromBob[0].Role)
	assert.Equal(t, model.ChatRoleAssistant, fromBob[1].Role)
}

func TestBuildHistorySystemEmphasis(t *testing.T) {
	messages := []model.Message{{Role: model.RoleSystem, SpeakerName: model.SystemSpeaker, Content: "Speak in rhymes."}}
	history := BuildHistory(messages, "Alice", 20)
	require.Len(t, history, 1)
	assert.Equal(t, model.ChatMessage{Role: model.ChatRoleSystem, Content: systemEmphasis + "Speak in rhymes."}, history[0])
}

func TestBuildHistoryLimit(t *testing.T) {
	var messages []model.Message
	for i := 0; i < 30; i++ {
		messages = append(messages, model.Message{Role: model.SpeakerRole(i), SpeakerName: []string{"Alice", "Bob"}[i%2], Content: strings.Repeat("x", i+1)})
	}

	history := BuildHistory(messages, "Alice", 20)
	require.Len(t, history, 20)
	assert.Len(t, history[0].Content, 11, "oldest messages are dropped first")
	assert.Len(t, history[19].Content, 30)

	assert.Empty(t, BuildHistory(nil, "Alice", 20))
}

func TestBuildRequestContinuation(t *testing.T) {
	persona := testutil.TestPersonas()[1]
	messages := testutil.TestConversation()[:2]

	req := BuildRequest(persona, "rainy days", messages, 20, "Hello, Alice.")
	assert.Equal(t, "Hello, Alice.", req.Prompt)
	assert.Contains(t, req.System, "'Bob'")
	assert.Contains(t, req.System, "rainy days")
	assert.NotContains(t, req.System, "CRITICAL INSTRUCTION")
	assert.Len(t, req.History, 2)
}

func TestBuildRequestEmergency(t *testing.T) {
	persona := testutil.TestPersonas()[1]
	now := time.Now()

	tests := []struct {
		name      string
		messages  []model.Message
		emergency string
	}{
		{
			name:      "narrator is last",
			messages:  testutil.TestConversation()[:3],
			emergency: "It starts to rain.",
		},
		{
			name:      "narrator within last three",
			messages:  testutil.TestConversation(),
			emergency: "It starts to rain.",
		},
		{
			name: "latest injected message wins",
			messages: []model.Message{
				{Role: model.RoleSystem, SpeakerName: model.SystemSpeaker, Content: "first", Timestamp: now},
				{Role: model.RoleNarrator, SpeakerName: model.NarratorSpeaker, Content: "second", Timestamp: now},
			},
			emergency: "second",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := BuildRequest(persona, "", tt.messages, 20, "ignored")
			assert.True(t, strings.HasPrefix(req.Prompt, "EMERGENCY ALERT - "+tt.emergency+"\n\n"), req.Prompt)
			assert.True(t, strings.HasSuffix(req.System, emergencyInstructions))
		})
	}

	t.Run("older injected messages are ignored", func(t *testing.T) {
		messages := append(testutil.TestConversation(),
			model.Message{Role: model.RoleSpeakerB, SpeakerName: "Bob", Content: "No."},
			model.Message{Role: model.RoleSpeakerA, SpeakerName: "Alice", Content: "Oh well."},
		)
		req := BuildRequest(persona, "", messages, 20, "Oh well.")
		assert.Equal(t, "Oh well.", req.Prompt)
	})
}

func TestCleanResponse(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "Nice weather. Press Enter to continue", want: "Nice weather."},
		{in: "Nice weather. press enter to continue!", want: "Nice weather."},
		{in: "YOUR TURN TO RESPOND, what now?", want: "what now?"},
		{in: "  Click to respond.  Sure thing  ", want: "Sure thing"},
		{in: "Type your Response Below", want: ""},
		{in: "Nothing to strip here.", want: "Nothing to strip here."},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanResponse(tt.in))
		})
	}
}
