package model

import "context"

// Provider abstracts one LLM backend (local Ollama or LM Studio servers, hosted
// OpenAI-compatible vendors, Anthropic) behind the capability set the
// conversation engine needs.
//
// This interface is defined in the model package (not provider package) to avoid
// import cycles: provider implementations import model, and the engine can use
// Provider without importing the provider package.
type Provider interface {
	// Name returns the provider id ("ollama", "openai", ...).
	Name() string

	// Generate sends one request and returns the complete, trimmed reply.
	Generate(ctx context.Context, req Request) (string, error)

	// GenerateStream opens a streaming request. The returned stream must be closed.
	GenerateStream(ctx context.Context, req Request) (ChunkStream, error)

	// ListModels returns the model ids the backend offers. Failures are logged
	// and yield an empty slice; the list is advisory.
	ListModels(ctx context.Context) []string

	// GetModel returns the currently selected model name.
	GetModel() string

	// SetModel changes the active model.
	SetModel(model string)
}

// Request is the provider-agnostic shape of one generation call.
//
// History is already mapped into the two-party vocabulary. Providers send
// System first (when set), then History, then Prompt as the final user turn.
type Request struct {
	Prompt  string
	System  string
	History []ChatMessage
}

// Messages flattens the request into the ordered message list sent on the wire.
func (r Request) Messages() []ChatMessage {
	messages := make([]ChatMessage, 0, len(r.History)+2)
	if r.System != "" {
		messages = append(messages, ChatMessage{Role: ChatRoleSystem, Content: r.System})
	}
	messages = append(messages, r.History...)
	messages = append(messages, ChatMessage{Role: ChatRoleUser, Content: r.Prompt})
	return messages
}

// ChunkStream is a finite, non-restartable sequence of text fragments.
//
//	for stream.Next() {
//	    fmt.Print(stream.Chunk())
//	}
//	if err := stream.Err(); err != nil { ... }
//
// Iterating again requires a fresh request.
type ChunkStream interface {
	Next() bool
	Chunk() string
	Err() error
	Close() error
}
