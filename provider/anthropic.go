package provider

import (
	"context"
	"strings"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/pkg/errors"
	"github.com/rustyorb/auto-chat/model"
)

const DefaultAnthropicURL = "https://api.anthropic.com"

// AnthropicProvider implements model.Provider using Anthropic's official API.
// Injected system and narrator entries travel as system blocks, since the
// Messages API has no system role inside the message list.
type AnthropicProvider struct {
	name        string
	apiKey      string
	temperature float64
	maxTokens   int64
	client      *anthropic.Client

	mu    sync.RWMutex
	model string
}

// NewAnthropicProvider creates a new Anthropic provider instance.
//
// Defaults: base URL "https://api.anthropic.com", model
// claude-sonnet-4-5-20250929. A missing API key is reported by Generate.
func NewAnthropicProvider(cfg Config) (*AnthropicProvider, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultAnthropicURL
	}
	modelName := cfg.Model
	if modelName == "" {
		modelName = string(anthropic.ModelClaudeSonnet4_5_20250929)
	}
	if cfg.Type == "" {
		cfg.Type = ProviderTypeAnthropic
	}

	client := anthropic.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(cfg.httpClient()),
		option.WithMaxRetries(0),
	)

	return &AnthropicProvider{
		name:        cfg.name(),
		apiKey:      cfg.APIKey,
		temperature: cfg.temperature(),
		maxTokens:   cfg.maxTokens(),
		client:      &client,
		model:       modelName,
	}, nil
}

func (p *AnthropicProvider) Name() string {
	return p.name
}

func (p *AnthropicProvider) params(req model.Request) (anthropic.MessageNewParams, error) {
	if p.apiKey == "" {
		return anthropic.MessageNewParams{}, &model.ConfigurationError{Provider: p.name, Reason: "API key is not set"}
	}
	modelName := p.GetModel()
	if modelName == "" {
		return anthropic.MessageNewParams{}, &model.ConfigurationError{Provider: p.name, Reason: "model must be set before generating responses"}
	}

	messages, system := ConvertToAnthropicMessages(req.Messages())
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(modelName),
		Messages:    messages,
		MaxTokens:   p.maxTokens,
		Temperature: anthropic.Float(p.temperature),
	}
	if len(system) > 0 {
		params.System = system
	}
	return params, nil
}

// Generate sends one Messages request and returns the concatenated text blocks.
func (p *AnthropicProvider) Generate(ctx context.Context, req model.Request) (string, error) {
	params, err := p.params(req)
	if err != nil {
		return "", err
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return "", classifyAnthropicError(p.name, err)
	}

	var b strings.Builder
	found := false
	for _, block := range msg.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			b.WriteString(text.Text)
			found = true
		}
	}
	if !found {
		return "", &model.ResponseFormatError{Provider: p.name, Reason: "response has no text content"}
	}

	return strings.TrimSpace(b.String()), nil
}

// GenerateStream opens a streaming Messages request. HTTP failures surface
// from the stream's Err after the first Next.
func (p *AnthropicProvider) GenerateStream(ctx context.Context, req model.Request) (model.ChunkStream, error) {
	params, err := p.params(req)
	if err != nil {
		return nil, err
	}

	stream := p.client.Messages.NewStreaming(ctx, params)
	return &anthropicStream{provider: p.name, events: stream}, nil
}

// ListModels returns a curated list; the SDK version in use predates a
// stable models endpoint.
func (p *AnthropicProvider) ListModels(ctx context.Context) []string {
	models := []anthropic.Model{
		anthropic.ModelClaudeSonnet4_5_20250929,
		anthropic.ModelClaude3_5Haiku20241022,
		anthropic.ModelClaude_3_Opus_20240229,
		anthropic.ModelClaude_3_Haiku_20240307,
	}

	result := make([]string, 0, len(models))
	for _, m := range models {
		result = append(result, string(m))
	}
	return result
}

func (p *AnthropicProvider) GetModel() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.model
}

func (p *AnthropicProvider) SetModel(model string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.model = model
}

// anthropicEvents is the subset of the SDK event stream that anthropicStream
// consumes.
type anthropicEvents interface {
	Next() bool
	Current() anthropic.MessageStreamEventUnion
	Err() error
	Close() error
}

// anthropicStream adapts the SDK event stream to model.ChunkStream, yielding
// only text deltas.
type anthropicStream struct {
	provider string
	events   anthropicEvents
	chunk    string
	err      error
}

func (s *anthropicStream) Next() bool {
	for s.events.Next() {
		event := s.events.Current()
		deltaEvent, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent)
		if !ok {
			continue
		}
		if delta, ok := deltaEvent.Delta.AsAny().(anthropic.TextDelta); ok && delta.Text != "" {
			s.chunk = delta.Text
			return true
		}
	}
	if err := s.events.Err(); err != nil && s.err == nil {
		s.err = classifyAnthropicError(s.provider, err)
	}
	return false
}

func (s *anthropicStream) Chunk() string { return s.chunk }

func (s *anthropicStream) Err() error { return s.err }

func (s *anthropicStream) Close() error { return s.events.Close() }

func classifyAnthropicError(provider string, err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &model.RequestError{Provider: provider, StatusCode: apiErr.StatusCode, Err: err}
	}
	return classifyTransportError(provider, err)
}
