package provider

import (
	"context"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/rustyorb/auto-chat/model"
)

const (
	DefaultLMStudioURL   = "http://localhost:1234/v1"
	DefaultOpenRouterURL = "https://openrouter.ai/api/v1"
	DefaultOpenAIURL     = "https://api.openai.com/v1"
)

// compatPreset holds the per-vendor defaults of the OpenAI-compatible family.
type compatPreset struct {
	baseURL    string
	requireKey bool
	// modelFilter keeps only model ids containing it; the list is then sorted.
	modelFilter string
}

var compatPresets = map[ProviderType]compatPreset{
	ProviderTypeLMStudio:   {baseURL: DefaultLMStudioURL},
	ProviderTypeOpenRouter: {baseURL: DefaultOpenRouterURL, requireKey: true},
	ProviderTypeOpenAI:     {baseURL: DefaultOpenAIURL, requireKey: true, modelFilter: "gpt"},
}

// CompatProvider speaks the OpenAI-compatible chat completions format used by
// LM Studio, OpenRouter and OpenAI.
//
// Non-streaming requests and model listing go through the official openai-go
// SDK with its own retries disabled; RetryPolicy owns retries. Streaming is
// read with the package Assembler so malformed frames are skipped instead of
// aborting the reply.
type CompatProvider struct {
	name        string
	baseURL     string
	apiKey      string
	requireKey  bool
	modelFilter string
	temperature float64
	maxTokens   int64
	httpClient  *http.Client
	client      openai.Client

	mu    sync.RWMutex
	model string
}

// NewCompatProvider creates a provider for one OpenAI-compatible vendor.
// cfg.Type selects the vendor defaults; an empty type is treated as LM Studio.
//
// A missing API key is not a construction error. Generate reports it as a
// model.ConfigurationError for vendors that require one.
func NewCompatProvider(cfg Config) (*CompatProvider, error) {
	if cfg.Type == "" {
		cfg.Type = ProviderTypeLMStudio
	}
	preset, ok := compatPresets[cfg.Type]
	if !ok {
		return nil, errors.Errorf("%s is not an OpenAI-compatible provider", cfg.Type)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = preset.baseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, errors.Wrapf(err, "invalid %s URL", cfg.Type)
	}

	httpClient := cfg.httpClient()
	apiKey := cfg.APIKey
	if apiKey == "" && !preset.requireKey {
		// LM Studio ignores the key but the SDK wants one.
		apiKey = "lm-studio"
	}

	client := openai.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	)

	return &CompatProvider{
		name:        cfg.name(),
		baseURL:     baseURL,
		apiKey:      cfg.APIKey,
		requireKey:  preset.requireKey,
		modelFilter: preset.modelFilter,
		temperature: cfg.temperature(),
		maxTokens:   cfg.maxTokens(),
		httpClient:  httpClient,
		client:      client,
		model:       cfg.Model,
	}, nil
}

func (p *CompatProvider) Name() string {
	return p.name
}

// ready returns the selected model or the configuration error that blocks
// a request.
func (p *CompatProvider) ready() (string, error) {
	if p.requireKey && p.apiKey == "" {
		return "", &model.ConfigurationError{Provider: p.name, Reason: "API key is not set"}
	}
	modelName := p.GetModel()
	if modelName == "" {
		return "", &model.ConfigurationError{Provider: p.name, Reason: "model must be set before generating responses"}
	}
	return modelName, nil
}

// Generate sends one chat completion request and returns the trimmed content
// of the first choice.
func (p *CompatProvider) Generate(ctx context.Context, req model.Request) (string, error) {
	modelName, err := p.ready()
	if err != nil {
		return "", err
	}

	params := openai.ChatCompletionNewParams{
		Messages:    ConvertToOpenAIMessages(req.Messages()),
		Model:       openai.ChatModel(modelName),
		Temperature: openai.Float(p.temperature),
		MaxTokens:   openai.Int(p.maxTokens),
	}

	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", classifyOpenAIError(p.name, err)
	}
	if len(completion.Choices) == 0 {
		return "", &model.ResponseFormatError{Provider: p.name, Reason: "response has no choices"}
	}

	return strings.TrimSpace(completion.Choices[0].Message.Content), nil
}

type compatChatRequest struct {
	Model       string          `json:"model"`
	Messages    []compatMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
	MaxTokens   int64           `json:"max_tokens"`
	Stream      bool            `json:"stream"`
}

// GenerateStream sends a streaming chat completion request and returns the
// content deltas as they arrive.
func (p *CompatProvider) GenerateStream(ctx context.Context, req model.Request) (model.ChunkStream, error) {
	modelName, err := p.ready()
	if err != nil {
		return nil, err
	}

	body := compatChatRequest{
		Model:       modelName,
		Messages:    convertToCompatMessages(req.Messages()),
		Temperature: p.temperature,
		MaxTokens:   p.maxTokens,
		Stream:      true,
	}

	headers := bearer(p.apiKey)
	if headers == nil {
		headers = map[string]string{}
	}
	headers["Accept"] = "text/event-stream"

	resp, err := postJSON(ctx, p.httpClient, p.name, joinURL(p.baseURL, "/chat/completions"), body, headers)
	if err != nil {
		return nil, err
	}

	return NewAssembler(resp.Body, CompatStreamFormat(p.name)), nil
}

// ListModels returns the vendor's model ids. OpenAI results are filtered to
// chat models and sorted. Failures are logged and reported as an empty list.
func (p *CompatProvider) ListModels(ctx context.Context) []string {
	if p.requireKey && p.apiKey == "" {
		log.Warn().Str("provider", p.name).Msg("API key is not set, cannot list models")
		return []string{}
	}

	page, err := p.client.Models.List(ctx)
	if err != nil {
		log.Warn().Err(err).Str("provider", p.name).Msg("Failed to list models")
		return []string{}
	}

	ids := make([]string, 0, len(page.Data))
	for _, m := range page.Data {
		if p.modelFilter != "" && !strings.Contains(m.ID, p.modelFilter) {
			continue
		}
		ids = append(ids, m.ID)
	}
	if p.modelFilter != "" {
		sort.Strings(ids)
	}
	return ids
}

func (p *CompatProvider) GetModel() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.model
}

func (p *CompatProvider) SetModel(model string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.model = model
}

// classifyOpenAIError maps openai-go errors onto the model taxonomy.
func classifyOpenAIError(provider string, err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &model.RequestError{
			Provider:   provider,
			StatusCode: apiErr.StatusCode,
			Body:       apiErr.Message,
			Err:        err,
		}
	}
	return classifyTransportError(provider, err)
}
