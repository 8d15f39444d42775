package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/ollama/ollama/api"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/rustyorb/auto-chat/model"
)

const DefaultOllamaURL = "http://127.0.0.1:11434"

// OllamaProvider speaks the native chat format.
//
// Chat requests go through net/http directly so the status code and raw body
// of a failed exchange can be reported on model.RequestError. The model list
// comes from the Ollama api client.
type OllamaProvider struct {
	name       string
	baseURL    string
	httpClient *http.Client
	client     *api.Client

	mu    sync.RWMutex
	model string
}

// NewOllamaProvider creates a provider for an Ollama server.
//
// An empty cfg.BaseURL defaults to "http://127.0.0.1:11434". The model may be
// left empty and selected later with SetModel.
//
// Example:
//
//	p, err := NewOllamaProvider(Config{BaseURL: "http://localhost:11434", Model: "llama3.1"})
//	if err != nil {
//	    log.Fatal(err)
//	}
func NewOllamaProvider(cfg Config) (*OllamaProvider, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "invalid Ollama URL")
	}

	httpClient := cfg.httpClient()
	if cfg.Type == "" {
		cfg.Type = ProviderTypeOllama
	}

	return &OllamaProvider{
		name:       cfg.name(),
		baseURL:    baseURL,
		httpClient: httpClient,
		client:     api.NewClient(parsedURL, httpClient),
		model:      cfg.Model,
	}, nil
}

func (p *OllamaProvider) Name() string {
	return p.name
}

// Generate sends one non-streaming chat request and returns the trimmed reply.
func (p *OllamaProvider) Generate(ctx context.Context, req model.Request) (string, error) {
	chatReq, err := p.chatRequest(req, false)
	if err != nil {
		return "", err
	}

	resp, err := postJSON(ctx, p.httpClient, p.name, joinURL(p.baseURL, "/api/chat"), chatReq, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var envelope struct {
		Message *api.Message `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return "", &model.ResponseFormatError{Provider: p.name, Reason: "invalid JSON body", Err: err}
	}
	if envelope.Message == nil {
		return "", &model.ResponseFormatError{Provider: p.name, Reason: "missing message field"}
	}

	return strings.TrimSpace(envelope.Message.Content), nil
}

// GenerateStream sends a streaming chat request. The reply arrives as
// newline-delimited api.ChatResponse frames.
func (p *OllamaProvider) GenerateStream(ctx context.Context, req model.Request) (model.ChunkStream, error) {
	chatReq, err := p.chatRequest(req, true)
	if err != nil {
		return nil, err
	}

	resp, err := postJSON(ctx, p.httpClient, p.name, joinURL(p.baseURL, "/api/chat"), chatReq, nil)
	if err != nil {
		return nil, err
	}

	return NewAssembler(resp.Body, NativeStreamFormat(p.name)), nil
}

func (p *OllamaProvider) chatRequest(req model.Request, stream bool) (*api.ChatRequest, error) {
	modelName := p.GetModel()
	if modelName == "" {
		return nil, &model.ConfigurationError{Provider: p.name, Reason: "model must be set before generating responses"}
	}

	return &api.ChatRequest{
		Model:    modelName,
		Messages: ConvertToOllamaMessages(req.Messages()),
		Stream:   &stream,
	}, nil
}

// ListModels returns the names of locally installed models. Failures are
// logged and reported as an empty list.
func (p *OllamaProvider) ListModels(ctx context.Context) []string {
	resp, err := p.client.List(ctx)
	if err != nil {
		log.Warn().Err(err).Str("provider", p.name).Msg("Failed to list models")
		return []string{}
	}

	names := make([]string, 0, len(resp.Models))
	for _, m := range resp.Models {
		names = append(names, m.Name)
	}
	return names
}

func (p *OllamaProvider) GetModel() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.model
}

func (p *OllamaProvider) SetModel(model string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.model = model
}
