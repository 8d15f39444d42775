// Package provider implements the LLM backends behind model.Provider.
//
// autochat talks to two wire-format families plus one vendor SDK:
//
//   - the native chat format served by Ollama (POST /api/chat, NDJSON streaming)
//   - the OpenAI-compatible format shared by LM Studio, OpenRouter and OpenAI
//     (POST /chat/completions, "data: " event streams ending in [DONE])
//   - Anthropic's Messages API through the official SDK
//
// The compatible family is one implementation (CompatProvider) parameterised
// by name, base URL and API key. Vendors differ only in defaults, whether the
// key is mandatory, and how the model list is filtered.
//
// # Errors
//
// Every variant reports failures with the taxonomy in the model package:
//   - model.ConfigurationError: no model selected, missing API key
//   - model.RequestError: transport failure or non-2xx response
//   - model.ResponseFormatError: 2xx body without the expected fields
//
// # Retry
//
// RetryPolicy retries transient RequestErrors with exponential backoff.
// InitializeProviders wraps each registry entry exactly once with WithRetry.
//
// # Usage
//
//	p, err := provider.NewProvider(provider.Config{
//	    Type:    provider.ProviderTypeOllama,
//	    BaseURL: "http://127.0.0.1:11434",
//	    Model:   "llama3.1",
//	})
//	if err != nil {
//	    // handle error
//	}
//	reply, err := p.Generate(ctx, model.Request{Prompt: "Hello", System: "Be brief."})
package provider

import (
	"net/http"
	"time"
)

// ProviderType identifies the provider implementation.
type ProviderType string

const (
	ProviderTypeOllama     ProviderType = "ollama"
	ProviderTypeLMStudio   ProviderType = "lmstudio"
	ProviderTypeOpenRouter ProviderType = "openrouter"
	ProviderTypeOpenAI     ProviderType = "openai"
	ProviderTypeAnthropic  ProviderType = "anthropic"
)

const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 2000
	DefaultTimeout     = 60 * time.Second
)

// Config holds provider-specific configuration.
type Config struct {
	Type ProviderType
	// Name is the registry id reported by Name(). Defaults to Type.
	Name        string
	BaseURL     string
	Model       string
	APIKey      string // Unused for Ollama and optional for LM Studio
	Temperature float64
	MaxTokens   int
	HTTPClient  *http.Client
}

func (c Config) name() string {
	if c.Name != "" {
		return c.Name
	}
	return string(c.Type)
}

func (c Config) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: DefaultTimeout}
}

func (c Config) temperature() float64 {
	if c.Temperature > 0 {
		return c.Temperature
	}
	return DefaultTemperature
}

func (c Config) maxTokens() int64 {
	if c.MaxTokens > 0 {
		return int64(c.MaxTokens)
	}
	return DefaultMaxTokens
}
