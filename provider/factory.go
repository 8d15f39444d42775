package provider

import (
	"github.com/pkg/errors"
	"github.com/rustyorb/auto-chat/model"
)

// NewProvider creates a provider based on configuration.
//
// This is the centralized factory for every provider type. It dispatches on
// Config.Type:
//   - ProviderTypeOllama: native chat format (OllamaProvider)
//   - ProviderTypeLMStudio, ProviderTypeOpenRouter, ProviderTypeOpenAI:
//     OpenAI-compatible format (CompatProvider)
//   - ProviderTypeAnthropic: Anthropic Messages API (AnthropicProvider)
//
// Returns an error if the type is unknown or the base URL cannot be parsed.
//
// Example:
//
//	p, err := provider.NewProvider(provider.Config{
//	    Type:   provider.ProviderTypeOpenRouter,
//	    APIKey: os.Getenv("OPENROUTER_API_KEY"),
//	    Model:  "meta-llama/llama-3.1-8b-instruct",
//	})
func NewProvider(cfg Config) (model.Provider, error) {
	switch cfg.Type {
	case ProviderTypeOllama:
		return NewOllamaProvider(cfg)
	case ProviderTypeLMStudio, ProviderTypeOpenRouter, ProviderTypeOpenAI:
		return NewCompatProvider(cfg)
	case ProviderTypeAnthropic:
		return NewAnthropicProvider(cfg)
	default:
		return nil, errors.Errorf("unknown provider type: %s", cfg.Type)
	}
}

// MapProviderIDToType converts a config provider id to its ProviderType.
//
// For unknown ids, returns the id cast as ProviderType (the factory will error).
func MapProviderIDToType(id string) ProviderType {
	switch id {
	case "ollama":
		return ProviderTypeOllama
	case "lmstudio", "lm-studio":
		return ProviderTypeLMStudio
	case "openrouter":
		return ProviderTypeOpenRouter
	case "openai":
		return ProviderTypeOpenAI
	case "anthropic":
		return ProviderTypeAnthropic
	default:
		return ProviderType(id)
	}
}
