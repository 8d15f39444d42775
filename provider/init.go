package provider

import (
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/rustyorb/auto-chat/config"
	"github.com/rustyorb/auto-chat/model"
)

// InitializeProviders creates the provider registry for the application.
//
// Every enabled section in cfg.Providers becomes one entry keyed by its id
// ("ollama", "lmstudio", "openrouter", "openai", "anthropic"), wrapped
// exactly once with policy. Entries share one http.Client carrying the
// configured request timeout.
//
// Construction never contacts a server. A provider that fails to construct
// (bad base URL) is logged and left out so the rest of the registry stays
// usable; a missing API key is reported later as a ConfigurationError.
//
// Example:
//
//	registry := provider.InitializeProviders(cfg, provider.RetryPolicyFromConfig(cfg.Retry))
//	p := registry["ollama"]
func InitializeProviders(cfg *config.Config, policy RetryPolicy) map[string]model.Provider {
	providers := make(map[string]model.Provider)

	timeout := cfg.Request.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	httpClient := &http.Client{Timeout: timeout}

	for _, entry := range cfg.Providers.Entries() {
		if !entry.Enabled {
			continue
		}

		providerType := MapProviderIDToType(entry.ID)
		p, err := NewProvider(Config{
			Type:        providerType,
			Name:        entry.ID,
			BaseURL:     entry.BaseURL,
			APIKey:      entry.APIKey,
			Model:       entry.DefaultModel,
			Temperature: cfg.Request.Temperature,
			MaxTokens:   cfg.Request.MaxTokens,
			HTTPClient:  httpClient,
		})
		if err != nil {
			log.Warn().Err(err).Str("provider", entry.ID).Msg("Failed to initialize provider")
			continue
		}

		providers[entry.ID] = WithRetry(p, policy)
		log.Debug().Str("provider", entry.ID).Str("type", string(providerType)).Msg("Initialized provider")
	}

	return providers
}

// RetryPolicyFromConfig builds a RetryPolicy from the [retry] section,
// falling back to the defaults for zero values.
func RetryPolicyFromConfig(cfg config.RetryConfig) RetryPolicy {
	policy := DefaultRetryPolicy()
	policy.MaxRetries = cfg.MaxRetries
	if cfg.BaseDelay > 0 {
		policy.BaseDelay = cfg.BaseDelay
	}
	if cfg.Multiplier >= 1 {
		policy.Multiplier = cfg.Multiplier
	}
	if cfg.MaxDelay > 0 {
		policy.MaxDelay = cfg.MaxDelay
	}
	return policy
}
