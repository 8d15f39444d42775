package provider

import (
	"testing"

	"github.com/rustyorb/auto-chat/config"
	"github.com/rustyorb/auto-chat/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		expectError bool
		expectType  any
	}{
		{
			name:       "ollama provider with defaults",
			config:     Config{Type: ProviderTypeOllama},
			expectType: &OllamaProvider{},
		},
		{
			name:       "lmstudio provider",
			config:     Config{Type: ProviderTypeLMStudio, Model: "local"},
			expectType: &CompatProvider{},
		},
		{
			name:       "openrouter provider",
			config:     Config{Type: ProviderTypeOpenRouter, APIKey: "k"},
			expectType: &CompatProvider{},
		},
		{
			name:       "openai provider",
			config:     Config{Type: ProviderTypeOpenAI, Model: "gpt-4o-mini", APIKey: "test-key"},
			expectType: &CompatProvider{},
		},
		{
			name:       "anthropic provider",
			config:     Config{Type: ProviderTypeAnthropic, APIKey: "test-key"},
			expectType: &AnthropicProvider{},
		},
		{
			name:        "unknown provider type",
			config:      Config{Type: ProviderType("unknown")},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProvider(tt.config)
			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, p)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.expectType, p)
			assert.Equal(t, string(tt.config.Type), p.Name())
		})
	}
}

func TestMapProviderIDToType(t *testing.T) {
	assert.Equal(t, ProviderTypeOllama, MapProviderIDToType("ollama"))
	assert.Equal(t, ProviderTypeLMStudio, MapProviderIDToType("lm-studio"))
	assert.Equal(t, ProviderTypeOpenRouter, MapProviderIDToType("openrouter"))
	assert.Equal(t, ProviderType("custom"), MapProviderIDToType("custom"))
}

func TestParseModelRef(t *testing.T) {
	ref, err := ParseModelRef("ollama:llama3.1:8b")
	require.NoError(t, err)
	assert.Equal(t, ModelRef{Provider: "ollama", Model: "llama3.1:8b"}, ref)
	assert.Equal(t, "ollama:llama3.1:8b", ref.String())

	for _, bad := range []string{"", "ollama", ":model", "ollama:"} {
		_, err := ParseModelRef(bad)
		assert.Error(t, err, bad)
	}
}

func TestInitializeProviders(t *testing.T) {
	cfg := &config.Config{UserConfig: *config.DefaultUserConfig()}
	cfg.Providers.Anthropic.Enabled = false
	cfg.Providers.Ollama.DefaultModel = "llama3.1"

	registry := InitializeProviders(cfg, DefaultRetryPolicy())
	assert.Len(t, registry, 4)
	assert.NotContains(t, registry, "anthropic")

	ollama := registry["ollama"]
	require.NotNil(t, ollama)
	assert.Equal(t, "ollama", ollama.Name())
	assert.Equal(t, "llama3.1", ollama.GetModel())
	assert.IsType(t, &OllamaProvider{}, Unwrap(ollama))
	assert.NotSame(t, ollama, Unwrap(ollama), "registry entries are wrapped")

	var _ model.Provider = registry["openai"]
}

func TestRetryPolicyFromConfig(t *testing.T) {
	policy := RetryPolicyFromConfig(config.RetryConfig{MaxRetries: 5})
	assert.Equal(t, 5, policy.MaxRetries)
	assert.Equal(t, DefaultRetryPolicy().BaseDelay, policy.BaseDelay)
	assert.Equal(t, DefaultRetryPolicy().MaxDelay, policy.MaxDelay)
}
