package config

import "time"

const (
	DefaultTopic        = "A casual chat about AI."
	DefaultPersonasFile = "personas.yaml"
)

func DefaultSystemConfig() *SystemConfig {
	return &SystemConfig{
		DataDirectory: "~/.local/share/autochat",
	}
}

func DefaultUserConfig() *UserConfig {
	return &UserConfig{
		PersonasFile: DefaultPersonasFile,
		Providers: ProvidersConfig{
			Ollama:     ProviderConfig{BaseURL: "http://127.0.0.1:11434", Enabled: true},
			LMStudio:   ProviderConfig{BaseURL: "http://localhost:1234/v1", Enabled: true},
			OpenRouter: ProviderConfig{BaseURL: "https://openrouter.ai/api/v1", Enabled: true},
			OpenAI:     ProviderConfig{BaseURL: "https://api.openai.com/v1", Enabled: true},
			Anthropic:  ProviderConfig{BaseURL: "https://api.anthropic.com", Enabled: true},
		},
		Conversation: ConversationConfig{
			MaxTurns:      20,
			HistoryLimit:  20,
			Topic:         DefaultTopic,
			TurnDelay:     time.Second,
			TurnOrder:     "round-robin",
			AutosaveEvery: 5,
		},
		Retry: RetryConfig{
			MaxRetries: 3,
			BaseDelay:  time.Second,
			Multiplier: 2,
			MaxDelay:   30 * time.Second,
		},
		Request: RequestConfig{
			Timeout:     60 * time.Second,
			Temperature: 0.7,
			MaxTokens:   2000,
		},
	}
}

func GenerateSystemConfigTemplate() string {
	return `# autochat System Configuration
# Location: ~/.config/autochat/settings.toml
# This file uses TOML format: https://toml.io

# Directory where the history database, snapshots, personas and user config are stored
data_directory = "~/.local/share/autochat"
`
}

func GenerateUserConfigTemplate() string {
	return `# autochat User Configuration
# Location: <data_directory>/config.toml
# This file uses TOML format: https://toml.io

# Persona definitions (YAML or JSON). Relative paths are resolved against the data directory.
personas_file = "personas.yaml"

[conversation]
max_turns = 20
# Number of most recent messages sent to the model as history
history_limit = 20
topic = "A casual chat about AI."
# Pause between turns
turn_delay = "1s"
# Stream replies fragment by fragment
streaming = false
# "round-robin" or "random"
turn_order = "round-robin"
# Write a snapshot every N accepted turns (0 disables)
autosave_every = 5

[retry]
max_retries = 3
base_delay = "1s"
multiplier = 2.0
max_delay = "30s"

[request]
timeout = "60s"
temperature = 0.7
max_tokens = 2000

# API keys may also come from OPENAI_API_KEY, OPENROUTER_API_KEY and ANTHROPIC_API_KEY.

[providers.ollama]
base_url = "http://127.0.0.1:11434"
enabled = true

[providers.lmstudio]
base_url = "http://localhost:1234/v1"
enabled = true

[providers.openrouter]
base_url = "https://openrouter.ai/api/v1"
enabled = true

[providers.openai]
base_url = "https://api.openai.com/v1"
enabled = true

[providers.anthropic]
base_url = "https://api.anthropic.com"
enabled = true
`
}
