package config

// ProvidersConfig has one fixed section per supported backend, so defaults
// survive a config file that only mentions some of them.
type ProvidersConfig struct {
	Ollama     ProviderConfig `toml:"ollama"`
	LMStudio   ProviderConfig `toml:"lmstudio"`
	OpenRouter ProviderConfig `toml:"openrouter"`
	OpenAI     ProviderConfig `toml:"openai"`
	Anthropic  ProviderConfig `toml:"anthropic"`
}

// ProviderEntry pairs a provider id with its configuration.
type ProviderEntry struct {
	ID string
	ProviderConfig
}

var providerIDs = []string{"ollama", "lmstudio", "openrouter", "openai", "anthropic"}

// ProviderIDs returns the known provider ids in display order.
func ProviderIDs() []string {
	return append([]string(nil), providerIDs...)
}

// Entries returns every provider section in display order.
func (p *ProvidersConfig) Entries() []ProviderEntry {
	entries := make([]ProviderEntry, 0, len(providerIDs))
	for _, id := range providerIDs {
		cfg, _ := p.Get(id)
		entries = append(entries, ProviderEntry{ID: id, ProviderConfig: cfg})
	}
	return entries
}

// Get returns the section for id.
func (p *ProvidersConfig) Get(id string) (ProviderConfig, bool) {
	section := p.section(id)
	if section == nil {
		return ProviderConfig{}, false
	}
	return *section, true
}

func (p *ProvidersConfig) section(id string) *ProviderConfig {
	switch id {
	case "ollama":
		return &p.Ollama
	case "lmstudio":
		return &p.LMStudio
	case "openrouter":
		return &p.OpenRouter
	case "openai":
		return &p.OpenAI
	case "anthropic":
		return &p.Anthropic
	default:
		return nil
	}
}

// GetProviderDisplayName returns the display name for a provider
func GetProviderDisplayName(providerID string) string {
	switch providerID {
	case "ollama":
		return "Ollama"
	case "lmstudio":
		return "LM Studio"
	case "openrouter":
		return "OpenRouter"
	case "anthropic":
		return "Anthropic"
	case "openai":
		return "OpenAI"
	default:
		return providerID
	}
}
