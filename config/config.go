package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
)

type SystemConfig struct {
	DataDirectory string `toml:"data_directory"`
}

type ProviderConfig struct {
	BaseURL      string `toml:"base_url"`
	APIKey       string `toml:"api_key,omitempty"`
	DefaultModel string `toml:"default_model,omitempty"`
	Enabled      bool   `toml:"enabled"`
}

type ConversationConfig struct {
	MaxTurns      int           `toml:"max_turns"`
	HistoryLimit  int           `toml:"history_limit"`
	Topic         string        `toml:"topic"`
	TurnDelay     time.Duration `toml:"turn_delay"`
	Streaming     bool          `toml:"streaming"`
	TurnOrder     string        `toml:"turn_order"`
	AutosaveEvery int           `toml:"autosave_every"`
}

type RetryConfig struct {
	MaxRetries int           `toml:"max_retries"`
	BaseDelay  time.Duration `toml:"base_delay"`
	Multiplier float64       `toml:"multiplier"`
	MaxDelay   time.Duration `toml:"max_delay"`
}

type RequestConfig struct {
	Timeout     time.Duration `toml:"timeout"`
	Temperature float64       `toml:"temperature"`
	MaxTokens   int           `toml:"max_tokens"`
}

type UserConfig struct {
	PersonasFile string             `toml:"personas_file"`
	Providers    ProvidersConfig    `toml:"providers"`
	Conversation ConversationConfig `toml:"conversation"`
	Retry        RetryConfig        `toml:"retry"`
	Request      RequestConfig      `toml:"request"`
}

type Config struct {
	DataDirectory string
	UserConfig
}

var Debug = false

func (c *Config) DataDir() string {
	return ExpandPath(c.DataDirectory)
}

// PersonasPath resolves personas_file; relative paths are relative to the
// data directory.
func (c *Config) PersonasPath() string {
	path := c.PersonasFile
	if path == "" {
		path = DefaultPersonasFile
	}
	path = ExpandPath(path)
	if !filepath.IsAbs(path) {
		path = filepath.Join(c.DataDir(), path)
	}
	return path
}

// HistoryDBPath is the SQLite transcript history inside the data directory.
func (c *Config) HistoryDBPath() string {
	return filepath.Join(c.DataDir(), "history.db")
}

// SnapshotsDir holds autosave snapshots inside the data directory.
func (c *Config) SnapshotsDir() string {
	return filepath.Join(c.DataDir(), "snapshots")
}

func (c *Config) applyEnvOverrides() {
	if host := os.Getenv("OLLAMA_HOST"); host != "" {
		if !strings.Contains(host, "://") {
			host = "http://" + host
		}
		c.Providers.Ollama.BaseURL = host
	}
	if base := os.Getenv("LMSTUDIO_BASE_URL"); base != "" {
		c.Providers.LMStudio.BaseURL = base
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.Providers.OpenAI.APIKey = key
	}
	if key := os.Getenv("OPENROUTER_API_KEY"); key != "" {
		c.Providers.OpenRouter.APIKey = key
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		c.Providers.Anthropic.APIKey = key
	}
}

func CheckDebug() bool {
	debug := os.Getenv("AUTOCHAT_DEBUG")
	return debug == "true" || debug == "1"
}

// Load reads settings.toml and the user config it points at, creating
// commented defaults for whichever is missing, then applies environment
// overrides.
func Load() (*Config, error) {
	return LoadWithDataDir("")
}

// LoadWithDataDir is Load with the data directory forced to dataDir when it
// is not empty. Precedence: dataDir, AUTOCHAT_DATA_DIR, settings.toml.
func LoadWithDataDir(dataDir string) (*Config, error) {
	systemCfg, err := LoadSystemConfig()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load system config")
	}

	cfg := &Config{DataDirectory: systemCfg.DataDirectory}
	if env := os.Getenv("AUTOCHAT_DATA_DIR"); env != "" {
		cfg.DataDirectory = env
	}
	if dataDir != "" {
		cfg.DataDirectory = dataDir
	}

	dataDir = cfg.DataDir()
	if err := EnsureDir(dataDir); err != nil {
		return nil, errors.Wrap(err, "failed to create data directory")
	}
	if err := EnsureDataDirPermissions(dataDir); err != nil {
		return nil, errors.Wrap(err, "failed to set data directory permissions")
	}

	userCfg, err := LoadUserConfig(dataDir)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load user config")
	}
	cfg.UserConfig = *userCfg

	cfg.applyEnvOverrides()
	if CheckDebug() {
		Debug = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the engine cannot run with.
func (c *Config) Validate() error {
	conv := c.Conversation
	switch {
	case conv.MaxTurns <= 0:
		return errors.Errorf("conversation.max_turns must be positive, got %d", conv.MaxTurns)
	case conv.HistoryLimit <= 0:
		return errors.Errorf("conversation.history_limit must be positive, got %d", conv.HistoryLimit)
	case conv.TurnDelay < 0:
		return errors.Errorf("conversation.turn_delay must not be negative")
	case conv.TurnOrder != "" && conv.TurnOrder != "round-robin" && conv.TurnOrder != "random":
		return errors.Errorf("conversation.turn_order must be round-robin or random, got %q", conv.TurnOrder)
	case c.Retry.MaxRetries < 0:
		return errors.Errorf("retry.max_retries must not be negative")
	case c.Retry.Multiplier != 0 && c.Retry.Multiplier < 1:
		return errors.Errorf("retry.multiplier must be at least 1, got %v", c.Retry.Multiplier)
	case c.Request.Timeout < 0:
		return errors.Errorf("request.timeout must not be negative")
	}
	return nil
}
