package config

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// KeyBindingsConfig holds optional per-action overrides for the conversation view
type KeyBindingsConfig struct {
	Actions map[string]string `toml:"actions"`
}

// actionRegistry maps action names to their default keys.
// Users can override any of these in the [actions] section of keybindings.toml
var actionRegistry = map[string]string{
	"pause":         "space", // Pause or resume
	"narrator":      "n",     // Inject a scene description
	"system":        "s",     // Inject an instruction for every persona
	"copy":          "c",     // Copy the transcript
	"quit":          "q",
	"scroll_top":    "g",
	"scroll_bottom": "G",
}

// DefaultKeybindings returns default configuration
func DefaultKeybindings() *KeyBindingsConfig {
	return &KeyBindingsConfig{Actions: map[string]string{}}
}

// LoadKeybindings loads keybindings from data directory, writing the
// commented template on first use.
func LoadKeybindings(dataDir string) (*KeyBindingsConfig, error) {
	cfg := DefaultKeybindings()
	keybindingsPath := filepath.Join(dataDir, "keybindings.toml")

	if !FileExists(keybindingsPath) {
		if err := CreateDefaultKeybindings(dataDir); err != nil {
			return nil, errors.Wrap(err, "failed to create keybindings")
		}
		return cfg, nil
	}

	meta, err := toml.DecodeFile(keybindingsPath, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse keybindings")
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, errors.Errorf("unknown setting %q in %s", undecoded[0].String(), keybindingsPath)
	}

	if _, err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// CreateDefaultKeybindings creates default keybindings.toml
func CreateDefaultKeybindings(dataDir string) error {
	return writeTemplate(dataDir, "keybindings.toml", GenerateKeybindingsTemplate())
}

// GenerateKeybindingsTemplate returns the default TOML template
func GenerateKeybindingsTemplate() string {
	return `# autochat keybindings for the interactive conversation view
# Location: <data_dir>/keybindings.toml

# Uncomment and change any action. Keys use bubbletea names:
# "space", "ctrl+p", "alt+n", "f2", single letters ("G" is shift+g).
# Ctrl+C always quits.

[actions]
# pause = "space"
# narrator = "n"
# system = "s"
# copy = "c"
# quit = "q"
# scroll_top = "g"
# scroll_bottom = "G"
`
}

// GetActionKey returns the keybinding for a specific action.
// Checks user overrides first, then falls back to action registry defaults.
func (kb *KeyBindingsConfig) GetActionKey(action string) string {
	if kb != nil && kb.Actions != nil {
		if override, exists := kb.Actions[action]; exists && override != "" {
			return override
		}
	}
	return actionRegistry[action]
}

// DisplayActionKey returns a display-friendly version of an action's keybinding
// Example: "ctrl+shift+j" -> "Ctrl+Shift+J"
func (kb *KeyBindingsConfig) DisplayActionKey(action string) string {
	key := kb.GetActionKey(action)
	if key == "" {
		return ""
	}
	return capitalizeKeybinding(key)
}

// capitalizeKeybinding capitalizes a keybinding string for display.
// An uppercase letter means Shift was held:
//
//	"ctrl+shift+j" -> "Ctrl+Shift+J"
//	"G"            -> "Shift+G"
//	"n"            -> "n"
func capitalizeKeybinding(key string) string {
	parts := strings.Split(key, "+")
	if len(parts) == 1 && len(key) == 1 {
		if key[0] >= 'A' && key[0] <= 'Z' {
			return "Shift+" + key
		}
		return key
	}

	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			continue
		}
		result = append(result, strings.ToUpper(part[:1])+part[1:])
	}
	return strings.Join(result, "+")
}

// Validate rejects unknown actions and two actions sharing a key.
// Returns a warning for bindings that are easy to hit by accident.
func (kb *KeyBindingsConfig) Validate() (string, error) {
	for action := range kb.Actions {
		if _, ok := actionRegistry[action]; !ok {
			return "", errors.Errorf("unknown keybinding action %q", action)
		}
	}

	actions := make([]string, 0, len(actionRegistry))
	for action := range actionRegistry {
		actions = append(actions, action)
	}
	sort.Strings(actions)

	seen := make(map[string]string, len(actions))
	for _, action := range actions {
		key := kb.GetActionKey(action)
		if other, dup := seen[key]; dup {
			return "", errors.Errorf("keybinding %q is used by both %s and %s", key, other, action)
		}
		seen[key] = action
	}

	if strings.HasPrefix(kb.GetActionKey("pause"), "ctrl+") {
		return "Warning: Ctrl may conflict with terminal shortcuts (Ctrl+Z, Ctrl+S)", nil
	}
	return "", nil
}
