package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

const userConfigFile = "config.toml"

func LoadSystemConfig() (*SystemConfig, error) {
	cfg := DefaultSystemConfig()
	settingsPath := GetSettingsFilePath()

	if !FileExists(settingsPath) {
		if err := CreateDefaultSystemConfig(); err != nil {
			return nil, errors.Wrap(err, "failed to create system config")
		}
		return cfg, nil
	}

	if _, err := toml.DecodeFile(settingsPath, cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", settingsPath)
	}
	return cfg, nil
}

// LoadUserConfig decodes <dataDir>/config.toml over the defaults, so keys the
// file omits keep their default values.
func LoadUserConfig(dataDir string) (*UserConfig, error) {
	cfg := DefaultUserConfig()
	userConfigPath := filepath.Join(dataDir, userConfigFile)

	if !FileExists(userConfigPath) {
		if err := CreateDefaultUserConfig(dataDir); err != nil {
			return nil, errors.Wrap(err, "failed to create user config")
		}
		return cfg, nil
	}

	md, err := toml.DecodeFile(userConfigPath, cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", userConfigPath)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, errors.Errorf("unknown keys in %s: %v", userConfigPath, undecoded)
	}
	return cfg, nil
}

func CreateDefaultSystemConfig() error {
	return writeTemplate(GetConfigDir(), "settings.toml", GenerateSystemConfigTemplate())
}

func CreateDefaultUserConfig(dataDir string) error {
	return writeTemplate(dataDir, userConfigFile, GenerateUserConfigTemplate())
}

// writeTemplate writes content to dir/name unless the file already exists.
// Both are created user-only since config files may carry API keys.
func writeTemplate(dir, name, content string) error {
	if err := EnsureDir(dir); err != nil {
		return errors.Wrapf(err, "failed to create %s", dir)
	}

	path := filepath.Join(dir, name)
	if FileExists(path) {
		return nil
	}
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	return nil
}
