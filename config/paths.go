package config

import (
	"os"
	"path/filepath"
	"strings"
)

// GetConfigDir returns ~/.config/autochat, which holds settings.toml.
func GetConfigDir() string {
	return filepath.Join(GetHomeDir(), ".config", "autochat")
}

func GetSettingsFilePath() string {
	return filepath.Join(GetConfigDir(), "settings.toml")
}

// GetHomeDir prefers $HOME so tests and sandboxes can redirect it, then the
// platform lookup, then the filesystem root.
func GetHomeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return home
	}
	return string(filepath.Separator)
}

// ExpandPath expands a leading ~ and environment variables.
func ExpandPath(path string) string {
	if path == "" {
		return ""
	}
	if path == "~" {
		return GetHomeDir()
	}
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		path = filepath.Join(GetHomeDir(), rest)
	}
	return filepath.Clean(os.ExpandEnv(path))
}

// EnsureDir creates path with user-only access.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0700)
}

func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// EnsureDataDirPermissions creates dataDir or tightens it to 0700. The
// history database and API-key-bearing config live there.
func EnsureDataDirPermissions(dataDir string) error {
	info, err := os.Stat(dataDir)
	switch {
	case os.IsNotExist(err):
		return EnsureDir(dataDir)
	case err != nil:
		return err
	case !info.IsDir():
		return &os.PathError{Op: "mkdir", Path: dataDir, Err: os.ErrExist}
	case info.Mode().Perm() != 0700:
		return os.Chmod(dataDir, 0700)
	}
	return nil
}
