package config

import (
	"os"
	"path/filepath"
)

const appDir = "probegate"

// ConfigHome returns the Probegate config directory, honoring
// XDG_CONFIG_HOME and falling back to ~/.config/probegate.
func ConfigHome() string {
	if base := os.Getenv("XDG_CONFIG_HOME"); base != "" {
		return filepath.Join(base, appDir)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "."+appDir)
	}
	return filepath.Join(home, ".config", appDir)
}

// DataHome returns the Probegate data directory, honoring
// XDG_DATA_HOME and falling back to ~/.local/share/probegate.
func DataHome() string {
	if base := os.Getenv("XDG_DATA_HOME"); base != "" {
		return filepath.Join(base, appDir)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "."+appDir)
	}
	return filepath.Join(home, ".local", "share", appDir)
}

// CookieSessionsPath is the default cookie profile registry location.
func CookieSessionsPath() string {
	return filepath.Join(ConfigHome(), "cookie_sessions.yaml")
}

// CookieDataDir is the default directory cookie files must live under.
func CookieDataDir() string {
	return filepath.Join(DataHome(), "cookies")
}

// PromptsDir holds user-provided prompt guides that override built-ins.
func PromptsDir() string {
	return filepath.Join(ConfigHome(), "prompts")
}
