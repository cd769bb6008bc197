package config

import (
	"os"
	"path/filepath"
)

const (
	APP_DIR_NAME = "home-network-monitor"
)

// DataDir is where the sandbox database lives.
func DataDir() string {
	return appDir("XDG_DATA_HOME", ".local", "share")
}

// ConfigDir is where settings.json lives.
func ConfigDir() string {
	return appDir("XDG_CONFIG_HOME", ".config")
}

// appDir resolves the application directory under the XDG base directory named by
// xdgVar, falling back to ~/<fallback...> and then to a dot directory in $HOME.
func appDir(xdgVar string, fallback ...string) string {
	if base := os.Getenv(xdgVar); base != "" {
		return filepath.Join(base, APP_DIR_NAME)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		if currentDir, err := os.Getwd(); err == nil {
			return currentDir
		}
		return "."
	}

	base := filepath.Join(append([]string{homeDir}, fallback...)...)
	if _, err := os.Stat(base); err == nil {
		return filepath.Join(base, APP_DIR_NAME)
	}

	return filepath.Join(homeDir, "."+APP_DIR_NAME)
}
