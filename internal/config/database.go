package config

import (
	"os"
	"path/filepath"
)

const (
	DB_NAME        = "sandbox.sqlite"
	DB_PATH_ENV    = "HOME_NETWORK_MONITOR_DB_PATH"
	MEMORY_DB_PATH = ":memory:"
)

// DBPath is the sandbox appliance database. The environment wins over the data
// directory.
func DBPath() string {
	if dbPath := os.Getenv(DB_PATH_ENV); dbPath != "" {
		return dbPath
	}

	return filepath.Join(DataDir(), DB_NAME)
}
