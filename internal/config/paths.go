package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// DataDir returns the path to the Quillway data directory.
// - Windows: %APPDATA%\quillway
// - Other OS: ~/.quillway
func DataDir() string {
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "quillway")
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ".quillway"
	}
	return filepath.Join(home, ".quillway")
}

// DBPath returns the path to the SQLite database file.
func DBPath() string {
	return filepath.Join(DataDir(), "quillway.db")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir() error {
	return os.MkdirAll(DataDir(), 0700)
}
