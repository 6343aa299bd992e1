package pipeline

import (
	"os"
	"path/filepath"
)

// CacheDir returns the platform-appropriate cache directory.
func CacheDir() string {
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, "cbudget")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".cache", "cbudget")
}

// CachePath returns the full path to the response cache database.
func CachePath() string {
	return filepath.Join(CacheDir(), "responses.db")
}

// LogPath returns the default log file used while the TUI owns the terminal.
func LogPath() string {
	return filepath.Join(CacheDir(), "cbudget.log")
}
