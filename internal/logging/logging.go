// Package logging configures the process-wide logrus logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Setup sets the log level and destination. An empty path logs to stderr; a
// non-empty path appends to that file, which is how the TUI keeps log output
// off the screen. The returned closer releases the file.
func Setup(level, path string) (io.Closer, error) {
	lvl := log.WarnLevel
	if strings.TrimSpace(level) != "" {
		parsed, err := log.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("logging: %w", err)
		}
		lvl = parsed
	}
	log.SetLevel(lvl)

	if path == "" {
		log.SetOutput(os.Stderr)
		log.SetFormatter(&log.TextFormatter{DisableTimestamp: true})
		return nopCloser{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("logging: creating log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("logging: opening log file: %w", err)
	}
	log.SetOutput(f)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true, DisableColors: true})
	return f, nil
}

// Discard silences all log output.
func Discard() {
	log.SetOutput(io.Discard)
}
