package main

import (
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
)

func getLogFilePath() (string, error) {
	dir, err := gap.NewScope(gap.User, "koko").CacheDir()
	if err != nil {
		return "", err //nolint:wrapcheck
	}
	return filepath.Join(dir, "koko.log"), nil
}

// setupLog sends log output to a file in the user cache dir, since stdout
// belongs to the TUI. The returned func closes the file.
func setupLog() (func() error, error) {
	log.SetOutput(io.Discard)

	logFile, err := getLogFilePath()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil { //nolint:gosec
		// log disabled
		return func() error { return nil }, nil
	}
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644) //nolint:gosec
	if err != nil {
		// log disabled
		return func() error { return nil }, nil
	}
	log.SetOutput(f)
	log.SetLevel(log.InfoLevel)
	return f.Close, nil
}

// setLogLevel applies the debug setting once flags and config are known.
// Headless commands log warnings and errors to w instead of the log file.
func setLogLevel(debug bool, headless bool, w io.Writer) {
	if headless {
		log.SetOutput(w)
	}
	switch {
	case debug:
		log.SetLevel(log.DebugLevel)
	case headless:
		log.SetLevel(log.WarnLevel)
	default:
		log.SetLevel(log.InfoLevel)
	}
}
