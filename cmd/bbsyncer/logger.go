package main

import (
	"log/slog"
	"os"

	"github.com/kstaniek/bbsyncer/internal/logging"
)

// setupLogger configures the process-wide slog default, text-formatted,
// at debug level when --verbose is set and info otherwise.
func setupLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	l := logging.New("text", level, os.Stderr).With("app", "bbsyncer")
	logging.Set(l)
	return l
}
