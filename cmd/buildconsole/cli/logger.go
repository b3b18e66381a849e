// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"
)

// EnvLogLevel overrides the command log level (debug, info, warn,
// error).
const EnvLogLevel = "BUILDCONSOLE_LOG_LEVEL"

// NewCommandLogger returns the logger handed to Run. A terminal gets
// the text handler; anything else (CI, pipes, log collectors) gets
// JSON lines.
func NewCommandLogger(w io.Writer) *slog.Logger {
	options := &slog.HandlerOptions{Level: logLevel(os.Getenv(EnvLogLevel))}
	if IsTerminal(w) {
		return slog.New(slog.NewTextHandler(w, options))
	}
	return slog.New(slog.NewJSONHandler(w, options))
}

// IsTerminal reports whether w is a file attached to a terminal.
func IsTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	return ok && term.IsTerminal(int(file.Fd()))
}

// TerminalWidth returns the column count of w, or fallback when w is
// not a terminal.
func TerminalWidth(w io.Writer, fallback int) int {
	file, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(file.Fd())) {
		return fallback
	}
	width, _, err := term.GetSize(int(file.Fd()))
	if err != nil || width <= 0 {
		return fallback
	}
	return width
}

func logLevel(value string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(value))); err != nil {
		return slog.LevelWarn
	}
	return level
}
