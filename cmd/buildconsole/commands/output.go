// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"io"
	"time"

	"github.com/muesli/termenv"

	"github.com/bureau-foundation/buildconsole/cmd/buildconsole/cli"
	"github.com/bureau-foundation/buildconsole/lib/buildcache"
	"github.com/bureau-foundation/buildconsole/lib/report"
)

// textOptions picks colors and width for terminal rendering to w.
// Non-terminals get plain, untruncated text.
func textOptions(w io.Writer) report.TextOptions {
	if !cli.IsTerminal(w) {
		return report.TextOptions{Profile: termenv.Ascii}
	}
	return report.TextOptions{
		Profile: termenv.NewOutput(w).EnvColorProfile(),
		Width:   cli.TerminalWidth(w, 0),
	}
}

func reportBuild(entry buildcache.Entry) report.Build {
	return report.Build{
		ID:          entry.BuildID,
		Status:      entry.Status,
		Message:     entry.Message,
		Server:      entry.Server,
		FinishedAt:  entry.FinishedAt,
		Categorized: entry.Categorized,
	}
}

// formatTimestamp renders t in local time, or "-" for the zero time.
func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
