// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Scrollbar renders a one-column scrollbar of height rows for a view
// showing visible of total lines starting at offset. When everything
// fits, the thumb fills the track. The thumb takes the running color
// while follow is set (the view tracks new output) and the border
// color otherwise.
func Scrollbar(theme Theme, height, total, visible, offset int, follow bool) string {
	if height <= 0 {
		return ""
	}
	thumbColor := theme.BorderColor
	if follow {
		thumbColor = theme.StatusRunning
	}
	thumb := lipgloss.NewStyle().Foreground(thumbColor).Render("┃")
	track := lipgloss.NewStyle().Foreground(theme.BorderColor).Render("│")

	start, size := 0, height
	if total > visible && total > 0 {
		size = max(1, height*visible/total)
		if scrollable, room := total-visible, height-size; room > 0 {
			start = min(room, max(0, offset)*room/scrollable)
		}
	}

	rows := make([]string, height)
	for row := range rows {
		if row >= start && row < start+size {
			rows[row] = thumb
		} else {
			rows[row] = track
		}
	}
	return strings.Join(rows, "\n")
}
