// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package consoleui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/bureau-foundation/buildconsole/lib/buildstream"
	"github.com/bureau-foundation/buildconsole/lib/report"
	"github.com/bureau-foundation/buildconsole/lib/schema/build"
	"github.com/bureau-foundation/buildconsole/lib/tui"
)

const (
	headerHeight = 1
	footerHeight = 1
)

// View implements tea.Model.
func (model Model) View() string {
	if !model.ready {
		return "Loading..."
	}
	body := lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.NewStyle().Width(model.viewport.Width).Height(model.viewport.Height).Render(model.viewport.View()),
		tui.Scrollbar(model.theme, model.viewport.Height,
			model.viewport.TotalLineCount(), model.viewport.Height, model.viewport.YOffset, model.follow),
	)
	return lipgloss.JoinVertical(lipgloss.Left, model.header(), body, model.footer())
}

func (model Model) header() string {
	title := model.title
	if title == "" {
		title = "build"
	}
	left := lipgloss.NewStyle().Bold(true).Foreground(model.theme.HeaderForeground).Render(title) +
		"  " + model.statusBadge()
	if model.state.BuildID != "" {
		left += "  " + lipgloss.NewStyle().Foreground(model.theme.FaintText).Render(model.state.BuildID)
	}
	right := "output"
	if model.view == ViewCategories {
		right = "categories"
	}
	right = lipgloss.NewStyle().Foreground(model.theme.HelpText).Render(right)
	return fitLine(left, right, model.width)
}

func (model Model) statusBadge() string {
	status := model.state.Status
	style := lipgloss.NewStyle().Bold(true).Foreground(model.theme.StatusColor(status))
	if status == build.StatusRunning {
		return model.spinner.View() + style.Render(string(status))
	}
	return style.Render(string(status))
}

func (model Model) footer() string {
	switch {
	case model.notice != "":
		return ansi.Truncate(lipgloss.NewStyle().Foreground(model.theme.StatusRunning).Render(model.notice), model.width, "…")
	case model.state.Status == build.StatusError && model.state.Message != "":
		return ansi.Truncate(lipgloss.NewStyle().Foreground(model.theme.StatusError).Render(model.state.Message), model.width, "…")
	}
	var parts []string
	for _, binding := range model.keys.shortHelp() {
		help := binding.Help()
		parts = append(parts, help.Key+" "+help.Desc)
	}
	return ansi.Truncate(lipgloss.NewStyle().Foreground(model.theme.HelpText).Render(strings.Join(parts, " · ")), model.width, "…")
}

// body renders the viewport content for the current view.
func (model Model) body() string {
	width := model.viewport.Width
	if model.view == ViewCategories && model.state.Categorized != nil {
		return report.Text([]report.Build{{
			ID:          model.state.BuildID,
			Status:      model.state.Status,
			Message:     model.state.Message,
			Categorized: *model.state.Categorized,
		}}, report.TextOptions{
			Theme:   model.theme,
			Width:   width,
			Profile: lipgloss.ColorProfile(),
		})
	}

	faint := lipgloss.NewStyle().Foreground(model.theme.FaintText)
	if model.state.Output == "" {
		switch model.state.Status {
		case build.StatusRunning:
			return faint.Render("Waiting for output...")
		case build.StatusIdle:
			return faint.Render("No build output. Press r to start a build.")
		}
		return ""
	}

	errorStyle := lipgloss.NewStyle().Foreground(model.theme.ErrorOutput)
	lines := strings.Split(strings.TrimSuffix(model.state.Output, "\n"), "\n")
	for index, line := range lines {
		line = ansi.Hardwrap(line, width, true)
		if strings.HasPrefix(line, buildstream.ErrorPrefix) {
			line = errorStyle.Render(line)
		}
		lines[index] = line
	}
	return strings.Join(lines, "\n")
}

// fitLine places left and right on one line of width columns,
// truncating left when both do not fit.
func fitLine(left, right string, width int) string {
	gap := width - ansi.StringWidth(left) - ansi.StringWidth(right)
	if gap < 1 {
		return ansi.Truncate(left, width, "…")
	}
	return left + strings.Repeat(" ", gap) + right
}
