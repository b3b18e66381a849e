// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/bureau-foundation/buildconsole/lib/schema/build"
)

// Theme is the color palette shared by the console's terminal output.
// Colors are ANSI 256-color codes.
type Theme struct {
	NormalText lipgloss.Color
	FaintText  lipgloss.Color

	HeaderForeground lipgloss.Color
	BorderColor      lipgloss.Color
	HelpText         lipgloss.Color

	// Build status colors.
	StatusIdle    lipgloss.Color
	StatusRunning lipgloss.Color
	StatusSuccess lipgloss.Color
	StatusError   lipgloss.Color

	// ErrorOutput colors output lines that came from stderr.
	ErrorOutput lipgloss.Color

	// Category accents, indexed in build.EntryTypes order.
	CategoryColors [8]lipgloss.Color
}

// StatusColor returns the color for a build status. Unknown values get
// FaintText.
func (theme Theme) StatusColor(status build.Status) lipgloss.Color {
	switch status {
	case build.StatusIdle:
		return theme.StatusIdle
	case build.StatusRunning:
		return theme.StatusRunning
	case build.StatusSuccess:
		return theme.StatusSuccess
	case build.StatusError:
		return theme.StatusError
	default:
		return theme.FaintText
	}
}

// CategoryColor returns the accent for an output category.
func (theme Theme) CategoryColor(entryType build.EntryType) lipgloss.Color {
	for index, candidate := range build.EntryTypes {
		if candidate == entryType {
			return theme.CategoryColors[index]
		}
	}
	return theme.NormalText
}

// DefaultTheme suits a 256-color terminal with a dark background.
var DefaultTheme = Theme{
	NormalText: lipgloss.Color("252"),
	FaintText:  lipgloss.Color("245"),

	HeaderForeground: lipgloss.Color("255"),
	BorderColor:      lipgloss.Color("240"),
	HelpText:         lipgloss.Color("241"),

	StatusIdle:    lipgloss.Color("245"), // gray
	StatusRunning: lipgloss.Color("220"), // amber
	StatusSuccess: lipgloss.Color("114"), // green
	StatusError:   lipgloss.Color("196"), // red

	ErrorOutput: lipgloss.Color("203"),

	CategoryColors: [8]lipgloss.Color{
		lipgloss.Color("203"), // bugs
		lipgloss.Color("141"), // features
		lipgloss.Color("75"),  // intelligence
		lipgloss.Color("180"), // packages
		lipgloss.Color("114"), // tests
		lipgloss.Color("81"),  // deployment
		lipgloss.Color("250"), // comments
		lipgloss.Color("245"), // other
	},
}

// CategoryLabel is the heading for an output category.
func CategoryLabel(entryType build.EntryType) string {
	switch entryType {
	case build.EntryBug:
		return "🐛 Bugs Fixed"
	case build.EntryFeature:
		return "✨ Features Added"
	case build.EntryIntelligence:
		return "🧠 Intelligence Updates"
	case build.EntryPackage:
		return "📦 Package Updates"
	case build.EntryTest:
		return "🧪 Test Results"
	case build.EntryDeploy:
		return "📤 Deployment Details"
	case build.EntryComment:
		return "💬 Developer Comments"
	default:
		return "📄 Other"
	}
}
