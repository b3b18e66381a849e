// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package report

import (
	"bytes"
	"fmt"
	"html"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/bureau-foundation/buildconsole/lib/schema/build"
	"github.com/bureau-foundation/buildconsole/lib/tui"
)

// Build is one result to report on.
type Build struct {
	ID          string
	Status      build.Status
	Message     string
	Server      string
	FinishedAt  time.Time
	Categorized build.Categorized
}

// Format selects a renderer.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
	FormatText     Format = "text"
)

// ParseFormat accepts "markdown" (or "md"), "html", and "text".
func ParseFormat(value string) (Format, error) {
	switch strings.ToLower(value) {
	case "markdown", "md":
		return FormatMarkdown, nil
	case "html":
		return FormatHTML, nil
	case "text":
		return FormatText, nil
	}
	return "", fmt.Errorf("unknown report format %q (want markdown, html, or text)", value)
}

// TextOptions controls terminal rendering.
type TextOptions struct {
	Theme tui.Theme
	// Width truncates entry lines; zero disables truncation.
	Width int
	// Profile is the color profile. termenv.Ascii produces plain
	// text.
	Profile termenv.Profile
}

// Render writes builds to w in format.
func Render(w io.Writer, format Format, builds []Build, options TextOptions) error {
	var output string
	switch format {
	case FormatMarkdown:
		output = Markdown(builds)
	case FormatHTML:
		page, err := HTML(builds)
		if err != nil {
			return err
		}
		output = page
	case FormatText:
		output = Text(builds, options)
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
	_, err := io.WriteString(w, output)
	return err
}

// summaryRows pairs each counted category with its count.
func summaryRows(summary build.Summary) []struct {
	entryType build.EntryType
	count     int
} {
	return []struct {
		entryType build.EntryType
		count     int
	}{
		{build.EntryBug, summary.BugsFixed},
		{build.EntryFeature, summary.FeaturesAdded},
		{build.EntryIntelligence, summary.IntelligenceUpdates},
		{build.EntryPackage, summary.PackageUpdates},
		{build.EntryTest, summary.TestsRun},
		{build.EntryDeploy, summary.DeploymentDetails},
		{build.EntryComment, summary.DeveloperComments},
	}
}

func title(b Build) string {
	if b.ID == "" {
		return "Build report"
	}
	return "Build " + b.ID
}

// markdownEscaper backslash-escapes characters that would otherwise
// start Markdown or HTML syntax inside inline text.
var markdownEscaper = strings.NewReplacer(
	`\`, `\\`, "`", "\\`", "*", `\*`, "_", `\_`, "[", `\[`, "]", `\]`,
	"<", `\<`, ">", `\>`, "#", `\#`, "|", `\|`, "~", `\~`,
)

// Markdown renders builds as GitHub-flavored Markdown, one section per
// build.
func Markdown(builds []Build) string {
	var out strings.Builder
	for index, b := range builds {
		if index > 0 {
			out.WriteString("\n---\n\n")
		}
		fmt.Fprintf(&out, "# %s\n\n", markdownEscaper.Replace(title(b)))

		fmt.Fprintf(&out, "- **Status:** %s\n", b.Status)
		fmt.Fprintf(&out, "- **Deployment:** %s\n", b.Categorized.Summary.DeploymentStatus)
		if !b.FinishedAt.IsZero() {
			fmt.Fprintf(&out, "- **Finished:** %s\n", b.FinishedAt.Format(time.RFC3339))
		}
		if b.Categorized.Summary.TotalTime > 0 {
			fmt.Fprintf(&out, "- **Duration:** %s\n", build.FormatDuration(b.Categorized.Summary.TotalTime))
		}
		if b.Server != "" {
			fmt.Fprintf(&out, "- **Server:** %s\n", markdownEscaper.Replace(b.Server))
		}
		if b.Message != "" {
			fmt.Fprintf(&out, "- **Message:** %s\n", markdownEscaper.Replace(b.Message))
		}

		out.WriteString("\n| Category | Count |\n|---|---:|\n")
		for _, row := range summaryRows(b.Categorized.Summary) {
			fmt.Fprintf(&out, "| %s | %d |\n", tui.CategoryLabel(row.entryType), row.count)
		}

		for _, entryType := range build.EntryTypes {
			entries := b.Categorized.List(entryType)
			if len(entries) == 0 {
				continue
			}
			fmt.Fprintf(&out, "\n## %s\n\n", tui.CategoryLabel(entryType))
			for _, entry := range entries {
				fmt.Fprintf(&out, "- %s\n", markdownEscaper.Replace(entry.Message))
			}
		}
	}
	return out.String()
}

var (
	htmlConverter     goldmark.Markdown
	htmlConverterOnce sync.Once
)

func converter() goldmark.Markdown {
	htmlConverterOnce.Do(func() {
		htmlConverter = goldmark.New(goldmark.WithExtensions(extension.GFM))
	})
	return htmlConverter
}

const htmlHeader = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 60rem; margin: 2rem auto; padding: 0 1rem; }
table { border-collapse: collapse; }
th, td { border: 1px solid #ccc; padding: 0.25rem 0.75rem; }
</style>
</head>
<body>
`

const htmlFooter = "</body>\n</html>\n"

// HTML renders builds as a standalone page. Raw HTML in build output
// is escaped, never passed through.
func HTML(builds []Build) (string, error) {
	var body bytes.Buffer
	if err := converter().Convert([]byte(Markdown(builds)), &body); err != nil {
		return "", fmt.Errorf("rendering report HTML: %w", err)
	}
	pageTitle := "Build report"
	if len(builds) == 1 {
		pageTitle = title(builds[0])
	}
	return fmt.Sprintf(htmlHeader, html.EscapeString(pageTitle)) + body.String() + htmlFooter, nil
}

// Text renders builds for a terminal.
func Text(builds []Build, options TextOptions) string {
	theme := options.Theme
	if theme == (tui.Theme{}) {
		theme = tui.DefaultTheme
	}
	renderer := lipgloss.NewRenderer(os.Stdout, termenv.WithProfile(options.Profile))
	renderer.SetColorProfile(options.Profile)

	heading := renderer.NewStyle().Bold(true).Foreground(theme.HeaderForeground)
	faint := renderer.NewStyle().Foreground(theme.FaintText)

	var out strings.Builder
	line := func(text string) {
		if options.Width > 0 {
			text = ansi.Truncate(text, options.Width, "…")
		}
		out.WriteString(text)
		out.WriteByte('\n')
	}

	for index, b := range builds {
		if index > 0 {
			line("")
		}
		status := renderer.NewStyle().Bold(true).Foreground(theme.StatusColor(b.Status)).Render(string(b.Status))
		line(heading.Render(title(b)) + "  " + status)

		var details []string
		if !b.FinishedAt.IsZero() {
			details = append(details, b.FinishedAt.Local().Format("2006-01-02 15:04:05"))
		}
		if b.Categorized.Summary.TotalTime > 0 {
			details = append(details, build.FormatDuration(b.Categorized.Summary.TotalTime))
		}
		if b.Server != "" {
			details = append(details, b.Server)
		}
		if len(details) > 0 {
			line(faint.Render(strings.Join(details, " · ")))
		}
		if b.Message != "" {
			line(renderer.NewStyle().Foreground(theme.StatusError).Render(b.Message))
		}

		var counts []string
		for _, row := range summaryRows(b.Categorized.Summary) {
			if row.count == 0 {
				continue
			}
			style := renderer.NewStyle().Foreground(theme.CategoryColor(row.entryType))
			counts = append(counts, style.Render(fmt.Sprintf("%s %d", tui.CategoryLabel(row.entryType), row.count)))
		}
		if len(counts) == 0 {
			line(faint.Render("No categorized output"))
		} else {
			line(strings.Join(counts, "  "))
		}

		for _, entryType := range build.EntryTypes {
			entries := b.Categorized.List(entryType)
			if len(entries) == 0 {
				continue
			}
			line("")
			line(renderer.NewStyle().Bold(true).Foreground(theme.CategoryColor(entryType)).Render(tui.CategoryLabel(entryType)))
			for _, entry := range entries {
				// Entry text comes from build output and may carry
				// its own escape sequences.
				line("  • " + ansi.Strip(entry.Message))
			}
		}
	}
	return out.String()
}
