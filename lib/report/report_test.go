// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"

	"github.com/bureau-foundation/buildconsole/lib/schema/build"
	"github.com/bureau-foundation/buildconsole/lib/tui"
)

func sampleBuild() Build {
	categorized := build.Categorized{
		BugsFixed:         []build.Entry{{Type: build.EntryBug, Message: "fix: null <pointer> in parser"}},
		FeaturesAdded:     []build.Entry{{Type: build.EntryFeature, Message: "feat: add dark | light theme"}},
		TestResults:       []build.Entry{{Type: build.EntryTest, Message: "Tests: 12 passed"}},
		DeploymentDetails: []build.Entry{{Type: build.EntryDeploy, Message: "Upload complete"}},
	}
	categorized.Summary.DeploymentStatus = build.DeploymentSuccess
	categorized.Summary.TotalTime = 65_000
	categorized.Recount()
	return Build{
		ID:          "stream_build_1",
		Status:      build.StatusSuccess,
		Server:      "https://builds.example.com",
		FinishedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Categorized: categorized,
	}
}

func TestParseFormat(t *testing.T) {
	t.Parallel()
	for input, want := range map[string]Format{
		"markdown": FormatMarkdown,
		"md":       FormatMarkdown,
		"HTML":     FormatHTML,
		"text":     FormatText,
	} {
		got, err := ParseFormat(input)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v; want %q", input, got, err, want)
		}
	}
	if _, err := ParseFormat("pdf"); err == nil {
		t.Error("ParseFormat(pdf) succeeded")
	}
}

func TestMarkdown(t *testing.T) {
	t.Parallel()
	output := Markdown([]Build{sampleBuild()})

	for _, want := range []string{
		"# Build stream\\_build\\_1\n",
		"- **Status:** success\n",
		"- **Duration:** 1m 5s\n",
		"| 🐛 Bugs Fixed | 1 |\n",
		"| 🧪 Test Results | 1 |\n",
		"## ✨ Features Added\n\n- feat: add dark \\| light theme\n",
		"- fix: null \\<pointer\\> in parser\n",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("markdown missing %q:\n%s", want, output)
		}
	}
	if strings.Contains(output, "## 💬 Developer Comments") {
		t.Error("empty category rendered a section")
	}
}

func TestMarkdownSeparatesBuilds(t *testing.T) {
	t.Parallel()
	second := sampleBuild()
	second.ID = "stream_build_2"
	output := Markdown([]Build{sampleBuild(), second})
	if got := strings.Count(output, "\n---\n"); got != 1 {
		t.Errorf("separator count = %d, want 1", got)
	}
}

func TestHTML(t *testing.T) {
	t.Parallel()
	page, err := HTML([]Build{sampleBuild()})
	if err != nil {
		t.Fatalf("HTML: %v", err)
	}
	for _, want := range []string{
		"<!DOCTYPE html>",
		"<title>Build stream_build_1</title>",
		"<table>",
		"<h2>✨ Features Added</h2>",
		"&lt;pointer&gt;",
	} {
		if !strings.Contains(page, want) {
			t.Errorf("html missing %q", want)
		}
	}
	if strings.Contains(page, "<pointer>") {
		t.Error("build output was passed through as raw HTML")
	}
}

func TestTextPlain(t *testing.T) {
	t.Parallel()
	output := ansi.Strip(Text([]Build{sampleBuild()}, TextOptions{Profile: termenv.Ascii}))

	for _, want := range []string{
		"Build stream_build_1  success",
		"1m 5s",
		"🐛 Bugs Fixed 1",
		"  • Upload complete",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("text missing %q:\n%s", want, output)
		}
	}
}

func TestTextTruncates(t *testing.T) {
	t.Parallel()
	b := sampleBuild()
	b.Categorized.Other = []build.Entry{{Type: build.EntryOther, Message: strings.Repeat("x", 200)}}
	output := Text([]Build{b}, TextOptions{Profile: termenv.Ascii, Width: 40, Theme: tui.DefaultTheme})
	for _, line := range strings.Split(strings.TrimRight(output, "\n"), "\n") {
		if width := ansi.StringWidth(line); width > 40 {
			t.Errorf("line width %d exceeds 40: %q", width, line)
		}
	}
}

func TestTextWithoutCategories(t *testing.T) {
	t.Parallel()
	output := ansi.Strip(Text([]Build{{ID: "b", Status: build.StatusError, Message: "Build failed"}}, TextOptions{Profile: termenv.Ascii}))
	if !strings.Contains(output, "No categorized output") || !strings.Contains(output, "Build failed") {
		t.Errorf("unexpected output:\n%s", output)
	}
}

func TestRender(t *testing.T) {
	t.Parallel()
	var buffer bytes.Buffer
	if err := Render(&buffer, FormatMarkdown, []Build{sampleBuild()}, TextOptions{}); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.HasPrefix(buffer.String(), "# Build") {
		t.Errorf("unexpected markdown prefix: %q", buffer.String()[:20])
	}
	if err := Render(&buffer, Format("pdf"), nil, TextOptions{}); err == nil {
		t.Error("Render accepted an unknown format")
	}
}
