// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package categorize classifies build output lines into the console's
// fixed taxonomy. The server runs it over the full output of a build;
// clients run it only when a finished build arrives without
// server-supplied categories.
package categorize

import (
	"strings"

	"github.com/bureau-foundation/buildconsole/lib/schema/build"
)

// rule assigns a type to any line containing one of its markers.
// Matching is case-sensitive.
type rule struct {
	entryType build.EntryType
	markers   []string
}

// rules are tried in order; the first match wins.
var rules = []rule{
	{build.EntryBug, []string{"FIX:", "🐛", "bug"}},
	{build.EntryFeature, []string{"FEAT:", "✨", "feature"}},
	{build.EntryIntelligence, []string{"OMAI", "🧠", "intelligence"}},
	{build.EntryPackage, []string{"package", "npm", "📦"}},
	{build.EntryTest, []string{"test", "🧪", "jest"}},
	{build.EntryDeploy, []string{"deploy", "📤", "build completed"}},
	{build.EntryComment, []string{"//", "COMMENT:"}},
}

// Lines that fit no rule and contain one of these are noise and are
// dropped instead of landing in Other.
var noiseMarkers = []string{"warning", "info:"}

// ClassifyLine returns the category of one output line. The second
// result is false for blank lines and for unmatched noise lines,
// which belong to no category.
func ClassifyLine(line string) (build.EntryType, bool) {
	if strings.TrimSpace(line) == "" {
		return "", false
	}
	for _, rule := range rules {
		if containsAny(line, rule.markers) {
			return rule.entryType, true
		}
	}
	if containsAny(line, noiseMarkers) {
		return "", false
	}
	return build.EntryOther, true
}

// Classify partitions text line by line. Entry messages are the lines
// with surrounding whitespace trimmed. Every list in the result is
// non-nil, each summary count equals its list length, the deployment
// status mirrors status, TotalTime is zero, and RawOutput is text
// unchanged.
//
// Classify is a pure function of its arguments.
func Classify(text string, status build.Status) build.Categorized {
	result := build.Categorized{
		BugsFixed:           []build.Entry{},
		FeaturesAdded:       []build.Entry{},
		IntelligenceUpdates: []build.Entry{},
		PackageUpdates:      []build.Entry{},
		TestResults:         []build.Entry{},
		DeploymentDetails:   []build.Entry{},
		DeveloperComments:   []build.Entry{},
		Other:               []build.Entry{},
		RawOutput:           text,
	}

	for _, line := range strings.Split(text, "\n") {
		entryType, ok := ClassifyLine(line)
		if !ok {
			continue
		}
		result.Append(build.Entry{Type: entryType, Message: strings.TrimSpace(line)})
	}

	result.Recount()
	result.Summary.DeploymentStatus = status.Deployment()
	return result
}

func containsAny(line string, markers []string) bool {
	for _, marker := range markers {
		if strings.Contains(line, marker) {
			return true
		}
	}
	return false
}
