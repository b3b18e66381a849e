// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"log/slog"

	"github.com/charmbracelet/x/ansi"

	"github.com/bureau-foundation/buildconsole/cmd/buildconsole/cli"
	"github.com/bureau-foundation/buildconsole/lib/categorize"
	"github.com/bureau-foundation/buildconsole/lib/report"
	"github.com/bureau-foundation/buildconsole/lib/schema/build"
)

type categorizeParams struct {
	cli.JSONOutput
	Status string `flag:"status" default:"success" desc:"build outcome to record: success, error, running, or idle"`
	Format string `flag:"format" default:"text" desc:"output format: text, markdown, or html"`
	Keep   bool   `flag:"keep-ansi" desc:"classify the input without stripping terminal escape sequences"`
}

func categorizeCommand(streams Streams) *cli.Command {
	var params categorizeParams

	return &cli.Command{
		Name:    "categorize",
		Summary: "Classify a saved build log",
		Usage:   "buildconsole categorize [file|-] [flags]",
		Description: `Classify build output into bugs, features, intelligence updates,
package changes, tests, deployment steps, developer comments, and
other lines, using the same rules the console applies when the
server sends no categorized data.

Reads the named file, or stdin when no file (or "-") is given.
Terminal escape sequences are stripped first unless --keep-ansi is
set. --status sets the deployment status recorded in the summary.`,
		Examples: []cli.Example{
			{Description: "Summarize a log file", Command: "buildconsole categorize build.log"},
			{Description: "Markdown summary of a failed build", Command: "npm run build 2>&1 | buildconsole categorize --status error --format markdown"},
		},
		Params: func() any { return &params },
		Run: func(_ context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 1 {
				return cli.Validation("categorize takes at most one file")
			}
			status, ok := build.ParseStatus(params.Status)
			if !ok {
				return cli.Validation("unknown status %q", params.Status)
			}
			format, err := report.ParseFormat(params.Format)
			if err != nil {
				return cli.Validation("%w", err)
			}
			path := "-"
			if len(args) == 1 {
				path = args[0]
			}
			data, err := readInput(streams.Stdin, path)
			if err != nil {
				return err
			}

			text := string(data)
			if !params.Keep {
				text = ansi.Strip(text)
			}
			result := categorize.Classify(text, status)
			logger.Debug("output classified", "lines", result.Total(), "source", path)

			if done, err := params.EmitJSON(streams.Stdout, result); done {
				return err
			}
			name := path
			if name == "-" {
				name = "stdin"
			}
			return report.Render(streams.Stdout, format, []report.Build{{
				ID:          name,
				Status:      status,
				Categorized: result,
			}}, textOptions(streams.Stdout))
		},
	}
}
