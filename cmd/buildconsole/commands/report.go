// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/bureau-foundation/buildconsole/cmd/buildconsole/cli"
	"github.com/bureau-foundation/buildconsole/lib/buildcache"
	"github.com/bureau-foundation/buildconsole/lib/report"
)

type reportParams struct {
	Connection
	Format string `flag:"format" default:"markdown" desc:"output format: markdown, html, or text"`
	Last   int    `flag:"last,n" default:"1" desc:"number of cached builds to include, newest first (0 for all)"`
	Output string `flag:"output,o" desc:"write the report to this file instead of stdout"`
}

func reportCommand(streams Streams) *cli.Command {
	var params reportParams

	return &cli.Command{
		Name:    "report",
		Summary: "Render cached build results as Markdown, HTML, or text",
		Usage:   "buildconsole report [build-id...] [flags]",
		Description: `Render the categorized results of builds in the local cache.

With build IDs, reports those builds. Otherwise reports the newest
--last builds. The cache holds the results of builds run from this
console; it needs no server connection.`,
		Examples: []cli.Example{
			{Description: "Markdown release notes for the latest build", Command: "buildconsole report > notes.md"},
			{Description: "HTML page covering the last five builds", Command: "buildconsole report --format html --last 5 -o builds.html"},
		},
		Params: func() any { return &params },
		Run: func(_ context.Context, args []string, logger *slog.Logger) error {
			format, err := report.ParseFormat(params.Format)
			if err != nil {
				return cli.Validation("%w", err)
			}
			if params.Last < 0 {
				return cli.Validation("--last must not be negative")
			}
			cfg, err := params.load()
			if err != nil {
				return err
			}
			cache, err := openCache(cfg, logger)
			if err != nil {
				return err
			}

			var entries []buildcache.Entry
			if len(args) > 0 {
				for _, id := range args {
					entry, err := cache.Get(id)
					if errors.Is(err, buildcache.ErrNotFound) {
						return cli.NotFound("build %s is not in the local cache", id)
					}
					if err != nil {
						return cli.Internal("%w", err)
					}
					entries = append(entries, entry)
				}
			} else {
				if entries, err = cache.List(params.Last); err != nil {
					return cli.Internal("reading result cache: %w", err)
				}
				if len(entries) == 0 {
					return cli.NotFound("no cached builds in %s", cache.Directory())
				}
			}

			builds := make([]report.Build, len(entries))
			for i, entry := range entries {
				builds[i] = reportBuild(entry)
			}

			var w io.Writer = streams.Stdout
			if params.Output != "" {
				file, err := os.Create(params.Output)
				if err != nil {
					return cli.Internal("creating %s: %w", params.Output, err)
				}
				defer file.Close()
				w = file
			}
			if err := report.Render(w, format, builds, textOptions(w)); err != nil {
				return cli.Internal("rendering report: %w", err)
			}
			if params.Output != "" {
				fmt.Fprintf(streams.Stderr, "wrote %d build(s) to %s\n", len(builds), params.Output)
			}
			return nil
		},
	}
}
