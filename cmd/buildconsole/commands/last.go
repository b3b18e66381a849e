// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bureau-foundation/buildconsole/cmd/buildconsole/cli"
	"github.com/bureau-foundation/buildconsole/lib/buildcache"
	"github.com/bureau-foundation/buildconsole/lib/report"
)

type lastParams struct {
	Connection
	cli.JSONOutput
	Raw bool `flag:"raw" desc:"print the raw build output instead of the summary"`
}

func lastCommand(streams Streams) *cli.Command {
	var params lastParams

	return &cli.Command{
		Name:    "last",
		Summary: "Show the most recent cached build",
		Params:  func() any { return &params },
		Run: func(_ context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return cli.Validation("last takes no arguments")
			}
			cfg, err := params.load()
			if err != nil {
				return err
			}
			cache, err := openCache(cfg, logger)
			if err != nil {
				return err
			}
			entry, err := cache.Latest()
			if errors.Is(err, buildcache.ErrNotFound) {
				return cli.NotFound("no cached builds in %s", cache.Directory())
			}
			if err != nil {
				return cli.Internal("reading result cache: %w", err)
			}

			if done, err := params.EmitJSON(streams.Stdout, runResult{
				BuildID:         entry.BuildID,
				Status:          entry.Status,
				Message:         entry.Message,
				Output:          entry.Output,
				CategorizedData: &entry.Categorized,
			}); done {
				return err
			}
			if params.Raw {
				fmt.Fprint(streams.Stdout, entry.Output)
				if !strings.HasSuffix(entry.Output, "\n") {
					fmt.Fprintln(streams.Stdout)
				}
				return nil
			}
			fmt.Fprint(streams.Stdout, report.Text([]report.Build{reportBuild(entry)}, textOptions(streams.Stdout)))
			return nil
		},
	}
}
