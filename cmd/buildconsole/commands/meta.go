// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"log/slog"
	"text/tabwriter"

	"github.com/bureau-foundation/buildconsole/cmd/buildconsole/cli"
	"github.com/bureau-foundation/buildconsole/lib/schema/build"
)

type metaParams struct {
	Connection
	cli.JSONOutput
}

func metaCommand(streams Streams) *cli.Command {
	var params metaParams

	return &cli.Command{
		Name:    "meta",
		Summary: "Show build statistics",
		Description: `Show totals over the server's build history: build count, success
rate, average duration, and the most recent build.`,
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return cli.Validation("meta takes no arguments")
			}
			_, api, err := params.connect(logger)
			if err != nil {
				return err
			}
			meta, err := api.Meta(ctx)
			if err != nil {
				return fmt.Errorf("reading build statistics: %w", err)
			}
			if done, err := params.EmitJSON(streams.Stdout, meta); done {
				return err
			}

			average := meta.AverageDurationFormatted
			if average == "" {
				average = build.FormatDuration(meta.AverageDuration)
			}
			table := tabwriter.NewWriter(streams.Stdout, 2, 0, 2, ' ', 0)
			fmt.Fprintf(table, "builds\t%d\n", meta.TotalBuilds)
			fmt.Fprintf(table, "succeeded\t%d\n", meta.SuccessfulBuilds)
			fmt.Fprintf(table, "failed\t%d\n", meta.FailedBuilds)
			fmt.Fprintf(table, "success rate\t%s%%\n", meta.SuccessRate)
			fmt.Fprintf(table, "average duration\t%s\n", average)
			if last := meta.LastBuild; last != nil {
				result := "success"
				if !last.Success {
					result = "failed"
				}
				fmt.Fprintf(table, "last build\t%s (%s, %s)\n", last.ID, result, formatTimestamp(last.Timestamp))
			}
			return table.Flush()
		},
	}
}
