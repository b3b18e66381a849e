// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"log/slog"
	"text/tabwriter"

	"github.com/bureau-foundation/buildconsole/cmd/buildconsole/cli"
	"github.com/bureau-foundation/buildconsole/lib/buildapi"
	"github.com/bureau-foundation/buildconsole/lib/schema/build"
)

func historyCommand(streams Streams) *cli.Command {
	return &cli.Command{
		Name:    "history",
		Summary: "List and prune the server's build history",
		Subcommands: []*cli.Command{
			historyListCommand(streams),
			historyDeleteCommand(streams),
			historyClearCommand(streams),
		},
	}
}

type historyListParams struct {
	Connection
	cli.JSONOutput
	Limit  int  `flag:"limit,n" desc:"show at most this many builds (0 for all the server returns)"`
	Failed bool `flag:"failed" desc:"show only failed builds"`
}

func historyListCommand(streams Streams) *cli.Command {
	var params historyListParams

	return &cli.Command{
		Name:    "list",
		Summary: "List recent builds, newest first",
		Params:  func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return cli.Validation("history list takes no arguments")
			}
			_, api, err := params.connect(logger)
			if err != nil {
				return err
			}
			logs, err := api.Logs(ctx)
			if err != nil {
				return fmt.Errorf("listing builds: %w", err)
			}

			var shown []build.Log
			for _, log := range logs {
				if params.Failed && log.Success {
					continue
				}
				shown = append(shown, log)
				if params.Limit > 0 && len(shown) == params.Limit {
					break
				}
			}

			if done, err := params.EmitJSON(streams.Stdout, shown); done {
				return err
			}
			if len(shown) == 0 {
				fmt.Fprintln(streams.Stdout, "No builds recorded.")
				return nil
			}
			table := tabwriter.NewWriter(streams.Stdout, 2, 0, 2, ' ', 0)
			fmt.Fprintln(table, "ID\tSTARTED\tRESULT\tDURATION\tBY")
			for _, log := range shown {
				result := "success"
				if !log.Success {
					result = "failed"
				}
				duration := log.DurationFormatted
				if duration == "" {
					duration = build.FormatDuration(log.Duration)
				}
				by := log.TriggeredBy
				if by == "" {
					by = "-"
				}
				fmt.Fprintf(table, "%s\t%s\t%s\t%s\t%s\n", log.ID, formatTimestamp(log.Timestamp), result, duration, by)
			}
			return table.Flush()
		},
	}
}

type historyDeleteParams struct {
	Connection
}

func historyDeleteCommand(streams Streams) *cli.Command {
	var params historyDeleteParams

	return &cli.Command{
		Name:    "delete",
		Summary: "Delete one or more builds from the history",
		Usage:   "buildconsole history delete <build-id>... [flags]",
		Params:  func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) == 0 {
				return cli.Validation("at least one build ID is required")
			}
			_, api, err := params.connect(logger)
			if err != nil {
				return err
			}
			history := buildapi.NewHistory(api)
			if err := history.Refresh(ctx); err != nil {
				return err
			}
			for _, id := range args {
				if err := history.Delete(ctx, id); err != nil {
					if buildapi.IsNotFound(err) {
						return cli.NotFound("build %s not found", id)
					}
					return err
				}
				fmt.Fprintf(streams.Stdout, "deleted %s\n", id)
			}
			logger.Info("builds deleted", "count", len(args), "remaining", len(history.Entries()))
			return nil
		},
	}
}

type historyClearParams struct {
	Connection
	Yes bool `flag:"yes,y" desc:"confirm removal of every history record"`
}

func historyClearCommand(streams Streams) *cli.Command {
	var params historyClearParams

	return &cli.Command{
		Name:    "clear",
		Summary: "Delete the entire build history",
		Description: `Delete every build record on the server. This cannot be undone, so
the command refuses to run without --yes.`,
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return cli.Validation("history clear takes no arguments")
			}
			if !params.Yes {
				return cli.Validation("refusing to clear build history without --yes")
			}
			_, api, err := params.connect(logger)
			if err != nil {
				return err
			}
			history := buildapi.NewHistory(api)
			if err := history.Clear(ctx); err != nil {
				return err
			}
			fmt.Fprintln(streams.Stdout, "build history cleared")
			return nil
		},
	}
}
