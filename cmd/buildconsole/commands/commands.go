// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands assembles the buildconsole command tree: streaming
// and classic builds, server configuration, build history, and the
// offline categorize and report tools that work from the local result
// cache.
package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/bureau-foundation/buildconsole/cmd/buildconsole/cli"
	"github.com/bureau-foundation/buildconsole/lib/version"
)

// Streams are the process's standard streams. Tests substitute
// buffers.
type Streams struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// StandardStreams returns os.Stdin, os.Stdout and os.Stderr.
func StandardStreams() Streams {
	return Streams{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr}
}

// Root returns the buildconsole command tree writing to streams.
func Root(streams Streams) *cli.Command {
	return &cli.Command{
		Name: "buildconsole",
		Description: `buildconsole: operator console for the admin build server.

Trigger builds and follow their output live, inspect and edit the
server's build configuration, browse and prune build history, and
classify build output into bugs, features, package, test, and deploy
entries.

Server address and credentials come from
$XDG_CONFIG_HOME/buildconsole/config.yaml (override with --config or
BUILDCONSOLE_CONFIG) and can be overridden per command with --server
and --token-file.`,
		Stderr: streams.Stderr,
		Subcommands: []*cli.Command{
			runCommand(streams),
			configCommand(streams),
			historyCommand(streams),
			metaCommand(streams),
			categorizeCommand(streams),
			reportCommand(streams),
			lastCommand(streams),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(_ context.Context, _ []string, _ *slog.Logger) error {
					fmt.Fprintf(streams.Stdout, "buildconsole %s\n", version.Full())
					return nil
				},
			},
		},
		Examples: []cli.Example{
			{Description: "Run a build and follow it", Command: "buildconsole run"},
			{Description: "Follow a build in the full-screen view", Command: "buildconsole run --tui"},
			{Description: "Summarize a saved build log", Command: "buildconsole categorize build.log"},
		},
	}
}
