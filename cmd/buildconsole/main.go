// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Command buildconsole is the operator console for the admin build
// server. See "buildconsole --help".
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bureau-foundation/buildconsole/cmd/buildconsole/cli"
	"github.com/bureau-foundation/buildconsole/cmd/buildconsole/commands"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := commands.Root(commands.StandardStreams()).Execute(ctx, os.Args[1:])
	code, report := cli.ExitCode(err)
	if report {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		switch cli.CategoryOf(err) {
		case cli.CategoryForbidden:
			fmt.Fprintln(os.Stderr, "hint: check token or token_file in the config, or pass --token-file")
		case cli.CategoryTransient:
			fmt.Fprintln(os.Stderr, "hint: the server may be down or unreachable; check server_url or --server")
		}
	}
	return code
}
