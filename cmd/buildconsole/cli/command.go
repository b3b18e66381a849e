// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"
)

// Command is one node of the command tree.
type Command struct {
	// Name is what the user types to select this command.
	Name string

	// Summary is the one-line description shown in the parent's
	// command listing.
	Summary string

	// Description is the longer text at the top of this command's
	// own help.
	Description string

	// Usage overrides the synthesized usage line.
	Usage string

	// Examples follow the flags in help output.
	Examples []Example

	// Params returns a pointer to the command's params struct. Its
	// tagged fields become the command's flags unless Flags is set.
	Params func() any

	// Flags returns the command's flag set. Called on every parse and
	// help render, so it must return a fresh set bound to the same
	// targets each time.
	Flags func() *pflag.FlagSet

	// Subcommands are selected by the first positional argument.
	Subcommands []*Command

	// Run executes the command with the positional arguments left
	// after flag parsing. If both Run and Subcommands are set, Run
	// handles arguments that name no subcommand.
	Run func(ctx context.Context, args []string, logger *slog.Logger) error

	// Stderr receives help text and logs. Defaults to os.Stderr. Set
	// on the root; children inherit it.
	Stderr io.Writer

	parent *Command
}

// Example is one entry of the help output's example list.
type Example struct {
	Description string
	Command     string
}

// Execute parses args and dispatches to the selected command. The
// logger handed to Run is created once per invocation.
func (c *Command) Execute(ctx context.Context, args []string) error {
	return c.execute(ctx, args, nil)
}

func (c *Command) execute(ctx context.Context, args []string, logger *slog.Logger) error {
	if len(args) > 0 && isHelpFlag(args[0]) {
		c.PrintHelp(c.stderr())
		return nil
	}

	if len(c.Subcommands) > 0 && len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		name := args[0]
		for _, sub := range c.Subcommands {
			if sub.Name == name {
				sub.parent = c
				return sub.execute(ctx, args[1:], logger)
			}
		}
		if c.Run == nil {
			if suggestion := suggestCommand(name, c.Subcommands); suggestion != "" {
				return Validation("unknown command %q (did you mean %q?)\n\nRun '%s --help' for usage.",
					name, suggestion, c.fullName())
			}
			return Validation("unknown command %q\n\nRun '%s --help' for usage.", name, c.fullName())
		}
	}

	if len(c.Subcommands) > 0 && c.Run == nil {
		c.PrintHelp(c.stderr())
		if len(args) == 0 {
			return Validation("subcommand required")
		}
		return Validation("subcommand required (got flag %q)", args[0])
	}

	if flagSet := c.flagSet(); flagSet != nil {
		flagSet.SetOutput(io.Discard)
		if err := flagSet.Parse(args); err != nil {
			message := err.Error()
			if strings.Contains(message, "unknown flag") || strings.Contains(message, "unknown shorthand flag") {
				if suggestion := suggestFlag(args, c.flagSet()); suggestion != "" {
					return Validation("%s (did you mean %s?)\n\nRun '%s --help' for usage.",
						message, suggestion, c.fullName())
				}
			}
			return Validation("%s\n\nRun '%s --help' for usage.", message, c.fullName())
		}
		args = flagSet.Args()
	}

	if c.Run == nil {
		c.PrintHelp(c.stderr())
		return fmt.Errorf("no action defined for %q", c.fullName())
	}
	if logger == nil {
		logger = NewCommandLogger(c.stderr())
	}
	return c.Run(ctx, args, logger.With("command", c.path()))
}

func (c *Command) flagSet() *pflag.FlagSet {
	if c.Flags != nil {
		return c.Flags()
	}
	if c.Params != nil {
		return FlagsFromParams(c.Name, c.Params())
	}
	return nil
}

// PrintHelp writes the command's help text to w.
func (c *Command) PrintHelp(w io.Writer) {
	name := c.fullName()

	if c.Description != "" {
		fmt.Fprintf(w, "%s\n\n", c.Description)
	} else if c.Summary != "" {
		fmt.Fprintf(w, "%s\n\n", c.Summary)
	}

	switch {
	case c.Usage != "":
		fmt.Fprintf(w, "Usage:\n  %s\n", c.Usage)
	case len(c.Subcommands) > 0:
		fmt.Fprintf(w, "Usage:\n  %s <command> [flags]\n", name)
	default:
		fmt.Fprintf(w, "Usage:\n  %s [flags]\n", name)
	}

	if len(c.Subcommands) > 0 {
		fmt.Fprintf(w, "\nCommands:\n")
		table := tabwriter.NewWriter(w, 2, 0, 3, ' ', 0)
		for _, sub := range c.Subcommands {
			fmt.Fprintf(table, "  %s\t%s\n", sub.Name, sub.Summary)
		}
		table.Flush()
	}

	if flagSet := c.flagSet(); flagSet != nil {
		if usage := flagSet.FlagUsages(); usage != "" {
			fmt.Fprintf(w, "\nFlags:\n%s", usage)
		}
	}

	if len(c.Examples) > 0 {
		fmt.Fprintf(w, "\nExamples:\n")
		for _, example := range c.Examples {
			if example.Description != "" {
				fmt.Fprintf(w, "  # %s\n", example.Description)
			}
			fmt.Fprintf(w, "  %s\n", example.Command)
			if example.Description != "" {
				fmt.Fprintln(w)
			}
		}
	}

	if len(c.Subcommands) > 0 {
		fmt.Fprintf(w, "\nRun '%s <command> --help' for more information on a command.\n", name)
	}
}

func (c *Command) stderr() io.Writer {
	for node := c; node != nil; node = node.parent {
		if node.Stderr != nil {
			return node.Stderr
		}
	}
	return os.Stderr
}

// fullName is the space-separated path from the root, e.g.
// "buildconsole history delete".
func (c *Command) fullName() string {
	if c.parent == nil {
		return c.Name
	}
	return c.parent.fullName() + " " + c.Name
}

// path is the command path below the root joined with slashes, for
// log attributes: "history/delete".
func (c *Command) path() string {
	if c.parent == nil {
		return c.Name
	}
	if c.parent.parent == nil {
		return c.Name
	}
	return c.parent.path() + "/" + c.Name
}

func isHelpFlag(arg string) bool {
	return arg == "-h" || arg == "--help" || arg == "help"
}
