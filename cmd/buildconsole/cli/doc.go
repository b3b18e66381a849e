// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the command framework behind the buildconsole binary.
//
// A [Command] is a named node with either nested [Command.Subcommands]
// or a Run function. Flags come from a params struct through
// [FlagsFromParams]: tagged fields become pflag entries, embedded
// structs are bound recursively, and types implementing [FlagBinder]
// register their own flags. [Command.Execute] parses flags, routes to
// subcommands, and prints help with examples.
//
// Unknown commands and flags get a "did you mean" suggestion when an
// existing name is within edit distance 3.
//
// Errors returned by commands carry an [ErrorCategory] through
// [ToolError]; [ExitCode] maps a returned error to the process exit
// status (1 for failures, 2 for bad input).
package cli
