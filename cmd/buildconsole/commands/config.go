// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/tidwall/jsonc"

	"github.com/bureau-foundation/buildconsole/cmd/buildconsole/cli"
	"github.com/bureau-foundation/buildconsole/lib/schema/build"
)

func configCommand(streams Streams) *cli.Command {
	return &cli.Command{
		Name:    "config",
		Summary: "Show or change the server's build configuration",
		Description: `Show or change the build configuration stored on the server.

The stored configuration applies to every build started afterwards,
from this console or from the web panel.`,
		Subcommands: []*cli.Command{
			configShowCommand(streams),
			configSetCommand(streams),
		},
	}
}

type configShowParams struct {
	Connection
	cli.JSONOutput
}

func configShowCommand(streams Streams) *cli.Command {
	var params configShowParams

	return &cli.Command{
		Name:    "show",
		Summary: "Print the stored build configuration",
		Params:  func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return cli.Validation("config show takes no arguments")
			}
			_, api, err := params.connect(logger)
			if err != nil {
				return err
			}
			current, err := api.GetConfig(ctx)
			if err != nil {
				return fmt.Errorf("reading build configuration: %w", err)
			}
			if done, err := params.EmitJSON(streams.Stdout, current); done {
				return err
			}
			printConfig(streams.Stdout, current)
			return nil
		},
	}
}

type configSetParams struct {
	Connection
	cli.JSONOutput
	File string `flag:"file,f" desc:"JSON or JSONC file with the fields to change (- for stdin)"`
}

func configSetCommand(streams Streams) *cli.Command {
	var params configSetParams

	return &cli.Command{
		Name:    "set",
		Summary: "Update the stored build configuration from a file",
		Usage:   "buildconsole config set --file <path> [flags]",
		Description: `Update the stored build configuration.

The file holds a JSON object with any subset of the fields mode,
memory, installPackage, legacyPeerDeps, skipInstall and dryRun.
Comments and trailing commas are allowed. Fields not in the file
keep their stored values. The merged configuration is validated
before it is sent.`,
		Examples: []cli.Example{
			{Description: "Raise the heap limit", Command: `echo '{"memory": 8192}' | buildconsole config set -f -`},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return cli.Validation("config set takes no arguments (use --file)")
			}
			if params.File == "" {
				return cli.Validation("--file is required")
			}
			data, err := readInput(streams.Stdin, params.File)
			if err != nil {
				return err
			}

			_, api, err := params.connect(logger)
			if err != nil {
				return err
			}
			current, err := api.GetConfig(ctx)
			if err != nil {
				return fmt.Errorf("reading build configuration: %w", err)
			}
			merged, err := mergeConfig(current, data)
			if err != nil {
				return cli.Validation("%s: %w", params.File, err)
			}
			saved, err := api.SaveConfig(ctx, merged)
			if err != nil {
				return fmt.Errorf("saving build configuration: %w", err)
			}
			logger.Info("build configuration saved")

			if done, err := params.EmitJSON(streams.Stdout, saved); done {
				return err
			}
			printConfig(streams.Stdout, saved)
			return nil
		},
	}
}

// mergeConfig overlays the JSONC object in data onto current and
// validates the result.
func mergeConfig(current build.Config, data []byte) (build.Config, error) {
	decoder := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
	decoder.DisallowUnknownFields()
	merged := current
	if err := decoder.Decode(&merged); err != nil {
		return build.Config{}, fmt.Errorf("parsing configuration: %w", err)
	}
	if err := merged.Validate(); err != nil {
		return build.Config{}, err
	}
	return merged, nil
}

func printConfig(w io.Writer, config build.Config) {
	table := tabwriter.NewWriter(w, 2, 0, 2, ' ', 0)
	fmt.Fprintf(table, "mode\t%s\n", config.Mode)
	fmt.Fprintf(table, "memory\t%d MB\n", config.Memory)
	installPackage := config.InstallPackage
	if installPackage == "" {
		installPackage = "-"
	}
	fmt.Fprintf(table, "install package\t%s\n", installPackage)
	fmt.Fprintf(table, "legacy peer deps\t%t\n", config.LegacyPeerDeps)
	fmt.Fprintf(table, "skip install\t%t\n", config.SkipInstall)
	fmt.Fprintf(table, "dry run\t%t\n", config.DryRun)
	table.Flush()
}

// readInput reads path, or stdin when path is "-".
func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, cli.Internal("reading stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, cli.NotFound("%s does not exist", path)
	}
	if err != nil {
		return nil, cli.Internal("reading %s: %w", path, err)
	}
	return data, nil
}
