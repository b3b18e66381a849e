// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/buildconsole/cmd/buildconsole/cli"
	"github.com/bureau-foundation/buildconsole/lib/buildapi"
	"github.com/bureau-foundation/buildconsole/lib/buildcache"
	"github.com/bureau-foundation/buildconsole/lib/buildstream"
	"github.com/bureau-foundation/buildconsole/lib/categorize"
	"github.com/bureau-foundation/buildconsole/lib/config"
	"github.com/bureau-foundation/buildconsole/lib/consoleui"
	"github.com/bureau-foundation/buildconsole/lib/report"
	"github.com/bureau-foundation/buildconsole/lib/schema/build"
)

type runParams struct {
	Connection
	cli.JSONOutput
	TUI            bool          `flag:"tui" desc:"follow the build in the full-screen view"`
	Transport      string        `flag:"transport" desc:"stream transport: sse or ws (default from config)"`
	NoStream       bool          `flag:"no-stream" desc:"run without streaming and wait for the whole result"`
	DryRun         bool          `flag:"dry-run" desc:"validate the configuration without building"`
	Memory         int           `flag:"memory" desc:"Node heap size in MB (default: the server's stored value)"`
	SkipInstall    bool          `flag:"skip-install" desc:"skip the package install step"`
	InstallPackage string        `flag:"install-package" desc:"npm package to install before building"`
	Timeout        time.Duration `flag:"timeout" desc:"deadline for the first stream frame (default from config, 10s)"`
	NoCache        bool          `flag:"no-cache" desc:"do not record the result in the local cache"`
}

// runResult is the --json output of run.
type runResult struct {
	BuildID         string             `json:"buildId,omitempty"`
	Status          build.Status       `json:"status"`
	Message         string             `json:"message,omitempty"`
	Output          string             `json:"output"`
	CategorizedData *build.Categorized `json:"categorizedData,omitempty"`
}

func runCommand(streams Streams) *cli.Command {
	var params runParams
	// flags is the most recently built set; after parsing it records
	// which configuration flags were given explicitly.
	var flags *pflag.FlagSet

	return &cli.Command{
		Name:    "run",
		Summary: "Trigger a build and follow its output",
		Usage:   "buildconsole run [flags]",
		Description: `Trigger a build on the server and stream its output.

Configuration flags (--dry-run, --memory, --skip-install,
--install-package) update the server's stored build configuration
before the build starts; flags left unset keep the stored values.
The stored values persist across runs: use --dry-run=false or
--skip-install=false to clear them.

Output is printed as it arrives. When the build finishes, the
categorized summary is printed and the result is saved to the local
cache for "report" and "last". If the server sends no categorized
data, the output is classified locally.

Exit status is 0 when the build succeeds and 1 when it fails, times
out, or the stream breaks.`,
		Examples: []cli.Example{
			{Description: "Validate the configuration without building", Command: "buildconsole run --dry-run"},
			{Description: "Build with an 8 GB heap over WebSocket", Command: "buildconsole run --memory 8192 --transport ws"},
			{Description: "Machine-readable result", Command: "buildconsole run --json > result.json"},
		},
		Params: func() any { return &params },
		Flags: func() *pflag.FlagSet {
			flags = cli.FlagsFromParams("run", &params)
			return flags
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return cli.Validation("run takes no arguments (got %q)", args[0])
			}
			if params.TUI && params.OutputJSON {
				return cli.Validation("--tui and --json cannot be combined")
			}
			if params.TUI && params.NoStream {
				return cli.Validation("--tui needs a stream; drop --no-stream")
			}

			cfg, api, err := params.connect(logger)
			if err != nil {
				return err
			}
			if err := applyBuildOverrides(ctx, api, &params, flags.Changed, logger); err != nil {
				return err
			}

			var state buildstream.State
			if params.NoStream {
				state, err = runClassic(ctx, api)
			} else {
				state, err = runStream(ctx, streams, cfg, api, &params, logger)
			}
			if err != nil {
				return err
			}
			if state.Categorized == nil {
				fallback := categorize.Classify(state.Output, state.Status)
				state.Categorized = &fallback
			}

			if !params.NoCache {
				recordResult(cfg, state, logger)
			}

			if done, err := params.EmitJSON(streams.Stdout, runResult{
				BuildID:         state.BuildID,
				Status:          state.Status,
				Message:         state.Message,
				Output:          state.Output,
				CategorizedData: state.Categorized,
			}); done {
				if err != nil {
					return err
				}
				return exitForStatus(state.Status)
			}

			if !params.TUI {
				if state.Output != "" && !strings.HasSuffix(state.Output, "\n") {
					fmt.Fprintln(streams.Stdout)
				}
				fmt.Fprintln(streams.Stdout)
				fmt.Fprint(streams.Stdout, report.Text([]report.Build{{
					ID:          state.BuildID,
					Status:      state.Status,
					Message:     state.Message,
					Server:      cfg.ServerURL,
					FinishedAt:  time.Now(),
					Categorized: *state.Categorized,
				}}, textOptions(streams.Stdout)))
			} else if state.Message != "" {
				fmt.Fprintf(streams.Stderr, "build %s: %s\n", state.Status, state.Message)
			}
			return exitForStatus(state.Status)
		},
	}
}

// applyBuildOverrides saves the stored configuration with the
// configuration flags that changed reports as given. It is a no-op
// when none was.
func applyBuildOverrides(ctx context.Context, api *buildapi.Client, params *runParams, changed func(name string) bool, logger *slog.Logger) error {
	if !changed("dry-run") && !changed("memory") && !changed("skip-install") && !changed("install-package") {
		return nil
	}
	current, err := api.GetConfig(ctx)
	if err != nil {
		return fmt.Errorf("reading build configuration: %w", err)
	}
	if changed("dry-run") {
		current.DryRun = params.DryRun
	}
	if changed("memory") {
		current.Memory = params.Memory
	}
	if changed("skip-install") {
		current.SkipInstall = params.SkipInstall
	}
	if changed("install-package") {
		current.InstallPackage = params.InstallPackage
	}
	if err := current.Validate(); err != nil {
		return cli.Validation("build configuration: %w", err)
	}
	if _, err := api.SaveConfig(ctx, current); err != nil {
		return fmt.Errorf("saving build configuration: %w", err)
	}
	logger.Debug("build configuration updated", "memory", current.Memory, "dry_run", current.DryRun, "skip_install", current.SkipInstall)
	return nil
}

// runStream follows one build over the configured transport.
func runStream(ctx context.Context, streams Streams, cfg *config.Config, api *buildapi.Client, params *runParams, logger *slog.Logger) (buildstream.State, error) {
	transport, err := newTransport(cfg, api, params.Transport)
	if err != nil {
		return buildstream.State{}, err
	}
	timeout := params.Timeout
	if timeout == 0 {
		if timeout, err = cfg.Timeout(); err != nil {
			return buildstream.State{}, cli.Validation("%w", err)
		}
	}

	history := buildapi.NewHistory(api)
	historyRefreshed := make(chan error, 1)
	options := buildstream.Options{
		ConnectTimeout: timeout,
		Prober:         api,
		Logger:         logger,
		OnComplete: func(buildstream.State) {
			go func() {
				err := history.Refresh(context.WithoutCancel(ctx))
				select {
				case historyRefreshed <- err:
				default:
				}
			}()
		},
	}

	var feed *consoleui.Feed
	switch {
	case params.TUI:
		feed = consoleui.NewFeed()
		options.OnUpdate = feed.Publish
	case !params.OutputJSON:
		options.OnUpdate = followOutput(streams.Stdout)
	}

	client := buildstream.NewClient(transport, options)
	if err := client.Start(ctx); err != nil {
		return buildstream.State{}, cli.Internal("starting build stream: %w", err)
	}
	defer client.Stop()

	if params.TUI {
		model := consoleui.NewModel(consoleui.Options{
			Controller: client,
			Feed:       feed,
			Context:    ctx,
			Title:      cfg.ServerURL,
		})
		program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
		if _, err := program.Run(); err != nil && ctx.Err() == nil {
			return buildstream.State{}, cli.Internal("running console view: %w", err)
		}
		client.Stop()
		feed.Close()
	}

	// Cancelling ctx stops the run, which settles Wait.
	state, err := client.Wait(context.WithoutCancel(ctx))
	if err != nil {
		return state, err
	}

	if state.Failure == buildstream.FailureNone || state.Failure == buildstream.FailureBuild {
		select {
		case err := <-historyRefreshed:
			if err != nil {
				logger.Warn("build history refresh failed", "error", err)
			} else if entries := history.Entries(); len(entries) > 0 {
				logger.Info("build recorded", "build_id", entries[0].ID, "history_size", len(entries))
			}
		case <-time.After(5 * time.Second):
			logger.Warn("build history refresh timed out")
		case <-ctx.Done():
		}
	}
	return state, nil
}

// followOutput returns an OnUpdate callback that writes newly
// appended output to w.
func followOutput(w io.Writer) func(buildstream.State) {
	printed := 0
	return func(state buildstream.State) {
		if len(state.Output) < printed {
			printed = 0
		}
		if len(state.Output) > printed {
			io.WriteString(w, state.Output[printed:])
			printed = len(state.Output)
		}
	}
}

func newTransport(cfg *config.Config, api *buildapi.Client, override string) (buildstream.Transport, error) {
	name := cfg.Transport
	if override != "" {
		name = config.Transport(override)
	}
	switch name {
	case config.TransportSSE:
		return buildstream.NewSSETransport(api), nil
	case config.TransportWebSocket:
		return buildstream.NewWebSocketTransport(api), nil
	}
	return nil, cli.Validation("unknown transport %q (want %s or %s)", name, config.TransportSSE, config.TransportWebSocket)
}

// runClassic runs a build through POST /run and converts the result
// into the same state a stream would have produced.
func runClassic(ctx context.Context, api *buildapi.Client) (buildstream.State, error) {
	result, err := api.Run(ctx)
	if err != nil && result.BuildID == "" {
		return buildstream.State{}, err
	}
	state := buildstream.State{
		Status:      build.StatusSuccess,
		Output:      result.BuildResult.Output,
		Categorized: result.BuildResult.Categorized,
		BuildID:     result.BuildID,
	}
	if !result.Success {
		state.Status = build.StatusError
		state.Failure = buildstream.FailureBuild
		state.Message = buildstream.MessageBuildFailed
		if result.BuildResult.Error != "" {
			state.Message = result.BuildResult.Error
		}
	}
	return state, nil
}

// recordResult saves a finished run to the local cache. Cache
// failures are logged, never fatal: the build itself already ran.
func recordResult(cfg *config.Config, state buildstream.State, logger *slog.Logger) {
	cache, err := openCache(cfg, logger)
	if err != nil {
		logger.Warn("result not cached", "error", err)
		return
	}
	finished := time.Now()
	buildID := state.BuildID
	if buildID == "" {
		buildID = fmt.Sprintf("local_%d", finished.UnixMilli())
	}
	err = cache.Put(buildcache.Entry{
		BuildID:     buildID,
		Status:      state.Status,
		Message:     state.Message,
		Server:      cfg.ServerURL,
		FinishedAt:  finished,
		Output:      state.Output,
		Categorized: *state.Categorized,
	})
	if err != nil {
		logger.Warn("result not cached", "error", err)
	}
}

func exitForStatus(status build.Status) error {
	if status == build.StatusSuccess {
		return nil
	}
	return &cli.ExitError{Code: cli.ExitFailure}
}
