// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package buildserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"
	"unicode/utf8"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/buildconsole/lib/schema/build"
)

// Defaults for Runner.
const (
	DefaultBuildCommand   = "npm run build"
	DefaultInstallCommand = "npm install"
	DefaultGracePeriod    = 5 * time.Second
)

// Fixed output lines. The categorizer keys off the emoji markers.
const (
	lineDryRun         = "🔍 DRY RUN MODE - No actual build will be performed\n"
	lineDryRunComplete = "✅ Dry run completed successfully\n"
	lineBuildSucceeded = "\n✅ Build completed successfully!"
)

// StreamKind says which pipe a chunk came from.
type StreamKind int

const (
	Stdout StreamKind = iota
	Stderr
)

// Chunk is one read from the build's output.
type Chunk struct {
	Kind StreamKind
	Data string
}

// Outcome is the result of one Runner.Run.
type Outcome struct {
	Success  bool
	ExitCode int
	// Error is a one-line reason for a failed build, empty on
	// success.
	Error string
}

// Runner executes builds through sh -c. Each command runs in its own
// process group so that cancelling a build also stops everything it
// spawned.
type Runner struct {
	// BuildCommand defaults to DefaultBuildCommand.
	BuildCommand string
	// InstallCommand runs before the build when the configuration
	// names a package. Defaults to DefaultInstallCommand.
	InstallCommand string
	// WorkDir is the project directory. Empty means the server's
	// working directory.
	WorkDir string
	// GracePeriod is how long a cancelled build has between SIGTERM
	// and SIGKILL. Defaults to DefaultGracePeriod.
	GracePeriod time.Duration
	// Logger defaults to a discard logger.
	Logger *slog.Logger
}

// Run executes one build and reports its output through emit. Calls
// to emit are serialized. Run returns when the build and every reader
// have finished.
func (runner *Runner) Run(ctx context.Context, config build.Config, emit func(Chunk)) Outcome {
	var mu sync.Mutex
	send := func(kind StreamKind, data string) {
		mu.Lock()
		defer mu.Unlock()
		emit(Chunk{Kind: kind, Data: data})
	}

	if config.DryRun {
		send(Stdout, lineDryRun)
		encoded, _ := json.MarshalIndent(config, "", "  ")
		send(Stdout, string(encoded)+"\n")
		send(Stdout, lineDryRunComplete)
		return Outcome{Success: true}
	}

	environment := append(os.Environ(), fmt.Sprintf("NODE_OPTIONS=--max-old-space-size=%d", config.Memory))

	if config.InstallPackage != "" && !config.SkipInstall {
		install := runner.installCommand() + " " + shellQuote(config.InstallPackage)
		if config.LegacyPeerDeps {
			install += " --legacy-peer-deps"
		}
		send(Stdout, fmt.Sprintf("📦 Installing package %s...\n", config.InstallPackage))
		outcome := runner.exec(ctx, install, environment, send)
		if !outcome.Success {
			send(Stdout, fmt.Sprintf("\n❌ Package install failed: %s\n", outcome.Error))
			return outcome
		}
	}

	send(Stdout, fmt.Sprintf("🔨 Starting %s build...\n", config.Mode))
	send(Stdout, fmt.Sprintf("💾 Memory limit: %dMB\n", config.Memory))

	outcome := runner.exec(ctx, runner.buildCommand(), environment, send)
	switch {
	case outcome.Success:
		send(Stdout, lineBuildSucceeded)
	case outcome.ExitCode > 0:
		send(Stdout, fmt.Sprintf("\n❌ Build failed with exit code: %d", outcome.ExitCode))
	default:
		send(Stdout, fmt.Sprintf("\n❌ %s", outcome.Error))
	}
	return outcome
}

// exec runs one shell command to completion.
func (runner *Runner) exec(ctx context.Context, command string, environment []string, send func(StreamKind, string)) Outcome {
	logger := runner.logger()
	grace := runner.GracePeriod
	if grace <= 0 {
		grace = DefaultGracePeriod
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = runner.WorkDir
	cmd.Env = environment
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		processGroup := -cmd.Process.Pid
		if err := unix.Kill(processGroup, unix.SIGTERM); err != nil {
			return unix.Kill(processGroup, unix.SIGKILL)
		}
		go func() {
			time.Sleep(grace)
			// ESRCH from a group that already exited is harmless.
			_ = unix.Kill(processGroup, unix.SIGKILL)
		}()
		return nil
	}
	// Grandchildren can hold the pipes open after the shell exits.
	cmd.WaitDelay = grace + time.Second

	stdout := &chunkWriter{kind: Stdout, send: send}
	stderr := &chunkWriter{kind: Stderr, send: send}
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		return startFailure(send, err)
	}
	logger.Info("build process started", "command", command, "pid", cmd.Process.Pid, "workdir", runner.WorkDir)

	err := cmd.Wait()
	stdout.flush()
	stderr.flush()
	if err == nil {
		return Outcome{Success: true}
	}
	if ctx.Err() != nil {
		logger.Info("build cancelled", "command", command)
		return Outcome{ExitCode: -1, Error: "Build cancelled"}
	}
	var exitError *exec.ExitError
	if errors.As(err, &exitError) && exitError.ExitCode() > 0 {
		logger.Info("build process failed", "command", command, "exit_code", exitError.ExitCode())
		return Outcome{ExitCode: exitError.ExitCode(), Error: fmt.Sprintf("Build failed with exit code: %d", exitError.ExitCode())}
	}
	return Outcome{ExitCode: -1, Error: fmt.Sprintf("Build process ended: %v", err)}
}

func startFailure(send func(StreamKind, string), err error) Outcome {
	send(Stdout, fmt.Sprintf("\n❌ Failed to start build process: %v", err))
	return Outcome{ExitCode: -1, Error: err.Error()}
}

// chunkWriter forwards each write from the command as one chunk. A
// multi-byte character split across two reads is held back until it
// is complete, so every chunk is valid UTF-8 when the command's
// output is.
type chunkWriter struct {
	kind    StreamKind
	send    func(StreamKind, string)
	pending []byte
}

func (writer *chunkWriter) Write(data []byte) (int, error) {
	buffer := append(writer.pending, data...)
	cut := incompleteSuffix(buffer)
	if cut > 0 {
		writer.send(writer.kind, string(buffer[:cut]))
	}
	writer.pending = append(writer.pending[:0], buffer[cut:]...)
	return len(data), nil
}

// flush sends whatever is still held back. Called once the command
// has exited and no more writes will come.
func (writer *chunkWriter) flush() {
	if len(writer.pending) > 0 {
		writer.send(writer.kind, string(writer.pending))
		writer.pending = nil
	}
}

// incompleteSuffix returns the offset of a trailing partial UTF-8
// sequence in data, or len(data) if data ends on a boundary.
func incompleteSuffix(data []byte) int {
	for i := len(data) - 1; i >= 0 && i > len(data)-utf8.UTFMax; i-- {
		if utf8.RuneStart(data[i]) {
			if !utf8.FullRune(data[i:]) {
				return i
			}
			break
		}
	}
	return len(data)
}

func (runner *Runner) buildCommand() string {
	if runner.BuildCommand == "" {
		return DefaultBuildCommand
	}
	return runner.BuildCommand
}

func (runner *Runner) installCommand() string {
	if runner.InstallCommand == "" {
		return DefaultInstallCommand
	}
	return runner.InstallCommand
}

func (runner *Runner) logger() *slog.Logger {
	if runner.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return runner.Logger
}

// shellQuote wraps value in single quotes for sh.
func shellQuote(value string) string {
	return "'" + strings.ReplaceAll(value, "'", `'\''`) + "'"
}
