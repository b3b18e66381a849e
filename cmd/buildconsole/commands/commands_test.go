// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/buildconsole/cmd/buildconsole/cli"
	"github.com/bureau-foundation/buildconsole/lib/buildserver"
	"github.com/bureau-foundation/buildconsole/lib/buildstream"
	"github.com/bureau-foundation/buildconsole/lib/config"
	"github.com/bureau-foundation/buildconsole/lib/schema/build"
	"github.com/bureau-foundation/buildconsole/lib/testutil"
)

var testSecret = []byte("console-test-secret")

type consoleFixture struct {
	configPath string
	cacheDir   string
	store      *buildserver.FileStore
	serverURL  string
}

// newConsoleFixture starts a build server whose stored configuration
// is a dry run, and writes a console config pointing at it.
func newConsoleFixture(t *testing.T, role string) *consoleFixture {
	t.Helper()
	directory := t.TempDir()
	store := buildserver.NewFileStore(filepath.Join(directory, "history.json"))
	dryRun := build.DefaultConfig()
	dryRun.DryRun = true
	server, err := buildserver.New(buildserver.Config{
		Store:       store,
		Runner:      &buildserver.Runner{},
		Secret:      testSecret,
		BuildConfig: &dryRun,
	})
	if err != nil {
		t.Fatalf("buildserver.New: %v", err)
	}
	httpServer := httptest.NewServer(server.Handler())
	t.Cleanup(httpServer.Close)

	token, err := buildserver.MintToken(testSecret, "ops@example.com", role, time.Hour, time.Now())
	if err != nil {
		t.Fatalf("MintToken: %v", err)
	}
	tokenPath := filepath.Join(directory, "token")
	if err := os.WriteFile(tokenPath, []byte(token+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cacheDir := filepath.Join(directory, "cache")
	configPath := filepath.Join(directory, "config.yaml")
	configYAML := fmt.Sprintf("server_url: %s\ntoken_file: %s\ncache_dir: %s\nconnect_timeout: 5s\n",
		httpServer.URL, tokenPath, cacheDir)
	if err := os.WriteFile(configPath, []byte(configYAML), 0o600); err != nil {
		t.Fatal(err)
	}
	return &consoleFixture{configPath: configPath, cacheDir: cacheDir, store: store, serverURL: httpServer.URL}
}

// execute runs one console command with --config appended.
func (f *consoleFixture) execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := Root(Streams{Stdin: strings.NewReader(stdin), Stdout: &stdout, Stderr: &stderr})
	if f != nil {
		args = append(args, "--config", f.configPath)
	}
	err := root.Execute(context.Background(), args)
	return stdout.String(), stderr.String(), err
}

func (f *consoleFixture) waitForHistory(t *testing.T, count int) []build.Log {
	t.Helper()
	var logs []build.Log
	testutil.RequireEventually(t, func() bool {
		var err error
		logs, err = f.store.List(context.Background(), 0)
		return err == nil && len(logs) == count
	}, fmt.Sprintf("history reaches %d records", count))
	return logs
}

func TestRunStreamsDryRunAndCachesResult(t *testing.T) {
	t.Parallel()
	fixture := newConsoleFixture(t, "admin")

	stdout, stderr, err := fixture.execute(t, "", "run")
	if err != nil {
		t.Fatalf("run: %v\nstderr: %s", err, stderr)
	}
	for _, fragment := range []string{"Starting build stream_build_", "DRY RUN MODE", "Dry run completed successfully", "success"} {
		if !strings.Contains(stdout, fragment) {
			t.Errorf("stdout missing %q:\n%s", fragment, stdout)
		}
	}

	stdout, _, err = fixture.execute(t, "", "last", "--json")
	if err != nil {
		t.Fatalf("last: %v", err)
	}
	var result runResult
	if err := json.Unmarshal([]byte(stdout), &result); err != nil {
		t.Fatalf("decoding last --json: %v\n%s", err, stdout)
	}
	if result.Status != build.StatusSuccess || !strings.HasPrefix(result.BuildID, "stream_build_") {
		t.Errorf("cached result = %+v", result)
	}
	if result.CategorizedData == nil || result.CategorizedData.Summary.DeploymentStatus != build.DeploymentSuccess {
		t.Errorf("cached categorized data = %+v", result.CategorizedData)
	}

	stdout, _, err = fixture.execute(t, "", "report", "--format", "markdown")
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if !strings.Contains(stdout, "# Build stream\\_build\\_") || !strings.Contains(stdout, "| Category | Count |") {
		t.Errorf("markdown report:\n%s", stdout)
	}
}

func TestRunOverWebSocketWithJSON(t *testing.T) {
	t.Parallel()
	fixture := newConsoleFixture(t, "super_admin")

	stdout, stderr, err := fixture.execute(t, "", "run", "--transport", "ws", "--json", "--no-cache")
	if err != nil {
		t.Fatalf("run: %v\nstderr: %s", err, stderr)
	}
	var result runResult
	if err := json.Unmarshal([]byte(stdout), &result); err != nil {
		t.Fatalf("decoding run --json: %v\n%s", err, stdout)
	}
	if result.Status != build.StatusSuccess {
		t.Errorf("status = %s, message %q", result.Status, result.Message)
	}
	if !strings.Contains(result.Output, "DRY RUN MODE") {
		t.Errorf("output = %q", result.Output)
	}
	if _, err := os.Stat(fixture.cacheDir); err == nil {
		entries, _ := os.ReadDir(fixture.cacheDir)
		if len(entries) != 0 {
			t.Errorf("--no-cache left %d cache entries", len(entries))
		}
	}
}

func TestRunWithoutStream(t *testing.T) {
	t.Parallel()
	fixture := newConsoleFixture(t, "admin")

	stdout, stderr, err := fixture.execute(t, "", "run", "--no-stream", "--json")
	if err != nil {
		t.Fatalf("run --no-stream: %v\nstderr: %s", err, stderr)
	}
	var result runResult
	if err := json.Unmarshal([]byte(stdout), &result); err != nil {
		t.Fatalf("decoding: %v\n%s", err, stdout)
	}
	if result.Status != build.StatusSuccess || !strings.HasPrefix(result.BuildID, "build_") {
		t.Errorf("result = %+v", result)
	}
}

// storedConfig returns the server's build configuration as config
// show reports it.
func (f *consoleFixture) storedConfig(t *testing.T) build.Config {
	t.Helper()
	stdout, _, err := f.execute(t, "", "config", "show", "--json")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	var shown build.Config
	if err := json.Unmarshal([]byte(stdout), &shown); err != nil {
		t.Fatal(err)
	}
	return shown
}

func TestRunConfigFlagsCanBeCleared(t *testing.T) {
	t.Parallel()
	fixture := newConsoleFixture(t, "admin")

	if _, stderr, err := fixture.execute(t, "", "run", "--json", "--skip-install"); err != nil {
		t.Fatalf("run --skip-install: %v\nstderr: %s", err, stderr)
	}
	if shown := fixture.storedConfig(t); !shown.SkipInstall || !shown.DryRun {
		t.Fatalf("after --skip-install: %+v", shown)
	}

	// A plain run leaves the stored values alone.
	if _, stderr, err := fixture.execute(t, "", "run", "--json"); err != nil {
		t.Fatalf("plain run: %v\nstderr: %s", err, stderr)
	}
	if shown := fixture.storedConfig(t); !shown.SkipInstall {
		t.Fatalf("plain run changed the stored config: %+v", shown)
	}

	if _, stderr, err := fixture.execute(t, "", "run", "--json", "--skip-install=false"); err != nil {
		t.Fatalf("run --skip-install=false: %v\nstderr: %s", err, stderr)
	}
	if shown := fixture.storedConfig(t); shown.SkipInstall || !shown.DryRun {
		t.Errorf("after --skip-install=false: %+v", shown)
	}
}

func TestApplyBuildOverridesUsesExplicitFlagsOnly(t *testing.T) {
	t.Parallel()
	fixture := newConsoleFixture(t, "admin")
	logger := slog.New(slog.DiscardHandler)
	ctx := context.Background()

	var params runParams
	params.ConfigPath = fixture.configPath
	_, api, err := params.connect(logger)
	if err != nil {
		t.Fatal(err)
	}

	flags := cli.FlagsFromParams("run", &params)
	if err := flags.Parse([]string{"--dry-run=false", "--memory", "2048"}); err != nil {
		t.Fatal(err)
	}
	if err := applyBuildOverrides(ctx, api, &params, flags.Changed, logger); err != nil {
		t.Fatalf("applyBuildOverrides: %v", err)
	}
	stored, err := api.GetConfig(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stored.DryRun || stored.Memory != 2048 || stored.SkipInstall {
		t.Errorf("stored = %+v, want dry run cleared and memory 2048", stored)
	}

	params = runParams{}
	unchanged := func(string) bool { return false }
	if err := applyBuildOverrides(ctx, api, &params, unchanged, logger); err != nil {
		t.Fatalf("applyBuildOverrides with no flags: %v", err)
	}
	if again, err := api.GetConfig(ctx); err != nil || again != stored {
		t.Errorf("config changed without flags: %+v (%v)", again, err)
	}

	memoryOnly := func(name string) bool { return name == "memory" }
	if err := applyBuildOverrides(ctx, api, &params, memoryOnly, logger); err == nil {
		t.Error("explicit --memory 0 accepted")
	}
}

func TestRunRejectsConflictingFlags(t *testing.T) {
	t.Parallel()
	_, _, err := (*consoleFixture)(nil).execute(t, "", "run", "--tui", "--json")
	var tool *cli.ToolError
	if !errors.As(err, &tool) || tool.Category != cli.CategoryValidation {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestRunForbiddenRoleFailsWithDiagnosis(t *testing.T) {
	t.Parallel()
	fixture := newConsoleFixture(t, "viewer")

	stdout, _, err := fixture.execute(t, "", "run", "--json", "--no-cache")
	var exit *cli.ExitError
	if !errors.As(err, &exit) || exit.Code != cli.ExitFailure {
		t.Fatalf("err = %v, want exit 1", err)
	}
	var result runResult
	if err := json.Unmarshal([]byte(stdout), &result); err != nil {
		t.Fatalf("decoding: %v\n%s", err, stdout)
	}
	if result.Status != build.StatusError {
		t.Errorf("status = %s", result.Status)
	}
	if !strings.Contains(result.Message, "Insufficient permissions") {
		t.Errorf("message = %q", result.Message)
	}
}

func TestConfigSetMergesJSONC(t *testing.T) {
	t.Parallel()
	fixture := newConsoleFixture(t, "admin")

	input := `{
		// bigger heap for the release build
		"memory": 8192,
		"skipInstall": true,
	}`
	if _, stderr, err := fixture.execute(t, input, "config", "set", "--file", "-"); err != nil {
		t.Fatalf("config set: %v\nstderr: %s", err, stderr)
	}

	stdout, _, err := fixture.execute(t, "", "config", "show", "--json")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	var shown build.Config
	if err := json.Unmarshal([]byte(stdout), &shown); err != nil {
		t.Fatal(err)
	}
	if shown.Memory != 8192 || !shown.SkipInstall || !shown.DryRun || shown.Mode != build.ModeFull {
		t.Errorf("config = %+v", shown)
	}
}

func TestMergeConfigRejectsUnknownAndInvalid(t *testing.T) {
	t.Parallel()
	current := build.DefaultConfig()
	if _, err := mergeConfig(current, []byte(`{"memroy": 1024}`)); err == nil {
		t.Error("unknown field accepted")
	}
	if _, err := mergeConfig(current, []byte(`{"memory": 1}`)); err == nil {
		t.Error("out-of-range memory accepted")
	}
	merged, err := mergeConfig(current, []byte(`{"installPackage": "left-pad" /* pinned */}`))
	if err != nil {
		t.Fatal(err)
	}
	if merged.InstallPackage != "left-pad" || merged.Memory != current.Memory {
		t.Errorf("merged = %+v", merged)
	}
}

func TestHistoryListDeleteClear(t *testing.T) {
	t.Parallel()
	fixture := newConsoleFixture(t, "admin")

	for range 2 {
		if _, stderr, err := fixture.execute(t, "", "run", "--json", "--no-cache"); err != nil {
			t.Fatalf("run: %v\nstderr: %s", err, stderr)
		}
	}
	logs := fixture.waitForHistory(t, 2)

	stdout, _, err := fixture.execute(t, "", "history", "list", "--json")
	if err != nil {
		t.Fatalf("history list: %v", err)
	}
	var listed []build.Log
	if err := json.Unmarshal([]byte(stdout), &listed); err != nil {
		t.Fatal(err)
	}
	if len(listed) != 2 {
		t.Fatalf("listed %d builds, want 2", len(listed))
	}

	stdout, _, err = fixture.execute(t, "", "history", "delete", logs[0].ID)
	if err != nil {
		t.Fatalf("history delete: %v", err)
	}
	if !strings.Contains(stdout, "deleted "+logs[0].ID) {
		t.Errorf("stdout = %q", stdout)
	}
	fixture.waitForHistory(t, 1)

	_, _, err = fixture.execute(t, "", "history", "delete", "stream_build_missing")
	if cli.CategoryOf(err) != cli.CategoryNotFound {
		t.Errorf("deleting unknown build: err = %v, category %s", err, cli.CategoryOf(err))
	}

	_, _, err = fixture.execute(t, "", "history", "clear")
	if cli.CategoryOf(err) != cli.CategoryValidation {
		t.Errorf("clear without --yes: err = %v", err)
	}
	if _, _, err := fixture.execute(t, "", "history", "clear", "--yes"); err != nil {
		t.Fatalf("history clear: %v", err)
	}
	fixture.waitForHistory(t, 0)
}

func TestMetaReportsTotals(t *testing.T) {
	t.Parallel()
	fixture := newConsoleFixture(t, "admin")
	if _, _, err := fixture.execute(t, "", "run", "--json", "--no-cache"); err != nil {
		t.Fatalf("run: %v", err)
	}
	fixture.waitForHistory(t, 1)

	stdout, _, err := fixture.execute(t, "", "meta", "--json")
	if err != nil {
		t.Fatalf("meta: %v", err)
	}
	var meta build.Meta
	if err := json.Unmarshal([]byte(stdout), &meta); err != nil {
		t.Fatal(err)
	}
	if meta.TotalBuilds != 1 || meta.SuccessfulBuilds != 1 || meta.SuccessRate != "100.0" {
		t.Errorf("meta = %+v", meta)
	}
}

func TestMetaWithExpiredCredentialIsForbidden(t *testing.T) {
	t.Parallel()
	fixture := newConsoleFixture(t, "admin")
	tokenPath := filepath.Join(t.TempDir(), "stale")
	if err := os.WriteFile(tokenPath, []byte("not-a-jwt"), 0o600); err != nil {
		t.Fatal(err)
	}
	_, _, err := fixture.execute(t, "", "meta", "--token-file", tokenPath)
	if cli.CategoryOf(err) != cli.CategoryForbidden {
		t.Errorf("err = %v, category %s", err, cli.CategoryOf(err))
	}
}

func TestConnectionCredentialPrecedence(t *testing.T) {
	t.Parallel()
	logger := slog.New(slog.DiscardHandler)
	tests := []struct {
		name       string
		cfg        config.Config
		wantHeader string
		wantValue  string
	}{
		{"token wins", config.Config{ServerURL: "http://builds.test", Token: "tok", SessionCookie: "sid=abc"}, "Authorization", "Bearer tok"},
		{"cookie", config.Config{ServerURL: "http://builds.test", SessionCookie: "sid=abc"}, "Cookie", "sid=abc"},
		{"anonymous", config.Config{ServerURL: "http://builds.test"}, "Authorization", ""},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			api, err := (&Connection{}).client(&test.cfg, logger)
			if err != nil {
				t.Fatal(err)
			}
			request, err := api.NewRequest(context.Background(), "GET", "/api/build/config", nil)
			if err != nil {
				t.Fatal(err)
			}
			if got := request.Header.Get(test.wantHeader); got != test.wantValue {
				t.Errorf("%s = %q, want %q", test.wantHeader, got, test.wantValue)
			}
		})
	}
}

func TestCategorizeStdin(t *testing.T) {
	t.Parallel()
	input := strings.Join([]string{
		"FIX: also a feature",
		"✨ new dashboard",
		"\x1b[32mnpm install done\x1b[0m",
		"warning: peer dependency",
		"",
		"plain line",
	}, "\n")

	stdout, _, err := (*consoleFixture)(nil).execute(t, input, "categorize", "--json", "--status", "error")
	if err != nil {
		t.Fatalf("categorize: %v", err)
	}
	var result build.Categorized
	if err := json.Unmarshal([]byte(stdout), &result); err != nil {
		t.Fatal(err)
	}
	if result.Summary.BugsFixed != 1 || result.Summary.FeaturesAdded != 1 || result.Summary.PackageUpdates != 1 {
		t.Errorf("summary = %+v", result.Summary)
	}
	if len(result.Other) != 1 || result.Other[0].Message != "plain line" {
		t.Errorf("other = %+v", result.Other)
	}
	if result.PackageUpdates[0].Message != "npm install done" {
		t.Errorf("escape sequences not stripped: %q", result.PackageUpdates[0].Message)
	}
	if result.Summary.DeploymentStatus != build.DeploymentError {
		t.Errorf("deploymentStatus = %s", result.Summary.DeploymentStatus)
	}
}

func TestCategorizeRejectsUnknownStatus(t *testing.T) {
	t.Parallel()
	_, _, err := (*consoleFixture)(nil).execute(t, "", "categorize", "--status", "done")
	if cli.CategoryOf(err) != cli.CategoryValidation {
		t.Errorf("err = %v", err)
	}
}

func TestReportWithEmptyCacheIsNotFound(t *testing.T) {
	t.Parallel()
	fixture := newConsoleFixture(t, "admin")
	_, _, err := fixture.execute(t, "", "report")
	if cli.CategoryOf(err) != cli.CategoryNotFound {
		t.Errorf("err = %v", err)
	}
}

func TestFollowOutputWritesOnlyNewText(t *testing.T) {
	t.Parallel()
	var out bytes.Buffer
	follow := followOutput(&out)
	follow(stateWithOutput("Building...\n"))
	follow(stateWithOutput("Building...\n"))
	follow(stateWithOutput("Building...\nstep1\n"))
	follow(stateWithOutput("again\n"))
	if got, want := out.String(), "Building...\nstep1\nagain\n"; got != want {
		t.Errorf("followed output = %q, want %q", got, want)
	}
}

func stateWithOutput(output string) buildstream.State {
	return buildstream.State{Status: build.StatusRunning, Output: output}
}
