// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports build information for the console binaries.
//
// Four package-level variables are injected at build time via
// -ldflags -X:
//
//   - [GitCommit] -- short git SHA of the build
//   - [GitDirty] -- "true" if there were uncommitted changes
//   - [BuildTime] -- UTC timestamp of the build
//   - [Version] -- semantic version string (set manually for releases)
//
// For example:
//
//	go build -ldflags "-X github.com/bureau-foundation/buildconsole/lib/version.GitCommit=$(git rev-parse --short HEAD)"
//
// Without -ldflags, [Get] falls back to the VCS stamp embedded by the
// go command.
package version
