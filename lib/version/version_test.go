// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"runtime"
	"strings"
	"testing"
)

func TestInjectedValuesWin(t *testing.T) {
	savedCommit, savedDirty, savedTime := GitCommit, GitDirty, BuildTime
	t.Cleanup(func() { GitCommit, GitDirty, BuildTime = savedCommit, savedDirty, savedTime })

	GitCommit, GitDirty, BuildTime = "abc1234", "true", "2026-03-01T00:00:00Z"
	details := Get()
	if details.Commit != "abc1234" || !details.Dirty || details.BuildTime != "2026-03-01T00:00:00Z" {
		t.Errorf("Get() = %+v", details)
	}
	if got, want := Info(), Version+" (abc1234-dirty, 2026-03-01T00:00:00Z)"; got != want {
		t.Errorf("Info() = %q, want %q", got, want)
	}
}

func TestFull(t *testing.T) {
	full := Full()
	if !strings.Contains(full, runtime.Version()) || !strings.Contains(full, runtime.GOOS+"/"+runtime.GOARCH) {
		t.Errorf("Full() = %q", full)
	}
}
