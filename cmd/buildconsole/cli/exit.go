// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"errors"
	"fmt"
)

// Exit statuses.
const (
	ExitFailure = 1
	ExitUsage   = 2
)

// ExitError ends the process with Code without printing anything. The
// command has already reported the outcome itself, as "run" does for
// a failed build.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit code %d", e.Code)
}

// ExitCode returns the exit status.
func (e *ExitError) ExitCode() int {
	return e.Code
}

// ExitCode maps an error returned by Execute to a process exit status
// and reports whether main should print it. Validation errors exit
// with ExitUsage.
func ExitCode(err error) (code int, report bool) {
	if err == nil {
		return 0, false
	}
	var exit *ExitError
	if errors.As(err, &exit) {
		return exit.Code, false
	}
	var tool *ToolError
	if errors.As(err, &tool) && tool.Category == CategoryValidation {
		return ExitUsage, true
	}
	return ExitFailure, true
}
