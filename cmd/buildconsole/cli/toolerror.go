// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/bureau-foundation/buildconsole/lib/buildapi"
)

// ErrorCategory classifies a command failure so that main can pick
// the exit status and a hint without parsing the message.
type ErrorCategory string

const (
	// CategoryValidation: bad arguments, flags, or input files.
	// Fix the input; retrying the same call will not help.
	CategoryValidation ErrorCategory = "validation"

	// CategoryNotFound: the named build or file does not exist.
	CategoryNotFound ErrorCategory = "not_found"

	// CategoryForbidden: the server rejected the credential or role.
	CategoryForbidden ErrorCategory = "forbidden"

	// CategoryTransient: network failure or timeout; retry later.
	CategoryTransient ErrorCategory = "transient"

	// CategoryInternal: anything else, including I/O errors and
	// malformed server responses.
	CategoryInternal ErrorCategory = "internal"
)

// ToolError attaches a category to an error. Use the constructors.
type ToolError struct {
	Category ErrorCategory
	Err      error
}

func (e *ToolError) Error() string { return e.Err.Error() }

func (e *ToolError) Unwrap() error { return e.Err }

// Validation reports bad input.
func Validation(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryValidation, Err: fmt.Errorf(format, args...)}
}

// NotFound reports a missing resource.
func NotFound(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryNotFound, Err: fmt.Errorf(format, args...)}
}

// Forbidden reports a rejected credential.
func Forbidden(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryForbidden, Err: fmt.Errorf(format, args...)}
}

// Transient reports a failure worth retrying.
func Transient(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryTransient, Err: fmt.Errorf(format, args...)}
}

// Internal reports an unexpected failure.
func Internal(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryInternal, Err: fmt.Errorf(format, args...)}
}

// CategoryOf returns the category of err. Server errors are mapped by
// status code; unclassified errors are internal.
func CategoryOf(err error) ErrorCategory {
	var tool *ToolError
	if errors.As(err, &tool) {
		return tool.Category
	}
	switch {
	case buildapi.IsUnauthorized(err), buildapi.IsForbidden(err):
		return CategoryForbidden
	case buildapi.IsNotFound(err):
		return CategoryNotFound
	}
	var apiErr *buildapi.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode >= 500 {
		return CategoryTransient
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return CategoryTransient
	}
	return CategoryInternal
}
