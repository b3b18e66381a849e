// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package buildapi

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is a non-2xx response from the build API. Message is taken
// from the {"error": ...} envelope when present.
type APIError struct {
	StatusCode int
	Message    string
}

func (err *APIError) Error() string {
	if err.Message == "" {
		return fmt.Sprintf("buildapi: HTTP %d %s", err.StatusCode, http.StatusText(err.StatusCode))
	}
	return fmt.Sprintf("buildapi: HTTP %d: %s", err.StatusCode, err.Message)
}

// IsNotFound reports whether err is a 404 response.
func IsNotFound(err error) bool {
	return hasStatus(err, http.StatusNotFound)
}

// IsUnauthorized reports whether err is a 401 response.
func IsUnauthorized(err error) bool {
	return hasStatus(err, http.StatusUnauthorized)
}

// IsForbidden reports whether err is a 403 response.
func IsForbidden(err error) bool {
	return hasStatus(err, http.StatusForbidden)
}

func hasStatus(err error, code int) bool {
	var apiError *APIError
	return errors.As(err, &apiError) && apiError.StatusCode == code
}
