// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package buildapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// Cause is the likely reason a stream connection failed, as inferred
// from a follow-up request.
type Cause string

const (
	// CauseUnauthenticated: the probe got 401.
	CauseUnauthenticated Cause = "unauthenticated"
	// CauseForbidden: the probe got 403.
	CauseForbidden Cause = "forbidden"
	// CauseServerError: the probe got some other non-2xx status.
	CauseServerError Cause = "server_error"
	// CauseConnectivity: the probe succeeded, so the API is up and the
	// stream broke somewhere in between.
	CauseConnectivity Cause = "connectivity"
	// CauseUnreachable: the probe itself could not reach the server.
	CauseUnreachable Cause = "unreachable"
)

// Messages shown for each cause. The server error message also
// carries the status code.
const (
	MessageUnauthenticated = "Authentication required - please log in"
	MessageForbidden       = "Insufficient permissions - super_admin or dev_admin role required"
	MessageConnectivity    = "Build stream connection failed - check network connectivity"
	MessageUnreachable     = "Build stream connection failed - server may be down"
)

// Diagnosis is the result of a probe.
type Diagnosis struct {
	Cause Cause
	// StatusCode is the probe's HTTP status, zero if it got none.
	StatusCode int
	// Message is the text to show the user.
	Message string
}

// Probe classifies a stream failure by requesting the lightweight
// config endpoint with the same credential. It never returns an
// error: an unreachable server is itself a diagnosis. The response
// body is discarded.
func (client *Client) Probe(ctx context.Context) Diagnosis {
	request, err := client.NewRequest(ctx, http.MethodGet, PathConfig, nil)
	if err != nil {
		return Diagnosis{Cause: CauseUnreachable, Message: MessageUnreachable}
	}
	response, err := client.httpClient.Do(request)
	if err != nil {
		client.logger.Debug("diagnostic probe failed", "error", err)
		return Diagnosis{Cause: CauseUnreachable, Message: MessageUnreachable}
	}
	response.Body.Close()

	diagnosis := DiagnoseStatus(response.StatusCode, response.Status)
	client.logger.Debug("diagnostic probe", "status", response.StatusCode, "cause", diagnosis.Cause)
	return diagnosis
}

// DiagnoseStatus maps a probe's HTTP status to a Diagnosis. status is
// the full status line ("502 Bad Gateway"); it may be empty, in which
// case the standard text for code is used.
func DiagnoseStatus(code int, status string) Diagnosis {
	switch {
	case code == http.StatusUnauthorized:
		return Diagnosis{Cause: CauseUnauthenticated, StatusCode: code, Message: MessageUnauthenticated}
	case code == http.StatusForbidden:
		return Diagnosis{Cause: CauseForbidden, StatusCode: code, Message: MessageForbidden}
	case code < 200 || code >= 300:
		text := strings.TrimSpace(strings.TrimPrefix(status, fmt.Sprint(code)))
		if text == "" {
			text = http.StatusText(code)
		}
		return Diagnosis{Cause: CauseServerError, StatusCode: code, Message: fmt.Sprintf("Server error: %d %s", code, text)}
	}
	return Diagnosis{Cause: CauseConnectivity, StatusCode: code, Message: MessageConnectivity}
}
