// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package buildapi

import "net/http"

// Credential authenticates a request. Implementations add headers and
// must not otherwise modify the request.
type Credential interface {
	Apply(header http.Header)
}

// BearerToken authenticates with an Authorization: Bearer header.
type BearerToken string

func (token BearerToken) Apply(header http.Header) {
	if token != "" {
		header.Set("Authorization", "Bearer "+string(token))
	}
}

// SessionCookie authenticates with a session cookie, the mechanism a
// browser EventSource uses.
type SessionCookie struct {
	Name  string
	Value string
}

func (cookie SessionCookie) Apply(header http.Header) {
	header.Add("Cookie", (&http.Cookie{Name: cookie.Name, Value: cookie.Value}).String())
}

// Anonymous sends no credentials.
type Anonymous struct{}

func (Anonymous) Apply(http.Header) {}
