// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package buildapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDiagnoseStatus(t *testing.T) {
	t.Parallel()
	tests := []struct {
		code    int
		status  string
		cause   Cause
		message string
	}{
		{401, "401 Unauthorized", CauseUnauthenticated, MessageUnauthenticated},
		{403, "403 Forbidden", CauseForbidden, MessageForbidden},
		{502, "502 Bad Gateway", CauseServerError, "Server error: 502 Bad Gateway"},
		{500, "", CauseServerError, "Server error: 500 Internal Server Error"},
		{200, "200 OK", CauseConnectivity, MessageConnectivity},
	}
	for _, test := range tests {
		diagnosis := DiagnoseStatus(test.code, test.status)
		if diagnosis.Cause != test.cause || diagnosis.Message != test.message || diagnosis.StatusCode != test.code {
			t.Errorf("DiagnoseStatus(%d) = %+v, want %s %q", test.code, diagnosis, test.cause, test.message)
		}
	}
}

func TestProbeUsesCredentialAndConfigEndpoint(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != PathConfig || r.Method != http.MethodGet {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Write([]byte(`{"success":true}`))
	}))
	defer server.Close()

	for token, want := range map[BearerToken]Cause{
		"good": CauseConnectivity,
		"bad":  CauseForbidden,
	} {
		client, err := NewClient(Config{BaseURL: server.URL, Credential: token, HTTPClient: server.Client()})
		if err != nil {
			t.Fatal(err)
		}
		if got := client.Probe(context.Background()).Cause; got != want {
			t.Errorf("token %q: cause = %s, want %s", token, got, want)
		}
	}
}

func TestProbeUnreachable(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.NotFoundHandler())
	address := server.URL
	server.Close()

	client, err := NewClient(Config{BaseURL: address})
	if err != nil {
		t.Fatal(err)
	}
	diagnosis := client.Probe(context.Background())
	if diagnosis.Cause != CauseUnreachable || diagnosis.Message != MessageUnreachable {
		t.Errorf("diagnosis = %+v", diagnosis)
	}
}
