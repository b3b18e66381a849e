// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package buildapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/bureau-foundation/buildconsole/lib/netutil"
	"github.com/bureau-foundation/buildconsole/lib/schema/build"
)

// Endpoint paths relative to the server base URL.
const (
	PathConfig    = "/api/build/config"
	PathLogs      = "/api/build/logs"
	PathMeta      = "/api/build/meta"
	PathHistory   = "/api/build/history"
	PathRun       = "/api/build/run"
	PathRunStream = "/api/build/run-stream"
	PathWebSocket = "/api/build/ws"
)

// Config holds the settings for NewClient.
type Config struct {
	// BaseURL is the server root, e.g. "https://admin.example.com".
	BaseURL string

	// Credential authenticates every request. Defaults to Anonymous.
	Credential Credential

	// HTTPClient defaults to http.DefaultClient. Run can take as long
	// as a full build, so a client timeout shorter than that breaks
	// it.
	HTTPClient *http.Client

	// Logger defaults to a discard logger.
	Logger *slog.Logger
}

// Client talks to one build server.
type Client struct {
	baseURL    string
	credential Credential
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient validates config and returns a Client.
func NewClient(config Config) (*Client, error) {
	baseURL := strings.TrimRight(config.BaseURL, "/")
	if baseURL == "" {
		return nil, fmt.Errorf("buildapi: BaseURL is required")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("buildapi: parsing BaseURL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("buildapi: BaseURL must be http or https (got %q)", baseURL)
	}

	credential := config.Credential
	if credential == nil {
		credential = Anonymous{}
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Client{
		baseURL:    baseURL,
		credential: credential,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// BaseURL returns the normalized server root.
func (client *Client) BaseURL() string { return client.baseURL }

// Credential returns the credential the client authenticates with.
func (client *Client) Credential() Credential { return client.credential }

// HTTPClient returns the underlying HTTP client.
func (client *Client) HTTPClient() *http.Client { return client.httpClient }

// NewRequest builds an authenticated request for path. Transports use
// it so that streams carry the same credential as REST calls.
func (client *Client) NewRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	request, err := http.NewRequestWithContext(ctx, method, client.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("buildapi: creating request: %w", err)
	}
	client.credential.Apply(request.Header)
	return request, nil
}

// do sends a JSON request and decodes a 2xx JSON response into result
// (which may be nil). Non-2xx responses become *APIError.
func (client *Client) do(ctx context.Context, method, path string, requestBody, result any) error {
	var bodyReader io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return fmt.Errorf("buildapi: encoding request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	request, err := client.NewRequest(ctx, method, path, bodyReader)
	if err != nil {
		return err
	}
	request.Header.Set("Accept", "application/json")
	if requestBody != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	response, err := client.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("buildapi: %s %s: %w", method, path, err)
	}
	defer response.Body.Close()

	client.logger.Debug("build api response", "method", method, "path", path, "status", response.StatusCode)

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return &APIError{StatusCode: response.StatusCode, Message: netutil.ErrorBody(response.Body)}
	}
	if result == nil {
		return nil
	}
	if err := netutil.DecodeResponse(response.Body, result); err != nil {
		return fmt.Errorf("buildapi: %s %s: %w", method, path, err)
	}
	return nil
}

// GetConfig returns the server's current build configuration.
func (client *Client) GetConfig(ctx context.Context) (build.Config, error) {
	var response struct {
		Config build.Config `json:"config"`
	}
	if err := client.do(ctx, http.MethodGet, PathConfig, nil, &response); err != nil {
		return build.Config{}, err
	}
	return response.Config, nil
}

// SaveConfig replaces the server's build configuration and returns the
// stored result.
func (client *Client) SaveConfig(ctx context.Context, config build.Config) (build.Config, error) {
	var response struct {
		Config build.Config `json:"config"`
	}
	if err := client.do(ctx, http.MethodPost, PathConfig, config, &response); err != nil {
		return build.Config{}, err
	}
	return response.Config, nil
}

// Logs returns up to fifty history records, newest first.
func (client *Client) Logs(ctx context.Context) ([]build.Log, error) {
	var response struct {
		Logs []build.Log `json:"logs"`
	}
	if err := client.do(ctx, http.MethodGet, PathLogs, nil, &response); err != nil {
		return nil, err
	}
	return response.Logs, nil
}

// Meta returns aggregate statistics over the whole history.
func (client *Client) Meta(ctx context.Context) (build.Meta, error) {
	var response struct {
		Meta build.Meta `json:"meta"`
	}
	if err := client.do(ctx, http.MethodGet, PathMeta, nil, &response); err != nil {
		return build.Meta{}, err
	}
	return response.Meta, nil
}

// DeleteLog removes one history record. An unknown ID is an
// *APIError with IsNotFound true.
func (client *Client) DeleteLog(ctx context.Context, id string) error {
	return client.do(ctx, http.MethodDelete, PathHistory+"/"+url.PathEscape(id), nil, nil)
}

// ClearHistory removes every history record.
func (client *Client) ClearHistory(ctx context.Context) error {
	return client.do(ctx, http.MethodDelete, PathHistory, nil, nil)
}

// RunResult is the response of a non-streaming build.
type RunResult struct {
	Success     bool        `json:"success"`
	BuildID     string      `json:"buildId"`
	BuildResult BuildResult `json:"buildResult"`
}

// BuildResult is the outcome of one build run.
type BuildResult struct {
	Success     bool               `json:"success"`
	Output      string             `json:"output"`
	Error       string             `json:"error,omitempty"`
	Duration    int64              `json:"duration,omitempty"`
	Categorized *build.Categorized `json:"categorizedData,omitempty"`
}

// Run executes a build with the server's stored configuration and
// waits for it to finish. A failed build is a successful call with
// Success false; a 500 response still carries the result and is
// returned alongside the *APIError.
func (client *Client) Run(ctx context.Context) (RunResult, error) {
	request, err := client.NewRequest(ctx, http.MethodPost, PathRun, nil)
	if err != nil {
		return RunResult{}, err
	}
	request.Header.Set("Accept", "application/json")

	response, err := client.httpClient.Do(request)
	if err != nil {
		return RunResult{}, fmt.Errorf("buildapi: POST %s: %w", PathRun, err)
	}
	defer response.Body.Close()

	body, err := netutil.ReadResponse(response.Body)
	if err != nil {
		return RunResult{}, fmt.Errorf("buildapi: reading run response: %w", err)
	}

	var result RunResult
	decodeErr := json.Unmarshal(body, &result)
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return result, &APIError{StatusCode: response.StatusCode, Message: netutil.ErrorBody(bytes.NewReader(body))}
	}
	if decodeErr != nil {
		return RunResult{}, fmt.Errorf("buildapi: decoding run response: %w", decodeErr)
	}
	return result, nil
}
